package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bus is a vehicle with a fixed seat layout. A bus may serve several routes
// across different trips; the association lives in route_buses.
type Bus struct {
	ID         int64      `json:"id"`
	Number     string     `json:"number"`
	Capacity   int        `json:"capacity"`
	Layout     SeatLayout `json:"layout"`
	IsActive   bool       `json:"is_active"`
	DriverName *string    `json:"driver_name,omitempty"`
	DriverTel  *string    `json:"driver_tel,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SeatLayout addresses seats as <row><column>, e.g. "7C" for row 7 column C.
// Columns are single-letter labels stored in aisle order.
type SeatLayout struct {
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// Contains reports whether label addresses a seat that exists in the layout.
func (l SeatLayout) Contains(label string) bool {
	row, col, ok := splitSeatLabel(label)
	if !ok {
		return false
	}
	if row < 1 || row > l.Rows {
		return false
	}
	for _, c := range l.Columns {
		if strings.EqualFold(c, col) {
			return true
		}
	}
	return false
}

// Labels enumerates every addressable seat label in row-major order.
func (l SeatLayout) Labels() []string {
	labels := make([]string, 0, l.Rows*len(l.Columns))
	for row := 1; row <= l.Rows; row++ {
		for _, col := range l.Columns {
			labels = append(labels, fmt.Sprintf("%d%s", row, col))
		}
	}
	return labels
}

// Seats returns the number of addressable seats in the layout.
func (l SeatLayout) Seats() int {
	return l.Rows * len(l.Columns)
}

// NormalizeSeatLabel canonicalizes a label ("7c " -> "7C"). It does not
// validate against any layout.
func NormalizeSeatLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

func splitSeatLabel(label string) (row int, col string, ok bool) {
	label = NormalizeSeatLabel(label)
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	if i == 0 || i == len(label) {
		return 0, "", false
	}
	row, err := strconv.Atoi(label[:i])
	if err != nil {
		return 0, "", false
	}
	return row, label[i:], true
}
