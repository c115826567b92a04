package model

import "time"

// Route is a named transport service. Routes are administrator-owned master
// data; this subsystem only reads them.
type Route struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      *string   `json:"code,omitempty"`
	Campuses  []string  `json:"campuses,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Loaded on demand, not from the routes table itself.
	Stops []*Stop `json:"stops,omitempty"`
	Buses []*Bus  `json:"buses,omitempty"`
}

// Stop is a pickup/dropoff point on a route with declared times. Position
// orders stops along the route.
type Stop struct {
	ID          int64     `json:"id"`
	RouteID     int64     `json:"route_id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Position    int       `json:"position"`
	PickupTime  string    `json:"pickup_time"`  // "07:15", time-of-day only
	DropoffTime string    `json:"dropoff_time"` // "15:40"
	CreatedAt   time.Time `json:"created_at"`
}

// RouteAvailability is the capacity summary for one route in one term.
type RouteAvailability struct {
	RouteID        int64 `json:"route_id"`
	TermID         int64 `json:"term_id"`
	TotalCapacity  int   `json:"total_capacity"`
	OccupiedSeats  int   `json:"occupied_seats"`
	AvailableSeats int   `json:"available_seats"`
	IsFull         bool  `json:"is_full"`
}
