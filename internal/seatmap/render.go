// Package seatmap renders a bus seat chart as a PNG, with occupied seats
// highlighted. Operators use it when picking a seat during approval.
package seatmap

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/hredostate/yebo-transport/internal/model"
)

// Layout constants
const (
	cellSize    = 56.0
	cellGap     = 10.0
	aisleGap    = 28.0
	marginX     = 40.0
	marginTop   = 70.0
	marginBot   = 40.0
	rowLabelW   = 36.0
	cornerRad   = 8.0
	titleOffset = 30.0
)

// Color scheme
var (
	bgColor        = color.RGBA{245, 246, 248, 255}
	titleColor     = color.RGBA{40, 44, 48, 255}
	rowLabelColor  = color.RGBA{110, 115, 120, 255}
	seatFreeColor  = color.RGBA{133, 193, 85, 220}
	seatTakenColor = color.RGBA{255, 182, 193, 255}
	seatTextColor  = color.RGBA{20, 24, 28, 230}
)

// Render draws the bus layout with the given occupied seat labels shaded.
// Columns are split around the aisle at the midpoint of the column list.
func Render(bus *model.Bus, occupied []string) ([]byte, error) {
	layout := bus.Layout
	if layout.Rows == 0 || len(layout.Columns) == 0 {
		return nil, fmt.Errorf("bus %s has no seat layout", bus.Number)
	}

	taken := make(map[string]bool, len(occupied))
	for _, s := range occupied {
		taken[model.NormalizeSeatLabel(s)] = true
	}

	cols := len(layout.Columns)
	aisleAfter := cols / 2

	width := marginX*2 + rowLabelW + float64(cols)*cellSize + float64(cols-1)*cellGap + aisleGap
	height := marginTop + marginBot + float64(layout.Rows)*cellSize + float64(layout.Rows-1)*cellGap

	dc := gg.NewContext(int(width), int(height))
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	title := fmt.Sprintf("Bus %s: %d/%d seats taken", bus.Number, len(occupied), layout.Seats())
	dc.SetColor(titleColor)
	dc.DrawStringAnchored(title, width/2, titleOffset, 0.5, 0.5)

	for row := 1; row <= layout.Rows; row++ {
		y := marginTop + float64(row-1)*(cellSize+cellGap)

		dc.SetColor(rowLabelColor)
		dc.DrawStringAnchored(fmt.Sprintf("%d", row), marginX+rowLabelW/2, y+cellSize/2, 0.5, 0.5)

		for i, col := range layout.Columns {
			x := marginX + rowLabelW + float64(i)*(cellSize+cellGap)
			if i >= aisleAfter {
				x += aisleGap
			}

			label := fmt.Sprintf("%d%s", row, col)
			if taken[label] {
				dc.SetColor(seatTakenColor)
			} else {
				dc.SetColor(seatFreeColor)
			}
			dc.DrawRoundedRectangle(x, y, cellSize, cellSize, cornerRad)
			dc.Fill()

			dc.SetColor(seatTextColor)
			dc.DrawStringAnchored(label, x+cellSize/2, y+cellSize/2, 0.5, 0.5)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode seat map: %w", err)
	}
	return buf.Bytes(), nil
}
