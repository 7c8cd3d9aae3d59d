// Package grid maps free-form canvas coordinates onto the fixed cell grid
// used by vision boards.
//
// All functions are pure. Positions outside the canvas are legal: items may be
// dragged partially off the visible area, so nothing here clamps.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// Default canvas geometry.
const (
	DefaultWidth   = 1200.0
	DefaultHeight  = 1000.0
	DefaultColumns = 12
	DefaultRows    = 10
)

// Point is a position in canvas units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CellSize is the width and height of one grid cell in canvas units.
type CellSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Canvas describes the board surface and how it is divided into cells.
type Canvas struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Columns int     `json:"columns"`
	Rows    int     `json:"rows"`
}

// DefaultCanvas returns the 12x10 canvas boards use unless configured otherwise.
func DefaultCanvas() Canvas {
	return Canvas{
		Width:   DefaultWidth,
		Height:  DefaultHeight,
		Columns: DefaultColumns,
		Rows:    DefaultRows,
	}
}

// Validate reports whether the canvas can be divided into cells.
func (c Canvas) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("canvas dimensions must be positive, got %gx%g", c.Width, c.Height)
	}
	if c.Columns <= 0 || c.Rows <= 0 {
		return errors.New("canvas must have at least one column and one row")
	}
	return nil
}

// CellSize derives the cell size from the canvas dimensions.
func (c Canvas) CellSize() CellSize {
	return CellSize{
		Width:  c.Width / float64(c.Columns),
		Height: c.Height / float64(c.Rows),
	}
}

// Snap rounds p to the nearest cell boundary on both axes.
// Snap(Snap(p, c), c) == Snap(p, c) for every p.
func Snap(p Point, cell CellSize) Point {
	return Point{
		X: snapAxis(p.X, cell.Width),
		Y: snapAxis(p.Y, cell.Height),
	}
}

func snapAxis(v, size float64) float64 {
	if size <= 0 {
		return v
	}
	snapped := math.Round(v/size) * size
	// Avoid -0 so snapped positions compare and serialize cleanly.
	if snapped == 0 {
		return 0
	}
	return snapped
}

// Cell returns the column and row whose origin is nearest to p.
// Indices can be negative or exceed the canvas for off-canvas positions.
func Cell(p Point, cell CellSize) (col, row int) {
	if cell.Width <= 0 || cell.Height <= 0 {
		return 0, 0
	}
	return int(math.Round(p.X / cell.Width)), int(math.Round(p.Y / cell.Height))
}
