package curve

import (
	"fmt"
	"math"
	"slices"

	"qlux/lib/dmx"
)

type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Curve is a piecewise-linear mapping of a cue's elapsed fraction to a
// contribution factor. Points are kept sorted by X.
type Curve struct {
	Points []Point `json:"points" yaml:"points"`
}

func Flat() Curve {
	return Curve{Points: []Point{{0, 1}, {1, 1}}}
}

func Linear(from, to float64) Curve {
	return Curve{Points: []Point{{0, from}, {1, to}}}
}

func (c *Curve) Evaluate(t float64) float64 {
	pts := c.Points
	if len(pts) < 2 {
		return 1
	}
	if t <= pts[0].X {
		return pts[0].Y
	}
	last := pts[len(pts)-1]
	if t >= last.X {
		return last.Y
	}
	i, _ := slices.BinarySearchFunc(pts, t, func(p Point, t float64) int {
		if p.X <= t {
			return -1
		}
		return 1
	})
	// pts[i-1].X <= t < pts[i].X
	a, b := pts[i-1], pts[i]
	dx := b.X - a.X
	if dx <= 0 {
		return b.Y
	}
	return a.Y + (b.Y-a.Y)*(t-a.X)/dx
}

func (c *Curve) Validate() error {
	if len(c.Points) < 2 {
		return fmt.Errorf("curve: %d points, need at least 2: %w", len(c.Points), dmx.ErrValidation)
	}
	for i, p := range c.Points {
		if !unit(p.X) || !unit(p.Y) {
			return fmt.Errorf("curve: point %d (%v, %v) outside [0,1]: %w", i, p.X, p.Y, dmx.ErrValidation)
		}
		if i > 0 && p.X < c.Points[i-1].X {
			return fmt.Errorf("curve: point %d x %v before previous %v: %w", i, p.X, c.Points[i-1].X, dmx.ErrValidation)
		}
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Insert adds p after any existing points with the same X and returns its index.
func (c *Curve) Insert(p Point) (int, error) {
	if !unit(p.X) || !unit(p.Y) {
		return -1, fmt.Errorf("curve: point (%v, %v) outside [0,1]: %w", p.X, p.Y, dmx.ErrValidation)
	}
	i, _ := slices.BinarySearchFunc(c.Points, p.X, func(q Point, x float64) int {
		if q.X <= x {
			return -1
		}
		return 1
	})
	c.Points = slices.Insert(c.Points, i, p)
	return i, nil
}

func (c *Curve) Remove(i int) error {
	if i < 0 || i >= len(c.Points) {
		return fmt.Errorf("curve: no point %d: %w", i, dmx.ErrNotFound)
	}
	if len(c.Points) <= 2 {
		return fmt.Errorf("curve: cannot remove endpoint: %w", dmx.ErrValidation)
	}
	c.Points = slices.Delete(c.Points, i, i+1)
	return nil
}

// Move sets point i to p and re-sorts.
func (c *Curve) Move(i int, p Point) (int, error) {
	if i < 0 || i >= len(c.Points) {
		return -1, fmt.Errorf("curve: no point %d: %w", i, dmx.ErrNotFound)
	}
	if !unit(p.X) || !unit(p.Y) {
		return -1, fmt.Errorf("curve: point (%v, %v) outside [0,1]: %w", p.X, p.Y, dmx.ErrValidation)
	}
	c.Points = slices.Delete(c.Points, i, i+1)
	return c.Insert(p)
}

func (c Curve) Clone() Curve {
	return Curve{Points: slices.Clone(c.Points)}
}
