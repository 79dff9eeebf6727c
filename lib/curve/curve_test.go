package curve

import (
	"errors"
	"math"
	"testing"

	"qlux/lib/dmx"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluate(t *testing.T) {
	c := Curve{Points: []Point{{0.2, 0}, {0.5, 1}, {1, 0.5}}}

	tests := []struct {
		t    float64
		want float64
	}{
		{0, 0},     // before first point
		{0.2, 0},   // first point
		{0.35, 0.5},
		{0.5, 1},
		{0.75, 0.75},
		{1, 0.5},   // last point
		{1.5, 0.5}, // after last point
	}
	for _, tt := range tests {
		if got := c.Evaluate(tt.t); !near(got, tt.want) {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestEvaluateEndpoints(t *testing.T) {
	c := Curve{Points: []Point{{0, 0.3}, {0.4, 0.9}, {1, 0.1}}}
	if got := c.Evaluate(0); got != c.Points[0].Y {
		t.Errorf("Evaluate(0) = %v, want %v", got, c.Points[0].Y)
	}
	if got := c.Evaluate(1); got != c.Points[2].Y {
		t.Errorf("Evaluate(1) = %v, want %v", got, c.Points[2].Y)
	}
}

func TestEvaluateMonotonicSegment(t *testing.T) {
	c := Linear(0, 1)
	prev := -1.0
	for i := 0; i <= 100; i++ {
		v := c.Evaluate(float64(i) / 100)
		if v < prev {
			t.Fatalf("not monotonic at %d: %v < %v", i, v, prev)
		}
		prev = v
	}
}

func TestEvaluateDegenerate(t *testing.T) {
	for _, c := range []Curve{{}, {Points: []Point{{0.5, 0.2}}}} {
		if got := c.Evaluate(0.5); got != 1 {
			t.Errorf("degenerate curve: got %v, want 1", got)
		}
	}
}

func TestEvaluateStep(t *testing.T) {
	c := Curve{Points: []Point{{0, 0}, {0.5, 0}, {0.5, 1}, {1, 1}}}
	if got := c.Evaluate(0.5); got != 1 {
		t.Errorf("step: got %v, want 1", got)
	}
	if got := c.Evaluate(0.49); got != 0 {
		t.Errorf("before step: got %v, want 0", got)
	}
}

func TestInsertKeepsOrder(t *testing.T) {
	c := Flat()
	for _, p := range []Point{{0.7, 0.2}, {0.3, 0.5}, {0.3, 0.9}} {
		if _, err := c.Insert(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	want := []Point{{0, 1}, {0.3, 0.5}, {0.3, 0.9}, {0.7, 0.2}, {1, 1}}
	for i := range want {
		if c.Points[i] != want[i] {
			t.Fatalf("got %v, want %v", c.Points, want)
		}
	}
	if _, err := c.Insert(Point{1.2, 0}); !errors.Is(err, dmx.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestMoveResorts(t *testing.T) {
	c := Curve{Points: []Point{{0, 0}, {0.2, 0.5}, {1, 1}}}
	i, err := c.Move(1, Point{0.9, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if i != 1 || c.Points[1].X != 0.9 {
		t.Errorf("got index %d, points %v", i, c.Points)
	}
	c.Move(0, Point{0.95, 0})
	if err := c.Validate(); err != nil {
		t.Errorf("after move: %v", err)
	}
}

func TestRemove(t *testing.T) {
	c := Curve{Points: []Point{{0, 0}, {0.5, 1}, {1, 0}}}
	if err := c.Remove(1); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove(0); !errors.Is(err, dmx.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
	if err := c.Remove(5); !errors.Is(err, dmx.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestValidate(t *testing.T) {
	for name, c := range map[string]Curve{
		"short":    {Points: []Point{{0, 1}}},
		"range":    {Points: []Point{{0, 1}, {1, 1.5}}},
		"nan":      {Points: []Point{{0, math.NaN()}, {1, 1}}},
		"unsorted": {Points: []Point{{0.6, 1}, {0.4, 1}}},
	} {
		if err := c.Validate(); !errors.Is(err, dmx.ErrValidation) {
			t.Errorf("%s: got %v, want ErrValidation", name, err)
		}
	}
}
