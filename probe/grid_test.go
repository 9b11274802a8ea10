package probe

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func testBounds() r3.Box {
	return r3.Box{Min: r3.Vec{X: -4, Y: 0, Z: -8}, Max: r3.Vec{X: 4, Y: 3, Z: 8}}
}

func TestGridIndexRoundTrip(t *testing.T) {
	counts := []Int3{{8, 4, 8}, {1, 1, 1}, {2, 1, 4}, {16, 8, 2}}
	for _, c := range counts {
		g := NewGrid(testBounds(), c)
		for id := 0; id < g.Count(); id++ {
			if got := g.Linear(g.GridIndex(id)); got != id {
				t.Fatalf("counts %v: Linear(GridIndex(%d)) = %d", c, id, got)
			}
		}
	}
}

func TestGridIndexFormula(t *testing.T) {
	g := NewGrid(testBounds(), Int3{8, 4, 8})
	id := 3 + 2*8 + 5*32
	want := Int3{3, 2, 5}
	if got := g.GridIndex(id); got != want {
		t.Errorf("GridIndex(%d) = %v, want %v", id, got, want)
	}
}

func TestPositionsWithinBounds(t *testing.T) {
	b := testBounds()
	for _, c := range []Int3{{8, 4, 8}, {1, 4, 1}, {4, 1, 2}} {
		g := NewGrid(b, c)
		half := r3.Scale(0.5, g.Spacing)
		lo := r3.Sub(b.Min, half)
		hi := r3.Add(b.Max, half)
		for id := 0; id < g.Count(); id++ {
			p := g.Position(id)
			if p.X < lo.X || p.Y < lo.Y || p.Z < lo.Z || p.X > hi.X || p.Y > hi.Y || p.Z > hi.Z {
				t.Fatalf("counts %v: probe %d at %v outside inflated bounds", c, id, p)
			}
		}
	}
}

func TestSingleProbeAxisCentered(t *testing.T) {
	g := NewGrid(testBounds(), Int3{1, 4, 1})
	p := g.Position(0)
	if p.X != 0 || p.Z != 0 {
		t.Errorf("single-probe axes should be centered, got %v", p)
	}
	if g.Spacing.Y != 1 {
		t.Errorf("Spacing.Y = %v, want 1", g.Spacing.Y)
	}
}

func TestPhaseWrapsPositions(t *testing.T) {
	g := NewGrid(testBounds(), Int3{8, 4, 8})
	before := make([]r3.Vec, g.Count())
	for id := range before {
		before[id] = g.Position(id)
	}

	// One scroll step along +x: origin moves forward, phase moves back.
	g.Origin.X += g.Spacing.X
	g.Phase.X--

	moved := 0
	for id := range before {
		p := g.Position(id)
		if r3.Norm(r3.Sub(p, before[id])) > 1e-9 {
			moved++
			if g.Logical(id).X != g.Counts.X-1 {
				t.Fatalf("probe %d moved but is not on the new plane", id)
			}
		}
	}
	if want := g.Counts.Y * g.Counts.Z; moved != want {
		t.Errorf("moved = %d, want %d", moved, want)
	}
}

func TestPhysicalInvertsLogical(t *testing.T) {
	g := NewGrid(testBounds(), Int3{4, 2, 8})
	g.Phase = Int3{-3, 5, 9}
	for id := 0; id < g.Count(); id++ {
		if got := g.Physical(g.Logical(id)); got != id {
			t.Fatalf("Physical(Logical(%d)) = %d", id, got)
		}
	}
}

func TestCenter(t *testing.T) {
	g := NewGrid(testBounds(), Int3{8, 4, 8})
	c := g.Center()
	if math.Abs(c.X) > 1e-9 || math.Abs(c.Y-1.5) > 1e-9 || math.Abs(c.Z) > 1e-9 {
		t.Errorf("Center = %v", c)
	}
}

func TestBaseProbeClamps(t *testing.T) {
	g := NewGrid(testBounds(), Int3{8, 4, 8})
	if got := g.BaseProbe(r3.Vec{X: -100, Y: -100, Z: -100}); got != (Int3{}) {
		t.Errorf("BaseProbe below = %v", got)
	}
	if got := g.BaseProbe(r3.Vec{X: 100, Y: 100, Z: 100}); got != (Int3{7, 3, 7}) {
		t.Errorf("BaseProbe above = %v", got)
	}
}

func BenchmarkPosition(b *testing.B) {
	g := NewGrid(testBounds(), Int3{32, 8, 32})
	g.Phase = Int3{-5, 0, 3}
	n := g.Count()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.Position(i % n)
	}
}
