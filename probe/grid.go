package probe

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Int3 is an integer triple used for probe counts, grid coordinates and phase offsets.
type Int3 struct {
	X, Y, Z int
}

// Product returns X*Y*Z.
func (v Int3) Product() int {
	return v.X * v.Y * v.Z
}

// Get returns the component on axis 0, 1 or 2.
func (v Int3) Get(axis int) int {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Set returns v with the component on axis replaced by n.
func (v Int3) Set(axis, n int) Int3 {
	switch axis {
	case 0:
		v.X = n
	case 1:
		v.Y = n
	default:
		v.Z = n
	}
	return v
}

// Vec converts to a float vector.
func (v Int3) Vec() r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// Grid maps probe ids to grid coordinates and world positions.
//
// Ids address physical storage. For camera-locked volumes the logical grid
// coordinate of a probe is its physical coordinate shifted by Phase, wrapped
// per axis, so scrolling never moves texel data.
type Grid struct {
	Origin  r3.Vec
	Spacing r3.Vec
	Counts  Int3
	Phase   Int3
}

// NewGrid derives origin and spacing from bounds and per-axis counts.
// An axis with a single probe is centered instead of spaced.
func NewGrid(bounds r3.Box, counts Int3) Grid {
	extent := r3.Sub(bounds.Max, bounds.Min)
	g := Grid{Origin: bounds.Min, Counts: counts}

	axis := func(lo, ext float64, n int) (origin, spacing float64) {
		if n <= 1 {
			return lo + ext/2, ext
		}
		return lo, ext / float64(n-1)
	}
	g.Origin.X, g.Spacing.X = axis(bounds.Min.X, extent.X, counts.X)
	g.Origin.Y, g.Spacing.Y = axis(bounds.Min.Y, extent.Y, counts.Y)
	g.Origin.Z, g.Spacing.Z = axis(bounds.Min.Z, extent.Z, counts.Z)
	return g
}

// Count returns the total number of probes.
func (g Grid) Count() int {
	return g.Counts.Product()
}

// GridIndex returns the physical (x,y,z) of probe id.
func (g Grid) GridIndex(id int) Int3 {
	nxy := g.Counts.X * g.Counts.Y
	return Int3{
		X: id % g.Counts.X,
		Y: (id % nxy) / g.Counts.X,
		Z: id / nxy,
	}
}

// Linear is the inverse of GridIndex.
func (g Grid) Linear(c Int3) int {
	return c.X + c.Y*g.Counts.X + c.Z*g.Counts.X*g.Counts.Y
}

// Logical returns the scrolled grid coordinate of probe id.
func (g Grid) Logical(id int) Int3 {
	p := g.GridIndex(id)
	return Int3{
		X: wrap(p.X+g.Phase.X, g.Counts.X),
		Y: wrap(p.Y+g.Phase.Y, g.Counts.Y),
		Z: wrap(p.Z+g.Phase.Z, g.Counts.Z),
	}
}

// Physical maps a logical grid coordinate to the storage id that holds it.
func (g Grid) Physical(logical Int3) int {
	return g.Linear(Int3{
		X: wrap(logical.X-g.Phase.X, g.Counts.X),
		Y: wrap(logical.Y-g.Phase.Y, g.Counts.Y),
		Z: wrap(logical.Z-g.Phase.Z, g.Counts.Z),
	})
}

// Position returns the world-space position of probe id.
func (g Grid) Position(id int) r3.Vec {
	return g.At(g.Logical(id))
}

// At returns the world position of a logical grid coordinate.
func (g Grid) At(c Int3) r3.Vec {
	return r3.Add(g.Origin, mulElem(g.Spacing, c.Vec()))
}

// Center returns the midpoint of the grid.
func (g Grid) Center() r3.Vec {
	half := r3.Scale(0.5, r3.Sub(g.Counts.Vec(), r3.Vec{X: 1, Y: 1, Z: 1}))
	return r3.Add(g.Origin, mulElem(g.Spacing, half))
}

// Extent returns the spanned size of the grid (zero on single-probe axes).
func (g Grid) Extent() r3.Vec {
	return mulElem(g.Spacing, r3.Sub(g.Counts.Vec(), r3.Vec{X: 1, Y: 1, Z: 1}))
}

// Bounds returns the box spanned by the probe positions.
func (g Grid) Bounds() r3.Box {
	return r3.Box{Min: g.Origin, Max: r3.Add(g.Origin, g.Extent())}
}

// CellBounds returns the box of probe id inflated by one spacing per axis.
func (g Grid) CellBounds(id int) r3.Box {
	p := g.Position(id)
	return r3.Box{Min: r3.Sub(p, g.Spacing), Max: r3.Add(p, g.Spacing)}
}

// MinSpacing is the smallest spacing component.
func (g Grid) MinSpacing() float64 {
	return math.Min(g.Spacing.X, math.Min(g.Spacing.Y, g.Spacing.Z))
}

// BaseProbe returns the logical coordinate of the probe at or below pos,
// clamped into the grid so trilinear lookups always have a cage.
func (g Grid) BaseProbe(pos r3.Vec) Int3 {
	rel := r3.Sub(pos, g.Origin)
	f := func(d, s float64, n int) int {
		if s == 0 || n <= 1 {
			return 0
		}
		i := int(math.Floor(d / s))
		if i < 0 {
			return 0
		}
		if i > n-1 {
			return n - 1
		}
		return i
	}
	return Int3{
		X: f(rel.X, g.Spacing.X, g.Counts.X),
		Y: f(rel.Y, g.Spacing.Y, g.Counts.Y),
		Z: f(rel.Z, g.Spacing.Z, g.Counts.Z),
	}
}

func mulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// wrap is a modulo that is always non-negative.
func wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Wrap exposes the non-negative modulo used for phase arithmetic.
func Wrap(i, n int) int {
	return wrap(i, n)
}
