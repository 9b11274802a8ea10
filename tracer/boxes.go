package tracer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/parallel"
)

// Box is one axis-aligned occluder known to the CPU tracer.
type Box struct {
	Bounds   r3.Box
	Material int
	Mask     VisibilityMask
}

// Material describes a diffuse surface.
type Material struct {
	Albedo   r3.Vec
	Emissive r3.Vec
}

// BoxTracer is a brute-force slab-test ray tracer over axis-aligned boxes.
type BoxTracer struct {
	boxes     []Box
	materials []Material
	bound     bool
	pool      *parallel.Pool
}

// NewBoxTracer creates a tracer with no scene bound.
func NewBoxTracer(pool *parallel.Pool) *BoxTracer {
	return &BoxTracer{pool: pool}
}

// Bind replaces the acceleration structure with the given geometry.
func (t *BoxTracer) Bind(boxes []Box, materials []Material) {
	t.boxes = append(t.boxes[:0], boxes...)
	t.materials = append(t.materials[:0], materials...)
	t.bound = true
}

// Bound reports whether a scene has been bound.
func (t *BoxTracer) Bound() bool {
	return t.bound
}

// Material returns material i, or a black surface for unknown indices.
func (t *BoxTracer) Material(i int) Material {
	if i < 0 || i >= len(t.materials) {
		return Material{}
	}
	return t.materials[i]
}

// Intersect finds the closest hit for every ray.
func (t *BoxTracer) Intersect(rays []Ray, mask VisibilityMask, hits []Hit) error {
	if !t.bound {
		return ErrNoAccelerationStructure
	}
	if len(hits) < len(rays) {
		return fmt.Errorf("tracer: hit buffer holds %d, need %d", len(hits), len(rays))
	}
	t.pool.Run(len(rays), func(start, end, _ int) {
		for i := start; i < end; i++ {
			hits[i] = t.closest(rays[i], mask)
		}
	})
	return nil
}

// Occluded reports whether anything blocks the segment from origin along dir.
func (t *BoxTracer) Occluded(origin, dir r3.Vec, maxDist float64, mask VisibilityMask) bool {
	for _, b := range t.boxes {
		if b.Mask&mask == 0 {
			continue
		}
		near, far, _, _, ok := slab(origin, dir, b.Bounds)
		if !ok {
			continue
		}
		if near > 0 && near < maxDist {
			return true
		}
		if near <= 0 && far > 0 {
			return true
		}
	}
	return false
}

func (t *BoxTracer) closest(ray Ray, mask VisibilityMask) Hit {
	best := MissHit
	bestT := ray.TMax
	if bestT <= 0 {
		bestT = math.Inf(1)
	}
	for _, b := range t.boxes {
		if b.Mask&mask == 0 {
			continue
		}
		near, far, nearAxis, farAxis, ok := slab(ray.Origin, ray.Dir, b.Bounds)
		if !ok {
			continue
		}
		switch {
		case near >= ray.TMin && near < bestT:
			// Front face: the normal opposes the ray on the entry axis.
			bestT = near
			best = Hit{
				Position: r3.Add(ray.Origin, r3.Scale(near, ray.Dir)),
				Normal:   axisNormal(nearAxis, -sign(component(ray.Dir, nearAxis))),
				Distance: near,
				Material: b.Material,
			}
		case near < ray.TMin && far >= ray.TMin && far < bestT:
			// Origin inside the box: report the exit face as a back face.
			bestT = far
			best = Hit{
				Position: r3.Add(ray.Origin, r3.Scale(far, ray.Dir)),
				Normal:   axisNormal(farAxis, sign(component(ray.Dir, farAxis))),
				Distance: -far,
				Material: b.Material,
			}
		}
	}
	return best
}

// slab returns the parametric entry and exit of a ray through a box and the
// axes that bound them.
func slab(o, d r3.Vec, b r3.Box) (near, far float64, nearAxis, farAxis int, ok bool) {
	near, far = math.Inf(-1), math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		oc, dc := component(o, axis), component(d, axis)
		lo, hi := component(b.Min, axis), component(b.Max, axis)
		if dc == 0 {
			// Ray is parallel to this slab
			if oc < lo || oc > hi {
				return 0, 0, 0, 0, false
			}
			continue
		}
		inv := 1 / dc
		t0 := (lo - oc) * inv
		t1 := (hi - oc) * inv
		if inv < 0 {
			t0, t1 = t1, t0
		}
		if t0 > near {
			near, nearAxis = t0, axis
		}
		if t1 < far {
			far, farAxis = t1, axis
		}
	}
	return near, far, nearAxis, farAxis, far >= near && far > 0
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func axisNormal(axis int, s float64) r3.Vec {
	switch axis {
	case 0:
		return r3.Vec{X: s}
	case 1:
		return r3.Vec{Y: s}
	default:
		return r3.Vec{Z: s}
	}
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
