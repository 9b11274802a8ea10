package volume

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/probe"
)

// NotifyOfCameraPosition scrolls a camera-locked volume one probe step
// toward cam when the camera has left the central cell. The storage is
// reused through the phase offset; only the newly exposed plane of probes
// is reset to uninitialized. It reports whether the volume scrolled.
func (v *Volume) NotifyOfCameraPosition(cam r3.Vec) bool {
	if !v.spec.CameraLocked || v.stale {
		return false
	}

	center := v.grid.Center()
	d := r3.Sub(cam, center)
	s := v.grid.Spacing
	if within(d.X, s.X) && within(d.Y, s.Y) && within(d.Z, s.Z) {
		return false
	}

	axis, step := 0, 0
	best := math.Inf(1)
	for a := 0; a < 3; a++ {
		sp := component(s, a)
		if sp <= 0 {
			continue
		}
		for _, dir := range []int{1, -1} {
			moved := setComponent(center, a, component(center, a)+float64(dir)*sp)
			if dist := r3.Norm(r3.Sub(cam, moved)); dist < best {
				best, axis, step = dist, a, dir
			}
		}
	}
	if step == 0 {
		return false
	}

	sp := component(s, axis)
	v.grid.Origin = setComponent(v.grid.Origin, axis, component(v.grid.Origin, axis)+float64(step)*sp)
	v.grid.Phase = v.grid.Phase.Set(axis, v.grid.Phase.Get(axis)-step)

	fresh := max(0, step*(v.spec.ProbeCounts.Get(axis)-1))
	recs := v.states.MapWrite()
	reset := 0
	for id := range recs {
		if v.grid.Logical(id).Get(axis) == fresh {
			recs[id] = probe.UninitializedRecord
			v.valid[id] = false
			reset++
		}
	}
	v.states.Unmap()

	v.logger.Debug("volume scrolled",
		"axis", axis,
		"step", step,
		"phase", v.grid.Phase,
		"reset_probes", reset,
	)
	return true
}

// scrollTolerance absorbs rounding so a camera exactly one spacing from the
// center scrolls.
const scrollTolerance = 1e-9

// within reports |d| < spacing; degenerate axes never trigger a scroll.
func within(d, spacing float64) bool {
	return spacing <= 0 || math.Abs(d) < spacing*(1-scrollTolerance)
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

func setComponent(v r3.Vec, axis int, x float64) r3.Vec {
	switch axis {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
	return v
}
