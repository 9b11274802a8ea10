package volume

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/probe"
)

// largeObjectFraction is the share of a volume's cells a moving box must
// cover to count as a large change.
const largeObjectFraction = 1.0 / 8

// NotifyOfDynamicObjects wakes sleeping probes near moving boxes and lets
// awake probes away from all motion fall back asleep.
//
// Each box is extruded by one probe spacing so any probe whose cell touches
// the object is covered. velocities holds per-frame displacements, parallel
// to boxes (it may be shorter). The pass always runs, even for no boxes, so
// expiring promotions decay. Repeating it within a frame changes nothing.
func (v *Volume) NotifyOfDynamicObjects(boxes []r3.Box, velocities []r3.Vec) {
	if v.stale {
		return
	}
	s := v.grid.Spacing
	extruded := make([]r3.Box, len(boxes))
	for i, b := range boxes {
		extruded[i] = r3.Box{Min: r3.Sub(b.Min, s), Max: r3.Add(b.Max, s)}
	}

	recs := v.states.MapWrite()
	for id := range recs {
		pos := v.grid.Position(id)
		in := false
		for _, b := range extruded {
			if inside(pos, b) {
				in = true
				break
			}
		}
		recs[id].State = probe.Promote(recs[id].State, in)
	}
	v.states.Unmap()

	if v.spec.DetectLargeObjectMotion && v.largeMotion(extruded, velocities) {
		v.hysteresis.OnLargeObjectChange()
	}
}

// largeMotion reports whether any moving box covers a large share of the
// volume or moved more than one probe spacing this frame.
func (v *Volume) largeMotion(extruded []r3.Box, velocities []r3.Vec) bool {
	s := v.grid.Spacing
	cell := s.X * s.Y * s.Z
	cells := float64(v.ProbeCount())
	minSpacing := v.grid.MinSpacing()
	for i, b := range extruded {
		if i >= len(velocities) || velocities[i] == (r3.Vec{}) {
			continue
		}
		if r3.Norm(velocities[i]) > minSpacing {
			return true
		}
		if cell > 0 && BoxVolume(b)/cell > cells*largeObjectFraction {
			return true
		}
	}
	return false
}

func inside(p r3.Vec, b r3.Box) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}
