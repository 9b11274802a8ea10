package volume

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/probe"
	"github.com/pthm-cable/probegi/tracer"
)

// ComputeProbeOffsetsAndFlags runs the classification pass over the probes
// traced at offset in buf.
//
// Uninitialized probes are classified from their rays unless adjustOffsets
// is set, in which case only their offsets are refined and classification
// waits for a later pass. Transitional probes settle into their steady state.
func (v *Volume) ComputeProbeOffsetsAndFlags(buf *tracer.RayBuffers, offset int, adjustOffsets bool) {
	if buf == nil {
		panic("volume: classification called before any ray batch was traced")
	}
	rays := buf.RaysPerProbe()
	diagonal := r3.Norm(v.grid.Spacing)

	recs := v.states.MapWrite()
	for slot, id := range v.traced {
		rec := &recs[id]
		if rec.State != probe.Uninitialized {
			rec.State = probe.Settle(rec.State)
			continue
		}

		base := offset + slot*rays
		in := probe.ClassifyInput{Rays: rays, NearestFrontDist: math.Inf(1), CellDiagonal: diagonal}
		closest := -1
		closestDist := math.Inf(1)
		for r := 0; r < rays; r++ {
			h := buf.Hits[base+r]
			if h.Miss() {
				continue
			}
			d := math.Abs(h.Distance)
			if h.Backface() {
				in.BackfaceHits++
			} else if d < in.NearestFrontDist {
				in.NearestFrontDist = d
			}
			if d < closestDist {
				closest, closestDist = base+r, d
			}
		}

		if adjustOffsets {
			if v.spec.EnableProbeOffsetOptimization && closest >= 0 {
				rec.Offset = v.relocate(*rec, buf.Rays[closest].Dir, buf.Hits[closest])
			}
			continue
		}
		rec.State = probe.Classify(in)
	}
	v.states.Unmap()
	v.firstFrame = false
}

// relocate moves a probe out of geometry it is buried in, or away from a
// surface it sits too close to. The result is clamped to the offset limit.
func (v *Volume) relocate(rec probe.Record, dir r3.Vec, hit tracer.Hit) [3]int8 {
	off := v.decodeOffset(rec.Offset)
	minSpacing := v.grid.MinSpacing()
	d := math.Abs(hit.Distance)
	switch {
	case hit.Backface():
		// Step through the back face to reach open space.
		off = r3.Add(off, r3.Scale(d+0.05*minSpacing, dir))
	case d < 0.5*minSpacing:
		off = r3.Sub(off, r3.Scale(0.5*minSpacing-d, dir))
	}
	return v.encodeOffset(off)
}
