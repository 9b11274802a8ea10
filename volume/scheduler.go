package volume

import "github.com/pthm-cable/probegi/probe"

// NoSlot marks a probe that receives no rays this pass.
const NoSlot = -1

// GatherTracingProbes compacts the probes whose state is in states into
// contiguous ray slots and counts the rest as skipped. No states means all.
// A stale volume is allocated (and uninitialized) first.
func (v *Volume) GatherTracingProbes(states ...probe.State) error {
	if err := v.ResizeIfNeeded(); err != nil {
		return err
	}

	set := probe.NewStateSet(states...)
	recs := v.states.MapRead()
	v.traced = v.traced[:0]
	v.skipped = 0
	next := 0
	for id, rec := range recs {
		if !v.sleeping || set.Empty() || set.Contains(rec.State) {
			v.raySlots[id] = next
			v.traced = append(v.traced, id)
			next++
			continue
		}
		v.raySlots[id] = NoSlot
		v.skipped++
	}
	v.states.Unmap()
	return nil
}

// SetProbeSleeping toggles whether probes outside the requested states are skipped.
func (v *Volume) SetProbeSleeping(enabled bool) {
	v.sleeping = enabled
}

// SkippedProbes returns the probes excluded by the last gather.
func (v *Volume) SkippedProbes() int {
	return v.skipped
}

// TracedProbes returns the probes scheduled by the last gather.
func (v *Volume) TracedProbes() int {
	return len(v.traced)
}

// HasTracingProbes reports whether the last gather scheduled any probe.
func (v *Volume) HasTracingProbes() bool {
	return len(v.traced) > 0
}

// RaySlots returns the slot of every probe, NoSlot when skipped.
func (v *Volume) RaySlots() []int {
	return v.raySlots
}

// GeneratedRays returns the ray count of the last gather at raysPerProbe.
func (v *Volume) GeneratedRays(raysPerProbe int) int {
	return raysPerProbe * (v.ProbeCount() - v.skipped)
}
