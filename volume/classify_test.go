package volume

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/probe"
)

func TestClassifyUninitialized(t *testing.T) {
	tests := []struct {
		name string
		dist float64
		want probe.State
	}{
		{"buried in geometry", -1, probe.Off},
		{"near a surface", 0.1, probe.Vigilant},
		{"open space", math.Inf(1), probe.Asleep},
		{"distant surface", 50, probe.Asleep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVolume(t, testSpec(probe.Int3{X: 4, Y: 2, Z: 4}))
			if err := v.GatherTracingProbes(probe.Uninitialized); err != nil {
				t.Fatal(err)
			}
			buf := syntheticBatch(v, 64, r3.Vec{}, tt.dist)
			v.ComputeProbeOffsetsAndFlags(buf, 0, false)
			if c := v.StateCounts(); c[tt.want] != v.ProbeCount() {
				t.Errorf("counts = %v, want all %s", c, tt.want)
			}
			if v.FirstFrame() {
				t.Error("first frame flag should clear")
			}
		})
	}
}

func TestAdjustOffsetsDefersClassification(t *testing.T) {
	v := newTestVolume(t, testSpec(probe.Int3{X: 4, Y: 2, Z: 4}))
	if err := v.GatherTracingProbes(probe.Uninitialized); err != nil {
		t.Fatal(err)
	}
	buf := syntheticBatch(v, 64, r3.Vec{}, 0.2)
	v.ComputeProbeOffsetsAndFlags(buf, 0, true)

	if c := v.StateCounts(); c[probe.Uninitialized] != v.ProbeCount() {
		t.Fatalf("adjusting offsets should not classify, counts %v", c)
	}
	limit := r3.Scale(v.Spec().ProbeOffsetLimit, v.Grid().Spacing)
	moved := 0
	for id := 0; id < v.ProbeCount(); id++ {
		rec, pos := v.Probe(id)
		if rec.Offset != [3]int8{} {
			moved++
		}
		d := r3.Sub(pos, v.Grid().Position(id))
		if math.Abs(d.X) > limit.X+1e-9 || math.Abs(d.Y) > limit.Y+1e-9 || math.Abs(d.Z) > limit.Z+1e-9 {
			t.Errorf("probe %d offset %v exceeds limit %v", id, d, limit)
		}
	}
	if moved != v.ProbeCount() {
		t.Errorf("%d of %d probes moved away from the nearby surface", moved, v.ProbeCount())
	}
}

func TestAdjustOffsetsDisabled(t *testing.T) {
	s := testSpec(probe.Int3{X: 4, Y: 2, Z: 4})
	s.EnableProbeOffsetOptimization = false
	v := newTestVolume(t, s)
	if err := v.GatherTracingProbes(probe.Uninitialized); err != nil {
		t.Fatal(err)
	}
	v.ComputeProbeOffsetsAndFlags(syntheticBatch(v, 64, r3.Vec{}, 0.2), 0, true)
	for id := 0; id < v.ProbeCount(); id++ {
		if rec, _ := v.Probe(id); rec.Offset != [3]int8{} {
			t.Fatalf("probe %d moved with offset optimization off", id)
		}
	}
}

func TestTransitionalProbesSettle(t *testing.T) {
	v := newTestVolume(t, testSpec(probe.Int3{X: 4, Y: 2, Z: 4}))
	recs := v.States().MapWrite()
	for i := range recs {
		if i%2 == 0 {
			recs[i].State = probe.JustWoke
		} else {
			recs[i].State = probe.JustVigilant
		}
	}
	v.States().Unmap()

	if err := v.GatherTracingProbes(probe.JustWoke, probe.JustVigilant); err != nil {
		t.Fatal(err)
	}
	v.ComputeProbeOffsetsAndFlags(syntheticBatch(v, 64, r3.Vec{}, -1), 0, false)
	c := v.StateCounts()
	half := v.ProbeCount() / 2
	if c[probe.Awake] != half || c[probe.Vigilant] != half {
		t.Errorf("settled counts = %v", c)
	}
}

func TestClassifyWithoutBatchPanics(t *testing.T) {
	v := newTestVolume(t, testSpec(probe.Int3{X: 2, Y: 2, Z: 2}))
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	v.ComputeProbeOffsetsAndFlags(nil, 0, false)
}
