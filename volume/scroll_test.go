package volume

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/probe"
)

func cameraLockedVolume(t *testing.T) *Volume {
	t.Helper()
	s := testSpec(probe.Int3{X: 8, Y: 4, Z: 8})
	s.CameraLocked = true
	v := newTestVolume(t, s)
	setAll(v, probe.Awake)
	return v
}

func TestScrollOneStepPlusX(t *testing.T) {
	v := cameraLockedVolume(t)
	before := v.Grid()
	cam := r3.Add(before.Center(), r3.Vec{X: before.Spacing.X})

	if !v.NotifyOfCameraPosition(cam) {
		t.Fatal("camera one spacing beyond center should scroll")
	}
	after := v.Grid()
	if math.Abs(after.Origin.X-(before.Origin.X+before.Spacing.X)) > 1e-12 {
		t.Errorf("origin.X = %v, want %v", after.Origin.X, before.Origin.X+before.Spacing.X)
	}
	if after.Origin.Y != before.Origin.Y || after.Origin.Z != before.Origin.Z {
		t.Errorf("origin moved off-axis: %v -> %v", before.Origin, after.Origin)
	}
	if after.Phase != (probe.Int3{X: -1}) {
		t.Errorf("phase = %v, want {-1 0 0}", after.Phase)
	}

	recs := v.States().MapRead()
	defer v.States().Unmap()
	uninit := 0
	for id, r := range recs {
		switch r.State {
		case probe.Uninitialized:
			uninit++
			if after.Logical(id).X != after.Counts.X-1 {
				t.Errorf("probe %d reset but logical x = %d", id, after.Logical(id).X)
			}
		case probe.Awake:
		default:
			t.Errorf("probe %d changed to %s", id, r.State)
		}
	}
	if want := after.Counts.Y * after.Counts.Z; uninit != want {
		t.Errorf("uninitialized = %d, want one y-z plane (%d)", uninit, want)
	}
}

func TestScrollKeepsSurvivingProbesInPlace(t *testing.T) {
	v := cameraLockedVolume(t)
	g := v.Grid()
	before := make([]r3.Vec, v.ProbeCount())
	for id := range before {
		before[id] = g.Position(id)
	}
	cam := r3.Sub(g.Center(), r3.Vec{Z: 1.5 * g.Spacing.Z})
	if !v.NotifyOfCameraPosition(cam) {
		t.Fatal("expected scroll along -z")
	}
	after := v.Grid()
	if after.Phase != (probe.Int3{Z: 1}) {
		t.Fatalf("phase = %v, want {0 0 1}", after.Phase)
	}
	recs := v.States().MapRead()
	defer v.States().Unmap()
	for id, r := range recs {
		moved := r3.Norm(r3.Sub(after.Position(id), before[id])) > 1e-9
		if moved != (r.State == probe.Uninitialized) {
			t.Fatalf("probe %d moved=%v state=%s", id, moved, r.State)
		}
		if moved && after.Logical(id).Z != 0 {
			t.Fatalf("probe %d reset on logical z %d, want 0", id, after.Logical(id).Z)
		}
	}
}

func TestScrollNoopInsideCenterCell(t *testing.T) {
	v := cameraLockedVolume(t)
	g := v.Grid()
	cam := r3.Add(g.Center(), r3.Scale(0.9, g.Spacing))
	if v.NotifyOfCameraPosition(cam) {
		t.Error("camera within one spacing should not scroll")
	}
	if v.Grid() != g {
		t.Error("grid changed without a scroll")
	}
	if c := v.StateCounts(); c[probe.Awake] != v.ProbeCount() {
		t.Errorf("states changed: %v", c)
	}
}

func TestScrollIgnoredForWorldVolumes(t *testing.T) {
	v := newTestVolume(t, testSpec(probe.Int3{X: 8, Y: 4, Z: 8}))
	if v.NotifyOfCameraPosition(r3.Vec{X: 1000}) {
		t.Error("world-space volume should never scroll")
	}
}

func TestScrollWrapsAround(t *testing.T) {
	v := cameraLockedVolume(t)
	for step := 0; step < 10; step++ {
		g := v.Grid()
		if !v.NotifyOfCameraPosition(r3.Add(g.Center(), r3.Vec{X: g.Spacing.X})) {
			t.Fatalf("step %d did not scroll", step)
		}
	}
	g := v.Grid()
	if g.Phase.X != -10 {
		t.Errorf("phase = %d, want -10", g.Phase.X)
	}
	// Every physical slot is still addressed by exactly one logical coordinate.
	seen := make(map[probe.Int3]bool)
	for id := 0; id < v.ProbeCount(); id++ {
		l := g.Logical(id)
		if seen[l] {
			t.Fatalf("logical %v addressed twice", l)
		}
		seen[l] = true
	}
	// Ten steps across eight planes reset every plane at least once.
	if c := v.StateCounts(); c[probe.Uninitialized] != v.ProbeCount() {
		t.Errorf("uninitialized after wrap = %d", c[probe.Uninitialized])
	}
}
