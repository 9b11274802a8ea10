package gi

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/parallel"
	"github.com/pthm-cable/probegi/probe"
	"github.com/pthm-cable/probegi/scene"
	"github.com/pthm-cable/probegi/tracer"
	"github.com/pthm-cable/probegi/volume"
)

func init() {
	config.MustInit("")
}

type harness struct {
	o      *Orchestrator
	world  *scene.World
	tracer *tracer.BoxTracer
	frame  Frame
}

func newHarness(t testing.TB, initRays int, specs ...volume.Specification) *harness {
	t.Helper()
	cfg := config.Cfg()
	world := scene.FromConfig(cfg.Scene)
	world.MarkAllStatic()

	pool := parallel.New(2)
	t.Cleanup(pool.Stop)

	bt := tracer.NewBoxTracer(pool)
	boxes, mats := world.Geometry()
	bt.Bind(boxes, mats)
	sh := tracer.NewDirectShader(bt, pool)

	opts := OptionsFromConfig(cfg)
	opts.Specs = specs
	opts.Pool = pool
	opts.Seed = 1
	if initRays > 0 {
		opts.GI.SceneInitRays = initRays
		opts.GI.ConvergenceRays = initRays
	}
	o := New(bt, sh, world, opts)
	sh.SetSampler(o)

	return &harness{
		o:      o,
		world:  world,
		tracer: bt,
		frame:  Frame{Camera: r3.Vec{Y: 2}, Lighting: LightingFromConfig(cfg.Scene)},
	}
}

func (h *harness) run(t testing.TB, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		if err := h.o.Update(h.frame); err != nil {
			t.Fatalf("frame %d: %v", h.o.Frame(), err)
		}
	}
}

func smallSpec(name string, rays int) volume.Specification {
	s := volume.DefaultSpecification()
	s.Name = name
	s.ProbeCounts = probe.Int3{X: 4, Y: 2, Z: 4}
	s.RaysPerProbe = rays
	return s
}

func TestSceneInitConvergesEveryProbe(t *testing.T) {
	spec := volume.DefaultSpecification()
	spec.Name = "reference"
	spec.ProbeCounts = probe.Int3{X: 8, Y: 4, Z: 8}
	spec.RaysPerProbe = 256
	h := newHarness(t, 0, spec)

	h.run(t, 1)
	if got, want := h.o.RaysThisFrame(), 512*256; got != want {
		t.Errorf("first init frame traced %d rays, want %d", got, want)
	}
	h.run(t, config.Cfg().GI.SceneInitFrames-1)

	if h.o.InitializationFrames() != 0 {
		t.Fatalf("init frames pending = %d", h.o.InitializationFrames())
	}
	c := h.o.Volumes()[0].StateCounts()
	if c[probe.Uninitialized] != 0 {
		t.Errorf("%d probes still uninitialized after the init burst: %v", c[probe.Uninitialized], c)
	}
	if c[probe.Vigilant] == 0 {
		t.Errorf("no probe near geometry was marked vigilant: %v", c)
	}
}

func TestDefaultVolumeEnclosesScene(t *testing.T) {
	h := newHarness(t, 64)
	h.run(t, 1)

	vols := h.o.Volumes()
	if len(vols) != 1 || vols[0].Name() != "default" {
		t.Fatalf("volumes = %d", len(vols))
	}
	sb := h.world.SceneBounds()
	b := vols[0].Spec().Bounds
	scale := config.Cfg().GI.CircumscribedScale
	wantX := (sb.Max.X - sb.Min.X) * scale
	if math.Abs((b.Max.X-b.Min.X)-wantX) > 1e-9 {
		t.Errorf("default bounds width = %v, want %v", b.Max.X-b.Min.X, wantX)
	}
	if !vols[0].Contains(r3.Scale(0.5, r3.Add(sb.Min, sb.Max))) {
		t.Error("default volume should contain the scene center")
	}
}

func TestNonEnclosingVolumeUsesInscribedBounds(t *testing.T) {
	s := smallSpec("inner", 64)
	s.EncloseBounds = false
	h := newHarness(t, 64, s)
	h.run(t, 1)

	sb := h.world.SceneBounds()
	b := h.o.Volumes()[0].Spec().Bounds
	wantY := (sb.Max.Y - sb.Min.Y) * config.Cfg().GI.InscribedScale[1]
	if math.Abs((b.Max.Y-b.Min.Y)-wantY) > 1e-9 {
		t.Errorf("inscribed height = %v, want %v", b.Max.Y-b.Min.Y, wantY)
	}
}

func TestVolumesSortedSmallestFirst(t *testing.T) {
	big := smallSpec("big", 64)
	big.Bounds = r3.Box{Min: r3.Vec{X: -8, Y: 0, Z: -8}, Max: r3.Vec{X: 8, Y: 5, Z: 8}}
	small := smallSpec("small", 64)
	small.Bounds = r3.Box{Min: r3.Vec{X: -2, Y: 0, Z: -2}, Max: r3.Vec{X: 2, Y: 2, Z: 2}}
	h := newHarness(t, 64, big, small)
	h.run(t, 1)

	vols := h.o.Volumes()
	if len(vols) != 2 || vols[0].Name() != "small" || vols[1].Name() != "big" {
		t.Fatalf("order = %v", names(vols))
	}

	// Sampling inside both volumes reads the smaller one.
	h.run(t, 5)
	pos := r3.Vec{Y: 1}
	if got, want := h.o.SampleIrradiance(pos, r3.Vec{Y: 1}), vols[0].SampleIrradiance(pos, r3.Vec{Y: 1}); got != want {
		t.Errorf("sampled %v, want the small volume's %v", got, want)
	}
	if got := h.o.SampleIrradiance(r3.Vec{X: 100}, r3.Vec{Y: 1}); got != (r3.Vec{}) {
		t.Errorf("outside every volume sampled %v", got)
	}
}

func names(vols []*volume.Volume) []string {
	out := make([]string, len(vols))
	for i, v := range vols {
		out[i] = v.Name()
	}
	return out
}

func TestInitSkipsSteadyState(t *testing.T) {
	h := newHarness(t, 64, smallSpec("a", 96))
	h.run(t, 1)
	v := h.o.Volumes()[0]
	if got, want := h.o.RaysThisFrame(), 64*v.ProbeCount(); got != want {
		t.Errorf("init frame traced %d rays, want only the init pass (%d)", got, want)
	}
	if got := h.o.Stats().InitFramesPending; got != config.Cfg().GI.SceneInitFrames-1 {
		t.Errorf("pending = %d", got)
	}
}

func TestSteadyStateUsesVolumeBudget(t *testing.T) {
	h := newHarness(t, 64, smallSpec("a", 96))
	h.o.opts.GI.ProbeSleeping = false
	h.run(t, config.Cfg().GI.SceneInitFrames)

	h.run(t, 1)
	v := h.o.Volumes()[0]
	// With sleeping disabled every probe is traced by both passes.
	want := 64*v.ProbeCount() + 96*v.ProbeCount()
	if got := h.o.RaysThisFrame(); got != want {
		t.Errorf("steady frame traced %d rays, want %d", got, want)
	}
	if s := h.o.Stats(); s.Traced != v.ProbeCount() || s.Skipped != 0 {
		t.Errorf("stats traced %d skipped %d", s.Traced, s.Skipped)
	}
}

func followSpec() volume.Specification {
	s := smallSpec("follow", 64)
	s.CameraLocked = true
	s.Bounds = r3.Box{Min: r3.Vec{X: -4, Y: 0, Z: -4}, Max: r3.Vec{X: 4, Y: 4, Z: 4}}
	return s
}

func TestCameraScrollConvergesWithinFrame(t *testing.T) {
	h := newHarness(t, 64, followSpec())
	h.run(t, config.Cfg().GI.SceneInitFrames)
	if h.o.InitializationFrames() != 0 {
		t.Fatal("init should be complete")
	}

	v := h.o.Volumes()[0]
	g := v.Grid()
	h.frame.Camera = r3.Add(g.Center(), r3.Vec{X: g.Spacing.X})
	h.run(t, 1)

	if st := h.o.Stats(); st.Scrolls != 1 {
		t.Fatalf("scrolls = %d", st.Scrolls)
	}
	if h.o.InitializationFrames() != 0 {
		t.Errorf("scroll left %d init frames pending", h.o.InitializationFrames())
	}
	if c := v.StateCounts(); c[probe.Uninitialized] != 0 {
		t.Errorf("%d exposed probes still uninitialized: %v", c[probe.Uninitialized], c)
	}
	plane := v.Spec().ProbeCounts.Y * v.Spec().ProbeCounts.Z
	if floor := config.Cfg().GI.CameraTrackFrames * 64 * plane; h.o.RaysThisFrame() < floor {
		t.Errorf("traced %d rays, want at least the tracking burst (%d)", h.o.RaysThisFrame(), floor)
	}
}

func TestContinuousScrollKeepsSteadyState(t *testing.T) {
	world := smallSpec("world", 64)
	world.Bounds = r3.Box{Min: r3.Vec{X: -6, Y: 0, Z: -6}, Max: r3.Vec{X: 6, Y: 4, Z: 6}}
	h := newHarness(t, 64, followSpec(), world)
	h.o.opts.GI.ProbeSleeping = false
	h.run(t, config.Cfg().GI.SceneInitFrames)

	var follow *volume.Volume
	for _, v := range h.o.Volumes() {
		if v.Name() == "follow" {
			follow = v
		}
	}
	total := h.o.totalProbes()
	// Sleeping is off, so every pass traces whole volumes: the tracking
	// burst covers the follow volume, then convergence and the steady
	// budget cover both.
	want := config.Cfg().GI.CameraTrackFrames*64*follow.ProbeCount() + 64*total + 64*total

	for i := 0; i < 12; i++ {
		g := follow.Grid()
		h.frame.Camera = r3.Add(g.Center(), r3.Vec{X: g.Spacing.X})
		h.run(t, 1)

		st := h.o.Stats()
		if st.Scrolls != 1 || st.InitFramesPending != 0 {
			t.Fatalf("frame %d: scrolls %d pending %d", i, st.Scrolls, st.InitFramesPending)
		}
		if c := follow.StateCounts(); c[probe.Uninitialized] != 0 {
			t.Fatalf("frame %d: %d follow probes uninitialized", i, c[probe.Uninitialized])
		}
		if st.Traced != total {
			t.Errorf("frame %d: steady state traced %d of %d probes", i, st.Traced, total)
		}
		if got := h.o.RaysThisFrame(); got != want {
			t.Errorf("frame %d: traced %d rays, want %d", i, got, want)
		}
	}
}

func TestSceneBoundsChangeRebuilds(t *testing.T) {
	h := newHarness(t, 64, smallSpec("a", 64))
	h.run(t, config.Cfg().GI.SceneInitFrames)
	before := h.o.Volumes()[0]

	h.world.AddBox(config.BoxConfig{Name: "annex", Min: [3]float64{8, 0, 8}, Max: [3]float64{12, 2, 12}})
	h.world.MarkAllStatic()
	boxes, mats := h.world.Geometry()
	h.tracer.Bind(boxes, mats)
	h.run(t, 1)

	if h.o.Volumes()[0] == before {
		t.Error("volumes should be rebuilt after the scene grew")
	}
	if want := config.Cfg().GI.SceneInitFrames - 1; h.o.InitializationFrames() != want {
		t.Errorf("pending init frames = %d, want %d", h.o.InitializationFrames(), want)
	}
}

func TestVolumeCountChangeRebuilds(t *testing.T) {
	h := newHarness(t, 64, smallSpec("a", 64))
	h.run(t, 1)
	h.o.SetSpecifications([]volume.Specification{smallSpec("a", 64), smallSpec("b", 64)})
	h.run(t, 1)
	if len(h.o.Volumes()) != 2 {
		t.Errorf("volumes = %d after adding a specification", len(h.o.Volumes()))
	}
}

func TestEventsFanOut(t *testing.T) {
	h := newHarness(t, 64, smallSpec("a", 64), smallSpec("b", 64))
	h.run(t, 1)

	h.o.OnSmallLightChange()
	for _, v := range h.o.Volumes() {
		if _, reduced, _ := v.Hysteresis().Countdowns(); reduced == 0 {
			t.Errorf("%s missed the small light change", v.Name())
		}
	}
	h.o.OnLargeObjectChange()
	for _, v := range h.o.Volumes() {
		if low, _, vis := v.Hysteresis().Countdowns(); low == 0 || vis == 0 {
			t.Errorf("%s missed the large object change", v.Name())
		}
	}
	h.o.OnGlobalLightChange()
	if h.o.Stats().OverridesActive != 2 {
		t.Errorf("overrides active = %d", h.o.Stats().OverridesActive)
	}

	h.o.SetHysteresis(0.5)
	for _, v := range h.o.Volumes() {
		if v.Spec().Hysteresis != 0.5 {
			t.Errorf("%s hysteresis = %v", v.Name(), v.Spec().Hysteresis)
		}
	}
}

func TestOverridesTickOncePerFrame(t *testing.T) {
	h := newHarness(t, 64, smallSpec("a", 64))
	h.run(t, 1)
	h.o.OnGlobalLightChange()
	h.run(t, 3)
	low, _, _ := h.o.Volumes()[0].Hysteresis().Countdowns()
	if want := config.Cfg().GI.Overrides.LowIrradianceFrames - 3; low != want {
		t.Errorf("countdown after 3 frames = %d, want %d", low, want)
	}
}

func TestUnboundTracerPanics(t *testing.T) {
	h := newHarness(t, 64, smallSpec("a", 64))
	unbound := tracer.NewBoxTracer(nil)
	h.o.tracer = unbound

	defer func() {
		if recover() == nil {
			t.Error("expected panic when tracing without a scene")
		}
	}()
	_ = h.o.Update(h.frame)
}

func TestByRayBudget(t *testing.T) {
	mk := func(name string, rays int) *volume.Volume {
		return volume.New(smallSpec(name, rays), volume.Options{Overrides: volume.DefaultOverrides()})
	}
	vols := []*volume.Volume{mk("a", 64), mk("b", 128), mk("c", 64)}
	groups := byRayBudget(vols)
	if len(groups) != 2 || len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Fatalf("groups = %v", groups)
	}
	if groups[0][1].Name() != "c" || groups[1][0].Name() != "b" {
		t.Errorf("grouping lost order")
	}
}

func BenchmarkSteadyStateFrame(b *testing.B) {
	h := newHarness(b, 64, smallSpec("a", 64))
	h.run(b, config.Cfg().GI.SceneInitFrames)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.world.Step(1.0 / 60)
		_ = h.o.Update(h.frame)
	}
}

func TestLightingFromConfig(t *testing.T) {
	l := LightingFromConfig(config.Cfg().Scene)
	if n := r3.Norm(l.SunDirection); math.Abs(n-1) > 1e-9 {
		t.Errorf("sun direction not normalized: %v", n)
	}
	r := RotateSun(l, math.Pi)
	if math.Abs(r.SunDirection.Y-l.SunDirection.Y) > 1e-9 {
		t.Error("rotation about the vertical axis changed the sun elevation")
	}
	if math.Abs(r.SunDirection.X+l.SunDirection.X) > 1e-9 {
		t.Errorf("half turn should mirror x: %v -> %v", l.SunDirection.X, r.SunDirection.X)
	}
}
