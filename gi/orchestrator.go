// Package gi schedules probe tracing across every probe volume of a scene.
package gi

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/parallel"
	"github.com/pthm-cable/probegi/probe"
	"github.com/pthm-cable/probegi/telemetry"
	"github.com/pthm-cable/probegi/tracer"
	"github.com/pthm-cable/probegi/volume"
)

// Scene is the scene-graph view the orchestrator needs.
type Scene interface {
	// SceneBounds is the extent of all non-moving geometry.
	SceneBounds() r3.Box
	// DynamicBounds returns moving boxes and their per-frame displacement.
	DynamicBounds() ([]r3.Box, []r3.Vec)
}

// PhaseTimer receives phase boundaries. *telemetry.PerfCollector satisfies it.
type PhaseTimer interface {
	StartPhase(phase string)
}

// Frame is the per-frame input of Update.
type Frame struct {
	Camera   r3.Vec
	Lighting tracer.Lighting
}

// Options configures an Orchestrator.
type Options struct {
	GI        config.GIConfig
	MaxTexels int

	// Specs are the configured volumes. When empty a single Default volume
	// enclosing the scene is created.
	Specs   []volume.Specification
	Default volume.Specification

	Pool   *parallel.Pool
	Logger *slog.Logger
	Timer  PhaseTimer
	Seed   int64
}

// OptionsFromConfig builds options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	specs := make([]volume.Specification, len(cfg.Volumes))
	for i, vc := range cfg.Volumes {
		specs[i] = volume.SpecificationFromConfig(vc)
	}
	def := volume.SpecificationFromConfig(cfg.VolumeDefaults)
	def.Name = "default"
	return Options{
		GI:        cfg.GI,
		MaxTexels: cfg.Derived.MaxTexels,
		Specs:     specs,
		Default:   def,
	}
}

// Orchestrator owns the probe volumes of a scene and drives their tracing.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger

	tracer tracer.RayTracer
	shader tracer.Shader
	scene  Scene

	volumes []*volume.Volume // Ascending by bounds volume
	buffers tracer.RayBuffers
	dirs    []r3.Vec
	rng     *rand.Rand

	built       bool
	sceneBounds r3.Box
	builtSpecs  int

	initFrames    int
	fullInitPass  bool // Next init pass traces all geometry
	frame         int
	raysThisFrame int
	scrolls       int
	traced        int
	skipped       int
}

// New creates an orchestrator. Volumes are built on the first Update.
func New(rt tracer.RayTracer, sh tracer.Shader, sc Scene, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		opts:   opts,
		logger: logger,
		tracer: rt,
		shader: sh,
		scene:  sc,
		rng:    rand.New(rand.NewSource(opts.Seed)),
	}
}

// SetSpecifications replaces the configured volumes. A change in count
// rebuilds all volumes on the next Update; otherwise the new specifications
// take effect at the next rebuild.
func (o *Orchestrator) SetSpecifications(specs []volume.Specification) {
	o.opts.Specs = append([]volume.Specification(nil), specs...)
}

// CreateVolumes builds every volume for the given scene bounds, replacing
// any existing ones, and schedules a scene-init burst.
func (o *Orchestrator) CreateVolumes(sceneBounds r3.Box, camera r3.Vec) error {
	inscribed, circumscribed := o.defaultBounds(sceneBounds)

	specs := o.opts.Specs
	if len(specs) == 0 {
		specs = []volume.Specification{o.opts.Default}
	}

	vols := make([]*volume.Volume, 0, len(specs))
	for _, s := range specs {
		s = s.ResolveBounds(inscribed, circumscribed)
		if s.Degenerate() {
			o.logger.Warn("skipping probe volume with empty bounds", "volume", s.Name)
			continue
		}
		v := volume.New(s, volume.Options{
			MaxTexels: o.opts.MaxTexels,
			Overrides: volume.OverridesFromConfig(o.opts.GI.Overrides),
			Pool:      o.opts.Pool,
			Logger:    o.logger,
			Camera:    camera,
		})
		v.SetProbeSleeping(o.opts.GI.ProbeSleeping)
		if err := v.ResizeIfNeeded(); err != nil {
			return fmt.Errorf("creating volume %q: %w", s.Name, err)
		}
		vols = append(vols, v)
	}
	sort.SliceStable(vols, func(i, j int) bool {
		return vols[i].BoundsVolume() < vols[j].BoundsVolume()
	})

	o.volumes = vols
	o.sceneBounds = sceneBounds
	o.builtSpecs = len(o.opts.Specs)
	o.built = true
	o.initFrames += o.opts.GI.SceneInitFrames
	o.fullInitPass = true

	o.logger.Info("probe volumes created",
		"volumes", len(vols),
		"probes", o.totalProbes(),
		"init_frames", o.initFrames,
	)
	return nil
}

// defaultBounds scales the scene extent about its center.
func (o *Orchestrator) defaultBounds(b r3.Box) (inscribed, circumscribed r3.Box) {
	center := r3.Scale(0.5, r3.Add(b.Min, b.Max))
	half := r3.Scale(0.5, r3.Sub(b.Max, b.Min))

	c := r3.Scale(o.opts.GI.CircumscribedScale, half)
	circumscribed = r3.Box{Min: r3.Sub(center, c), Max: r3.Add(center, c)}

	s := o.opts.GI.InscribedScale
	i := r3.Vec{X: half.X * s[0], Y: half.Y * s[1], Z: half.Z * s[2]}
	inscribed = r3.Box{Min: r3.Sub(center, i), Max: r3.Add(center, i)}
	return inscribed, circumscribed
}

// Update runs one frame of probe maintenance.
//
// While scene-init frames are pending, only uninitialized probes are traced
// and steady-state work is skipped. A volume that scrolled converges its
// newly exposed probes within the frame and then joins the steady-state
// work. Moving geometry wakes nearby probes, newly woken probes converge
// with a large ray count, and awake and vigilant probes are refreshed with
// each volume's own budget.
func (o *Orchestrator) Update(f Frame) error {
	o.frame++
	o.raysThisFrame = 0
	o.scrolls = 0
	defer o.advance()

	o.phase(telemetry.PhaseScene)
	bounds := o.scene.SceneBounds()
	if !o.built || bounds != o.sceneBounds || len(o.opts.Specs) != o.builtSpecs {
		if err := o.CreateVolumes(bounds, f.Camera); err != nil {
			return err
		}
	}

	o.phase(telemetry.PhaseCamera)
	var scrolled []*volume.Volume
	for _, v := range o.volumes {
		if v.NotifyOfCameraPosition(f.Camera) {
			scrolled = append(scrolled, v)
		}
	}
	o.scrolls = len(scrolled)

	// Scene init covers every volume, including the planes a scroll just
	// exposed.
	if o.initFrames > 0 {
		return o.initPass(f.Lighting)
	}
	if len(scrolled) > 0 {
		if err := o.trackCamera(scrolled, f.Lighting); err != nil {
			return err
		}
	}

	o.phase(telemetry.PhaseDynamic)
	boxes, deltas := o.scene.DynamicBounds()
	converging := false
	for _, v := range o.volumes {
		v.NotifyOfDynamicObjects(boxes, deltas)
	}

	o.phase(telemetry.PhaseGather)
	for _, v := range o.volumes {
		if err := v.GatherTracingProbes(probe.JustWoke, probe.JustVigilant); err != nil {
			return err
		}
		converging = converging || v.HasTracingProbes()
	}
	if converging {
		if err := o.trace(o.volumes, o.opts.GI.ConvergenceRays, tracer.MaskAll, f.Lighting, false); err != nil {
			return err
		}
	}

	o.phase(telemetry.PhaseGather)
	o.traced, o.skipped = 0, 0
	for _, v := range o.volumes {
		if err := v.GatherTracingProbes(probe.Awake, probe.Vigilant); err != nil {
			return err
		}
		o.traced += v.TracedProbes()
		o.skipped += v.SkippedProbes()
	}
	for _, group := range byRayBudget(o.volumes) {
		if err := o.trace(group, group[0].Spec().RaysPerProbe, tracer.MaskAll, f.Lighting, false); err != nil {
			return err
		}
	}
	return nil
}

// initPass converges uninitialized probes. The first pass after a rebuild
// sees all geometry, since freshly loaded content is often not yet marked
// static; later passes see static geometry only.
func (o *Orchestrator) initPass(env tracer.Lighting) error {
	mask := tracer.MaskStatic
	if o.fullInitPass {
		mask = tracer.MaskAll
		o.fullInitPass = false
	}
	adjust := o.initFrames > 1

	o.phase(telemetry.PhaseGather)
	o.traced, o.skipped = 0, 0
	for _, v := range o.volumes {
		if err := v.GatherTracingProbes(probe.Uninitialized); err != nil {
			return err
		}
		o.traced += v.TracedProbes()
		o.skipped += v.SkippedProbes()
	}

	env.Initializing = true
	o.initFrames--
	if err := o.trace(o.volumes, o.opts.GI.SceneInitRays, mask, env, adjust); err != nil {
		return err
	}
	if o.initFrames == 0 {
		o.logger.Debug("scene init complete", "frame", o.frame)
	}
	return nil
}

// trackCamera runs the camera-track burst for the volumes that scrolled.
// All passes complete within the frame so the exposed probes leave the
// uninitialized state before steady-state work; only the last pass
// classifies, the earlier ones refine offsets.
func (o *Orchestrator) trackCamera(vols []*volume.Volume, env tracer.Lighting) error {
	passes := max(1, o.opts.GI.CameraTrackFrames)
	env.Initializing = true
	for pass := passes; pass > 0; pass-- {
		o.phase(telemetry.PhaseGather)
		for _, v := range vols {
			if err := v.GatherTracingProbes(probe.Uninitialized); err != nil {
				return err
			}
		}
		if err := o.trace(vols, o.opts.GI.SceneInitRays, tracer.MaskStatic, env, pass > 1); err != nil {
			return err
		}
	}
	return nil
}

// trace generates rays for the gathered probes of vols into the shared
// buffers, traces and shades them, and integrates and classifies the
// results. It always runs the classification pass, even with nothing to
// trace, so state transitions are observed every frame.
func (o *Orchestrator) trace(vols []*volume.Volume, rays int, mask tracer.VisibilityMask, env tracer.Lighting, adjustOffsets bool) error {
	o.phase(telemetry.PhaseRays)
	height := 0
	for _, v := range vols {
		height += v.ProbeCount()
	}
	o.buffers.Resize(rays, height)
	if cap(o.dirs) < rays {
		o.dirs = make([]r3.Vec, rays)
	}
	dirs := o.dirs[:rays]
	tracer.Directions(dirs, tracer.RandomRotation(o.rng))

	offsets := make([]int, len(vols))
	off := 0
	for i, v := range vols {
		offsets[i] = off
		off += v.GenerateRays(&o.buffers, off, dirs)
	}

	if o.buffers.Used > 0 {
		o.phase(telemetry.PhaseTrace)
		rs, hits, radiance := o.buffers.Active()
		if err := o.tracer.Intersect(rs, mask, hits); err != nil {
			if errors.Is(err, tracer.ErrNoAccelerationStructure) {
				panic("gi: probes traced before the scene was bound to the ray tracer")
			}
			return fmt.Errorf("tracing probes: %w", err)
		}

		o.phase(telemetry.PhaseShade)
		o.shader.Shade(rs, hits, env, radiance)
		o.raysThisFrame += o.buffers.Used
	}

	for i, v := range vols {
		if v.Spec().EnableProbeUpdate {
			o.phase(telemetry.PhaseIntegrate)
			if err := v.UpdateProbes(&o.buffers, offsets[i]); err != nil {
				return fmt.Errorf("updating volume %q: %w", v.Name(), err)
			}
		}
		o.phase(telemetry.PhaseClassify)
		v.ComputeProbeOffsetsAndFlags(&o.buffers, offsets[i], adjustOffsets)
	}
	return nil
}

// advance ticks every volume's override countdowns once per frame.
func (o *Orchestrator) advance() {
	for _, v := range o.volumes {
		v.AdvanceFrame()
	}
}

func (o *Orchestrator) phase(name string) {
	if o.opts.Timer != nil {
		o.opts.Timer.StartPhase(name)
	}
}

// byRayBudget groups volumes sharing a ray count, preserving order.
func byRayBudget(vols []*volume.Volume) [][]*volume.Volume {
	var groups [][]*volume.Volume
	index := make(map[int]int)
	for _, v := range vols {
		rays := v.Spec().RaysPerProbe
		i, ok := index[rays]
		if !ok {
			i = len(groups)
			index[rays] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], v)
	}
	return groups
}

// OnGlobalLightChange notifies every volume of a large lighting change.
func (o *Orchestrator) OnGlobalLightChange() {
	for _, v := range o.volumes {
		v.OnGlobalLightChange()
	}
}

// OnSmallLightChange notifies every volume of a small lighting change.
func (o *Orchestrator) OnSmallLightChange() {
	for _, v := range o.volumes {
		v.OnSmallLightChange()
	}
}

// OnLargeObjectChange notifies every volume that large geometry changed.
func (o *Orchestrator) OnLargeObjectChange() {
	for _, v := range o.volumes {
		v.OnLargeObjectChange()
	}
}

// SetHysteresis changes the base hysteresis of every volume.
func (o *Orchestrator) SetHysteresis(h float64) {
	for _, v := range o.volumes {
		v.SetHysteresis(h)
	}
}

// SampleIrradiance reads the smallest volume containing pos. Positions
// outside every volume receive no indirect light.
func (o *Orchestrator) SampleIrradiance(pos, normal r3.Vec) r3.Vec {
	for _, v := range o.volumes {
		if v.Contains(pos) {
			return v.SampleIrradiance(pos, normal)
		}
	}
	return r3.Vec{}
}

// Volumes returns the live volumes, smallest first.
func (o *Orchestrator) Volumes() []*volume.Volume {
	return o.volumes
}

// InitializationFrames is the number of scene-init frames still pending.
func (o *Orchestrator) InitializationFrames() int {
	return o.initFrames
}

// RaysThisFrame is the number of rays traced by the last Update.
func (o *Orchestrator) RaysThisFrame() int {
	return o.raysThisFrame
}

// Frame is the number of Update calls so far.
func (o *Orchestrator) Frame() int {
	return o.frame
}

func (o *Orchestrator) totalProbes() int {
	n := 0
	for _, v := range o.volumes {
		n += v.ProbeCount()
	}
	return n
}

// Stats summarizes the last Update.
func (o *Orchestrator) Stats() telemetry.FrameStats {
	s := telemetry.FrameStats{
		Frame:             o.frame,
		Volumes:           len(o.volumes),
		Rays:              o.raysThisFrame,
		Traced:            o.traced,
		Skipped:           o.skipped,
		Scrolls:           o.scrolls,
		InitFramesPending: o.initFrames,
	}
	for _, v := range o.volumes {
		c := v.StateCounts()
		for st := range c {
			s.States[st] += c[st]
		}
		if v.Hysteresis().Active() {
			s.OverridesActive++
		}
	}
	return s
}
