// Package demo runs the GI orchestrator over the configured box scene with a
// moving camera. It drives both the headless runner and the windowed viewer.
package demo

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/probegi/camera"
	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/gi"
	"github.com/pthm-cable/probegi/parallel"
	"github.com/pthm-cable/probegi/scene"
	"github.com/pthm-cable/probegi/telemetry"
	"github.com/pthm-cable/probegi/tracer"
)

// Options configures a Demo.
type Options struct {
	Seed      int64
	OutputDir string // Empty disables CSV and snapshot output
	LogStats  bool   // Log every stats window
	Snapshot  bool   // Write an atlas snapshot of every volume on Close
	Logger    *slog.Logger
}

// Demo holds the complete demo state.
type Demo struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	pool     *parallel.Pool
	world    *scene.World
	tracer   *tracer.BoxTracer
	shader   *tracer.DirectShader
	orch     *gi.Orchestrator
	path     *camera.Path
	baseSun  tracer.Lighting
	lighting tracer.Lighting
	sunAngle float64

	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
	output    *telemetry.OutputManager
	last      telemetry.FrameStats

	loaded bool // Scene boxes marked static
}

// New builds the scene, tracer and orchestrator from cfg.
func New(cfg *config.Config, opts Options) (*Demo, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, err
	}

	d := &Demo{
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		pool:      parallel.New(cfg.Derived.Workers),
		world:     scene.FromConfig(cfg.Scene),
		perf:      telemetry.NewPerfCollector(),
		collector: telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		output:    output,
	}
	d.tracer = tracer.NewBoxTracer(d.pool)
	d.shader = tracer.NewDirectShader(d.tracer, d.pool)
	d.baseSun = gi.LightingFromConfig(cfg.Scene)
	d.lighting = d.baseSun
	d.path = camera.NewPath(cfg.Camera, d.world.SceneBounds())

	giOpts := gi.OptionsFromConfig(cfg)
	giOpts.Pool = d.pool
	giOpts.Logger = logger
	giOpts.Timer = d.perf
	giOpts.Seed = opts.Seed
	d.orch = gi.New(d.tracer, d.shader, d.world, giOpts)
	if cfg.Scene.Bounces {
		d.shader.SetSampler(d.orch)
	}

	logger.Info("demo created",
		"boxes", d.world.Len(),
		"volumes", len(cfg.Volumes),
		"workers", d.pool.Workers(),
		"seed", opts.Seed,
	)
	return d, nil
}

// Step runs one frame: scene motion, camera motion, GI update and telemetry.
func (d *Demo) Step() error {
	d.perf.StartUpdate()

	d.perf.StartPhase(telemetry.PhaseScene)
	d.world.Step(d.cfg.Camera.DT)
	boxes, mats := d.world.Geometry()
	d.tracer.Bind(boxes, mats)

	d.perf.StartPhase(telemetry.PhaseCamera)
	cam := d.path.Step()

	if err := d.orch.Update(gi.Frame{Camera: cam, Lighting: d.lighting}); err != nil {
		return fmt.Errorf("frame %d: %w", d.orch.Frame(), err)
	}

	// Boxes count as loaded once the first frame has seen them.
	if !d.loaded {
		d.world.MarkAllStatic()
		d.loaded = true
	}

	d.perf.StartPhase(telemetry.PhaseTelemetry)
	d.last = d.orch.Stats()
	d.flushTelemetry()

	d.perf.EndUpdate()
	return nil
}

// SetSunAngle rotates the sun about the vertical axis, in radians. A change
// is reported to the volumes as a global light change.
func (d *Demo) SetSunAngle(angle float64) {
	if math.Abs(angle-d.sunAngle) < 1e-9 {
		return
	}
	d.sunAngle = angle
	d.lighting = gi.RotateSun(d.baseSun, angle)
	d.orch.OnGlobalLightChange()
}

// SunAngle returns the current sun rotation in radians.
func (d *Demo) SunAngle() float64 {
	return d.sunAngle
}

// Orchestrator returns the GI orchestrator.
func (d *Demo) Orchestrator() *gi.Orchestrator {
	return d.orch
}

// World returns the scene.
func (d *Demo) World() *scene.World {
	return d.world
}

// Camera returns the camera path.
func (d *Demo) Camera() *camera.Path {
	return d.path
}

// Perf returns the performance collector.
func (d *Demo) Perf() *telemetry.PerfCollector {
	return d.perf
}

// LastStats returns the statistics of the last frame.
func (d *Demo) LastStats() telemetry.FrameStats {
	return d.last
}

// Close writes final snapshots when requested, then closes output files and
// stops the worker pool.
func (d *Demo) Close() error {
	if d.opts.Snapshot {
		d.writeSnapshots()
	}
	d.pool.Stop()
	return d.output.Close()
}
