// Package volume implements a probe volume: its grid, atlases, state store,
// ray scheduling, integration, scrolling and dynamic-object invalidation.
package volume

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/parallel"
	"github.com/pthm-cable/probegi/probe"
)

// The integration kernel is specialized for these tile sides.
const (
	KernelIrradianceResolution = 8
	KernelVisibilityResolution = 16
)

// maxDistanceScale pads the per-probe cell diagonal to get the largest
// distance the visibility atlas records.
const maxDistanceScale = 1.5

var (
	// ErrUnsupportedResolution is returned when integrating with tile sides
	// the kernel is not specialized for.
	ErrUnsupportedResolution = errors.New("volume: unsupported probe resolution")
	// ErrAllocation is returned when the atlases would exceed the texture ceiling.
	ErrAllocation = errors.New("volume: atlas allocation failed")
)

// Options carries the dependencies of a volume.
type Options struct {
	MaxTexels int
	Overrides OverrideConstants
	Pool      *parallel.Pool
	Logger    *slog.Logger
	Camera    r3.Vec // Center of camera-locked volumes
}

// Volume is a live probe volume. It exclusively owns its atlases, state
// buffer and ray slots.
type Volume struct {
	spec        Specification
	grid        probe.Grid
	maxDistance float64
	maxTexels   int

	irradiance *Atlas     // RGB, gamma encoded
	visibility *Atlas     // mean distance, mean squared distance
	states     *probe.StageBuffer
	valid      []bool // Probe has been integrated since its last reset
	raySlots   []int
	skipped    int
	traced     []int // Probe ids in slot order

	irradianceDirs []r3.Vec
	visibilityDirs []r3.Vec
	scratch        [][]raySample // Per-worker ray samples

	hysteresis Hysteresis
	firstFrame bool
	sleeping   bool
	stale      bool

	pool   *parallel.Pool
	logger *slog.Logger
}

// New derives the grid for spec. Storage is allocated by ResizeIfNeeded.
func New(spec Specification, opts Options) *Volume {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	spec = spec.Normalize(opts.MaxTexels, logger)

	if spec.CameraLocked {
		shift := r3.Sub(opts.Camera, r3.Scale(0.5, r3.Add(spec.Bounds.Min, spec.Bounds.Max)))
		spec.Bounds = r3.Box{Min: r3.Add(spec.Bounds.Min, shift), Max: r3.Add(spec.Bounds.Max, shift)}
	}

	v := &Volume{
		spec:       spec,
		maxTexels:  opts.MaxTexels,
		hysteresis: NewHysteresis(opts.Overrides),
		sleeping:   true,
		stale:      true,
		firstFrame: true,
		pool:       opts.Pool,
		logger:     logger.With("volume", spec.Name),
	}
	v.rebuildGrid()
	return v
}

func (v *Volume) rebuildGrid() {
	v.grid = probe.NewGrid(v.spec.Bounds, v.spec.ProbeCounts)
	extent := r3.Sub(v.spec.Bounds.Max, v.spec.Bounds.Min)
	perProbe := r3.Vec{
		X: extent.X / float64(v.spec.ProbeCounts.X),
		Y: extent.Y / float64(v.spec.ProbeCounts.Y),
		Z: extent.Z / float64(v.spec.ProbeCounts.Z),
	}
	v.maxDistance = r3.Norm(perProbe) * maxDistanceScale
}

// ResizeIfNeeded allocates atlases and state storage when the volume is new
// or its resolution changed, resetting every probe to uninitialized.
func (v *Volume) ResizeIfNeeded() error {
	if !v.stale {
		return nil
	}
	counts := v.spec.ProbeCounts
	for _, side := range []int{v.spec.IrradianceResolution, v.spec.VisibilityResolution} {
		w, h := AtlasSize(counts, side)
		if w*h > v.maxTexels && v.maxTexels > 0 {
			return fmt.Errorf("%w: %dx%d atlas exceeds %d texels", ErrAllocation, w, h, v.maxTexels)
		}
	}

	n := counts.Product()
	v.irradiance = newAtlas(counts, v.spec.IrradianceResolution, 3)
	v.visibility = newAtlas(counts, v.spec.VisibilityResolution, 2)
	v.states = probe.NewStageBuffer(n)
	v.valid = make([]bool, n)
	v.raySlots = make([]int, n)
	v.traced = v.traced[:0]
	v.skipped = 0
	v.irradianceDirs = texelDirections(v.spec.IrradianceResolution)
	v.visibilityDirs = texelDirections(v.spec.VisibilityResolution)
	v.firstFrame = true
	v.stale = false

	v.logger.Debug("volume allocated",
		"probes", n,
		"irradiance_atlas", [2]int{v.irradiance.Width, v.irradiance.Height},
		"visibility_atlas", [2]int{v.visibility.Width, v.visibility.Height},
	)
	return nil
}

// SetResolution changes the tile sides; storage is rebuilt on the next resize.
func (v *Volume) SetResolution(irradiance, visibility int) {
	if irradiance == v.spec.IrradianceResolution && visibility == v.spec.VisibilityResolution {
		return
	}
	v.spec.IrradianceResolution = irradiance
	v.spec.VisibilityResolution = visibility
	v.spec = v.spec.Normalize(v.maxTexels, v.logger)
	v.rebuildGrid()
	v.stale = true
}

// Stale reports whether storage must be (re)allocated before use.
func (v *Volume) Stale() bool {
	return v.stale
}

// OnGlobalLightChange forwards to the override countdowns.
func (v *Volume) OnGlobalLightChange() {
	v.hysteresis.OnGlobalLightChange()
}

// OnSmallLightChange forwards to the override countdowns.
func (v *Volume) OnSmallLightChange() {
	v.hysteresis.OnSmallLightChange()
}

// OnLargeObjectChange forwards to the override countdowns.
func (v *Volume) OnLargeObjectChange() {
	v.hysteresis.OnLargeObjectChange()
}

// AdvanceFrame ticks the override countdowns once. Call exactly once per frame.
func (v *Volume) AdvanceFrame() {
	v.hysteresis.Tick()
}

// SetHysteresis changes the base blend weight of history, clamped to [0,1].
func (v *Volume) SetHysteresis(h float64) {
	v.spec.Hysteresis = math.Max(0, math.Min(1, h))
}

// Name returns the volume name.
func (v *Volume) Name() string { return v.spec.Name }

// Spec returns the normalized specification.
func (v *Volume) Spec() Specification { return v.spec }

// Grid returns a copy of the current grid, including scroll phase.
func (v *Volume) Grid() probe.Grid { return v.grid }

// ProbeCount returns the number of probes.
func (v *Volume) ProbeCount() int { return v.spec.ProbeCounts.Product() }

// MaxDistance is the largest distance stored in the visibility atlas.
func (v *Volume) MaxDistance() float64 { return v.maxDistance }

// Irradiance returns the irradiance atlas (nil before allocation).
func (v *Volume) Irradiance() *Atlas { return v.irradiance }

// Visibility returns the visibility atlas (nil before allocation).
func (v *Volume) Visibility() *Atlas { return v.visibility }

// States returns the probe state buffer (nil before allocation).
func (v *Volume) States() *probe.StageBuffer { return v.states }

// Hysteresis exposes the override countdowns.
func (v *Volume) Hysteresis() *Hysteresis { return &v.hysteresis }

// FirstFrame reports whether the volume has not completed a traced pass.
func (v *Volume) FirstFrame() bool { return v.firstFrame }

// BoundsVolume returns the volume of the specification bounds.
func (v *Volume) BoundsVolume() float64 { return BoxVolume(v.spec.Bounds) }

// Contains reports whether pos lies within the probe grid inflated by half
// a spacing.
func (v *Volume) Contains(pos r3.Vec) bool {
	b := v.grid.Bounds()
	half := r3.Scale(0.5, v.grid.Spacing)
	return inside(pos, r3.Box{Min: r3.Sub(b.Min, half), Max: r3.Add(b.Max, half)})
}

// Probe returns the state record and world position (offset applied) of id.
func (v *Volume) Probe(id int) (probe.Record, r3.Vec) {
	rec := v.states.Device()[id]
	return rec, v.probePosition(id, rec)
}

// StateCounts tallies probes per state.
func (v *Volume) StateCounts() [probe.NumStates]int {
	if v.states == nil {
		return [probe.NumStates]int{}
	}
	return v.states.Counts()
}

// probePosition applies the quantized offset to the grid position.
func (v *Volume) probePosition(id int, rec probe.Record) r3.Vec {
	p := v.grid.Position(id)
	if rec.Offset == [3]int8{} {
		return p
	}
	return r3.Add(p, v.decodeOffset(rec.Offset))
}

func (v *Volume) decodeOffset(q [3]int8) r3.Vec {
	l := v.spec.ProbeOffsetLimit / 127
	return r3.Vec{
		X: float64(q[0]) * l * v.grid.Spacing.X,
		Y: float64(q[1]) * l * v.grid.Spacing.Y,
		Z: float64(q[2]) * l * v.grid.Spacing.Z,
	}
}

func (v *Volume) encodeOffset(o r3.Vec) [3]int8 {
	q := func(x, s float64) int8 {
		lim := v.spec.ProbeOffsetLimit * s
		if lim <= 0 {
			return 0
		}
		return int8(math.Round(math.Max(-1, math.Min(1, x/lim)) * 127))
	}
	return [3]int8{
		q(o.X, v.grid.Spacing.X),
		q(o.Y, v.grid.Spacing.Y),
		q(o.Z, v.grid.Spacing.Z),
	}
}
