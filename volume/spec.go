package volume

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/probe"
)

// Specification is the immutable configuration of one probe volume.
type Specification struct {
	Name   string
	Bounds r3.Box

	ProbeCounts          probe.Int3
	MaxProbeDistance     float64 // Nonzero derives ProbeCounts from the bounds
	IrradianceResolution int // Octahedral tile side, without border
	VisibilityResolution int

	SelfShadowBias   float64
	Hysteresis       float64
	DepthSharpness   float64
	RaysPerProbe     int
	ProbeOffsetLimit float64 // Fraction of a spacing a probe may be moved
	IrradianceGamma  float64

	CameraLocked                  bool
	EncloseBounds                 bool
	EnableProbeOffsetOptimization bool
	EnableProbeUpdate             bool
	DetectLargeObjectMotion       bool
	GlossyToMatte                 bool
}

// DefaultSpecification returns the reference defaults with empty bounds.
func DefaultSpecification() Specification {
	return Specification{
		ProbeCounts:                   probe.Int3{X: 8, Y: 4, Z: 8},
		IrradianceResolution:          8,
		VisibilityResolution:          16,
		SelfShadowBias:                0.3,
		Hysteresis:                    0.98,
		DepthSharpness:                50,
		RaysPerProbe:                  256,
		ProbeOffsetLimit:              0.5,
		IrradianceGamma:               5,
		EncloseBounds:                 true,
		EnableProbeOffsetOptimization: true,
		EnableProbeUpdate:             true,
		DetectLargeObjectMotion:       true,
	}
}

// SpecificationFromConfig converts a loaded volume entry.
func SpecificationFromConfig(c config.VolumeConfig) Specification {
	return Specification{
		Name: c.Name,
		Bounds: r3.Box{
			Min: r3.Vec{X: c.BoundsMin[0], Y: c.BoundsMin[1], Z: c.BoundsMin[2]},
			Max: r3.Vec{X: c.BoundsMax[0], Y: c.BoundsMax[1], Z: c.BoundsMax[2]},
		},
		ProbeCounts:                   probe.Int3{X: c.ProbeCounts[0], Y: c.ProbeCounts[1], Z: c.ProbeCounts[2]},
		MaxProbeDistance:              c.MaxProbeDistance,
		IrradianceResolution:          c.IrradianceResolution,
		VisibilityResolution:          c.VisibilityResolution,
		SelfShadowBias:                c.SelfShadowBias,
		Hysteresis:                    c.Hysteresis,
		DepthSharpness:                c.DepthSharpness,
		RaysPerProbe:                  c.RaysPerProbe,
		ProbeOffsetLimit:              c.ProbeOffsetLimit,
		IrradianceGamma:               c.IrradianceGamma,
		CameraLocked:                  c.CameraLocked,
		EncloseBounds:                 config.Flag(c.EncloseBounds),
		EnableProbeOffsetOptimization: config.Flag(c.EnableProbeOffsetOptimization),
		EnableProbeUpdate:             config.Flag(c.EnableProbeUpdate),
		DetectLargeObjectMotion:       config.Flag(c.DetectLargeObjectMotion),
		GlossyToMatte:                 c.GlossyToMatte,
	}
}

// Normalize clamps the specification into what the integrator and the
// texture ceiling support. Reductions are logged, never rejected.
func (s Specification) Normalize(maxTexels int, logger *slog.Logger) Specification {
	if logger == nil {
		logger = slog.Default()
	}

	s.RaysPerProbe = roundUpRays(s.RaysPerProbe)
	if s.MaxProbeDistance > 0 && !s.Degenerate() {
		s.ProbeCounts = countsForSpacing(s.Bounds, s.MaxProbeDistance)
	}
	s.ProbeCounts = probe.Int3{
		X: ceilPow2(s.ProbeCounts.X),
		Y: ceilPow2(s.ProbeCounts.Y),
		Z: ceilPow2(s.ProbeCounts.Z),
	}
	if s.IrradianceResolution < 1 {
		s.IrradianceResolution = 1
	}
	if s.VisibilityResolution < 1 {
		s.VisibilityResolution = 1
	}
	if s.Hysteresis < 0 {
		s.Hysteresis = 0
	}
	if s.Hysteresis >= 1 {
		s.Hysteresis = 0.999
	}
	if s.IrradianceGamma <= 0 {
		s.IrradianceGamma = 1
	}
	s.ProbeOffsetLimit = math.Max(0, math.Min(1, s.ProbeOffsetLimit))

	if maxTexels <= 0 {
		return s
	}
	original := s.ProbeCounts
	for s.exceeds(maxTexels) {
		c := s.ProbeCounts
		if c.Y > 8 {
			c.Y /= 2
		} else if c.X > 1 || c.Z > 1 {
			c.X = max(1, c.X/2)
			c.Z = max(1, c.Z/2)
		} else if c.Y > 1 {
			c.Y /= 2
		} else {
			break
		}
		s.ProbeCounts = c
	}
	if s.ProbeCounts != original {
		logger.Warn("probe counts reduced to fit texture ceiling",
			"volume", s.Name,
			"requested", original,
			"reduced", s.ProbeCounts,
			"max_texels", maxTexels,
		)
	}
	return s
}

// exceeds reports whether either atlas would pass the texel ceiling.
func (s Specification) exceeds(maxTexels int) bool {
	n := s.ProbeCounts.Product()
	irr := s.IrradianceResolution + 2
	vis := s.VisibilityResolution + 2
	return n*irr*irr > maxTexels || n*vis*vis > maxTexels
}

// Degenerate reports whether the bounds enclose no volume.
func (s Specification) Degenerate() bool {
	return BoxVolume(s.Bounds) <= 0
}

// ResolveBounds substitutes default bounds for a degenerate specification.
// Enclosing volumes take the circumscribed box, others the inscribed one.
func (s Specification) ResolveBounds(inscribed, circumscribed r3.Box) Specification {
	if !s.Degenerate() {
		return s
	}
	if s.EncloseBounds {
		s.Bounds = circumscribed
	} else {
		s.Bounds = inscribed
	}
	return s
}

// BoxVolume returns the volume of b, zero when inverted or flat.
func BoxVolume(b r3.Box) float64 {
	d := r3.Sub(b.Max, b.Min)
	if d.X <= 0 || d.Y <= 0 || d.Z <= 0 {
		return 0
	}
	return d.X * d.Y * d.Z
}

// countsForSpacing divides the extent of b by d per axis, truncating.
// Normalize rounds the result up to powers of two.
func countsForSpacing(b r3.Box, d float64) probe.Int3 {
	e := r3.Sub(b.Max, b.Min)
	return probe.Int3{X: int(e.X / d), Y: int(e.Y / d), Z: int(e.Z / d)}
}

// roundUpRays rounds up to a multiple of 32, at least 32.
func roundUpRays(n int) int {
	if n < 32 {
		return 32
	}
	return (n + 31) / 32 * 32
}

func ceilPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func log2(n int) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}
