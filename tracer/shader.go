package tracer

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/parallel"
)

// shadowEpsilon lifts secondary ray origins off the surface.
const shadowEpsilon = 1e-3

// DirectShader shades hits with sky light, one sun with a shadow ray,
// emission, and optionally one bounce read back from the probe field.
type DirectShader struct {
	tracer  *BoxTracer
	sampler IrradianceSampler
	pool    *parallel.Pool
}

// NewDirectShader creates a shader that casts shadow rays through t.
func NewDirectShader(t *BoxTracer, pool *parallel.Pool) *DirectShader {
	return &DirectShader{tracer: t, pool: pool}
}

// SetSampler enables multi-bounce shading from the given field. nil disables it.
func (s *DirectShader) SetSampler(sampler IrradianceSampler) {
	s.sampler = sampler
}

// Shade writes the radiance leaving each hit toward its ray origin.
func (s *DirectShader) Shade(rays []Ray, hits []Hit, env Lighting, out []r3.Vec) {
	sun := r3.Unit(env.SunDirection)
	bounce := s.sampler != nil && !env.Initializing
	s.pool.Run(len(rays), func(start, end, _ int) {
		for i := start; i < end; i++ {
			out[i] = s.shadeOne(hits[i], sun, env, bounce)
		}
	})
}

func (s *DirectShader) shadeOne(h Hit, sun r3.Vec, env Lighting, bounce bool) r3.Vec {
	if h.Miss() {
		return env.SkyColor
	}
	if h.Backface() {
		return r3.Vec{}
	}

	m := s.tracer.Material(h.Material)
	lifted := r3.Add(h.Position, r3.Scale(shadowEpsilon, h.Normal))

	var light r3.Vec
	if cos := r3.Dot(h.Normal, sun); cos > 0 && !s.tracer.Occluded(lifted, sun, maxShadowDistance, MaskAll) {
		light = r3.Scale(cos, env.SunColor)
	}
	if bounce {
		light = r3.Add(light, s.sampler.SampleIrradiance(lifted, h.Normal))
	}

	return r3.Add(m.Emissive, mulElem(m.Albedo, light))
}

// maxShadowDistance bounds shadow rays toward the sun.
const maxShadowDistance = 1e6

func mulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}
