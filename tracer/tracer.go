// Package tracer defines the ray-trace and shading boundaries consumed by the
// probe volumes, plus CPU reference implementations over axis-aligned boxes.
package tracer

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoAccelerationStructure is reported when intersecting before a scene is bound.
var ErrNoAccelerationStructure = errors.New("tracer: no acceleration structure bound")

// Ray is one probe ray. Direction is unit length.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
	TMin   float64
	TMax   float64
}

// Hit is the intersection result for one ray.
// Distance is signed: negative when the ray hit a back face, +Inf on a miss.
type Hit struct {
	Position r3.Vec
	Normal   r3.Vec
	Distance float64
	Material int
}

// Miss reports whether the ray escaped the scene.
func (h Hit) Miss() bool {
	return math.IsInf(h.Distance, 1)
}

// Backface reports whether the ray hit the inside of geometry.
func (h Hit) Backface() bool {
	return h.Distance < 0
}

// MissHit is the value written for rays that escape.
var MissHit = Hit{Distance: math.Inf(1), Material: -1}

// VisibilityMask selects which geometry a trace sees.
type VisibilityMask uint8

const (
	MaskStatic       VisibilityMask = 1 << iota // Geometry marked as never moving
	MaskDynamic                                 // Geometry with motion
	MaskUnclassified                            // Loaded but not yet marked either way
	MaskAll          = MaskStatic | MaskDynamic | MaskUnclassified
)

// Lighting is the lighting state handed to the shader.
type Lighting struct {
	SunDirection r3.Vec // Unit vector toward the sun
	SunColor     r3.Vec
	SkyColor     r3.Vec

	// Initializing disables sampling of the previous irradiance field at hits.
	Initializing bool
}

// RayTracer intersects a batch of rays.
type RayTracer interface {
	Intersect(rays []Ray, mask VisibilityMask, hits []Hit) error
}

// Shader converts hits into outgoing radiance toward the ray origin.
type Shader interface {
	Shade(rays []Ray, hits []Hit, env Lighting, out []r3.Vec)
}

// IrradianceSampler looks up the current probe field for multi-bounce shading.
type IrradianceSampler interface {
	SampleIrradiance(pos, normal r3.Vec) r3.Vec
}
