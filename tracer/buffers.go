package tracer

import "gonum.org/v1/gonum/spatial/r3"

// RayBuffers are the ray, hit and radiance buffers shared by every volume.
//
// Width is the rays per probe of the current pass and Height the total
// number of probes across volumes. Each volume writes its traced probes at a
// running offset, one row of Width rays per traced probe.
type RayBuffers struct {
	Width  int
	Height int

	Rays     []Ray
	Hits     []Hit
	Radiance []r3.Vec

	// Used is the number of rays written this pass.
	Used int
}

// Resize makes room for width*height rays, reusing storage when possible.
func (b *RayBuffers) Resize(width, height int) {
	n := width * height
	if cap(b.Rays) < n {
		b.Rays = make([]Ray, n)
		b.Hits = make([]Hit, n)
		b.Radiance = make([]r3.Vec, n)
	}
	b.Rays = b.Rays[:n]
	b.Hits = b.Hits[:n]
	b.Radiance = b.Radiance[:n]
	b.Width = width
	b.Height = height
	b.Used = 0
}

// RaysPerProbe is the row stride of the current pass.
func (b *RayBuffers) RaysPerProbe() int {
	return b.Width
}

// Capacity returns the number of ray slots.
func (b *RayBuffers) Capacity() int {
	return len(b.Rays)
}

// Active returns the written prefix of each buffer.
func (b *RayBuffers) Active() ([]Ray, []Hit, []r3.Vec) {
	return b.Rays[:b.Used], b.Hits[:b.Used], b.Radiance[:b.Used]
}
