package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/tracer"
)

// backfaceDistanceScale shortens backface hits so probes inside geometry
// see themselves as occluded.
const backfaceDistanceScale = 0.2

// raySample is one traced ray reduced to what the blend needs.
type raySample struct {
	dir      r3.Vec
	radiance r3.Vec
	dist     float64
}

// UpdateProbes blends the traced rays of every scheduled probe into its
// irradiance and visibility tiles, then refreshes all tile borders.
//
// The rays of the probe in slot s start at offset + s*buf.RaysPerProbe().
// Calling it without a ray batch is a programming error and panics.
func (v *Volume) UpdateProbes(buf *tracer.RayBuffers, offset int) error {
	if buf == nil {
		panic("volume: UpdateProbes called before any ray batch was traced")
	}
	if v.stale {
		panic("volume: UpdateProbes on a volume that is not allocated")
	}
	if v.spec.IrradianceResolution != KernelIrradianceResolution ||
		v.spec.VisibilityResolution != KernelVisibilityResolution {
		return fmt.Errorf("%w: irradiance %d, visibility %d (kernel supports %d and %d)",
			ErrUnsupportedResolution,
			v.spec.IrradianceResolution, v.spec.VisibilityResolution,
			KernelIrradianceResolution, KernelVisibilityResolution)
	}

	rays := buf.RaysPerProbe()
	if end := offset + len(v.traced)*rays; end > buf.Used {
		panic(fmt.Sprintf("volume: ray batch covers %d rays, traced probes need %d", buf.Used, end))
	}

	irrH, visH := v.hysteresis.Effective(v.spec.Hysteresis, v.firstFrame)

	workers := v.pool.Workers()
	if len(v.scratch) < workers {
		v.scratch = make([][]raySample, workers)
	}
	v.pool.Run(len(v.traced), func(start, end, chunk int) {
		if cap(v.scratch[chunk]) < rays {
			v.scratch[chunk] = make([]raySample, rays)
		}
		samples := v.scratch[chunk][:rays]
		for slot := start; slot < end; slot++ {
			id := v.traced[slot]
			v.loadSamples(buf, offset+slot*rays, samples)
			h1, h2 := irrH, visH
			if !v.valid[id] {
				h1, h2 = 0, 0
			}
			v.integrateIrradiance(id, samples, h1)
			v.integrateVisibility(id, samples, h2)
			v.valid[id] = true
		}
	})

	v.irradiance.CopyAllBorders()
	v.visibility.CopyAllBorders()
	return nil
}

func (v *Volume) loadSamples(buf *tracer.RayBuffers, base int, out []raySample) {
	for r := range out {
		h := buf.Hits[base+r]
		s := raySample{dir: buf.Rays[base+r].Dir, radiance: buf.Radiance[base+r]}
		switch {
		case h.Miss():
			s.dist = v.maxDistance
		case h.Backface():
			s.radiance = r3.Vec{}
			s.dist = math.Min(-h.Distance*backfaceDistanceScale, v.maxDistance)
		default:
			s.dist = math.Min(h.Distance, v.maxDistance)
		}
		out[r] = s
	}
}

func (v *Volume) integrateIrradiance(id int, samples []raySample, hyst float64) {
	a := v.irradiance
	n := a.Side
	tx, ty := a.TileOrigin(v.grid.GridIndex(id), v.spec.ProbeCounts)
	invGamma := 1 / v.spec.IrradianceGamma

	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			texelDir := v.irradianceDirs[j*n+i]
			var sum r3.Vec
			var wsum float64
			for _, s := range samples {
				w := r3.Dot(texelDir, s.dir)
				if w <= 0 {
					continue
				}
				sum = r3.Add(sum, r3.Scale(w, s.radiance))
				wsum += w
			}

			texel := a.Texel(tx+1+i, ty+1+j)
			if wsum <= 0 {
				if hyst == 0 {
					texel[0], texel[1], texel[2] = 0, 0, 0
				}
				continue
			}
			sum = r3.Scale(1/wsum, sum)
			texel[0] = blend(math.Pow(math.Max(0, sum.X), invGamma), texel[0], hyst)
			texel[1] = blend(math.Pow(math.Max(0, sum.Y), invGamma), texel[1], hyst)
			texel[2] = blend(math.Pow(math.Max(0, sum.Z), invGamma), texel[2], hyst)
		}
	}
}

func (v *Volume) integrateVisibility(id int, samples []raySample, hyst float64) {
	a := v.visibility
	n := a.Side
	tx, ty := a.TileOrigin(v.grid.GridIndex(id), v.spec.ProbeCounts)

	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			texelDir := v.visibilityDirs[j*n+i]
			var mean, mean2, wsum float64
			for _, s := range samples {
				d := r3.Dot(texelDir, s.dir)
				if d <= 0 {
					continue
				}
				w := math.Pow(d, v.spec.DepthSharpness)
				mean += w * s.dist
				mean2 += w * s.dist * s.dist
				wsum += w
			}

			texel := a.Texel(tx+1+i, ty+1+j)
			if wsum <= 0 {
				if hyst == 0 {
					texel[0], texel[1] = 0, 0
				}
				continue
			}
			texel[0] = blend(mean/wsum, texel[0], hyst)
			texel[1] = blend(mean2/wsum, texel[1], hyst)
		}
	}
}

// blend is lerp(traced, old, h). With h == 0 old is never read, so garbage
// history cannot leak into a first update.
func blend(traced float64, old float32, h float64) float32 {
	if h == 0 {
		return float32(traced)
	}
	return float32(traced*(1-h) + float64(old)*h)
}
