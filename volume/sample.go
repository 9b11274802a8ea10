package volume

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/probe"
)

// minChebyshevWeight keeps probes behind thin occluders from vanishing entirely.
const minChebyshevWeight = 0.05

// SampleIrradiance reconstructs irradiance at pos for a surface facing
// normal, blending the eight surrounding probes by trilinear weight,
// facing and a Chebyshev visibility test. Probes that are off or have never
// been integrated do not contribute.
func (v *Volume) SampleIrradiance(pos, normal r3.Vec) r3.Vec {
	if v.stale {
		return r3.Vec{}
	}
	g := &v.grid
	recs := v.states.Device()
	base := g.BaseProbe(pos)
	alpha := r3.Sub(pos, g.At(base))
	alpha = r3.Vec{
		X: fraction(alpha.X, g.Spacing.X),
		Y: fraction(alpha.Y, g.Spacing.Y),
		Z: fraction(alpha.Z, g.Spacing.Z),
	}

	var sum r3.Vec
	var wsum float64
	for i := 0; i < 8; i++ {
		off := probe.Int3{X: i & 1, Y: (i >> 1) & 1, Z: (i >> 2) & 1}
		lc := probe.Int3{
			X: min(base.X+off.X, g.Counts.X-1),
			Y: min(base.Y+off.Y, g.Counts.Y-1),
			Z: min(base.Z+off.Z, g.Counts.Z-1),
		}
		id := g.Physical(lc)
		rec := recs[id]
		if rec.State == probe.Off || !v.valid[id] {
			continue
		}

		toProbe := r3.Sub(v.probePosition(id, rec), pos)
		dist := r3.Norm(toProbe)
		dir := normal
		if dist > 0 {
			dir = r3.Scale(1/dist, toProbe)
		}

		facing := (r3.Dot(dir, normal) + 1) / 2
		w := facing*facing + 0.2

		vis := v.visibility.sampleTile(g.GridIndex(id), g.Counts, r3.Scale(-1, dir))
		mean, mean2 := vis[0], vis[1]
		if dist > mean {
			variance := math.Abs(mean2 - mean*mean)
			diff := dist - mean
			cheb := variance / (variance + diff*diff)
			w *= math.Max(minChebyshevWeight, cheb*cheb*cheb)
		}

		tri := weight(alpha.X, off.X) * weight(alpha.Y, off.Y) * weight(alpha.Z, off.Z)
		w = math.Max(w, 1e-6) * tri
		if w == 0 {
			continue
		}

		enc := v.irradiance.sampleTile(g.GridIndex(id), g.Counts, normal)
		gamma := v.spec.IrradianceGamma
		irr := r3.Vec{X: math.Pow(enc[0], gamma), Y: math.Pow(enc[1], gamma), Z: math.Pow(enc[2], gamma)}
		sum = r3.Add(sum, r3.Scale(w, irr))
		wsum += w
	}
	if wsum == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/wsum, sum)
}

// sampleTile bilinearly filters the tile of physical probe p in direction
// dir. The border ring makes the footprint valid up to the tile edge.
func (a *Atlas) sampleTile(p, counts probe.Int3, dir r3.Vec) [3]float64 {
	tx, ty := a.TileOrigin(p, counts)
	u, v := OctEncode(dir)
	n := float64(a.Side)
	x := (u+1)/2*n + 0.5
	y := (v+1)/2*n + 0.5
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)

	var out [3]float64
	for c := 0; c < a.Channels && c < 3; c++ {
		t00 := float64(a.Texel(tx+ix, ty+iy)[c])
		t10 := float64(a.Texel(tx+ix+1, ty+iy)[c])
		t01 := float64(a.Texel(tx+ix, ty+iy+1)[c])
		t11 := float64(a.Texel(tx+ix+1, ty+iy+1)[c])
		top := t00 + (t10-t00)*fx
		bottom := t01 + (t11-t01)*fx
		out[c] = top + (bottom-top)*fy
	}
	return out
}

func fraction(d, spacing float64) float64 {
	if spacing <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, d/spacing))
}

func weight(alpha float64, off int) float64 {
	if off == 1 {
		return alpha
	}
	return 1 - alpha
}
