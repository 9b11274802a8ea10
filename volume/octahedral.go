package volume

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// OctEncode maps a unit direction to the octahedral square [-1,1]².
func OctEncode(d r3.Vec) (u, v float64) {
	l1 := math.Abs(d.X) + math.Abs(d.Y) + math.Abs(d.Z)
	if l1 == 0 {
		return 0, 0
	}
	u, v = d.X/l1, d.Y/l1
	if d.Z < 0 {
		u, v = (1-math.Abs(v))*signNotZero(u), (1-math.Abs(u))*signNotZero(v)
	}
	return u, v
}

// OctDecode maps a point of the octahedral square back to a unit direction.
func OctDecode(u, v float64) r3.Vec {
	d := r3.Vec{X: u, Y: v, Z: 1 - math.Abs(u) - math.Abs(v)}
	if d.Z < 0 {
		d.X, d.Y = (1-math.Abs(v))*signNotZero(u), (1-math.Abs(u))*signNotZero(v)
	}
	return r3.Unit(d)
}

// texelDirections returns the direction through the center of every
// interior texel of a side×side tile, row-major.
func texelDirections(side int) []r3.Vec {
	dirs := make([]r3.Vec, side*side)
	for j := 0; j < side; j++ {
		for i := 0; i < side; i++ {
			u := (float64(i)+0.5)/float64(side)*2 - 1
			v := (float64(j)+0.5)/float64(side)*2 - 1
			dirs[j*side+i] = OctDecode(u, v)
		}
	}
	return dirs
}

func signNotZero(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
