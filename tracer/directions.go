package tracer

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// goldenAngle is the azimuth increment between Fibonacci points.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// SphericalFibonacci returns the i-th of n nearly uniform unit directions.
func SphericalFibonacci(i, n int) r3.Vec {
	z := 1 - (2*float64(i)+1)/float64(n)
	r := math.Sqrt(math.Max(0, 1-z*z))
	phi := goldenAngle * float64(i)
	return r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
}

// Rotation is a 3x3 rotation matrix in row-major order.
type Rotation [3][3]float64

// Identity is the zero rotation.
var Identity = Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// AxisAngle builds a rotation of angle radians about a unit axis.
func AxisAngle(axis r3.Vec, angle float64) Rotation {
	a := r3.Unit(axis)
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return Rotation{
		{t*a.X*a.X + c, t*a.X*a.Y - s*a.Z, t*a.X*a.Z + s*a.Y},
		{t*a.X*a.Y + s*a.Z, t*a.Y*a.Y + c, t*a.Y*a.Z - s*a.X},
		{t*a.X*a.Z - s*a.Y, t*a.Y*a.Z + s*a.X, t*a.Z*a.Z + c},
	}
}

// RandomRotation draws a rotation about a uniformly random axis.
func RandomRotation(rng *rand.Rand) Rotation {
	axis := SphericalFibonacci(rng.Intn(1024), 1024)
	return AxisAngle(axis, rng.Float64()*2*math.Pi)
}

// Apply rotates v.
func (m Rotation) Apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Directions fills out with n rotated Fibonacci directions.
func Directions(out []r3.Vec, rot Rotation) {
	n := len(out)
	for i := range out {
		out[i] = rot.Apply(SphericalFibonacci(i, n))
	}
}
