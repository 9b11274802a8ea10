package gi

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/tracer"
)

// LightingFromConfig builds the shader lighting for the demo scene.
func LightingFromConfig(c config.SceneConfig) tracer.Lighting {
	return tracer.Lighting{
		SunDirection: r3.Unit(vec(c.SunDirection)),
		SunColor:     vec(c.SunColor),
		SkyColor:     vec(c.SkyColor),
	}
}

// RotateSun turns the sun about the vertical axis by angle radians.
func RotateSun(l tracer.Lighting, angle float64) tracer.Lighting {
	l.SunDirection = tracer.AxisAngle(r3.Vec{Y: 1}, angle).Apply(l.SunDirection)
	return l
}

func vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
