package volume

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// selfShadowBiasScale converts the configured bias into world units
// together with the smallest probe spacing.
const selfShadowBiasScale = 0.75

// UniformTable collects named shader arguments and macros.
type UniformTable struct {
	Args   map[string]any
	Macros map[string]string
}

// NewUniformTable creates an empty table.
func NewUniformTable() *UniformTable {
	return &UniformTable{Args: make(map[string]any), Macros: make(map[string]string)}
}

// SetShaderArgs binds everything a deferred shading pass needs to sample this
// volume. prefix must be empty or end in ".".
func (v *Volume) SetShaderArgs(args *UniformTable, prefix string) {
	if prefix != "" && !strings.HasSuffix(prefix, ".") {
		panic(fmt.Sprintf("volume: shader argument prefix %q must end in '.'", prefix))
	}
	set := func(name string, value any) {
		args.Args[prefix+name] = value
	}

	c := v.spec.ProbeCounts
	set("irradianceTexture", v.irradiance)
	set("visibilityTexture", v.visibility)
	set("probeOffsetTexture", v.states)
	if v.irradiance != nil {
		set("irradianceTextureSize", [2]int{v.irradiance.Width, v.irradiance.Height})
		set("visibilityTextureSize", [2]int{v.visibility.Width, v.visibility.Height})
	}
	set("irradianceProbeSideLength", v.spec.IrradianceResolution)
	set("visibilityProbeSideLength", v.spec.VisibilityResolution)
	set("probeCounts", [3]int{c.X, c.Y, c.Z})
	set("logProbeCounts", [3]int{log2(c.X), log2(c.Y), log2(c.Z)})
	set("probeStartPosition", v.grid.Origin)
	set("probeStep", v.grid.Spacing)
	set("invProbeStep", invert(v.grid.Spacing))
	set("phaseOffsets", [3]int{v.grid.Phase.X, v.grid.Phase.Y, v.grid.Phase.Z})
	set("selfShadowBias", v.spec.SelfShadowBias*selfShadowBiasScale*v.grid.MinSpacing())
	set("irradianceGamma", v.spec.IrradianceGamma)
	set("invIrradianceGamma", 1/v.spec.IrradianceGamma)
	set("maxDistance", v.maxDistance)
	set("probeOffsetLimit", v.spec.ProbeOffsetLimit)
	set("cameraLocked", v.spec.CameraLocked)

	first := "0"
	if v.firstFrame {
		first = "1"
	}
	args.Macros[prefix+"FIRST_FRAME"] = first
}

func invert(s r3.Vec) r3.Vec {
	inv := func(x float64) float64 {
		if x == 0 {
			return 0
		}
		return 1 / x
	}
	return r3.Vec{X: inv(s.X), Y: inv(s.Y), Z: inv(s.Z)}
}
