package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/probegi/tracer"
)

// GenerateRays writes one row of rays per traced probe into buf starting at
// offset, using dirs as the per-ray directions of this pass. It returns the
// number of rays written.
func (v *Volume) GenerateRays(buf *tracer.RayBuffers, offset int, dirs []r3.Vec) int {
	rays := buf.RaysPerProbe()
	if len(dirs) != rays {
		panic(fmt.Sprintf("volume: %d directions for %d rays per probe", len(dirs), rays))
	}
	end := offset + len(v.traced)*rays
	if end > buf.Capacity() {
		panic(fmt.Sprintf("volume: ray buffer holds %d rays, need %d", buf.Capacity(), end))
	}

	recs := v.states.Device()
	inf := math.Inf(1)
	for slot, id := range v.traced {
		origin := v.probePosition(id, recs[id])
		base := offset + slot*rays
		for r, d := range dirs {
			buf.Rays[base+r] = tracer.Ray{Origin: origin, Dir: d, TMax: inf}
		}
	}
	if end > buf.Used {
		buf.Used = end
	}
	return end - offset
}
