package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/probegi/probe"
	"github.com/pthm-cable/probegi/volume"
)

// FrameStats is the GI state after one update.
type FrameStats struct {
	Frame             int
	Volumes           int
	Rays              int // Rays traced this frame, all passes
	Traced            int // Probes traced in the steady-state pass
	Skipped           int
	States            [probe.NumStates]int
	Scrolls           int
	InitFramesPending int
	OverridesActive   int // Volumes with a hysteresis override running
}

// LogValue implements slog.LogValuer for structured logging.
func (s FrameStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("frame", s.Frame),
		slog.Int("volumes", s.Volumes),
		slog.Int("rays", s.Rays),
		slog.Int("traced", s.Traced),
		slog.Int("skipped", s.Skipped),
		slog.Int("scrolls", s.Scrolls),
		slog.Int("init_frames", s.InitFramesPending),
		slog.Int("overrides_active", s.OverridesActive),
	}
	for st, n := range s.States {
		attrs = append(attrs, slog.Int(probe.State(st).String(), n))
	}
	return slog.GroupValue(attrs...)
}

// WindowStats aggregates FrameStats over a window of frames.
type WindowStats struct {
	WindowStart int `csv:"-"`
	WindowEnd   int `csv:"window_end"`
	Frames      int `csv:"frames"`

	RaysTotal    int     `csv:"rays_total"`
	RaysPerFrame float64 `csv:"rays_per_frame"`
	TracedMean   float64 `csv:"traced_mean"`
	SkippedMean  float64 `csv:"skipped_mean"`
	Scrolls      int     `csv:"scrolls"`
	InitFrames   int     `csv:"init_frames"`     // Frames spent converging
	OverrideFrac float64 `csv:"override_frames"` // Share of frames with an override active

	// Probe states at window end
	Off           int `csv:"off"`
	Asleep        int `csv:"asleep"`
	JustWoke      int `csv:"just_woke"`
	Awake         int `csv:"awake"`
	JustVigilant  int `csv:"just_vigilant"`
	Vigilant      int `csv:"vigilant"`
	Uninitialized int `csv:"uninitialized"`

	// Irradiance luminance over probe tiles at window end
	IrradianceMean float64 `csv:"irradiance_mean"`
	IrradianceStd  float64 `csv:"irradiance_std"`
	IrradianceP10  float64 `csv:"irradiance_p10"`
	IrradianceP50  float64 `csv:"irradiance_p50"`
	IrradianceP90  float64 `csv:"irradiance_p90"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStart),
		slog.Int("window_end", s.WindowEnd),
		slog.Int("rays_total", s.RaysTotal),
		slog.Float64("rays_per_frame", s.RaysPerFrame),
		slog.Float64("traced_mean", s.TracedMean),
		slog.Float64("skipped_mean", s.SkippedMean),
		slog.Int("scrolls", s.Scrolls),
		slog.Int("init_frames", s.InitFrames),
		slog.Float64("override_frames", s.OverrideFrac),
		slog.Int("asleep", s.Asleep),
		slog.Int("awake", s.Awake),
		slog.Int("vigilant", s.Vigilant),
		slog.Int("off", s.Off),
		slog.Int("uninitialized", s.Uninitialized),
		slog.Float64("irradiance_mean", s.IrradianceMean),
		slog.Float64("irradiance_std", s.IrradianceStd),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}

// IrradianceSummary describes the decoded irradiance of one atlas.
type IrradianceSummary struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// SummarizeIrradiance decodes every interior texel of a gamma-encoded RGB
// atlas and summarizes its luminance. Border texels are copies and skipped.
func SummarizeIrradiance(a *volume.Atlas, gamma float64) IrradianceSummary {
	lum := luminance(a, gamma)
	if len(lum) == 0 {
		return IrradianceSummary{}
	}

	var s IrradianceSummary
	s.Mean, s.Std = stat.MeanStdDev(lum, nil)
	if len(lum) < 2 {
		s.Std = 0
	}
	sort.Float64s(lum)
	s.P10 = stat.Quantile(0.1, stat.LinInterp, lum, nil)
	s.P50 = stat.Quantile(0.5, stat.LinInterp, lum, nil)
	s.P90 = stat.Quantile(0.9, stat.LinInterp, lum, nil)
	return s
}

// IrradianceRMSE is the root mean square difference in decoded luminance
// between two atlases of the same layout. It returns +Inf when the layouts
// differ.
func IrradianceRMSE(a, b *volume.Atlas, gamma float64) float64 {
	return rmse(luminance(a, gamma), luminance(b, gamma))
}

// SteadyIrradianceRMSE compares v's irradiance with ref over the tiles of
// awake and vigilant probes only, the ones refreshed every frame. Sleeping
// and disabled probes are left out. With no such probe it falls back to
// every tile.
func SteadyIrradianceRMSE(v *volume.Volume, ref *volume.Atlas) float64 {
	irr := v.Irradiance()
	gamma := v.Spec().IrradianceGamma
	la, lb := luminance(irr, gamma), luminance(ref, gamma)
	if v.States() == nil || len(la) != len(lb) {
		return math.Inf(1)
	}
	recs := v.States().MapRead()
	defer v.States().Unmap()
	texels := irr.Side * irr.Side
	if len(recs)*texels != len(la) {
		return math.Inf(1)
	}

	// Tiles are in storage order, so tile id belongs to probe id.
	var sa, sb []float64
	for id, rec := range recs {
		if !rec.State.Steady() {
			continue
		}
		lo := id * texels
		sa = append(sa, la[lo:lo+texels]...)
		sb = append(sb, lb[lo:lo+texels]...)
	}
	if len(sa) == 0 {
		return rmse(la, lb)
	}
	return rmse(sa, sb)
}

func rmse(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
}

// luminance decodes the interior texels of a in tile order.
func luminance(a *volume.Atlas, gamma float64) []float64 {
	if a == nil || a.Channels < 3 {
		return nil
	}
	tile := a.Tile()
	lum := make([]float64, 0, (a.Width/tile)*(a.Height/tile)*a.Side*a.Side)
	for ty := 0; ty < a.Height; ty += tile {
		for tx := 0; tx < a.Width; tx += tile {
			for j := 1; j <= a.Side; j++ {
				for i := 1; i <= a.Side; i++ {
					c := a.Texel(tx+i, ty+j)
					r := math.Pow(math.Max(0, float64(c[0])), gamma)
					g := math.Pow(math.Max(0, float64(c[1])), gamma)
					b := math.Pow(math.Max(0, float64(c[2])), gamma)
					lum = append(lum, 0.2126*r+0.7152*g+0.0722*b)
				}
			}
		}
	}
	return lum
}
