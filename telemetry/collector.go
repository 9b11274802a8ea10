package telemetry

import "github.com/pthm-cable/probegi/probe"

// Collector accumulates FrameStats within fixed windows of frames and
// produces WindowStats.
type Collector struct {
	windowFrames int
	windowStart  int

	frames     int
	rays       int
	traced     int
	skipped    int
	scrolls    int
	initFrames int
	overridden int
	last       FrameStats
}

// NewCollector creates a collector that closes a window every
// windowFrames frames (at least one).
func NewCollector(windowFrames int) *Collector {
	if windowFrames < 1 {
		windowFrames = 1
	}
	return &Collector{windowFrames: windowFrames}
}

// Record adds one frame. It reports whether the window is complete.
func (c *Collector) Record(s FrameStats) bool {
	if c.frames == 0 {
		c.windowStart = s.Frame
	}
	c.frames++
	c.rays += s.Rays
	c.traced += s.Traced
	c.skipped += s.Skipped
	c.scrolls += s.Scrolls
	if s.InitFramesPending > 0 {
		c.initFrames++
	}
	if s.OverridesActive > 0 {
		c.overridden++
	}
	c.last = s
	return c.frames >= c.windowFrames
}

// Flush returns the current window and starts a new one. irr summarizes
// the field at window end; pass the zero value when not sampled.
func (c *Collector) Flush(irr IrradianceSummary) WindowStats {
	ws := WindowStats{
		WindowStart: c.windowStart,
		WindowEnd:   c.last.Frame,
		Frames:      c.frames,
		RaysTotal:   c.rays,
		Scrolls:     c.scrolls,
		InitFrames:  c.initFrames,

		Off:           c.last.States[probe.Off],
		Asleep:        c.last.States[probe.Asleep],
		JustWoke:      c.last.States[probe.JustWoke],
		Awake:         c.last.States[probe.Awake],
		JustVigilant:  c.last.States[probe.JustVigilant],
		Vigilant:      c.last.States[probe.Vigilant],
		Uninitialized: c.last.States[probe.Uninitialized],

		IrradianceMean: irr.Mean,
		IrradianceStd:  irr.Std,
		IrradianceP10:  irr.P10,
		IrradianceP50:  irr.P50,
		IrradianceP90:  irr.P90,
	}
	if c.frames > 0 {
		n := float64(c.frames)
		ws.RaysPerFrame = float64(c.rays) / n
		ws.TracedMean = float64(c.traced) / n
		ws.SkippedMean = float64(c.skipped) / n
		ws.OverrideFrac = float64(c.overridden) / n
	}

	*c = Collector{windowFrames: c.windowFrames}
	return ws
}
