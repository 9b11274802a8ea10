package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one GI frame.
const (
	PhaseScene     = "scene"
	PhaseCamera    = "camera"
	PhaseDynamic   = "dynamic"
	PhaseGather    = "gather"
	PhaseRays      = "rays"
	PhaseTrace     = "trace"
	PhaseShade     = "shade"
	PhaseIntegrate = "integrate"
	PhaseClassify  = "classify"
	PhaseTelemetry = "telemetry"
)

// Phases lists every phase in frame order.
var Phases = []string{
	PhaseScene, PhaseCamera, PhaseDynamic, PhaseGather, PhaseRays,
	PhaseTrace, PhaseShade, PhaseIntegrate, PhaseClassify, PhaseTelemetry,
}

// PerfCollector times GI updates by phase. Totals accumulate until Flush,
// which the demo calls whenever a stats window closes.
type PerfCollector struct {
	updates int
	total   time.Duration
	peak    time.Duration
	phases  map[string]time.Duration

	updateStart time.Time
	phaseStart  time.Time
	phase       string
}

// NewPerfCollector creates an empty collector.
func NewPerfCollector() *PerfCollector {
	return &PerfCollector{phases: make(map[string]time.Duration)}
}

// StartUpdate begins timing a new GI update.
func (p *PerfCollector) StartUpdate() {
	p.updateStart = time.Now()
	p.phase = ""
}

// StartPhase ends the running phase and starts timing phase. Re-entering a
// phase accumulates into it.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
}

// EndUpdate finishes timing the current update.
func (p *PerfCollector) EndUpdate() {
	now := time.Now()
	p.closePhase(now)
	p.phase = ""

	d := now.Sub(p.updateStart)
	p.updates++
	p.total += d
	p.peak = max(p.peak, d)
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase != "" {
		p.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// PerfStats is the timing of the updates in one window.
type PerfStats struct {
	Updates   int
	AvgUpdate time.Duration
	MaxUpdate time.Duration
	PhasePct  map[string]float64 // Share of total update time
}

// Stats summarizes the updates since the last Flush.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{Updates: p.updates, MaxUpdate: p.peak, PhasePct: make(map[string]float64)}
	if p.updates == 0 {
		return s
	}
	s.AvgUpdate = p.total / time.Duration(p.updates)
	if p.total > 0 {
		for phase, d := range p.phases {
			s.PhasePct[phase] = float64(d) / float64(p.total) * 100
		}
	}
	return s
}

// Flush returns Stats and starts a new window.
func (p *PerfCollector) Flush() PerfStats {
	s := p.Stats()
	p.updates, p.total, p.peak = 0, 0, 0
	clear(p.phases)
	return s
}

// LogStats logs the window with phases above 0.1% of update time.
func (s PerfStats) LogStats() {
	attrs := []any{
		"updates", s.Updates,
		"avg_update_us", s.AvgUpdate.Microseconds(),
		"max_update_us", s.MaxUpdate.Microseconds(),
	}
	for _, phase := range Phases {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd    int     `csv:"window_end"`
	Updates      int     `csv:"updates"`
	AvgUpdateUS  int64   `csv:"avg_update_us"`
	MaxUpdateUS  int64   `csv:"max_update_us"`
	ScenePct     float64 `csv:"scene_pct"`
	CameraPct    float64 `csv:"camera_pct"`
	DynamicPct   float64 `csv:"dynamic_pct"`
	GatherPct    float64 `csv:"gather_pct"`
	RaysPct      float64 `csv:"rays_pct"`
	TracePct     float64 `csv:"trace_pct"`
	ShadePct     float64 `csv:"shade_pct"`
	IntegratePct float64 `csv:"integrate_pct"`
	ClassifyPct  float64 `csv:"classify_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a perf.csv row.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		Updates:      s.Updates,
		AvgUpdateUS:  s.AvgUpdate.Microseconds(),
		MaxUpdateUS:  s.MaxUpdate.Microseconds(),
		ScenePct:     s.PhasePct[PhaseScene],
		CameraPct:    s.PhasePct[PhaseCamera],
		DynamicPct:   s.PhasePct[PhaseDynamic],
		GatherPct:    s.PhasePct[PhaseGather],
		RaysPct:      s.PhasePct[PhaseRays],
		TracePct:     s.PhasePct[PhaseTrace],
		ShadePct:     s.PhasePct[PhaseShade],
		IntegratePct: s.PhasePct[PhaseIntegrate],
		ClassifyPct:  s.PhasePct[PhaseClassify],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
