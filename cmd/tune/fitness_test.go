package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/volume"
)

func init() {
	config.MustInit("")
}

func TestHysteresisParamRoundTrip(t *testing.T) {
	for _, h := range []float64{0.05, 0.5, 0.9, 0.98} {
		got := hysteresisFromParam(paramFromHysteresis(h))
		if math.Abs(got-h) > 1e-9 {
			t.Errorf("round trip of %v gave %v", h, got)
		}
	}
	for _, x := range []float64{-50, 0, 50, 1e6} {
		h := hysteresisFromParam(x)
		if h < 0 || h >= 0.999 {
			t.Errorf("param %v mapped outside range: %v", x, h)
		}
	}
}

func TestIrradianceMeanAveragesLinearLight(t *testing.T) {
	a := &volume.Atlas{Width: 1, Height: 1, Channels: 3, Side: 1, Data: []float32{0, 0, 0}}
	b := &volume.Atlas{Width: 1, Height: 1, Channels: 3, Side: 1, Data: []float32{1, 1, 1}}
	m := newIrradianceMean(a, 2)
	m.add(a)
	m.add(b)
	got := m.atlas()
	// Decoded 0 and 1 average to 0.5, encoded as sqrt(0.5).
	if want := math.Sqrt(0.5); math.Abs(float64(got.Data[0])-want) > 1e-6 {
		t.Errorf("mean texel = %v, want %v", got.Data[0], want)
	}
	if got.Width != 1 || got.Side != 1 || &got.Data[0] == &a.Data[0] {
		t.Error("mean atlas should copy the layout into new storage")
	}
}

func TestEvaluatorPrefersTrackingOverFreezing(t *testing.T) {
	cfg := *config.Cfg()
	cfg.VolumeDefaults.ProbeCounts = [3]int{4, 2, 4}
	cfg.VolumeDefaults.RaysPerProbe = 256
	cfg.GI.SceneInitRays = 256
	cfg.GI.ConvergenceRays = 256
	cfg.Derived.Workers = 2
	cfg.Scene.Bounces = false
	cfg.Tune.WarmupFrames = 8
	cfg.Tune.MeasureFrames = 12
	cfg.Tune.ReferenceFrames = 40
	cfg.GI.Overrides.LowIrradianceFrames = 0

	// A half turn moves the sun behind both walls.
	e, err := NewEvaluator(&cfg, 3, math.Pi)
	if err != nil {
		t.Fatal(err)
	}
	fast, err := e.Evaluate(0.5)
	if err != nil {
		t.Fatal(err)
	}
	fastFinal, _ := e.Last()
	frozen, err := e.Evaluate(0.998)
	if err != nil {
		t.Fatal(err)
	}
	frozenFinal, _ := e.Last()
	if !(fast < frozen) {
		t.Errorf("low hysteresis should track the new sun better: fast %v frozen %v", fast, frozen)
	}
	if !(fastFinal < frozenFinal) {
		t.Errorf("final error: fast %v frozen %v", fastFinal, frozenFinal)
	}
}
