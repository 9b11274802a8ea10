package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/demo"
	"github.com/pthm-cable/probegi/telemetry"
	"github.com/pthm-cable/probegi/volume"
)

// Evaluator scores a base hysteresis by how quickly and how cleanly the
// probe field tracks a sudden sun rotation.
//
// The reference is the converged field under the rotated sun: a run with no
// temporal filtering whose linear irradiance is averaged over
// ReferenceFrames frames after the warmup. Trials share its seed, so moving
// boxes and ray rotations match during the warmup.
type Evaluator struct {
	base     *config.Config
	seed     int64
	sunAngle float64
	logger   *slog.Logger

	reference *volume.Atlas

	lastFinal, lastMean float64
}

// NewEvaluator runs the reference and returns an evaluator for cfg.
func NewEvaluator(cfg *config.Config, seed int64, sunAngle float64) (*Evaluator, error) {
	e := &Evaluator{
		base:     cfg,
		seed:     seed,
		sunAngle: sunAngle,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	d, err := demo.New(e.config(0), demo.Options{Seed: seed, Logger: e.logger})
	if err != nil {
		return nil, err
	}
	defer d.Close()

	d.SetSunAngle(sunAngle)
	for i := 0; i < cfg.Tune.WarmupFrames; i++ {
		if err := d.Step(); err != nil {
			return nil, fmt.Errorf("reference warmup: %w", err)
		}
	}

	frames := max(1, cfg.Tune.ReferenceFrames)
	var acc *irradianceMean
	for i := 0; i < frames; i++ {
		if err := d.Step(); err != nil {
			return nil, fmt.Errorf("reference run: %w", err)
		}
		v, err := largest(d)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = newIrradianceMean(v.Irradiance(), v.Spec().IrradianceGamma)
		}
		acc.add(v.Irradiance())
	}
	e.reference = acc.atlas()
	return e, nil
}

// irradianceMean averages gamma-encoded atlases in linear space.
type irradianceMean struct {
	layout volume.Atlas
	gamma  float64
	sum    []float64
	n      int
}

func newIrradianceMean(a *volume.Atlas, gamma float64) *irradianceMean {
	m := &irradianceMean{layout: *a, gamma: gamma, sum: make([]float64, len(a.Data))}
	m.layout.Data = nil
	return m
}

func (m *irradianceMean) add(a *volume.Atlas) {
	for i, c := range a.Data {
		m.sum[i] += math.Pow(math.Max(0, float64(c)), m.gamma)
	}
	m.n++
}

func (m *irradianceMean) atlas() *volume.Atlas {
	out := m.layout
	out.Data = make([]float32, len(m.sum))
	for i, s := range m.sum {
		out.Data[i] = float32(math.Pow(s/float64(m.n), 1/m.gamma))
	}
	return &out
}

// config copies the base configuration with h as every volume's hysteresis.
func (e *Evaluator) config(h float64) *config.Config {
	cfg := *e.base
	cfg.VolumeDefaults.Hysteresis = h
	cfg.Volumes = append([]config.VolumeConfig(nil), e.base.Volumes...)
	for i := range cfg.Volumes {
		cfg.Volumes[i].Hysteresis = h
	}
	return &cfg
}

// Evaluate returns the fitness of hysteresis h (lower is better): the error
// against the reference at the last frame plus LagWeight times the summed
// per-frame error after the light change.
func (e *Evaluator) Evaluate(h float64) (float64, error) {
	d, err := demo.New(e.config(h), demo.Options{Seed: e.seed, Logger: e.logger})
	if err != nil {
		return 0, err
	}
	defer d.Close()

	tune := e.base.Tune
	for i := 0; i < tune.WarmupFrames; i++ {
		if err := d.Step(); err != nil {
			return 0, err
		}
	}
	d.SetSunAngle(e.sunAngle)

	var sum, last float64
	for i := 0; i < tune.MeasureFrames; i++ {
		if err := d.Step(); err != nil {
			return 0, err
		}
		v, err := largest(d)
		if err != nil {
			return 0, err
		}
		last = telemetry.SteadyIrradianceRMSE(v, e.reference)
		sum += last
	}

	e.lastFinal = last
	e.lastMean = 0
	if tune.MeasureFrames > 0 {
		e.lastMean = sum / float64(tune.MeasureFrames)
	}
	return last + tune.LagWeight*sum, nil
}

// Last returns the final and mean errors of the most recent evaluation.
func (e *Evaluator) Last() (final, mean float64) {
	return e.lastFinal, e.lastMean
}

func largest(d *demo.Demo) (*volume.Volume, error) {
	vols := d.Orchestrator().Volumes()
	if len(vols) == 0 {
		return nil, fmt.Errorf("no probe volumes after %d frames", d.Orchestrator().Frame())
	}
	return vols[len(vols)-1], nil
}

// hysteresisFromParam maps an unconstrained optimizer parameter onto [0, 0.999).
// Large parameters round to the bound in float64, so the result is clamped
// just below it.
func hysteresisFromParam(x float64) float64 {
	return math.Min(0.999/(1+math.Exp(-x)), math.Nextafter(0.999, 0))
}

// paramFromHysteresis is the inverse of hysteresisFromParam.
func paramFromHysteresis(h float64) float64 {
	h = math.Max(1e-6, math.Min(0.999-1e-6, h))
	return math.Log(h / (0.999 - h))
}
