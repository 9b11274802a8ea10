package demo

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/probe"
	"github.com/pthm-cable/probegi/telemetry"
)

func init() {
	config.MustInit("")
}

// smallConfig shrinks the default volume so a few frames run quickly.
func smallConfig() *config.Config {
	cfg := *config.Cfg()
	cfg.VolumeDefaults.ProbeCounts = [3]int{4, 2, 4}
	cfg.VolumeDefaults.RaysPerProbe = 64
	cfg.GI.SceneInitRays = 64
	cfg.GI.ConvergenceRays = 64
	cfg.Telemetry.StatsWindow = 5
	cfg.Derived.Workers = 2
	return &cfg
}

func TestHeadlessRunWritesOutput(t *testing.T) {
	cfg := smallConfig()
	cfg.Telemetry.SnapshotEvery = 10
	dir := t.TempDir()

	d, err := New(cfg, Options{Seed: 7, OutputDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := d.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "frames.csv"))
	if err != nil {
		t.Fatalf("frames.csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading frames.csv: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected header plus 2 windows, got %d rows", len(rows))
	}

	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml not written: %v", err)
	}

	snap, err := telemetry.ReadAtlasSnapshot(telemetry.SnapshotPath(dir, "default", 10))
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Header.Seed != 7 || len(snap.States) != 32 {
		t.Errorf("snapshot seed %d with %d probes", snap.Header.Seed, len(snap.States))
	}
}

func TestSceneSettlesAfterInit(t *testing.T) {
	d, err := New(smallConfig(), Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	for i := 0; i < 8; i++ {
		if err := d.Step(); err != nil {
			t.Fatal(err)
		}
	}
	s := d.LastStats()
	if s.InitFramesPending != 0 {
		t.Errorf("init frames still pending: %d", s.InitFramesPending)
	}
	if s.States[probe.Uninitialized] != 0 {
		t.Errorf("%d probes uninitialized", s.States[probe.Uninitialized])
	}
	if d.Perf().Stats().AvgUpdate <= 0 {
		t.Error("perf collector recorded nothing")
	}
}

func TestSunRotationIsGlobalLightChange(t *testing.T) {
	d, err := New(smallConfig(), Options{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if err := d.Step(); err != nil {
		t.Fatal(err)
	}

	d.SetSunAngle(0.5)
	if d.Orchestrator().Stats().OverridesActive != 1 {
		t.Error("rotating the sun should arm the override countdown")
	}
	if d.SunAngle() != 0.5 {
		t.Errorf("sun angle = %v", d.SunAngle())
	}
}

func BenchmarkStep(b *testing.B) {
	d, err := New(smallConfig(), Options{Seed: 1})
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
