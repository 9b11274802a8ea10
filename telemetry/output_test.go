package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/probegi/config"
)

func init() {
	config.MustInit("")
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("empty dir should disable output, got %v %v", om, err)
	}
	// All methods are nil-safe.
	if err := om.WriteWindow(WindowStats{}); err != nil {
		t.Error(err)
	}
	if _, err := om.WriteSnapshot(&AtlasSnapshot{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(config.Cfg()); err != nil {
		t.Fatal(err)
	}
	for end := 60; end <= 180; end += 60 {
		if err := om.WriteWindow(WindowStats{WindowEnd: end, RaysTotal: end * 10}); err != nil {
			t.Fatal(err)
		}
		if err := om.WritePerf(PerfStats{PhasePct: map[string]float64{PhaseTrace: 50}}, end); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"frames.csv", "perf.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 4 {
			t.Errorf("%s has %d lines, want header + 3", name, len(lines))
		}
		if !strings.HasPrefix(lines[0], "window_end") {
			t.Errorf("%s header = %q", name, lines[0])
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml not written: %v", err)
	}
}

func TestOutputManagerSnapshot(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	path, err := om.WriteSnapshot(SnapshotVolume(testVolume(t), 5, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadAtlasSnapshot(path); err != nil {
		t.Errorf("snapshot at %s unreadable: %v", path, err)
	}
}
