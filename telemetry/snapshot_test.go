package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/probegi/probe"
)

func TestAtlasSnapshotRoundTrip(t *testing.T) {
	v := testVolume(t)
	v.Irradiance().Fill(0.25)
	v.Visibility().Fill(1.5)
	recs := v.States().MapWrite()
	recs[3] = probe.Record{Offset: [3]int8{1, -2, 3}, State: probe.Vigilant}
	v.States().Unmap()

	snap := SnapshotVolume(v, 120, 99)
	path := filepath.Join(t.TempDir(), "snap.atlas.zst")
	if err := WriteAtlasSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadAtlasSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header != snap.Header {
		t.Errorf("header = %+v, want %+v", got.Header, snap.Header)
	}
	if got.Counts != snap.Counts || got.Gamma != snap.Gamma {
		t.Errorf("grid = %v gamma %v", got.Counts, got.Gamma)
	}
	if len(got.Irradiance.Data) != len(snap.Irradiance.Data) || got.Irradiance.Data[10] != 0.25 {
		t.Errorf("irradiance data not restored")
	}
	if got.Visibility.Atlas().Texel(1, 1)[0] != 1.5 {
		t.Errorf("visibility texel = %v", got.Visibility.Atlas().Texel(1, 1))
	}
	if got.States[3] != recs[3] {
		t.Errorf("state 3 = %+v", got.States[3])
	}
}

func TestSnapshotIsCompressed(t *testing.T) {
	v := testVolume(t)
	snap := SnapshotVolume(v, 1, 0)
	path := filepath.Join(t.TempDir(), "snap.atlas.zst")
	if err := WriteAtlasSnapshot(path, snap); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	raw := 4 * (len(snap.Irradiance.Data) + len(snap.Visibility.Data))
	if info.Size() >= int64(raw) {
		t.Errorf("snapshot is %d bytes, raw atlases are %d", info.Size(), raw)
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.atlas.zst")
	if err := os.WriteFile(path, []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadAtlasSnapshot(path); err == nil {
		t.Error("expected error for a non-snapshot file")
	}
	if _, err := ReadAtlasSnapshot(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestSnapshotPath(t *testing.T) {
	p := SnapshotPath("out", "hall", 42)
	if !strings.HasSuffix(p, filepath.Join("snapshots", "hall_000042.atlas.zst")) {
		t.Errorf("SnapshotPath = %s", p)
	}
}
