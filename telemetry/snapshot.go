package telemetry

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/probegi/probe"
	"github.com/pthm-cable/probegi/volume"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// SnapshotHeader is written as a JSON line ahead of the compressed body so
// tools can identify a file without decoding it.
type SnapshotHeader struct {
	Version int    `json:"version"`
	Volume  string `json:"volume"`
	Frame   int    `json:"frame"`
	Seed    int64  `json:"seed"`
}

// AtlasData is one atlas in a snapshot.
type AtlasData struct {
	Width, Height int
	Channels      int
	Side          int
	Data          []float32
}

// AtlasSnapshot holds a volume's probe field for offline inspection.
type AtlasSnapshot struct {
	Header SnapshotHeader

	Origin  [3]float64
	Spacing [3]float64
	Counts  probe.Int3
	Phase   probe.Int3
	Gamma   float64

	Irradiance AtlasData
	Visibility AtlasData
	States     []probe.Record
}

// SnapshotVolume copies the current field of v.
func SnapshotVolume(v *volume.Volume, frame int, seed int64) *AtlasSnapshot {
	g := v.Grid()
	snap := &AtlasSnapshot{
		Header:     SnapshotHeader{Version: SnapshotVersion, Volume: v.Name(), Frame: frame, Seed: seed},
		Origin:     [3]float64{g.Origin.X, g.Origin.Y, g.Origin.Z},
		Spacing:    [3]float64{g.Spacing.X, g.Spacing.Y, g.Spacing.Z},
		Counts:     g.Counts,
		Phase:      g.Phase,
		Gamma:      v.Spec().IrradianceGamma,
		Irradiance: atlasData(v.Irradiance()),
		Visibility: atlasData(v.Visibility()),
	}
	if st := v.States(); st != nil {
		snap.States = append([]probe.Record(nil), st.Device()...)
	}
	return snap
}

func atlasData(a *volume.Atlas) AtlasData {
	if a == nil {
		return AtlasData{}
	}
	return AtlasData{
		Width:    a.Width,
		Height:   a.Height,
		Channels: a.Channels,
		Side:     a.Side,
		Data:     append([]float32(nil), a.Data...),
	}
}

// Atlas rebuilds a volume atlas from snapshot data.
func (d AtlasData) Atlas() *volume.Atlas {
	return &volume.Atlas{Width: d.Width, Height: d.Height, Channels: d.Channels, Side: d.Side, Data: d.Data}
}

// SnapshotPath names the snapshot file for a volume and frame inside dir.
func SnapshotPath(dir, volumeName string, frame int) string {
	return filepath.Join(dir, "snapshots", fmt.Sprintf("%s_%06d.atlas.zst", volumeName, frame))
}

// WriteAtlasSnapshot writes snap to path as a JSON header line followed by
// a gob body, zstd compressed.
func WriteAtlasSnapshot(path string, snap *AtlasSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("marshal snapshot header: %w", err)
	}
	hb = append(hb, '\n')
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if err := gob.NewEncoder(bw).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd stream: %w", err)
	}
	return f.Close()
}

// ReadAtlasSnapshot reads a snapshot written by WriteAtlasSnapshot.
func ReadAtlasSnapshot(path string) (*AtlasSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	var header SnapshotHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return nil, fmt.Errorf("parse snapshot header: %w", err)
	}
	if header.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", header.Version, SnapshotVersion)
	}

	var snap AtlasSnapshot
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return &snap, nil
}
