package demo

import (
	"github.com/pthm-cable/probegi/telemetry"
)

// flushTelemetry records the frame and, at window boundaries, writes the
// stats and perf records. Snapshots are taken every SnapshotEvery frames.
func (d *Demo) flushTelemetry() {
	frame := d.last.Frame

	if every := d.cfg.Telemetry.SnapshotEvery; every > 0 && frame%every == 0 {
		d.writeSnapshots()
	}

	if !d.collector.Record(d.last) {
		return
	}

	var irr telemetry.IrradianceSummary
	if vols := d.orch.Volumes(); len(vols) > 0 {
		// The largest volume covers the most of the scene.
		v := vols[len(vols)-1]
		irr = telemetry.SummarizeIrradiance(v.Irradiance(), v.Spec().IrradianceGamma)
	}
	stats := d.collector.Flush(irr)
	perfStats := d.perf.Flush()

	if d.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := d.output.WriteWindow(stats); err != nil {
		d.logger.Error("failed to write frame stats", "error", err)
	}
	if err := d.output.WritePerf(perfStats, stats.WindowEnd); err != nil {
		d.logger.Error("failed to write perf", "error", err)
	}
}

// writeSnapshots saves the atlases of every volume.
func (d *Demo) writeSnapshots() {
	for _, v := range d.orch.Volumes() {
		snap := telemetry.SnapshotVolume(v, d.orch.Frame(), d.opts.Seed)
		path, err := d.output.WriteSnapshot(snap)
		if err != nil {
			d.logger.Error("failed to save snapshot", "volume", v.Name(), "error", err)
			continue
		}
		if path != "" {
			d.logger.Info("snapshot saved", "path", path, "frame", d.orch.Frame())
		}
	}
}
