package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/probegi/config"
	"github.com/pthm-cable/probegi/demo"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats windows via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and snapshots")
	seed := flag.Int64("seed", 0, "RNG seed for ray rotations (0 = time-based)")
	maxFrames := flag.Int("max-frames", 0, "Stop after N frames (0 = unlimited)")
	snapshot := flag.Bool("snapshot", false, "Write an atlas snapshot of every volume on exit")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	opts := demo.Options{
		Seed:      rngSeed,
		OutputDir: *outputDir,
		LogStats:  *logStats,
		Snapshot:  *snapshot,
		Logger:    logger,
	}

	if *headless {
		if err := runHeadless(cfg, opts, *maxFrames); err != nil {
			slog.Error("headless run failed", "error", err)
			os.Exit(1)
		}
		return
	}
	if err := runWindow(cfg, opts, *maxFrames); err != nil {
		slog.Error("viewer failed", "error", err)
		os.Exit(1)
	}
}

// runHeadless steps the demo without raylib.
func runHeadless(cfg *config.Config, opts demo.Options, maxFrames int) error {
	d, err := demo.New(cfg, opts)
	if err != nil {
		return err
	}
	defer d.Close()

	slog.Info("starting headless run",
		"seed", opts.Seed,
		"max_frames", maxFrames,
		"volumes", cfg.VolumeNames(),
	)

	for {
		if err := d.Step(); err != nil {
			return err
		}
		if maxFrames > 0 && d.Orchestrator().Frame() >= maxFrames {
			slog.Info("max frames reached", "frame", d.Orchestrator().Frame(), "last", d.LastStats())
			return nil
		}
	}
}
