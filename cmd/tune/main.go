// Package main searches for the base probe hysteresis that best balances
// convergence speed against noise after a lighting change in the demo scene.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/probegi/config"
)

// evalRecord is one row of tune_log.csv.
type evalRecord struct {
	Eval       int     `csv:"eval"`
	Hysteresis float64 `csv:"hysteresis"`
	Fitness    float64 `csv:"fitness"`
	FinalError float64 `csv:"final_error"`
	MeanError  float64 `csv:"mean_error"`
	Seconds    float64 `csv:"seconds"`
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	outputDir := flag.String("output", "", "Output directory for results")
	seed := flag.Int64("seed", 42, "RNG seed shared by the reference and every trial")
	sunAngle := flag.Float64("sun-angle", 90, "Sun rotation applied after warmup, in degrees")
	maxEvals := flag.Int("max-evals", 0, "Maximum number of evaluations (0 = use config)")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()
	evals := cfg.Tune.Evaluations
	if *maxEvals > 0 {
		evals = *maxEvals
	}

	fmt.Printf("Tracing reference (%d frames)...\n", cfg.Tune.WarmupFrames+cfg.Tune.ReferenceFrames)
	evaluator, err := NewEvaluator(cfg, *seed, *sunAngle*math.Pi/180)
	if err != nil {
		log.Fatalf("reference run failed: %v", err)
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := 1e9
	bestH := cfg.Tune.InitHysteresis
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			h := hysteresisFromParam(x[0])
			t0 := time.Now()
			fitness, err := evaluator.Evaluate(h)
			if err != nil {
				log.Printf("evaluation of %.4f failed: %v", h, err)
				return 1e9
			}
			evalCount++
			if fitness < bestFitness {
				bestFitness, bestH = fitness, h
			}

			final, mean := evaluator.Last()
			rec := []evalRecord{{
				Eval:       evalCount,
				Hysteresis: h,
				Fitness:    fitness,
				FinalError: final,
				MeanError:  mean,
				Seconds:    time.Since(t0).Seconds(),
			}}
			if evalCount == 1 {
				err = gocsv.Marshal(rec, logFile)
			} else {
				err = gocsv.MarshalWithoutHeaders(rec, logFile)
			}
			if err != nil {
				log.Printf("failed to log evaluation: %v", err)
			}

			fmt.Printf("Eval %d/%d: hysteresis=%.4f fitness=%.5f final=%.5f (best %.4f) | elapsed %s\n",
				evalCount, evals, h, fitness, final, bestH, time.Since(startTime).Round(time.Second))
			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: evals,
	}
	method := &optimize.NelderMead{}

	initX := []float64{paramFromHysteresis(cfg.Tune.InitHysteresis)}
	if _, err := optimize.Minimize(problem, initX, settings, method); err != nil {
		log.Printf("optimization ended: %v", err)
	}

	fmt.Printf("\nTuning complete after %d evaluations in %s\n", evalCount, time.Since(startTime).Round(time.Second))
	fmt.Printf("Best hysteresis: %.4f (fitness %.5f)\n", bestH, bestFitness)

	best, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	best.VolumeDefaults.Hysteresis = bestH
	for i := range best.Volumes {
		best.Volumes[i].Hysteresis = bestH
	}
	outPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := best.WriteYAML(outPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("Best config saved to: %s\n", outPath)
	}
}
