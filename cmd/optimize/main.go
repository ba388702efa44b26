// Package main searches genetic and movement parameters with CMA-ES for the
// settings under which populations learn fastest.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/lifeforms/config"
)

type options struct {
	configPath  string
	generations int
	seeds       int
	maxEvals    int
	popSize     int
	outputDir   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Base config YAML file (empty = use defaults)")
	flag.IntVar(&opts.generations, "generations", 20, "Generations evolved per run")
	flag.IntVar(&opts.seeds, "seeds", 3, "Seeds per evaluation")
	flag.IntVar(&opts.maxEvals, "max-evals", 200, "Maximum number of evaluations")
	flag.IntVar(&opts.popSize, "population", 0, "CMA-ES population size (0 = auto)")
	flag.StringVar(&opts.outputDir, "output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(opts); err != nil {
		slog.Error("optimize failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.outputDir == "" {
		return errors.New("-output is required")
	}
	if opts.seeds < 1 || opts.generations < 1 {
		return fmt.Errorf("need at least one seed and one generation, got %d and %d", opts.seeds, opts.generations)
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	baseCfg := config.Cfg()

	params := NewParamVector()
	seeds := make([]int64, opts.seeds)
	for i := range seeds {
		seeds[i] = int64(42 + 1000*i)
	}
	evaluator := NewFitnessEvaluator(params, opts.generations, seeds, baseCfg)

	evalLog, err := newSearchLog(filepath.Join(opts.outputDir, "optimize_log.csv"))
	if err != nil {
		return err
	}
	defer evalLog.Close()

	var best incumbent
	start := time.Now()
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			values := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(values)
			score := evaluator.LastScore()

			n := best.Offer(fitness, values)
			if err := evalLog.Append(newEvalRecord(n, fitness, score, values)); err != nil {
				slog.Warn("failed to log evaluation", "eval", n, "error", err)
			}
			bestFitness, _, _ := best.Best()
			elapsed := time.Since(start)
			slog.Info("evaluation",
				"eval", n,
				"of", opts.maxEvals,
				"score", score,
				"best", -bestFitness,
				"elapsed", elapsed.Round(time.Second),
				"eta", (elapsed/time.Duration(n)*time.Duration(max(opts.maxEvals-n, 0))).Round(time.Second),
			)
			return fitness
		},
	}

	popSize := opts.popSize
	if popSize <= 0 {
		popSize = 4 + int(3*math.Log(float64(params.Dim())))
	}
	slog.Info("starting search",
		"params", params.Dim(),
		"population", popSize,
		"max_evals", opts.maxEvals,
		"seeds", opts.seeds,
		"generations", opts.generations,
	)

	initX := params.Normalize(params.Clamp(params.ExtractFromConfig(baseCfg)))
	result, err := optimize.Minimize(problem, initX,
		&optimize.Settings{FuncEvaluations: opts.maxEvals},
		&optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize},
	)
	if err != nil {
		slog.Warn("search stopped", "error", err)
	}

	bestFitness, bestValues, ok := best.Best()
	if !ok {
		if result == nil {
			return errors.New("no evaluation completed")
		}
		bestFitness, bestValues = result.F, params.Clamp(params.Denormalize(result.X))
	}
	return writeResults(opts.outputDir, params, baseCfg, evaluator, bestFitness, bestValues, time.Since(start))
}

// writeResults saves the best configuration and the hall of fame of the best run.
func writeResults(dir string, params *ParamVector, baseCfg *config.Config, evaluator *FitnessEvaluator,
	fitness float64, values []float64, took time.Duration) error {
	attrs := []any{"score", -fitness, "took", took.Round(time.Second)}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Path, values[i])
	}
	slog.Info("search complete", attrs...)

	cfg := baseCfg.Clone()
	if err := params.ApplyToConfig(cfg, values); err != nil {
		return fmt.Errorf("best parameters are invalid: %w", err)
	}
	cfgPath := filepath.Join(dir, "best_config.yaml")
	if err := cfg.WriteYAML(cfgPath); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}
	slog.Info("best config saved", "path", cfgPath)

	hof := evaluator.BestHallOfFame()
	if hof == nil {
		return nil
	}
	data, err := hof.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	hofPath := filepath.Join(dir, "hall_of_fame.json")
	if err := os.WriteFile(hofPath, data, 0644); err != nil {
		return fmt.Errorf("writing hall of fame: %w", err)
	}
	slog.Info("hall of fame saved", "path", hofPath)
	return nil
}
