package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/lifeforms/config"
	"github.com/pthm-cable/lifeforms/game"
	"github.com/pthm-cable/lifeforms/systems"
	"github.com/pthm-cable/lifeforms/telemetry"
)

// FitnessEvaluator runs headless evolutions and scores how well they learn.
type FitnessEvaluator struct {
	params      *ParamVector
	generations int
	seeds       []int64
	baseConfig  *config.Config

	// Best run tracking
	mu             sync.Mutex
	bestFitness    float64
	bestHallOfFame *telemetry.HallOfFame
	lastScore      float64 // normalized score from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, generations int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		generations: generations,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestHallOfFame returns the hall of fame from the best evaluation.
func (fe *FitnessEvaluator) BestHallOfFame() *telemetry.HallOfFame {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestHallOfFame
}

// LastScore returns the normalized score of the most recent evaluation.
func (fe *FitnessEvaluator) LastScore() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastScore
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	score      float64
	hallOfFame *telemetry.HallOfFame
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean normalized score over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.baseConfig.Clone()
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		slog.Warn("rejected parameters", "error", err)
		return 0
	}

	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runEvolution(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	var totalScore float64
	bestSeed := math.Inf(-1)
	var bestSeedHallOfFame *telemetry.HallOfFame
	for _, r := range results {
		totalScore += r.score
		if r.score > bestSeed {
			bestSeed = r.score
			bestSeedHallOfFame = r.hallOfFame
		}
	}

	avgScore := totalScore / float64(len(fe.seeds))
	fitness := -avgScore

	fe.mu.Lock()
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestHallOfFame = bestSeedHallOfFame
	}
	fe.lastScore = avgScore
	fe.mu.Unlock()

	return fitness
}

// runEvolution evolves one population and scores the second half of the run,
// so early luck does not count as learning.
func (fe *FitnessEvaluator) runEvolution(cfg *config.Config, seed int64) seedResult {
	g, err := game.New(cfg, game.Options{Seed: seed})
	if err != nil {
		slog.Error("failed to create game", "error", err)
		return seedResult{}
	}
	defer g.Close()

	history := make([]telemetry.GenerationStats, 0, fe.generations)
	for i := 0; i < fe.generations; i++ {
		stats, err := g.RunGeneration(context.Background())
		if err != nil {
			break
		}
		history = append(history, stats)
	}

	return seedResult{
		score:      normalizedScore(history, cfg),
		hallOfFame: g.HallOfFame(),
	}
}

// normalizedScore is the mean population fitness of the later generations as
// a fraction of the best achievable, in [0, 1].
func normalizedScore(history []telemetry.GenerationStats, cfg *config.Config) float64 {
	if len(history) == 0 {
		return 0
	}
	ceiling := float64(systems.MaxScore(systems.NewParams(cfg))) * float64(cfg.Population.Size)
	if ceiling <= 0 {
		return 0
	}

	late := history[len(history)/2:]
	var sum float64
	for _, s := range late {
		sum += s.TotalFitness / ceiling
	}
	return clamp01(sum / float64(len(late)))
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
