package game

import (
	"context"
	"time"

	"github.com/pthm-cable/lifeforms/neural"
	"github.com/pthm-cable/lifeforms/telemetry"
)

// RunGeneration steps until the epoch ends, then advances to the next
// generation. ctx is checked between ticks; a cancelled epoch is left as is
// and ctx.Err() is returned.
func (g *Game) RunGeneration(ctx context.Context) (telemetry.GenerationStats, error) {
	for {
		if err := ctx.Err(); err != nil {
			return telemetry.GenerationStats{}, err
		}
		if !g.Step() {
			break
		}
	}
	return g.AdvanceGeneration(), nil
}

// AdvanceGeneration ends the current epoch: it scores every individual, breeds
// the next generation of weights and resets all agents for a new epoch.
func (g *Game) AdvanceGeneration() telemetry.GenerationStats {
	stats := telemetry.GenerationStats{
		Generation:    g.generation,
		NumIterations: int(g.tick),
	}

	pop := make([]neural.Scored, len(g.agents))
	fitness := make([]float64, len(g.agents))
	ages := make([]float64, len(g.agents))
	var total float32
	for i, a := range g.agents {
		a.CalculateFitness()
		if a.Alive() {
			stats.NumSurvivors++
		}
		f := a.Fitness()
		total += f
		pop[i] = neural.Scored{Network: g.brains[i], Fitness: f}
		fitness[i] = float64(f)
		ages[i] = float64(a.Vitals.Age)
	}
	stats.TotalFitness = float64(total)
	stats.Summarize(fitness, ages)

	// Hall of fame sees this generation's weights before they are bred over.
	for i, f := range fitness {
		if float32(f) > 0 {
			g.hallOfFame.Consider(g.generation, i, float32(f), g.brains[i].Weights())
		}
	}

	if err := g.ga.NextGeneration(g.rng, pop); err != nil {
		// Every brain is built from the same topology.
		panic(err)
	}

	g.resetEpoch()
	stats.DurationMS = time.Since(g.epochStart).Milliseconds()
	g.epochStart = time.Now()

	g.last = stats.Record()
	g.generation++
	g.history.Append(stats)
	g.recordGeneration(stats)
	return stats
}

// resetEpoch clears claims and restarts every agent. Weights are untouched.
func (g *Game) resetEpoch() {
	g.world.ReleaseAll()
	for _, a := range g.agents {
		a.ResetAge(g.rng)
	}
	g.tick = 0
}

// Reset restarts the run from generation zero with freshly randomized brains.
func (g *Game) Reset() {
	g.world.ReleaseAll()
	for _, a := range g.agents {
		a.Vitals.Fitness = 0
		a.Reset(g.rng)
	}
	g.tick = 0
	g.generation = 0
	g.last = telemetry.Record{}
	g.history.Reset()
	g.hallOfFame = telemetry.NewHallOfFame(g.cfg.Telemetry.HallOfFameSize)
	g.epochStart = time.Now()
}
