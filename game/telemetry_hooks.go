package game

import (
	"context"

	"github.com/pthm-cable/lifeforms/storage"
	"github.com/pthm-cable/lifeforms/telemetry"
)

// recordGeneration hands a finished generation to every enabled sink.
// Sink failures are logged and never stop the run.
func (g *Game) recordGeneration(stats telemetry.GenerationStats) {
	perfStats := g.perfCollector.Stats()

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteGeneration(stats); err != nil {
			g.log.Error("failed to write generation", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, stats.Generation); err != nil {
			g.log.Error("failed to write perf", "error", err)
		}
	}

	if g.store != nil {
		g.persist(stats)
	}

	if g.snapshotDir != "" && g.snapshotEvery > 0 && g.generation%g.snapshotEvery == 0 {
		path, err := telemetry.SaveSnapshotFile(g.snapshotDir, g.cfg.Derived.Caps.Name(), g.Snapshot())
		if err != nil {
			g.log.Error("failed to save snapshot", "error", err)
		} else {
			g.log.Info("snapshot saved", "path", path, "generation", g.generation)
		}
	}
}

// persist writes the generation and the best genome so far to the store.
func (g *Game) persist(stats telemetry.GenerationStats) {
	ctx := context.Background()
	if err := g.store.SaveGeneration(ctx, g.runID, stats); err != nil {
		g.log.Error("failed to store generation", "error", err)
		return
	}

	best, ok := g.hallOfFame.Best()
	if !ok || best.Generation != stats.Generation {
		return
	}
	elite := storage.Elite{
		Generation: best.Generation,
		Index:      best.Index,
		Fitness:    best.Fitness,
		Weights:    best.Weights,
	}
	if err := g.store.SaveElite(ctx, g.runID, elite); err != nil {
		g.log.Error("failed to store elite", "error", err)
	}
}
