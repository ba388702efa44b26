package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/lifeforms/config"
	"github.com/pthm-cable/lifeforms/game"
	"github.com/pthm-cable/lifeforms/storage"
	"github.com/pthm-cable/lifeforms/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	mode := flag.String("mode", "", "Capability preset: cells, solar, quicksand, shields (empty = use config)")
	logStats := flag.Bool("log-stats", false, "Output generation and perf stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for weight snapshots")
	snapshotEvery := flag.Int("snapshot-every", 0, "Generations between snapshots (0 = use config)")
	loadPath := flag.String("load", "", "Weight snapshot to resume from")
	storeKind := flag.String("store", "", "Run history backend: memory or sqlite (empty = use config)")
	storePath := flag.String("store-path", "", "SQLite database path (empty = use config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	generations := flag.Int("generations", 0, "Stop after N generations (0 = until interrupted)")
	workers := flag.Int("workers", 0, "Parallel stepping partitions (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *mode != "" {
		cfg.Capabilities.Mode = *mode
	}
	if *workers > 0 {
		cfg.Population.Workers = *workers
	}
	if *storeKind != "" {
		cfg.Storage.Backend = *storeKind
	}
	if *storePath != "" {
		cfg.Storage.Path = *storePath
	}
	if err := cfg.Finalize(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, run, err := openStore(ctx, cfg, rngSeed)
	if err != nil {
		slog.Error("failed to open store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer storage.CloseIfSupported(store)

	g, err := game.New(cfg, game.Options{
		Seed:          rngSeed,
		Logger:        logger,
		LogStats:      *logStats,
		OutputDir:     *outputDir,
		SnapshotDir:   *snapshotDir,
		SnapshotEvery: *snapshotEvery,
		Store:         store,
		RunID:         run.ID,
	})
	if err != nil {
		slog.Error("failed to create game", "error", err)
		os.Exit(1)
	}
	defer g.Close()

	if *loadPath != "" {
		snap, err := telemetry.LoadSnapshotFile(*loadPath, cfg.Population.Size)
		if err == nil {
			err = g.ApplySnapshot(snap)
		}
		if err != nil {
			slog.Error("failed to load snapshot, starting fresh", "path", *loadPath, "error", err)
		} else {
			slog.Info("resumed from snapshot", "path", *loadPath, "generation", g.Generation())
		}
	}

	slog.Info("starting evolution",
		"run_id", run.ID,
		"seed", rngSeed,
		"mode", cfg.Derived.Caps.Name(),
		"population", cfg.Population.Size,
		"topology", cfg.Derived.Topology,
		"workers", cfg.Population.Workers,
		"generations", *generations,
	)

	for done := 0; *generations == 0 || done < *generations; done++ {
		stats, err := g.RunGeneration(ctx)
		if err != nil {
			slog.Info("interrupted", "generation", g.Generation(), "tick", g.Tick())
			return
		}
		if !*logStats {
			slog.Info("generation",
				"generation", stats.Generation,
				"survivors", stats.NumSurvivors,
				"total_fitness", stats.TotalFitness,
			)
		}
	}
	slog.Info("generation limit reached", "generation", g.Generation())
}

// openStore initializes the run-history backend and records this run.
func openStore(ctx context.Context, cfg *config.Config, seed int64) (storage.Store, storage.Run, error) {
	store, err := storage.NewStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, storage.Run{}, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, storage.Run{}, err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		storage.CloseIfSupported(store)
		return nil, storage.Run{}, err
	}
	run := storage.NewRun(cfg.Derived.Caps.Name(), seed, cfg.Population.Size, string(data))
	if err := store.SaveRun(ctx, run); err != nil {
		storage.CloseIfSupported(store)
		return nil, storage.Run{}, err
	}
	return store, run, nil
}
