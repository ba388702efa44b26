// Package game runs generations: it owns the population arena, the world and
// the worker pool, and turns each finished epoch into the next generation.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/lifeforms/components"
	"github.com/pthm-cable/lifeforms/config"
	"github.com/pthm-cable/lifeforms/neural"
	"github.com/pthm-cable/lifeforms/storage"
	"github.com/pthm-cable/lifeforms/systems"
	"github.com/pthm-cable/lifeforms/telemetry"
)

// ErrIndex is returned when an individual index is outside the population.
var ErrIndex = errors.New("individual index out of range")

// Options configures a Game beyond the experiment config.
type Options struct {
	Seed   int64
	Logger *slog.Logger // nil uses slog.Default()

	LogStats      bool   // log generation and perf stats
	OutputDir     string // CSV, config and hall of fame output (empty = off)
	SnapshotDir   string // weight snapshots (empty = off)
	SnapshotEvery int    // generations between snapshots, 0 uses the config value

	Store storage.Store // run history (nil = off), must be initialized
	RunID string
}

// Game holds the population, the world and the per-generation bookkeeping.
// Its methods must be called from one goroutine; workers are internal.
type Game struct {
	cfg    *config.Config
	params *systems.Params
	log    *slog.Logger
	rng    *rand.Rand

	// ECS arena, one entity per individual
	ecsWorld *ecs.World
	mapper   *ecs.Map6[
		components.Position,
		components.Heading,
		components.Reservoirs,
		components.Vitals,
		components.Senses,
		components.Identity,
	]
	censusFilter *ecs.Filter2[components.Reservoirs, components.Identity]

	entities []ecs.Entity
	brains   []*neural.Network
	agents   []*systems.Agent
	world    *systems.World
	ga       neural.GeneticOperator

	parallel *parallelState

	// State
	tick       int32
	generation int
	last       telemetry.Record
	epochStart time.Time
	history    telemetry.History

	// Telemetry
	hallOfFame    *telemetry.HallOfFame
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	logStats      bool
	snapshotDir   string
	snapshotEvery int
	store         storage.Store
	runID         string
}

// New builds the world and a randomly initialized population.
func New(cfg *config.Config, opts Options) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	topology := neural.Topology(cfg.Derived.Topology)
	if err := topology.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	snapshotEvery := opts.SnapshotEvery
	if snapshotEvery == 0 {
		snapshotEvery = cfg.Telemetry.SnapshotEvery
	}

	n := cfg.Population.Size
	ecsWorld := ecs.NewWorld()
	g := &Game{
		cfg:      cfg,
		params:   systems.NewParams(cfg),
		log:      logger,
		rng:      rand.New(rand.NewSource(opts.Seed)),
		ecsWorld: ecsWorld,
		mapper: ecs.NewMap6[
			components.Position,
			components.Heading,
			components.Reservoirs,
			components.Vitals,
			components.Senses,
			components.Identity,
		](ecsWorld),
		censusFilter: ecs.NewFilter2[components.Reservoirs, components.Identity](ecsWorld),
		entities:     make([]ecs.Entity, n),
		brains:       make([]*neural.Network, n),
		agents:       make([]*systems.Agent, n),
		ga: neural.GeneticOperator{
			NumBest:        cfg.Genetic.NumBest,
			CrossOverRate:  float32(cfg.Genetic.CrossOverRate),
			MutationRate:   float32(cfg.Genetic.MutationRate),
			MutationAmount: float32(cfg.Genetic.MutationAmount),
		},
		hallOfFame:    telemetry.NewHallOfFame(cfg.Telemetry.HallOfFameSize),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		logStats:      opts.LogStats,
		snapshotDir:   opts.SnapshotDir,
		snapshotEvery: snapshotEvery,
		store:         opts.Store,
		runID:         opts.RunID,
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, err
	}
	g.outputManager = om

	g.world = systems.NewWorld(cfg, n, g.rng)
	g.spawnPopulation(topology)

	g.parallel = newParallelState(cfg.Population.Workers, n, opts.Seed)
	g.parallel.startWorkers(g)
	g.epochStart = time.Now()
	return g, nil
}

// spawnPopulation creates one entity and one brain per arena slot.
func (g *Game) spawnPopulation(topology neural.Topology) {
	for i := range g.entities {
		id := components.Identity{Index: int32(i)}
		g.entities[i] = g.mapper.NewEntity(
			&components.Position{},
			&components.Heading{},
			&components.Reservoirs{},
			&components.Vitals{Pursuing: -1},
			&components.Senses{},
			&id,
		)
		g.brains[i] = neural.MustNetwork(topology)
		g.brains[i].Randomize(g.rng)
	}

	// Component storage moves while entities are added, so pointers are
	// taken once the arena is complete.
	for i, e := range g.entities {
		pos, heading, res, vitals, senses, _ := g.mapper.Get(e)
		g.agents[i] = systems.NewAgent(i, pos, heading, res, vitals, senses, g.brains[i], g.world, g.params)
		g.agents[i].ResetAge(g.rng)
	}
}

// Step advances every agent by one tick and reports whether the epoch
// continues: some agent is alive and the tick ceiling is not reached.
func (g *Game) Step() bool {
	g.perfCollector.StartTick()

	g.perfCollector.StartPhase(telemetry.PhaseAgents)
	g.parallel.stepAll()

	g.perfCollector.StartPhase(telemetry.PhaseCensus)
	alive := g.countAlive()

	g.perfCollector.EndTick()

	g.tick++
	return alive > 0 && int(g.tick) < g.cfg.Generation.MaxTicks
}

// countAlive queries the arena for individuals with energy left.
func (g *Game) countAlive() int {
	alive := 0
	query := g.censusFilter.Query()
	for query.Next() {
		_, id := query.Get()
		if g.agents[id.Index].Alive() {
			alive++
		}
	}
	return alive
}

// Tick returns the number of ticks run in the current epoch.
func (g *Game) Tick() int32 {
	return g.tick
}

// Generation returns the index of the epoch in progress.
func (g *Game) Generation() int {
	return g.generation
}

// History returns the record of finished generations.
func (g *Game) History() *telemetry.History {
	return &g.history
}

// HallOfFame returns the best genomes seen so far.
func (g *Game) HallOfFame() *telemetry.HallOfFame {
	return g.hallOfFame
}

// Population returns the number of individuals.
func (g *Game) Population() int {
	return len(g.agents)
}

// Config returns the experiment configuration.
func (g *Game) Config() *config.Config {
	return g.cfg
}

// Weights returns a copy of individual i's weights.
func (g *Game) Weights(i int) ([]float32, error) {
	if i < 0 || i >= len(g.brains) {
		return nil, fmt.Errorf("%w: %d", ErrIndex, i)
	}
	return g.brains[i].Weights(), nil
}

// SetWeights replaces individual i's weights. w must hold exactly one
// network's worth of weights.
func (g *Game) SetWeights(i int, w []float32) error {
	if i < 0 || i >= len(g.brains) {
		return fmt.Errorf("%w: %d", ErrIndex, i)
	}
	if want := g.brains[i].WeightCount(); len(w) != want {
		return fmt.Errorf("%w: got %d, want %d", neural.ErrWeightCount, len(w), want)
	}
	_, err := g.brains[i].SetWeights(w)
	return err
}

// Close stops the workers and flushes output. The game must not be stepped
// afterwards.
func (g *Game) Close() error {
	g.parallel.stopWorkers()
	if err := g.outputManager.WriteHallOfFame(g.hallOfFame); err != nil {
		g.log.Error("failed to write hall of fame", "error", err)
	}
	return g.outputManager.Close()
}
