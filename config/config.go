// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is returned (wrapped) when a configuration cannot describe a runnable experiment.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	World        WorldConfig        `yaml:"world"`
	Population   PopulationConfig   `yaml:"population"`
	Generation   GenerationConfig   `yaml:"generation"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Fitness      FitnessConfig      `yaml:"fitness"`
	Energy       EnergyConfig       `yaml:"energy"`
	Movement     MovementConfig     `yaml:"movement"`
	Resources    ResourcesConfig    `yaml:"resources"`
	Neural       NeuralConfig       `yaml:"neural"`
	Genetic      GeneticConfig      `yaml:"genetic"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Storage      StorageConfig      `yaml:"storage"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the toroidal world dimensions.
type WorldConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	SpawnMargin float64 `yaml:"spawn_margin"` // Fraction of each edge kept free when placing things
}

// PopulationConfig holds population parameters.
type PopulationConfig struct {
	Size    int `yaml:"size"`
	Workers int `yaml:"workers"` // Parallel stepping partitions
}

// GenerationConfig holds epoch parameters.
type GenerationConfig struct {
	MaxTicks int `yaml:"max_ticks"` // Tick ceiling per epoch, also the fitness age denominator
}

// CapabilitiesConfig selects the optional environment mechanics.
// A non-empty Mode overrides the individual flags.
type CapabilitiesConfig struct {
	Mode      string `yaml:"mode"` // cells, solar, quicksand, shields
	Solar     bool   `yaml:"solar"`
	Quicksand bool   `yaml:"quicksand"`
	Shields   bool   `yaml:"shields"`
}

// FitnessConfig selects how reservoirs feed the fitness score.
type FitnessConfig struct {
	Mode      string  `yaml:"mode"`       // additive or multiplicative
	AgeWeight float64 `yaml:"age_weight"` // Multiplier on ticks survived / max ticks
}

// EnergyConfig holds reservoir economics.
type EnergyConfig struct {
	InitialSteps    int     `yaml:"initial_steps"` // Reservoirs start with this many ticks of use
	CellUsedPerStep float64 `yaml:"cell_used_per_step"`
	SunUsedPerStep  float64 `yaml:"sun_used_per_step"`
	CellGained      float64 `yaml:"cell_gained"`
	SunGained       float64 `yaml:"sun_gained"`
	MaxCell         float64 `yaml:"max_cell"`
	MaxSun          float64 `yaml:"max_sun"`
	ShieldCost      float64 `yaml:"shield_cost"` // Extra cell drain on a successful claim
}

// MovementConfig holds agent physics parameters.
type MovementConfig struct {
	MaxTurnSpeed      float64 `yaml:"max_turn_speed"`     // Radians per tick
	QuicksandSlowdown float64 `yaml:"quicksand_slowdown"` // Speed multiplier after landing on quicksand
}

// FixtureConfig places a fixed resource. X and Y are fractions of the world size,
// Radius is a fraction of the smaller world dimension.
type FixtureConfig struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
}

// ResourcesConfig holds resource placement parameters.
type ResourcesConfig struct {
	Cells           int             `yaml:"cells"`
	ShieldCells     int             `yaml:"shield_cells"` // Cell count when shields are enabled (0 = use cells)
	CellRadius      float64         `yaml:"cell_radius"`  // Fraction of the smaller world dimension
	Sunlight        []FixtureConfig `yaml:"sunlight"`
	Quicksand       []FixtureConfig `yaml:"quicksand"`
	RespawnAttempts int             `yaml:"respawn_attempts"`
}

// NeuralConfig holds network shape parameters. Input and output widths are derived.
type NeuralConfig struct {
	HiddenLayers       []int `yaml:"hidden_layers"`
	ShieldHiddenLayers []int `yaml:"shield_hidden_layers"` // Used instead of hidden_layers with shields
}

// GeneticConfig holds genetic algorithm parameters.
type GeneticConfig struct {
	NumBest        int     `yaml:"num_best"`
	CrossOverRate  float64 `yaml:"cross_over_rate"`
	MutationRate   float64 `yaml:"mutation_rate"`
	MutationAmount float64 `yaml:"mutation_amount"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow     int `yaml:"perf_window"` // Ticks averaged by the perf collector
	HallOfFameSize int `yaml:"hall_of_fame_size"`
	SnapshotEvery  int `yaml:"snapshot_every"` // Generations between weight snapshots (0 = off)
}

// StorageConfig selects the run-history backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory or sqlite
	Path    string `yaml:"path"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Caps       Capabilities
	Inputs     InputLayout
	NumOutputs int
	Topology   []int
	NumCells   int
	WorldW32   float32
	WorldH32   float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults, derived and validated.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize recomputes derived values and validates the result.
// Call it after changing a loaded Config in code.
func (c *Config) Finalize() error {
	if err := c.computeDerived(); err != nil {
		return err
	}
	return c.Validate()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	caps, err := c.Capabilities.resolve()
	if err != nil {
		return err
	}
	c.Derived.Caps = caps
	c.Derived.Inputs = caps.InputLayout()
	c.Derived.NumOutputs = caps.NumOutputs()

	hidden := c.Neural.HiddenLayers
	if caps.Has(Shields) && len(c.Neural.ShieldHiddenLayers) > 0 {
		hidden = c.Neural.ShieldHiddenLayers
	}
	topology := make([]int, 0, len(hidden)+2)
	topology = append(topology, c.Derived.Inputs.Width)
	topology = append(topology, hidden...)
	topology = append(topology, c.Derived.NumOutputs)
	c.Derived.Topology = topology

	c.Derived.NumCells = c.Resources.Cells
	if caps.Has(Shields) && c.Resources.ShieldCells > 0 {
		c.Derived.NumCells = c.Resources.ShieldCells
	}

	c.Derived.WorldW32 = float32(c.World.Width)
	c.Derived.WorldH32 = float32(c.World.Height)
	return nil
}

// Validate reports configuration errors. Every error wraps ErrInvalid.
func (c *Config) Validate() error {
	switch {
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("%w: world size %dx%d", ErrInvalid, c.World.Width, c.World.Height)
	case c.World.SpawnMargin < 0 || c.World.SpawnMargin >= 0.5:
		return fmt.Errorf("%w: spawn_margin %.3f outside [0, 0.5)", ErrInvalid, c.World.SpawnMargin)
	case c.Population.Size <= 0:
		return fmt.Errorf("%w: population size %d", ErrInvalid, c.Population.Size)
	case c.Population.Workers <= 0:
		return fmt.Errorf("%w: workers %d", ErrInvalid, c.Population.Workers)
	case c.Generation.MaxTicks <= 0:
		return fmt.Errorf("%w: max_ticks %d", ErrInvalid, c.Generation.MaxTicks)
	case c.Genetic.NumBest < 0 || c.Genetic.NumBest > c.Population.Size:
		return fmt.Errorf("%w: num_best %d with population %d", ErrInvalid, c.Genetic.NumBest, c.Population.Size)
	case c.Genetic.MutationRate < 0 || c.Genetic.MutationAmount < 0 || c.Genetic.CrossOverRate < 0:
		return fmt.Errorf("%w: genetic rates must be non-negative", ErrInvalid)
	case c.Energy.MaxCell <= 0 || c.Energy.InitialSteps <= 0:
		return fmt.Errorf("%w: cell reservoir needs max_cell and initial_steps", ErrInvalid)
	case c.Derived.Caps.Has(Solar) && c.Energy.MaxSun <= 0:
		return fmt.Errorf("%w: solar needs max_sun", ErrInvalid)
	case c.Derived.NumCells <= 0:
		return fmt.Errorf("%w: at least one cell resource is required", ErrInvalid)
	case c.Resources.CellRadius <= 0:
		return fmt.Errorf("%w: cell_radius %.4f", ErrInvalid, c.Resources.CellRadius)
	}

	if c.Fitness.Mode != FitnessAdditive && c.Fitness.Mode != FitnessMultiplicative {
		return fmt.Errorf("%w: fitness mode %q", ErrInvalid, c.Fitness.Mode)
	}
	for _, size := range c.Derived.Topology {
		if size <= 0 {
			return fmt.Errorf("%w: topology %v", ErrInvalid, c.Derived.Topology)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Clone returns a deep copy with derived values recomputed.
func (c *Config) Clone() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("config: clone marshal: %v", err))
	}
	clone := &Config{}
	if err := yaml.Unmarshal(data, clone); err != nil {
		panic(fmt.Sprintf("config: clone unmarshal: %v", err))
	}
	if err := clone.computeDerived(); err != nil {
		panic(fmt.Sprintf("config: clone derive: %v", err))
	}
	return clone
}
