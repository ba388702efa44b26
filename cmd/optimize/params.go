package main

import (
	"math"

	"github.com/pthm-cable/lifeforms/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Genetic operator
			{Name: "mutation_rate", Path: "genetic.mutation_rate", Min: 0.01, Max: 0.5, Default: 0.1},
			{Name: "mutation_amount", Path: "genetic.mutation_amount", Min: 0.05, Max: 1.0, Default: 0.3},
			{Name: "num_best", Path: "genetic.num_best", Min: 1, Max: 10, Default: 4},
			// Movement
			{Name: "max_turn_speed", Path: "movement.max_turn_speed", Min: 0.05, Max: 1.0, Default: 0.4},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = math.Max(spec.Min, math.Min(spec.Max, v[i]))
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct and refreshes
// its derived values. num_best is additionally capped at the population size.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	clamped := pv.Clamp(values)

	// Order must match Specs order
	cfg.Genetic.MutationRate = clamped[0]
	cfg.Genetic.MutationAmount = clamped[1]
	cfg.Genetic.NumBest = min(int(math.Round(clamped[2])), cfg.Population.Size)
	cfg.Movement.MaxTurnSpeed = clamped[3]

	return cfg.Finalize()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Genetic.MutationRate,
		cfg.Genetic.MutationAmount,
		float64(cfg.Genetic.NumBest),
		cfg.Movement.MaxTurnSpeed,
	}
}
