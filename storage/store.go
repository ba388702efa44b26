// Package storage persists run history: run descriptions, per-generation
// statistics and the best weights found.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/lifeforms/telemetry"
)

// Run describes one experiment.
type Run struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Seed       int64     `json:"seed"`
	Population int       `json:"population"`
	CreatedAt  time.Time `json:"created_at"`
	Config     string    `json:"config"` // YAML of the resolved configuration
}

// NewRun returns a Run with a fresh identifier.
func NewRun(mode string, seed int64, population int, configYAML string) Run {
	return Run{
		ID:         uuid.NewString(),
		Mode:       mode,
		Seed:       seed,
		Population: population,
		CreatedAt:  time.Now().UTC(),
		Config:     configYAML,
	}
}

// Elite is the best individual recorded for a run.
type Elite struct {
	Generation int       `json:"generation"`
	Index      int       `json:"index"`
	Fitness    float32   `json:"fitness"`
	Weights    []float32 `json:"weights"`
}

// Store defines persistence operations for run history.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	SaveGeneration(ctx context.Context, runID string, stats telemetry.GenerationStats) error
	GetGenerations(ctx context.Context, runID string) ([]telemetry.GenerationStats, bool, error)
	SaveElite(ctx context.Context, runID string, elite Elite) error
	GetElite(ctx context.Context, runID string) (Elite, bool, error)
}
