package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pthm-cable/lifeforms/telemetry"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, seed, population, created_at, config)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			seed = excluded.seed,
			population = excluded.population,
			created_at = excluded.created_at,
			config = excluded.config
	`, run.ID, run.Mode, run.Seed, run.Population, run.CreatedAt.UnixNano(), run.Config)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	run := Run{ID: id}
	var created int64
	err = db.QueryRowContext(ctx, `
		SELECT mode, seed, population, created_at, config FROM runs WHERE id = ?
	`, id).Scan(&run.Mode, &run.Seed, &run.Population, &created, &run.Config)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return run, true, nil
}

func (s *SQLiteStore) SaveGeneration(ctx context.Context, runID string, g telemetry.GenerationStats) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO generations (
			run_id, generation, survivors, iterations, total_fitness,
			fitness_mean, fitness_std, fitness_p10, fitness_p50, fitness_p90, fitness_max,
			age_mean, duration_ms
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			survivors = excluded.survivors,
			iterations = excluded.iterations,
			total_fitness = excluded.total_fitness,
			fitness_mean = excluded.fitness_mean,
			fitness_std = excluded.fitness_std,
			fitness_p10 = excluded.fitness_p10,
			fitness_p50 = excluded.fitness_p50,
			fitness_p90 = excluded.fitness_p90,
			fitness_max = excluded.fitness_max,
			age_mean = excluded.age_mean,
			duration_ms = excluded.duration_ms
	`, runID, g.Generation, g.NumSurvivors, g.NumIterations, g.TotalFitness,
		g.FitnessMean, g.FitnessStd, g.FitnessP10, g.FitnessP50, g.FitnessP90, g.FitnessMax,
		g.AgeMean, g.DurationMS)
	return err
}

func (s *SQLiteStore) GetGenerations(ctx context.Context, runID string) ([]telemetry.GenerationStats, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT generation, survivors, iterations, total_fitness,
			fitness_mean, fitness_std, fitness_p10, fitness_p50, fitness_p90, fitness_max,
			age_mean, duration_ms
		FROM generations WHERE run_id = ? ORDER BY generation
	`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []telemetry.GenerationStats
	for rows.Next() {
		var g telemetry.GenerationStats
		if err := rows.Scan(&g.Generation, &g.NumSurvivors, &g.NumIterations, &g.TotalFitness,
			&g.FitnessMean, &g.FitnessStd, &g.FitnessP10, &g.FitnessP50, &g.FitnessP90, &g.FitnessMax,
			&g.AgeMean, &g.DurationMS); err != nil {
			return nil, false, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

func (s *SQLiteStore) SaveElite(ctx context.Context, runID string, elite Elite) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	weights, err := json.Marshal(elite.Weights)
	if err != nil {
		return fmt.Errorf("encode elite weights: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO elites (run_id, generation, idx, fitness, weights)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			generation = excluded.generation,
			idx = excluded.idx,
			fitness = excluded.fitness,
			weights = excluded.weights
	`, runID, elite.Generation, elite.Index, elite.Fitness, weights)
	return err
}

func (s *SQLiteStore) GetElite(ctx context.Context, runID string) (Elite, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Elite{}, false, err
	}

	var elite Elite
	var weights []byte
	err = db.QueryRowContext(ctx, `
		SELECT generation, idx, fitness, weights FROM elites WHERE run_id = ?
	`, runID).Scan(&elite.Generation, &elite.Index, &elite.Fitness, &weights)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Elite{}, false, nil
		}
		return Elite{}, false, err
	}

	if err := json.Unmarshal(weights, &elite.Weights); err != nil {
		return Elite{}, false, fmt.Errorf("decode elite weights for run %s: %w", runID, err)
	}
	return elite, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			seed INTEGER NOT NULL,
			population INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			config TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS generations (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			survivors INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			total_fitness REAL NOT NULL,
			fitness_mean REAL NOT NULL,
			fitness_std REAL NOT NULL,
			fitness_p10 REAL NOT NULL,
			fitness_p50 REAL NOT NULL,
			fitness_p90 REAL NOT NULL,
			fitness_max REAL NOT NULL,
			age_mean REAL NOT NULL,
			duration_ms INTEGER NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
		CREATE TABLE IF NOT EXISTS elites (
			run_id TEXT PRIMARY KEY,
			generation INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			fitness REAL NOT NULL,
			weights BLOB NOT NULL
		);
	`)
	return err
}
