package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/pthm-cable/lifeforms/telemetry"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]Run
	generations map[string]map[int]telemetry.GenerationStats
	elites      map[string]Elite
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]Run)
	s.generations = make(map[string]map[int]telemetry.GenerationStats)
	s.elites = make(map[string]Elite)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// SaveGeneration stores stats, replacing any earlier record of the same generation.
func (s *MemoryStore) SaveGeneration(_ context.Context, runID string, stats telemetry.GenerationStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	byGen, ok := s.generations[runID]
	if !ok {
		byGen = make(map[int]telemetry.GenerationStats)
		s.generations[runID] = byGen
	}
	byGen[stats.Generation] = stats
	return nil
}

// GetGenerations returns a run's records ordered by generation.
func (s *MemoryStore) GetGenerations(_ context.Context, runID string) ([]telemetry.GenerationStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byGen, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	out := make([]telemetry.GenerationStats, 0, len(byGen))
	for _, stats := range byGen {
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Generation < out[j].Generation })
	return out, true, nil
}

func (s *MemoryStore) SaveElite(_ context.Context, runID string, elite Elite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	elite.Weights = append([]float32(nil), elite.Weights...)
	s.elites[runID] = elite
	return nil
}

func (s *MemoryStore) GetElite(_ context.Context, runID string) (Elite, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elite, ok := s.elites[runID]
	if !ok {
		return Elite{}, false, nil
	}
	elite.Weights = append([]float32(nil), elite.Weights...)
	return elite, true, nil
}
