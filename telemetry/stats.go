package telemetry

import (
	"log/slog"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Record is the fixed-size statistics block stored in weight snapshots.
// Field order and widths are part of the file format.
type Record struct {
	NumSurvivors  int32
	NumIterations int32
	TotalFitness  float32
}

// GenerationStats describes one finished epoch.
type GenerationStats struct {
	Generation    int     `csv:"generation"`
	NumSurvivors  int     `csv:"survivors"`
	NumIterations int     `csv:"iterations"`
	TotalFitness  float64 `csv:"total_fitness"`

	// Fitness distribution across the population
	FitnessMean float64 `csv:"fitness_mean"`
	FitnessStd  float64 `csv:"fitness_std"`
	FitnessP10  float64 `csv:"fitness_p10"`
	FitnessP50  float64 `csv:"fitness_p50"`
	FitnessP90  float64 `csv:"fitness_p90"`
	FitnessMax  float64 `csv:"fitness_max"`

	// Ticks survived
	AgeMean float64 `csv:"age_mean"`

	DurationMS int64 `csv:"duration_ms"`
}

// Record returns the fixed-size snapshot block for s.
func (s GenerationStats) Record() Record {
	return Record{
		NumSurvivors:  int32(s.NumSurvivors),
		NumIterations: int32(s.NumIterations),
		TotalFitness:  float32(s.TotalFitness),
	}
}

// FromRecord rebuilds the core fields of a GenerationStats from a snapshot block.
func FromRecord(generation int, r Record) GenerationStats {
	return GenerationStats{
		Generation:    generation,
		NumSurvivors:  int(r.NumSurvivors),
		NumIterations: int(r.NumIterations),
		TotalFitness:  float64(r.TotalFitness),
	}
}

// Summarize fills the distribution fields from per-individual fitness and age.
func (s *GenerationStats) Summarize(fitness, ages []float64) {
	s.FitnessMean, s.FitnessStd = MeanStd(fitness)
	if len(fitness) > 0 {
		sorted := append([]float64(nil), fitness...)
		sort.Float64s(sorted)
		s.FitnessP10 = Quantile(sorted, 0.10)
		s.FitnessP50 = Quantile(sorted, 0.50)
		s.FitnessP90 = Quantile(sorted, 0.90)
		s.FitnessMax = floats.Max(sorted)
	}
	if len(ages) > 0 {
		s.AgeMean = stat.Mean(ages, nil)
	}
}

// MeanStd returns the mean and sample standard deviation of values.
// Fewer than two values have zero deviation.
func MeanStd(values []float64) (mean, std float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}

// Quantile returns the empirical p-quantile of a sorted slice.
// Returns 0 if the slice is empty.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("survivors", s.NumSurvivors),
		slog.Int("iterations", s.NumIterations),
		slog.Float64("total_fitness", s.TotalFitness),
		slog.Float64("fitness_mean", s.FitnessMean),
		slog.Float64("fitness_std", s.FitnessStd),
		slog.Float64("fitness_p50", s.FitnessP50),
		slog.Float64("fitness_max", s.FitnessMax),
		slog.Float64("age_mean", s.AgeMean),
		slog.Int64("duration_ms", s.DurationMS),
	)
}

// LogStats logs the generation using slog.
func (s GenerationStats) LogStats() {
	slog.Info("generation",
		"generation", s.Generation,
		"survivors", s.NumSurvivors,
		"iterations", s.NumIterations,
		"total_fitness", s.TotalFitness,
		"fitness_mean", s.FitnessMean,
		"fitness_std", s.FitnessStd,
		"fitness_p10", s.FitnessP10,
		"fitness_p50", s.FitnessP50,
		"fitness_p90", s.FitnessP90,
		"fitness_max", s.FitnessMax,
		"age_mean", s.AgeMean,
		"duration_ms", s.DurationMS,
	)
}

// History is the time-ordered record of finished generations. It is safe to
// read while the simulation appends to it.
type History struct {
	mu      sync.RWMutex
	records []GenerationStats
}

// Append adds a finished generation.
func (h *History) Append(s GenerationStats) {
	h.mu.Lock()
	h.records = append(h.records, s)
	h.mu.Unlock()
}

// All returns a copy of every record, oldest first.
func (h *History) All() []GenerationStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]GenerationStats(nil), h.records...)
}

// Last returns the most recent record.
func (h *History) Last() (GenerationStats, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return GenerationStats{}, false
	}
	return h.records[len(h.records)-1], true
}

// Len returns the number of records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Reset drops every record.
func (h *History) Reset() {
	h.mu.Lock()
	h.records = nil
	h.mu.Unlock()
}
