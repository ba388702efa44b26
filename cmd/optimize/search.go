package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
)

// evalRecord is one optimize_log.csv row. Parameter columns hold the clamped
// values the run actually used.
type evalRecord struct {
	Eval           int     `csv:"eval"`
	Fitness        float64 `csv:"fitness"`
	Score          float64 `csv:"score"`
	MutationRate   float64 `csv:"mutation_rate"`
	MutationAmount float64 `csv:"mutation_amount"`
	NumBest        float64 `csv:"num_best"`
	MaxTurnSpeed   float64 `csv:"max_turn_speed"`
}

// newEvalRecord lays values out in ParamVector.Specs order.
func newEvalRecord(eval int, fitness, score float64, values []float64) evalRecord {
	return evalRecord{
		Eval:           eval,
		Fitness:        fitness,
		Score:          score,
		MutationRate:   values[0],
		MutationAmount: values[1],
		NumBest:        values[2],
		MaxTurnSpeed:   values[3],
	}
}

// searchLog appends evaluation records to a CSV file, header first.
type searchLog struct {
	f             *os.File
	headerWritten bool
}

func newSearchLog(path string) (*searchLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating search log: %w", err)
	}
	return &searchLog{f: f}, nil
}

func (l *searchLog) Append(rec evalRecord) error {
	rows := []evalRecord{rec}
	if !l.headerWritten {
		l.headerWritten = true
		return gocsv.Marshal(rows, l.f)
	}
	return gocsv.MarshalWithoutHeaders(rows, l.f)
}

func (l *searchLog) Close() error {
	return l.f.Close()
}

// incumbent remembers the lowest fitness seen and the values that produced it.
type incumbent struct {
	mu      sync.Mutex
	evals   int
	fitness float64
	values  []float64
}

// Offer counts an evaluation and reports its 1-based number.
func (b *incumbent) Offer(fitness float64, values []float64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evals++
	if b.values == nil || fitness < b.fitness {
		b.fitness = fitness
		b.values = append([]float64(nil), values...)
	}
	return b.evals
}

// Best returns the best fitness and a copy of its values; ok is false before
// the first evaluation.
func (b *incumbent) Best() (fitness float64, values []float64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.values == nil {
		return 0, nil, false
	}
	return b.fitness, append([]float64(nil), b.values...), true
}
