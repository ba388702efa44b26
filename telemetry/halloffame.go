package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// HallEntry is one of the best individuals seen so far in a run.
type HallEntry struct {
	Generation int       `json:"generation"`
	Index      int       `json:"index"`
	Fitness    float32   `json:"fitness"`
	Weights    []float32 `json:"weights"`
}

// HallOfFame keeps the highest-fitness genomes across all generations,
// sorted by fitness descending.
type HallOfFame struct {
	entries []HallEntry
	maxSize int
}

// NewHallOfFame creates a hall holding at most maxSize entries.
func NewHallOfFame(maxSize int) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		entries: make([]HallEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Consider offers a genome to the hall. The weights are copied.
// Returns true if the genome was added.
func (hof *HallOfFame) Consider(generation, index int, fitness float32, weights []float32) bool {
	// Find insertion point (sorted descending by fitness)
	idx := sort.Search(len(hof.entries), func(i int) bool {
		return hof.entries[i].Fitness < fitness
	})

	// If hall is full and entry would be last (lowest), skip it
	if len(hof.entries) >= hof.maxSize && idx >= hof.maxSize {
		return false
	}

	entry := HallEntry{
		Generation: generation,
		Index:      index,
		Fitness:    fitness,
		Weights:    append([]float32(nil), weights...),
	}
	hof.entries = append(hof.entries, HallEntry{})
	copy(hof.entries[idx+1:], hof.entries[idx:])
	hof.entries[idx] = entry

	// Trim if over capacity
	if len(hof.entries) > hof.maxSize {
		hof.entries = hof.entries[:hof.maxSize]
	}
	return true
}

// Size returns the number of entries.
func (hof *HallOfFame) Size() int {
	return len(hof.entries)
}

// TopFitness returns the highest fitness in the hall, or 0 if it is empty.
func (hof *HallOfFame) TopFitness() float32 {
	if len(hof.entries) == 0 {
		return 0
	}
	return hof.entries[0].Fitness
}

// Best returns the fittest entry.
func (hof *HallOfFame) Best() (HallEntry, bool) {
	if len(hof.entries) == 0 {
		return HallEntry{}, false
	}
	return hof.entries[0], true
}

// Entries returns the entries, best first. The slice is shared.
func (hof *HallOfFame) Entries() []HallEntry {
	return hof.entries
}

// MarshalJSON serializes the hall of fame to JSON.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.entries, "", "  ")
}

// LoadHallOfFameFromFile reads a hall of fame JSON file.
func LoadHallOfFameFromFile(path string, maxSize int) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var entries []HallEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	hof := NewHallOfFame(max(maxSize, len(entries)))
	for _, e := range entries {
		hof.Consider(e.Generation, e.Index, e.Fitness, e.Weights)
	}
	return hof, nil
}
