package telemetry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHallOfFame_SortedInsert(t *testing.T) {
	hof := NewHallOfFame(3)
	for i, f := range []float32{2, 5, 1, 4} {
		hof.Consider(1, i, f, []float32{f})
	}

	if hof.Size() != 3 {
		t.Fatalf("size = %d, want 3", hof.Size())
	}
	want := []float32{5, 4, 2}
	for i, e := range hof.Entries() {
		if e.Fitness != want[i] {
			t.Errorf("entry %d fitness = %v, want %v", i, e.Fitness, want[i])
		}
	}
	if hof.TopFitness() != 5 {
		t.Errorf("top = %v, want 5", hof.TopFitness())
	}
}

func TestHallOfFame_RejectsWhenFull(t *testing.T) {
	hof := NewHallOfFame(2)
	hof.Consider(1, 0, 3, nil)
	hof.Consider(1, 1, 2, nil)

	if hof.Consider(2, 0, 1, nil) {
		t.Error("lower fitness accepted into a full hall")
	}
	if !hof.Consider(2, 1, 2.5, nil) {
		t.Error("better fitness rejected")
	}
	best, ok := hof.Best()
	if !ok || best.Fitness != 3 {
		t.Errorf("best = %+v, %v", best, ok)
	}
}

func TestHallOfFame_CopiesWeights(t *testing.T) {
	hof := NewHallOfFame(1)
	w := []float32{1, 2, 3}
	hof.Consider(0, 0, 1, w)
	w[0] = 99

	best, _ := hof.Best()
	if best.Weights[0] != 1 {
		t.Error("hall of fame shares caller's weight slice")
	}
}

func TestHallOfFame_Empty(t *testing.T) {
	hof := NewHallOfFame(0)
	if hof.TopFitness() != 0 {
		t.Error("empty hall has non-zero top fitness")
	}
	if _, ok := hof.Best(); ok {
		t.Error("empty hall has a best entry")
	}
}

func TestHallOfFame_JSONRoundTrip(t *testing.T) {
	hof := NewHallOfFame(4)
	hof.Consider(3, 7, 1.5, []float32{0.25, -0.5})
	hof.Consider(4, 2, 2.5, []float32{1})

	data, err := hof.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "hof.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadHallOfFameFromFile(path, 4)
	if err != nil {
		t.Fatalf("LoadHallOfFameFromFile: %v", err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("size = %d, want 2", loaded.Size())
	}
	best, _ := loaded.Best()
	if best.Generation != 4 || best.Index != 2 || best.Fitness != 2.5 {
		t.Errorf("best = %+v", best)
	}
	second := loaded.Entries()[1]
	if len(second.Weights) != 2 || second.Weights[1] != -0.5 {
		t.Errorf("second weights = %v", second.Weights)
	}
}
