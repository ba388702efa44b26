package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/lifeforms/config"
)

func TestOutputManager_Disabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v", om, err)
	}
	// Every method is a no-op on a nil manager.
	if err := om.WriteGeneration(GenerationStats{}); err != nil {
		t.Error(err)
	}
	if err := om.WritePerf(PerfStats{}, 0); err != nil {
		t.Error(err)
	}
	if err := om.WriteHallOfFame(NewHallOfFame(1)); err != nil {
		t.Error(err)
	}
	if om.Dir() != "" {
		t.Error("nil manager has a directory")
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManager_GenerationsCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for g := 0; g < 3; g++ {
		if err := om.WriteGeneration(GenerationStats{Generation: g, NumSurvivors: 2, NumIterations: 100}); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WritePerf(PerfStats{Ticks: 1, AvgTick: time.Millisecond}, 0); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "generations.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("generations.csv has %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "generation,survivors,iterations,total_fitness") {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Count(string(data), "generation,") != 1 {
		t.Error("header written more than once")
	}
	if !strings.HasPrefix(lines[3], "2,2,100,") {
		t.Errorf("last row = %q", lines[3])
	}

	perf, err := os.ReadFile(filepath.Join(dir, "perf.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(perf), "avg_tick_us") {
		t.Errorf("perf.csv missing header: %q", perf)
	}
}

func TestOutputManager_ConfigAndHall(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	hof := NewHallOfFame(2)
	hof.Consider(1, 0, 3, []float32{1})
	if err := om.WriteHallOfFame(hof); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadHallOfFameFromFile(filepath.Join(dir, "hall_of_fame.json"), 2); err != nil {
		t.Errorf("hall of fame does not load: %v", err)
	}
}
