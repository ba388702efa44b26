package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/lifeforms/config"
)

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir            string
	generationFile *os.File
	perfFile       *os.File

	// Track if headers have been written
	generationHeaderWritten bool
	perfHeaderWritten       bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "generations.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating generations.csv: %w", err)
	}
	om.generationFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.generationFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteGeneration appends a generation record to generations.csv.
func (om *OutputManager) WriteGeneration(stats GenerationStats) error {
	if om == nil {
		return nil
	}
	if err := writeCSV(om.generationFile, []GenerationStats{stats}, &om.generationHeaderWritten); err != nil {
		return fmt.Errorf("writing generation: %w", err)
	}
	return nil
}

// WritePerf appends a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, generation int) error {
	if om == nil {
		return nil
	}
	if err := writeCSV(om.perfFile, []PerfRow{stats.Row(generation)}, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// writeCSV marshals records, with headers only on the first write.
func writeCSV(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// WriteHallOfFame saves the hall of fame as JSON.
func (om *OutputManager) WriteHallOfFame(hof *HallOfFame) error {
	if om == nil || hof == nil {
		return nil
	}

	data, err := hof.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "hall_of_fame.json"), data, 0644); err != nil {
		return fmt.Errorf("writing hall_of_fame.json: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.generationFile, om.perfFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
