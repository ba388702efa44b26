package telemetry

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrSnapshotTruncated is returned when a snapshot ends before its declared length.
	ErrSnapshotTruncated = errors.New("snapshot truncated")
	// ErrSnapshotShape is returned when a snapshot does not fit the population.
	ErrSnapshotShape = errors.New("snapshot shape mismatch")
)

// maxWeightsPerIndividual bounds the declared per-individual length so a
// corrupt header cannot force a huge allocation.
const maxWeightsPerIndividual = 1 << 24

// Snapshot is the persisted state of a population: the generation counter,
// the last epoch's statistics and every individual's weights.
//
// On disk, little-endian:
//
//	u32 generation
//	i32 survivors, i32 iterations, f32 total fitness
//	u32 weights per individual
//	f32 x population x weights per individual
type Snapshot struct {
	Generation           uint32
	Last                 Record
	WeightsPerIndividual uint32
	Weights              []float32
}

type snapshotHeader struct {
	Generation           uint32
	Last                 Record
	WeightsPerIndividual uint32
}

// Population returns how many individuals the snapshot holds.
func (s Snapshot) Population() int {
	if s.WeightsPerIndividual == 0 {
		return 0
	}
	return len(s.Weights) / int(s.WeightsPerIndividual)
}

// Individual returns the weights of individual i.
func (s Snapshot) Individual(i int) []float32 {
	n := int(s.WeightsPerIndividual)
	return s.Weights[i*n : (i+1)*n]
}

// WriteSnapshot writes s to w.
func WriteSnapshot(w io.Writer, s Snapshot) error {
	if s.WeightsPerIndividual == 0 || len(s.Weights)%int(s.WeightsPerIndividual) != 0 {
		return fmt.Errorf("%w: %d weights with %d per individual", ErrSnapshotShape, len(s.Weights), s.WeightsPerIndividual)
	}
	hdr := snapshotHeader{Generation: s.Generation, Last: s.Last, WeightsPerIndividual: s.WeightsPerIndividual}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, s.Weights); err != nil {
		return fmt.Errorf("writing snapshot weights: %w", err)
	}
	return nil
}

// ReadSnapshot reads a snapshot holding population individuals from r.
// Bytes after the declared weights are left unread.
func ReadSnapshot(r io.Reader, population int) (Snapshot, error) {
	var hdr snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Snapshot{}, readErr("header", err)
	}
	if hdr.WeightsPerIndividual == 0 || hdr.WeightsPerIndividual > maxWeightsPerIndividual {
		return Snapshot{}, fmt.Errorf("%w: %d weights per individual", ErrSnapshotShape, hdr.WeightsPerIndividual)
	}

	weights := make([]float32, int(hdr.WeightsPerIndividual)*population)
	if err := binary.Read(r, binary.LittleEndian, weights); err != nil {
		return Snapshot{}, readErr("weights", err)
	}

	return Snapshot{
		Generation:           hdr.Generation,
		Last:                 hdr.Last,
		WeightsPerIndividual: hdr.WeightsPerIndividual,
		Weights:              weights,
	}, nil
}

func readErr(part string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrSnapshotTruncated, part)
	}
	return fmt.Errorf("reading snapshot %s: %w", part, err)
}

// SnapshotFileName names the snapshot for a capability mode and generation.
func SnapshotFileName(mode string, generation uint32) string {
	return fmt.Sprintf("weights_%s_generation_%d.dat", mode, generation)
}

// SaveSnapshotFile writes s into dir and returns the file path.
func SaveSnapshotFile(dir, mode string, s Snapshot) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, SnapshotFileName(mode, s.Generation))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := WriteSnapshot(bw, s); err != nil {
		f.Close()
		return "", err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshotFile reads a snapshot holding population individuals from path.
func LoadSnapshotFile(path string, population int) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(bufio.NewReader(f), population)
}
