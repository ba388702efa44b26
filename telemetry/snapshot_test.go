package telemetry

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Generation:           12,
		Last:                 Record{NumSurvivors: 3, NumIterations: 6000, TotalFitness: 41.5},
		WeightsPerIndividual: 3,
		Weights:              []float32{0.1, 0.2, 0.3, 1.1, 1.2, 1.3},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, testSnapshot()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	// 4 generation + 12 record + 4 count + 6 floats
	if buf.Len() != 4+12+4+6*4 {
		t.Errorf("encoded size = %d, want %d", buf.Len(), 4+12+4+6*4)
	}

	got, err := ReadSnapshot(&buf, 2)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	want := testSnapshot()
	if got.Generation != want.Generation || got.Last != want.Last || got.WeightsPerIndividual != want.WeightsPerIndividual {
		t.Errorf("header = %+v, want %+v", got, want)
	}
	for i := range want.Weights {
		if got.Weights[i] != want.Weights[i] {
			t.Errorf("weight %d = %v, want %v", i, got.Weights[i], want.Weights[i])
		}
	}
	if got.Population() != 2 {
		t.Errorf("population = %d, want 2", got.Population())
	}
	if ind := got.Individual(1); ind[0] != 1.1 || len(ind) != 3 {
		t.Errorf("individual 1 = %v", ind)
	}
}

func TestSnapshotLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if g := binary.LittleEndian.Uint32(b[0:4]); g != 12 {
		t.Errorf("generation field = %d, want 12", g)
	}
	if s := int32(binary.LittleEndian.Uint32(b[4:8])); s != 3 {
		t.Errorf("survivors field = %d, want 3", s)
	}
	if n := binary.LittleEndian.Uint32(b[16:20]); n != 3 {
		t.Errorf("weights-per-individual field = %d, want 3", n)
	}
}

func TestReadSnapshotTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()

	for _, n := range []int{0, 3, 10, 19, len(full) - 1} {
		_, err := ReadSnapshot(bytes.NewReader(full[:n]), 2)
		if !errors.Is(err, ErrSnapshotTruncated) {
			t.Errorf("%d bytes: error = %v, want ErrSnapshotTruncated", n, err)
		}
	}

	// Asking for more individuals than stored is also short.
	if _, err := ReadSnapshot(bytes.NewReader(full), 3); !errors.Is(err, ErrSnapshotTruncated) {
		t.Errorf("population 3: error = %v, want ErrSnapshotTruncated", err)
	}
}

func TestReadSnapshotIgnoresTrailingBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte{0xde, 0xad, 0xbe, 0xef, 0x01})

	r := bytes.NewReader(buf.Bytes())
	got, err := ReadSnapshot(r, 2)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(got.Weights) != 6 {
		t.Errorf("weights = %d, want 6", len(got.Weights))
	}
	if r.Len() != 5 {
		t.Errorf("%d bytes left unread, want the 5 trailing bytes", r.Len())
	}
}

func TestSnapshotShapeErrors(t *testing.T) {
	s := testSnapshot()
	s.Weights = s.Weights[:5]
	if err := WriteSnapshot(&bytes.Buffer{}, s); !errors.Is(err, ErrSnapshotShape) {
		t.Errorf("ragged weights: error = %v, want ErrSnapshotShape", err)
	}

	var buf bytes.Buffer
	hdr := snapshotHeader{Generation: 1, WeightsPerIndividual: 0}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSnapshot(&buf, 2); !errors.Is(err, ErrSnapshotShape) {
		t.Errorf("zero per-individual: error = %v, want ErrSnapshotShape", err)
	}
}

func TestSnapshotFile(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveSnapshotFile(dir, "cells", testSnapshot())
	if err != nil {
		t.Fatalf("SaveSnapshotFile: %v", err)
	}
	if filepath.Base(path) != "weights_cells_generation_12.dat" {
		t.Errorf("file name = %s", filepath.Base(path))
	}
	got, err := LoadSnapshotFile(path, 2)
	if err != nil {
		t.Fatalf("LoadSnapshotFile: %v", err)
	}
	if got.Generation != 12 || len(got.Weights) != 6 {
		t.Errorf("loaded %+v", got)
	}

	if _, err := LoadSnapshotFile(filepath.Join(dir, "missing.dat"), 2); err == nil {
		t.Error("expected error for missing file")
	}
}
