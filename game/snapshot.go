package game

import (
	"fmt"
	"io"

	"github.com/pthm-cable/lifeforms/telemetry"
)

// Snapshot captures the generation counter, the last epoch's statistics and
// every individual's weights in arena order.
func (g *Game) Snapshot() telemetry.Snapshot {
	per := g.brains[0].WeightCount()
	weights := make([]float32, 0, per*len(g.brains))
	for _, b := range g.brains {
		weights = b.AppendWeights(weights)
	}
	return telemetry.Snapshot{
		Generation:           uint32(g.generation),
		Last:                 g.last,
		WeightsPerIndividual: uint32(per),
		Weights:              weights,
	}
}

// SaveSnapshot writes the population to w in the binary snapshot format.
func (g *Game) SaveSnapshot(w io.Writer) error {
	return telemetry.WriteSnapshot(w, g.Snapshot())
}

// LoadSnapshot replaces every individual's weights and the generation counter
// from r, then starts a fresh epoch. On error the game is unchanged.
func (g *Game) LoadSnapshot(r io.Reader) error {
	snap, err := telemetry.ReadSnapshot(r, len(g.brains))
	if err != nil {
		return err
	}
	return g.ApplySnapshot(snap)
}

// ApplySnapshot installs an already decoded snapshot.
func (g *Game) ApplySnapshot(snap telemetry.Snapshot) error {
	per := g.brains[0].WeightCount()
	if int(snap.WeightsPerIndividual) != per || snap.Population() != len(g.brains) {
		return fmt.Errorf("%w: %d individuals of %d weights, want %d of %d",
			telemetry.ErrSnapshotShape, snap.Population(), snap.WeightsPerIndividual, len(g.brains), per)
	}

	for i, b := range g.brains {
		if _, err := b.SetWeights(snap.Individual(i)); err != nil {
			return err
		}
	}
	g.generation = int(snap.Generation)
	g.last = snap.Last
	g.resetEpoch()
	return nil
}

// LastRecord returns the statistics of the most recently finished epoch,
// including one restored from a snapshot.
func (g *Game) LastRecord() telemetry.Record {
	return g.last
}
