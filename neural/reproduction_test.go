package neural

import (
	"math/rand"
	"testing"
)

func newPopulation(t *testing.T, rng *rand.Rand, n int) []Scored {
	t.Helper()
	pop := make([]Scored, n)
	for i := range pop {
		nn := MustNetwork(Topology{3, 4, 2})
		nn.Randomize(rng)
		pop[i] = Scored{Network: nn, Fitness: float32(i + 1)}
	}
	return pop
}

func TestNextGenerationSizes(t *testing.T) {
	for _, n := range []int{1, 2, 3, 30} {
		rng := rand.New(rand.NewSource(42))
		pop := newPopulation(t, rng, n)
		op := GeneticOperator{NumBest: 4, CrossOverRate: 0.7, MutationRate: 0.1, MutationAmount: 0.3}
		if err := op.NextGeneration(rng, pop); err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		for i := range pop {
			if got := len(pop[i].Network.Weights()); got != pop[i].Network.WeightCount() {
				t.Errorf("n=%d: individual %d has %d weights", n, i, got)
			}
		}
	}
}

func TestNextGenerationElitism(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pop := newPopulation(t, rng, 10)
	best := pop[9].Network.Weights()
	second := pop[8].Network.Weights()

	op := GeneticOperator{NumBest: 2, MutationRate: 1, MutationAmount: 0.3}
	if err := op.NextGeneration(rng, pop); err != nil {
		t.Fatal(err)
	}
	// Elites land in the first slots, fittest first.
	for i, w := range pop[0].Network.Weights() {
		if w != best[i] {
			t.Fatalf("slot 0 weight %d = %f, want elite %f", i, w, best[i])
		}
	}
	for i, w := range pop[1].Network.Weights() {
		if w != second[i] {
			t.Fatalf("slot 1 weight %d = %f, want elite %f", i, w, second[i])
		}
	}
}

func TestNextGenerationZeroFitness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pop := newPopulation(t, rng, 5)
	for i := range pop {
		pop[i].Fitness = 0
	}
	op := GeneticOperator{NumBest: 0}
	if err := op.NextGeneration(rng, pop); err != nil {
		t.Fatal(err)
	}
}

func TestNextGenerationTopologyMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pop := newPopulation(t, rng, 3)
	pop[2].Network = MustNetwork(Topology{3, 5, 2})
	op := GeneticOperator{NumBest: 1}
	if err := op.NextGeneration(rng, pop); err == nil {
		t.Error("expected topology mismatch error")
	}
}

func TestRoulette(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ranked := []Scored{{Fitness: 0}, {Fitness: 0}, {Fitness: 0}}
	ranked[2].Network = MustNetwork(Topology{1, 1})
	if got := Roulette(rng, ranked, 0); got.Network != ranked[2].Network {
		t.Error("zero total should return the last individual")
	}

	// Only one individual carries fitness, so it must always be chosen.
	ranked = []Scored{{Fitness: 0}, {Fitness: 0}, {Fitness: 5, Network: MustNetwork(Topology{1, 1})}}
	for i := 0; i < 100; i++ {
		if got := Roulette(rng, ranked, 5); got.Fitness != 5 {
			t.Fatalf("draw %d picked fitness %f", i, got.Fitness)
		}
	}
}

func TestCrossoverComplement(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	mum := []float32{1, 1, 1, 1, 1, 1}
	dad := []float32{2, 2, 2, 2, 2, 2}
	for trial := 0; trial < 20; trial++ {
		b1, b2 := Crossover(rng, mum, dad)
		for i := range mum {
			if b1[i]+b2[i] != 3 {
				t.Fatalf("children not complementary at %d: %f, %f", i, b1[i], b2[i])
			}
		}
	}
	if mum[0] != 1 || dad[0] != 2 {
		t.Error("crossover modified parents")
	}
}

func TestMutate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	w := []float32{0.5, 0.5, 0.5, 0.5}

	Mutate(rng, w, 0, 0.3)
	for i, v := range w {
		if v != 0.5 {
			t.Errorf("rate 0 changed weight %d to %f", i, v)
		}
	}

	Mutate(rng, w, 1, 0.3)
	for i, v := range w {
		if v < 0.2 || v > 0.8 {
			t.Errorf("weight %d = %f moved more than the mutation amount", i, v)
		}
	}
}
