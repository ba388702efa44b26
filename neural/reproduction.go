package neural

import (
	"fmt"
	"math/rand"
	"sort"
)

// Scored pairs a network with the fitness it earned this generation.
type Scored struct {
	Network *Network
	Fitness float32
}

// GeneticOperator breeds a new generation of weights in place.
type GeneticOperator struct {
	NumBest        int     // Elites copied unchanged, taken from the top of the ranking
	CrossOverRate  float32 // Stored for configuration parity; every child pair is crossed over
	MutationRate   float32 // Per-weight mutation probability
	MutationAmount float32 // Maximum absolute mutation delta
}

// NextGeneration replaces every network's weights with the next generation.
// Elites fill the first slots of the ranking by fitness, descending; the rest are
// children of roulette-selected parents. Results are written back positionally
// into pop, so slot i receives genome i of the new generation regardless of
// which agent it came from.
func (g *GeneticOperator) NextGeneration(rng *rand.Rand, pop []Scored) error {
	n := len(pop)
	if n == 0 {
		return nil
	}
	topo := pop[0].Network.topology
	for i := range pop {
		if !pop[i].Network.topology.Equal(topo) {
			return fmt.Errorf("%w: individual %d has %v, want %v", ErrTopology, i, pop[i].Network.topology, topo)
		}
	}

	var total float32
	for i := range pop {
		total += pop[i].Fitness
	}

	ranked := make([]Scored, n)
	copy(ranked, pop)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Fitness < ranked[j].Fitness })

	genomes := make([][]float32, 0, n)
	numBest := min(g.NumBest, n)
	for i := 0; i < numBest; i++ {
		genomes = append(genomes, ranked[n-1-i].Network.Weights())
	}

	for len(genomes) < n {
		mum := Roulette(rng, ranked, total).Network.Weights()
		dad := Roulette(rng, ranked, total).Network.Weights()
		baby1, baby2 := Crossover(rng, mum, dad)
		Mutate(rng, baby1, g.MutationRate, g.MutationAmount)
		Mutate(rng, baby2, g.MutationRate, g.MutationAmount)
		genomes = append(genomes, baby1)
		if len(genomes) < n {
			genomes = append(genomes, baby2)
		}
	}

	for i := range pop {
		if _, err := pop[i].Network.SetWeights(genomes[i]); err != nil {
			return fmt.Errorf("writing genome %d: %w", i, err)
		}
	}
	return nil
}

// Roulette picks an individual with probability proportional to fitness.
// ranked must be sorted ascending by fitness. When the total is not positive,
// or rounding leaves the draw unreached, the last (fittest) individual is returned.
func Roulette(rng *rand.Rand, ranked []Scored, total float32) Scored {
	last := ranked[len(ranked)-1]
	if total <= 0 {
		return last
	}
	slice := rng.Float32() * total
	var soFar float32
	for _, s := range ranked {
		soFar += s.Fitness
		if soFar >= slice {
			return s
		}
	}
	return last
}

// Crossover splices two equal-length parents at a random point and returns
// both complementary children. Parents are not modified.
func Crossover(rng *rand.Rand, mum, dad []float32) (baby1, baby2 []float32) {
	if len(mum) != len(dad) {
		panic(fmt.Sprintf("neural: crossover of %d and %d weights", len(mum), len(dad)))
	}
	baby1 = make([]float32, len(mum))
	baby2 = make([]float32, len(mum))
	cp := 0
	if len(mum) > 0 {
		cp = rng.Intn(len(mum))
	}
	copy(baby1[:cp], mum[:cp])
	copy(baby1[cp:], dad[cp:])
	copy(baby2[:cp], dad[:cp])
	copy(baby2[cp:], mum[cp:])
	return baby1, baby2
}

// Mutate perturbs each weight with probability rate by a uniform delta in
// [-amount, amount).
func Mutate(rng *rand.Rand, weights []float32, rate, amount float32) {
	for i := range weights {
		if rng.Float32() < rate {
			weights[i] += amount * (rng.Float32()*2 - 1)
		}
	}
}
