// Package neural provides the fully connected sigmoid networks that drive agents
// and the genetic operator that breeds them.
package neural

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	// ErrTopology is returned for layer sizes that cannot form a network.
	ErrTopology = errors.New("invalid topology")
	// ErrWeightCount is returned when a weight buffer is too short for a network.
	ErrWeightCount = errors.New("weight buffer too short")
)

// Topology lists neuron counts per layer, input layer first.
type Topology []int

// WeightCount returns the number of weights a network with this topology carries:
// one per incoming connection plus one output weight per non-input neuron.
func (t Topology) WeightCount() int {
	n := 0
	for l := 1; l < len(t); l++ {
		n += t[l] * (t[l-1] + 1)
	}
	return n
}

// Validate reports whether t can form a network.
func (t Topology) Validate() error {
	if len(t) < 2 {
		return fmt.Errorf("%w: need at least 2 layers, got %d", ErrTopology, len(t))
	}
	for i, size := range t {
		if size <= 0 {
			return fmt.Errorf("%w: layer %d has %d neurons", ErrTopology, i, size)
		}
	}
	return nil
}

// Equal reports whether two topologies have the same layer sizes.
func (t Topology) Equal(o Topology) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// Network is a layered feedforward network with sigmoid activation on every
// non-input neuron. There is no bias term.
//
// Weights for layer l are stored per neuron as [out, w_0 .. w_{n-1}], where n is
// the size of layer l-1. The leading output weight is carried so stored genomes
// keep their layout but it takes no part in Update. The flattened weight order
// walks layers, then neurons, then that slice.
type Network struct {
	topology Topology
	weights  [][]float32 // per layer (index 0 unused), len = size[l] * (size[l-1]+1)
	values   [][]float32 // per layer activations
}

// NewNetwork creates a network with all weights zero.
func NewNetwork(t Topology) (*Network, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	nn := &Network{
		topology: append(Topology(nil), t...),
		weights:  make([][]float32, len(t)),
		values:   make([][]float32, len(t)),
	}
	for l, size := range t {
		nn.values[l] = make([]float32, size)
		if l > 0 {
			nn.weights[l] = make([]float32, size*(t[l-1]+1))
		}
	}
	return nn, nil
}

// MustNetwork is like NewNetwork but panics on error.
func MustNetwork(t Topology) *Network {
	nn, err := NewNetwork(t)
	if err != nil {
		panic(err)
	}
	return nn
}

// Topology returns a copy of the layer sizes.
func (nn *Network) Topology() Topology {
	return append(Topology(nil), nn.topology...)
}

// WeightCount returns the number of weights in the network.
func (nn *Network) WeightCount() int {
	return nn.topology.WeightCount()
}

// NumInputs returns the input layer width.
func (nn *Network) NumInputs() int { return nn.topology[0] }

// NumOutputs returns the output layer width.
func (nn *Network) NumOutputs() int { return nn.topology[len(nn.topology)-1] }

// Randomize sets every connection and output weight uniformly in [0, 1).
func (nn *Network) Randomize(rng *rand.Rand) {
	for l := 1; l < len(nn.weights); l++ {
		for i := range nn.weights[l] {
			nn.weights[l][i] = rng.Float32()
		}
	}
}

// SetInput sets input neuron i. Panics if i is out of range.
func (nn *Network) SetInput(i int, v float32) {
	nn.values[0][i] = v
}

// SetInputs copies in into the input layer. Panics if in is not the input width.
func (nn *Network) SetInputs(in []float32) {
	if len(in) != len(nn.values[0]) {
		panic(fmt.Sprintf("neural: SetInputs got %d values, want %d", len(in), len(nn.values[0])))
	}
	copy(nn.values[0], in)
}

// Update propagates the current inputs through every layer.
func (nn *Network) Update() {
	for l := 1; l < len(nn.topology); l++ {
		prev := nn.values[l-1]
		stride := len(prev) + 1
		w := nn.weights[l]
		out := nn.values[l]
		for n := range out {
			row := w[n*stride+1 : (n+1)*stride]
			var sum float32
			for j, v := range prev {
				sum += row[j] * v
			}
			out[n] = sigmoid(sum)
		}
	}
}

// Value returns output neuron i from the last Update. Panics if i is out of range.
func (nn *Network) Value(i int) float32 {
	out := nn.values[len(nn.values)-1]
	if i < 0 || i >= len(out) {
		panic(fmt.Sprintf("neural: output %d out of range [0,%d)", i, len(out)))
	}
	return out[i]
}

// Weights returns the flattened weights in serialization order.
func (nn *Network) Weights() []float32 {
	return nn.AppendWeights(make([]float32, 0, nn.WeightCount()))
}

// AppendWeights appends the flattened weights to dst and returns the extended slice.
func (nn *Network) AppendWeights(dst []float32) []float32 {
	for l := 1; l < len(nn.weights); l++ {
		dst = append(dst, nn.weights[l]...)
	}
	return dst
}

// SetWeights loads weights from the front of buf in serialization order and
// returns how many were consumed. Extra values are left for the caller. The
// network is untouched when buf is too short.
func (nn *Network) SetWeights(buf []float32) (int, error) {
	need := nn.WeightCount()
	if len(buf) < need {
		return 0, fmt.Errorf("%w: need %d, got %d", ErrWeightCount, need, len(buf))
	}
	off := 0
	for l := 1; l < len(nn.weights); l++ {
		off += copy(nn.weights[l], buf[off:])
	}
	return off, nil
}

// Clone creates a deep copy of the network, activations included.
func (nn *Network) Clone() *Network {
	clone := MustNetwork(nn.topology)
	for l := range nn.weights {
		copy(clone.weights[l], nn.weights[l])
		copy(clone.values[l], nn.values[l])
	}
	return clone
}

// Activations returns a copy of every layer's values from the last Update.
func (nn *Network) Activations() [][]float32 {
	act := make([][]float32, len(nn.values))
	for l, v := range nn.values {
		act[l] = append([]float32(nil), v...)
	}
	return act
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}
