package config

import (
	"fmt"
	"strings"
)

// Capability is an optional environment mechanic.
type Capability uint8

const (
	Solar Capability = 1 << iota
	Quicksand
	Shields
)

// Fitness modes.
const (
	FitnessAdditive       = "additive"
	FitnessMultiplicative = "multiplicative"
)

// Capabilities is the set of enabled mechanics for an experiment.
type Capabilities uint8

// Has reports whether c is enabled.
func (cs Capabilities) Has(c Capability) bool {
	return uint8(cs)&uint8(c) != 0
}

// With returns cs with c enabled.
func (cs Capabilities) With(c Capability) Capabilities {
	return cs | Capabilities(c)
}

// Name returns the mode name used in file names and logs.
func (cs Capabilities) Name() string {
	var parts []string
	if cs.Has(Solar) {
		parts = append(parts, "solar")
	}
	if cs.Has(Quicksand) {
		parts = append(parts, "quicksand")
	}
	if cs.Has(Shields) {
		parts = append(parts, "shields")
	}
	if len(parts) == 0 {
		return "cells"
	}
	return strings.Join(parts, "+")
}

func (c CapabilitiesConfig) resolve() (Capabilities, error) {
	var cs Capabilities
	switch c.Mode {
	case "":
		if c.Solar {
			cs = cs.With(Solar)
		}
		if c.Quicksand {
			cs = cs.With(Quicksand)
		}
		if c.Shields {
			cs = cs.With(Shields)
		}
	case "cells":
	case "solar":
		cs = cs.With(Solar)
	case "quicksand":
		cs = cs.With(Quicksand)
	case "shields":
		cs = cs.With(Shields)
	default:
		return 0, fmt.Errorf("%w: capability mode %q", ErrInvalid, c.Mode)
	}
	if cs.Has(Solar) && cs.Has(Quicksand) {
		return 0, fmt.Errorf("%w: solar and quicksand cannot be combined", ErrInvalid)
	}
	return cs, nil
}

// InputLayout maps sensor values to network input slots. Absent slots are -1.
type InputLayout struct {
	Width        int
	LastMove     int // two slots: previous turn output, previous speed output
	CellDir      int // two slots: unit direction to nearest cell
	Energy       int
	SunDir       int // two slots
	SandDir      int // two slots
	OnSand       int
	Contested    int
	ShieldActive int
}

// InputLayout derives the input vector layout. Base slots always come first
// in the same order so a cells-only network stays a prefix of richer modes.
func (cs Capabilities) InputLayout() InputLayout {
	l := InputLayout{
		LastMove:     0,
		CellDir:      2,
		Energy:       4,
		SunDir:       -1,
		SandDir:      -1,
		OnSand:       -1,
		Contested:    -1,
		ShieldActive: -1,
	}
	next := 5
	if cs.Has(Solar) {
		// The slot after the sun direction is never written. Solar networks keep
		// the same 8-wide input layer as quicksand ones.
		l.SunDir = next
		next += 3
	}
	if cs.Has(Quicksand) {
		l.SandDir = next
		l.OnSand = next + 2
		next += 3
	}
	if cs.Has(Shields) {
		l.Contested = next
		l.ShieldActive = next + 1
		next += 2
	}
	l.Width = next
	return l
}

// NumOutputs returns the network output width: turn and speed, plus the
// shield activation pair when shields are enabled.
func (cs Capabilities) NumOutputs() int {
	if cs.Has(Shields) {
		return 4
	}
	return 2
}
