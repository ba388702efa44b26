// Package components defines ECS components for the simulation.
package components

// Position represents an agent's world position.
type Position struct {
	X, Y float32
}

// Heading is the facing angle and the unit movement vector derived from it.
// The vector is what the agent actually moved along last tick and feeds the
// brain on the next one.
type Heading struct {
	Angle      float32
	DirX, DirY float32
}

// Reservoirs holds the agent's energy counters. Sun is only tracked with solar enabled.
type Reservoirs struct {
	Cell float32
	Sun  float32
}

// Vitals holds per-epoch life state.
type Vitals struct {
	Age     int32   // Ticks survived this epoch
	Fitness float32 // Raw score from the last fitness calculation, may be negative

	OnQuicksand  bool  // Landed on quicksand last tick
	ShieldActive bool  // Shield was requested last tick
	Contested    bool  // Another agent pursues the same cell
	Pursuing     int32 // Resource index of the nearest cell, -1 if none
}

// Target is a sensed resource: wrap-adjusted target point and unit direction.
type Target struct {
	X, Y       float32
	DirX, DirY float32
	Index      int32 // Resource index, -1 if none
	Available  bool
}

// Senses holds the nearest target per resource kind from the last tick.
type Senses struct {
	Cell Target
	Sun  Target
	Sand Target
}

// Identity ties an entity to its arena slot. The slot index is also the agent's
// claim-holder id in the world's resource table.
type Identity struct {
	Index int32
}
