package systems

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/lifeforms/components"
	"github.com/pthm-cable/lifeforms/config"
	"github.com/pthm-cable/lifeforms/neural"
)

// Params are the per-run agent constants, converted once from config.
type Params struct {
	Caps   config.Capabilities
	Layout config.InputLayout

	MaxTicks    int32
	InitialCell float32
	InitialSun  float32
	CellUse     float32
	SunUse      float32
	CellGain    float32
	SunGain     float32
	MaxCell     float32
	MaxSun      float32
	ShieldCost  float32

	MaxTurn  float32
	SandSlow float32

	AgeWeight      float32
	Multiplicative bool
}

// NewParams builds agent parameters from a finalized config.
func NewParams(cfg *config.Config) *Params {
	e := cfg.Energy
	return &Params{
		Caps:           cfg.Derived.Caps,
		Layout:         cfg.Derived.Inputs,
		MaxTicks:       int32(cfg.Generation.MaxTicks),
		InitialCell:    float32(e.CellUsedPerStep * float64(e.InitialSteps)),
		InitialSun:     float32(e.SunUsedPerStep * float64(e.InitialSteps)),
		CellUse:        float32(e.CellUsedPerStep),
		SunUse:         float32(e.SunUsedPerStep),
		CellGain:       float32(e.CellGained),
		SunGain:        float32(e.SunGained),
		MaxCell:        float32(e.MaxCell),
		MaxSun:         float32(e.MaxSun),
		ShieldCost:     float32(e.ShieldCost),
		MaxTurn:        float32(cfg.Movement.MaxTurnSpeed),
		SandSlow:       float32(cfg.Movement.QuicksandSlowdown),
		AgeWeight:      float32(cfg.Fitness.AgeWeight),
		Multiplicative: cfg.Fitness.Mode == config.FitnessMultiplicative,
	}
}

// Agent steps one individual. It is a handle over the individual's ECS
// components and brain; it owns none of them.
type Agent struct {
	Index int

	Pos     *components.Position
	Heading *components.Heading
	Res     *components.Reservoirs
	Vitals  *components.Vitals
	Senses  *components.Senses
	Brain   *neural.Network

	world  *World
	params *Params
}

// NewAgent binds component pointers for arena slot index.
func NewAgent(
	index int,
	pos *components.Position,
	heading *components.Heading,
	res *components.Reservoirs,
	vitals *components.Vitals,
	senses *components.Senses,
	brain *neural.Network,
	world *World,
	params *Params,
) *Agent {
	return &Agent{
		Index:   index,
		Pos:     pos,
		Heading: heading,
		Res:     res,
		Vitals:  vitals,
		Senses:  senses,
		Brain:   brain,
		world:   world,
		params:  params,
	}
}

// ResetAge starts a new epoch: random heading, a free position, full initial
// reservoirs and cleared senses. The brain is untouched.
func (a *Agent) ResetAge(rng *rand.Rand) {
	p := a.params

	a.Heading.Angle = rng.Float32() * 2 * math.Pi
	a.Heading.DirX = float32(math.Cos(float64(a.Heading.Angle)))
	a.Heading.DirY = float32(math.Sin(float64(a.Heading.Angle)))

	a.Pos.X, a.Pos.Y = a.world.RandomFreePosition(rng)

	idle := components.Target{X: a.Pos.X, Y: a.Pos.Y, Index: -1}
	*a.Senses = components.Senses{Cell: idle, Sun: idle, Sand: idle}

	a.Res.Cell = p.InitialCell
	a.Res.Sun = 0
	if p.Caps.Has(config.Solar) {
		a.Res.Sun = p.InitialSun
	}

	*a.Vitals = components.Vitals{Fitness: a.Vitals.Fitness, Pursuing: -1}
}

// Reset is ResetAge plus a freshly randomized brain.
func (a *Agent) Reset(rng *rand.Rand) {
	a.ResetAge(rng)
	a.Brain.Randomize(rng)
}

// Alive reports whether every tracked reservoir is above zero.
func (a *Agent) Alive() bool {
	if a.Res.Cell <= 0 {
		return false
	}
	if a.params.Caps.Has(config.Solar) && a.Res.Sun <= 0 {
		return false
	}
	return true
}

// Step runs one tick and reports whether the agent is still alive.
// rng must not be shared with agents stepping concurrently.
func (a *Agent) Step(rng *rand.Rand) bool {
	if !a.Alive() {
		return false
	}
	p := a.params
	solar := p.Caps.Has(config.Solar)

	// Upkeep
	if solar {
		a.Res.Sun -= p.SunUse
	}
	a.Res.Cell -= p.CellUse
	a.Vitals.Age++

	// Sense
	s := a.world.Sense(a.Index, a.Pos.X, a.Pos.Y)
	a.Senses.Cell = s.Cell
	a.Senses.Sun = s.Sun
	a.Senses.Sand = s.Sand
	a.Vitals.Pursuing = s.Cell.Index
	a.Vitals.Contested = s.Contested

	// Think
	a.setInputs()
	a.Brain.Update()

	// Two outputs act as left and right feet.
	left, right := a.Brain.Value(0), a.Brain.Value(1)
	turn := clampFloat(right-left, -p.MaxTurn, p.MaxTurn)
	speed := right + left
	a.Heading.Angle = normalizeHeading(a.Heading.Angle + turn)
	a.Heading.DirX = float32(math.Cos(float64(a.Heading.Angle)))
	a.Heading.DirY = float32(math.Sin(float64(a.Heading.Angle)))

	if p.Caps.Has(config.Shields) {
		a.updateShield(s.Cell.Index)
	}

	if p.Caps.Has(config.Quicksand) && a.Vitals.OnQuicksand {
		speed *= p.SandSlow
	}

	// Move
	a.Pos.X, a.Pos.Y = a.world.Wrap(a.Pos.X+a.Heading.DirX*speed, a.Pos.Y+a.Heading.DirY*speed)
	a.Vitals.OnQuicksand = false

	// Eat
	switch a.world.ConsumeAt(a.Index, a.Pos.X, a.Pos.Y, rng) {
	case KindCell:
		a.Res.Cell = min(a.Res.Cell+p.CellGain, p.MaxCell)
	case KindSunlight:
		a.Res.Sun = min(a.Res.Sun+p.SunGain, p.MaxSun)
	case KindQuicksand:
		a.Vitals.OnQuicksand = true
	}

	if !a.Alive() {
		a.world.Retire(a.Index)
		return false
	}
	return true
}

// updateShield claims the pursued cell when the shield outputs ask for it and
// the cell reservoir is above a third of its cap. A successful claim costs
// extra energy. Otherwise any held claim is dropped.
func (a *Agent) updateShield(pursued int32) {
	p := a.params
	a.Vitals.ShieldActive = false
	if a.Brain.Value(2) > a.Brain.Value(3) && a.Res.Cell > p.MaxCell/3 {
		if a.world.Claim(int(pursued), a.Index) {
			a.Res.Cell -= p.ShieldCost
		}
		a.Vitals.ShieldActive = true
		return
	}
	a.world.Release(a.Index)
}

// setInputs writes the sensed state into the brain per the input layout.
func (a *Agent) setInputs() {
	p := a.params
	l := &p.Layout
	b := a.Brain

	// Direction actually moved last tick
	b.SetInput(l.LastMove, a.Heading.DirX)
	b.SetInput(l.LastMove+1, a.Heading.DirY)

	b.SetInput(l.CellDir, a.Senses.Cell.DirX)
	b.SetInput(l.CellDir+1, a.Senses.Cell.DirY)

	cell := a.Res.Cell / p.MaxCell
	if p.Caps.Has(config.Solar) {
		// One slot carries both reservoirs: above 0.5 when sun dominates.
		sun := a.Res.Sun / p.MaxSun / 2
		battery := cell / 2
		if sun > battery {
			b.SetInput(l.Energy, 0.5+sun)
		} else {
			b.SetInput(l.Energy, 0.5-battery)
		}
	} else {
		b.SetInput(l.Energy, cell)
	}

	if l.SunDir >= 0 {
		b.SetInput(l.SunDir, a.Senses.Sun.DirX)
		b.SetInput(l.SunDir+1, a.Senses.Sun.DirY)
	}
	if l.SandDir >= 0 {
		b.SetInput(l.SandDir, a.Senses.Sand.DirX)
		b.SetInput(l.SandDir+1, a.Senses.Sand.DirY)
		b.SetInput(l.OnSand, boolInput(a.Vitals.OnQuicksand))
	}
	if l.Contested >= 0 {
		b.SetInput(l.Contested, boolInput(a.Vitals.Contested))
		b.SetInput(l.ShieldActive, boolInput(a.Vitals.ShieldActive))
	}
}
