package game

import (
	"github.com/pthm-cable/lifeforms/components"
	"github.com/pthm-cable/lifeforms/systems"
)

// AgentView is a read-only copy of one agent's observable state.
type AgentView struct {
	Index        int
	X, Y         float32
	Angle        float32
	Alive        bool
	Cell, Sun    float32
	CellTarget   components.Target
	SunTarget    components.Target
	SandTarget   components.Target
	Contested    bool
	ShieldActive bool
	Age          int32
}

// Agents returns a view of every agent in arena order. Call it between
// ticks, for example once per rendered frame.
func (g *Game) Agents() []AgentView {
	views := make([]AgentView, len(g.agents))
	for i, a := range g.agents {
		views[i] = AgentView{
			Index:        i,
			X:            a.Pos.X,
			Y:            a.Pos.Y,
			Angle:        a.Heading.Angle,
			Alive:        a.Alive(),
			Cell:         a.Res.Cell,
			Sun:          a.Res.Sun,
			CellTarget:   a.Senses.Cell,
			SunTarget:    a.Senses.Sun,
			SandTarget:   a.Senses.Sand,
			Contested:    a.Vitals.Contested,
			ShieldActive: a.Vitals.ShieldActive,
			Age:          a.Vitals.Age,
		}
	}
	return views
}

// Resources returns a copy of the world's resource table.
func (g *Game) Resources() []systems.Resource {
	return g.world.Resources()
}
