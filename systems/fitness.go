package systems

import (
	"github.com/pthm-cable/lifeforms/components"
	"github.com/pthm-cable/lifeforms/config"
)

// Score rewards time survived plus what is left in the reservoirs. With solar
// the two reservoir ratios are summed, or multiplied to favour agents that keep
// both topped up. The result is not clamped.
func Score(p *Params, age int32, r components.Reservoirs) float32 {
	ageTerm := p.AgeWeight * float32(age) / float32(p.MaxTicks)
	cell := r.Cell / p.MaxCell
	if !p.Caps.Has(config.Solar) {
		return ageTerm + cell
	}
	sun := r.Sun / p.MaxSun
	if p.Multiplicative {
		return ageTerm + sun*cell
	}
	return ageTerm + sun + cell
}

// MaxScore is the best score a full-length life with full reservoirs earns.
func MaxScore(p *Params) float32 {
	if p.Caps.Has(config.Solar) && !p.Multiplicative {
		return p.AgeWeight + 2
	}
	return p.AgeWeight + 1
}

// CalculateFitness scores the epoch so far and stores it.
func (a *Agent) CalculateFitness() float32 {
	a.Vitals.Fitness = Score(a.params, a.Vitals.Age, *a.Res)
	return a.Vitals.Fitness
}

// Fitness returns the last calculated score floored at zero.
func (a *Agent) Fitness() float32 {
	return max(a.Vitals.Fitness, 0)
}

// RawFitness returns the last calculated score as is.
func (a *Agent) RawFitness() float32 {
	return a.Vitals.Fitness
}
