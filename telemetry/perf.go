package telemetry

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phase is a timed section of a tick.
type Phase int

const (
	PhaseAgents Phase = iota // parallel agent stepping, barrier included
	PhaseCensus              // survivor count
	numPhases
)

func (p Phase) String() string {
	switch p {
	case PhaseAgents:
		return "agents"
	case PhaseCensus:
		return "census"
	}
	return "unknown"
}

type tickSample struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps tick timings over a ring of the most recent ticks.
// It is driven by the coordinator goroutine only.
type PerfCollector struct {
	ring   []tickSample
	next   int
	filled int

	cur        tickSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
	timing     bool
}

// NewPerfCollector averages over the last window ticks (60 when window < 1).
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{ring: make([]tickSample, window)}
}

func (p *PerfCollector) StartTick() {
	p.cur = tickSample{}
	p.tickStart = time.Now()
	p.timing = false
}

// StartPhase closes the running phase, if any, and opens phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phase = phase
	p.phaseStart = now
	p.timing = true
}

func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.timing = false
	p.cur.total = now.Sub(p.tickStart)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	if p.filled < len(p.ring) {
		p.filled++
	}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.timing && p.phase >= 0 && p.phase < numPhases {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// PerfStats summarises the collector's window.
type PerfStats struct {
	Ticks          int
	AvgTick        time.Duration
	MinTick        time.Duration
	MaxTick        time.Duration
	TicksPerSecond float64
	phaseShare     [numPhases]float64
}

// Share is the percentage of the average tick spent in phase.
func (s PerfStats) Share(phase Phase) float64 {
	if phase < 0 || phase >= numPhases {
		return 0
	}
	return s.phaseShare[phase]
}

func (p *PerfCollector) Stats() PerfStats {
	if p.filled == 0 {
		return PerfStats{}
	}

	ticks := make([]float64, p.filled)
	var phaseSum [numPhases]time.Duration
	for i, s := range p.ring[:p.filled] {
		ticks[i] = float64(s.total)
		for ph, d := range s.phases {
			phaseSum[ph] += d
		}
	}

	st := PerfStats{
		Ticks:   p.filled,
		AvgTick: time.Duration(stat.Mean(ticks, nil)),
		MinTick: time.Duration(floats.Min(ticks)),
		MaxTick: time.Duration(floats.Max(ticks)),
	}
	if st.AvgTick <= 0 {
		return st
	}
	st.TicksPerSecond = float64(time.Second) / float64(st.AvgTick)
	total := floats.Sum(ticks)
	for ph, sum := range phaseSum {
		st.phaseShare[ph] = float64(sum) / total * 100
	}
	return st
}

// LogStats logs the window at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "perf", s)
}

func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("ticks", s.Ticks),
		slog.Int64("avg_tick_us", s.AvgTick.Microseconds()),
		slog.Int64("min_tick_us", s.MinTick.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTick.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for ph := Phase(0); ph < numPhases; ph++ {
		attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.phaseShare[ph]))
	}
	return slog.GroupValue(attrs...)
}

// PerfRow is one perf.csv line.
type PerfRow struct {
	Generation  int     `csv:"generation"`
	AvgTickUS   int64   `csv:"avg_tick_us"`
	MinTickUS   int64   `csv:"min_tick_us"`
	MaxTickUS   int64   `csv:"max_tick_us"`
	TicksPerSec float64 `csv:"ticks_per_sec"`
	AgentsPct   float64 `csv:"agents_pct"`
	CensusPct   float64 `csv:"census_pct"`
}

func (s PerfStats) Row(generation int) PerfRow {
	return PerfRow{
		Generation:  generation,
		AvgTickUS:   s.AvgTick.Microseconds(),
		MinTickUS:   s.MinTick.Microseconds(),
		MaxTickUS:   s.MaxTick.Microseconds(),
		TicksPerSec: s.TicksPerSecond,
		AgentsPct:   s.Share(PhaseAgents),
		CensusPct:   s.Share(PhaseCensus),
	}
}
