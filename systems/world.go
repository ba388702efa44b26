package systems

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/pthm-cable/lifeforms/components"
	"github.com/pthm-cable/lifeforms/config"
)

// ResourceKind tags a resource.
type ResourceKind uint8

const (
	KindNone ResourceKind = iota
	KindCell
	KindSunlight
	KindQuicksand
)

func (k ResourceKind) String() string {
	switch k {
	case KindCell:
		return "cell"
	case KindSunlight:
		return "sunlight"
	case KindQuicksand:
		return "quicksand"
	default:
		return "none"
	}
}

// Unclaimed is the ClaimedBy value of a resource nobody shields.
const Unclaimed int32 = -1

// Resource is one persistent resource slot. Consuming it moves it rather than
// removing it.
type Resource struct {
	Kind      ResourceKind
	X, Y      float32
	Radius    float32
	RadiusSq  float32
	ClaimedBy int32
}

// Sensing is the result of a nearest-resource query.
type Sensing struct {
	Cell      components.Target
	Sun       components.Target
	Sand      components.Target
	Contested bool // another agent's nearest cell is the same as ours
}

// World owns the resource table and answers spatial queries on a torus.
// All methods are safe for concurrent use by agents on different workers.
type World struct {
	mu        sync.RWMutex
	resources []Resource

	width, height float32
	halfW, halfH  float32
	spawnMin      [2]float32
	spawnSpan     [2]float32

	nonConsumable   ResourceKind
	respawnAttempts int

	// nearest cell index per agent, -1 when none
	pursuit []atomic.Int32
}

// NewWorld places the fixtures enabled by cfg and scatters the cells.
func NewWorld(cfg *config.Config, numAgents int, rng *rand.Rand) *World {
	w := &World{
		width:           cfg.Derived.WorldW32,
		height:          cfg.Derived.WorldH32,
		respawnAttempts: cfg.Resources.RespawnAttempts,
		pursuit:         make([]atomic.Int32, numAgents),
	}
	w.halfW = w.width / 2
	w.halfH = w.height / 2
	margin := float32(cfg.World.SpawnMargin)
	w.spawnMin = [2]float32{w.width * margin, w.height * margin}
	w.spawnSpan = [2]float32{w.width * (1 - 2*margin), w.height * (1 - 2*margin)}
	if w.respawnAttempts <= 0 {
		w.respawnAttempts = 1
	}

	size := min(w.width, w.height)
	caps := cfg.Derived.Caps
	if caps.Has(config.Solar) {
		w.nonConsumable = KindSunlight
		for _, f := range cfg.Resources.Sunlight {
			w.addFixture(f, size, KindSunlight)
		}
	}
	if caps.Has(config.Quicksand) {
		w.nonConsumable = KindQuicksand
		for _, f := range cfg.Resources.Quicksand {
			w.addFixture(f, size, KindQuicksand)
		}
	}

	cellRadius := pixelRadius(cfg.Resources.CellRadius, size)
	for i := 0; i < cfg.Derived.NumCells; i++ {
		x, y := w.freePositionLocked(rng, -1)
		w.resources = append(w.resources, newResource(KindCell, x, y, cellRadius))
	}

	for i := range w.pursuit {
		w.pursuit[i].Store(-1)
	}
	return w
}

// pixelRadius truncates to whole units, never below one.
func pixelRadius(frac float64, size float32) float32 {
	return max(float32(math.Floor(frac*float64(size))), 1)
}

func newResource(kind ResourceKind, x, y, radius float32) Resource {
	return Resource{Kind: kind, X: x, Y: y, Radius: radius, RadiusSq: radius * radius, ClaimedBy: Unclaimed}
}

func (w *World) addFixture(f config.FixtureConfig, size float32, kind ResourceKind) {
	x := float32(f.X) * w.width
	y := float32(f.Y) * w.height
	w.resources = append(w.resources, newResource(kind, x, y, pixelRadius(f.Radius, size)))
}

// Size returns the world dimensions.
func (w *World) Size() (width, height float32) {
	return w.width, w.height
}

// Wrap maps a position onto [0,width) x [0,height).
func (w *World) Wrap(x, y float32) (float32, float32) {
	return wrap(x, w.width), wrap(y, w.height)
}

// torusDelta returns the absolute per-axis distance between two points,
// taking the shorter way around.
func (w *World) torusDelta(ax, ay, bx, by float32) (float32, float32) {
	dx := abs32(ax - bx)
	dy := abs32(ay - by)
	if dx > w.halfW {
		dx = w.width - dx
	}
	if dy > w.halfH {
		dy = w.height - dy
	}
	return dx, dy
}

// visibleTo reports whether agent may see or use r.
func visibleTo(r *Resource, agent int32) bool {
	return r.ClaimedBy == Unclaimed || r.ClaimedBy == agent
}

// Sense finds the nearest resource of each kind as seen from (x, y). Distance is
// the squared torus distance minus the squared radius, floored at zero, so
// standing inside a resource counts as distance zero. Resources shielded by
// other agents are skipped. The agent's nearest cell is recorded so others can
// tell they are competing for it.
func (w *World) Sense(agent int, x, y float32) Sensing {
	id := int32(agent)
	best := [4]int{-1, -1, -1, -1}
	var bestDist [4]float32

	w.mu.RLock()
	for i := range w.resources {
		r := &w.resources[i]
		if !visibleTo(r, id) {
			continue
		}
		dx, dy := w.torusDelta(x, y, r.X, r.Y)
		d := max(dx*dx+dy*dy-r.RadiusSq, 0)
		if best[r.Kind] == -1 || d < bestDist[r.Kind] {
			best[r.Kind] = i
			bestDist[r.Kind] = d
		}
	}
	var s Sensing
	s.Cell = w.target(x, y, best[KindCell])
	s.Sun = w.target(x, y, best[KindSunlight])
	s.Sand = w.target(x, y, best[KindQuicksand])
	w.mu.RUnlock()

	cell := int32(best[KindCell])
	w.pursuit[agent].Store(cell)
	if cell >= 0 {
		for j := range w.pursuit {
			if j != agent && w.pursuit[j].Load() == cell {
				s.Contested = true
				break
			}
		}
	}
	return s
}

// target builds the wrap-adjusted target point and unit direction from (x, y)
// to resource i. If going around the edge is shorter, the target point lies
// outside the world so the direction points that way. Caller holds the lock.
func (w *World) target(x, y float32, i int) components.Target {
	if i < 0 {
		return components.Target{X: x, Y: y, Index: -1}
	}
	r := &w.resources[i]
	t := components.Target{X: r.X, Y: r.Y, Index: int32(i), Available: true}

	mx := x - t.X
	if abs32(mx) > w.halfW {
		if mx > 0 {
			t.X += w.width
		} else {
			t.X -= w.width
		}
		mx = x - t.X
	}
	my := y - t.Y
	if abs32(my) > w.halfH {
		if my > 0 {
			t.Y += w.height
		} else {
			t.Y -= w.height
		}
		my = y - t.Y
	}

	length := max(float32(math.Sqrt(float64(mx*mx+my*my))), 0.1)
	t.DirX = -mx / length
	t.DirY = -my / length
	return t
}

// ConsumeAt returns the kind of the first resource containing (x, y) that agent
// may use. Consumable kinds are moved to a fresh free position and lose any
// claim. Returns KindNone when nothing is there.
func (w *World) ConsumeAt(agent int, x, y float32, rng *rand.Rand) ResourceKind {
	id := int32(agent)

	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.resources {
		r := &w.resources[i]
		if !visibleTo(r, id) {
			continue
		}
		if !w.containsLocked(r, x, y) {
			continue
		}
		kind := r.Kind
		if kind != w.nonConsumable {
			r.X, r.Y = w.freePositionLocked(rng, i)
			r.ClaimedBy = Unclaimed
		}
		return kind
	}
	return KindNone
}

// KindAt returns the kind of the first resource containing (x, y) regardless
// of claims, without consuming it.
func (w *World) KindAt(x, y float32) ResourceKind {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if i := w.indexAtLocked(x, y, -1); i >= 0 {
		return w.resources[i].Kind
	}
	return KindNone
}

func (w *World) containsLocked(r *Resource, x, y float32) bool {
	dx, dy := w.torusDelta(x, y, r.X, r.Y)
	return dx*dx+dy*dy <= r.RadiusSq
}

func (w *World) indexAtLocked(x, y float32, ignore int) int {
	for i := range w.resources {
		if i == ignore {
			continue
		}
		if w.containsLocked(&w.resources[i], x, y) {
			return i
		}
	}
	return -1
}

// freePositionLocked picks a point inside the spawn margin that lies inside no
// resource other than ignore. After respawnAttempts misses the last candidate
// is kept. Caller holds the write lock, or the world is not yet shared.
func (w *World) freePositionLocked(rng *rand.Rand, ignore int) (float32, float32) {
	var x, y float32
	for attempt := 0; attempt < w.respawnAttempts; attempt++ {
		x = w.spawnMin[0] + rng.Float32()*w.spawnSpan[0]
		y = w.spawnMin[1] + rng.Float32()*w.spawnSpan[1]
		if w.indexAtLocked(x, y, ignore) < 0 {
			break
		}
	}
	return x, y
}

// RandomFreePosition picks a starting point that lies inside no resource.
func (w *World) RandomFreePosition(rng *rand.Rand) (float32, float32) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.freePositionLocked(rng, -1)
}

// Claim shields resource for agent. Any other resource the agent holds is
// released. It fails when another agent already holds resource. A resource of
// -1 only releases. Panics if resource is not a valid index.
func (w *World) Claim(resource, agent int) bool {
	id := int32(agent)

	w.mu.Lock()
	defer w.mu.Unlock()

	if resource < -1 || resource >= len(w.resources) {
		panic(fmt.Sprintf("systems: claim on unknown resource %d (have %d)", resource, len(w.resources)))
	}

	found := false
	for i := range w.resources {
		r := &w.resources[i]
		switch {
		case i == resource && (r.ClaimedBy == Unclaimed || r.ClaimedBy == id):
			r.ClaimedBy = id
			found = true
		case i != resource && r.ClaimedBy == id:
			r.ClaimedBy = Unclaimed
		}
	}
	return found
}

// Release drops any claim held by agent.
func (w *World) Release(agent int) {
	id := int32(agent)

	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.resources {
		if w.resources[i].ClaimedBy == id {
			w.resources[i].ClaimedBy = Unclaimed
		}
	}
}

// Retire releases agent's claims and forgets what it was pursuing.
// Called when an agent dies.
func (w *World) Retire(agent int) {
	w.Release(agent)
	w.pursuit[agent].Store(-1)
}

// ReleaseAll clears every claim and pursuit. Called between epochs.
func (w *World) ReleaseAll() {
	w.mu.Lock()
	for i := range w.resources {
		w.resources[i].ClaimedBy = Unclaimed
	}
	w.mu.Unlock()

	for i := range w.pursuit {
		w.pursuit[i].Store(-1)
	}
}

// Resources returns a copy of the resource table.
func (w *World) Resources() []Resource {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Resource(nil), w.resources...)
}

// Len returns the number of resource slots.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.resources)
}
