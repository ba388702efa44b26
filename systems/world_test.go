package systems

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/pthm-cable/lifeforms/config"
)

// testConfig returns finalized defaults in the given capability mode.
func testConfig(t *testing.T, mode string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Capabilities.Mode = mode
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return cfg
}

// newTestWorld builds a world for cfg and replaces its resources with res.
func newTestWorld(cfg *config.Config, agents int, res ...Resource) *World {
	w := NewWorld(cfg, agents, rand.New(rand.NewSource(1)))
	w.resources = res
	return w
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

// ---------- Wrap ----------

func TestWrap(t *testing.T) {
	w := newTestWorld(testConfig(t, "cells"), 1)
	tests := []struct {
		x, y   float32
		wx, wy float32
	}{
		{599 + 5, 10, 4, 10},
		{-1, 600, 599, 0},
		{0, 599.5, 0, 599.5},
		{1200, -600, 0, 0},
	}
	for _, tt := range tests {
		x, y := w.Wrap(tt.x, tt.y)
		if !near(x, tt.wx) || !near(y, tt.wy) {
			t.Errorf("Wrap(%v, %v) = (%v, %v), want (%v, %v)", tt.x, tt.y, x, y, tt.wx, tt.wy)
		}
		if x < 0 || x >= 600 || y < 0 || y >= 600 {
			t.Errorf("Wrap(%v, %v) = (%v, %v) outside bounds", tt.x, tt.y, x, y)
		}
	}
}

// ---------- NewWorld ----------

func TestNewWorld_Layout(t *testing.T) {
	tests := []struct {
		mode      string
		cells     int
		sunlight  int
		quicksand int
	}{
		{"cells", 20, 0, 0},
		{"solar", 20, 2, 0},
		{"quicksand", 20, 0, 3},
		{"shields", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := testConfig(t, tt.mode)
			w := NewWorld(cfg, 30, rand.New(rand.NewSource(42)))
			counts := map[ResourceKind]int{}
			for _, r := range w.Resources() {
				counts[r.Kind]++
				if r.ClaimedBy != Unclaimed {
					t.Errorf("new resource claimed by %d", r.ClaimedBy)
				}
				if r.Kind == KindCell && (r.X < 60 || r.X > 540 || r.Y < 60 || r.Y > 540) {
					t.Errorf("cell at (%v, %v) outside spawn margin", r.X, r.Y)
				}
			}
			if counts[KindCell] != tt.cells || counts[KindSunlight] != tt.sunlight || counts[KindQuicksand] != tt.quicksand {
				t.Errorf("counts = %v, want cells=%d sun=%d sand=%d", counts, tt.cells, tt.sunlight, tt.quicksand)
			}
		})
	}
}

func TestNewWorld_FixtureRadius(t *testing.T) {
	w := NewWorld(testConfig(t, "solar"), 1, rand.New(rand.NewSource(42)))
	res := w.Resources()
	if res[0].Radius != 60 || res[1].Radius != 120 {
		t.Errorf("sunlight radii = %v, %v, want 60, 120", res[0].Radius, res[1].Radius)
	}
	if res[len(res)-1].Radius != 7 {
		t.Errorf("cell radius = %v, want 7", res[len(res)-1].Radius)
	}
}

// ---------- Sense ----------

func TestSense_NearestAndDirection(t *testing.T) {
	w := newTestWorld(testConfig(t, "cells"), 1,
		newResource(KindCell, 300, 100, 7),
		newResource(KindCell, 300, 250, 7),
	)
	s := w.Sense(0, 300, 300)
	if !s.Cell.Available || s.Cell.Index != 1 {
		t.Fatalf("nearest cell = %+v, want index 1", s.Cell)
	}
	if !near(s.Cell.DirX, 0) || !near(s.Cell.DirY, -1) {
		t.Errorf("direction = (%v, %v), want (0, -1)", s.Cell.DirX, s.Cell.DirY)
	}
	if s.Sun.Available || s.Sand.Available {
		t.Error("kinds absent from the world reported available")
	}
	if s.Sun.DirX != 0 || s.Sun.DirY != 0 {
		t.Error("unavailable target should have zero direction")
	}
}

func TestSense_WrapsAroundEdge(t *testing.T) {
	w := newTestWorld(testConfig(t, "cells"), 1, newResource(KindCell, 10, 300, 7))
	s := w.Sense(0, 590, 300)
	if !near(s.Cell.X, 610) {
		t.Errorf("target X = %v, want wrap-adjusted 610", s.Cell.X)
	}
	if !near(s.Cell.DirX, 1) || !near(s.Cell.DirY, 0) {
		t.Errorf("direction = (%v, %v), want (1, 0)", s.Cell.DirX, s.Cell.DirY)
	}
}

func TestSense_InsideResourceHasFlooredLength(t *testing.T) {
	w := newTestWorld(testConfig(t, "cells"), 1, newResource(KindCell, 300, 300, 7))
	s := w.Sense(0, 300, 300)
	if !s.Cell.Available || s.Cell.DirX != 0 || s.Cell.DirY != 0 {
		t.Errorf("standing on a cell: %+v", s.Cell)
	}
}

func TestSense_SkipsClaimedByOthers(t *testing.T) {
	w := newTestWorld(testConfig(t, "shields"), 2,
		newResource(KindCell, 300, 310, 7),
		newResource(KindCell, 300, 500, 7),
	)
	if !w.Claim(0, 1) {
		t.Fatal("claim failed")
	}
	if s := w.Sense(0, 300, 300); s.Cell.Index != 1 {
		t.Errorf("agent 0 sees index %d, want 1 (index 0 is shielded)", s.Cell.Index)
	}
	if s := w.Sense(1, 300, 300); s.Cell.Index != 0 {
		t.Errorf("holder sees index %d, want its own claim 0", s.Cell.Index)
	}
}

func TestSense_Contested(t *testing.T) {
	w := newTestWorld(testConfig(t, "shields"), 3,
		newResource(KindCell, 100, 100, 7),
		newResource(KindCell, 500, 500, 7),
	)
	if s := w.Sense(0, 110, 110); s.Contested {
		t.Error("first pursuer reported contested")
	}
	if s := w.Sense(1, 90, 90); !s.Contested {
		t.Error("second pursuer of the same cell not contested")
	}
	if s := w.Sense(2, 490, 490); s.Contested {
		t.Error("pursuer of a different cell reported contested")
	}
	w.Retire(0)
	if s := w.Sense(1, 90, 90); s.Contested {
		t.Error("retired agent still counted as pursuer")
	}
}

// ---------- ConsumeAt ----------

func TestConsumeAt_KeepsCount(t *testing.T) {
	cfg := testConfig(t, "cells")
	rng := rand.New(rand.NewSource(42))
	w := NewWorld(cfg, 1, rng)
	before := w.Len()

	for i := 0; i < 500; i++ {
		r := w.Resources()[i%before]
		if kind := w.ConsumeAt(0, r.X, r.Y, rng); kind != KindCell {
			t.Fatalf("consume %d at cell centre returned %v", i, kind)
		}
	}
	if w.Len() != before {
		t.Errorf("resource count = %d, want %d", w.Len(), before)
	}
	for _, r := range w.Resources() {
		if r.X < 0 || r.X >= 600 || r.Y < 0 || r.Y >= 600 {
			t.Errorf("respawned cell at (%v, %v) outside world", r.X, r.Y)
		}
	}
}

func TestConsumeAt_RespawnsAndClearsClaim(t *testing.T) {
	w := newTestWorld(testConfig(t, "shields"), 1, newResource(KindCell, 300, 300, 7))
	w.Claim(0, 0)
	rng := rand.New(rand.NewSource(42))
	if kind := w.ConsumeAt(0, 302, 301, rng); kind != KindCell {
		t.Fatalf("kind = %v, want cell", kind)
	}
	r := w.Resources()[0]
	if r.X == 300 && r.Y == 300 {
		t.Error("consumed cell did not move")
	}
	if r.ClaimedBy != Unclaimed {
		t.Errorf("consumed cell still claimed by %d", r.ClaimedBy)
	}
}

func TestConsumeAt_NonConsumableStays(t *testing.T) {
	w := newTestWorld(testConfig(t, "quicksand"), 1, newResource(KindQuicksand, 300, 300, 90))
	rng := rand.New(rand.NewSource(42))
	if kind := w.ConsumeAt(0, 350, 300, rng); kind != KindQuicksand {
		t.Fatalf("kind = %v, want quicksand", kind)
	}
	if r := w.Resources()[0]; r.X != 300 || r.Y != 300 {
		t.Error("quicksand moved")
	}
}

func TestConsumeAt_ContainmentWrapsAroundEdge(t *testing.T) {
	w := newTestWorld(testConfig(t, "cells"), 1, newResource(KindCell, 2, 300, 7))
	if kind := w.ConsumeAt(0, 598, 300, rand.New(rand.NewSource(1))); kind != KindCell {
		t.Errorf("kind = %v, want cell across the edge", kind)
	}
}

func TestConsumeAt_SkipsClaimedByOthers(t *testing.T) {
	w := newTestWorld(testConfig(t, "shields"), 2, newResource(KindCell, 300, 300, 7))
	w.Claim(0, 1)
	rng := rand.New(rand.NewSource(42))
	if kind := w.ConsumeAt(0, 300, 300, rng); kind != KindNone {
		t.Errorf("non-holder consumed shielded cell: %v", kind)
	}
	if kind := w.ConsumeAt(1, 300, 300, rng); kind != KindCell {
		t.Errorf("holder could not consume its cell: %v", kind)
	}
}

// ---------- Claim / Release ----------

func TestClaim_OneHolder(t *testing.T) {
	w := newTestWorld(testConfig(t, "shields"), 2,
		newResource(KindCell, 100, 100, 7),
		newResource(KindCell, 400, 400, 7),
	)
	const a, b = 0, 1

	if !w.Claim(0, a) {
		t.Fatal("A could not claim a free resource")
	}
	if w.Claim(0, b) {
		t.Error("B claimed a resource held by A")
	}
	if !w.Claim(0, a) {
		t.Error("A lost its own claim when reclaiming")
	}

	w.Release(a)
	if !w.Claim(0, b) {
		t.Error("B could not claim after A released")
	}

	// Claiming another resource drops the first.
	if !w.Claim(1, b) {
		t.Fatal("B could not claim second resource")
	}
	res := w.Resources()
	if res[0].ClaimedBy != Unclaimed || res[1].ClaimedBy != b {
		t.Errorf("claims = %d, %d, want -1, %d", res[0].ClaimedBy, res[1].ClaimedBy, b)
	}

	// Retiring (death) frees the claim for others.
	w.Retire(b)
	if !w.Claim(1, a) {
		t.Error("A could not claim after B died")
	}

	// -1 only releases.
	if w.Claim(-1, a) {
		t.Error("Claim(-1) reported success")
	}
	for _, r := range w.Resources() {
		if r.ClaimedBy != Unclaimed {
			t.Errorf("Claim(-1) left a claim by %d", r.ClaimedBy)
		}
	}
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	const agents = 8
	w := newTestWorld(testConfig(t, "shields"), agents, newResource(KindCell, 100, 100, 7))

	for trial := 0; trial < 200; trial++ {
		w.ReleaseAll()

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			won   = make([]bool, agents)
		)
		for a := 0; a < agents; a++ {
			wg.Add(1)
			go func(a int) {
				defer wg.Done()
				<-start
				won[a] = w.Claim(0, a)
			}(a)
		}
		close(start)
		wg.Wait()

		winner := -1
		for a, ok := range won {
			if !ok {
				continue
			}
			if winner >= 0 {
				t.Fatalf("trial %d: agents %d and %d both claimed resource 0", trial, winner, a)
			}
			winner = a
		}
		if winner < 0 {
			t.Fatalf("trial %d: no agent claimed the free resource", trial)
		}
		if got := w.Resources()[0].ClaimedBy; got != int32(winner) {
			t.Fatalf("trial %d: resource held by %d, want winner %d", trial, got, winner)
		}
	}
}

func TestClaim_UnknownResourcePanics(t *testing.T) {
	w := newTestWorld(testConfig(t, "shields"), 1, newResource(KindCell, 100, 100, 7))
	defer func() {
		if recover() == nil {
			t.Error("Claim(5) did not panic")
		}
	}()
	w.Claim(5, 0)
}

func TestReleaseAll(t *testing.T) {
	w := newTestWorld(testConfig(t, "shields"), 2,
		newResource(KindCell, 100, 100, 7),
		newResource(KindCell, 400, 400, 7),
	)
	w.Claim(0, 0)
	w.Claim(1, 1)
	w.ReleaseAll()
	for i, r := range w.Resources() {
		if r.ClaimedBy != Unclaimed {
			t.Errorf("resource %d still claimed by %d", i, r.ClaimedBy)
		}
	}
}

// ---------- RandomFreePosition ----------

func TestRandomFreePosition_AvoidsResources(t *testing.T) {
	w := newTestWorld(testConfig(t, "cells"), 1, newResource(KindCell, 300, 300, 200))
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		x, y := w.RandomFreePosition(rng)
		if w.KindAt(x, y) != KindNone {
			t.Fatalf("position (%v, %v) lies inside a resource", x, y)
		}
	}
}
