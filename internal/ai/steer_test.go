package ai

import (
	"math"
	"testing"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

func newTestSteerer() steerer {
	ship := sim.NewShip(&sim.ShipDesign{Name: "Viper", Class: sim.ClassFighter, Radius: 10}, "Viper 1", 1)
	return newSteerer(ship, combat.NewStream("steer-test", "ai"))
}

func TestAccumulateScalesOverflow(t *testing.T) {
	s := newTestSteerer()

	//1.- Demands inside the budget add unchanged.
	if s.accumulate(Steer{Yaw: 0.6}) {
		t.Fatalf("expected the first demand to fit")
	}
	//2.- The overflowing demand is scaled into the remaining budget.
	if !s.accumulate(Steer{Pitch: 0.8, Brake: 0.4}) {
		t.Fatalf("expected the second demand to overflow")
	}
	if math.Abs(s.accum.Yaw-0.6) > 1e-9 || math.Abs(s.accum.Pitch-0.4) > 1e-9 {
		t.Fatalf("expected accumulated yaw 0.6 pitch 0.4, got %+v", s.accum)
	}
	if s.accum.Brake != 0.4 {
		t.Fatalf("expected the brake to survive scaling, got %v", s.accum.Brake)
	}
	//3.- A full accumulator takes nothing more.
	s.accumulate(Steer{Yaw: 1})
	if math.Abs(s.accum.Yaw-0.6) > 1e-9 {
		t.Fatalf("expected a saturated accumulator to ignore more yaw, got %v", s.accum.Yaw)
	}
	s.reset()
	if s.accum != (Steer{}) || s.magnitude != 0 {
		t.Fatalf("expected reset to clear the accumulator")
	}
}

func TestSeekFollowsHelmConventions(t *testing.T) {
	s := newTestSteerer()

	right := s.seek(geom.V(100, 0, 1000))
	if right.Yaw <= 0 || right.Pitch != 0 {
		t.Fatalf("expected a right turn for a point to the right, got %+v", right)
	}

	s = newTestSteerer()
	up := s.seek(geom.V(0, 100, 1000))
	if up.Pitch >= 0 {
		t.Fatalf("expected a nose-up demand for a point above, got %+v", up)
	}

	s = newTestSteerer()
	behind := s.seek(geom.V(-10, 0, -1000))
	if behind.Yaw != -1 {
		t.Fatalf("expected a hard left turn for a point behind-left, got %+v", behind)
	}
}

func TestFleeTurnsAway(t *testing.T) {
	s := newTestSteerer()
	st := s.flee(geom.V(100, 0, 1000))
	if st.Yaw != -1 {
		t.Fatalf("expected a hard left away from a threat ahead-right, got %+v", st)
	}
}

func TestEvadeHoldsPatternForPeriod(t *testing.T) {
	s := newTestSteerer()
	first := s.evade(0)
	if first.Magnitude() == 0 {
		t.Fatalf("expected a non-zero jink")
	}
	//1.- Inside the period the same jink repeats.
	if again := s.evade(time.Second); again != first {
		t.Fatalf("expected the jink to hold inside the evade period, got %+v then %+v", first, again)
	}
	if s.evadeTime != 0 {
		t.Fatalf("expected the pattern start to stay at 0, got %v", s.evadeTime)
	}
	//2.- After the period a new pattern is drawn.
	s.evade(2 * time.Second)
	if s.evadeTime != 2*time.Second {
		t.Fatalf("expected a new pattern at 2s, got start %v", s.evadeTime)
	}
}
