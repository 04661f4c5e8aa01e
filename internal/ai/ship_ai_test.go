package ai

import (
	"math"
	"testing"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

func TestObjectDestroyedForgetsReferences(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	bandit := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 30e3), 2)
	wing := spawn(t, s, testFighter(), "Viper 2", geom.V(100, 0, 0), 1)

	a := NewShipAI(viper, 1)
	a.SetTarget(bandit)
	a.SetThreat(bandit)
	a.SetRumor(bandit)
	a.SetSupport(wing)

	//1.- Losing the bandit clears every hostile reference but keeps support.
	a.ObjectDestroyed(bandit)
	if a.Target() != nil || a.Threat() != nil || a.Rumor() != nil {
		t.Fatalf("expected hostile references to be cleared")
	}
	if a.Support() != wing {
		t.Fatalf("expected support to survive, got %v", a.Support())
	}
	a.ObjectDestroyed(wing)
	if a.Support() != nil {
		t.Fatalf("expected support to be cleared")
	}
}

func TestSetRumorKeepsPreviousOnNil(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	bandit := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 30e3), 2)

	a := NewShipAI(viper, 1)
	a.SetRumor(bandit)
	a.SetRumor(nil)
	if a.Rumor() != bandit {
		t.Fatalf("expected the rumor to survive a nil update")
	}
	a.ClearRumor()
	if a.Rumor() != nil {
		t.Fatalf("expected ClearRumor to forget the shooter")
	}
}

func TestSetWardPicksStation(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	carrier := spawn(t, s, testShip(sim.ClassCarrier, "Ark"), "Ark", geom.V(0, 0, 5e3), 1)

	a := NewShipAI(viper, 1)
	a.SetWard(carrier)
	if a.Ward() != carrier {
		t.Fatalf("expected the carrier to be the ward")
	}
	d := a.FormationDelta()
	if d.Y != 500 || math.Abs(d.X) < 0.5*15e3-1 {
		t.Fatalf("expected a fighter station 500 m up and well abeam, got %+v", d)
	}

	//1.- Clearing the ward keeps the old station untouched.
	a.SetWard(nil)
	if a.Ward() != nil || a.FormationDelta() != d {
		t.Fatalf("expected the ward cleared with the station kept")
	}
}

func gateDesign() *sim.ShipDesign {
	return &sim.ShipDesign{
		Name: "Gate", Class: sim.ClassFarcaster, Integrity: 1e6, Mass: 1e7, Radius: 1000, Farcaster: true,
	}
}

func TestAvoidanceFliesThroughAlignedGate(t *testing.T) {
	cases := []struct {
		name     string
		design   *sim.ShipDesign
		loc      geom.Vec3
		obstacle bool
	}{
		{name: "aligned gate", design: gateDesign(), loc: geom.V(0, 0, 5000), obstacle: false},
		{name: "offset gate", design: gateDesign(), loc: geom.V(2000, 0, 5000), obstacle: true},
		{name: "cruiser", design: testShip(sim.ClassCruiser, "Hull"), loc: geom.V(0, 0, 5000), obstacle: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			//1.- A fighter flies straight down +z at 200 m/s.
			ship := sim.NewShip(testFighter(), "Viper 1", 1)
			ship.SetVelocity(geom.V(0, 0, 200))
			other := sim.NewShip(tc.design, "Other", 1)
			other.MoveTo(tc.loc)

			a := NewShipAI(ship, 1)
			avoidTime := 30.0
			var avoid Steer
			if a.avoidTestSingleObject(other, geom.V(0, 0, 1), 1000, &avoidTime, &avoid) {
				t.Fatalf("expected no emergency escape at this range")
			}
			got := a.Obstacle() != nil
			if got != tc.obstacle {
				t.Fatalf("expected obstacle=%v, got %v", tc.obstacle, got)
			}
		})
	}
}

func TestYawRotateFollowsLeaderHeading(t *testing.T) {
	got := yawRotate(geom.V(0, 0, 10), geom.V(1, 0, 0))
	if math.Abs(got.X-10) > 1e-9 || math.Abs(got.Z) > 1e-9 {
		t.Fatalf("expected a forward offset to swing onto +x, got %+v", got)
	}
	same := yawRotate(geom.V(3, 2, 1), geom.V(0, 0, 1))
	if same.Sub(geom.V(3, 2, 1)).Length() > 1e-9 {
		t.Fatalf("expected a +z heading to keep the offset, got %+v", same)
	}
}

func TestClosestApproachTime(t *testing.T) {
	if got := closestApproachTime(geom.Vec3{}, geom.V(0, 0, 100), geom.V(0, 0, 1000), geom.Vec3{}); math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected closest approach at 10s, got %v", got)
	}
	if got := closestApproachTime(geom.Vec3{}, geom.V(0, 0, 100), geom.V(0, 0, 1000), geom.V(0, 0, 100)); got != 0 {
		t.Fatalf("expected 0 for matched velocities, got %v", got)
	}
}

func TestFactorySkipsFarcasters(t *testing.T) {
	f := Factory(Options{Level: 2})
	if d := f(sim.NewShip(gateDesign(), "Gate", 0)); d != nil {
		t.Fatalf("expected no director for a farcaster, got %T", d)
	}
	if f(nil) != nil {
		t.Fatalf("expected no director for a nil ship")
	}
	d, ok := f(sim.NewShip(testFighter(), "Viper 1", 1)).(*FighterAI)
	if !ok || d.Level() != 2 {
		t.Fatalf("expected an ace FighterAI, got %+v", d)
	}
}

func TestFactoryPicksDirectorByClass(t *testing.T) {
	cases := []struct {
		class sim.Class
		want  string
	}{
		{class: sim.ClassFighter, want: "fighter"},
		{class: sim.ClassLCA, want: "fighter"},
		{class: sim.ClassCorvette, want: "starship"},
		{class: sim.ClassCarrier, want: "starship"},
		{class: sim.ClassSAM, want: "ship"},
	}
	for _, tc := range cases {
		d := NewDirector(sim.NewShip(testShip(tc.class, "Hull"), "Hull", 1), Options{Level: 1})
		var got string
		switch d.(type) {
		case *FighterAI:
			got = "fighter"
		case *StarshipAI:
			got = "starship"
		case *ShipAI:
			got = "ship"
		}
		if got != tc.want {
			t.Fatalf("expected a %s director for %v, got %T", tc.want, tc.class, d)
		}
		if directorAI(d) == nil {
			t.Fatalf("expected the %T director to unwrap to its ShipAI", d)
		}
	}
}

func TestMissionShipsAcquireTargetsThroughDirector(t *testing.T) {
	//1.- Directors come from the factory when the mission spawns ships.
	s := sim.New(
		sim.WithLogger(logging.NewTestLogger()),
		sim.WithSeed("ai-mission"),
		sim.WithDirectorFactory(Factory(Options{Level: 2})),
	)
	s.LoadMission(&sim.Mission{
		Name:    "Skirmish",
		Seed:    "ai-mission",
		Regions: []sim.RegionSpec{{Name: "Alpha", Type: sim.RegionSpace, Active: true}},
		Elements: []sim.ElementSpec{
			{Name: "Blue", IFF: 1, Design: testFighter(), Count: 1, Region: "Alpha"},
			{Name: "Red", IFF: 2, Design: testFighter(), Count: 1, Region: "Alpha", Location: geom.V(0, 0, 40e3)},
		},
	})
	if err := s.ExecMission(); err != nil {
		t.Fatalf("unexpected exec error: %v", err)
	}
	blue := s.FindShip("Blue")
	if blue == nil {
		t.Fatalf("expected the blue fighter to exist")
	}
	if _, ok := blue.Director().(*FighterAI); !ok {
		t.Fatalf("expected a FighterAI director, got %T", blue.Director())
	}
	a := directorAI(blue.Director())

	//2.- Nothing is decided inside the assessment window.
	for i := 0; i < 40; i++ {
		s.ExecFrame(0.1)
	}
	if a.Target() != nil {
		t.Fatalf("expected no target during the assessment window")
	}

	//3.- Past the window the bandit is engaged.
	for i := 0; i < 30; i++ {
		s.ExecFrame(0.1)
	}
	red := s.FindShip("Red")
	if a.Target() != sim.Object(red) || blue.Target() != sim.Object(red) {
		t.Fatalf("expected blue to lock red, got %v", a.Target())
	}
}

// missionSim starts an empty mission so the mission clock runs.
func missionSim(t *testing.T, traffic *radio.Traffic) *sim.Sim {
	t.Helper()
	s := sim.New(sim.WithLogger(logging.NewTestLogger()), sim.WithSeed("ai-windows"), sim.WithRadio(traffic))
	s.LoadMission(&sim.Mission{
		Name:    "Drill",
		Regions: []sim.RegionSpec{{Name: "Alpha", Type: sim.RegionSpace, Active: true}},
	})
	if err := s.ExecMission(); err != nil {
		t.Fatalf("unexpected exec error: %v", err)
	}
	return s
}

// engagingCalls counts the engaging calls a ship has made.
func engagingCalls(traffic *radio.Traffic, sender string) int {
	n := 0
	for _, msg := range traffic.Recent(512) {
		if msg.Action == radio.CallEngaging && msg.Sender == sender {
			n++
		}
	}
	return n
}

// advance steps the world and the director together.
func advance(s *sim.Sim, a *ShipAI, seconds, step float64) {
	for elapsed := 0.0; elapsed < seconds-1e-9; elapsed += step {
		s.ExecFrame(step)
		a.ExecFrame(step)
	}
}

func TestShipAIHoldsDecisionsUntilWindowsClose(t *testing.T) {
	cases := []struct {
		name    string
		takeoff bool
		hold    float64
	}{
		{name: "assessment window", hold: 4.5},
		{name: "takeoff window", takeoff: true, hold: 9.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			//1.- A bandit sits well inside the commit range from the first frame.
			s := missionSim(t, radio.NewTraffic(radio.Config{}))
			viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
			bandit := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 30e3), 2)
			if tc.takeoff {
				viper.SetFlightPhase(sim.PhaseTakeoff)
			}
			a := NewShipAI(viper, 2)
			a.ExecFrame(0.5)
			if a.takeoff != tc.takeoff {
				t.Fatalf("expected takeoff=%v after the first frame, got %v", tc.takeoff, a.takeoff)
			}

			//2.- Nothing is chosen while the window is open.
			advance(s, a, tc.hold-0.5, 0.5)
			if a.Target() != nil || viper.Target() != nil {
				t.Fatalf("expected no target at %v s, got %v", viper.MissionClock(), a.Target())
			}

			//3.- Once it closes the bandit is engaged.
			advance(s, a, 4, 0.5)
			if a.takeoff || a.Target() != sim.Object(bandit) || viper.Target() != sim.Object(bandit) {
				t.Fatalf("expected the bandit locked after the window, got %v", a.Target())
			}
		})
	}
}

func TestEngagingCallCooldown(t *testing.T) {
	//1.- Past the assessment window with tactical selection out of the way.
	traffic := radio.NewTraffic(radio.Config{})
	s := missionSim(t, traffic)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	first := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 30e3), 2)
	second := spawn(t, s, testFighter(), "Bandit 2", geom.V(2e3, 0, 30e3), 2)
	a := NewShipAI(viper, 2)
	a.tactical = nil
	advance(s, a, 6, 0.5)

	//2.- The first lock is called out.
	a.SetTarget(first)
	advance(s, a, 0.5, 0.5)
	if viper.Target() != sim.Object(first) || engagingCalls(traffic, "Viper 1") != 1 {
		t.Fatalf("expected one engaging call, got %d", engagingCalls(traffic, "Viper 1"))
	}

	//3.- Switching inside ten seconds stays quiet.
	a.SetTarget(second)
	advance(s, a, 0.5, 0.5)
	if viper.Target() != sim.Object(second) || engagingCalls(traffic, "Viper 1") != 1 {
		t.Fatalf("expected the switch inside the cooldown to stay quiet, got %d", engagingCalls(traffic, "Viper 1"))
	}

	//4.- After the cooldown the ship last called stays quiet, a different one is called.
	advance(s, a, 10, 0.5)
	a.SetTarget(first)
	advance(s, a, 0.5, 0.5)
	if engagingCalls(traffic, "Viper 1") != 1 {
		t.Fatalf("expected no repeat call on the ship already called, got %d", engagingCalls(traffic, "Viper 1"))
	}
	a.SetTarget(second)
	advance(s, a, 0.5, 0.5)
	if engagingCalls(traffic, "Viper 1") != 2 {
		t.Fatalf("expected a second call after the cooldown, got %d", engagingCalls(traffic, "Viper 1"))
	}
}
