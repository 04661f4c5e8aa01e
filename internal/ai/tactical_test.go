package ai

import (
	"testing"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

func laserDesign() *sim.WeaponDesign {
	return &sim.WeaponDesign{
		Name: "Laser", Primary: true, Ammo: -1, Damage: 10, Speed: 3000,
		MaxRange: 5000, TargetType: sim.ClassDropships | sim.ClassStarships,
	}
}

func dartDesign() *sim.WeaponDesign {
	return &sim.WeaponDesign{
		Name: "Dart", Ammo: 4, Damage: 50, Speed: 800, MaxRange: 20e3,
		Guided: sim.GuidanceHoming, TargetType: sim.ClassDropships,
	}
}

func harpoonDesign() *sim.WeaponDesign {
	return &sim.WeaponDesign{
		Name: "Harpoon", Ammo: 2, Damage: 200, Speed: 600, MaxRange: 40e3,
		Guided: sim.GuidanceHoming, TargetType: sim.ClassStarships,
	}
}

func testFighter() *sim.ShipDesign {
	return &sim.ShipDesign{
		Name: "Viper", Class: sim.ClassFighter, Integrity: 100, Mass: 10, Radius: 10,
		VLimit: 200, Value: 10, SensorRange: 100e3, CommitRange: 80e3,
		Weapons: []sim.MountSpec{{Weapon: laserDesign()}, {Weapon: dartDesign()}, {Weapon: harpoonDesign()}},
	}
}

func testShip(class sim.Class, name string) *sim.ShipDesign {
	return &sim.ShipDesign{
		Name: name, Class: class, Integrity: 5000, Mass: 1e4, Radius: 200,
		VLimit: 100, Value: 100, SensorRange: 100e3,
		Weapons: []sim.MountSpec{{Weapon: laserDesign()}},
	}
}

func newTestSim(t *testing.T, regions ...string) *sim.Sim {
	t.Helper()
	s := sim.New(sim.WithLogger(logging.NewTestLogger()), sim.WithSeed("ai-test"))
	if len(regions) == 0 {
		regions = []string{"Alpha"}
	}
	for i, name := range regions {
		s.AddRegion(sim.NewRegion(name, sim.RegionSpace, geom.V(float64(i)*1e7, 0, 0)))
	}
	return s
}

func spawn(t *testing.T, s *sim.Sim, design *sim.ShipDesign, name string, loc geom.Vec3, iff int) *sim.Ship {
	t.Helper()
	ship := s.CreateShip(design, name, "Alpha", loc, iff)
	if ship == nil {
		t.Fatalf("expected ship %s to be created", name)
	}
	s.CreateElement(name, iff).AddShip(ship)
	return ship
}

func TestFlexibleFighterEngagesHostileInsideCommitRange(t *testing.T) {
	//1.- A flexible fighter with an 80 km commit range sees a bandit at 50 km.
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	bandit := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 50e3), 2)
	viper.ExecSensors(0.1)

	a := NewShipAI(viper, 2)
	a.Tactical().evaluate()

	//2.- 50 km is inside three quarters of the commit range, so it is selected.
	if a.Tactical().ROE() != ROEFlexible {
		t.Fatalf("expected flexible roe, got %v", a.Tactical().ROE())
	}
	if a.Target() != sim.Object(bandit) {
		t.Fatalf("expected the bandit to be selected, got %v", a.Target())
	}
}

func TestFlexibleFighterIgnoresHostileBeyondCommitShare(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 70e3), 2)
	viper.ExecSensors(0.1)

	a := NewShipAI(viper, 2)
	a.Tactical().evaluate()
	if a.Target() != nil {
		t.Fatalf("expected no target beyond 60 km, got %v", a.Target())
	}
}

func TestSelfDefensiveFighterOnlyAnswersAttackers(t *testing.T) {
	//1.- A vector navpoint makes the lead self-defensive.
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	bandit := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 20e3), 2)
	viper.Element().AddNavPoint(sim.NewInstruction(sim.ActionVector, "Alpha", geom.V(0, 0, 10e3)))
	viper.ExecSensors(0.1)

	a := NewShipAI(viper, 2)
	a.Tactical().evaluate()
	if a.Tactical().ROE() != ROESelfDefensive {
		t.Fatalf("expected self-defensive roe, got %v", a.Tactical().ROE())
	}
	if a.Target() != nil {
		t.Fatalf("expected a bandit that is not attacking to be skipped, got %v", a.Target())
	}

	//2.- Once the bandit locks us it becomes fair game.
	bandit.SetTarget(viper)
	a.Tactical().evaluate()
	if a.Target() != sim.Object(bandit) {
		t.Fatalf("expected the attacking bandit to be selected, got %v", a.Target())
	}
}

func TestFighterFlightPlanRules(t *testing.T) {
	cases := []struct {
		action  sim.Action
		index   int
		wantROE ROE
	}{
		{sim.ActionLaunch, 1, ROENone},
		{sim.ActionRTB, 1, ROENone},
		{sim.ActionVector, 1, ROESelfDefensive},
		{sim.ActionVector, 2, ROEDefensive},
		{sim.ActionIntercept, 1, ROEDirected},
		{sim.ActionIntercept, 2, ROEDefensive},
		{sim.ActionStrike, 1, ROEDirected},
		{sim.ActionPatrol, 1, ROEFlexible},
		{sim.ActionEscort, 1, ROEDefensive},
	}
	for _, tc := range cases {
		s := newTestSim(t)
		viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
		navpt := sim.NewInstruction(tc.action, "Alpha", geom.V(0, 0, 10e3))
		if tc.action == sim.ActionStrike {
			navpt.SetTarget(spawn(t, s, testShip(sim.ClassFrigate, "Frigate"), "Target", geom.V(0, 0, 90e3), 2))
		}
		viper.Element().AddNavPoint(navpt)

		a := NewShipAI(viper, 2)
		tac := a.Tactical()
		tac.elementIndex = tc.index
		if !tac.checkFlightPlan() {
			t.Fatalf("expected %v to count as a flight plan", tc.action)
		}
		if tac.ROE() != tc.wantROE {
			t.Fatalf("expected %v for %v at index %d, got %v", tc.wantROE, tc.action, tc.index, tac.ROE())
		}
		if viper.DirectorInfo() != tc.wantROE.String() {
			t.Fatalf("expected fighter director info %q, got %q", tc.wantROE.String(), viper.DirectorInfo())
		}
	}
}

func TestRadioOrdersOverrideFlightPlan(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	viper.Element().AddNavPoint(sim.NewInstruction(sim.ActionPatrol, "Alpha", geom.V(0, 0, 10e3)))
	a := NewShipAI(viper, 2)
	tac := a.Tactical()

	//1.- Weapons hold forbids engagement.
	viper.HandleRadioMessage(radio.Message{Action: radio.WepHold, Sender: "Lead"})
	tac.checkOrders()
	if tac.ROE() != ROENone {
		t.Fatalf("expected roe none under weapons hold, got %v", tac.ROE())
	}
	if a.DropTime() != 5 {
		t.Fatalf("expected a five second drop, got %v", a.DropTime())
	}

	//2.- Cancelled orders fall back to flexible.
	viper.ClearRadioOrders()
	tac.checkOrders()
	if tac.action != radio.ActionNone {
		t.Fatalf("expected the remembered order to be cleared")
	}
	if tac.ROE() != ROEFlexible {
		t.Fatalf("expected flexible roe after cancel and patrol navpoint, got %v", tac.ROE())
	}

	//3.- Patrol orders set the patrol point.
	viper.HandleRadioMessage(radio.Message{Action: radio.MovePatrol, Sender: "Lead", Location: geom.V(5000, 0, 0)})
	tac.checkOrders()
	loc, ok := a.Patrol()
	if !ok || loc != geom.V(5000, 0, 0) || tac.ROE() != ROESelfDefensive {
		t.Fatalf("expected a self-defensive patrol to 5000,0,0, got %v %v %v", loc, ok, tac.ROE())
	}
}

func TestAttackOrderOnFriendlyIsRejected(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	spawn(t, s, testFighter(), "Viper 2", geom.V(100, 0, 0), 1)
	a := NewShipAI(viper, 2)

	viper.HandleRadioMessage(radio.Message{Action: radio.Attack, Sender: "Lead", Target: "Viper 2"})
	a.Tactical().checkOrders()
	if viper.RadioOrders().Action() != radio.ActionNone {
		t.Fatalf("expected an attack order on a friendly to be cleared")
	}
	if a.Target() != nil {
		t.Fatalf("expected no target")
	}
}

func TestSelectSecondaryPicksWeaponThatReaches(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	frigate := spawn(t, s, testShip(sim.ClassFrigate, "Frigate"), "Frigate", geom.V(0, 0, 30e3), 2)
	a := NewShipAI(viper, 2)

	if viper.SecondaryGroup() == nil || viper.SecondaryGroup().Design().Name != "Dart" {
		t.Fatalf("expected the first missile group to start selected")
	}
	a.Tactical().SelectSecondaryForTarget(frigate)
	if got := viper.SecondaryGroup().Design().Name; got != "Harpoon" {
		t.Fatalf("expected the anti-ship missile to be selected, got %s", got)
	}
	if a.Tactical().Winchester(winchesterAssault) {
		t.Fatalf("expected assault stores to be available")
	}
}

func TestSelectSecondaryWinchesterDropsTarget(t *testing.T) {
	s := newTestSim(t)
	design := testFighter()
	design.Weapons = []sim.MountSpec{{Weapon: dartDesign()}}
	viper := spawn(t, s, design, "Viper 1", geom.Vec3{}, 1)
	station := spawn(t, s, testShip(sim.ClassStation, "Station"), "Station", geom.V(0, 0, 10e3), 2)
	a := NewShipAI(viper, 2)
	a.SetTarget(station)

	a.Tactical().SelectSecondaryForTarget(station)
	if !a.Tactical().Winchester(winchesterStatic) {
		t.Fatalf("expected winchester on static targets")
	}
	if a.Target() != nil || a.DropTime() != 3 {
		t.Fatalf("expected the target to be dropped for 3 seconds, got %v %v", a.Target(), a.DropTime())
	}
}

func TestFormationSlots(t *testing.T) {
	s := newTestSim(t)
	lead := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	wing := s.CreateShip(testFighter(), "Viper 2", "Alpha", geom.V(100, 0, 0), 1)
	lead.Element().AddShip(wing)

	a := NewShipAI(wing, 2)
	tac := a.Tactical()
	tac.elementIndex = 2
	tac.findFormationSlot(sim.FormationDiamond)
	if got := a.FormationDelta(); got != geom.V(240, -20, -200) {
		t.Fatalf("expected fighter diamond slot 240,-20,-200, got %v", got)
	}
	tac.findFormationSlot(sim.FormationTrail)
	if got := a.FormationDelta(); got != geom.V(0, 20, -400) {
		t.Fatalf("expected fighter trail slot 0,20,-400, got %v", got)
	}

	//1.- Capital ships space out on their own table.
	cruiser := s.CreateShip(testShip(sim.ClassCruiser, "Cruiser"), "Cruiser 2", "Alpha", geom.V(0, 0, 5000), 1)
	ca := NewShipAI(cruiser, 2)
	ca.Tactical().elementIndex = 2
	ca.Tactical().findFormationSlot(sim.FormationSpread)
	if got := ca.FormationDelta(); got != geom.V(6000, 0, 0) {
		t.Fatalf("expected spread slot 6000,0,0, got %v", got)
	}
}

func TestFormationFollowsRadioOverride(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	navpt := sim.NewInstruction(sim.ActionPatrol, "Alpha", geom.V(0, 0, 10e3))
	navpt.Formation = sim.FormationBox
	viper.Element().AddNavPoint(navpt)
	a := NewShipAI(viper, 2)
	tac := a.Tactical()
	tac.navpt = viper.NextNavPoint()

	if tac.formation() != sim.FormationBox {
		t.Fatalf("expected the navpoint formation")
	}
	viper.HandleRadioMessage(radio.Message{Action: radio.GoTrail, Sender: "Lead"})
	if tac.formation() != sim.FormationTrail {
		t.Fatalf("expected the radio formation to win")
	}
}

func TestThreatNeedsReactionTime(t *testing.T) {
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	bandit := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 10e3), 2)
	bandit.SetTarget(viper)
	viper.ExecSensors(0.1)

	a := NewShipAI(viper, 2)
	a.Tactical().findThreat()
	if a.Threat() != nil {
		t.Fatalf("expected a fresh contact to be below the reaction time")
	}

	//1.- After the reaction time the attacker is the threat.
	for i := 0; i < 15; i++ {
		s.ExecFrame(0.1)
	}
	viper.ExecSensors(0.1)
	a.Tactical().findThreat()
	if a.Threat() != bandit {
		t.Fatalf("expected the bandit to be the threat, got %v", a.Threat())
	}
}

func TestCarrierBugsOutFromCapitalThreat(t *testing.T) {
	s := newTestSim(t, "Alpha", "Beta", "Gamma", "Delta")
	design := testShip(sim.ClassCarrier, "Carrier")
	design.QuantumDrive = sim.DriveQuantum
	design.HangarSlots = 4
	carrier := spawn(t, s, design, "Carrier", geom.Vec3{}, 1)
	destroyer := spawn(t, s, testShip(sim.ClassDestroyer, "Destroyer"), "Destroyer", geom.V(0, 0, 30e3), 2)

	a := NewShipAI(carrier, 2)
	a.Tactical().checkBugOut(destroyer, 30e3)
	if !a.Tactical().BuggedOut() {
		t.Fatalf("expected the carrier to bug out")
	}
	if !carrier.QuantumDrive().Engaged() {
		t.Fatalf("expected the quantum drive countdown to start")
	}
}

func TestBugOutIgnoresSmallThreatsAndOtherClasses(t *testing.T) {
	s := newTestSim(t, "Alpha", "Beta", "Gamma", "Delta")
	design := testShip(sim.ClassCarrier, "Carrier")
	design.QuantumDrive = sim.DriveQuantum
	carrier := spawn(t, s, design, "Carrier", geom.Vec3{}, 1)
	frigate := spawn(t, s, testShip(sim.ClassFrigate, "Frigate"), "Frigate", geom.V(0, 0, 30e3), 2)
	a := NewShipAI(carrier, 2)
	a.Tactical().checkBugOut(frigate, 30e3)
	if a.Tactical().BuggedOut() {
		t.Fatalf("expected a frigate not to scare the carrier off")
	}

	cruiserDesign := testShip(sim.ClassCruiser, "Cruiser")
	cruiserDesign.QuantumDrive = sim.DriveQuantum
	cruiser := spawn(t, s, cruiserDesign, "Cruiser", geom.V(5000, 0, 0), 1)
	destroyer := spawn(t, s, testShip(sim.ClassDestroyer, "Destroyer"), "Destroyer", geom.V(0, 0, 20e3), 2)
	ca := NewShipAI(cruiser, 2)
	ca.Tactical().checkBugOut(destroyer, 20e3)
	if ca.Tactical().BuggedOut() {
		t.Fatalf("expected only carriers and SWACS to bug out")
	}
}

func TestStarshipStrengthAssessment(t *testing.T) {
	s := newTestSim(t)
	cruiser := spawn(t, s, testShip(sim.ClassCruiser, "Cruiser"), "Cruiser", geom.Vec3{}, 1)
	spawn(t, s, testShip(sim.ClassDestroyer, "Destroyer"), "Destroyer", geom.V(0, 0, 10e3), 2)
	cruiser.ExecSensors(0.1)

	a := NewShipAI(cruiser, 2)
	a.Tactical().assessStrength()
	if a.Tactical().ThreatLevel() <= 0 {
		t.Fatalf("expected a positive threat level, got %v", a.Tactical().ThreatLevel())
	}
	if a.Tactical().SupportLevel() <= 0 {
		t.Fatalf("expected own worth to count as support, got %v", a.Tactical().SupportLevel())
	}
}

func TestTacticalNilSafety(t *testing.T) {
	var tac *TacticalAI
	tac.ExecFrame(0.1)
	if ROE(42).String() != "unknown" {
		t.Fatalf("expected unknown roe name")
	}
}

func droneDesign() *sim.WeaponDesign {
	return &sim.WeaponDesign{
		Name: "Hornet", Drone: true, Guided: sim.GuidanceHoming, Ammo: 2,
		Damage: 100, Speed: 500, Life: 300, MaxRange: 50e3,
	}
}

// launchDrone puts a hostile drone at loc flying toward aim and homing on seek.
func launchDrone(t *testing.T, s *sim.Sim, owner *sim.Ship, loc, aim geom.Vec3, seek *sim.Ship) *sim.Shot {
	t.Helper()
	cam := geom.NewCamera()
	cam.MoveTo(loc)
	cam.LookAt(aim)
	drone := s.CreateShot(loc, cam, droneDesign(), owner, s.FindRegion("Alpha"))
	if drone == nil {
		t.Fatalf("expected the drone to be launched")
	}
	if seek != nil {
		drone.SeekTarget(seek)
		//1.- Fly one second so the seeker goes live on its target.
		drone.ExecFrame(0)
		drone.ExecFrame(1)
	}
	return drone
}

func TestFighterPrefersShipOverDrone(t *testing.T) {
	//1.- A bandit at 20 km and an unguided hostile drone at 40 km share the scope.
	s := newTestSim(t)
	viper := spawn(t, s, testFighter(), "Viper 1", geom.Vec3{}, 1)
	bandit := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 20e3), 2)
	carrier := spawn(t, s, testFighter(), "Bandit 2", geom.V(0, 0, 90e3), 2)
	launchDrone(t, s, carrier, geom.V(0, 0, 40e3), geom.Vec3{}, nil)
	viper.ExecSensors(0.1)

	a := NewShipAI(viper, 2)
	tac := a.Tactical()
	tac.roe = ROEFlexible
	tac.selectFighterTarget()

	//2.- The drone only matters once no ship qualifies.
	if a.Target() != sim.Object(bandit) {
		t.Fatalf("expected the bandit to win over the drone, got %v", a.Target())
	}
}

func TestFighterDroneSelection(t *testing.T) {
	cases := []struct {
		name   string
		roe    ROE
		loc    geom.Vec3
		tracks string
		want   bool
	}{
		{name: "flexible takes an untracked drone", roe: ROEFlexible, loc: geom.V(0, 0, 40e3), tracks: "none", want: true},
		{name: "drone too close to intercept", roe: ROEFlexible, loc: geom.V(0, 0, 3e3), tracks: "self", want: false},
		{name: "drone beyond the commit range", roe: ROEAggressive, loc: geom.V(0, 0, 85e3), tracks: "none", want: false},
		{name: "self-defense ignores a stray drone", roe: ROESelfDefensive, loc: geom.V(0, 0, 30e3), tracks: "none", want: false},
		{name: "self-defense answers an inbound drone", roe: ROESelfDefensive, loc: geom.V(0, 0, 30e3), tracks: "self", want: true},
		{name: "defense answers a drone on the ward", roe: ROEDefensive, loc: geom.V(0, 0, 30e3), tracks: "ward", want: true},
		{name: "defense ignores a stray drone", roe: ROEDefensive, loc: geom.V(0, 0, 30e3), tracks: "none", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			//1.- Viper 2 flies on its lead, which is the ward for defensive rules.
			s := newTestSim(t)
			lead := spawn(t, s, testFighter(), "Viper 1", geom.V(500, 0, 0), 1)
			wing := s.CreateShip(testFighter(), "Viper 2", "Alpha", geom.Vec3{}, 1)
			lead.Element().AddShip(wing)
			owner := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 95e3), 2)

			var seek *sim.Ship
			switch tc.tracks {
			case "self":
				seek = wing
			case "ward":
				seek = lead
			}
			drone := launchDrone(t, s, owner, tc.loc, geom.Vec3{}, seek)
			wing.ExecSensors(0.1)

			//2.- Only the drone is on the scope, so only drone rules decide.
			a := NewShipAI(wing, 2)
			tac := a.Tactical()
			tac.roe = tc.roe
			tac.elementIndex = wing.ElementIndex()
			tac.selectFighterTarget()
			got := a.Target() == sim.Object(drone)
			if got != tc.want {
				t.Fatalf("expected drone selected=%v, got target %v", tc.want, a.Target())
			}
		})
	}
}

func TestFighterDroneHuntingWardWinsOverCloserDrone(t *testing.T) {
	//1.- A stray drone is closer than the one homing on the lead.
	s := newTestSim(t)
	lead := spawn(t, s, testFighter(), "Viper 1", geom.V(500, 0, 0), 1)
	wing := s.CreateShip(testFighter(), "Viper 2", "Alpha", geom.Vec3{}, 1)
	lead.Element().AddShip(wing)
	owner := spawn(t, s, testFighter(), "Bandit 1", geom.V(0, 0, 95e3), 2)
	launchDrone(t, s, owner, geom.V(0, 0, 20e3), geom.Vec3{}, nil)
	hunter := launchDrone(t, s, owner, geom.V(0, 0, -35e3), lead.Location(), lead)
	wing.ExecSensors(0.1)

	a := NewShipAI(wing, 2)
	tac := a.Tactical()
	tac.roe = ROEFlexible
	tac.elementIndex = wing.ElementIndex()
	tac.selectFighterTarget()

	//2.- Protecting the ward comes first.
	if a.Target() != sim.Object(hunter) {
		t.Fatalf("expected the drone hunting the ward, got %v", a.Target())
	}
}
