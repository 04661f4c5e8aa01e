package ai

import (
	"math"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

const (
	takeoffWindow      = 10.0
	assessmentWindow   = 5.0
	engageCallInterval = 10 * time.Second
	avoidPeriod        = 500 * time.Millisecond

	formationPrediction = 5.0
	supportRange        = 35e3
	retreatGain         = 100.0
	navArrival          = 1000.0
	launchDeparture     = 25e3
	bracketRange        = 25e3
	bracketOffset       = 15e3
	patrolBrakeRange    = 2000.0
	gateApproachRange   = 20e3
	gateExitRange       = 5e3
	gateRouteRange      = 50e3
)

// pilot is the class-specific half of the navigator. A plain ShipAI pilots itself;
// FighterAI and StarshipAI replace the parts their hulls fly differently.
type pilot interface {
	avoidCollision() Steer
	seekTarget() Steer
	evadeThreat() Steer
	helmControl()
	throttleControl()
	fireControl()
}

// ShipAI is the director of one computer-piloted ship. Each frame it picks an
// objective point, steers toward it around obstacles and runs the throttle and
// fire control. Target choice is delegated to its TacticalAI.
type ShipAI struct {
	steerer

	tactical *TacticalAI
	pilot    pilot
	level    int
	log      *logging.Logger

	target        sim.Object
	support       *sim.Ship
	rumor         *sim.Ship
	threat        *sim.Ship
	threatMissile *sim.Shot
	decoyMissile  *sim.Shot
	farcaster     *sim.Ship

	other    sim.Object
	obstacle geom.Vec3
	tooClose uint32
	brake    float64

	navpt          *sim.Instruction
	patrol         bool
	patrolLoc      geom.Vec3
	formationDelta geom.Vec3
	objW           geom.Vec3
	objective      geom.Vec3
	distance       float64

	seconds        float64
	dropTime       float64
	missileTime    float64
	throttle       float64
	oldThrottle    float64
	elementIndex   int
	bracket        bool
	identify       bool
	hold           bool
	takeoff        bool
	terrainWarning bool

	engagedShipID uint32
	lastAvoidTime time.Duration
	lastCallTime  time.Duration
}

// NewShipAI builds a director for ship at the given skill level (0 to 2). The
// tactical policy is chosen from the ship class.
func NewShipAI(ship *sim.Ship, level int) *ShipAI {
	seed := "detached"
	log := logging.L()
	if s := ship.Sim(); s != nil {
		seed = s.Seed()
		log = s.Logger()
	}
	a := &ShipAI{
		steerer:       newSteerer(ship, combat.NewStream(seed, "ai/"+ship.Name())),
		level:         clampLevel(level),
		log:           log,
		elementIndex:  1,
		lastAvoidTime: -avoidPeriod,
		lastCallTime:  -engageCallInterval,
	}
	a.pilot = a
	switch {
	case ship.IsDropship():
		a.tactical = NewFighterTacticalAI(a)
	case ship.IsStarship():
		a.tactical = NewStarshipTacticalAI(a)
	default:
		a.tactical = NewTacticalAI(a)
	}
	return a
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 2 {
		return 2
	}
	return level
}

// Ship returns the controlled ship.
func (a *ShipAI) Ship() *sim.Ship { return a.ship }

func (a *ShipAI) shipAI() *ShipAI { return a }

// directorAI unwraps any director built by this package.
func directorAI(d sim.Director) *ShipAI {
	if sd, ok := d.(interface{ shipAI() *ShipAI }); ok {
		return sd.shipAI()
	}
	return nil
}

// Tactical returns the tactical policy.
func (a *ShipAI) Tactical() *TacticalAI { return a.tactical }

// Level returns the pilot skill from 0 to 2.
func (a *ShipAI) Level() int { return a.level }

// Target returns the object being pursued.
func (a *ShipAI) Target() sim.Object { return a.target }

// SetTarget designates the pursuit target. A new target cancels bracketing.
func (a *ShipAI) SetTarget(obj sim.Object) {
	if obj == a.target {
		return
	}
	a.bracket = false
	a.target = obj
	if obj != nil {
		obj.Base().Observe(a)
	}
}

// DropTarget clears the target and blocks reacquisition for seconds.
func (a *ShipAI) DropTarget(seconds float64) {
	a.SetTarget(nil)
	a.dropTime = seconds
	a.ship.DropTarget()
}

// DropTime returns the seconds left before a new target may be acquired.
func (a *ShipAI) DropTime() float64 { return a.dropTime }

// Ward returns the ship being protected.
func (a *ShipAI) Ward() *sim.Ship { return a.ship.Ward() }

// SetWard designates a ship to protect and picks a random station around it.
func (a *ShipAI) SetWard(w *sim.Ship) {
	if w == a.ship.Ward() {
		return
	}
	a.ship.SetWard(w)
	if w == nil {
		return
	}

	form := a.rng.Vector(1)
	form.Y, form.Z = form.Z, form.Y
	if math.Abs(form.X) < 0.5 {
		form.X = math.Copysign(0.5, form.X)
	}
	if a.ship.IsStarship() {
		form = form.Scale(30e3)
	} else {
		form = form.Scale(15e3)
		form.Y = 500
	}
	a.formationDelta = form
}

// Threat returns the hostile ship menacing this one.
func (a *ShipAI) Threat() *sim.Ship { return a.threat }

// SetThreat records the menacing ship.
func (a *ShipAI) SetThreat(s *sim.Ship) {
	if s == a.threat {
		return
	}
	a.threat = s
	if s != nil {
		s.Observe(a)
	}
}

// ThreatMissile returns the guided shot homing on this ship.
func (a *ShipAI) ThreatMissile() *sim.Shot { return a.threatMissile }

// SetThreatMissile records the homing shot.
func (a *ShipAI) SetThreatMissile(s *sim.Shot) {
	if s == a.threatMissile {
		return
	}
	a.threatMissile = s
	if s != nil {
		s.Observe(a)
	}
}

// Support returns the friendly ship to fall back on.
func (a *ShipAI) Support() *sim.Ship { return a.support }

// SetSupport records the friendly ship to fall back on.
func (a *ShipAI) SetSupport(s *sim.Ship) {
	if s == a.support {
		return
	}
	a.support = s
	if s != nil {
		s.Observe(a)
	}
}

// Rumor returns the unseen shooter to investigate.
func (a *ShipAI) Rumor() *sim.Ship { return a.rumor }

// SetRumor records an unseen shooter. A nil rumor keeps the previous one.
func (a *ShipAI) SetRumor(s *sim.Ship) {
	if s == nil || s == a.rumor {
		return
	}
	a.rumor = s
	s.Observe(a)
}

// ClearRumor forgets the unseen shooter.
func (a *ShipAI) ClearRumor() { a.rumor = nil }

// Patrol returns the patrol point and whether a patrol is in progress.
func (a *ShipAI) Patrol() (geom.Vec3, bool) { return a.patrolLoc, a.patrol }

// SetPatrol starts a patrol toward p.
func (a *ShipAI) SetPatrol(p geom.Vec3) {
	a.patrol = true
	a.patrolLoc = p
}

// ClearPatrol stops patrolling.
func (a *ShipAI) ClearPatrol() { a.patrol = false }

// NavPoint returns the navpoint being flown to.
func (a *ShipAI) NavPoint() *sim.Instruction { return a.navpt }

// SetNavPoint selects the navpoint to fly to.
func (a *ShipAI) SetNavPoint(n *sim.Instruction) { a.navpt = n }

// FormationDelta returns the station offset in the leader's frame.
func (a *ShipAI) FormationDelta() geom.Vec3 { return a.formationDelta }

// SetFormationDelta sets the station offset in the leader's frame.
func (a *ShipAI) SetFormationDelta(d geom.Vec3) { a.formationDelta = d }

// SetBracket flanks the target instead of attacking head on.
func (a *ShipAI) SetBracket(b bool) {
	a.bracket = b
	a.identify = false
}

// SetIdentify closes on the target to identify it.
func (a *ShipAI) SetIdentify(i bool) {
	a.identify = i
	a.bracket = false
}

// Objective returns the current aim point in world coordinates.
func (a *ShipAI) Objective() geom.Vec3 { return a.objW }

// Obstacle returns the object being avoided, or nil.
func (a *ShipAI) Obstacle() sim.Object { return a.other }

// ObjectDestroyed forgets every reference to a destroyed object.
func (a *ShipAI) ObjectDestroyed(obj sim.Object) {
	if obj == a.target {
		a.target = nil
	}
	if obj == a.other {
		a.other = nil
	}
	switch o := obj.(type) {
	case *sim.Ship:
		if o == a.support {
			a.support = nil
		}
		if o == a.threat {
			a.threat = nil
		}
		if o == a.rumor {
			a.rumor = nil
		}
		if o == a.farcaster {
			a.farcaster = nil
		}
	case *sim.Shot:
		if o == a.threatMissile {
			a.threatMissile = nil
		}
		if o == a.decoyMissile {
			a.decoyMissile = nil
		}
	}
}

// ExecFrame advances the director by one frame.
func (a *ShipAI) ExecFrame(seconds float64) {
	a.seconds = seconds
	if a.dropTime > 0 {
		a.dropTime -= seconds
	}
	if a.missileTime > 0 {
		a.missileTime -= seconds
	}
	ship := a.ship
	if ship == nil {
		return
	}
	ship.SetDirectorInfo("")
	if a.navpt != nil {
		a.navpt = ship.NextNavPoint()
	}

	//1.- Launching ships only fly out of the bay until the takeoff window closes.
	if phase := ship.FlightPhase(); phase == sim.PhaseTakeoff || phase == sim.PhaseLaunch {
		a.takeoff = true
	}
	if a.takeoff {
		a.findObjective()
		a.navigator()
		if ship.MissionClock() > takeoffWindow {
			a.takeoff = false
		}
		return
	}

	//2.- Let sensors populate before making any decisions.
	if ship.MissionClock() < assessmentWindow {
		return
	}

	a.elementIndex = max(ship.ElementIndex(), 1)
	a.checkTarget()
	if a.tactical != nil {
		a.tactical.ExecFrame(seconds)
	}

	//3.- Lock the tactical choice and call it out once per distinct ship.
	if a.target != nil && a.target != ship.Target() {
		ship.SetTarget(a.target)
		if tgt, ok := a.target.(*sim.Ship); ok && ship.Target() == a.target {
			now := a.now()
			if tgt.ID() != a.engagedShipID && now-a.lastCallTime > engageCallInterval {
				ship.SendRadio(radio.CallEngaging, tgt)
				a.lastCallTime = now
				a.engagedShipID = tgt.ID()
			}
		}
	} else if a.target == nil {
		a.target = ship.Target()
		if a.target != nil {
			a.target.Base().Observe(a)
		} else {
			a.engagedShipID = 0
		}
	}

	a.findObjective()
	a.navigator()
}

func (a *ShipAI) now() time.Duration {
	if s := a.ship.Sim(); s != nil {
		return s.GameTime()
	}
	return 0
}

// checkTarget drops a dead target or one that is now on our side.
func (a *ShipAI) checkTarget() {
	if a.target == nil {
		return
	}
	if a.target.Base().Life() == 0 {
		a.target = nil
		return
	}
	if tgt, ok := a.target.(*sim.Ship); ok && tgt.IFF() == a.ship.IFF() && !tgt.IsRogue() {
		a.target = nil
	}
}

func (a *ShipAI) roe() ROE {
	if a.tactical == nil {
		return ROEFlexible
	}
	return a.tactical.ROE()
}

func (a *ShipAI) setInfo(info string) {
	if a.ship.DirectorInfo() == "" {
		a.ship.SetDirectorInfo(info)
	}
}

// findObjective chooses the world-space aim point for this frame.
func (a *ShipAI) findObjective() {
	ship := a.ship
	a.distance = 0
	order := ship.RadioOrders().Action()

	if order == radio.QuantumTo || order == radio.FarcastTo {
		a.findObjectiveQuantum()
		a.objective = a.transform(a.objW)
		return
	}

	form := order == radio.WepHold || order == radio.FormUp || order == radio.MovePatrol ||
		order == radio.RTB || order == radio.DockWith ||
		(order == radio.ActionNone && a.target == nil) || a.farcaster != nil
	ward := ship.Ward()

	//1.- Wingmen hold their slot unless they are chasing something.
	if form && a.elementIndex > 1 {
		a.setInfo("formation")
		if a.navpt != nil && a.navpt.Action() == sim.ActionLaunch {
			a.findObjectiveNavPoint()
		} else {
			a.navpt = nil
			a.findObjectiveFormation()
		}
		a.objective = a.transform(a.objW)
		return
	}

	//2.- Threats send undirected ships to support or away from the danger.
	if a.threat != nil && a.roe() != ROEDirected {
		if a.support != nil {
			if a.support.Location().Distance(ship.Location()) > supportRange {
				a.setInfo("regroup")
				a.findObjectiveTarget(a.support)
				a.objective = a.transform(a.objW)
				return
			}
		} else if sim.Object(a.threat) != a.target {
			a.setInfo("retreat")
			a.objW = ship.Location().Add(ship.Location().Sub(a.threat.Location()).Scale(retreatGain))
			a.objective = a.transform(a.objW)
			return
		}
	}

	switch {
	case a.target != nil:
		a.setInfo("seek target")
		a.findObjectiveTarget(a.target)
	case a.patrol:
		a.setInfo("patrol")
		a.findObjectivePatrol()
	case ward != nil:
		a.setInfo("seek ward")
		a.findObjectiveFormation()
	case a.navpt != nil && form:
		a.setInfo("seek navpoint")
		a.findObjectiveNavPoint()
	case a.rumor != nil:
		a.setInfo("search")
		a.findObjectiveTarget(a.rumor)
	default:
		a.objW = geom.Vec3{}
		a.objective = geom.Vec3{}
		return
	}
	a.objective = a.transform(a.objW)
}

// closingVelocity is the velocity that closes on the target: the gun stream for
// fixed guns out of range, otherwise the relative velocity.
func (a *ShipAI) closingVelocity() geom.Vec3 {
	if a.target == nil {
		return geom.V(1, 0, 0)
	}
	ship := a.ship
	primary := ship.PrimaryGroup()
	if primary == nil || primary.Design() == nil {
		return ship.Velocity()
	}
	guns := primary.Design()
	delta := a.target.Base().Location().Sub(ship.Location())
	if guns.FiringCone < 10*sim.Degrees && guns.MaxRange <= delta.Length() {
		shotVel := ship.Velocity().Add(ship.Heading().Normalize().Scale(guns.Speed))
		return shotVel.Sub(a.target.Base().Velocity())
	}
	return ship.Velocity().Sub(a.target.Base().Velocity())
}

// findObjectiveTarget leads a moving object and corrects for our own drift.
func (a *ShipAI) findObjectiveTarget(tgt sim.Object) {
	if tgt == nil {
		a.objW = geom.Vec3{}
		return
	}
	a.navpt = nil
	self := a.ship.Location()
	body := tgt.Base()

	cv := a.closingVelocity()
	cvl := cv.Length()
	a.objW = body.Location()
	if cvl > 50 {
		t := body.Location().Distance(self) / cvl
		if t < 15 {
			a.objW = body.Location().Add(body.Velocity().Scale(t))
			if t < 10 {
				a.objW = a.objW.Add(body.Acceleration().Scale(0.33 * t * t))
			}
		}
	}

	a.distance = a.objW.Distance(self)
	if cvl > 50 {
		t := a.distance / cvl
		if t < 15 {
			selfDest := self.Add(cv.Scale(t))
			a.objW = a.objW.Add(a.objW.Sub(selfDest))
		}
	}

	approach := a.objW.Sub(self)
	a.distance = approach.Length()
	if a.bracket && a.distance > bracketRange {
		offset := approach.Cross(geom.V(0, 1, 0)).Normalize().Scale(bracketOffset)
		if a.ship.ElementIndex()&1 == 1 {
			a.objW = a.objW.Sub(offset)
		} else {
			a.objW = a.objW.Add(offset)
		}
	}
}

func (a *ShipAI) findObjectivePatrol() {
	a.navpt = nil
	a.objW = a.patrolLoc
	a.distance = a.objW.Distance(a.ship.Location())
	if a.distance < navArrival {
		a.ship.ClearRadioOrders()
		a.ClearPatrol()
	}
}

// regionOffset maps a point local to region r into the ship's region frame.
func (a *ShipAI) regionOffset(r *sim.Region, p geom.Vec3) geom.Vec3 {
	self := a.ship.Region()
	if r == nil || self == nil {
		return p
	}
	return r.Location().Add(p).Sub(self.Location())
}

func (a *ShipAI) findObjectiveNavPoint() {
	ship := a.ship
	selfRgn := ship.Region()
	navpt := a.navpt
	if selfRgn == nil || navpt == nil {
		return
	}
	navRgn := navpt.Region()
	if navRgn == nil {
		navRgn = selfRgn
		navpt.SetRegion(navRgn)
	}
	drive := ship.QuantumDrive()
	if selfRgn != navRgn && (navpt.Farcast || drive == nil) {
		a.findObjectiveFarcaster(selfRgn, navRgn)
		return
	}

	a.followGate(selfRgn)
	if a.farcaster == nil {
		a.objW = a.regionOffset(navRgn, navpt.Location)
		if selfRgn != navRgn && a.elementIndex == 1 {
			a.engageDrive(navRgn, navpt.Location)
		}
	}

	a.distance = a.objW.Distance(ship.Location())
	if a.farcaster != nil && a.distance < navArrival {
		a.farcaster = nil
	}
	if selfRgn == navRgn && (a.distance < navArrival || (navpt.Action() == sim.ActionLaunch && a.distance > launchDeparture)) {
		navpt.SetStatus(sim.StatusComplete)
	}
}

// findObjectiveQuantum flies a radio-ordered region transfer by drive or gate.
func (a *ShipAI) findObjectiveQuantum() {
	ship := a.ship
	orders := ship.RadioOrders()
	selfRgn := ship.Region()
	var navRgn *sim.Region
	if s := ship.Sim(); s != nil && orders.Info() != "" {
		navRgn = s.FindRegion(orders.Info())
	}
	if navRgn == nil {
		if tgt, ok := orders.Target().(*sim.Ship); ok {
			navRgn = tgt.Region()
		}
	}
	if selfRgn == nil || navRgn == nil {
		return
	}

	drive := ship.QuantumDrive()
	if selfRgn != navRgn && (orders.Action() == radio.FarcastTo || drive == nil) {
		a.findObjectiveFarcaster(selfRgn, navRgn)
		return
	}

	a.followGate(selfRgn)
	if a.farcaster == nil {
		a.objW = a.regionOffset(navRgn, orders.Location())
		if selfRgn != navRgn && a.engageDrive(navRgn, orders.Location()) {
			return
		}
	}

	a.distance = a.objW.Distance(ship.Location())
	if a.farcaster != nil {
		if a.distance < navArrival {
			a.farcaster = nil
			ship.ClearRadioOrders()
		}
	} else if selfRgn == navRgn {
		ship.ClearRadioOrders()
	}
}

// followGate switches to the paired gate after a farcast and aims past its exit.
func (a *ShipAI) followGate(selfRgn *sim.Region) {
	if a.farcaster == nil {
		return
	}
	if a.farcaster.Region() != selfRgn {
		fc := a.farcaster.Farcaster()
		if fc == nil || fc.Destination() == nil {
			a.farcaster = nil
			return
		}
		a.farcaster = fc.Destination()
		a.farcaster.Observe(a)
	}
	a.objW = gateEndPoint(a.farcaster)
}

func (a *ShipAI) engageDrive(r *sim.Region, loc geom.Vec3) bool {
	drive := a.ship.QuantumDrive()
	if drive == nil || drive.Engaged() {
		return false
	}
	drive.SetDestination(r, loc)
	if !drive.Engage() {
		return false
	}
	a.log.Info("quantum drive engaged",
		logging.String("ship", a.ship.Name()),
		logging.String("region", r.Name()))
	return true
}

// findObjectiveFarcaster routes to a gate in src that throws to dst: through the
// approach point first, then the throat.
func (a *ShipAI) findObjectiveFarcaster(src, dst *sim.Region) {
	if a.farcaster == nil {
		for _, s := range src.Ships() {
			fc := s.Farcaster()
			if fc == nil || fc.Destination() == nil || fc.Destination().Region() != dst {
				continue
			}
			a.farcaster = s
			s.Observe(a)
			break
		}
	}
	if a.farcaster == nil {
		return
	}
	self := a.ship.Location()
	apt := gateApproachPoint(a.farcaster)
	npt := a.farcaster.Location()
	r1 := self.Distance(npt)
	if r1 > gateRouteRange {
		a.objW = apt
		a.distance = r1
	} else {
		r2 := self.Distance(apt)
		r3 := npt.Distance(apt)
		if r1+r2 < 1.2*r3 {
			a.objW = npt
			a.distance = r1
		} else {
			a.objW = apt
			a.distance = r2
		}
	}
	a.objective = a.transform(a.objW)
}

func gateApproachPoint(gate *sim.Ship) geom.Vec3 {
	return gate.Location().Sub(gate.Heading().Scale(gateApproachRange))
}

func gateEndPoint(gate *sim.Ship) geom.Vec3 {
	return gate.Location().Add(gate.Heading().Scale(gate.Radius() + gateExitRange))
}

// findObjectiveFormation aims at the formation slot ahead of the leader or ward.
func (a *ShipAI) findObjectiveFormation() {
	ship := a.ship
	var lead *sim.Ship
	if e := ship.Element(); e != nil {
		lead = e.Ship(1)
	}
	if lead == nil || lead == ship {
		lead = ship.Ward()
		if lead == nil {
			a.objW = ship.Location().Add(ship.Heading().Scale(1e6))
			return
		}
		a.distance = lead.Location().Distance(ship.Location())
		if a.distance < 30e3 && lead.Velocity().Length() < 50 {
			a.objW = ship.Location().Add(lead.Heading().Scale(1e6))
			a.distance = -1
			return
		}
	}

	a.objW = lead.Location().Add(lead.Velocity().Scale(formationPrediction))
	a.objW = a.objW.Add(yawRotate(a.formationDelta, lead.Heading()))
	if ship.IsAirborne() && (ship.AltitudeAGL() < 3000 || lead.AltitudeAGL() < 3000) {
		a.objW.Y += 500
	}
	predicted := ship.Location().Add(ship.Velocity().Scale(formationPrediction))
	a.distance = a.objW.Distance(predicted)

	if leadAI := directorAI(lead.Director()); leadAI != nil {
		a.farcaster = leadAI.farcaster
	}
}

// yawRotate turns a leader-frame offset by the leader's compass heading.
func yawRotate(d, heading geom.Vec3) geom.Vec3 {
	yaw := math.Atan2(heading.X, heading.Z)
	s, c := math.Sincos(yaw)
	return geom.V(d.X*c+d.Z*s, d.Y, -d.X*s+d.Z*c)
}

// navigator accumulates avoidance and pursuit demands and drives the ship.
func (a *ShipAI) navigator() {
	a.reset()
	ship := a.ship
	a.hold = (ship.Element() != nil && ship.Element().HoldTime() > 0) ||
		(a.navpt != nil && a.navpt.Status() == sim.StatusComplete && a.navpt.HoldTime > 0)

	switch {
	case a.target != nil:
		a.setInfo("seek target")
	case a.rumor != nil:
		a.setInfo("seek rumor")
	}

	p := a.pilot
	a.accumulate(p.avoidCollision())
	a.accumulate(a.avoidTerrain())
	if !a.hold && !a.terrainWarning {
		a.accumulate(p.seekTarget())
		a.accumulate(p.evadeThreat())
	}

	p.helmControl()
	p.throttleControl()
	p.fireControl()
	a.adjustDefenses()
}

func (a *ShipAI) helmControl() {
	a.ship.SetHelm(a.accum.Yaw, a.accum.Pitch)
	roll := a.accum.Roll
	if a.ship.IsDropship() && a.ship.Design().AutoRoll > 0 {
		roll += a.accum.Yaw * 0.5
	}
	a.ship.SetRoll(roll)
}

func (a *ShipAI) throttleControl() {
	ship := a.ship
	switch {
	case a.navpt != nil && a.threat == nil && a.target == nil:
		a.throttle = 50
		if speed := a.navpt.Speed; speed > 0 && ship.Design().VLimit > 0 {
			a.throttle = speed / ship.Design().VLimit * 100
		}
	case a.patrol && a.threat == nil && a.target == nil:
		speed := 200.0
		if a.distance > 5000 {
			speed = 500
		}
		a.throttle = 50
		if ship.Velocity().Length() > speed {
			a.throttle = 0
		}
	case a.threat != nil || a.target != nil || a.elementIndex < 2:
		a.throttle = 100
		if a.threat == nil && a.target == nil {
			a.throttle = 50
		}
		if a.accum.Brake > 0 {
			a.throttle *= 1 - a.accum.Brake
		}
	default:
		//1.- Wingmen match the leader's speed and sprint when far from the slot.
		lead := ship.Leader()
		dv := lead.Velocity().Length() - ship.Velocity().Length()
		a.throttle = a.oldThrottle + dv*a.seconds
		if a.distance > gateExitRange {
			a.throttle = 100
		}
	}
	a.applyThrottle(a.throttle)
}

// applyThrottle clamps and commands the throttle and remembers it for the next frame.
func (a *ShipAI) applyThrottle(throttle float64) {
	a.throttle = math.Max(0, math.Min(100, throttle))
	a.oldThrottle = a.throttle
	a.ship.SetThrottle(a.throttle)
}

// avoidCollision finds the soonest obstacle among starship contacts, heavy debris
// and asteroids and produces a steering demand around it.
func (a *ShipAI) avoidCollision() Steer {
	var avoid Steer
	ship := a.ship
	rgn := ship.Region()
	if rgn == nil || !rgn.IsActive() {
		return avoid
	}
	if a.other != nil && (a.other.Base().Life() == 0 || a.other.Base().Integrity() < 1) {
		a.other = nil
		a.lastAvoidTime = a.now() - avoidPeriod
	}
	now := a.now()
	if a.other == nil && now-a.lastAvoidTime < avoidPeriod {
		return avoid
	}
	a.brake = 0

	avoidDist := math.Max(1e3, math.Min(12e3, 5*ship.Radius()))
	avoidTime := 15.0
	if t := ship.Design().AvoidTime; t > 0 {
		avoidTime = t
	} else if ship.IsStarship() {
		avoidTime *= 1.5
	}
	bearing := ship.Velocity().Normalize()

	found := false
	if a.other != nil {
		found = a.avoidTestSingleObject(a.other, bearing, avoidDist, &avoidTime, &avoid)
	}
	if !found {
		for _, c := range ship.Contacts() {
			if found {
				break
			}
			if cs := c.Ship(); cs != nil && cs != ship && cs.IsStarship() {
				found = a.avoidTestSingleObject(cs, bearing, avoidDist, &avoidTime, &avoid)
			}
		}
		for _, d := range rgn.Debris() {
			if found {
				break
			}
			if d.Mass() > ship.Mass() {
				found = a.avoidTestSingleObject(d, bearing, avoidDist, &avoidTime, &avoid)
			}
		}
		rockDist := avoidDist * 8
		for _, rock := range rgn.Asteroids() {
			if found {
				break
			}
			found = a.avoidTestSingleObject(rock, bearing, rockDist, &avoidTime, &avoid)
			if found || a.other == sim.Object(rock) {
				avoidDist = rockDist
			}
		}
		if !found && a.other != nil {
			avoid = a.avoid(a.obstacle, ship.Radius()+a.other.Base().Radius()+avoidDist*0.9)
			avoid.Brake = a.brake
			a.setInfo("avoid collision")
		}
	}
	a.lastAvoidTime = now
	return avoid
}

// closestApproachTime returns when two linearly moving points are nearest.
func closestApproachTime(p1, v1, p2, v2 geom.Vec3) float64 {
	dv := v1.Sub(v2)
	denom := dv.LengthSquared()
	if denom < 1e-9 {
		return 0
	}
	return -p1.Sub(p2).Dot(dv) / denom
}

// avoidTestSingleObject tests one candidate obstacle. It reports true when the
// object is so close that an immediate escape demand was written to avoid.
func (a *ShipAI) avoidTestSingleObject(obj sim.Object, bearing geom.Vec3, avoidDist float64, avoidTime *float64, avoid *Steer) bool {
	ship := a.ship
	body := obj.Base()

	if a.tooClose != 0 && a.tooClose == body.ID() {
		dist := ship.Location().Distance(body.Location())
		closure := ship.Velocity().Sub(body.Velocity()).Dot(bearing)
		if closure > 1 && dist < avoidDist {
			*avoid = a.avoidCloseObject(obj)
			return true
		}
		a.tooClose = 0
	}

	t := closestApproachTime(ship.Location(), ship.Velocity(), body.Location(), body.Velocity())
	if t <= 0 {
		a.releaseObstacle(obj)
		return false
	}

	currentDistance := ship.Location().Distance(body.Location()) - ship.Radius() - body.Radius()
	if currentDistance > 25e3 {
		a.releaseObstacle(obj)
		return false
	}

	//1.- Gates are meant to be flown through.
	if gate, ok := obj.(*sim.Ship); ok && gate.Farcaster() != nil && a.passesThroughGate(gate, currentDistance) {
		return false
	}

	closing := ship.Velocity().Sub(body.Velocity()).Dot(bearing)
	if currentDistance < avoidDist*0.35 && (closing > 1 || currentDistance < ship.Radius()) {
		*avoid = a.avoidCloseObject(obj)
		return true
	}

	separation := avoidDist + body.Radius()
	if closing <= 0 || (currentDistance-separation)/closing > *avoidTime {
		a.releaseObstacle(obj)
		return false
	}

	selfPt := ship.Location().Add(ship.Velocity().Scale(t))
	testPt := body.Location().Add(body.Velocity().Scale(t))
	miss := selfPt.Distance(testPt) - ship.Radius() - body.Radius()
	if miss < avoidDist {
		if miss < avoidDist*0.25 && t < *avoidTime*0.5 {
			*avoid = a.avoidCloseObject(obj)
			return true
		}
		obstacle := a.transform(testPt)
		if obstacle.Z > 0 {
			a.obstacle = obstacle
			a.other = obj
			*avoidTime = t
			a.brake = 0.5
			body.Observe(a)
		}
	} else if a.other == obj && miss > avoidDist*1.25 {
		a.other = nil
	}
	return false
}

// passesThroughGate reports a velocity aligned with the gate axis whose predicted
// pass point lies close to the gate center.
func (a *ShipAI) passesThroughGate(gate *sim.Ship, currentDistance float64) bool {
	ship := a.ship
	tuning := sim.DefaultTuning()
	if s := ship.Sim(); s != nil {
		tuning = s.Tuning()
	}
	dir := ship.Velocity().Normalize()
	if dir.IsZero() {
		return false
	}
	angle := math.Abs(math.Acos(math.Max(-1, math.Min(1, dir.Dot(gate.Heading())))))
	if angle > math.Pi/2 {
		angle = math.Pi - angle
	}
	if angle >= tuning.FarcasterConeDeg*sim.Degrees {
		return false
	}
	pass := ship.Location().Add(dir.Scale(currentDistance + ship.Radius() + gate.Radius()))
	return gate.Location().Distance(pass) < tuning.FarcasterPassError*gate.Radius()
}

func (a *ShipAI) releaseObstacle(obj sim.Object) {
	if a.other == obj {
		a.other = nil
	}
}

func (a *ShipAI) avoidCloseObject(obj sim.Object) Steer {
	a.tooClose = obj.Base().ID()
	a.obstacle = a.transform(obj.Base().Location())
	a.other = obj
	obj.Base().Observe(a)
	avoid := a.flee(a.obstacle)
	avoid.Brake = 0.3
	a.setInfo("avoid collision")
	return avoid
}

// avoidTerrain keeps airborne ships inside the flyable altitude band.
func (a *ShipAI) avoidTerrain() Steer {
	var avoid Steer
	a.terrainWarning = false
	ship := a.ship
	rgn := ship.Region()
	if rgn == nil || !rgn.IsActive() || (a.navpt != nil && a.navpt.Action() == sim.ActionLaunch) {
		return avoid
	}
	if !ship.IsAirborne() || ship.FlightPhase() != sim.PhaseActive {
		return avoid
	}
	ahead := ship.Location().Add(ship.Velocity())
	switch {
	case ship.Location().Y > 25e3:
		if a.navpt == nil || (a.navpt.Region() == rgn && a.navpt.Location.Y < 27e3) {
			a.terrainWarning = true
			ship.SetDirectorInfo("too high")
			avoid = a.seek(a.transform(ahead.Add(geom.V(0, -15e3, 0))))
		}
	case ship.AltitudeAGL() < 2500:
		a.terrainWarning = true
		ship.SetDirectorInfo("too low")
		if ship.AltitudeAGL() < 1500 {
			ship.SetDirectorInfo("way too low")
			a.target = nil
			a.dropTime = 5
		}
		avoid = a.seek(a.transform(ahead.Add(geom.V(0, 10e3, 0))))
	}
	return avoid
}

// seekTarget steers toward the objective when there is something to pursue.
func (a *ShipAI) seekTarget() Steer {
	ward := a.ship.Ward()
	if a.target == nil && ward == nil && a.navpt == nil && !a.patrol {
		if a.elementIndex > 1 || a.farcaster != nil || a.rumor != nil {
			return a.seek(a.objective)
		}
		return Steer{}
	}
	if a.patrol {
		result := a.seek(a.objective)
		if a.distance < patrolBrakeRange {
			result.Brake = 1
		}
		return result
	}
	if a.target != nil && a.tooClose != 0 && a.tooClose == a.target.Base().ID() {
		a.dropTime = 4
		return a.avoid(a.objective, 0)
	}
	if a.dropTime > 0 {
		return Steer{}
	}
	return a.seek(a.objective)
}

// evadeThreat is a no-op for hulls that cannot outmanoeuvre what shoots at them.
func (a *ShipAI) evadeThreat() Steer { return Steer{} }

// defensePerimeter is the reach of a starship's longest-range weapon.
func defensePerimeter(s *sim.Ship) float64 {
	perimeter := 20e3
	for _, g := range s.Weapons() {
		if d := g.Design(); d != nil && d.MaxRange*1.2 > perimeter {
			perimeter = d.MaxRange * 1.2
		}
	}
	return perimeter
}

// fireControl fires manually controlled guns and missiles at a target in the basket.
func (a *ShipAI) fireControl() {
	ship := a.ship
	tgt := a.target
	if tgt == nil || tgt.Base().Integrity() < 1 || a.farcaster != nil {
		return
	}
	if a.navpt != nil && a.navpt.Action() < sim.ActionDefend {
		return
	}
	rel := a.transform(tgt.Base().Location())
	dist := rel.Length()
	if rel.Z < 0 || dist < 4*ship.Radius() {
		return
	}
	tgtShip, isShip := tgt.(*sim.Ship)
	if isShip && tgtShip.InTransition() {
		return
	}

	crossSection := 2 * tgt.Base().Radius() / dist
	basket := crossSection * 2
	if primary := ship.PrimaryGroup(); primary != nil && primary.Design() != nil {
		d := primary.Design()
		if d.AzMax > 5*sim.Degrees && dist > d.MaxRange/2 {
			basket = crossSection * 4
		}
		basket *= float64(3 - a.level)
		usable := !isShip || primary.CanTarget(tgtShip.Class())
		if usable && primary.FiringOrders() == sim.OrdersManual &&
			math.Abs(rel.X/dist) < basket && math.Abs(rel.Y/dist) < basket &&
			dist > d.MinRange && dist < d.MaxRange {
			ship.FirePrimary()
		}
	}

	secondary := ship.SecondaryGroup()
	if secondary == nil || secondary.FiringOrders() != sim.OrdersManual || a.missileTime > 0 || secondary.Ammo() == 0 {
		return
	}
	d := secondary.Design()
	if d == nil {
		return
	}
	factor := float64(2 - a.level)
	sRange := 0.5 + 0.2*factor
	sBasket := 0.3 + 0.2*factor
	extra := 10*factor*factor + 5
	if !d.SelfAiming {
		sBasket *= 0.33
	}
	if isShip {
		if tgtShip.Class() == sim.ClassMine {
			extra = 10
			sRange = 0.75
		} else if !tgtShip.IsDropship() {
			extra = 0.5*factor + 0.5
			sRange = 0.9
		}
	}
	dir := rel.Normalize()
	if dist < d.MaxRange*sRange && math.Abs(dir.X) < sBasket && math.Abs(dir.Y) < sBasket {
		if ship.FireSecondary() {
			a.missileTime = d.SalvoDelay + extra
		}
	}
}

// adjustDefenses drops a decoy for each new missile and raises emissions under threat.
func (a *ShipAI) adjustDefenses() {
	ship := a.ship
	if m := a.threatMissile; m != nil && a.decoyMissile != m && ship.DecoyGroup() != nil {
		if ship.FireDecoy() != nil {
			a.decoyMissile = m
			m.Observe(a)
		}
	}
	if (a.threat != nil || a.threatMissile != nil) && ship.EMCON() < 3 {
		ship.SetEMCON(3)
	}
}
