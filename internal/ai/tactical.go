package ai

import (
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// ROE is the rule of engagement governing which contacts a ship may attack.
type ROE int

const (
	ROENone ROE = iota
	ROESelfDefensive
	ROEDefensive
	ROEDirected
	ROEFlexible
	ROEAggressive
)

func (r ROE) String() string {
	switch r {
	case ROENone:
		return "none"
	case ROESelfDefensive:
		return "self-defensive"
	case ROEDefensive:
		return "defensive"
	case ROEDirected:
		return "directed"
	case ROEFlexible:
		return "flexible"
	case ROEAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

const (
	execPeriod        = time.Second
	execStagger       = 17 * time.Millisecond
	defaultDropTime   = 1.5
	wardSafeZone      = 50e3
	wardSafeZoneLarge = 100e3
	inboundRange      = 50e3
	contactRangeLimit = 75e3
	threatCellSize    = 20e3
	starshipDropTime  = 15.0
	bugOutRange       = 50e3
	navTargetRange    = 80e3
)

type variant int

const (
	variantGeneric variant = iota
	variantFighter
	variantStarship
)

// Winchester slots track which target categories have run out of usable missiles.
const (
	winchesterFighter = iota
	winchesterAssault
	winchesterStrike
	winchesterStatic
)

// execSeed offsets each new tactical layer so evaluations spread across frames.
var execSeed time.Duration

// TacticalAI is the once-per-second decision layer of a ShipAI. It interprets
// orders, the flight plan and objectives into a rule of engagement and then picks
// the target, threat, support and formation slot.
type TacticalAI struct {
	ai      *ShipAI
	ship    *sim.Ship
	variant variant

	navpt         *sim.Instruction
	action        radio.Action
	roe           ROE
	elementIndex  int
	execTime      time.Duration
	reaction      time.Duration
	directedTgtID uint32
	inbound       bool

	winchester        [4]bool
	secondarySelected time.Duration

	threatLevel      float64
	supportLevel     float64
	dropTime         float64
	initialIntegrity float64
	bugout           bool
}

func newTactical(ai *ShipAI, v variant) *TacticalAI {
	t := &TacticalAI{
		ai:           ai,
		ship:         ai.ship,
		variant:      v,
		roe:          ROEFlexible,
		elementIndex: 1,
		execTime:     execSeed - execPeriod,
		reaction:     time.Second,
		dropTime:     1e9,
	}
	execSeed = (execSeed + execStagger) % execPeriod
	return t
}

// NewTacticalAI builds the generic tactical layer.
func NewTacticalAI(ai *ShipAI) *TacticalAI { return newTactical(ai, variantGeneric) }

// NewFighterTacticalAI builds the fighter layer: it limits targets to small craft,
// follows strike plans and picks missiles per target.
func NewFighterTacticalAI(ai *ShipAI) *TacticalAI {
	t := newTactical(ai, variantFighter)
	switch ai.level {
	case 1:
		t.reaction = 3 * time.Second
	case 0:
		t.reaction = 6 * time.Second
	}
	t.secondarySelected = -t.reaction
	return t
}

// NewStarshipTacticalAI builds the capital ship layer: it weighs threat against
// support and may jump out of a losing fight.
func NewStarshipTacticalAI(ai *ShipAI) *TacticalAI {
	t := newTactical(ai, variantStarship)
	t.initialIntegrity = ai.ship.Integrity()
	switch ai.level {
	case 2:
		t.reaction = 500 * time.Millisecond
	case 1:
		t.reaction = time.Second
	default:
		t.reaction = 2500 * time.Millisecond
		t.dropTime = starshipDropTime + ai.rng.Range(0, starshipDropTime)
	}
	return t
}

// ROE returns the current rule of engagement.
func (t *TacticalAI) ROE() ROE { return t.roe }

// ThreatLevel returns the weighted hostile strength seen at the last evaluation.
func (t *TacticalAI) ThreatLevel() float64 { return t.threatLevel }

// SupportLevel returns the weighted friendly strength seen at the last evaluation.
func (t *TacticalAI) SupportLevel() float64 { return t.supportLevel }

// Winchester reports whether the ship has no missile left for a target category.
func (t *TacticalAI) Winchester(slot int) bool {
	if slot < 0 || slot >= len(t.winchester) {
		return false
	}
	return t.winchester[slot]
}

// BuggedOut reports whether a capital ship has already fled a losing fight.
func (t *TacticalAI) BuggedOut() bool { return t.bugout }

// ExecFrame runs a full evaluation once per second and counts down the capital
// ship target refresh timer every frame.
func (t *TacticalAI) ExecFrame(seconds float64) {
	if t == nil || t.ship == nil {
		return
	}
	t.navpt = t.ship.NextNavPoint()
	now := t.ai.now()
	if now-t.execTime > execPeriod {
		t.evaluate()
		t.execTime += execPeriod
		if now-t.execTime > execPeriod {
			t.execTime = now
		}
	}

	if t.variant == variantStarship {
		t.dropTime -= seconds
		if t.dropTime <= 0 {
			t.dropTime = starshipDropTime
			t.ai.DropTarget(starshipDropTime / 4)
		}
	}
}

// evaluate is one decision pass.
func (t *TacticalAI) evaluate() {
	t.elementIndex = t.ship.ElementIndex()
	t.checkOrders()
	t.selectTarget()
	t.findThreat()
	t.findSupport()
	if t.elementIndex > 1 {
		t.findFormationSlot(t.formation())
	}
	t.ai.SetNavPoint(t.navpt)
}

func (t *TacticalAI) formation() sim.Formation {
	switch t.ship.RadioOrders().Action() {
	case radio.GoDiamond:
		return sim.FormationDiamond
	case radio.GoSpread:
		return sim.FormationSpread
	case radio.GoBox:
		return sim.FormationBox
	case radio.GoTrail:
		return sim.FormationTrail
	}
	if t.navpt != nil && t.navpt.Formation != sim.FormationNone {
		return t.navpt.Formation
	}
	return sim.FormationDiamond
}

func (t *TacticalAI) checkOrders() {
	t.directedTgtID = 0
	if t.processOrders() {
		return
	}
	if t.checkFlightPlan() {
		return
	}
	t.checkObjectives()
}

// processOrders applies the standing radio order. It reports whether an order
// governed this pass.
func (t *TacticalAI) processOrders() bool {
	ai, ship := t.ai, t.ship
	ai.ClearPatrol()
	orders := ship.RadioOrders()
	action := orders.Action()

	if action == radio.ActionNone {
		if t.action != radio.ActionNone {
			//1.- A vanished order means the order was cancelled.
			t.clearRadioOrders()
		}
		t.inbound = false
		return false
	}

	//2.- Target drops happen once when an order arrives, not on every pass.
	fresh := action != t.action
	drop := func(seconds float64) {
		if fresh {
			ai.DropTarget(seconds)
		}
	}

	switch action {
	case radio.Attack, radio.Bracket, radio.Identify:
		tgt, ok := orders.Target().(*sim.Ship)
		if ok && t.canTarget(tgt) {
			t.roe = ROEDirected
			t.selectTargetDirected(tgt)
			ai.SetBracket(action == radio.Bracket)
			ai.SetIdentify(action == radio.Identify)
			ai.SetNavPoint(nil)
			t.navpt = nil
		} else {
			t.clearRadioOrders()
		}
	case radio.Escort, radio.CoverMe:
		if tgt, ok := orders.Target().(*sim.Ship); ok {
			t.roe = ROEDefensive
			ai.SetWard(tgt)
			ai.SetNavPoint(nil)
			t.navpt = nil
		} else {
			t.clearRadioOrders()
		}
	case radio.WepFree:
		t.roe = ROEAggressive
		drop(0.1)
	case radio.WepHold, radio.FormUp:
		t.roe = ROENone
		drop(5)
	case radio.MovePatrol:
		t.roe = ROESelfDefensive
		ai.SetPatrol(orders.Location())
		ai.SetNavPoint(nil)
		t.navpt = nil
		drop(ai.rng.Range(5, 10))
	case radio.RTB, radio.DockWith:
		t.roe = ROENone
		drop(10)
		t.callInbound(orders)
		ai.SetNavPoint(nil)
		t.navpt = nil
	case radio.QuantumTo, radio.FarcastTo:
		t.roe = ROENone
		drop(10)
	}
	if ship.RadioOrders().Action() != radio.ActionNone {
		t.action = action
	}
	return true
}

// callInbound asks the recovering carrier for a landing slot once within range.
func (t *TacticalAI) callInbound(orders *sim.RadioOrders) {
	ship := t.ship
	if t.inbound {
		return
	}
	controller := ship.Carrier()
	if orders.Action() == radio.DockWith {
		if tgt, ok := orders.Target().(*sim.Ship); ok {
			controller = tgt
		}
	}
	if controller == nil {
		if e := ship.Element(); e != nil && e.Commander() != nil {
			controller = e.Commander().Ship(1)
		}
	}
	if controller == nil || controller.Hangar() == nil || !canStow(controller.Hangar()) {
		ship.ClearRadioOrders()
		return
	}
	if controller.Region() == ship.Region() && controller.Location().Distance(ship.Location()) < inboundRange {
		ship.SendRadioTo(radio.CallInbound, controller, nil)
		t.inbound = true
	}
}

func canStow(h *sim.Hangar) bool { return len(h.Ships()) < h.Slots() }

func (t *TacticalAI) clearRadioOrders() {
	t.action = radio.ActionNone
	t.roe = ROEFlexible
	t.ai.DropTarget(0.1)
	t.ship.ClearRadioOrders()
}

// checkFlightPlan derives the rule of engagement from the current navpoint.
func (t *TacticalAI) checkFlightPlan() bool {
	ship := t.ship
	t.navpt = ship.NextNavPoint()
	t.roe = ROEFlexible
	var ward *sim.Ship

	if navpt := t.navpt; navpt != nil {
		switch navpt.Action() {
		case sim.ActionLaunch, sim.ActionDock, sim.ActionRTB:
			t.roe = ROENone
		case sim.ActionVector:
			t.roe = ROESelfDefensive
			if t.variant == variantFighter && t.elementIndex > 1 {
				t.roe = ROEDefensive
			}
		case sim.ActionDefend, sim.ActionEscort:
			t.roe = ROEDefensive
		case sim.ActionIntercept:
			t.roe = ROEDirected
			if t.variant == variantFighter && t.elementIndex > 1 {
				t.roe = ROEDefensive
			}
		case sim.ActionRecon, sim.ActionStrike, sim.ActionAssault:
			t.roe = ROEDirected
		case sim.ActionPatrol, sim.ActionSweep:
			t.roe = ROEFlexible
		}

		if t.roe == ROEDefensive {
			if tgt, ok := navpt.Target().(*sim.Ship); ok {
				ward = tgt
			}
		}
		if navpt.EMCON > 0 {
			desired := navpt.EMCON
			if t.ai.Threat() != nil || t.ai.ThreatMissile() != nil {
				desired = 3
			}
			if ship.EMCON() != desired {
				ship.SetEMCON(desired)
			}
		}
		if t.variant == variantFighter {
			if a := navpt.Action(); (a == sim.ActionStrike || a == sim.ActionAssault) && t.isStrikeComplete(navpt) {
				navpt.SetStatus(sim.StatusComplete)
			}
		}
	}

	if t.variant == variantFighter {
		ship.SetDirectorInfo(t.roe.String())
	}
	t.ai.SetWard(ward)
	return t.navpt != nil
}

// checkObjectives falls back to the element's target objective.
func (t *TacticalAI) checkObjectives() bool {
	var ward *sim.Ship
	processed := false
	if e := t.ship.Element(); e != nil {
		if obj := e.TargetObjective(); obj != nil {
			t.ai.ClearPatrol()
			tgt, isShip := obj.Target().(*sim.Ship)
			switch obj.Action() {
			case sim.ActionIntercept, sim.ActionStrike, sim.ActionAssault:
				if isShip {
					t.roe = ROEDirected
					t.selectTargetDirected(tgt)
				}
			case sim.ActionDefend, sim.ActionEscort:
				if isShip {
					t.roe = ROEDefensive
					ward = tgt
				}
			}
			processed = true
		}
	}
	t.ai.SetWard(ward)
	return processed
}

func isEscortClass(c sim.Class) bool { return c == sim.ClassCorvette || c == sim.ClassFrigate }

// selectTarget keeps, validates or replaces the pursuit target.
func (t *TacticalAI) selectTarget() {
	ai, ship := t.ai, t.ship
	if len(ship.Weapons()) < 1 {
		t.roe = ROENone
	}
	target := ai.Target()
	ward := ai.Ward()

	if t.roe == ROENone {
		if target != nil {
			ai.DropTarget(defaultDropTime)
		}
		return
	}

	//1.- Escorts stay close to the ward unless turned loose.
	if ward != nil && t.roe != ROEAggressive {
		d := ward.Location().Distance(ship.Location())
		safe := wardSafeZone
		if target != nil {
			if ship.IsStarship() {
				safe = wardSafeZoneLarge
			}
			if d > safe {
				ai.DropTarget(defaultDropTime)
				return
			}
		} else if d > safe {
			return
		}
	}

	if target != nil {
		if target.Base().Life() != 0 {
			t.checkTarget()
			if !isEscortClass(ship.Class()) {
				t.afterSelect()
				return
			}
			target = ai.Target()
		} else {
			ai.DropTarget(defaultDropTime)
			target = nil
		}
	}

	if ai.DropTime() > 0 {
		return
	}

	if t.roe == ROEDirected {
		if tgt, ok := target.(*sim.Ship); ok {
			t.selectTargetDirected(tgt)
		} else if tgt, ok := t.navpt.Target().(*sim.Ship); ok {
			t.selectTargetDirected(tgt)
		} else {
			t.selectTargetDirected(nil)
		}
	} else {
		t.selectTargetOpportunity()
		//2.- Escort-class ships keep shooting at the ship they were already engaging.
		if isEscortClass(ship.Class()) {
			potential := ai.Target()
			_, oldShip := target.(*sim.Ship)
			_, newShip := potential.(*sim.Ship)
			if target != nil && potential != nil && target != potential && oldShip && newShip {
				ai.SetTarget(target)
			}
		}
	}
	t.afterSelect()
}

// afterSelect lets fighters re-pick their missile for a ship target.
func (t *TacticalAI) afterSelect() {
	if t.variant != variantFighter {
		return
	}
	tgt, ok := t.ai.Target().(*sim.Ship)
	now := t.ai.now()
	if ok && now-t.secondarySelected > t.reaction {
		t.SelectSecondaryForTarget(tgt)
		t.secondarySelected = now
	}
}

// selectTargetDirected engages tgt, or the element's objective target when it
// shows up on sensors.
func (t *TacticalAI) selectTargetDirected(tgt *sim.Ship) {
	ship := t.ship
	potential := tgt
	if tgt == nil {
		if e := ship.Element(); e != nil {
			if obj := e.TargetObjective(); obj != nil {
				if objTgt, ok := obj.Target().(*sim.Ship); ok && ship.FindContact(objTgt) != nil {
					potential = objTgt
				}
			}
		}
	}
	if !t.canTarget(potential) {
		potential = nil
	}
	t.ai.SetTarget(shipObject(potential))
	if tgt != nil && t.ai.Target() == sim.Object(tgt) {
		t.directedTgtID = tgt.ID()
	} else {
		t.directedTgtID = 0
	}
	if t.variant == variantFighter && potential != nil {
		t.SelectSecondaryForTarget(potential)
	}
}

func (t *TacticalAI) canTarget(tgt *sim.Ship) bool {
	if tgt == nil || tgt.InTransition() {
		return false
	}
	return tgt.IsRogue() || tgt.IFF() != t.ship.IFF()
}

// shipObject wraps a possibly nil ship so a nil ship becomes a nil Object.
func shipObject(s *sim.Ship) sim.Object {
	if s == nil {
		return nil
	}
	return s
}

func shotObject(s *sim.Shot) sim.Object {
	if s == nil {
		return nil
	}
	return s
}

func (t *TacticalAI) selectTargetOpportunity() {
	switch t.variant {
	case variantFighter:
		t.selectFighterTarget()
	default:
		t.selectShipTarget()
	}
}

// selectShipTarget picks opportunistic targets for non-fighters. Corvettes and
// frigates screen against small craft and drones; heavier ships go after
// starships, preferring whatever is attacking their ward.
func (t *TacticalAI) selectShipTarget() {
	ai, ship := t.ai, t.ship
	if ship.IFF() == 0 {
		return
	}
	var potential sim.Object
	targetDist := ship.CommitRange()
	ward := ai.Ward()

	if isEscortClass(ship.Class()) {
		var shipTarget *sim.Ship
		var shotTarget *sim.Shot
		if ward != nil && ward.Class() > ship.Class() {
			if wt, ok := ward.Target().(*sim.Ship); ok {
				shipTarget = wt
				targetDist = ship.Location().Distance(wt.Location())
			}
		}
		for _, c := range ship.Contacts() {
			cs, shot := c.Ship(), c.Shot()
			if cs == nil && shot == nil {
				continue
			}
			iff := c.IFF(ship)
			rogue := cs != nil && cs.IsRogue()
			if !rogue && (iff <= 0 || iff == ship.IFF() || iff >= sim.IFFUnknown) {
				continue
			}
			switch {
			case cs != nil && cs != ship && !cs.InTransition():
				if cs.Class() < sim.ClassDestroyer || (cs.Class() >= sim.ClassMine && cs.Class() <= sim.ClassDefsat) {
					d := ship.Location().Distance(cs.Location())
					if d < 0.75*targetDist && (shipTarget == nil || cs.Class() <= shipTarget.Class()) {
						shipTarget = cs
						targetDist = d
					}
				}
			case shot != nil:
				if shot.ETA() < 3 {
					continue
				}
				d := ship.Location().Distance(shot.Location())
				switch {
				case shotTarget == nil:
					shotTarget, targetDist = shot, d
				case (shot.IsTracking(ward) || shot.IsTracking(ship)) &&
					(!shotTarget.IsTracking(ward) || !shotTarget.IsTracking(ship)):
					shotTarget, targetDist = shot, d
				case d < targetDist:
					shotTarget, targetDist = shot, d
				}
			}
		}
		if shotTarget != nil {
			potential = shotTarget
		} else {
			potential = shipObject(shipTarget)
		}
	} else {
		var wardThreats []*sim.Ship
		var best *sim.Ship
		for _, c := range ship.Contacts() {
			cs := c.Ship()
			if cs == nil {
				continue
			}
			iff := c.IFF(ship)
			ok := cs != ship && iff > 0 && iff != ship.IFF() && !cs.InTransition()
			if !cs.IsRogue() && !ok {
				continue
			}
			if !cs.IsStarship() && !cs.IsStatic() {
				continue
			}
			d := ship.Location().Distance(cs.Location())
			if d < 0.75*targetDist {
				best, targetDist = cs, d
			}
			if ward != nil && cs.IsTracking(ward) {
				wardThreats = append(wardThreats, cs)
			}
		}
		//1.- A ship attacking the ward outranks a closer bystander.
		if best != nil && len(wardThreats) > 0 && !containsShip(wardThreats, best) {
			targetDist *= 2
			for _, threat := range wardThreats {
				if d := ward.Location().Distance(threat.Location()); d < targetDist {
					best, targetDist = threat, d
				}
			}
		}
		potential = shipObject(best)
	}

	if c := ship.Class(); c != sim.ClassCarrier && c != sim.ClassSwacs {
		ai.SetTarget(potential)
	}
}

func containsShip(list []*sim.Ship, s *sim.Ship) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// checkTarget drops targets that left the region, changed sides, entered a
// transition or are running away faster than we can chase.
func (t *TacticalAI) checkTarget() {
	ai, ship := t.ai, t.ship
	tgt := ai.Target()
	if tgt == nil {
		return
	}
	if tgt.Base().Region() != ship.Region() {
		ai.DropTarget(defaultDropTime)
		return
	}
	switch target := tgt.(type) {
	case *sim.Ship:
		if (target.IFF() == ship.IFF() && !target.IsRogue()) || target.InTransition() {
			ai.DropTarget(defaultDropTime)
			return
		}
		if t.directedTgtID != 0 {
			if t.directedTgtID != target.ID() {
				ai.DropTarget(defaultDropTime)
			}
			return
		}
		vlimit := ship.Design().VLimit
		if target.Design().VLimit <= vlimit || ship.Velocity().Length() <= vlimit {
			return
		}
		primary := ship.PrimaryGroup()
		if primary == nil || primary.Design() == nil {
			return
		}
		dropRange := min(3*primary.Design().MaxRange, 0.75*ship.CommitRange())
		rng := target.Location().Distance(ship.Location())
		if rng < dropRange {
			return
		}
		ahead := target.Location().Add(target.Velocity()).Sub(ship.Location().Add(ship.Velocity()))
		if ahead.Length() < rng {
			return
		}
		ai.DropTarget(defaultDropTime)
	case *sim.Shot:
		if target.IsDrone() && (target.ETA() < 1 || target.Target() == nil) {
			ai.DropTarget(defaultDropTime)
		}
	}
}

// findThreat picks the most dangerous contact that has been tracked for longer
// than the reaction time, and the unseen owner of any missile after us.
func (t *TacticalAI) findThreat() {
	switch t.variant {
	case variantFighter:
		t.findFighterThreat()
		return
	case variantStarship:
		t.assessStrength()
	}

	ai, ship := t.ai, t.ship
	now := ai.now()
	var threat *sim.Ship
	var missile *sim.Shot
	var rumor *sim.Ship
	threatDist := 1e9

	for _, c := range ship.Contacts() {
		if !c.Threat(ship) || now-c.AcquisitionTime() <= t.reaction {
			continue
		}
		if shot := c.Shot(); shot != nil {
			missile = shot
			rumor = shot.Owner()
			continue
		}
		cs := c.Ship()
		if cs == nil || cs.InTransition() || cs.Class() == sim.ClassFreighter || cs.Class() == sim.ClassFarcaster {
			continue
		}
		rng := c.Range(ship, contactRangeLimit)
		if cs.Target() == sim.Object(ship) {
			if threat == nil || cs.Class() > threat.Class() {
				threat, threatDist = cs, 0
			}
		} else if rng < threatDist {
			threat, threatDist = cs, rng
		}
		if t.variant == variantStarship {
			t.checkBugOut(cs, rng)
		}
	}

	//1.- A shooter already on sensors is no rumor.
	if rumor != nil && !rumor.InTransition() {
		if ship.FindContact(rumor) != nil {
			rumor = nil
			ai.ClearRumor()
		}
	} else {
		rumor = nil
		ai.ClearRumor()
	}
	ai.SetRumor(rumor)
	ai.SetThreat(threat)
	ai.SetThreatMissile(missile)
}

// findSupport picks the largest friendly contact at least our size while threatened.
func (t *TacticalAI) findSupport() {
	ai, ship := t.ai, t.ship
	threatened := ai.Threat() != nil
	if t.variant == variantStarship {
		threatened = t.threatLevel >= 0.01
	}
	if !threatened {
		ai.SetSupport(nil)
		return
	}
	var support *sim.Ship
	for _, c := range ship.Contacts() {
		cs := c.Ship()
		if cs == nil || cs == ship || c.IFF(ship) != ship.IFF() || cs.InTransition() {
			continue
		}
		if cs.Class() >= ship.Class() && (support == nil || cs.Class() > support.Class()) {
			support = cs
		}
	}
	ai.SetSupport(support)
}

// findFormationSlot sets the station offset for a wingman, in leader-frame
// units of the ship's diameter.
func (t *TacticalAI) findFormationSlot(f sim.Formation) {
	var dx, dy, dz float64
	s := float64(t.elementIndex - 1)
	idx := t.elementIndex
	if t.variant == variantFighter {
		dx, dz = 5*s, -5*s
		switch f {
		case sim.FormationDiamond:
			dx, dy, dz = slot(idx, dx, dy, dz, [3][3]float64{{12, -1, -10}, {-12, -1, -10}, {0, -2, -20}})
		case sim.FormationSpread:
			dx, dy, dz = slot(idx, dx, dy, dz, [3][3]float64{{15, 0, 0}, {-15, 0, 0}, {-30, 0, 0}})
		case sim.FormationBox:
			dx, dy, dz = slot(idx, dx, dy, dz, [3][3]float64{{15, 0, 0}, {0, -2, -20}, {15, -2, -20}})
		case sim.FormationTrail:
			dx, dy, dz = 0, s, -20*s
		}
	} else {
		dx, dz = 10*s, 10*s
		switch f {
		case sim.FormationDiamond:
			dx, dy, dz = slot(idx, dx, dy, dz, [3][3]float64{{10, 0, -12}, {-10, 0, -12}, {0, 0, -24}})
		case sim.FormationSpread:
			dx, dy, dz = slot(idx, dx, dy, dz, [3][3]float64{{15, 0, 0}, {-15, 0, 0}, {-30, 0, 0}})
		case sim.FormationBox:
			dx, dy, dz = slot(idx, dx, dy, dz, [3][3]float64{{15, 0, 0}, {0, -1, -15}, {15, -1, -15}})
		case sim.FormationTrail:
			dx, dy, dz = 0, 0, -15*s
		}
	}
	scale := t.ship.Radius() * 2
	t.ai.SetFormationDelta(geom.V(dx*scale, dy*scale, dz*scale))
}

// slot returns the fixed offset for wingmen two to four, or the fallback.
func slot(idx int, dx, dy, dz float64, table [3][3]float64) (float64, float64, float64) {
	if idx >= 2 && idx <= 4 {
		row := table[idx-2]
		return row[0], row[1], row[2]
	}
	return dx, dy, dz
}
