package ai

import (
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

const (
	fighterDroneETA       = 10.0
	fighterStarshipThreat = 50e3
	fighterDropshipThreat = 25e3
	fighterStaticThreat   = 30e3
	strikeIntegrityFloor  = 25.0
)

// selectFighterTarget picks the closest hostile small craft inside the commit
// range, or an inbound drone with enough time left to intercept it.
func (t *TacticalAI) selectFighterTarget() {
	ai, ship := t.ai, t.ship
	if ship.IFF() == 0 {
		return
	}
	var potential *sim.Ship

	var ward *sim.Ship
	if t.elementIndex > 1 {
		ward = ship.Leader()
	}

	targetDist := 1e15
	switch {
	case t.roe == ROEFlexible || t.roe == ROEAggressive:
		targetDist = ship.CommitRange()
	case t.roe < ROEFlexible:
		targetDist = 0.5 * ship.CommitRange()
	}

	classLimit := sim.ClassLCA
	if ship.Class() == sim.ClassAttack {
		classLimit = sim.ClassDestroyer
	}

	for _, c := range ship.Contacts() {
		cs := c.Ship()
		iff := c.IFF(ship)
		rogue := cs != nil && cs.IsRogue()
		if !rogue && (iff <= 0 || iff == ship.IFF() || iff == sim.IFFUnknown) {
			continue
		}

		if cs == nil || cs.Class() > classLimit || cs.InTransition() {
			continue
		}
		if !rogue {
			//1.- Self-defense only answers attackers, defense also covers the ward.
			theirs := cs.Target()
			if t.roe == ROESelfDefensive && theirs != sim.Object(ship) {
				continue
			}
			if t.roe == ROEDefensive && theirs != sim.Object(ship) && theirs != shipObject(ward) {
				continue
			}
		}
		d := ship.Location().Distance(cs.Location())
		if d < 0.75*targetDist {
			if t.roe == ROEFlexible && t.navpt != nil && t.navpt.Location.Distance(cs.Location()) > navTargetRange {
				continue
			}
			potential, targetDist = cs, d
		}
	}

	if potential != nil {
		ai.SetTarget(shipObject(potential))
		t.SelectSecondaryForTarget(potential)
		return
	}

	//2.- With no ship worth engaging, fall back to inbound drones.
	if shot := t.selectDroneTarget(ward, targetDist); shot != nil {
		ai.SetTarget(shotObject(shot))
		return
	}
	ai.SetTarget(nil)
}

// selectDroneTarget picks a hostile drone with at least fighterDroneETA seconds
// to run inside maxDist. Drones hunting the ward win over closer ones.
// Defensive rules only answer drones tracking the ship or its ward.
func (t *TacticalAI) selectDroneTarget(ward *sim.Ship, maxDist float64) *sim.Shot {
	ship := t.ship
	var best *sim.Shot
	bestDist := maxDist
	for _, c := range ship.Contacts() {
		shot := c.Shot()
		if shot == nil || !shot.IsDrone() || shot.Life() == 0 {
			continue
		}
		if iff := c.IFF(ship); iff <= 0 || iff == ship.IFF() || iff == sim.IFFUnknown {
			continue
		}
		if shot.ETA() < fighterDroneETA {
			continue
		}
		onWard := ward != nil && shot.IsTracking(ward)
		switch t.roe {
		case ROESelfDefensive:
			if !shot.IsTracking(ship) {
				continue
			}
		case ROEDefensive:
			if !shot.IsTracking(ship) && !onWard {
				continue
			}
		}
		d := ship.Location().Distance(shot.Location())
		if d >= maxDist {
			continue
		}
		switch {
		case best == nil:
			best, bestDist = shot, d
		case onWard && !best.IsTracking(ward):
			best, bestDist = shot, d
		case d < bestDist && (ward == nil || best.IsTracking(ward) == onWard):
			best, bestDist = shot, d
		}
	}
	return best
}

// secondariesFor lists the weapon groups with ammo that can engage tgt.
func (t *TacticalAI) secondariesFor(tgt *sim.Ship) []*sim.WeaponGroup {
	var out []*sim.WeaponGroup
	for _, g := range t.ship.Weapons() {
		if g.Ammo() != 0 && g.CanTarget(tgt.Class()) {
			out = append(out, g)
		}
	}
	return out
}

// SelectSecondaryForTarget cycles to the shortest-reaching, hardest-hitting missile
// group that still reaches tgt. With nothing that can hurt it the target is dropped.
func (t *TacticalAI) SelectSecondaryForTarget(tgt *sim.Ship) {
	if tgt == nil {
		return
	}
	ship := t.ship
	slot := winchesterFighter
	switch {
	case tgt.IsGroundUnit():
		slot = winchesterStrike
	case tgt.IsStatic():
		slot = winchesterStatic
	case tgt.IsStarship():
		slot = winchesterAssault
	}

	weps := t.secondariesFor(tgt)
	if len(weps) == 0 {
		t.winchester[slot] = true
		if primary := ship.PrimaryGroup(); primary == nil || !primary.CanTarget(tgt.Class()) {
			t.ai.DropTarget(3)
		}
		return
	}
	t.winchester[slot] = false

	rng := ship.Location().Distance(tgt.Location())
	var best *sim.WeaponGroup
	var bestRange, bestDamage float64
	for _, w := range weps {
		d := w.Design()
		if d == nil {
			continue
		}
		damage := d.Damage * float64(max(d.Ripple, 1))
		if best == nil {
			if d.MaxRange >= rng {
				best, bestRange, bestDamage = w, d.MaxRange, damage
			}
			continue
		}
		if d.MaxRange > rng && (d.MaxRange < bestRange || damage > bestDamage) {
			best, bestRange, bestDamage = w, d.MaxRange, damage
		}
	}

	current := ship.SecondaryGroup()
	if best == nil || current == best || !best.IsMissile() {
		return
	}
	if current == nil {
		ship.SelectSecondary(best)
		return
	}
	//1.- Cycle rather than jump so winchester bookkeeping on the ship stays intact.
	for range ship.SecondaryGroups() {
		if g := ship.CycleSecondary(); g == best || g == current {
			break
		}
	}
	if ship.SecondaryGroup() != best {
		ship.SelectSecondary(best)
	}
}

// findFighterThreat reports the closest threatening ship inside a class-dependent
// radius and any missile homing on us.
func (t *TacticalAI) findFighterThreat() {
	ai, ship := t.ai, t.ship
	now := ai.now()
	var threat *sim.Ship
	var missile *sim.Shot
	threatDist := 1e9

	for _, c := range ship.Contacts() {
		if !c.Threat(ship) || now-c.AcquisitionTime() <= t.reaction {
			continue
		}
		rng := c.Range(ship, contactRangeLimit)
		if shot := c.Shot(); shot != nil {
			missile = shot
			continue
		}
		cs := c.Ship()
		if cs == nil || rng >= threatDist || cs.InTransition() {
			continue
		}
		switch {
		case cs.IsStarship():
			if rng < fighterStarshipThreat {
				threat, threatDist = cs, rng
			}
		case cs.IsDropship():
			if rng < fighterDropshipThreat {
				threat, threatDist = cs, rng
			}
		case rng < fighterStaticThreat:
			threat, threatDist = cs, rng
		}
	}
	ai.SetThreat(threat)
	ai.SetThreatMissile(missile)
}

// isStrikeComplete reports a finished strike: the target is gone, or no healthy
// ship in the element has a working weapon that can still hit it. Only the lead
// may call it.
func (t *TacticalAI) isStrikeComplete(navpt *sim.Instruction) bool {
	if t.ship == nil || t.elementIndex > 1 {
		return false
	}
	target, ok := navpt.Target().(*sim.Ship)
	if !ok || target.Life() == 0 {
		return true
	}
	e := t.ship.Element()
	if e == nil {
		return true
	}
	for _, s := range e.Ships() {
		if s == nil || s.Integrity() < strikeIntegrityFloor {
			continue
		}
		for _, g := range s.Weapons() {
			if g.Ammo() == 0 || !g.CanTarget(target.Class()) {
				continue
			}
			for _, w := range g.Weapons() {
				if w.Status() > sim.SystemCritical {
					return false
				}
			}
		}
	}
	return true
}
