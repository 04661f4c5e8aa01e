package ai

import (
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

const (
	attackRunRoom      = 8000.0
	staticStrikeGap    = 2500.0
	starshipStrikeGap  = 1000.0
	headOnPassGap      = 1250.0
	meleeGap           = 250.0
	fighterThreatRange = 20e3
	gunRunRange        = 10e3
	jinkDistance       = 2000.0
	noviceThrottle     = 70.0
	gunRunThrottle     = 50.0
)

// FighterAI flies small craft. On top of the shared navigator it sets up attack
// runs, breaks off passes before they turn into collisions and beams or jinks
// away from missiles and bandits.
type FighterAI struct {
	*ShipAI

	evading  bool
	jinkTime time.Duration
	jink     geom.Vec3
}

// NewFighterAI builds the director for a fighter, attack craft or LCA.
func NewFighterAI(ship *sim.Ship, level int) *FighterAI {
	f := &FighterAI{ShipAI: NewShipAI(ship, level), jinkTime: -time.Hour}
	f.pilot = f
	return f
}

// ExecFrame advances the director by one frame.
func (f *FighterAI) ExecFrame(seconds float64) {
	f.evading = false
	f.ShipAI.ExecFrame(seconds)
}

// Evading reports whether the last frame went into breaking away from a threat.
func (f *FighterAI) Evading() bool { return f.evading }

func (f *FighterAI) seekTarget() Steer {
	tgt := f.target
	if tgt == nil || f.patrol || f.dropTime > 0 || f.farcaster != nil ||
		(f.tooClose != 0 && f.tooClose == tgt.Base().ID()) {
		return f.ShipAI.seekTarget()
	}
	gap := f.distance - f.ship.Radius() - tgt.Base().Radius()

	//1.- Target behind: open the range before turning in for the run.
	if f.objective.Z < 0 {
		if gap < attackRunRoom {
			st := Steer{Yaw: -0.1, Pitch: -0.1}
			if f.objective.X > 0 {
				st.Yaw = 0.1
			}
			f.setInfo("extend")
			return st
		}
		return f.seek(f.objective)
	}

	//2.- Target ahead: pull off strikes and head-on passes short of the hull.
	if ts, ok := tgt.(*sim.Ship); ok {
		switch {
		case ts.IsStatic():
			if gap < staticStrikeGap {
				return f.flee(f.objective)
			}
		case ts.IsStarship():
			if gap < starshipStrikeGap {
				return f.flee(f.objective)
			}
		}
	}
	if tgt.Base().Velocity().Dot(f.ship.Velocity()) < 0 {
		if gap < headOnPassGap {
			return f.flee(f.objective)
		}
	} else if gap < meleeGap {
		return Steer{}
	}
	f.setInfo("seek target")
	return f.seek(f.objective)
}

func (f *FighterAI) evadeThreat() Steer {
	ship := f.ship
	if m := f.threatMissile; m != nil {
		f.evading = true
		f.SetTarget(nil)
		f.dropTime = 3 * float64(3-f.level)
		if f.decoyMissile != m && ship.DecoyGroup() != nil {
			ship.FireDecoy()
			f.decoyMissile = m
			m.Observe(f.ShipAI)
		}
		ship.SetDirectorInfo("evade missile")
		return f.seek(f.transform(f.beamPoint(m.Location(), m.Velocity())))
	}

	threat := f.threat
	if threat == nil || ship.RadioOrders().Action() == radio.FormUp {
		return Steer{}
	}
	if threat.IsStarship() {
		return f.evadeStarship(threat)
	}

	dist := threat.Location().Distance(ship.Location())
	if dist > fighterThreatRange {
		return Steer{}
	}
	f.evading = true

	//1.- Keep a target only while the bandit on our tail is not shooting.
	if f.target != nil {
		if f.target == sim.Object(threat) {
			if g := threat.PrimaryGroup(); g != nil && g.Trigger() {
				f.SetTarget(nil)
				f.dropTime = 3
			}
		} else if dist < fighterThreatRange/2 {
			f.SetTarget(nil)
			f.dropTime = 3
		}
	}

	p := f.transform(f.beamPoint(threat.Location(), threat.Velocity()))
	if f.target != nil {
		ship.SetDirectorInfo("evade and seek")
		return f.seek(p).Scale(0.25)
	}

	//2.- Jink around the beam line, faster for better pilots.
	rate := time.Duration(400+200*(3-f.level)) * time.Millisecond
	if now := f.now(); now-f.jinkTime > rate {
		f.jinkTime = now
		f.jink = f.rng.Vector(jinkDistance)
	}
	ship.SetDirectorInfo("random evade")
	return f.seek(p.Add(f.jink))
}

// evadeStarship flees the gun envelope of a capital ship, jinking one second in four.
func (f *FighterAI) evadeStarship(threat *sim.Ship) Steer {
	ship := f.ship
	perimeter := defensePerimeter(threat)
	dist := threat.Location().Distance(ship.Location())
	if dist > perimeter {
		return Steer{}
	}
	f.evading = true
	ship.SetDirectorInfo("evade starship")
	if f.target == sim.Object(threat) && dist < perimeter/4 {
		f.DropTarget(5)
	}
	if f.target != nil {
		return Steer{}
	}
	if int(ship.MissionClock())&3 != 3 {
		return f.flee(f.transform(threat.Location()))
	}
	return f.evade(f.now())
}

// beamPoint is the far point abeam a threat's track, on whichever side is farther.
func (f *FighterAI) beamPoint(loc, vel geom.Vec3) geom.Vec3 {
	beam := vel.Cross(geom.V(0, 1, 0)).Normalize().Scale(1e6)
	w1, w2 := loc.Add(beam), loc.Sub(beam)
	if w1.Distance(f.ship.Location()) > w2.Distance(f.ship.Location()) {
		return w1
	}
	return w2
}

func (f *FighterAI) throttleControl() {
	switch {
	case f.evading:
		f.applyThrottle(100)
	case f.target != nil && !f.patrol:
		throttle := 100.0
		switch {
		case f.level < 1:
			throttle = noviceThrottle
		case f.objective.Z > 0 && f.objective.Z < gunRunRange:
			throttle = gunRunThrottle
		}
		if f.accum.Brake > 0 {
			throttle *= 1 - f.accum.Brake
		}
		f.applyThrottle(throttle)
	default:
		f.ShipAI.throttleControl()
	}
}
