package ai

import (
	"math"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

const (
	starshipMinAvoidSpeed = 25.0
	starshipBrakeRange    = 50e3
	starshipClosingLimit  = 300.0
	starshipBrakeThrottle = 30.0
	escortForwardArc      = 45 * sim.Degrees
	pointDefenseInterval  = 3500 * time.Millisecond
)

// StarshipAI flies capital ships. Helm pitch is limited, pursuit slows down before
// overrunning the target and fire control hands each weapon group the orders that
// suit it.
type StarshipAI struct {
	*ShipAI

	pointDefenseTime time.Duration
	tgtPointDefense  bool
}

// NewStarshipAI builds the director for a corvette or larger hull.
func NewStarshipAI(ship *sim.Ship, level int) *StarshipAI {
	s := &StarshipAI{ShipAI: NewShipAI(ship, level), pointDefenseTime: -pointDefenseInterval}
	s.pilot = s
	return s
}

// Slow hulls leave collision avoidance to the other party.
func (s *StarshipAI) avoidCollision() Steer {
	if s.ship.Velocity().Length() < starshipMinAvoidSpeed {
		return Steer{}
	}
	return s.ShipAI.avoidCollision()
}

// helmControl holds the deck level unless something needs the nose. Capital
// ships never bank into turns.
func (s *StarshipAI) helmControl() {
	pitch := s.accum.Pitch
	busy := s.other != nil || s.target != nil || s.ship.Ward() != nil || s.navpt != nil ||
		s.patrol || s.farcaster != nil || s.elementIndex > 1 ||
		(s.threat != nil && s.threat.Class() >= s.ship.Class())
	if !busy {
		pitch = 0
	}
	s.ship.SetHelm(s.accum.Yaw, pitch)
	s.ship.SetRoll(0)
}

func (s *StarshipAI) throttleControl() {
	ship := s.ship
	var bigThreat *sim.Ship
	if s.threat != nil && s.threat.Class() >= ship.Class() {
		bigThreat = s.threat
	}

	switch ward := ship.Ward(); {
	case s.target != nil || bigThreat != nil:
		throttle := 100.0
		if s.target != nil && s.distance < starshipBrakeRange {
			dir := s.target.Base().Location().Sub(ship.Location()).Normalize()
			if ship.Velocity().Dot(dir) > starshipClosingLimit {
				throttle = starshipBrakeThrottle
			}
		}
		s.applyThrottle(throttle * (1 - s.accum.Brake))
	case ward != nil:
		//1.- Escorts match the ward's speed a point at a time.
		speed := ward.Velocity().Length()
		own := ship.Velocity().Dot(ship.Heading())
		throttle := s.oldThrottle
		switch {
		case speed <= 0:
			throttle = 0
		case own > speed:
			throttle--
		case own < speed-10:
			throttle++
		}
		s.applyThrottle(throttle)
	default:
		s.ShipAI.throttleControl()
	}
}

func (s *StarshipAI) fireControl() {
	ship := s.ship

	//1.- Escorts are anti-air platforms: forward guns engage, the rest cover the fleet.
	if isEscortClass(ship.Class()) {
		for _, g := range ship.Weapons() {
			for _, w := range g.Weapons() {
				if math.Abs(w.Design().AzRest) < escortForwardArc {
					w.SetFiringOrders(sim.OrdersAuto)
					w.SetTarget(s.target)
				} else {
					w.SetFiringOrders(sim.OrdersPointDefense)
				}
			}
		}
		return
	}

	for _, g := range ship.Weapons() {
		d := g.Design()
		if d == nil {
			continue
		}
		switch {
		case d.TargetType&sim.ClassDropships != 0:
			g.SetFiringOrders(sim.OrdersPointDefense)
		case g.IsDrone():
			//2.- Torpedoes wait for a shot the target cannot swat down.
			g.SetFiringOrders(sim.OrdersManual)
			g.SetTarget(s.target)
			if s.target == nil || s.target.Base().Region() != ship.Region() {
				continue
			}
			rng := s.target.Base().Location().Distance(ship.Location())
			if (rng < 0.9*d.MaxRange && !s.targetPointDefense()) || rng < 0.5*d.MaxRange {
				g.SetFiringOrders(sim.OrdersAuto)
			}
		default:
			g.SetFiringOrders(sim.OrdersAuto)
			g.SetTarget(s.target)
			g.SetSweep(sim.SweepTight)
		}
	}
}

// targetPointDefense reports whether the target has anti-missile guns bearing on
// us. Only aces look, and the answer is cached for a few seconds.
func (s *StarshipAI) targetPointDefense() bool {
	now := s.now()
	if now-s.pointDefenseTime < pointDefenseInterval {
		return s.tgtPointDefense
	}
	s.tgtPointDefense = false
	tgt, ok := s.target.(*sim.Ship)
	if !ok || s.level < 2 || !tgt.IsStarship() {
		return false
	}
	s.pointDefenseTime = now

	toUs := s.ship.Location().Sub(tgt.Location())
	for _, g := range tgt.Weapons() {
		if !g.CanTarget(sim.ClassDrone) {
			continue
		}
		for _, w := range g.Weapons() {
			if w.Status() >= sim.SystemDegraded && w.AimCam().Vpn.Dot(toUs) > 0 {
				s.tgtPointDefense = true
				return true
			}
		}
	}
	return false
}
