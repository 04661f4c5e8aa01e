package ai

import (
	"math"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

const bugOutDamageShare = 0.25

// aiValue is the combat worth of a ship: its design value plus its weapons.
func aiValue(s *sim.Ship) float64 {
	value := float64(s.Design().Value)
	for _, g := range s.Weapons() {
		value += float64(g.Value())
	}
	return value
}

// assessStrength sums range-weighted friendly and hostile combat worth.
func (t *TacticalAI) assessStrength() {
	ship := t.ship
	t.threatLevel = 0
	t.supportLevel = aiValue(ship) / threatCellSize
	for _, c := range ship.Contacts() {
		cs := c.Ship()
		if cs == nil || cs == ship {
			continue
		}
		basis := math.Max(c.Range(ship, contactRangeLimit), threatCellSize)
		value := aiValue(cs) / basis
		switch {
		case cs.IFF() == ship.IFF():
			t.supportLevel += value
		case ship.IFF() > 0 && cs.IFF() > 0:
			t.threatLevel += value
		case cs.IFF() > 1:
			//1.- Neutrals only fear ships outside the alliance.
			t.threatLevel += value
		}
	}
}

// checkBugOut jumps a carrier or SWACS out of the region when a capital threat
// closes in or the ship has taken a quarter of its design integrity in damage.
// The highest ranking escort element it commands is ordered to follow.
func (t *TacticalAI) checkBugOut(threat *sim.Ship, rng float64) {
	ship := t.ship
	if threat == nil || t.bugout {
		return
	}
	if c := ship.Class(); c != sim.ClassCarrier && c != sim.ClassSwacs {
		return
	}
	if e := ship.Element(); e != nil && e.ZoneLock() {
		return
	}
	if threat.Class() < sim.ClassDestroyer || threat.Class() > sim.ClassStation {
		return
	}
	sustained := t.initialIntegrity - ship.Integrity()
	if rng > bugOutRange && sustained < ship.Design().Integrity*bugOutDamageShare {
		return
	}

	s := ship.Sim()
	if s == nil {
		return
	}
	var dst *sim.Region
	if regions := s.Regions(); len(regions) > 1 {
		for tries := 0; tries < 10 && dst == nil; tries++ {
			dst = regions[t.ai.rng.Intn(len(regions))]
			if dst == ship.Region() || dst.IsAirspace() {
				dst = nil
			}
		}
	}
	if dst == nil {
		return
	}

	if drive := ship.QuantumDrive(); drive != nil {
		drive.SetDestination(dst, geom.Vec3{})
		drive.Engage()
	}
	if escort := t.highestEscort(); escort != nil {
		ship.OrderElementInfo(radio.QuantumTo, escort, dst.Name(), geom.Vec3{})
	}
	t.bugout = true
	t.ai.log.Info("bugging out",
		logging.String("ship", ship.Name()),
		logging.String("threat", threat.Name()),
		logging.String("region", dst.Name()))
}

// highestEscort returns the commanded element whose lead has the largest class.
func (t *TacticalAI) highestEscort() *sim.Element {
	own := t.ship.Element()
	if own == nil || t.ship.Sim() == nil {
		return nil
	}
	var escort *sim.Element
	var escortClass sim.Class
	for _, e := range t.ship.Sim().Elements() {
		if e == own || e.Commander() != own {
			continue
		}
		lead := e.Ship(1)
		if lead == nil {
			continue
		}
		if escort == nil || lead.Class() > escortClass {
			escort, escortClass = e, lead.Class()
		}
	}
	return escort
}
