package sim

import (
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

// defaultSensorRange applies to designs that do not state one.
const defaultSensorRange = 50e3

// emissionFactor maps an EMCON level to the share of passive signature it emits.
func emissionFactor(emcon int) float64 {
	switch {
	case emcon <= 1:
		return 0.3
	case emcon == 2:
		return 0.6
	default:
		return 1
	}
}

// SensorRange returns the detection radius.
func (s *Ship) SensorRange() float64 {
	if s.design.SensorRange > 0 {
		return s.design.SensorRange
	}
	return defaultSensorRange
}

// ExecSensors runs one sensor sweep: it decays every contact, refreshes contacts for
// everything detected by the ship or its probe and drops contacts that aged out.
func (s *Ship) ExecSensors(seconds float64) {
	if s.region == nil {
		return
	}
	for _, c := range s.contacts {
		c.Reset(seconds)
	}

	s.sweep(s.loc, s.SensorRange(), false)
	if s.probe != nil && s.probe.Life() != 0 {
		probeRange := s.probe.Design().MaxRange
		if probeRange <= 0 {
			probeRange = s.SensorRange()
		}
		s.sweep(s.probe.Location(), probeRange, true)
	}

	kept := s.contacts[:0]
	for _, c := range s.contacts {
		if c.Subject() == nil || c.Age() <= 0 {
			if subj := c.Subject(); subj != nil {
				subj.Base().Ignore(c)
			}
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(s.contacts); i++ {
		s.contacts[i] = nil
	}
	s.contacts = kept

	if s.target != nil && s.FindContact(s.target) == nil {
		if _, isShip := s.target.(*Ship); isShip {
			s.DropTarget()
		}
	}
}

func (s *Ship) sweep(origin geom.Vec3, rng float64, probe bool) {
	active := s.emcon >= 3
	for _, other := range s.region.Ships() {
		if other == s || other.Life() == 0 || other.phase < PhaseLaunch {
			continue
		}
		d := other.Location().Distance(origin)
		if d > 2*rng {
			continue
		}
		var act, pas float64
		if active && d < rng {
			act = (1 - d/rng) * crossSection(other.design.ACS)
		}
		pas = emissionFactor(other.EMCON()) * (1 - d/(2*rng)) * crossSection(other.design.PCS)
		s.detect(other, pas, act, probe)
	}
	for _, shot := range s.region.Shots() {
		s.detectShot(shot, origin, rng, active, probe)
	}
	for _, drone := range s.region.Drones() {
		s.detectShot(drone, origin, rng, active, probe)
	}
}

func (s *Ship) detectShot(shot *Shot, origin geom.Vec3, rng float64, active, probe bool) {
	if shot.Life() == 0 || shot.Owner() == s || (shot.IsPrimary() && !shot.IsDrone()) {
		return
	}
	d := shot.Location().Distance(origin)
	if d > rng {
		return
	}
	pas := 1 - d/rng
	var act float64
	if active {
		act = 1 - d/rng
	}
	s.detect(shot, pas, act, probe)
}

func (s *Ship) detect(subject Object, pas, act float64, probe bool) {
	if pas < SensorThreshold && act < SensorThreshold {
		return
	}
	if c := s.FindContact(subject); c != nil {
		c.refresh(pas, act)
		if probe {
			c.SetProbe(true)
		}
		return
	}
	c := NewContact(subject, pas, act, s.gameClock())
	c.SetProbe(probe)
	c.UpdateTrack()
	s.contacts = append(s.contacts, c)
}

func (s *Ship) gameClock() func() time.Duration {
	if s.sim == nil {
		return nil
	}
	return s.sim.GameTime
}

func crossSection(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
