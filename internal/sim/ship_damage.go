package sim

import (
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
)

// collisionThreshold is the closing speed below which contact is harmless.
const collisionThreshold = 10.0

// shieldRecharge is the fraction of full shields restored per second.
const shieldRecharge = 0.05

// InTransition reports a scripted orbit, skip or death sequence.
func (s *Ship) InTransition() bool { return s.transition != TransitionNone }

// Transition returns the current scripted state.
func (s *Ship) Transition() Transition { return s.transition }

// TransitionTime returns the seconds left in the current transition.
func (s *Ship) TransitionTime() float64 { return s.transitionTime }

// TransitionLocation returns the point the transition is heading for.
func (s *Ship) TransitionLocation() geom.Vec3 { return s.transitionLoc }

// IsDying reports a ship in its death spiral.
func (s *Ship) IsDying() bool {
	return s.transition == TransitionDeathSpiral || s.transition == TransitionDead
}

// IsDead reports a ship whose death sequence has finished.
func (s *Ship) IsDead() bool { return s.transition == TransitionDead || s.life == 0 }

// SetTransition enters a scripted state for the given number of seconds.
func (s *Ship) SetTransition(seconds float64, t Transition, loc geom.Vec3) {
	s.transition = t
	s.transitionTime = seconds
	s.transitionLoc = loc
}

// InflictDamage applies damage from a shot, splash or collision and returns the
// amount that reached the hull.
func (s *Ship) InflictDamage(damage float64, shot *Shot, source combat.HitSource) float64 {
	if s.invulnerable || s.integrity <= 0 || damage <= 0 {
		return 0
	}
	if s.sim != nil && s.sim.Paused() {
		return 0
	}
	hit := combat.Hit{Damage: damage, Source: source}
	if shot != nil {
		hit.Beam = shot.IsBeam()
	}
	result := combat.ResolveHit(hit, combat.Defense{
		ShieldDeflection: s.design.Shield,
		ShieldLevel:      s.shieldLevel,
		Integrity:        s.integrity,
	})
	if result.Deflected > 0 && s.design.Integrity > 0 {
		s.shieldLevel = clamp(s.shieldLevel-result.Deflected/s.design.Integrity, 0, 1)
		s.shieldVisible = true
	}
	s.integrity -= result.Applied
	if s.integrity < 0 {
		s.integrity = 0
	}
	if result.Lethal {
		fields := append([]logging.Field{logging.String("ship", s.name)}, result.LoggingFields()...)
		s.logger().Debug("lethal hit", fields...)
	}
	return result.Applied
}

// HitBy tests a shot against the hull. It returns whether the shot struck and the
// fraction of its damage that applies; overshooting missiles deal damage scaled by
// how close they passed.
func (s *Ship) HitBy(shot *Shot) (bool, float64) {
	if shot == nil || shot.Owner() == s || shot.IsFlak() || s.InTransition() || shot.Life() == 0 {
		return false, 0
	}
	loc := shot.Location()
	switch {
	case shot.IsBeam():
		if segmentDistance(s.loc, shot.Origin(), loc) < s.radius {
			return true, 1
		}
	case shot.IsMissile():
		d := loc.Distance(s.loc)
		if d < s.radius+shot.Radius() || segmentDistance(s.loc, shot.prevLoc, loc) < s.radius {
			return true, 1
		}
		lethal := shot.Design().LethalRadius + s.radius
		if shot.IsArmed() && shot.Overshot() && d < lethal {
			return true, clamp(1-d/lethal, 0, 1)
		}
	default:
		if loc.Distance(s.loc) > s.radius*2 && segmentDistance(s.loc, shot.prevLoc, loc) > s.radius*2 {
			return false, 0
		}
		if segmentDistance(s.loc, shot.prevLoc, loc) < s.radius {
			return true, 1
		}
	}
	return false, 0
}

// DeathSpiral starts the scripted destruction of the ship.
func (s *Ship) DeathSpiral() {
	if s.killer == nil || s.IsDying() {
		return
	}
	if s.iff < 100 && !s.IsGroundUnit() {
		s.SendRadio(radio.DistressCall, nil)
	}
	s.recordEvent(EventDestroyed, "")
	s.killer.BeginDeathSpiral()
	s.SetTransition(s.killer.DeathTime(), TransitionDeathSpiral, s.killer.DeathLocation())
	s.logger().Info("ship death spiral",
		logging.String("ship", s.name),
		logging.Float64("death_time", s.transitionTime))
}

// Destroy ends the ship. The region removes it at the end of its frame.
func (s *Ship) Destroy() {
	s.integrity = 0
	s.life = 0
	if s.transition == TransitionDeathSpiral {
		s.transition = TransitionDead
	}
	for _, g := range s.groups {
		for _, w := range g.Weapons() {
			w.DestroyBeams()
		}
	}
}

// DropOrbit starts the descent from a space region into the nearest terrain region.
func (s *Ship) DropOrbit() bool {
	if s.region == nil || s.region.IsAirspace() || s.InTransition() || s.sim == nil {
		return false
	}
	if s.sim.FindNearestTerrainRegion(s) == nil {
		return false
	}
	s.SetTransition(10, TransitionDropOrbit, s.loc.Add(s.Heading().Scale(10*s.design.VLimit)))
	return true
}

// MakeOrbit starts the climb from a terrain region into the nearest space region.
func (s *Ship) MakeOrbit() bool {
	if !s.IsAirborne() || s.InTransition() || s.sim == nil {
		return false
	}
	s.SetTransition(5, TransitionMakeOrbit, s.loc.Add(s.Heading().Scale(5*s.design.VLimit)))
	return true
}

// TimeSkip starts a narrative skip toward the next navpoint.
func (s *Ship) TimeSkip() bool {
	if !s.CanTimeSkip() {
		return false
	}
	s.SetTransition(2, TransitionTimeSkip, s.NextNavPoint().Location)
	return true
}

// CompleteTransition finishes the current scripted state.
func (s *Ship) CompleteTransition() {
	t := s.transition
	s.transitionTime = 0
	switch t {
	case TransitionDropOrbit:
		s.transition = TransitionNone
		dst := s.sim.FindNearestTerrainRegion(s)
		if dst == nil {
			return
		}
		loc := s.loc.Scale(0.2)
		loc.X += 6000 * float64(s.ElementIndex())
		loc.Y = terrainAltitudeLimit * 0.95
		loc = loc.Add(s.random().Vector(2e3))
		s.sim.RequestHyperJump(s, dst, loc, TransitionDropOrbit, nil, nil)
	case TransitionMakeOrbit:
		s.transition = TransitionNone
		dst := s.sim.FindNearestSpaceRegion(s)
		if dst == nil || s.region == nil {
			return
		}
		dist := 200e3 + 10e3*float64(s.ElementIndex())
		escape := dst.Location().Sub(s.region.Location()).Normalize()
		if escape.IsZero() {
			escape = s.Heading()
		}
		loc := escape.Scale(dist).Add(s.random().Vector(500))
		s.sim.RequestHyperJump(s, dst, loc, TransitionMakeOrbit, nil, nil)
	case TransitionTimeSkip:
		s.transition = TransitionNone
		if navpt := s.NextNavPoint(); navpt != nil && s.sim != nil {
			speed := s.design.VLimit
			if speed <= 0 {
				speed = 100
			}
			s.sim.ResolveTimeSkip(navpt.Location.Distance(s.loc) / speed)
		}
	case TransitionDeathSpiral:
		s.transition = TransitionDead
		if s.life != 0 {
			s.Destroy()
		}
	case TransitionDead:
	default:
		s.transition = TransitionNone
	}
}

// collide applies contact damage between the ship and another body.
func (s *Ship) collide(other Object) {
	if other == nil || s.collisionTimer > 0 || s.InTransition() {
		return
	}
	ob := other.Base()
	delta := ob.Location().Sub(s.loc)
	d := delta.Length()
	if d > s.radius+ob.Radius() || d == 0 {
		return
	}
	closing := s.vel.Sub(ob.Velocity()).Dot(delta.Scale(1 / d))
	damage := combat.CollisionDamage(closing, collisionThreshold, ob.Mass(), s.mass)
	s.collisionTimer = 1
	if damage <= 0 {
		return
	}
	s.recordEvent(EventCollision, ob.Name())
	s.InflictDamage(damage, nil, combat.HitCollision)
	if s.integrity < 1 {
		s.DeathSpiral()
	}
}
