package sim

import (
	"math"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
)

// throttleSpool is the throttle change in percent per second.
const throttleSpool = 75.0

// defaultAgility is the turn rate in rad/s for designs without one.
const defaultAgility = 1.0

// ExecFrame advances the ship by one frame.
func (s *Ship) ExecFrame(seconds float64) {
	if s.phase < PhaseLaunch {
		s.dockFrame(seconds)
		return
	}
	if s.phase == PhaseLaunch || (s.phase == PhaseTakeoff && s.AltitudeAGL() > s.radius) {
		s.SetFlightPhase(PhaseActive)
	}

	//1.- Scripted states count down and play the death sequence.
	if s.transitionTime > 0 {
		s.transitionTime -= seconds
		if s.transitionTime <= 0 {
			s.CompleteTransition()
			return
		}
		if s.IsDying() && s.killer != nil {
			s.killer.ExecFrame(seconds)
		}
	}
	if s.collisionTimer > 0 {
		s.collisionTimer -= seconds
	}

	if s.IsStatic() {
		s.statFrame(seconds)
		return
	}

	s.checkFriendlyFire(seconds)
	s.execNavFrame()

	if s.IsAirborne() && s.loc.Y >= terrainAltitudeLimit {
		s.MakeOrbit()
	}

	if !s.InTransition() {
		s.ExecSensors(seconds)
		s.execThrottle(seconds)
	} else if s.transition == TransitionDropOrbit || s.transition == TransitionMakeOrbit || s.transition == TransitionTimeSkip {
		s.throttle = 100
	}

	if s.target != nil && s.target.Base().Life() == 0 {
		s.DropTarget()
	}

	s.execPhysics(seconds)

	//2.- Dropships close to a friendly carrier are recovered onto its deck.
	if s.IsDropship() && s.region != nil && !s.IsDying() {
		for _, carrier := range s.region.Carriers() {
			if carrier == s || carrier.Location().Distance(s.loc) > carrier.Radius()*1.5 {
				continue
			}
			if carrier.IFF() != s.iff && carrier.IFF() != 0 {
				continue
			}
			if s.wantsRecovery(carrier) && carrier.hangar.Recover(s) {
				return
			}
		}
	}

	s.execSystems(seconds)
}

func (s *Ship) wantsRecovery(carrier *Ship) bool {
	if carrier.hangar == nil {
		return false
	}
	switch s.orders.action {
	case radio.DockWith, radio.RTB:
		return s.orders.target == nil || s.orders.target == Object(carrier)
	}
	return s.phase == PhaseRecovery || s.phase == PhaseDocking
}

// execNavFrame completes the current navpoint when the ship arrives within ten radii of it.
func (s *Ship) execNavFrame() {
	navpt := s.NextNavPoint()
	if navpt == nil || s.ElementIndex() != 1 {
		return
	}
	if navpt.Region() != nil && navpt.Region() != s.region {
		return
	}
	if navpt.Location.Distance(s.loc) < 10*s.radius {
		if navpt.Status() == StatusPending {
			navpt.SetStatus(StatusActive)
		}
		navpt.SetStatus(StatusComplete)
	}
}

func (s *Ship) execThrottle(seconds float64) {
	spool := throttleSpool * seconds
	switch {
	case s.throttle < s.throttleRequest:
		s.throttle = math.Min(s.throttle+spool, s.throttleRequest)
	case s.throttle > s.throttleRequest:
		s.throttle = math.Max(s.throttle-spool, s.throttleRequest)
	}
}

// execPhysics runs the director, turns the ship and integrates its motion.
func (s *Ship) execPhysics(seconds float64) {
	if seconds <= 0 {
		return
	}
	if s.director != nil && !s.IsDying() && !s.InTransition() {
		s.director.ExecFrame(seconds)
	}

	if s.IsDying() || s.transition == TransitionDead {
		//1.- Wrecks tumble under the killer torque and drift.
		if !s.torque.IsZero() && s.mass > 0 {
			spin := s.torque.Scale(seconds / s.mass)
			s.cam.Yaw(spin.Y)
			s.cam.Pitch(spin.X)
			s.cam.Roll(spin.Z)
		}
		s.MoveTo(s.loc.Add(s.vel.Scale(seconds)))
		s.groundClamp()
		return
	}

	agility := s.design.Agility
	if agility <= 0 {
		agility = defaultAgility
	}
	s.cam.Yaw(s.helmYaw * agility * seconds)
	s.cam.Pitch(-s.helmPitch * agility * seconds)
	s.cam.Roll(s.helmRoll * agility * seconds)

	if s.transition == TransitionDropOrbit || s.transition == TransitionMakeOrbit {
		s.vel = s.Heading().Scale(s.design.VLimit)
	} else if s.design.VLimit > 0 {
		//2.- Drive toward the throttle-scaled top speed along the nose, limited by thrust.
		desired := s.Heading().Scale(s.design.VLimit * s.throttle / 100)
		dv := desired.Sub(s.vel)
		limit := s.design.Thrust * seconds
		if s.design.Thrust <= 0 {
			limit = s.design.VLimit * seconds
		}
		if n := dv.Length(); n > limit && n > 0 {
			dv = dv.Scale(limit / n)
		}
		s.acc = dv.Scale(1 / seconds)
		s.vel = s.vel.Add(dv)
	}
	s.MoveTo(s.loc.Add(s.vel.Scale(seconds)))
	s.groundClamp()
}

// groundClamp keeps ships above the terrain surface.
func (s *Ship) groundClamp() {
	if s.region == nil || s.region.terrain == nil {
		return
	}
	h := s.region.terrain.Height(s.loc.X, s.loc.Z)
	if s.loc.Y < h {
		loc := s.loc
		loc.Y = h
		s.MoveTo(loc)
		if s.vel.Y < 0 {
			s.vel.Y = 0
		}
	}
}

// execSystems charges weapons from the power plant and runs drives and decks.
func (s *Ship) execSystems(seconds float64) {
	if s.shieldLevel < 1 && s.design.Shield > 0 && s.powered {
		s.shieldLevel = math.Min(1, s.shieldLevel+shieldRecharge*seconds)
	}
	if s.shieldVisible && s.shieldLevel >= 1 {
		s.shieldVisible = false
	}

	var weapons []*Weapon
	for _, g := range s.groups {
		weapons = append(weapons, g.Weapons()...)
	}
	if s.powered && len(weapons) > 0 && s.design.Power > 0 {
		share := s.design.Power * seconds / float64(len(weapons))
		for _, w := range weapons {
			w.Distribute(share, seconds)
		}
	}
	for _, g := range s.groups {
		g.ExecFrame(seconds)
	}
	if s.farcaster != nil {
		s.farcaster.ExecFrame(seconds)
	}
	if s.drive != nil {
		s.drive.ExecFrame(seconds)
	}
	if s.hangar != nil {
		s.hangar.ExecFrame(seconds)
	}
}

// dockFrame keeps a docked ship's systems charged while it sits on the deck.
func (s *Ship) dockFrame(seconds float64) {
	if s.phase == PhaseDocking {
		s.throttle = 0
		s.throttleRequest = 0
	} else {
		s.execThrottle(seconds)
	}
	if s.carrier != nil {
		s.MoveTo(s.carrier.Location())
		s.vel = s.carrier.Velocity()
	}
	for _, g := range s.groups {
		g.CheckAmmo()
	}
}

// statFrame runs stations and ground installations, which never move under their own power.
func (s *Ship) statFrame(seconds float64) {
	if s.phase != PhaseActive {
		s.phase = PhaseActive
	}
	if s.IsGroundUnit() && s.region != nil && s.region.terrain != nil {
		loc := s.loc
		loc.Y = s.region.terrain.Height(loc.X, loc.Z)
		s.MoveTo(loc)
	}
	s.ExecSensors(seconds)
	if s.target != nil && s.target.Base().Life() == 0 {
		s.DropTarget()
	}
	if s.director != nil && !s.IsDying() {
		s.director.ExecFrame(seconds)
	}
	if s.IsDying() {
		return
	}
	s.execSystems(seconds)
}

// checkFriendlyFire blocks any weapon whose line of fire passes through a friendly
// ship or shot. The check runs about once a second.
func (s *Ship) checkFriendlyFire(seconds float64) {
	if len(s.groups) == 0 {
		return
	}
	s.ffCheckTimer -= seconds
	if s.ffCheckTimer > 0 {
		return
	}
	s.ffCheckTimer = 1 + s.random().Range(0, 0.5)

	var weapons []*Weapon
	for _, g := range s.groups {
		for _, w := range g.Weapons() {
			w.SetBlocked(false)
			weapons = append(weapons, w)
		}
	}
	for _, c := range s.contacts {
		var obj Object
		var limit float64
		switch {
		case c.Ship() != nil && c.Ship() != s && (c.Ship().IFF() == 0 || c.Ship().IFF() == s.iff):
			obj, limit = c.Ship(), 100e3
		case c.Shot() != nil && c.Shot().IFF() == s.iff:
			obj, limit = c.Shot(), 30e3
		default:
			continue
		}
		if obj.Base().Location().Distance(s.loc) > limit {
			continue
		}
		for _, w := range weapons {
			if !w.Blocked() && weaponBlockedBy(w, obj) {
				w.SetBlocked(true)
			}
		}
	}
}

func weaponBlockedBy(w *Weapon, obj Object) bool {
	tgt := w.Target()
	if tgt == nil || tgt == obj || w.design.Guided > GuidanceNone {
		return false
	}
	from := w.MuzzlePoint(0)
	to := tgt.Base().Location()
	p := obj.Base().Location()
	if p.Distance(from) > to.Distance(from) {
		return false
	}
	return segmentDistance(p, from, to) < obj.Base().Radius()*1.5
}
