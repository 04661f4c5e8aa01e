package sim

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

// seekerDelay is how long a guided shot flies before its seeker goes live.
const seekerDelay = 1.0

// defaultSeekerAgility is the turn rate in rad/s for guided shots without one in their design.
const defaultSeekerAgility = 2.0

// Shot is a projectile, beam, missile or drone. Drones report KindDrone and can be
// targeted and destroyed; everything else reports KindShot.
type Shot struct {
	Body
	sim       *Sim
	design    *WeaponDesign
	owner     *Ship
	ownerName string
	iff       int
	charge    float64
	armed     bool
	origin    geom.Vec3
	prevLoc   geom.Vec3
	first     bool
	frame     float64
	born      time.Duration

	target    Object
	seekDelay float64
	lastRange float64
	overshot  bool
	hit       bool
}

// NewShot builds a shot flying along cam from loc. owner may be nil for ownerless ordnance.
func NewShot(loc geom.Vec3, cam geom.Camera, design *WeaponDesign, owner *Ship) *Shot {
	if design == nil {
		design = &WeaponDesign{}
	}
	kind := KindShot
	if design.Drone {
		kind = KindDrone
	}
	s := &Shot{design: design, charge: 1, first: true, lastRange: math.Inf(1)}
	s.Body = newBody(s, kind, fmt.Sprintf("Shot(%s)", design.Name))
	s.cam = cam
	s.MoveTo(loc)
	s.prevLoc = loc
	s.vel = cam.Vpn.Scale(design.Speed)
	s.radius = 10
	s.life = design.Life
	if s.life <= 0 {
		s.life = 1
	}
	s.integrity = design.Integrity
	if s.integrity <= 0 {
		s.integrity = 1
	}
	if design.Beam {
		s.origin = loc.Sub(cam.Vpn.Scale(design.Length))
	}
	if design.Primary || design.DecoyType != 0 || design.Guided == GuidanceNone {
		s.armed = true
	}
	if owner != nil {
		s.owner = owner
		s.ownerName = owner.Name()
		s.iff = owner.IFF()
		s.sim = owner.sim
		owner.Observe(s)
	}
	return s
}

// Design returns the weapon design that fired the shot.
func (s *Shot) Design() *WeaponDesign { return s.design }

// Owner returns the firing ship while it exists.
func (s *Shot) Owner() *Ship { return s.owner }

// OwnerName returns the firing ship name, kept after the owner is destroyed.
func (s *Shot) OwnerName() string { return s.ownerName }

// IFF returns the side of the firing ship.
func (s *Shot) IFF() int { return s.iff }

// IsPrimary reports a gun bolt or beam.
func (s *Shot) IsPrimary() bool { return s.design.Primary }

// IsBeam reports a beam.
func (s *Shot) IsBeam() bool { return s.design.Beam }

// IsMissile reports secondary ordnance.
func (s *Shot) IsMissile() bool { return !s.design.Primary && !s.design.Beam }

// IsDrone reports a targetable drone.
func (s *Shot) IsDrone() bool { return s.kind == KindDrone }

// IsDecoy reports a decoy drone.
func (s *Shot) IsDecoy() bool { return s.design.DecoyType != 0 }

// IsProbe reports a sensor probe.
func (s *Shot) IsProbe() bool { return s.design.Probe }

// IsFlak reports proximity-fused flak.
func (s *Shot) IsFlak() bool { return s.design.Flak }

// IsArmed reports whether the warhead is live.
func (s *Shot) IsArmed() bool { return s.armed }

// Origin returns the beam start point.
func (s *Shot) Origin() geom.Vec3 { return s.origin }

// Charge returns the fraction of the design charge the shot was fired with.
func (s *Shot) Charge() float64 { return s.charge }

// SetCharge sets the fired charge fraction. Beams scale their lifetime with it.
func (s *Shot) SetCharge(c float64) {
	s.charge = c
	if s.design.Beam {
		s.life = s.design.Life * c
	}
}

// SetFuse detonates the shot after the given seconds.
func (s *Shot) SetFuse(seconds float64) {
	if seconds > 0 && !s.design.Beam {
		s.life = seconds
	}
}

// SeekTarget hands the target to the seeker. The seeker goes live after a short delay.
func (s *Shot) SeekTarget(target Object) {
	if s.target != nil {
		if ship, ok := s.target.(*Ship); ok {
			ship.DropThreat(s)
		}
		s.target.Base().Ignore(s)
	}
	s.target = target
	s.seekDelay = seekerDelay
	s.lastRange = math.Inf(1)
	s.overshot = false
	if target == nil {
		return
	}
	target.Base().Observe(s)
	if ship, ok := target.(*Ship); ok && !s.design.Primary {
		ship.AddThreat(s)
	}
}

// Target returns the seeker target once the seeker is live.
func (s *Shot) Target() Object {
	if s.seekDelay > 0 {
		return nil
	}
	return s.target
}

// IsTracking reports whether the live seeker is homing on ship.
func (s *Shot) IsTracking(ship *Ship) bool {
	return ship != nil && s.Target() == Object(ship)
}

// ETA estimates the seconds until the shot reaches its seeker target. Shots without a
// live seeker target or not closing on it report +Inf.
func (s *Shot) ETA() float64 {
	tgt := s.Target()
	if tgt == nil {
		return math.Inf(1)
	}
	delta := tgt.Base().Location().Sub(s.loc)
	d := delta.Length()
	if d == 0 {
		return 0
	}
	closing := s.vel.Sub(tgt.Base().Velocity()).Dot(delta.Scale(1 / d))
	if closing <= 0 {
		return math.Inf(1)
	}
	return d / closing
}

// Overshot reports whether the seeker passed its target.
func (s *Shot) Overshot() bool { return s.overshot }

// IsHostileTo reports whether the shot would harm obj.
func (s *Shot) IsHostileTo(obj Object) bool {
	switch o := obj.(type) {
	case *Ship:
		return o.IsRogue() || (o.IFF() > 0 && o.IFF() != s.iff)
	case *Shot:
		return o.IFF() > 0 && o.IFF() != s.iff
	}
	return false
}

// ObjectDestroyed forgets a destroyed owner or target.
func (s *Shot) ObjectDestroyed(obj Object) {
	if s.owner != nil && obj == Object(s.owner) {
		s.owner = nil
	}
	if s.target == obj {
		s.target = nil
	}
}

// Damage returns the damage the shot deals on impact. Beams deal damage per second,
// faded toward the end of their length.
func (s *Shot) Damage() float64 {
	if s.design.Beam {
		fade := 1.0
		length := s.origin.Distance(s.loc)
		if length > s.design.MinRange && s.design.Length > s.design.MinRange {
			fade = (s.design.Length - length) / (s.design.Length - s.design.MinRange)
		}
		return s.design.Damage * s.charge * clamp(fade, 0, 1) * s.frame
	}
	return s.design.Damage * s.charge
}

// InflictDamage reduces drone integrity and returns the amount applied.
func (s *Shot) InflictDamage(damage float64) float64 {
	if damage <= 0 || s.integrity <= 0 {
		return 0
	}
	applied := math.Min(damage, s.integrity)
	s.integrity -= applied
	return applied
}

// SetBeamPoints stretches a beam between two points.
func (s *Shot) SetBeamPoints(from, to geom.Vec3) {
	if s.design.Beam {
		s.MoveTo(to)
		s.origin = from
	}
}

// Detonate ends the shot and queues its splash.
func (s *Shot) Detonate() {
	if s.life == 0 && s.hit {
		return
	}
	s.hit = true
	s.life = 0
	if s.sim != nil {
		s.sim.CreateSplashDamageFromShot(s)
	}
}

// ExecFrame flies the shot, runs the seeker and burns down its lifetime.
func (s *Shot) ExecFrame(seconds float64) {
	if s.sim != nil && s.sim.Paused() {
		return
	}
	s.frame = seconds

	if s.design.Beam {
		if !s.first && s.life > 0 {
			s.life = math.Max(0, s.life-seconds)
		}
		s.first = false
		return
	}

	s.prevLoc = s.loc
	if !s.first {
		if s.seekDelay > 0 {
			s.seekDelay -= seconds
		}
		if !s.armed && s.seekDelay <= 0 {
			s.armed = true
		}
		if s.target != nil && s.seekDelay <= 0 {
			s.checkDecoys()
			s.seek(seconds)
		}
		s.MoveTo(s.loc.Add(s.vel.Scale(seconds)))
		if s.life > 0 {
			s.life -= seconds
			if s.life <= 0 {
				s.life = 0
				if s.design.Flak && !s.hit {
					s.Detonate()
				}
			}
		}
	}
	s.first = false
}

// seek turns the shot toward its target, leading it for smart guidance, and fuses on overshoot.
func (s *Shot) seek(seconds float64) {
	tgt := s.target.Base()
	aim := tgt.Location()
	rng := aim.Distance(s.loc)

	//1.- Proximity fuse: detonate when the range starts growing inside the lethal radius.
	if s.armed && s.design.LethalRadius > 0 && rng < s.design.LethalRadius+tgt.Radius() && rng > s.lastRange {
		s.overshot = true
		s.Detonate()
		return
	}
	if rng > s.lastRange && s.vel.Dot(aim.Sub(s.loc)) < 0 {
		s.overshot = true
	}
	s.lastRange = rng

	speed := s.vel.Length()
	if speed <= 0 {
		speed = s.design.Speed
	}
	if s.design.Guided >= GuidanceSmart && speed > 0 {
		t := rng / speed
		aim = aim.Add(tgt.Velocity().Scale(t))
	}

	desired := aim.Sub(s.loc).Normalize()
	heading := s.vel.Normalize()
	if heading.IsZero() {
		heading = s.cam.Vpn
	}
	if desired.IsZero() {
		return
	}

	agility := s.design.Agility
	if agility <= 0 {
		agility = defaultSeekerAgility
	}
	maxTurn := agility * seconds
	angle := math.Acos(clamp(heading.Dot(desired), -1, 1))
	next := desired
	if angle > maxTurn {
		perp := desired.Sub(heading.Scale(heading.Dot(desired))).Normalize()
		next = heading.Scale(math.Cos(maxTurn)).Add(perp.Scale(math.Sin(maxTurn))).Normalize()
	}
	s.vel = next.Scale(speed)
	s.cam.LookAt(s.loc.Add(next))
}

// checkDecoys lets the target's decoys seduce the seeker.
func (s *Shot) checkDecoys() {
	ship, ok := s.target.(*Ship)
	if !ok || s.sim == nil || s.design.DecoyType != 0 {
		return
	}
	for _, decoy := range ship.ActiveDecoys() {
		if decoy.Life() == 0 {
			continue
		}
		elapsed := s.sim.GameTime() - decoy.born
		if s.sim.decoys.Resolve(s.sim.seed, shotKey(s), shotKey(decoy), elapsed, combat.DefaultSeductionWindow()) {
			s.SeekTarget(decoy)
			s.seekDelay = 0
			return
		}
	}
}

// shotKey names a shot in seeded decoy rolls.
func shotKey(s *Shot) string { return strconv.FormatUint(uint64(s.id), 10) }
