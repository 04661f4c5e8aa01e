package sim

import (
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// DeathCamLinger is how long the wreck remains in view after the final explosion.
const DeathCamLinger = 5.0

// Killer sequences the death of a ship: timed explosions while it tumbles, then the
// final blast, debris, area damage and removal.
type Killer struct {
	ship     *Ship
	time     float64
	loc      geom.Vec3
	expTime  float64
	expIndex int
	started  bool
	finished bool
}

func newKiller(ship *Ship) *Killer { return &Killer{ship: ship} }

// DeathTime returns the seconds left in the sequence.
func (k *Killer) DeathTime() float64 { return k.time }

// DeathLocation returns the point the death camera watches from.
func (k *Killer) DeathLocation() geom.Vec3 { return k.loc }

// Started reports whether BeginDeathSpiral ran.
func (k *Killer) Started() bool { return k.started }

// Finished reports whether the ship has been destroyed by the sequence.
func (k *Killer) Finished() bool { return k.finished }

func (k *Killer) explosionScale() float64 {
	if k.ship.design.ExplosionScale > 0 {
		return k.ship.design.ExplosionScale
	}
	return 1
}

// BeginDeathSpiral powers the ship down and plans its last moments.
func (k *Killer) BeginDeathSpiral() {
	ship := k.ship
	if ship == nil || k.started {
		return
	}
	k.started = true

	ship.PowerOff()
	for _, g := range ship.groups {
		for _, w := range g.Weapons() {
			w.DestroyBeams()
		}
	}
	ship.SetShieldVisible(false)

	design := ship.design
	rng := ship.random()
	timeToGo := design.DeathSpiralTime
	k.time = DeathCamLinger + timeToGo

	//1.- The death camera sits off the beam and above or below the wreck.
	cam := ship.Cam()
	k.loc = ship.Location().Add(ship.Velocity().Scale(timeToGo - 1))
	if rng.Chance(0.5) {
		k.loc = k.loc.Add(cam.Vrt.Scale(-3 * ship.radius))
	} else {
		k.loc = k.loc.Add(cam.Vrt.Scale(3 * ship.radius))
	}
	if rng.Chance(0.25) {
		k.loc = k.loc.Add(cam.Vup.Scale(-ship.radius))
	} else {
		k.loc = k.loc.Add(cam.Vup.Scale(2 * ship.radius))
	}

	if ship.IsGroundUnit() || (ship.IsAirborne() && ship.AltitudeAGL() < 2*ship.radius) {
		//2.- Crash in place.
		k.time = DeathCamLinger
		k.loc = ship.Location().Add(geom.V(6*ship.radius, 7*ship.radius, 8*ship.radius))
		ship.SetVelocity(geom.Vec3{})
	} else {
		ship.torque = rng.Vector(ship.mass / 7)
		k.expIndex = 0
		if n := len(design.Explosions); n > 0 {
			for i := 0; i < 5; i++ {
				k.expIndex = rng.Intn(n)
				if e := design.Explosions[k.expIndex]; e.Type > 0 && !e.Final {
					break
				}
			}
			spec := design.Explosions[k.expIndex]
			k.expTime = spec.Time
			if spec.Type > 0 {
				k.spawn(spec, ship)
			}
		}
	}

	ship.SetHelm(0, 0)
	ship.SetRoll(0)
	ship.SetThrottle(0)
	ship.logger().Debug("death spiral begun",
		logging.String("ship", ship.name),
		logging.Float64("time", k.time),
		logging.Int("explosion", k.expIndex))
}

func (k *Killer) spawn(spec ExplosionSpec, source Object) {
	ship := k.ship
	if ship.sim == nil {
		return
	}
	scale := spec.Scale
	if scale <= 0 {
		scale = k.explosionScale()
	}
	loc := ship.Location().Add(ship.Cam().ToWorld(spec.Loc))
	ship.sim.CreateExplosion(loc, ship.Velocity(), spec.Type, scale, source, ship.region)
}

// ExecFrame advances the explosion timeline and finishes the ship at the terminal time.
func (k *Killer) ExecFrame(seconds float64) {
	ship := k.ship
	if ship == nil || k.finished || !k.started {
		return
	}
	design := ship.design
	k.time -= seconds
	k.expTime -= seconds

	//1.- Cycle the timed explosions, wrapping at the first final entry.
	if n := len(design.Explosions); n > 0 && k.expTime < 0 {
		k.expIndex++
		if k.expIndex >= n || design.Explosions[k.expIndex].Final {
			k.expIndex = 0
		}
		spec := design.Explosions[k.expIndex]
		k.expTime = spec.Time
		if spec.Type > 0 && !spec.Final {
			k.spawn(spec, ship)
		}
	}

	if k.time >= DeathCamLinger {
		return
	}
	k.finished = true

	for _, spec := range design.Explosions {
		if spec.Final {
			k.spawn(spec, nil)
		}
	}
	k.throwDebris()

	if ship.sim != nil {
		if ship.sim.PlayerShip() == ship {
			ship.sim.SetPlayerAlert(false)
		}
		ship.sim.CreateSplashDamage(ship)
	}
	ship.Destroy()
}

func (k *Killer) throwDebris() {
	ship := k.ship
	sim := ship.sim
	if sim == nil {
		return
	}
	rng := ship.random()
	scale := k.explosionScale()
	cam := ship.Cam()
	for _, spec := range ship.design.Debris {
		loc := ship.Location().Add(cam.ToWorld(spec.Loc))
		vel := loc.Sub(ship.Location()).Normalize()
		if spec.Speed > 0 {
			vel = vel.Scale(spec.Speed)
		} else {
			vel = vel.Scale(200)
		}
		if ship.IsGroundUnit() {
			vel = vel.Scale(2)
			if vel.Y < 0 {
				vel.Y = -vel.Y
			}
		}
		for n := 0; n < spec.Count; n++ {
			debris := sim.CreateDebris(loc, vel.Add(ship.Velocity()), spec.Mass, spec.Life, spec.Drag, ship.region)
			if debris == nil {
				break
			}
			if n == 0 {
				debris.cam = cam
				debris.MoveTo(loc)
			}
			for _, fire := range spec.FireLocs {
				if fire.IsZero() {
					continue
				}
				fireLoc := debris.Location().Add(cam.ToWorld(fire))
				if spec.FireType > 0 {
					sim.CreateExplosion(fireLoc, ship.Velocity(), spec.FireType, scale, debris, ship.region)
				} else {
					sim.CreateExplosion(fireLoc, ship.Velocity(), ExplosionSmallFire, scale, debris, ship.region)
					sim.CreateExplosion(fireLoc, ship.Velocity(), ExplosionSmokeTrail, scale*0.25, debris, ship.region)
				}
			}
			if n+1 < spec.Count {
				if spec.Speed > 0 {
					vel = rng.Vector(spec.Speed * rng.Range(0.8, 1.2))
				} else {
					vel = rng.Vector(300 + rng.Range(0, 650))
				}
			}
		}
	}
}
