package sim

import "github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"

// Object is the closed set of entities a region can host:
// *Ship, *Shot, *Debris, *Asteroid and *Explosion.
type Object interface {
	Base() *Body
	ExecFrame(seconds float64)
}

// Observer is notified exactly once when an object it subscribed to is destroyed.
type Observer interface {
	ObjectDestroyed(obj Object)
}

// LifeForever marks objects that never expire on their own.
const LifeForever = -1

// Body carries the state shared by every simulated object.
type Body struct {
	id        uint32
	name      string
	kind      Kind
	self      Object
	region    *Region
	loc       geom.Vec3
	vel       geom.Vec3
	acc       geom.Vec3
	cam       geom.Camera
	radius    float64
	mass      float64
	life      float64
	integrity float64

	observers []Observer
	notified  bool
}

func newBody(self Object, kind Kind, name string) Body {
	return Body{self: self, kind: kind, name: name, cam: geom.NewCamera(), life: LifeForever}
}

// Base returns the shared body.
func (b *Body) Base() *Body { return b }

// ID returns the simulation-wide object identifier.
func (b *Body) ID() uint32 { return b.id }

// Name returns the display name.
func (b *Body) Name() string { return b.name }

// Kind returns the object discriminant.
func (b *Body) Kind() Kind { return b.kind }

// Region returns the hosting region or nil.
func (b *Body) Region() *Region { return b.region }

// Location returns the region-local position.
func (b *Body) Location() geom.Vec3 { return b.loc }

// Velocity returns the velocity in m/s.
func (b *Body) Velocity() geom.Vec3 { return b.vel }

// Acceleration returns the last frame's acceleration.
func (b *Body) Acceleration() geom.Vec3 { return b.acc }

// Cam returns the orientation frame.
func (b *Body) Cam() geom.Camera { return b.cam }

// Heading returns the forward unit vector.
func (b *Body) Heading() geom.Vec3 { return b.cam.Vpn }

// Radius returns the bounding radius in meters.
func (b *Body) Radius() float64 { return b.radius }

// Mass returns the mass in kilograms.
func (b *Body) Mass() float64 { return b.mass }

// Life returns the remaining lifetime in seconds, LifeForever, or zero when dead.
func (b *Body) Life() float64 { return b.life }

// SetLife overrides the remaining lifetime. Zero marks the object for removal.
func (b *Body) SetLife(life float64) { b.life = life }

// Integrity returns the remaining structural points.
func (b *Body) Integrity() float64 { return b.integrity }

// SetIntegrity overrides the structural points.
func (b *Body) SetIntegrity(v float64) { b.integrity = v }

// MoveTo relocates the object and its camera.
func (b *Body) MoveTo(p geom.Vec3) {
	b.loc = p
	b.cam.MoveTo(p)
}

// SetVelocity replaces the velocity.
func (b *Body) SetVelocity(v geom.Vec3) { b.vel = v }

// LookAt orients the object toward a region-local point.
func (b *Body) LookAt(p geom.Vec3) { b.cam.LookAt(p) }

// SetAbsoluteOrientation rebuilds the frame from roll, pitch and yaw applied to the identity orientation.
func (b *Body) SetAbsoluteOrientation(roll, pitch, yaw float64) {
	b.cam.Aim(geom.NewCamera(), yaw, pitch, roll)
}

// Orientation is the roll, pitch and yaw that recreate the current frame.
func (b *Body) Orientation() (roll, pitch, yaw float64) {
	fwd := b.cam.Vpn
	yaw = atan2(fwd.X, fwd.Z)
	pitch = asin(clamp(fwd.Y, -1, 1))
	return 0, pitch, yaw
}

// Observe subscribes o to the destruction of this object.
func (b *Body) Observe(o Observer) {
	if o == nil || b.notified {
		return
	}
	for _, existing := range b.observers {
		if existing == o {
			return
		}
	}
	b.observers = append(b.observers, o)
}

// Ignore cancels a subscription made through Observe.
func (b *Body) Ignore(o Observer) {
	for i, existing := range b.observers {
		if existing == o {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return
		}
	}
}

// Observers reports the current subscriber count.
func (b *Body) Observers() int { return len(b.observers) }

// notifyDestroyed informs every subscriber once and drops the subscriptions.
func (b *Body) notifyDestroyed() {
	if b.notified {
		return
	}
	b.notified = true
	observers := b.observers
	b.observers = nil
	for _, o := range observers {
		o.ObjectDestroyed(b.self)
	}
}

// Destroyed reports whether subscribers have already been told this object is gone.
func (b *Body) Destroyed() bool { return b.notified }

// Debris is a tumbling fragment left behind by a destroyed ship.
type Debris struct {
	Body
	drag float64
}

// NewDebris builds a fragment with the given mass, lifetime and drag.
func NewDebris(loc, vel geom.Vec3, mass, life, drag float64) *Debris {
	d := &Debris{drag: drag}
	d.Body = newBody(d, KindDebris, "debris")
	d.MoveTo(loc)
	d.vel = vel
	d.mass = mass
	d.radius = 10
	d.life = life
	d.integrity = mass / 10
	return d
}

// ExecFrame drifts the fragment and burns down its lifetime.
func (d *Debris) ExecFrame(seconds float64) {
	if d.drag > 0 {
		d.vel = d.vel.Scale(1 - clamp(d.drag*seconds, 0, 1))
	}
	d.MoveTo(d.loc.Add(d.vel.Scale(seconds)))
	if d.life > 0 {
		d.life -= seconds
		if d.life <= 0 {
			d.life = 0
		}
	}
}

// Asteroid is a massive static or slowly drifting rock.
type Asteroid struct {
	Body
	rockType int
}

// NewAsteroid builds an asteroid of the given type and mass.
func NewAsteroid(rockType int, loc geom.Vec3, mass float64) *Asteroid {
	a := &Asteroid{rockType: rockType}
	a.Body = newBody(a, KindAsteroid, "asteroid")
	a.MoveTo(loc)
	a.mass = mass
	a.radius = 500 + 100*float64(rockType)
	a.integrity = mass
	return a
}

// Type returns the rock model index.
func (a *Asteroid) Type() int { return a.rockType }

// ExecFrame drifts the asteroid.
func (a *Asteroid) ExecFrame(seconds float64) {
	a.MoveTo(a.loc.Add(a.vel.Scale(seconds)))
}

// Explosion is a short-lived visual effect that optionally follows its source.
type Explosion struct {
	Body
	expType int
	scale   float64
	source  Object
}

var explosionLife = map[int]float64{
	ExplosionShotBlast:      0.5,
	ExplosionHitSpark:       0.25,
	ExplosionSmallExplosion: 1.5,
	ExplosionLargeExplosion: 3,
	ExplosionLargeBurst:     2,
	ExplosionNukeFlash:      4,
	ExplosionQuantumFlash:   2,
	ExplosionHyperFlash:     2.5,
	ExplosionSmallFire:      6,
	ExplosionSmokeTrail:     8,
}

// NewExplosion builds an effect of the given type and scale.
func NewExplosion(expType int, loc, vel geom.Vec3, scale float64, source Object) *Explosion {
	e := &Explosion{expType: expType, scale: scale, source: source}
	e.Body = newBody(e, KindExplosion, "explosion")
	e.MoveTo(loc)
	e.vel = vel
	e.radius = 100 * scale
	e.life = explosionLife[expType]
	if e.life <= 0 {
		e.life = 1
	}
	return e
}

// Type returns the explosion type code.
func (e *Explosion) Type() int { return e.expType }

// Scale returns the effect scale.
func (e *Explosion) Scale() float64 { return e.scale }

// ExecFrame advances the effect and follows its source while the source lives.
func (e *Explosion) ExecFrame(seconds float64) {
	if e.source != nil {
		if e.source.Base().Life() == 0 {
			e.source = nil
		} else {
			e.vel = e.source.Base().Velocity()
		}
	}
	e.MoveTo(e.loc.Add(e.vel.Scale(seconds)))
	e.life -= seconds
	if e.life < 0 {
		e.life = 0
	}
}
