package sim

import (
	"math"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

// FiringOrders selects how a weapon decides to fire.
type FiringOrders int

const (
	OrdersManual FiringOrders = iota
	OrdersAuto
	OrdersPointDefense
)

func (o FiringOrders) String() string {
	switch o {
	case OrdersManual:
		return "manual"
	case OrdersAuto:
		return "auto"
	case OrdersPointDefense:
		return "point-defense"
	default:
		return "unknown"
	}
}

// ControlMode selects how a weapon group releases its weapons.
type ControlMode int

const (
	ControlSingle ControlMode = iota
	ControlRipple
	ControlSalvo
)

// Sweep selects the beam sweep pattern against starships.
type Sweep int

const (
	SweepNone Sweep = iota
	SweepTight
	SweepWide
)

// Firing cones used to judge whether the target is centered.
const (
	centeredCone       = 10 * Degrees
	centeredConeManual = 30 * Degrees
	droneLockCone      = 10 * Degrees
	droneLockConeMan   = 20 * Degrees
)

// Weapon is one mounted weapon system with its ammunition, stored energy and aim solution.
type Weapon struct {
	design  *WeaponDesign
	ship    *Ship
	group   string
	mount   geom.Vec3
	muzzles []geom.Vec3

	ammo       int
	unlimited  bool
	energy     float64
	refire     float64
	barrel     int
	ripple     int
	orders     FiringOrders
	control    ControlMode
	sweep      Sweep
	status     SystemStatus
	enabled    bool
	locked     bool
	centered   bool
	firing     bool
	blocked    bool
	target     Object
	beams      []*Shot
	aimCam     geom.Camera
	objective  geom.Vec3
	objWorld   geom.Vec3
	oldAz      float64
	oldEl      float64
	aimTime    float64
	aimTimeSet bool
}

// NewWeapon mounts a weapon built from design at a ship-local position.
// A negative design ammo count means unlimited ammunition.
func NewWeapon(design *WeaponDesign, mount geom.Vec3) *Weapon {
	w := &Weapon{design: design, mount: mount, enabled: true, status: SystemNominal, orders: OrdersManual}
	if design == nil {
		w.design = &WeaponDesign{}
	}
	d := w.design
	w.muzzles = append([]geom.Vec3(nil), d.Muzzles...)
	for len(w.muzzles) < d.Barrels() {
		w.muzzles = append(w.muzzles, geom.Vec3{})
	}
	if d.Ammo < 0 {
		w.unlimited = true
	} else {
		w.ammo = d.Ammo
	}
	if d.Syncro {
		w.barrel = -1
	}
	if d.SelfAiming {
		w.orders = OrdersAuto
	}
	w.energy = w.Capacity()
	w.beams = make([]*Shot, d.Barrels())
	return w
}

// Design returns the static description.
func (w *Weapon) Design() *WeaponDesign { return w.design }

// Ship returns the owning ship.
func (w *Weapon) Ship() *Ship { return w.ship }

// Group returns the weapon group name.
func (w *Weapon) Group() string { return w.group }

// Ammo returns the remaining rounds. Unlimited weapons report -1.
func (w *Weapon) Ammo() int {
	if w.unlimited {
		return -1
	}
	return w.ammo
}

// HasAmmo reports whether another round is available.
func (w *Weapon) HasAmmo() bool { return w.unlimited || w.ammo > 0 }

// SetAmmo replaces the remaining rounds. Negative values are ignored.
func (w *Weapon) SetAmmo(a int) {
	if a >= 0 {
		w.ammo = a
		w.unlimited = false
	}
}

// Energy returns the stored charge.
func (w *Weapon) Energy() float64 { return w.energy }

// SetEnergy overrides the stored charge, clamped to [0, capacity].
func (w *Weapon) SetEnergy(e float64) { w.energy = clamp(e, 0, w.Capacity()) }

// Capacity is the largest charge the weapon can hold.
func (w *Weapon) Capacity() float64 {
	if w.design.Capacity > 0 {
		return w.design.Capacity
	}
	return w.design.Charge
}

// Refire returns the remaining refire delay in seconds.
func (w *Weapon) Refire() float64 { return w.refire }

// ActiveBarrel returns the next barrel to fire, -1 when all barrels fire together.
func (w *Weapon) ActiveBarrel() int { return w.barrel }

// FiringOrders returns the current orders.
func (w *Weapon) FiringOrders() FiringOrders { return w.orders }

// SetFiringOrders changes the firing orders.
func (w *Weapon) SetFiringOrders(o FiringOrders) {
	if o >= OrdersManual && o <= OrdersPointDefense {
		w.orders = o
	}
}

// SetControlMode changes the release mode.
func (w *Weapon) SetControlMode(m ControlMode) {
	if m >= ControlSingle && m <= ControlSalvo {
		w.control = m
	}
}

// SetSweep changes the beam sweep pattern.
func (w *Weapon) SetSweep(s Sweep) {
	if s >= SweepNone && s <= SweepWide {
		w.sweep = s
	}
}

// Enabled reports whether the weapon may fire.
func (w *Weapon) Enabled() bool { return w.enabled }

// SetEnabled toggles the weapon.
func (w *Weapon) SetEnabled(e bool) { w.enabled = e }

// Status returns the weapon system health.
func (w *Weapon) Status() SystemStatus { return w.status }

// SetStatus overrides the weapon system health.
func (w *Weapon) SetStatus(s SystemStatus) { w.status = s }

// Locked reports whether the last aim solution was inside the gimbal basket.
func (w *Weapon) Locked() bool { return w.locked }

// Centered reports whether the target sat inside the firing cone on the last aim.
func (w *Weapon) Centered() bool { return w.centered }

// Blocked reports whether a friendly blocks the line of fire.
func (w *Weapon) Blocked() bool { return w.blocked }

// SetBlocked flags the line of fire as obstructed.
func (w *Weapon) SetBlocked(b bool) { w.blocked = b }

// Target returns the current target or nil.
func (w *Weapon) Target() Object { return w.target }

// Objective returns the last aim point in the aim frame.
func (w *Weapon) Objective() geom.Vec3 { return w.objective }

// AimCam returns the current turret orientation.
func (w *Weapon) AimCam() geom.Camera { return w.aimCam }

// IsPrimary reports a gun or beam.
func (w *Weapon) IsPrimary() bool { return w.design.Primary }

// IsMissile reports a secondary weapon.
func (w *Weapon) IsMissile() bool { return !w.design.Primary }

// IsBeam reports a beam weapon.
func (w *Weapon) IsBeam() bool { return w.design.Beam }

// IsDrone reports a weapon that launches drones.
func (w *Weapon) IsDrone() bool { return w.design.Drone }

// IsDecoy reports a decoy launcher.
func (w *Weapon) IsDecoy() bool { return w.design.DecoyType != 0 }

// IsProbe reports a sensor probe launcher.
func (w *Weapon) IsProbe() bool { return w.design.Probe }

// Guided reports whether shots home on the target.
func (w *Weapon) Guided() bool { return w.design.Guided > GuidanceNone }

// CanTarget reports whether the weapon may engage objects of the given class.
func (w *Weapon) CanTarget(class Class) bool { return w.design.TargetType&class != 0 }

// ObjectDestroyed drops the target or a live beam when it disappears.
func (w *Weapon) ObjectDestroyed(obj Object) {
	if w.target == obj {
		w.target = nil
		return
	}
	for i, b := range w.beams {
		if b != nil && Object(b) == obj {
			w.beams[i] = nil
		}
	}
}

// SetTarget selects a target after applying the class filter. Self-targeting and plain
// shots are refused.
func (w *Weapon) SetTarget(obj Object) {
	if obj != nil {
		if w.ship != nil && obj == Object(w.ship) {
			return
		}
		switch t := obj.(type) {
		case *Ship:
			if t.Class()&w.design.TargetType == 0 {
				return
			}
		case *Shot:
			if t.Kind() != KindDrone || w.design.TargetType&ClassDrone == 0 {
				return
			}
		default:
			return
		}
	}
	if w.target != obj {
		if w.target != nil {
			w.target.Base().Ignore(w)
		}
		w.target = obj
		if obj != nil {
			obj.Base().Observe(w)
		}
	}
}

// Distribute charges the weapon with energy delivered by the ship's power plant.
func (w *Weapon) Distribute(delivered, seconds float64) {
	if w.ship != nil && w.ship.sim != nil && w.ship.sim.Paused() {
		return
	}
	w.energy = clamp(w.energy+delivered*1.25, 0, w.Capacity())
}

// ExecFrame counts down refire, runs point defense and turret tracking, and fires
// ripple continuations and automatic shots.
func (w *Weapon) ExecFrame(seconds float64) {
	if w.refire > 0 {
		w.refire -= seconds
	}
	w.locked = false
	w.centered = false
	if w.ship == nil {
		return
	}

	//1.- Point defense picks its own target every frame.
	if w.orders == OrdersPointDefense && w.enabled {
		w.SelectTarget()
	}

	//2.- A live beam with nothing to shoot at is held straight.
	if w.target == nil && w.liveBeam() {
		w.Aim()
		w.setBeamPoints(false)
		return
	}

	if w.design.SelfAiming {
		w.Track()
	} else {
		w.ZeroAim()
	}

	if w.ship.FireInhibited() {
		return
	}

	if w.liveBeam() {
		w.setBeamPoints(true)
		return
	}

	//3.- Ripple salvos keep releasing until the queued count is spent.
	if w.ripple > 0 {
		if w.Fire() != nil {
			w.ripple--
		}
		return
	}
	if !w.locked || w.blocked || !w.ship.IsHostileTo(w.target) {
		return
	}
	armed := w.unlimited || (w.target != nil && w.target.Base().Integrity() >= 1)
	inRange := w.objective.Length() < w.design.MaxRange
	switch {
	case w.orders == OrdersAuto && w.centered:
		if w.energy >= w.design.Charge && armed && inRange {
			w.Fire()
		}
	case w.orders == OrdersPointDefense:
		if w.energy >= w.design.MinCharge && armed && inRange {
			w.Fire()
		}
	}
}

func (w *Weapon) liveBeam() bool {
	for _, b := range w.beams {
		if b != nil {
			return true
		}
	}
	return false
}

// SelectTarget picks the closest lockable threatening drone, then the closest lockable
// armed hostile ship if it is much closer than any drone.
func (w *Weapon) SelectTarget() {
	var targ Object
	dist := 1e9

	if w.HasAmmo() && w.enabled && w.status > SystemCritical {
		w.ZeroAim()
		origin := w.MuzzlePoint(0)

		if w.design.TargetType&ClassDrone != 0 {
			for _, c := range w.ship.Contacts() {
				shot := c.Shot()
				if shot == nil || !c.Threat(w.ship) {
					continue
				}
				d := shot.Location().Distance(origin)
				if d > w.design.MinRange && d < w.design.MaxRange && d < dist {
					if _, _, ok := w.CanLockPoint(shot.Location()); ok {
						targ = shot
						dist = d
					}
				}
			}
		}

		dist *= w.ship.tuning().PointDefenseDerate
		for _, c := range w.ship.Contacts() {
			other := c.Ship()
			if other == nil {
				continue
			}
			hostile := other.IsRogue() || (other.IFF() > 0 && other.IFF() != w.ship.IFF())
			if !hostile || other.Class()&w.design.TargetType == 0 || !other.HasWeapons() {
				continue
			}
			d := other.Location().Distance(origin)
			if d < w.design.MaxRange && d < dist {
				if _, _, ok := w.CanLockPoint(other.Location()); ok {
					targ = other
					dist = d
				}
			}
		}
	}

	if !w.HasAmmo() || !w.enabled {
		w.SetTarget(nil)
		w.locked = false
		return
	}
	w.SetTarget(targ)
}

// Track updates the turret solution while the weapon can shoot, or rests it otherwise.
func (w *Weapon) Track() bool {
	if w.HasAmmo() && w.enabled && w.status > SystemCritical {
		w.firing = false
		w.Aim()
	} else {
		w.ZeroAim()
	}
	return w.locked
}

// MuzzlePoint returns the world position of barrel n.
func (w *Weapon) MuzzlePoint(n int) geom.Vec3 {
	if w.ship == nil {
		return w.mount
	}
	local := w.mount
	if n >= 0 && n < len(w.muzzles) {
		local = local.Add(w.muzzles[n])
	}
	return w.ship.Location().Add(w.ship.Cam().ToWorld(local))
}

// ZeroAim resets the aim frame to the ship frame at the first muzzle.
func (w *Weapon) ZeroAim() {
	if w.ship == nil {
		return
	}
	w.aimCam = w.ship.Cam()
	w.aimCam.MoveTo(w.MuzzlePoint(0))
}

// FindObjective computes the lead point for the current target in the aim frame.
func (w *Weapon) FindObjective() {
	w.ZeroAim()
	if w.target == nil {
		w.objective = geom.Vec3{}
		return
	}
	w.objWorld = w.target.Base().Location()
	if !w.design.SelfAiming {
		w.objective = geom.Vec3{}
		return
	}
	if s, ok := w.target.(*Ship); ok && s.IsGroundUnit() {
		w.objWorld = w.objWorld.Add(geom.V(0, 150, 0))
	}
	if !w.design.Beam && w.design.Speed > 0 {
		tgt := w.target.Base()
		distance := w.objWorld.Distance(w.MuzzlePoint(0))
		effVel := w.ship.Velocity().Add(w.aimCam.Vpn.Scale(w.design.Speed)).Sub(tgt.Velocity())
		if speed := effVel.Length(); speed > 0 {
			t := distance / speed
			w.objWorld = w.objWorld.
				Add(tgt.Velocity().Sub(w.ship.Velocity()).Scale(t)).
				Add(tgt.Acceleration().Scale(0.25 * t * t))
		}
	}
	w.objective = w.aimCam.Transform(w.objWorld)
}

// CanLockPoint computes the azimuth and elevation of a world point in the aim frame,
// clamped to the gimbal limits. ok is false when clamping was needed.
func (w *Weapon) CanLockPoint(p geom.Vec3) (az, el float64, ok bool) {
	az, el, _, ok = w.lockPoint(p)
	return az, el, ok
}

func (w *Weapon) lockPoint(p geom.Vec3) (az, el float64, local geom.Vec3, ok bool) {
	ok = true
	pt := w.aimCam.Transform(p)
	if math.Abs(pt.Z) < 0.1 {
		pt.Z = 0.1
	}
	az = math.Atan(pt.X / pt.Z)
	if pt.Z < 0 {
		az -= math.Pi
	}
	if az < -math.Pi {
		az += 2 * math.Pi
	}

	//1.- Rotate into the azimuth frame to read elevation.
	rotated := w.aimCam
	rotated.Yaw(az)
	pt = rotated.Transform(p)
	if math.Abs(pt.Z) < 0.1 {
		pt.Z = 0.1
	}
	el = math.Atan(pt.Y / pt.Z)
	local = pt

	rawAz, rawEl := az, el

	//2.- Clamp into the gimbal basket.
	d := w.design
	if az > d.AzMax {
		az, ok = d.AzMax, false
	} else if az < d.AzMin {
		az, ok = d.AzMin, false
	}
	if el > d.ElMax {
		el, ok = d.ElMax, false
	} else if el < d.ElMin {
		el, ok = d.ElMin, false
	}

	if w.IsDrone() && w.Guided() {
		cone := droneLockCone
		if w.orders == OrdersManual {
			cone = droneLockConeMan
		}
		if math.Abs(rawAz) < cone && math.Abs(rawEl) < cone {
			ok = true
		}
	}
	return az, el, local, ok
}

// Aim recomputes the lead solution, slews the turret, and updates locked and centered.
func (w *Weapon) Aim() {
	w.locked = false
	w.centered = false
	w.FindObjective()

	if w.target == nil {
		w.AimTurret(w.design.AzRest, w.design.ElRest)
		return
	}

	az, el, local, ok := w.lockPoint(w.objWorld)
	w.locked = ok
	w.objective = local

	//1.- Beams sweep across starships, ballistic weapons scatter randomly.
	if w.design.Beam {
		factor := 0.0
		if s, isShip := w.target.(*Ship); isShip && s.IsStarship() {
			factor = float64(w.sweep)
		}
		if factor > 0 && local.Z != 0 {
			factor *= math.Atan2(w.target.Base().Radius(), local.Z)
			for _, b := range w.beams {
				if b != nil {
					az += factor * w.design.Spread * math.Sin(b.Life()*0.4*math.Pi)
					el += factor * w.design.Spread * math.Sin(b.Life()*math.Pi) * 0.25
					break
				}
			}
		}
	} else if w.design.Spread > 0 {
		rng := w.ship.random()
		az += rng.Range(-w.design.Spread, w.design.Spread)
		el += rng.Range(-w.design.Spread, w.design.Spread)
	}

	w.AimTurret(az, el)

	//2.- Guided weapons lose lock beyond tracking range.
	if w.locked && w.Guided() {
		rng := w.objective.Length()
		if rng > w.design.MaxTrack && w.design.MaxTrack > 0 {
			w.locked = false
		} else if rng > w.design.MaxRange {
			if !w.firing || w.ship.random().Intn(4) != 0 {
				w.locked = false
			}
		}
	}

	if w.locked {
		tloc := w.aimCam.Transform(w.target.Base().Location())
		if tloc.Z > 1 {
			taz := math.Atan2(math.Abs(tloc.X), tloc.Z)
			tel := math.Atan2(math.Abs(tloc.Y), tloc.Z)
			cone := centeredCone
			if w.orders == OrdersManual {
				cone = centeredConeManual
			}
			w.centered = taz < cone && tel < cone
		}
	}
}

// AimTurret rotates the aim frame by az and el, bounded by the design slew rate.
func (w *Weapon) AimTurret(az, el float64) {
	now := 0.0
	if w.ship != nil && w.ship.sim != nil {
		now = w.ship.sim.GameTime().Seconds()
	}
	if w.design.SlewRate > 0 && w.aimTimeSet {
		maxTurn := w.design.SlewRate * (now - w.aimTime)
		if math.Abs(az-w.oldAz) > maxTurn {
			if az > w.oldAz {
				az = w.oldAz + maxTurn
			} else {
				az = w.oldAz - maxTurn
			}
		}
		if math.Abs(el-w.oldEl) > maxTurn {
			if el > w.oldEl {
				el = w.oldEl + maxTurn
			} else {
				el = w.oldEl - maxTurn
			}
		}
	}
	w.aimCam.Yaw(az)
	w.aimCam.Pitch(el)
	w.oldAz = az
	w.oldEl = el
	w.aimTime = now
	w.aimTimeSet = true
}

// Fire releases the next barrel, or every barrel for syncro designs. It returns nil
// without side effects when the weapon cannot fire.
func (w *Weapon) Fire() *Shot {
	if w.ship == nil || (w.ship.sim != nil && w.ship.sim.Paused()) {
		return nil
	}
	if w.ship.FireInhibited() {
		return nil
	}
	if w.ship.IsStarship() && w.target != nil && !w.centered {
		return nil
	}
	if w.barrel >= 0 && w.barrel < len(w.beams) && w.beams[w.barrel] != nil {
		return nil
	}
	if !w.HasAmmo() || !w.enabled || w.refire > 0 || w.energy <= w.design.MinCharge || w.status <= SystemCritical {
		return nil
	}

	w.refire = w.design.RefireDelay
	var shot *Shot
	if w.barrel < 0 {
		for i := 0; i < w.design.Barrels() && w.HasAmmo(); i++ {
			if s := w.FireBarrel(i); s != nil {
				shot = s
			}
		}
	} else {
		shot = w.FireBarrel(w.barrel)
		w.barrel++
		if w.barrel >= w.design.Barrels() {
			w.barrel = 0
			w.refire += w.design.SalvoDelay
		}
	}

	if w.design.Ripple > 0 && w.ripple <= 0 {
		w.ripple = w.design.Ripple - 1
	}
	if w.status != SystemNominal {
		w.refire *= 2
	}
	return shot
}

// FireBarrel launches one shot from barrel n.
func (w *Weapon) FireBarrel(n int) *Shot {
	if w.ship == nil || w.ship.sim == nil || w.ship.Region() == nil || n < 0 || n >= w.design.Barrels() {
		return nil
	}
	sim := w.ship.sim
	if sim.Paused() || !w.HasAmmo() {
		return nil
	}

	w.firing = true
	w.Aim()

	pos := w.MuzzlePoint(n)
	if w.design.Length > 0 {
		pos = pos.Add(w.aimCam.Vpn.Scale(w.design.Length))
	}
	baseVel := w.ship.Velocity()

	var shot *Shot
	switch {
	case w.design.Primary:
		//1.- Guns fire along the slewed aim frame.
		shot = sim.CreateShot(pos, w.aimCam, w.design, w.ship, w.ship.Region())
		if shot != nil {
			shot.SetVelocity(shot.Velocity().Add(baseVel))
		}
	case w.design.SelfAiming:
		shot = sim.CreateShot(pos, w.aimCam, w.design, w.ship, w.ship.Region())
		if shot != nil {
			shot.SetVelocity(baseVel.Add(w.aimCam.Vpn.Scale(w.design.Speed)))
		}
	default:
		//2.- Rail-launched ordnance leaves along the ship frame plus the eject impulse.
		rail := w.ship.Cam()
		rail.MoveTo(pos)
		shot = sim.CreateShot(pos, rail, w.design, w.ship, w.ship.Region())
		if shot != nil {
			shot.SetVelocity(baseVel.Add(rail.ToWorld(w.design.Eject)))
		}
	}
	if shot == nil {
		return nil
	}

	if !w.unlimited && w.ammo > 0 {
		w.ammo--
	}
	if w.Guided() && w.target != nil {
		shot.SeekTarget(w.target)
	}

	load := math.Min(w.design.Charge, w.energy)
	w.energy -= load
	if w.design.Charge > 0 {
		shot.SetCharge(load / w.design.Charge)
	}

	if w.target != nil && w.design.Flak && !w.Guided() {
		speed := shot.Velocity().Length()
		rng := w.target.Base().Location().Distance(shot.Location())
		if speed > 0 && rng > w.design.MinRange && rng < w.design.MaxRange {
			shot.SetFuse(rng / speed)
		}
	}

	if w.design.Beam {
		w.beams[n] = shot
		shot.Observe(w)
		w.setBeamPoints(true)
	}

	sim.recordShot(w.ship, w.design)
	return shot
}

// DestroyBeams ends every live beam.
func (w *Weapon) DestroyBeams() {
	for i, b := range w.beams {
		if b != nil {
			b.SetLife(0)
			w.beams[i] = nil
		}
	}
}

func (w *Weapon) setBeamPoints(aim bool) {
	for i, b := range w.beams {
		if b == nil {
			continue
		}
		from := w.MuzzlePoint(i)
		to := from.Add(w.aimCam.Vpn.Scale(w.design.Length))
		if aim && w.target != nil && w.locked {
			to = w.target.Base().Location()
			if d := to.Distance(from); d > w.design.Length {
				to = from.Add(to.Sub(from).Normalize().Scale(w.design.Length))
			}
		}
		b.SetBeamPoints(from, to)
	}
}
