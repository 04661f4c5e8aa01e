package sim

// WeaponGroup is a set of weapons that share a trigger, orders and target.
type WeaponGroup struct {
	name     string
	weapons  []*Weapon
	selected int
	trigger  bool
	ammo     int
	orders   FiringOrders
	control  ControlMode
	sweep    Sweep
}

// NewWeaponGroup builds an empty named group.
func NewWeaponGroup(name string) *WeaponGroup {
	return &WeaponGroup{name: name}
}

// Name returns the group name.
func (g *WeaponGroup) Name() string { return g.name }

// AddWeapon appends a weapon and adopts the group settings for it.
func (g *WeaponGroup) AddWeapon(w *Weapon) {
	if w == nil || g.Contains(w) {
		return
	}
	if len(g.weapons) == 0 {
		g.orders = w.orders
	}
	w.group = g.name
	g.weapons = append(g.weapons, w)
	g.CheckAmmo()
}

// Weapons returns the members in firing order.
func (g *WeaponGroup) Weapons() []*Weapon { return g.weapons }

// Contains reports membership.
func (g *WeaponGroup) Contains(w *Weapon) bool {
	for _, existing := range g.weapons {
		if existing == w {
			return true
		}
	}
	return false
}

// Weapon returns the n-th weapon or nil.
func (g *WeaponGroup) Weapon(n int) *Weapon {
	if n < 0 || n >= len(g.weapons) {
		return nil
	}
	return g.weapons[n]
}

// Selected returns the weapon that fires next in single-fire mode.
func (g *WeaponGroup) Selected() *Weapon { return g.Weapon(g.selected) }

// SelectWeapon makes weapon n the next to fire.
func (g *WeaponGroup) SelectWeapon(n int) {
	if n >= 0 && n < len(g.weapons) {
		g.selected = n
	}
}

// CycleWeapon advances the selection to the next weapon with ammunition.
func (g *WeaponGroup) CycleWeapon() {
	n := len(g.weapons)
	for i := 1; i <= n; i++ {
		next := (g.selected + i) % n
		if g.weapons[next].HasAmmo() {
			g.selected = next
			return
		}
	}
}

// Design returns the design of the first weapon or nil.
func (g *WeaponGroup) Design() *WeaponDesign {
	if len(g.weapons) == 0 {
		return nil
	}
	return g.weapons[0].design
}

// IsPrimary reports a gun or beam group.
func (g *WeaponGroup) IsPrimary() bool { d := g.Design(); return d != nil && d.Primary }

// IsMissile reports a secondary weapon group.
func (g *WeaponGroup) IsMissile() bool { d := g.Design(); return d != nil && !d.Primary }

// IsDrone reports a group launching drones.
func (g *WeaponGroup) IsDrone() bool { d := g.Design(); return d != nil && d.Drone }

// IsDecoy reports a decoy launcher group.
func (g *WeaponGroup) IsDecoy() bool { d := g.Design(); return d != nil && d.DecoyType != 0 }

// IsProbe reports a probe launcher group.
func (g *WeaponGroup) IsProbe() bool { d := g.Design(); return d != nil && d.Probe }

// IsBeam reports a beam group.
func (g *WeaponGroup) IsBeam() bool { d := g.Design(); return d != nil && d.Beam }

// Value is the design value times the remaining ammunition.
func (g *WeaponGroup) Value() int {
	d := g.Design()
	if d == nil {
		return 0
	}
	return d.Value * max(g.ammo, 1)
}

// Ammo returns the total remaining ammunition, -1 when any member is unlimited.
func (g *WeaponGroup) Ammo() int { return g.ammo }

// CheckAmmo recomputes the ammunition total.
func (g *WeaponGroup) CheckAmmo() {
	g.ammo = 0
	for _, w := range g.weapons {
		if w.unlimited {
			g.ammo = -1
			return
		}
		g.ammo += w.ammo
	}
}

// Trigger reports whether the group will fire on the next frame.
func (g *WeaponGroup) Trigger() bool { return g.trigger }

// SetTrigger arms or disarms the group trigger.
func (g *WeaponGroup) SetTrigger(t bool) { g.trigger = t }

// FiringOrders returns the group orders.
func (g *WeaponGroup) FiringOrders() FiringOrders { return g.orders }

// SetFiringOrders fans orders out to every member.
func (g *WeaponGroup) SetFiringOrders(o FiringOrders) {
	g.orders = o
	for _, w := range g.weapons {
		w.SetFiringOrders(o)
	}
}

// ControlMode returns the release mode.
func (g *WeaponGroup) ControlMode() ControlMode { return g.control }

// SetControlMode fans the release mode out to every member.
func (g *WeaponGroup) SetControlMode(m ControlMode) {
	g.control = m
	for _, w := range g.weapons {
		w.SetControlMode(m)
	}
}

// SetSweep fans the beam sweep out to every member.
func (g *WeaponGroup) SetSweep(s Sweep) {
	g.sweep = s
	for _, w := range g.weapons {
		w.SetSweep(s)
	}
}

// CanTarget reports whether any member can engage the class.
func (g *WeaponGroup) CanTarget(class Class) bool {
	for _, w := range g.weapons {
		if w.CanTarget(class) {
			return true
		}
	}
	return false
}

// SetTarget assigns the target to every member, subject to their class filters.
func (g *WeaponGroup) SetTarget(obj Object) {
	for _, w := range g.weapons {
		w.SetTarget(obj)
	}
}

// Target returns the target of the first member holding one.
func (g *WeaponGroup) Target() Object {
	for _, w := range g.weapons {
		if w.target != nil {
			return w.target
		}
	}
	return nil
}

// DropTarget clears every member target.
func (g *WeaponGroup) DropTarget() { g.SetTarget(nil) }

// SelectTarget lets each point-defense member pick its own target.
func (g *WeaponGroup) SelectTarget() {
	for _, w := range g.weapons {
		w.SelectTarget()
	}
}

// Status returns the best member status, SystemDestroyed when empty.
func (g *WeaponGroup) Status() SystemStatus {
	status := SystemDestroyed
	for _, w := range g.weapons {
		if w.status > status && w.status != SystemMaintenance {
			status = w.status
		}
	}
	return status
}

// PowerOn enables every member.
func (g *WeaponGroup) PowerOn() {
	for _, w := range g.weapons {
		w.enabled = true
	}
}

// PowerOff disables every member.
func (g *WeaponGroup) PowerOff() {
	for _, w := range g.weapons {
		w.enabled = false
	}
}

// Fire releases the group according to its control mode and returns the last shot.
func (g *WeaponGroup) Fire() *Shot {
	var shot *Shot
	switch {
	case g.control == ControlSalvo || g.IsPrimary():
		for _, w := range g.weapons {
			if s := w.Fire(); s != nil {
				shot = s
			}
		}
	default:
		w := g.Selected()
		if w == nil {
			return nil
		}
		shot = w.Fire()
		if shot != nil && g.control == ControlSingle {
			g.CycleWeapon()
		}
	}
	g.CheckAmmo()
	return shot
}

// ExecFrame steps every member and releases a pending trigger.
func (g *WeaponGroup) ExecFrame(seconds float64) {
	for _, w := range g.weapons {
		w.ExecFrame(seconds)
	}
	if g.trigger {
		g.trigger = false
		g.Fire()
	}
	g.CheckAmmo()
}
