package sim

import (
	"math"
	"strings"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
)

// roguePoints is the friendly-fire count at which a ship is treated as hostile by everyone.
const roguePoints = 50

// terrainAltitudeLimit is the altitude at which an airborne ship climbs into orbit.
const terrainAltitudeLimit = 35e3

// Ship is a crewed or automated vessel: fighters, starships, stations and ground units.
type Ship struct {
	Body
	sim    *Sim
	design *ShipDesign
	regNum string

	iff     int
	emcon   int
	ffCount int
	element *Element

	groups    []*WeaponGroup
	primary   *WeaponGroup
	secondary *WeaponGroup
	decoys    *WeaponGroup
	probes    *WeaponGroup

	activeDecoys []*Shot
	probe        *Shot
	threats      []*Shot

	throttle        float64
	throttleRequest float64
	helmYaw         float64
	helmPitch       float64
	helmRoll        float64
	autoNav         bool
	phase           FlightPhase
	fireInhibit     bool
	powered         bool
	invulnerable    bool

	transition     Transition
	transitionTime float64
	transitionLoc  geom.Vec3
	killer         *Killer
	torque         geom.Vec3

	director     Director
	directorInfo string

	contacts []*Contact
	target   Object
	ward     *Ship
	orders   RadioOrders

	shieldLevel   float64
	shieldVisible bool

	farcaster *Farcaster
	drive     *QuantumDrive
	hangar    *Hangar
	carrier   *Ship
	warpFOV   float64

	launchPoint    *Instruction
	ffCheckTimer   float64
	collisionTimer float64
}

// NewShip builds a ship from its design. Weapons are grouped by mount group, then by
// weapon group, then by weapon name.
func NewShip(design *ShipDesign, name string, iff int) *Ship {
	if design == nil {
		design = &ShipDesign{}
	}
	s := &Ship{design: design, iff: iff, emcon: 3, phase: PhaseActive, powered: true, throttle: 0, warpFOV: 1}
	s.Body = newBody(s, KindShip, name)
	s.regNum = name
	s.radius = design.Radius
	if s.radius <= 0 {
		s.radius = 10
	}
	s.mass = design.Mass
	s.integrity = design.Integrity
	if s.integrity <= 0 {
		s.integrity = 1
	}
	if design.Shield > 0 {
		s.shieldLevel = 1
	}
	s.killer = newKiller(s)

	for _, mount := range design.Weapons {
		if mount.Weapon == nil {
			continue
		}
		key := mount.Group
		if key == "" {
			key = mount.Weapon.Group
		}
		if key == "" {
			key = mount.Weapon.Name
		}
		w := NewWeapon(mount.Weapon, mount.Loc)
		w.ship = s
		s.findOrAddGroup(key).AddWeapon(w)
	}
	for _, g := range s.groups {
		switch {
		case g.IsDecoy():
			if s.decoys == nil {
				s.decoys = g
			}
		case g.IsProbe():
			if s.probes == nil {
				s.probes = g
			}
		case g.IsPrimary():
			if s.primary == nil {
				s.primary = g
			}
		case g.IsMissile():
			if s.secondary == nil {
				s.secondary = g
			}
		}
	}

	if design.Farcaster {
		s.farcaster = newFarcaster(s)
	}
	if design.QuantumDrive != DriveNone {
		s.drive = newQuantumDrive(s, design.QuantumDrive)
	}
	if design.HangarSlots > 0 {
		s.hangar = newHangar(s, design.HangarSlots)
	}
	return s
}

func (s *Ship) findOrAddGroup(name string) *WeaponGroup {
	for _, g := range s.groups {
		if strings.EqualFold(g.Name(), name) {
			return g
		}
	}
	g := NewWeaponGroup(name)
	s.groups = append(s.groups, g)
	return g
}

// Sim returns the owning simulation or nil before insertion.
func (s *Ship) Sim() *Sim { return s.sim }

// Design returns the static ship design.
func (s *Ship) Design() *ShipDesign { return s.design }

// Registry returns the registration code.
func (s *Ship) Registry() string { return s.regNum }

// Class returns the design classification.
func (s *Ship) Class() Class { return s.design.Class }

// IFF returns the side code.
func (s *Ship) IFF() int { return s.iff }

// SetIFF changes side.
func (s *Ship) SetIFF(iff int) { s.iff = iff }

// EMCON returns the emission control level, 1 through 3.
func (s *Ship) EMCON() int { return s.emcon }

// SetEMCON clamps and sets the emission control level.
func (s *Ship) SetEMCON(e int) {
	if e < 1 {
		e = 1
	}
	if e > 3 {
		e = 3
	}
	s.emcon = e
}

// Element returns the flight this ship belongs to.
func (s *Ship) Element() *Element { return s.element }

// ElementIndex is the one-based position in the element, zero when unattached.
func (s *Ship) ElementIndex() int {
	if s.element == nil {
		return 0
	}
	return s.element.IndexOf(s)
}

// Leader returns the element lead or the ship itself.
func (s *Ship) Leader() *Ship {
	if s.element != nil {
		if lead := s.element.Ship(1); lead != nil {
			return lead
		}
	}
	return s
}

// IsStatic reports stations, starbases and ground installations.
func (s *Ship) IsStatic() bool { return s.design.Class >= ClassStation }

// IsGroundUnit reports ground installations and vehicles.
func (s *Ship) IsGroundUnit() bool { return s.design.Class&ClassGroundUnits != 0 }

// IsStarship reports capital ships.
func (s *Ship) IsStarship() bool { return s.design.Class&ClassStarships != 0 }

// IsDropship reports fighters and other craft that can land on carriers.
func (s *Ship) IsDropship() bool { return s.design.Class&ClassDropships != 0 }

// IsAirborne reports flight inside a terrain region.
func (s *Ship) IsAirborne() bool { return s.region != nil && s.region.IsAirspace() }

// AltitudeAGL returns the height above the terrain, or above zero in space.
func (s *Ship) AltitudeAGL() float64 {
	if s.region != nil && s.region.terrain != nil {
		return s.loc.Y - s.region.terrain.Height(s.loc.X, s.loc.Z)
	}
	return s.loc.Y
}

// IsRogue reports a ship that has accumulated enough friendly fire to be engaged by its own side.
func (s *Ship) IsRogue() bool { return s.ffCount >= roguePoints }

// FriendlyFire returns the accumulated friendly-fire count.
func (s *Ship) FriendlyFire() int { return s.ffCount }

// SetRogue forces or clears rogue status.
func (s *Ship) SetRogue(r bool) {
	was := s.IsRogue()
	if r {
		s.ffCount = 1000
	} else {
		s.ffCount = 0
	}
	s.logRogue(was)
}

// IncFriendlyFire adds friendly-fire points.
func (s *Ship) IncFriendlyFire(points int) {
	if points <= 0 {
		return
	}
	was := s.IsRogue()
	s.ffCount += points
	s.logRogue(was)
}

func (s *Ship) logRogue(was bool) {
	if was == s.IsRogue() {
		return
	}
	if s.IsRogue() {
		s.logger().Info("ship made rogue", logging.String("ship", s.name), logging.Int("ff_count", s.ffCount))
	} else {
		s.logger().Info("ship no longer rogue", logging.String("ship", s.name))
	}
}

// IsHostileTo applies the side rules: rogues are hostile to everyone, neutral ships
// only fear sides above one, and everyone else fears any other non-neutral side.
func (s *Ship) IsHostileTo(obj Object) bool {
	if obj == nil {
		return false
	}
	if s.IsRogue() {
		return true
	}
	var other int
	switch o := obj.(type) {
	case *Ship:
		if o.IsRogue() {
			return true
		}
		other = o.IFF()
	case *Shot:
		other = o.IFF()
	default:
		return false
	}
	if s.iff == 0 {
		return other > 1
	}
	return other > 0 && other != s.iff
}

// Throttle returns the current throttle setting in percent.
func (s *Ship) Throttle() float64 { return s.throttle }

// SetThrottle requests a throttle setting in percent.
func (s *Ship) SetThrottle(pct float64) { s.throttleRequest = clamp(pct, 0, 100) }

// Helm returns the current yaw and pitch demands.
func (s *Ship) Helm() (yaw, pitch float64) { return s.helmYaw, s.helmPitch }

// SetHelm sets yaw and pitch demands in [-1, 1]. Positive yaw turns right and positive pitch lowers the nose.
func (s *Ship) SetHelm(yaw, pitch float64) {
	s.helmYaw = clamp(yaw, -1, 1)
	s.helmPitch = clamp(pitch, -1, 1)
}

// SetRoll sets the roll demand in [-1, 1].
func (s *Ship) SetRoll(roll float64) { s.helmRoll = clamp(roll, -1, 1) }

// AutoNav reports whether the autopilot is flying.
func (s *Ship) AutoNav() bool { return s.autoNav }

// SetAutoNav engages or releases the autopilot.
func (s *Ship) SetAutoNav(on bool) { s.autoNav = on }

// FlightPhase returns the launch and recovery state.
func (s *Ship) FlightPhase() FlightPhase { return s.phase }

// SetFlightPhase changes the launch and recovery state.
func (s *Ship) SetFlightPhase(p FlightPhase) {
	if p == PhaseActive && s.phase < PhaseActive {
		s.recordEvent(EventLaunch, "")
	}
	s.phase = p
}

// SetFireInhibit holds all weapons.
func (s *Ship) SetFireInhibit(v bool) { s.fireInhibit = v }

// FireInhibited reports whether weapons are held this frame.
func (s *Ship) FireInhibited() bool {
	return s.fireInhibit || !s.powered || s.InTransition() || s.IsDying() || s.phase < PhaseActive
}

// Invulnerable reports whether damage is ignored.
func (s *Ship) Invulnerable() bool { return s.invulnerable }

// SetInvulnerable toggles damage immunity.
func (s *Ship) SetInvulnerable(v bool) { s.invulnerable = v }

// Powered reports whether ship systems are running.
func (s *Ship) Powered() bool { return s.powered }

// PowerOn restarts every system.
func (s *Ship) PowerOn() {
	s.powered = true
	for _, g := range s.groups {
		g.PowerOn()
	}
}

// PowerOff shuts down every system.
func (s *Ship) PowerOff() {
	s.powered = false
	for _, g := range s.groups {
		g.PowerOff()
	}
}

// ShieldLevel returns the shield charge in [0, 1].
func (s *Ship) ShieldLevel() float64 { return s.shieldLevel }

// ShieldVisible reports whether the shield effect is drawn.
func (s *Ship) ShieldVisible() bool { return s.shieldVisible }

// SetShieldVisible shows or hides the shield effect.
func (s *Ship) SetShieldVisible(v bool) { s.shieldVisible = v }

// HullStrength returns the remaining integrity as a percentage of the design.
func (s *Ship) HullStrength() int {
	if s.design.Integrity <= 0 {
		return 10
	}
	return int(s.integrity / s.design.Integrity * 100)
}

// Director returns the controlling director or nil.
func (s *Ship) Director() Director { return s.director }

// SetDirector replaces the controlling director.
func (s *Ship) SetDirector(d Director) { s.director = d }

// DirectorInfo returns the short status line published by the director.
func (s *Ship) DirectorInfo() string { return s.directorInfo }

// SetDirectorInfo updates the status line.
func (s *Ship) SetDirectorInfo(info string) { s.directorInfo = info }

// Killer returns the death sequencer.
func (s *Ship) Killer() *Killer { return s.killer }

// Farcaster returns the gate system or nil.
func (s *Ship) Farcaster() *Farcaster { return s.farcaster }

// QuantumDrive returns the jump drive or nil.
func (s *Ship) QuantumDrive() *QuantumDrive { return s.drive }

// Hangar returns the flight deck or nil.
func (s *Ship) Hangar() *Hangar { return s.hangar }

// Carrier returns the carrier this ship is docked on or assigned to.
func (s *Ship) Carrier() *Ship { return s.carrier }

// WarpFOV returns the farcaster warp effect scale.
func (s *Ship) WarpFOV() float64 { return s.warpFOV }

// SetWarpFOV sets the farcaster warp effect scale.
func (s *Ship) SetWarpFOV(v float64) { s.warpFOV = v }

// LaunchPoint returns the takeoff instruction or nil.
func (s *Ship) LaunchPoint() *Instruction { return s.launchPoint }

// SetLaunchPoint records the takeoff instruction once.
func (s *Ship) SetLaunchPoint(i *Instruction) {
	if i != nil && s.launchPoint == nil {
		s.launchPoint = i
	}
}

// NextNavPoint returns the element's current navpoint.
func (s *Ship) NextNavPoint() *Instruction {
	if s.element == nil {
		return nil
	}
	return s.element.NextNavPoint()
}

// CommitRange returns the engagement radius for opportunistic targets.
func (s *Ship) CommitRange() float64 {
	if s.design.CommitRange > 0 {
		return s.design.CommitRange
	}
	return DefaultCommitRange
}

// MissionClock returns the time since ExecMission.
func (s *Ship) MissionClock() float64 {
	if s.sim == nil {
		return 0
	}
	return s.sim.MissionClock().Seconds()
}

// Weapons returns the weapon groups in mount order.
func (s *Ship) Weapons() []*WeaponGroup { return s.groups }

// PrimaryGroup returns the gun group or nil.
func (s *Ship) PrimaryGroup() *WeaponGroup { return s.primary }

// SecondaryGroup returns the selected missile group or nil.
func (s *Ship) SecondaryGroup() *WeaponGroup { return s.secondary }

// SecondaryGroups returns every missile group other than decoys and probes.
func (s *Ship) SecondaryGroups() []*WeaponGroup {
	var out []*WeaponGroup
	for _, g := range s.groups {
		if g.IsMissile() && !g.IsDecoy() && !g.IsProbe() {
			out = append(out, g)
		}
	}
	return out
}

// SelectSecondary makes g the current missile group if it belongs to this ship.
func (s *Ship) SelectSecondary(g *WeaponGroup) bool {
	for _, existing := range s.groups {
		if existing == g && g.IsMissile() {
			s.secondary = g
			return true
		}
	}
	return false
}

// CycleSecondary advances to the next missile group that still has ammo.
func (s *Ship) CycleSecondary() *WeaponGroup {
	groups := s.SecondaryGroups()
	if len(groups) == 0 {
		return nil
	}
	start := 0
	for i, g := range groups {
		if g == s.secondary {
			start = i
		}
	}
	for n := 1; n <= len(groups); n++ {
		g := groups[(start+n)%len(groups)]
		if g.Ammo() != 0 {
			s.secondary = g
			return g
		}
	}
	return s.secondary
}

// DecoyGroup returns the decoy launcher or nil.
func (s *Ship) DecoyGroup() *WeaponGroup { return s.decoys }

// ProbeGroup returns the probe launcher or nil.
func (s *Ship) ProbeGroup() *WeaponGroup { return s.probes }

// HasWeapons reports any weapon that can still fire.
func (s *Ship) HasWeapons() bool {
	for _, g := range s.groups {
		if g.IsDecoy() || g.IsProbe() {
			continue
		}
		for _, w := range g.Weapons() {
			if w.HasAmmo() && w.Status() > SystemCritical {
				return true
			}
		}
	}
	return false
}

// FirePrimary pulls the gun trigger.
func (s *Ship) FirePrimary() bool {
	if s.primary == nil || s.FireInhibited() {
		return false
	}
	return s.primary.Fire() != nil
}

// FireSecondary releases the selected missile group and winchester-cycles when it runs dry.
func (s *Ship) FireSecondary() bool {
	if s.secondary == nil || s.FireInhibited() {
		return false
	}
	fired := s.secondary.Fire() != nil
	if fired {
		design := s.secondary.Design()
		switch {
		case design != nil && design.Guided >= GuidanceSmart:
			s.SendRadio(radio.Fox2, nil)
		case design != nil && design.Guided > GuidanceNone:
			s.SendRadio(radio.Fox1, nil)
		}
	}
	if s.secondary.Ammo() == 0 {
		s.CycleSecondary()
	}
	return fired
}

// FireDecoy launches a decoy and adds it to the active decoy list.
func (s *Ship) FireDecoy() *Shot {
	if s.decoys == nil || s.FireInhibited() {
		return nil
	}
	w := s.decoys.Selected()
	if w == nil {
		return nil
	}
	shot := w.Fire()
	if shot != nil {
		s.activeDecoys = append(s.activeDecoys, shot)
		shot.Observe(s)
	}
	return shot
}

// ActiveDecoys returns the decoys still in flight.
func (s *Ship) ActiveDecoys() []*Shot { return s.activeDecoys }

// LaunchProbe replaces any live probe with a fresh one.
func (s *Ship) LaunchProbe() *Shot {
	if s.probes == nil {
		return nil
	}
	if s.probe != nil {
		s.probe.Ignore(s)
		s.probe = nil
	}
	w := s.probes.Selected()
	if w == nil {
		return nil
	}
	s.probe = w.Fire()
	if s.probe != nil {
		s.probe.Observe(s)
	}
	return s.probe
}

// Probe returns the live sensor probe or nil.
func (s *Ship) Probe() *Shot { return s.probe }

// Contacts returns the sensor contact list.
func (s *Ship) Contacts() []*Contact { return s.contacts }

// FindContact returns the contact tracking obj or nil.
func (s *Ship) FindContact(obj Object) *Contact {
	for _, c := range s.contacts {
		if c.Subject() == obj && obj != nil {
			return c
		}
	}
	return nil
}

// ClearContacts forgets every contact.
func (s *Ship) ClearContacts() {
	for _, c := range s.contacts {
		if subj := c.Subject(); subj != nil {
			subj.Base().Ignore(c)
		}
	}
	s.contacts = nil
}

// Target returns the current target or nil.
func (s *Ship) Target() Object { return s.target }

// IsTracking reports whether obj is the current target.
func (s *Ship) IsTracking(obj Object) bool { return obj != nil && s.target == obj }

// SetTarget designates a target and hands it to every weapon group not on point defense.
// Ships in transition cannot be targeted.
func (s *Ship) SetTarget(obj Object) {
	if other, ok := obj.(*Ship); ok && other.InTransition() {
		return
	}
	if s.target != obj {
		s.target = obj
		if obj != nil {
			obj.Base().Observe(s)
		}
	}
	for _, g := range s.groups {
		if g.FiringOrders() == OrdersPointDefense {
			continue
		}
		g.SetTarget(obj)
		if !s.IsStarship() {
			g.SetSweep(SweepTight)
		}
	}
}

// DropTarget clears the target on the ship and its weapons.
func (s *Ship) DropTarget() {
	s.target = nil
	for _, g := range s.groups {
		if g.FiringOrders() != OrdersPointDefense {
			g.DropTarget()
		}
	}
}

// LockTarget designates the nearest contact of the given kind in front of the ship.
func (s *Ship) LockTarget(kind Kind, closest, hostile bool) Object {
	var best Object
	bestScore := math.Inf(1)
	for _, c := range s.contacts {
		subj := c.Subject()
		if subj == nil || subj.Base().Kind() != kind {
			continue
		}
		if hostile && !s.IsHostileTo(subj) {
			continue
		}
		delta := c.Location().Sub(s.loc)
		d := delta.Length()
		score := d
		if !closest && d > 0 {
			score = 1 - delta.Scale(1/d).Dot(s.Heading())
		}
		if score < bestScore {
			best = subj
			bestScore = score
		}
	}
	if best != nil {
		s.SetTarget(best)
	}
	return best
}

// Ward returns the ship this ship is protecting.
func (s *Ship) Ward() *Ship { return s.ward }

// SetWard designates a ship to protect.
func (s *Ship) SetWard(w *Ship) {
	if s.ward == w {
		return
	}
	s.ward = w
	if w != nil {
		w.Observe(s)
	}
}

// Threats returns the guided shots homing on this ship.
func (s *Ship) Threats() []*Shot { return s.threats }

// AddThreat records a shot homing on this ship.
func (s *Ship) AddThreat(shot *Shot) {
	if shot == nil {
		return
	}
	for _, existing := range s.threats {
		if existing == shot {
			return
		}
	}
	s.threats = append(s.threats, shot)
	shot.Observe(s)
}

// DropThreat forgets a threatening shot.
func (s *Ship) DropThreat(shot *Shot) {
	for i, existing := range s.threats {
		if existing == shot {
			s.threats = append(s.threats[:i], s.threats[i+1:]...)
			return
		}
	}
}

// ObjectDestroyed clears every reference to a destroyed object.
func (s *Ship) ObjectDestroyed(obj Object) {
	if s.target == obj {
		s.DropTarget()
	}
	if s.ward != nil && obj == Object(s.ward) {
		s.ward = nil
	}
	if s.carrier != nil && obj == Object(s.carrier) {
		s.carrier = nil
	}
	if s.orders.target == obj {
		s.orders.target = nil
	}
	if shot, ok := obj.(*Shot); ok {
		s.DropThreat(shot)
		if s.probe == shot {
			s.probe = nil
		}
		for i, d := range s.activeDecoys {
			if d == shot {
				s.activeDecoys = append(s.activeDecoys[:i], s.activeDecoys[i+1:]...)
				break
			}
		}
	}
	kept := s.contacts[:0]
	for _, c := range s.contacts {
		if c.Subject() != nil {
			kept = append(kept, c)
		}
	}
	s.contacts = kept
}

// IsInCombat reports a hostile or threatening contact within engagement distance:
// 120 km between starships, 60 km otherwise.
func (s *Ship) IsInCombat() bool {
	if s.IsRogue() {
		return true
	}
	for _, c := range s.contacts {
		cship := c.Ship()
		dist := c.Location().Distance(s.loc)
		limit := 60e3
		switch {
		case cship == nil && c.Threat(s):
			if s.IsStarship() {
				limit = 120e3
			}
		case cship != nil:
			ciff := c.IFF(s)
			if ciff <= 0 || ciff == s.iff || ciff == IFFUnknown {
				continue
			}
			if s.IsStarship() && cship.IsStarship() {
				limit = 120e3
			}
		default:
			continue
		}
		if dist < limit {
			return true
		}
	}
	return false
}

// CanTimeSkip reports whether this ship allows a narrative time skip.
func (s *Ship) CanTimeSkip() bool {
	if s.MissionClock() < 10 {
		return false
	}
	navpt := s.NextNavPoint()
	if navpt == nil {
		return false
	}
	if navpt.Region() != s.region || navpt.Location.Distance(s.loc) < 30e3 {
		return false
	}
	return !s.IsInCombat()
}

// random returns the seeded stream shared by the owning simulation.
func (s *Ship) random() *combat.Stream {
	if s.sim == nil {
		return combat.NewStream("detached", s.name)
	}
	return s.sim.rng
}

func (s *Ship) tuning() Tuning {
	if s.sim == nil {
		return DefaultTuning()
	}
	return s.sim.tuning
}

func (s *Ship) logger() *logging.Logger {
	if s.sim == nil {
		return logging.L()
	}
	return s.sim.log
}

func (s *Ship) recordEvent(kind EventKind, info string) {
	if s.sim == nil {
		return
	}
	if st := s.sim.stats.find(s.name, true); st != nil {
		st.AddEvent(s.sim.MissionClock(), kind, info)
	}
}
