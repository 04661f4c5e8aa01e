package sim

import (
	"strings"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// RegionType distinguishes orbital space from terrain airspace.
type RegionType int

const (
	RegionSpace RegionType = iota
	RegionAirspace
)

func (t RegionType) String() string {
	if t == RegionAirspace {
		return "airspace"
	}
	return "space"
}

// Terrain reports ground height for an airspace region.
type Terrain interface {
	Height(x, z float64) float64
}

// timeSkipStep bounds each sub-step of a region time skip.
const timeSkipStep = 1.0

// Region owns the live objects of one spatial partition and steps them together.
type Region struct {
	sim      *Sim
	name     string
	kind     RegionType
	location geom.Vec3
	terrain  Terrain
	active   bool
	simTime  time.Duration

	ships      []*Ship
	carriers   []*Ship
	shots      []*Shot
	drones     []*Shot
	explosions []*Explosion
	debris     []*Debris
	asteroids  []*Asteroid
	deadShips  []*Ship
	tracks     [MaxIFF + 1][]*Contact
	tracked    map[*Ship]struct{}

	playerShip *Ship
}

// NewRegion builds an empty region at an orbital location.
func NewRegion(name string, kind RegionType, location geom.Vec3) *Region {
	return &Region{name: name, kind: kind, location: location}
}

// Name returns the region name.
func (r *Region) Name() string { return r.name }

// Type returns the region type.
func (r *Region) Type() RegionType { return r.kind }

// IsAirspace reports a terrain region.
func (r *Region) IsAirspace() bool { return r.kind == RegionAirspace }

// Location returns the orbital position of the region origin.
func (r *Region) Location() geom.Vec3 { return r.location }

// Terrain returns the ground model or nil.
func (r *Region) Terrain() Terrain { return r.terrain }

// SetTerrain attaches a ground model.
func (r *Region) SetTerrain(t Terrain) { r.terrain = t }

// IsActive reports whether the region holds the player's attention.
func (r *Region) IsActive() bool { return r.active }

// SimTime returns how much time this region has been stepped through.
func (r *Region) SimTime() time.Duration { return r.simTime }

// Ships returns the live ships.
func (r *Region) Ships() []*Ship { return r.ships }

// NumShips returns the live ship count.
func (r *Region) NumShips() int { return len(r.ships) }

// Carriers returns the live ships with flight decks.
func (r *Region) Carriers() []*Ship { return r.carriers }

// Shots returns the live non-drone shots.
func (r *Region) Shots() []*Shot { return r.shots }

// Drones returns the live drones.
func (r *Region) Drones() []*Shot { return r.drones }

// Explosions returns the live effects.
func (r *Region) Explosions() []*Explosion { return r.explosions }

// Debris returns the live fragments.
func (r *Region) Debris() []*Debris { return r.debris }

// Asteroids returns the rocks.
func (r *Region) Asteroids() []*Asteroid { return r.asteroids }

// PlayerShip returns the player ship hosted here or nil.
func (r *Region) PlayerShip() *Ship { return r.playerShip }

// SetPlayerShip overrides the player ship reference.
func (r *Region) SetPlayerShip(s *Ship) { r.playerShip = s }

// TrackList returns the per-side snapshot of living ships, clamped to 0..MaxIFF.
func (r *Region) TrackList(iff int) []*Contact { return r.tracks[ClampIFF(iff)] }

func (r *Region) logger() *logging.Logger {
	if r.sim == nil {
		return logging.L()
	}
	return r.sim.log
}

// Activate marks the region as the active one.
func (r *Region) Activate() {
	if r.active {
		return
	}
	r.active = true
	r.logger().Debug("region activated", logging.String("region", r.name))
}

// Deactivate clears the active flag and the track caches.
func (r *Region) Deactivate() {
	if !r.active {
		return
	}
	r.active = false
	r.clearTracks()
	r.logger().Debug("region deactivated", logging.String("region", r.name))
}

// InsertObject adopts obj, moving it out of any other region first.
func (r *Region) InsertObject(obj Object) {
	if obj == nil {
		return
	}
	b := obj.Base()
	if b.region != nil && b.region != r {
		b.region.RemoveObject(obj)
	}
	if b.id == 0 && r.sim != nil {
		b.id = r.sim.nextObjectID()
	}
	b.region = r

	switch o := obj.(type) {
	case *Ship:
		if !containsObject(r.ships, o) {
			r.ships = append(r.ships, o)
		}
		if o.hangar != nil && !containsObject(r.carriers, o) {
			r.carriers = append(r.carriers, o)
		}
		if o.sim == nil {
			o.sim = r.sim
		}
		if r.playerShip == nil && o.element != nil && o.element.Player() > 0 {
			r.playerShip = o
		}
	case *Shot:
		if o.sim == nil {
			o.sim = r.sim
		}
		if o.IsDrone() {
			if !containsObject(r.drones, o) {
				r.drones = append(r.drones, o)
			}
		} else if !containsObject(r.shots, o) {
			r.shots = append(r.shots, o)
		}
	case *Explosion:
		if !containsObject(r.explosions, o) {
			r.explosions = append(r.explosions, o)
		}
	case *Debris:
		if !containsObject(r.debris, o) {
			r.debris = append(r.debris, o)
		}
	case *Asteroid:
		if !containsObject(r.asteroids, o) {
			r.asteroids = append(r.asteroids, o)
		}
	}
}

// RemoveObject detaches obj from every list without destroying it.
func (r *Region) RemoveObject(obj Object) {
	if obj == nil {
		return
	}
	switch o := obj.(type) {
	case *Ship:
		r.ships = removeObject(r.ships, o)
		r.carriers = removeObject(r.carriers, o)
		r.deadShips = removeObject(r.deadShips, o)
		if r.playerShip == o {
			r.playerShip = nil
		}
	case *Shot:
		r.shots = removeObject(r.shots, o)
		r.drones = removeObject(r.drones, o)
	case *Explosion:
		r.explosions = removeObject(r.explosions, o)
	case *Debris:
		r.debris = removeObject(r.debris, o)
	case *Asteroid:
		r.asteroids = removeObject(r.asteroids, o)
	}
	if obj.Base().region == r {
		obj.Base().region = nil
	}
}

// DestroyShip detaches a ship from every membership list and tells its observers.
func (r *Region) DestroyShip(s *Ship) {
	if s == nil {
		return
	}
	r.ships = removeObject(r.ships, s)
	r.carriers = removeObject(r.carriers, s)
	if r.playerShip == s {
		r.playerShip = nil
	}
	if s.element != nil {
		s.element.DelShip(s)
	}
	if s.carrier != nil && s.carrier.hangar != nil {
		s.carrier.hangar.Release(s)
	}
	s.ClearContacts()
	s.notifyDestroyed()
	r.logger().Debug("ship removed", logging.String("ship", s.name), logging.String("region", r.name))
}

// FindShip returns the ship with the given name, ignoring case.
func (r *Region) FindShip(name string) *Ship {
	if name == "" {
		return nil
	}
	for _, s := range r.ships {
		if strings.EqualFold(s.name, name) {
			return s
		}
	}
	return nil
}

// FindShipByID returns the ship with the given object id.
func (r *Region) FindShipByID(id uint32) *Ship {
	for _, s := range r.ships {
		if s.id == id {
			return s
		}
	}
	return nil
}

// FindShotByID returns the shot or drone with the given object id.
func (r *Region) FindShotByID(id uint32) *Shot {
	for _, s := range r.shots {
		if s.id == id {
			return s
		}
	}
	for _, d := range r.drones {
		if d.id == id {
			return d
		}
	}
	return nil
}

// ExecFrame steps every object in the region. Non-positive steps are ignored.
func (r *Region) ExecFrame(seconds float64) {
	if seconds <= 0 {
		return
	}
	r.updateShips(seconds)
	r.updateShots(seconds)
	r.updateExplosions(seconds)
	r.updateDebris(seconds)
	r.updateCollisions()
	r.updateTracks()
	r.collect()
	r.simTime += time.Duration(seconds * float64(time.Second))
}

// CanTimeSkip reports a quiet region: no ordnance, nobody fighting or dying.
func (r *Region) CanTimeSkip() bool {
	if len(r.shots) > 0 || len(r.drones) > 0 {
		return false
	}
	for _, s := range r.ships {
		if s.IsInCombat() || s.IsDying() || s.IsDead() {
			return false
		}
	}
	return true
}

// ResolveTimeSkip advances the region in sub-steps no longer than one second.
func (r *Region) ResolveTimeSkip(seconds float64) {
	for remaining := seconds; remaining > 0; remaining -= timeSkipStep {
		r.ExecFrame(min(remaining, timeSkipStep))
	}
}

// CommitMission drops transient state at mission end: contacts, tracks and ordnance.
func (r *Region) CommitMission() {
	for _, s := range r.ships {
		s.ClearContacts()
	}
	for _, s := range r.shots {
		s.SetLife(0)
	}
	for _, d := range r.drones {
		d.SetLife(0)
	}
	r.playerShip = nil
	r.clearTracks()
	r.active = false
}

func (r *Region) updateShips(seconds float64) {
	if len(r.ships) == 0 {
		return
	}
	//1.- Step a snapshot so ships created or moved mid-frame do not disturb the pass.
	ships := append([]*Ship(nil), r.ships...)
	for _, s := range ships {
		if s.region != r {
			continue
		}
		if isDeadShip(s) {
			r.queueDead(s)
			continue
		}
		s.ExecFrame(seconds)
		if isDeadShip(s) {
			r.queueDead(s)
		}
	}

	r.carriers = r.carriers[:0]
	kept := r.ships[:0]
	for _, s := range r.ships {
		if containsObject(r.deadShips, s) {
			continue
		}
		kept = append(kept, s)
		if s.hangar != nil {
			r.carriers = append(r.carriers, s)
		}
	}
	clearTail(r.ships, len(kept))
	r.ships = kept

	if r.playerShip != nil && (r.playerShip.region != r || isDeadShip(r.playerShip)) {
		r.playerShip = nil
	}
}

func (r *Region) queueDead(s *Ship) {
	if !containsObject(r.deadShips, s) {
		r.deadShips = append(r.deadShips, s)
	}
}

func isDeadShip(s *Ship) bool { return s.life == 0 }

func (r *Region) updateShots(seconds float64) {
	shots := append([]*Shot(nil), r.shots...)
	for _, s := range shots {
		if s.life == 0 || s.region != r {
			continue
		}
		s.ExecFrame(seconds)
		if s.life != 0 {
			r.hitTest(s)
		}
	}
	drones := append([]*Shot(nil), r.drones...)
	for _, d := range drones {
		if d.life == 0 || d.region != r {
			continue
		}
		d.ExecFrame(seconds)
		if d.life != 0 {
			r.hitTest(d)
		}
	}
	r.shots = r.compactShots(r.shots)
	r.drones = r.compactShots(r.drones)
}

func (r *Region) compactShots(list []*Shot) []*Shot {
	kept := list[:0]
	var gone []*Shot
	for _, s := range list {
		if s.life == 0 || s.region != r {
			if s.region == r {
				gone = append(gone, s)
			}
			continue
		}
		kept = append(kept, s)
	}
	clearTail(list, len(kept))
	for _, s := range gone {
		if s.owner != nil {
			s.owner.Ignore(s)
		}
		if s.target != nil {
			s.target.Base().Ignore(s)
		}
		s.notifyDestroyed()
		if r.sim != nil {
			r.sim.decoys.Release(r.sim.seed, shotKey(s))
		}
	}
	return kept
}

// hitTest resolves a shot against the ships and drones of the region.
func (r *Region) hitTest(shot *Shot) {
	if shot.IsDecoy() || shot.IsProbe() {
		return
	}
	for _, ship := range r.ships {
		if ship == shot.owner || ship.life == 0 || ship.phase < PhaseLaunch || ship.IsDying() {
			continue
		}
		hit, scale := ship.HitBy(shot)
		if !hit {
			continue
		}
		damage := shot.Damage() * scale
		if ship.invulnerable {
			damage = 0
		}
		applied := ship.InflictDamage(damage, shot, combat.HitDirect)
		r.recordHit(shot, ship, applied)
		if !shot.IsBeam() {
			r.explode(shot.loc, ship.vel, ExplosionHitSpark, 1)
		}
		if ship.integrity < 1 && !ship.InTransition() {
			if r.sim != nil {
				r.sim.creditKill(shot.ownerName, ship, shot.IsMissile())
			}
			ship.DeathSpiral()
		}
		if !shot.IsBeam() {
			if shot.IsMissile() {
				shot.Detonate()
			} else {
				shot.SetLife(0)
			}
			return
		}
	}

	if !shot.IsPrimary() && !shot.IsFlak() {
		return
	}
	//1.- Guns and flak also engage drones in flight.
	for _, drone := range r.drones {
		if drone == shot || drone.life == 0 || !shot.IsHostileTo(drone) {
			continue
		}
		d := segmentDistance(drone.loc, shot.prevLoc, shot.loc)
		if shot.IsBeam() {
			d = segmentDistance(drone.loc, shot.origin, shot.loc)
		}
		if d > drone.radius+shot.radius {
			continue
		}
		drone.InflictDamage(shot.Damage())
		if drone.integrity < 1 {
			drone.SetLife(0)
			r.explode(drone.loc, drone.vel, ExplosionSmallExplosion, 1)
		}
		if !shot.IsBeam() {
			shot.SetLife(0)
			return
		}
	}
}

func (r *Region) recordHit(shot *Shot, target *Ship, applied float64) {
	owner := shot.owner
	if owner != nil && owner != target && owner.iff == target.iff && owner.iff > 0 && !owner.IsRogue() {
		points := int(applied / 10)
		if points < 1 {
			points = 1
		}
		owner.IncFriendlyFire(points)
	}
	if r.sim == nil {
		return
	}
	st := r.sim.stats.find(shot.ownerName, false)
	if st == nil {
		return
	}
	if shot.IsMissile() {
		st.MissileHits++
	} else {
		st.GunHits++
	}
}

func (r *Region) explode(loc, vel geom.Vec3, kind int, scale float64) {
	if r.sim != nil {
		r.sim.CreateExplosion(loc, vel, kind, scale, nil, r)
	}
}

func (r *Region) updateExplosions(seconds float64) {
	for _, e := range r.explosions {
		if e.life != 0 {
			e.ExecFrame(seconds)
		}
	}
	kept := r.explosions[:0]
	for _, e := range r.explosions {
		if e.life == 0 {
			e.notifyDestroyed()
			continue
		}
		kept = append(kept, e)
	}
	clearTail(r.explosions, len(kept))
	r.explosions = kept
}

func (r *Region) updateDebris(seconds float64) {
	for _, d := range r.debris {
		if d.life != 0 {
			d.ExecFrame(seconds)
		}
	}
	for _, a := range r.asteroids {
		a.ExecFrame(seconds)
	}
	kept := r.debris[:0]
	for _, d := range r.debris {
		if d.life == 0 {
			d.notifyDestroyed()
			continue
		}
		kept = append(kept, d)
	}
	clearTail(r.debris, len(kept))
	r.debris = kept
}

// updateCollisions applies contact damage between overlapping ships, rocks and heavy debris.
func (r *Region) updateCollisions() {
	for i, a := range r.ships {
		if a.life == 0 || a.phase < PhaseLaunch {
			continue
		}
		for _, b := range r.ships[i+1:] {
			if b.life == 0 || b.phase < PhaseLaunch {
				continue
			}
			if a.carrier == b || b.carrier == a {
				continue
			}
			if a.loc.Distance(b.loc) > a.radius+b.radius {
				continue
			}
			a.collide(b)
			b.collide(a)
		}
		for _, rock := range r.asteroids {
			if a.loc.Distance(rock.loc) < a.radius+rock.radius {
				a.collide(rock)
			}
		}
		for _, d := range r.debris {
			if d.mass > a.mass && a.loc.Distance(d.loc) < a.radius+d.radius {
				a.collide(d)
			}
		}
	}
}

// updateTracks keeps one contact per live ship in the list for its side. Existing
// contacts are refreshed in place; only newcomers get a new contact.
func (r *Region) updateTracks() {
	var now func() time.Duration
	if r.sim != nil {
		now = r.sim.GameTime
	}
	if r.tracked == nil {
		r.tracked = make(map[*Ship]struct{}, len(r.ships))
	}
	clear(r.tracked)

	for i := range r.tracks {
		kept := r.tracks[i][:0]
		for _, c := range r.tracks[i] {
			s := c.Ship()
			if s == nil || s.region != r || isDeadShip(s) || ClampIFF(s.iff) != i {
				if subj := c.Subject(); subj != nil {
					subj.Base().Ignore(c)
				}
				continue
			}
			c.refresh(1, 0)
			r.tracked[s] = struct{}{}
			kept = append(kept, c)
		}
		clear(r.tracks[i][len(kept):])
		r.tracks[i] = kept
	}

	for _, s := range r.ships {
		if isDeadShip(s) {
			continue
		}
		if _, ok := r.tracked[s]; ok {
			continue
		}
		iff := ClampIFF(s.iff)
		r.tracks[iff] = append(r.tracks[iff], NewContact(s, 1, 0, now))
	}
}

func (r *Region) clearTracks() {
	for i := range r.tracks {
		for _, c := range r.tracks[i] {
			if subj := c.Subject(); subj != nil {
				subj.Base().Ignore(c)
			}
		}
		r.tracks[i] = nil
	}
}

// collect removes everything that died since the last pass.
func (r *Region) collect() {
	r.shots = r.compactShots(r.shots)
	r.drones = r.compactShots(r.drones)
	for _, s := range r.ships {
		if isDeadShip(s) {
			r.queueDead(s)
		}
	}
	r.destroyShips()
}

func (r *Region) destroyShips() {
	if len(r.deadShips) == 0 {
		return
	}
	dead := r.deadShips
	r.deadShips = nil
	for _, s := range dead {
		r.DestroyShip(s)
		if s.region == r {
			s.region = nil
		}
	}
}

func containsObject[T comparable](list []T, v T) bool {
	for _, existing := range list {
		if existing == v {
			return true
		}
	}
	return false
}

func removeObject[T comparable](list []T, v T) []T {
	for i, existing := range list {
		if existing == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// clearTail zeroes the abandoned suffix of a compacted slice so it holds no stale references.
func clearTail[T any](list []T, n int) {
	var zero T
	for i := n; i < len(list); i++ {
		list[i] = zero
	}
}
