package sim

import (
	"math"
	"strings"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
)

// timeSkipChunk is the largest slice of a narrative skip checked for interruption.
const timeSkipChunk = 10.0

// Sim owns the universe of one mission: regions, elements and the deferred effects
// queued while they step. It is not safe for concurrent use.
type Sim struct {
	log             *logging.Logger
	clock           Clock
	radio           *radio.Traffic
	directorFactory DirectorFactory
	telemetry       Telemetry
	debriefer       Debriefer
	seed            string
	rng             *combat.Stream
	tuning          Tuning
	decoys          *combat.DecoyTracker
	stats           *statsLedger

	regions  []*Region
	active   *Region
	queue    []*Region
	elements []*Element
	finished []*Element
	mission  *Mission

	jumps    []hyperJump
	splashes []splash

	gameTime    time.Duration
	startTime   time.Duration
	started     time.Time
	paused      bool
	playerAlert bool
	nextID      uint32
}

// Option customises a Sim at construction.
type Option func(*Sim)

// WithLogger routes simulation diagnostics to logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Sim) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithClock overrides the wall clock used for debrief timestamps.
func WithClock(clock Clock) Option {
	return func(s *Sim) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRadio publishes every transmission on the given bus.
func WithRadio(traffic *radio.Traffic) Option {
	return func(s *Sim) { s.radio = traffic }
}

// WithDirectorFactory installs the builder used to give new ships a director.
func WithDirectorFactory(f DirectorFactory) Option {
	return func(s *Sim) { s.directorFactory = f }
}

// WithTelemetry forwards notable events to t.
func WithTelemetry(t Telemetry) Option {
	return func(s *Sim) {
		if t != nil {
			s.telemetry = t
		}
	}
}

// WithDebriefer persists mission results on commit.
func WithDebriefer(d Debriefer) Option {
	return func(s *Sim) { s.debriefer = d }
}

// WithSeed fixes the seed of every random roll in the mission.
func WithSeed(seed string) Option {
	return func(s *Sim) {
		if seed != "" {
			s.seed = seed
		}
	}
}

// WithTuning overrides the AI and weapon tunables.
func WithTuning(t Tuning) Option {
	return func(s *Sim) { s.tuning = t }
}

// New builds an empty simulation context.
func New(opts ...Option) *Sim {
	s := &Sim{
		log:       logging.L(),
		clock:     systemClock{},
		telemetry: nopTelemetry{},
		seed:      "starshatter",
		tuning:    DefaultTuning(),
		decoys:    combat.NewDecoyTracker(),
		stats:     newStatsLedger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = combat.NewStream(s.seed, "sim")
	return s
}

// Logger returns the simulation logger.
func (s *Sim) Logger() *logging.Logger { return s.log }

// Seed returns the mission seed.
func (s *Sim) Seed() string { return s.seed }

// Random returns the seeded stream shared by the simulation.
func (s *Sim) Random() *combat.Stream { return s.rng }

// Tuning returns the active tunables.
func (s *Sim) Tuning() Tuning { return s.tuning }

// Radio returns the traffic bus or nil.
func (s *Sim) Radio() *radio.Traffic { return s.radio }

// Paused reports whether the simulation is frozen.
func (s *Sim) Paused() bool { return s.paused }

// SetPaused freezes or resumes shots, weapons and damage.
func (s *Sim) SetPaused(p bool) { s.paused = p }

// GameTime returns the total simulated time.
func (s *Sim) GameTime() time.Duration { return s.gameTime }

// MissionClock returns the simulated time since the mission started executing.
func (s *Sim) MissionClock() time.Duration {
	if s.mission == nil {
		return 0
	}
	return s.gameTime - s.startTime
}

// Regions returns every region.
func (s *Sim) Regions() []*Region { return s.regions }

// ActiveRegion returns the region holding the player's attention or nil.
func (s *Sim) ActiveRegion() *Region { return s.active }

// Elements returns the elements still in play.
func (s *Sim) Elements() []*Element { return s.elements }

// FinishedElements returns the elements whose ships are all gone.
func (s *Sim) FinishedElements() []*Element { return s.finished }

// Stats returns a copy of every ship ledger.
func (s *Sim) Stats() []ShipStats { return s.stats.snapshot() }

// StatsFor returns a copy of one ship ledger.
func (s *Sim) StatsFor(name string) (ShipStats, bool) {
	st := s.stats.find(name, false)
	if st == nil {
		return ShipStats{}, false
	}
	copied := *st
	copied.Events = append([]StatEvent(nil), st.Events...)
	return copied, true
}

// PlayerShip returns the ship of the first player element or nil.
func (s *Sim) PlayerShip() *Ship {
	if s.active != nil && s.active.playerShip != nil {
		return s.active.playerShip
	}
	for _, e := range s.elements {
		if e.Player() > 0 {
			if lead := e.Ship(1); lead != nil {
				return lead
			}
		}
	}
	return nil
}

// PlayerAlert reports whether the player is under threat.
func (s *Sim) PlayerAlert() bool { return s.playerAlert }

// SetPlayerAlert raises or clears the player threat alert.
func (s *Sim) SetPlayerAlert(v bool) { s.playerAlert = v }

func (s *Sim) nextObjectID() uint32 {
	s.nextID++
	return s.nextID
}

// AddRegion adopts a region. The first region added becomes active.
func (s *Sim) AddRegion(r *Region) {
	if r == nil || containsObject(s.regions, r) {
		return
	}
	r.sim = s
	s.regions = append(s.regions, r)
	if s.active == nil {
		s.ActivateRegion(r)
	}
}

// FindRegion returns the region with the given name, ignoring case.
func (s *Sim) FindRegion(name string) *Region {
	for _, r := range s.regions {
		if strings.EqualFold(r.name, name) {
			return r
		}
	}
	return nil
}

// FindNearestSpaceRegion returns the orbital region closest to obj.
func (s *Sim) FindNearestSpaceRegion(obj Object) *Region {
	return s.findNearestRegion(obj, RegionSpace)
}

// FindNearestTerrainRegion returns the airspace region closest to obj.
func (s *Sim) FindNearestTerrainRegion(obj Object) *Region {
	return s.findNearestRegion(obj, RegionAirspace)
}

func (s *Sim) findNearestRegion(obj Object, kind RegionType) *Region {
	if obj == nil {
		return nil
	}
	b := obj.Base()
	loc := b.Location()
	if b.region != nil {
		loc = loc.Add(b.region.location)
	}
	var best *Region
	dist := math.Inf(1)
	for _, r := range s.regions {
		if r.kind != kind {
			continue
		}
		if d := r.location.Distance(loc); d < dist {
			best = r
			dist = d
		}
	}
	return best
}

// ActivateRegion makes r the active region. It reports whether anything changed.
func (s *Sim) ActivateRegion(r *Region) bool {
	if r == nil || r == s.active || !containsObject(s.regions, r) {
		return false
	}
	if s.active != nil {
		s.active.Deactivate()
	}
	s.active = r
	r.Activate()
	s.log.Info("region activated", logging.String("region", r.name))
	return true
}

// CreateElement adds a new element to the mission.
func (s *Sim) CreateElement(name string, iff int) *Element {
	e := NewElement(name, iff)
	s.elements = append(s.elements, e)
	return e
}

// FindElement returns the element with the given name, ignoring case.
func (s *Sim) FindElement(name string) *Element {
	if name == "" {
		return nil
	}
	for _, e := range s.elements {
		if strings.EqualFold(e.name, name) {
			return e
		}
	}
	for _, e := range s.finished {
		if strings.EqualFold(e.name, name) {
			return e
		}
	}
	return nil
}

// CreateShip builds a ship from design, places it in the named region and gives it
// a director. It returns nil when the design or region is missing.
func (s *Sim) CreateShip(design *ShipDesign, name, regionName string, loc geom.Vec3, iff int) *Ship {
	if design == nil {
		s.log.Warn("create ship without design", logging.String("ship", name))
		return nil
	}
	r := s.FindRegion(regionName)
	if r == nil {
		s.log.Warn("create ship in unknown region", logging.String("ship", name), logging.String("region", regionName))
		return nil
	}
	ship := NewShip(design, name, iff)
	ship.sim = s
	ship.MoveTo(loc)
	r.InsertObject(ship)
	if ship.IsAirborne() && ship.AltitudeAGL() > 25 {
		ship.SetVelocity(ship.Heading().Scale(250))
	}
	if s.directorFactory != nil {
		if d := s.directorFactory(ship); d != nil {
			ship.SetDirector(d)
		}
	}
	if st := s.stats.find(name, true); st != nil {
		st.Design = design.Name
		st.IFF = iff
	}
	s.log.Debug("ship created",
		logging.String("ship", name),
		logging.String("design", design.Name),
		logging.String("region", r.name),
		logging.Int("iff", iff))
	return ship
}

// FindShip searches every region for a ship by name.
func (s *Sim) FindShip(name string) *Ship {
	for _, r := range s.regions {
		if ship := r.FindShip(name); ship != nil {
			return ship
		}
	}
	return nil
}

// FindShipByID searches every region for a ship by object id.
func (s *Sim) FindShipByID(id uint32) *Ship {
	for _, r := range s.regions {
		if ship := r.FindShipByID(id); ship != nil {
			return ship
		}
	}
	return nil
}

// FindShotByID searches every region for a shot or drone by object id.
func (s *Sim) FindShotByID(id uint32) *Shot {
	for _, r := range s.regions {
		if shot := r.FindShotByID(id); shot != nil {
			return shot
		}
	}
	return nil
}

// DestroyShip removes a ship from its region immediately.
func (s *Sim) DestroyShip(ship *Ship) {
	if ship != nil && ship.region != nil {
		ship.region.DestroyShip(ship)
	}
}

// CreateShot launches a shot or drone into r, or into the active region when r is nil.
func (s *Sim) CreateShot(pos geom.Vec3, cam geom.Camera, design *WeaponDesign, owner *Ship, r *Region) *Shot {
	if r == nil {
		r = s.active
	}
	if r == nil {
		return nil
	}
	shot := NewShot(pos, cam, design, owner)
	shot.sim = s
	shot.born = s.gameTime
	r.InsertObject(shot)
	return shot
}

// CreateExplosion spawns a visual effect. Effects outside the active region are not created.
func (s *Sim) CreateExplosion(loc, vel geom.Vec3, kind int, scale float64, source Object, r *Region) *Explosion {
	if r == nil || r != s.active {
		return nil
	}
	e := NewExplosion(kind, loc, vel, scale, source)
	r.InsertObject(e)
	return e
}

// CreateDebris throws a fragment into r, or into the active region when r is nil.
func (s *Sim) CreateDebris(loc, vel geom.Vec3, mass, life, drag float64, r *Region) *Debris {
	if r == nil {
		r = s.active
	}
	if r == nil {
		return nil
	}
	if life <= 0 {
		life = 300
	}
	d := NewDebris(loc, vel, mass, life, drag)
	r.InsertObject(d)
	return d
}

// CreateAsteroid places a rock into r, or into the active region when r is nil.
func (s *Sim) CreateAsteroid(loc geom.Vec3, rockType int, mass float64, r *Region) *Asteroid {
	if r == nil {
		r = s.active
	}
	if r == nil {
		return nil
	}
	a := NewAsteroid(rockType, loc, mass)
	r.InsertObject(a)
	return a
}

// ExecFrame runs one simulation tick: elements, at most one background region, the
// active region, then the deferred jumps and splash damage.
func (s *Sim) ExecFrame(seconds float64) {
	if len(s.regions) == 0 {
		s.active = nil
		s.queue = nil
		s.jumps = nil
		s.splashes = nil
		return
	}
	if seconds > 0 && !s.paused {
		s.gameTime += time.Duration(seconds * float64(time.Second))
	}

	for _, e := range s.elements {
		if !e.IsSquadron() {
			e.ExecFrame(seconds)
		}
	}

	//1.- Queue idle regions, then step the first one that still has ships.
	for _, r := range s.regions {
		if r != s.active && r.NumShips() > 0 && !containsObject(s.queue, r) {
			s.queue = append(s.queue, r)
		}
	}
	for len(s.queue) > 0 {
		r := s.queue[0]
		s.queue = s.queue[1:]
		if r.NumShips() == 0 || r == s.active {
			continue
		}
		r.ExecFrame(seconds)
		break
	}

	//2.- Step the active region fully.
	if s.active != nil {
		s.active.ExecFrame(seconds)
	} else {
		s.log.Warn("frame without active region")
	}

	s.resolveHyperList()
	s.resolveSplashList()
	for _, r := range s.regions {
		r.collect()
	}

	if player := s.PlayerShip(); player != nil {
		s.playerAlert = len(player.Threats()) > 0
	}

	kept := s.elements[:0]
	for _, e := range s.elements {
		if !e.IsSquadron() && e.IsFinished() {
			s.finished = append(s.finished, e)
			s.log.Debug("element finished", logging.String("element", e.name))
			continue
		}
		kept = append(kept, e)
	}
	clearTail(s.elements, len(kept))
	s.elements = kept

	s.telemetry.FrameStepped(seconds, len(s.regions))
}

// CanTimeSkip reports whether the player may skip ahead to the next navpoint.
func (s *Sim) CanTimeSkip() bool {
	if s.active == nil || !s.active.CanTimeSkip() {
		return false
	}
	player := s.PlayerShip()
	return player == nil || player.CanTimeSkip()
}

// ResolveTimeSkip fast-forwards the active region in ten second chunks, stopping
// early once combat makes skipping unsafe.
func (s *Sim) ResolveTimeSkip(seconds float64) {
	if seconds <= 0 {
		return
	}
	for _, e := range s.elements {
		e.ExecFrame(seconds)
	}
	skipped := 0.0
	if s.active != nil {
		total := seconds
		for total > timeSkipChunk {
			if !s.active.CanTimeSkip() {
				total = 0
				break
			}
			s.active.ResolveTimeSkip(timeSkipChunk)
			total -= timeSkipChunk
			skipped += timeSkipChunk
		}
		if total > 0 && s.active.CanTimeSkip() {
			s.active.ResolveTimeSkip(total)
			skipped += total
		}
	}
	if player := s.PlayerShip(); player != nil {
		player.SetAutoNav(false)
		player.SetThrottle(75)
	}
	s.gameTime += time.Duration(skipped * float64(time.Second))
	s.log.Info("time skip resolved", logging.Float64("requested", seconds), logging.Float64("skipped", skipped))
}

// transmit publishes a radio message and delivers it to its addressees.
func (s *Sim) transmit(msg radio.Message) {
	msg.MissionTime = s.MissionClock()
	if s.radio != nil {
		if _, err := s.radio.Transmit(msg); err != nil {
			s.log.Warn("radio transmit failed", logging.Error(err), logging.String("sender", msg.Sender))
		}
	}
	switch {
	case msg.Recipient != "":
		if ship := s.FindShip(msg.Recipient); ship != nil {
			ship.HandleRadioMessage(msg)
		}
	case msg.Element != "":
		if e := s.FindElement(msg.Element); e != nil {
			for _, ship := range append([]*Ship(nil), e.Ships()...) {
				ship.HandleRadioMessage(msg)
			}
		}
	}
}

// recordShot counts a fired shot in the owner's ledger.
func (s *Sim) recordShot(owner *Ship, design *WeaponDesign) {
	if owner == nil || design == nil {
		return
	}
	if st := s.stats.find(owner.name, true); st != nil {
		if design.IsMissile() {
			st.MissileShots++
		} else {
			st.GunShots++
		}
	}
	s.telemetry.ShotFired(owner.name, design.Name, design.IsMissile())
}

// creditKill scores the destruction of victim for the ship named ownerName. Points
// go to the killer only across hostile sides; element and commander leads get
// command points.
func (s *Sim) creditKill(ownerName string, victim *Ship, missile bool) {
	if victim == nil {
		return
	}
	s.log.Info("ship killed",
		logging.String("killer", ownerName),
		logging.String("ship", victim.name),
		logging.Bool("missile", missile),
		logging.Float64("mission_time", s.MissionClock().Seconds()))

	killer := s.stats.find(ownerName, false)
	if killer != nil {
		if missile {
			killer.AddEvent(s.MissionClock(), EventMissileKill, victim.name)
		} else {
			killer.AddEvent(s.MissionClock(), EventGunsKill, victim.name)
		}
	}

	owner := s.FindShip(ownerName)
	if owner != nil && killer != nil && owner.iff != victim.iff && (victim.iff > 0 || owner.iff > 1) {
		value := victim.design.Value
		killer.Points += value
		if e := owner.element; e != nil {
			if owner.ElementIndex() > 1 {
				s.addCommandPoints(e.Ship(1), value/2)
			}
			if cmdr := e.Commander(); cmdr != nil {
				s.addCommandPoints(cmdr.Ship(1), value/2)
			}
		}
	}
	if owner != nil && owner != victim {
		owner.SendRadio(nextSplashCall(owner), victim)
	}
	s.telemetry.ShipDestroyed(victim.name, ownerName, missile)
}

func (s *Sim) addCommandPoints(lead *Ship, points int) {
	if lead == nil {
		return
	}
	if st := s.stats.find(lead.name, false); st != nil {
		st.CommandPoints += points
	}
}

// nextSplashCall cycles the splash call-out by the owner's kill count, starting at
// "splash one" for the first kill.
func nextSplashCall(owner *Ship) radio.Action {
	kills := 1
	if owner.sim != nil {
		if st := owner.sim.stats.find(owner.name, false); st != nil {
			kills = st.GunKills + st.MissileKills
		}
	}
	return radio.SplashCall(max(kills-1, 0))
}
