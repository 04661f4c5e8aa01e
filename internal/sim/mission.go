package sim

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

var (
	// ErrNoMission is returned by lifecycle calls made before LoadMission.
	ErrNoMission = errors.New("no mission loaded")
	// ErrMissionActive is returned when ExecMission runs twice.
	ErrMissionActive = errors.New("mission already executing")
)

const tracerName = "github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"

// Mission is the static definition the simulation instantiates.
type Mission struct {
	Name     string
	Seed     string
	Regions  []RegionSpec
	Elements []ElementSpec

	active   bool
	complete bool
}

// IsActive reports a loaded mission that has not been unloaded.
func (m *Mission) IsActive() bool { return m != nil && m.active }

// IsComplete reports a mission that has been unloaded.
func (m *Mission) IsComplete() bool { return m != nil && m.complete }

// RegionSpec describes one region of the mission.
type RegionSpec struct {
	Name      string
	Type      RegionType
	Location  geom.Vec3
	Terrain   Terrain
	Active    bool
	Asteroids []AsteroidSpec
}

// AsteroidSpec places a rock.
type AsteroidSpec struct {
	Type     int
	Location geom.Vec3
	Mass     float64
}

// ElementSpec describes one flight of identical ships.
type ElementSpec struct {
	Name      string
	IFF       int
	Design    *ShipDesign
	Count     int
	Region    string
	Location  geom.Vec3
	Heading   float64
	Player    int
	Commander string
	Squadron  bool
	Carrier   string
	HoldTime  float64
	EMCON     int

	FlightPlan []*Instruction
	Objectives []*Instruction
}

// Mission returns the loaded mission or nil.
func (s *Sim) Mission() *Mission { return s.mission }

// IsActive reports whether a mission is loaded and running.
func (s *Sim) IsActive() bool { return s.mission.IsActive() }

// IsComplete reports whether the last mission has been unloaded.
func (s *Sim) IsComplete() bool { return s.mission.IsComplete() }

// LoadMission installs m. A mission already loaded is kept.
func (s *Sim) LoadMission(m *Mission) {
	if m == nil {
		s.log.Warn("load mission without mission")
		return
	}
	if s.mission != nil {
		s.log.Warn("mission already loaded", logging.String("mission", s.mission.Name))
		return
	}
	s.mission = m
	m.active = true
	m.complete = false
	if m.Seed != "" {
		s.seed = m.Seed
	}
	s.log.Info("mission loaded", logging.String("mission", m.Name), logging.String("seed", s.seed))
}

// ExecMission instantiates the regions, elements and ships of the loaded mission.
func (s *Sim) ExecMission() error {
	if s.mission == nil {
		s.log.Warn("exec mission without mission")
		return ErrNoMission
	}
	if len(s.elements) > 0 || len(s.finished) > 0 {
		s.log.Warn("mission is already executing", logging.String("mission", s.mission.Name))
		return ErrMissionActive
	}
	_, span := otel.Tracer(tracerName).Start(context.Background(), "sim.ExecMission")
	defer span.End()

	m := s.mission
	s.rng = combat.NewStream(s.seed, "sim")
	s.stats.reset()
	s.decoys.Reset()
	s.startTime = s.gameTime
	s.started = s.clock.Now()

	s.createRegions(m)
	s.createElements(m)
	s.buildLinks(m)

	span.SetAttributes(
		attribute.String("mission", m.Name),
		attribute.Int("regions", len(s.regions)),
		attribute.Int("elements", len(s.elements)),
	)
	s.log.Info("mission executing",
		logging.String("mission", m.Name),
		logging.Int("regions", len(s.regions)),
		logging.Int("elements", len(s.elements)))
	return nil
}

func (s *Sim) createRegions(m *Mission) {
	var active *Region
	for _, spec := range m.Regions {
		if s.FindRegion(spec.Name) != nil {
			s.log.Warn("duplicate region", logging.String("region", spec.Name))
			continue
		}
		r := NewRegion(spec.Name, spec.Type, spec.Location)
		r.terrain = spec.Terrain
		s.AddRegion(r)
		for _, rock := range spec.Asteroids {
			s.CreateAsteroid(rock.Location, rock.Type, rock.Mass, r)
		}
		if spec.Active && active == nil {
			active = r
		}
	}
	if active != nil {
		s.ActivateRegion(active)
	}
}

func (s *Sim) createElements(m *Mission) {
	for _, spec := range m.Elements {
		if spec.Design == nil {
			s.log.Warn("element without design", logging.String("element", spec.Name))
			continue
		}
		e := s.CreateElement(spec.Name, spec.IFF)
		e.SetPlayer(spec.Player)
		e.SetSquadron(spec.Squadron)
		e.SetHoldTime(spec.HoldTime)
		for _, navpt := range spec.FlightPlan {
			e.AddNavPoint(navpt)
		}
		for _, obj := range spec.Objectives {
			e.AddObjective(obj)
		}

		count := max(spec.Count, 1)
		spacing := 6 * max(spec.Design.Radius, 10)
		for i := 0; i < count; i++ {
			name := spec.Name
			if count > 1 {
				name = fmt.Sprintf("%s %d", spec.Name, i+1)
			}
			loc := spec.Location.Add(geom.V(spacing*float64(i), 0, -spacing*float64(i)))
			ship := s.CreateShip(spec.Design, name, spec.Region, loc, spec.IFF)
			if ship == nil {
				continue
			}
			ship.SetAbsoluteOrientation(0, 0, spec.Heading)
			e.AddShip(ship)
			if spec.EMCON > 0 {
				ship.SetEMCON(spec.EMCON)
			}
			if st := s.stats.find(name, true); st != nil {
				st.Element = e.name
				st.ElementIndex = e.IndexOf(ship)
				st.Player = spec.Player > 0 && i == 0
			}
			if spec.Player > 0 && i == 0 && ship.region != nil && ship.region.playerShip == nil {
				ship.region.playerShip = ship
			}
		}
		if spec.Squadron {
			e.launched = false
		}
	}
}

func (s *Sim) buildLinks(m *Mission) {
	for _, spec := range m.Elements {
		e := s.FindElement(spec.Name)
		if e == nil {
			continue
		}
		if spec.Commander != "" {
			if cmdr := s.FindElement(spec.Commander); cmdr != nil {
				e.SetCommander(cmdr)
			} else {
				s.log.Warn("unknown commander", logging.String("element", e.name), logging.String("commander", spec.Commander))
			}
		}
		if spec.Carrier != "" {
			carrier := s.FindShip(spec.Carrier)
			if carrier == nil || carrier.hangar == nil {
				s.log.Warn("unknown carrier", logging.String("element", e.name), logging.String("carrier", spec.Carrier))
			} else {
				for _, ship := range e.Ships() {
					if !carrier.hangar.Stow(ship) {
						s.log.Warn("hangar full", logging.String("ship", ship.name), logging.String("carrier", carrier.name))
					}
				}
			}
		}
		for _, list := range [][]*Instruction{e.FlightPlan(), e.Objectives()} {
			for _, instr := range list {
				if instr.region == nil && instr.RegionName != "" {
					instr.SetRegion(s.FindRegion(instr.RegionName))
				}
				if instr.target == nil && instr.TargetName != "" {
					if tgt := s.FindShip(instr.TargetName); tgt != nil {
						instr.SetTarget(tgt)
					}
				}
			}
		}
	}
}

// CommitMission finalises the regions, logs the score table and hands the debrief
// to the configured store.
func (s *Sim) CommitMission(ctx context.Context) error {
	if s.mission == nil {
		s.log.Warn("commit mission without mission")
		return ErrNoMission
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "sim.CommitMission")
	defer span.End()

	for _, r := range s.regions {
		r.CommitMission()
	}

	stats := s.stats.snapshot()
	var kills, deaths int
	for _, st := range stats {
		s.log.Info("final score",
			logging.String("mission", s.mission.Name),
			logging.String("ship", st.Name),
			logging.Int("gun_kills", st.GunKills),
			logging.Int("missile_kills", st.MissileKills),
			logging.Int("deaths", st.Deaths),
			logging.Int("collisions", st.Collisions),
			logging.Int("points", st.Points),
			logging.Int("command_points", st.CommandPoints))
		kills += st.GunKills + st.MissileKills
		deaths += st.Deaths
	}
	span.SetAttributes(
		attribute.String("mission", s.mission.Name),
		attribute.Int("ships", len(stats)),
		attribute.Int("kills", kills),
		attribute.Int("deaths", deaths),
	)

	if s.debriefer == nil {
		return nil
	}
	committed := s.clock.Now()
	debrief := Debrief{
		Mission:   s.mission.Name,
		Seed:      s.seed,
		Started:   s.started,
		Committed: committed,
		Duration:  s.MissionClock(),
		Stats:     stats,
	}
	if err := s.debriefer.Record(ctx, debrief); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "debrief failed")
		s.log.Error("debrief failed", logging.String("mission", s.mission.Name), logging.Error(err))
		return fmt.Errorf("record debrief: %w", err)
	}
	return nil
}

// UnloadMission tears down every region, element and pending effect.
func (s *Sim) UnloadMission() {
	if s.active != nil {
		s.active.Deactivate()
	}
	if s.mission != nil {
		s.mission.active = false
		s.mission.complete = true
		s.log.Info("mission unloaded", logging.String("mission", s.mission.Name))
	}
	s.stats.reset()
	s.decoys.Reset()
	s.elements = nil
	s.finished = nil
	s.regions = nil
	s.queue = nil
	s.jumps = nil
	s.splashes = nil
	s.active = nil
	s.mission = nil
	s.playerAlert = false
}
