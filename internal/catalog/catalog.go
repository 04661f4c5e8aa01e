package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

//go:embed designs.yaml
var stock []byte

var (
	// ErrUnknownWeapon is returned when a design or lookup names a weapon the catalog lacks.
	ErrUnknownWeapon = errors.New("unknown weapon design")
	// ErrUnknownShip is returned when an element or lookup names a ship the catalog lacks.
	ErrUnknownShip = errors.New("unknown ship design")
	// ErrUnknownMission is returned by Mission for names the catalog lacks.
	ErrUnknownMission = errors.New("unknown mission")
)

// Catalog holds decoded designs and mission templates keyed by lowercase name.
type Catalog struct {
	weapons  map[string]*sim.WeaponDesign
	ships    map[string]*sim.ShipDesign
	missions map[string]missionRecord
}

// Default decodes the embedded stock catalog.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(stock), "yaml")
}

// LoadFile decodes a catalog file. The extension selects the format.
func LoadFile(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return decode(v)
}

// Load decodes a catalog in the given format ("yaml", "json" or "toml").
func Load(r io.Reader, format string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Catalog, error) {
	var file fileRecord
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c := &Catalog{
		weapons:  make(map[string]*sim.WeaponDesign, len(file.Weapons)),
		ships:    make(map[string]*sim.ShipDesign, len(file.Ships)),
		missions: make(map[string]missionRecord, len(file.Missions)),
	}
	var problems []string

	//1.- Weapons first so ship mounts can resolve them.
	for _, rec := range file.Weapons {
		design, err := rec.design()
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		c.weapons[key(rec.Name)] = design
	}
	for _, rec := range file.Ships {
		design, err := rec.design(c.weapons)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		c.ships[key(rec.Name)] = design
	}

	//2.- Missions are validated now and instantiated on demand.
	for _, rec := range file.Missions {
		if err := rec.validate(c.ships); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		c.missions[key(rec.Name)] = rec
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid catalog: %s", strings.Join(problems, "; "))
	}
	return c, nil
}

// Weapon returns the weapon design with the given name.
func (c *Catalog) Weapon(name string) (*sim.WeaponDesign, bool) {
	d, ok := c.weapons[key(name)]
	return d, ok
}

// Ship returns the ship design with the given name.
func (c *Catalog) Ship(name string) (*sim.ShipDesign, bool) {
	d, ok := c.ships[key(name)]
	return d, ok
}

// ShipNames lists the ship designs in sorted order.
func (c *Catalog) ShipNames() []string {
	names := make([]string, 0, len(c.ships))
	for _, d := range c.ships {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// MissionNames lists the mission templates in sorted order.
func (c *Catalog) MissionNames() []string {
	names := make([]string, 0, len(c.missions))
	for _, m := range c.missions {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// Mission builds a fresh mission from its template. Instructions carry run state,
// so every call returns new instances.
func (c *Catalog) Mission(name string) (*sim.Mission, error) {
	rec, ok := c.missions[key(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMission, name)
	}
	m := &sim.Mission{Name: rec.Name, Seed: rec.Seed}
	if m.Seed == "" {
		m.Seed = rec.Name
	}
	for _, r := range rec.Regions {
		spec := sim.RegionSpec{Name: r.Name, Type: sim.RegionSpace, Location: vec(r.Location), Active: r.Active}
		if strings.EqualFold(r.Type, "airspace") {
			spec.Type = sim.RegionAirspace
		}
		for _, a := range r.Asteroids {
			spec.Asteroids = append(spec.Asteroids, sim.AsteroidSpec{Type: a.Type, Location: vec(a.Location), Mass: a.Mass})
		}
		m.Regions = append(m.Regions, spec)
	}
	for _, e := range rec.Elements {
		design := c.ships[key(e.Design)]
		spec := sim.ElementSpec{
			Name:      e.Name,
			IFF:       e.IFF,
			Design:    design,
			Count:     e.Count,
			Region:    e.Region,
			Location:  vec(e.Location),
			Heading:   radians(e.Heading),
			Player:    e.Player,
			Commander: e.Commander,
			Squadron:  e.Squadron,
			Carrier:   e.Carrier,
			HoldTime:  e.HoldTime,
			EMCON:     e.EMCON,
		}
		for _, n := range e.FlightPlan {
			spec.FlightPlan = append(spec.FlightPlan, n.instruction())
		}
		for _, n := range e.Objectives {
			spec.Objectives = append(spec.Objectives, n.instruction())
		}
		m.Elements = append(m.Elements, spec)
	}
	return m, nil
}

// ParseAction maps an instruction verb to its Action. Unknown names yield ActionNone.
func ParseAction(name string) sim.Action {
	name = strings.ToLower(strings.TrimSpace(name))
	for a := sim.ActionNone; a <= sim.ActionDeploy; a++ {
		if a.String() == name {
			return a
		}
	}
	return sim.ActionNone
}

// ParseFormation maps a formation name to its Formation. Unknown names yield FormationNone.
func ParseFormation(name string) sim.Formation {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "diamond":
		return sim.FormationDiamond
	case "spread":
		return sim.FormationSpread
	case "box":
		return sim.FormationBox
	case "trail":
		return sim.FormationTrail
	default:
		return sim.FormationNone
	}
}

// parseClassMask accepts class names plus the "dropships" and "starships" groups.
func parseClassMask(names []string) (sim.Class, error) {
	var mask sim.Class
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "dropships":
			mask |= sim.ClassDropships
		case "starships":
			mask |= sim.ClassStarships
		default:
			c := sim.ParseClass(name)
			if c == 0 {
				return 0, fmt.Errorf("unknown class %q", name)
			}
			mask |= c
		}
	}
	return mask, nil
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func vec(v []float64) geom.Vec3 {
	var out [3]float64
	copy(out[:], v)
	return geom.V(out[0], out[1], out[2])
}
