package catalog

import (
	"fmt"
	"strings"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

type fileRecord struct {
	Weapons  []weaponRecord  `mapstructure:"weapons"`
	Ships    []shipRecord    `mapstructure:"ships"`
	Missions []missionRecord `mapstructure:"missions"`
}

// weaponRecord mirrors sim.WeaponDesign with angles in degrees and names for enums.
type weaponRecord struct {
	Name    string `mapstructure:"name"`
	Group   string `mapstructure:"group"`
	Primary bool   `mapstructure:"primary"`

	Damage       float64 `mapstructure:"damage"`
	Speed        float64 `mapstructure:"speed"`
	MinRange     float64 `mapstructure:"minRange"`
	MaxRange     float64 `mapstructure:"maxRange"`
	MaxTrack     float64 `mapstructure:"maxTrack"`
	Life         float64 `mapstructure:"life"`
	LethalRadius float64 `mapstructure:"lethalRadius"`
	Length       float64 `mapstructure:"length"`

	Charge      float64 `mapstructure:"charge"`
	MinCharge   float64 `mapstructure:"minCharge"`
	Capacity    float64 `mapstructure:"capacity"`
	RefireDelay float64 `mapstructure:"refireDelay"`
	SalvoDelay  float64 `mapstructure:"salvoDelay"`

	Ammo     int  `mapstructure:"ammo"`
	Ripple   int  `mapstructure:"ripple"`
	NBarrels int  `mapstructure:"nBarrels"`
	Syncro   bool `mapstructure:"syncro"`

	Guided     string  `mapstructure:"guided"`
	SelfAiming bool    `mapstructure:"selfAiming"`
	Beam       bool    `mapstructure:"beam"`
	Drone      bool    `mapstructure:"drone"`
	Probe      bool    `mapstructure:"probe"`
	Flak       bool    `mapstructure:"flak"`
	Decoy      string  `mapstructure:"decoy"`
	Integrity  float64 `mapstructure:"integrity"`
	Agility    float64 `mapstructure:"agility"`

	SlewRate   float64 `mapstructure:"slewRate"`
	FiringCone float64 `mapstructure:"firingCone"`
	AzMax      float64 `mapstructure:"azMax"`
	AzMin      float64 `mapstructure:"azMin"`
	ElMax      float64 `mapstructure:"elMax"`
	ElMin      float64 `mapstructure:"elMin"`
	AzRest     float64 `mapstructure:"azRest"`
	ElRest     float64 `mapstructure:"elRest"`
	Spread     float64 `mapstructure:"spread"`

	Targets []string    `mapstructure:"targets"`
	Muzzles [][]float64 `mapstructure:"muzzles"`
	Eject   []float64   `mapstructure:"eject"`
	Value   int         `mapstructure:"value"`
}

func (r weaponRecord) design() (*sim.WeaponDesign, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("weapon without name")
	}
	d := &sim.WeaponDesign{
		Name:         r.Name,
		Group:        r.Group,
		Primary:      r.Primary,
		Damage:       r.Damage,
		Speed:        r.Speed,
		MinRange:     r.MinRange,
		MaxRange:     r.MaxRange,
		MaxTrack:     r.MaxTrack,
		Life:         r.Life,
		LethalRadius: r.LethalRadius,
		Length:       r.Length,
		Charge:       r.Charge,
		MinCharge:    r.MinCharge,
		Capacity:     r.Capacity,
		RefireDelay:  r.RefireDelay,
		SalvoDelay:   r.SalvoDelay,
		Ammo:         r.Ammo,
		Ripple:       r.Ripple,
		NBarrels:     r.NBarrels,
		Syncro:       r.Syncro,
		SelfAiming:   r.SelfAiming,
		Beam:         r.Beam,
		Drone:        r.Drone,
		Probe:        r.Probe,
		Flak:         r.Flak,
		Integrity:    r.Integrity,
		Agility:      r.Agility,
		SlewRate:     radians(r.SlewRate),
		FiringCone:   radians(r.FiringCone),
		AzMax:        radians(r.AzMax),
		AzMin:        radians(r.AzMin),
		ElMax:        radians(r.ElMax),
		ElMin:        radians(r.ElMin),
		AzRest:       radians(r.AzRest),
		ElRest:       radians(r.ElRest),
		Spread:       radians(r.Spread),
		Eject:        vec(r.Eject),
		Value:        r.Value,
	}
	switch strings.ToLower(strings.TrimSpace(r.Guided)) {
	case "", "none":
		d.Guided = sim.GuidanceNone
	case "homing":
		d.Guided = sim.GuidanceHoming
	case "smart":
		d.Guided = sim.GuidanceSmart
	default:
		return nil, fmt.Errorf("weapon %s: unknown guidance %q", r.Name, r.Guided)
	}
	if r.Decoy != "" {
		if d.DecoyType = sim.ParseClass(r.Decoy); d.DecoyType == 0 {
			return nil, fmt.Errorf("weapon %s: unknown decoy class %q", r.Name, r.Decoy)
		}
	}
	mask, err := parseClassMask(r.Targets)
	if err != nil {
		return nil, fmt.Errorf("weapon %s: %w", r.Name, err)
	}
	d.TargetType = mask
	for _, m := range r.Muzzles {
		d.Muzzles = append(d.Muzzles, vec(m))
	}
	return d, nil
}

type mountRecord struct {
	Weapon string    `mapstructure:"weapon"`
	Group  string    `mapstructure:"group"`
	Loc    []float64 `mapstructure:"loc"`
}

type explosionRecord struct {
	Type  int       `mapstructure:"type"`
	Time  float64   `mapstructure:"time"`
	Loc   []float64 `mapstructure:"loc"`
	Scale float64   `mapstructure:"scale"`
	Final bool      `mapstructure:"final"`
}

type debrisRecord struct {
	Count    int       `mapstructure:"count"`
	Mass     float64   `mapstructure:"mass"`
	Speed    float64   `mapstructure:"speed"`
	Life     float64   `mapstructure:"life"`
	Drag     float64   `mapstructure:"drag"`
	FireType int       `mapstructure:"fireType"`
	Loc      []float64 `mapstructure:"loc"`
}

type shipRecord struct {
	Name        string `mapstructure:"name"`
	DisplayName string `mapstructure:"displayName"`
	Class       string `mapstructure:"class"`
	Value       int    `mapstructure:"value"`

	Integrity float64 `mapstructure:"integrity"`
	Mass      float64 `mapstructure:"mass"`
	Radius    float64 `mapstructure:"radius"`
	Agility   float64 `mapstructure:"agility"`
	VLimit    float64 `mapstructure:"vLimit"`
	Thrust    float64 `mapstructure:"thrust"`
	Power     float64 `mapstructure:"power"`
	Shield    float64 `mapstructure:"shield"`

	SensorRange float64 `mapstructure:"sensorRange"`
	PCS         float64 `mapstructure:"pcs"`
	ACS         float64 `mapstructure:"acs"`
	CommitRange float64 `mapstructure:"commitRange"`
	AvoidTime   float64 `mapstructure:"avoidTime"`

	SplashRadius    float64           `mapstructure:"splashRadius"`
	ExplosionScale  float64           `mapstructure:"explosionScale"`
	DeathSpiralTime float64           `mapstructure:"deathSpiralTime"`
	Explosions      []explosionRecord `mapstructure:"explosions"`
	Debris          []debrisRecord    `mapstructure:"debris"`

	Weapons      []mountRecord `mapstructure:"weapons"`
	HangarSlots  int           `mapstructure:"hangarSlots"`
	Farcaster    bool          `mapstructure:"farcaster"`
	QuantumDrive string        `mapstructure:"quantumDrive"`
	AutoRoll     int           `mapstructure:"autoRoll"`
}

func (r shipRecord) design(weapons map[string]*sim.WeaponDesign) (*sim.ShipDesign, error) {
	class := sim.ParseClass(r.Class)
	if class == 0 {
		return nil, fmt.Errorf("ship %s: unknown class %q", r.Name, r.Class)
	}
	d := &sim.ShipDesign{
		Name:            r.Name,
		DisplayName:     r.DisplayName,
		Class:           class,
		Value:           r.Value,
		Integrity:       r.Integrity,
		Mass:            r.Mass,
		Radius:          r.Radius,
		Agility:         r.Agility,
		VLimit:          r.VLimit,
		Thrust:          r.Thrust,
		Power:           r.Power,
		Shield:          r.Shield,
		SensorRange:     r.SensorRange,
		PCS:             r.PCS,
		ACS:             r.ACS,
		CommitRange:     r.CommitRange,
		AvoidTime:       r.AvoidTime,
		SplashRadius:    r.SplashRadius,
		ExplosionScale:  r.ExplosionScale,
		DeathSpiralTime: r.DeathSpiralTime,
		HangarSlots:     r.HangarSlots,
		Farcaster:       r.Farcaster,
		AutoRoll:        r.AutoRoll,
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	switch strings.ToLower(strings.TrimSpace(r.QuantumDrive)) {
	case "", "none":
		d.QuantumDrive = sim.DriveNone
	case "quantum":
		d.QuantumDrive = sim.DriveQuantum
	case "hyper":
		d.QuantumDrive = sim.DriveHyper
	default:
		return nil, fmt.Errorf("ship %s: unknown quantum drive %q", r.Name, r.QuantumDrive)
	}
	for _, e := range r.Explosions {
		d.Explosions = append(d.Explosions, sim.ExplosionSpec{Type: e.Type, Time: e.Time, Loc: vec(e.Loc), Scale: e.Scale, Final: e.Final})
	}
	for _, b := range r.Debris {
		d.Debris = append(d.Debris, sim.DebrisSpec{
			Count:    b.Count,
			Mass:     b.Mass,
			Speed:    b.Speed,
			Life:     b.Life,
			Drag:     b.Drag,
			FireType: b.FireType,
			Loc:      vec(b.Loc),
		})
	}
	for _, m := range r.Weapons {
		w, ok := weapons[key(m.Weapon)]
		if !ok {
			return nil, fmt.Errorf("ship %s: %w %q", r.Name, ErrUnknownWeapon, m.Weapon)
		}
		d.Weapons = append(d.Weapons, sim.MountSpec{Weapon: w, Group: m.Group, Loc: vec(m.Loc)})
	}
	return d, nil
}

type navRecord struct {
	Action    string    `mapstructure:"action"`
	Region    string    `mapstructure:"region"`
	Location  []float64 `mapstructure:"location"`
	Target    string    `mapstructure:"target"`
	Formation string    `mapstructure:"formation"`
	Speed     float64   `mapstructure:"speed"`
	HoldTime  float64   `mapstructure:"holdTime"`
	EMCON     int       `mapstructure:"emcon"`
	Farcast   bool      `mapstructure:"farcast"`
	Priority  int       `mapstructure:"priority"`
}

func (n navRecord) instruction() *sim.Instruction {
	instr := sim.NewInstruction(ParseAction(n.Action), n.Region, vec(n.Location))
	instr.TargetName = n.Target
	instr.Formation = ParseFormation(n.Formation)
	instr.Speed = n.Speed
	instr.HoldTime = n.HoldTime
	instr.EMCON = n.EMCON
	instr.Farcast = n.Farcast
	instr.Priority = n.Priority
	return instr
}

type asteroidRecord struct {
	Type     int       `mapstructure:"type"`
	Location []float64 `mapstructure:"location"`
	Mass     float64   `mapstructure:"mass"`
}

type regionRecord struct {
	Name      string           `mapstructure:"name"`
	Type      string           `mapstructure:"type"`
	Location  []float64        `mapstructure:"location"`
	Active    bool             `mapstructure:"active"`
	Asteroids []asteroidRecord `mapstructure:"asteroids"`
}

type elementRecord struct {
	Name       string      `mapstructure:"name"`
	IFF        int         `mapstructure:"iff"`
	Design     string      `mapstructure:"design"`
	Count      int         `mapstructure:"count"`
	Region     string      `mapstructure:"region"`
	Location   []float64   `mapstructure:"location"`
	Heading    float64     `mapstructure:"heading"`
	Player     int         `mapstructure:"player"`
	Commander  string      `mapstructure:"commander"`
	Squadron   bool        `mapstructure:"squadron"`
	Carrier    string      `mapstructure:"carrier"`
	HoldTime   float64     `mapstructure:"holdTime"`
	EMCON      int         `mapstructure:"emcon"`
	FlightPlan []navRecord `mapstructure:"flightPlan"`
	Objectives []navRecord `mapstructure:"objectives"`
}

type missionRecord struct {
	Name     string          `mapstructure:"name"`
	Seed     string          `mapstructure:"seed"`
	Regions  []regionRecord  `mapstructure:"regions"`
	Elements []elementRecord `mapstructure:"elements"`
}

func (m missionRecord) validate(ships map[string]*sim.ShipDesign) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("mission without name")
	}
	regions := make(map[string]bool, len(m.Regions))
	for _, r := range m.Regions {
		regions[key(r.Name)] = true
	}
	for _, e := range m.Elements {
		if _, ok := ships[key(e.Design)]; !ok {
			return fmt.Errorf("mission %s element %s: %w %q", m.Name, e.Name, ErrUnknownShip, e.Design)
		}
		if !regions[key(e.Region)] {
			return fmt.Errorf("mission %s element %s: unknown region %q", m.Name, e.Name, e.Region)
		}
		for _, n := range append(append([]navRecord(nil), e.FlightPlan...), e.Objectives...) {
			if ParseAction(n.Action) == sim.ActionNone {
				return fmt.Errorf("mission %s element %s: unknown action %q", m.Name, e.Name, n.Action)
			}
		}
	}
	return nil
}
