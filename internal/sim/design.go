package sim

import "github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"

// Guidance levels for weapon designs.
const (
	GuidanceNone = iota
	GuidanceHoming
	GuidanceSmart
)

// WeaponDesign is the static description of a weapon system. Distances are meters,
// angles radians, times seconds.
type WeaponDesign struct {
	Name    string
	Group   string
	Primary bool

	Damage       float64
	Speed        float64
	MinRange     float64
	MaxRange     float64
	MaxTrack     float64
	Life         float64
	LethalRadius float64
	Length       float64

	Charge      float64
	MinCharge   float64
	Capacity    float64
	RefireDelay float64
	SalvoDelay  float64

	Ammo     int
	Ripple   int
	NBarrels int
	Syncro   bool

	Guided     int
	SelfAiming bool
	Beam       bool
	Drone      bool
	Probe      bool
	Flak       bool
	DecoyType  Class
	Integrity  float64
	Agility    float64

	SlewRate   float64
	FiringCone float64
	AzMax      float64
	AzMin      float64
	ElMax      float64
	ElMin      float64
	AzRest     float64
	ElRest     float64
	Spread     float64

	TargetType Class
	Muzzles    []geom.Vec3
	Eject      geom.Vec3
	Value      int
}

// IsMissile reports whether shots from this design count as missiles for statistics.
func (d *WeaponDesign) IsMissile() bool { return d != nil && !d.Primary && !d.Beam }

// Barrels returns the barrel count, defaulting to one.
func (d *WeaponDesign) Barrels() int {
	if d == nil || d.NBarrels < 1 {
		return 1
	}
	return d.NBarrels
}

// ExplosionSpec schedules one explosion during a death spiral.
type ExplosionSpec struct {
	Type  int
	Time  float64
	Loc   geom.Vec3
	Scale float64
	Final bool
}

// DebrisSpec describes fragments thrown off when a ship is destroyed.
type DebrisSpec struct {
	Count    int
	Mass     float64
	Speed    float64
	Life     float64
	Drag     float64
	FireType int
	Loc      geom.Vec3
	FireLocs []geom.Vec3
}

// MountSpec places a weapon on a ship design.
type MountSpec struct {
	Weapon *WeaponDesign
	Group  string
	Loc    geom.Vec3
}

// Quantum drive subtypes.
const (
	DriveNone = iota
	DriveQuantum
	DriveHyper
)

// ShipDesign is the static description of a ship class.
type ShipDesign struct {
	Name        string
	DisplayName string
	Class       Class
	Value       int

	Integrity float64
	Mass      float64
	Radius    float64
	Agility   float64
	VLimit    float64
	Thrust    float64
	Power     float64
	Shield    float64

	SensorRange float64
	PCS         float64
	ACS         float64
	CommitRange float64
	AvoidTime   float64

	SplashRadius    float64
	ExplosionScale  float64
	DeathSpiralTime float64
	Explosions      []ExplosionSpec
	Debris          []DebrisSpec

	Weapons      []MountSpec
	HangarSlots  int
	Farcaster    bool
	QuantumDrive int
	AutoRoll     int
}

// DefaultCommitRange is used when a design leaves CommitRange unset.
const DefaultCommitRange = 80e3
