package sim

import (
	"strings"
	"time"
)

// Kind discriminates the concrete object types hosted by a region.
type Kind int

const (
	KindShip Kind = iota + 1
	KindShot
	KindDrone
	KindDebris
	KindAsteroid
	KindExplosion
)

func (k Kind) String() string {
	switch k {
	case KindShip:
		return "ship"
	case KindShot:
		return "shot"
	case KindDrone:
		return "drone"
	case KindDebris:
		return "debris"
	case KindAsteroid:
		return "asteroid"
	case KindExplosion:
		return "explosion"
	default:
		return "unknown"
	}
}

// Class is the ship classification bitmask.
type Class uint32

const (
	ClassDrone       Class = 0x0001
	ClassFighter     Class = 0x0002
	ClassAttack      Class = 0x0004
	ClassLCA         Class = 0x0008
	ClassCourier     Class = 0x0010
	ClassCargo       Class = 0x0020
	ClassCorvette    Class = 0x0040
	ClassFreighter   Class = 0x0080
	ClassFrigate     Class = 0x0100
	ClassDestroyer   Class = 0x0200
	ClassCruiser     Class = 0x0400
	ClassBattleship  Class = 0x0800
	ClassCarrier     Class = 0x1000
	ClassDreadnaught Class = 0x2000
	ClassStation     Class = 0x4000
	ClassFarcaster   Class = 0x8000
	ClassMine        Class = 0x00010000
	ClassComsat      Class = 0x00020000
	ClassDefsat      Class = 0x00040000
	ClassSwacs       Class = 0x00080000
	ClassBuilding    Class = 0x00100000
	ClassFactory     Class = 0x00200000
	ClassSAM         Class = 0x00400000
	ClassEWR         Class = 0x00800000
	ClassC3I         Class = 0x01000000
	ClassStarbase    Class = 0x02000000

	ClassDropships   Class = 0x0000000f
	ClassStarships   Class = 0x0000fff0
	ClassSpaceUnits  Class = 0x000f0000
	ClassGroundUnits Class = 0xfff00000
)

var classNames = []struct {
	class Class
	name  string
}{
	{ClassDrone, "drone"}, {ClassFighter, "fighter"}, {ClassAttack, "attack"}, {ClassLCA, "lca"},
	{ClassCourier, "courier"}, {ClassCargo, "cargo"}, {ClassCorvette, "corvette"}, {ClassFreighter, "freighter"},
	{ClassFrigate, "frigate"}, {ClassDestroyer, "destroyer"}, {ClassCruiser, "cruiser"}, {ClassBattleship, "battleship"},
	{ClassCarrier, "carrier"}, {ClassDreadnaught, "dreadnaught"}, {ClassStation, "station"}, {ClassFarcaster, "farcaster"},
	{ClassMine, "mine"}, {ClassComsat, "comsat"}, {ClassDefsat, "defsat"}, {ClassSwacs, "swacs"},
	{ClassBuilding, "building"}, {ClassFactory, "factory"}, {ClassSAM, "sam"}, {ClassEWR, "ewr"},
	{ClassC3I, "c3i"}, {ClassStarbase, "starbase"},
}

func (c Class) String() string {
	for _, entry := range classNames {
		if entry.class == c {
			return entry.name
		}
	}
	return "unknown"
}

// ParseClass maps a classification name to its bit. Unknown names yield zero.
func ParseClass(name string) Class {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, entry := range classNames {
		if entry.name == name {
			return entry.class
		}
	}
	return 0
}

// Sensor and track tunables shared by every region.
const (
	// SensorThreshold is the minimum return strength that counts as a lock.
	SensorThreshold = 0.25
	// DefaultTrackUpdate is the minimum spacing between stored track points.
	DefaultTrackUpdate = 500 * time.Millisecond
	// DefaultTrackLength bounds the per-contact position history.
	DefaultTrackLength = 20
	// DefaultTrackAge is how long a contact survives without a fresh detection.
	DefaultTrackAge = 10 * time.Second
)

// IFFUnknown is reported for contacts whose side cannot be resolved.
const IFFUnknown = 1000

// MaxIFF is the highest IFF code with its own track list.
const MaxIFF = 4

// ClampIFF folds an IFF code into the track database range.
func ClampIFF(iff int) int {
	if iff < 0 {
		return 0
	}
	if iff > MaxIFF {
		return MaxIFF
	}
	return iff
}

// Transition enumerates the scripted states a ship may be in between normal flight.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionDropCam
	TransitionDropOrbit
	TransitionMakeOrbit
	TransitionTimeSkip
	TransitionDeathSpiral
	TransitionDead
)

// FlightPhase tracks launch and recovery state.
type FlightPhase int

const (
	PhaseDocked FlightPhase = iota
	PhaseAlert
	PhaseLocked
	PhaseLaunch
	PhaseTakeoff
	PhaseActive
	PhaseApproach
	PhaseRecovery
	PhaseDocking
)

// SystemStatus grades the health of a ship system.
type SystemStatus int

const (
	SystemDestroyed SystemStatus = iota
	SystemCritical
	SystemDegraded
	SystemNominal
	SystemMaintenance
)

// Explosion types spawned by the simulation.
const (
	ExplosionShotBlast = iota + 1
	ExplosionHitSpark
	ExplosionSmallExplosion
	ExplosionLargeExplosion
	ExplosionLargeBurst
	ExplosionNukeFlash
	ExplosionQuantumFlash
	ExplosionHyperFlash
	ExplosionSmallFire
	ExplosionSmokeTrail
)
