package combat

import (
	"fmt"
	"math"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// HitSource enumerates how damage reached a ship.
type HitSource string

const (
	// HitDirect is a bolt, beam or missile striking the hull.
	HitDirect HitSource = "direct"
	// HitSplash is area damage from a warhead or an exploding ship.
	HitSplash HitSource = "splash"
	// HitCollision is damage from ramming another body or the ground.
	HitCollision HitSource = "collision"
)

// turretDamageScale is the share of a direct hit that reaches the hull when it lands on a turret.
const turretDamageScale = 0.3

// Hit describes one incoming damage event.
type Hit struct {
	//1.- Damage is the raw amount before any defences.
	Damage float64
	//2.- Source selects which defences apply.
	Source HitSource
	//3.- Beam hits bleed through shields at half the deflection.
	Beam bool
	//4.- Turret hits are mostly absorbed by the mount.
	Turret bool
}

// Defense captures the target state that reduces incoming damage.
type Defense struct {
	//1.- ShieldDeflection is the largest fraction of damage the shield can turn away.
	ShieldDeflection float64
	//2.- ShieldLevel is the current shield charge in the range [0, 1].
	ShieldLevel float64
	//3.- Integrity is the remaining hull strength, used to flag lethal hits.
	Integrity float64
}

// HitResult reports how a hit was absorbed.
type HitResult struct {
	Source    HitSource
	Raw       float64
	Deflected float64
	Applied   float64
	Lethal    bool
}

// ResolveHit applies shields and turret absorption to a hit. Splash and collision
// damage are never deflected.
func ResolveHit(hit Hit, def Defense) HitResult {
	result := HitResult{Source: hit.Source, Raw: hit.Damage}
	if !(hit.Damage > 0) {
		return result
	}
	damage := hit.Damage
	if hit.Source == HitDirect {
		//1.- Shields only turn away weapon hits.
		deflection := clampUnit(def.ShieldDeflection) * clampUnit(def.ShieldLevel)
		if hit.Beam {
			deflection *= 0.5
		}
		result.Deflected = damage * deflection
		damage -= result.Deflected
		if hit.Turret {
			damage *= turretDamageScale
		}
	}
	result.Applied = damage
	result.Lethal = def.Integrity > 0 && damage >= def.Integrity
	return result
}

// CollisionDamage converts a closing speed into hull damage. Speeds at or below the
// threshold are harmless; the excess is scaled by the mass ratio of the bodies.
func CollisionDamage(closingSpeed, threshold, otherMass, ownMass float64) float64 {
	over := closingSpeed - threshold
	if !(over > 0) || !(ownMass > 0) || !(otherMass > 0) {
		return 0
	}
	ratio := math.Min(otherMass/ownMass, 10)
	return over * ratio
}

// LoggingFields renders the hit breakdown as structured logging attributes.
func (r HitResult) LoggingFields() []logging.Field {
	return []logging.Field{
		logging.String("hit_source", string(r.Source)),
		logging.Float64("damage_raw", r.Raw),
		logging.Float64("damage_deflected", r.Deflected),
		logging.Float64("damage_applied", r.Applied),
		logging.Bool("lethal", r.Lethal),
	}
}

// Summary renders the result for radio and HUD text.
func (r HitResult) Summary() string {
	return fmt.Sprintf("%s %.2f (%.2f deflected)", r.Source, formatDamage(r.Applied), formatDamage(r.Deflected))
}

func formatDamage(amount float64) float64 {
	//1.- Clamp floating point noise to zero for readability.
	if math.Abs(amount) < 1e-6 {
		return 0
	}
	return amount
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
