package combat

import (
	"math"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// SplashDamageAt returns the linear falloff damage at distance d from an epicentre.
// The value is base at the epicentre, strictly decreasing with distance and zero at or beyond rng.
func SplashDamageAt(base, rng, d float64) float64 {
	if !(rng > 0) || !(base > 0) || math.IsNaN(d) {
		return 0
	}
	if d < 0 {
		d = 0
	}
	if d >= rng {
		return 0
	}
	return base * (1 - d/rng)
}

// SplashHit records one application of splash damage for logging and telemetry.
type SplashHit struct {
	Owner    string
	Target   string
	Base     float64
	Range    float64
	Distance float64
	Damage   float64
	Missile  bool
}

// NewSplashHit resolves the falloff for one target and captures the inputs alongside the result.
func NewSplashHit(owner, target string, base, rng, distance float64, missile bool) SplashHit {
	return SplashHit{
		Owner:    owner,
		Target:   target,
		Base:     base,
		Range:    rng,
		Distance: distance,
		Damage:   SplashDamageAt(base, rng, distance),
		Missile:  missile,
	}
}

// LoggingFields renders the hit as structured logging attributes.
func (h SplashHit) LoggingFields() []logging.Field {
	return []logging.Field{
		logging.String("owner", h.Owner),
		logging.String("target", h.Target),
		logging.Float64("base_damage", h.Base),
		logging.Float64("range", h.Range),
		logging.Float64("distance", h.Distance),
		logging.Float64("damage", h.Damage),
		logging.Bool("missile", h.Missile),
	}
}
