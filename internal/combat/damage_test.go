package combat

import (
	"math"
	"testing"
)

func TestResolveHitShieldDeflectsDirectDamage(t *testing.T) {
	//1.- A full shield at 40% deflection turns away 40% of a bolt.
	result := ResolveHit(Hit{Damage: 100, Source: HitDirect}, Defense{ShieldDeflection: 0.4, ShieldLevel: 1, Integrity: 500})
	if math.Abs(result.Applied-60) > 1e-9 || math.Abs(result.Deflected-40) > 1e-9 {
		t.Fatalf("expected 60 applied and 40 deflected, got %+v", result)
	}
	if result.Lethal {
		t.Fatalf("expected non-lethal hit")
	}

	//2.- Beams bleed through at half the deflection.
	beam := ResolveHit(Hit{Damage: 100, Source: HitDirect, Beam: true}, Defense{ShieldDeflection: 0.4, ShieldLevel: 1})
	if math.Abs(beam.Applied-80) > 1e-9 {
		t.Fatalf("expected beam to apply 80, got %.2f", beam.Applied)
	}
}

func TestResolveHitSplashIgnoresShields(t *testing.T) {
	result := ResolveHit(Hit{Damage: 50, Source: HitSplash}, Defense{ShieldDeflection: 0.9, ShieldLevel: 1, Integrity: 40})
	if result.Applied != 50 || result.Deflected != 0 {
		t.Fatalf("expected splash to bypass shields, got %+v", result)
	}
	if !result.Lethal {
		t.Fatalf("expected lethal flag when damage exceeds integrity")
	}
}

func TestResolveHitTurretAbsorbs(t *testing.T) {
	result := ResolveHit(Hit{Damage: 100, Source: HitDirect, Turret: true}, Defense{})
	if math.Abs(result.Applied-30) > 1e-9 {
		t.Fatalf("expected turret hit to apply 30, got %.2f", result.Applied)
	}
}

func TestCollisionDamageThreshold(t *testing.T) {
	if CollisionDamage(5, 10, 1000, 1000) != 0 {
		t.Fatalf("expected no damage below the threshold")
	}
	//1.- The mass ratio is capped at ten.
	if got := CollisionDamage(30, 10, 1e9, 1); got != 200 {
		t.Fatalf("expected capped collision damage 200, got %.2f", got)
	}
	if got := CollisionDamage(30, 10, 500, 1000); got != 10 {
		t.Fatalf("expected 10 damage from a lighter body, got %.2f", got)
	}
}
