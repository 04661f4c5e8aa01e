package sim

import (
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// splash is one deferred area-damage record.
type splash struct {
	region  *Region
	loc     geom.Vec3
	damage  float64
	rng     float64
	owner   string
	missile bool
}

// CreateSplashDamage queues the blast of a destroyed ship: a quarter of its design
// integrity over its splash radius.
func (s *Sim) CreateSplashDamage(ship *Ship) {
	if ship == nil || ship.region == nil || ship.design.SplashRadius <= 1 {
		return
	}
	s.splashes = append(s.splashes, splash{
		region: ship.region,
		loc:    ship.loc,
		damage: ship.design.Integrity / 4,
		rng:    ship.design.SplashRadius,
		owner:  ship.name,
	})
}

// CreateSplashDamageFromShot queues the blast of a detonating warhead over its lethal radius.
func (s *Sim) CreateSplashDamageFromShot(shot *Shot) {
	if shot == nil || shot.region == nil {
		return
	}
	damage := max(shot.Damage(), shot.design.Damage)
	s.CreateExplosion(shot.loc, geom.Vec3{}, ExplosionShotBlast, 20, nil, shot.region)
	if shot.design.LethalRadius <= 1 {
		return
	}
	s.splashes = append(s.splashes, splash{
		region:  shot.region,
		loc:     shot.loc,
		damage:  damage,
		rng:     shot.design.LethalRadius,
		owner:   shot.ownerName,
		missile: shot.IsMissile(),
	})
}

// QueueSplash queues area damage at an arbitrary point.
func (s *Sim) QueueSplash(r *Region, loc geom.Vec3, damage, rng float64, owner string, missile bool) {
	if r == nil || rng <= 1 {
		return
	}
	s.splashes = append(s.splashes, splash{region: r, loc: loc, damage: damage, rng: rng, owner: owner, missile: missile})
}

// PendingSplashes reports the number of queued blasts.
func (s *Sim) PendingSplashes() int { return len(s.splashes) }

func (s *Sim) resolveSplashList() {
	if len(s.splashes) == 0 {
		return
	}
	splashes := s.splashes
	s.splashes = nil

	for _, sp := range splashes {
		if sp.region == nil {
			continue
		}
		for _, ship := range append([]*Ship(nil), sp.region.ships...) {
			if ship.life == 0 {
				continue
			}
			hit := combat.NewSplashHit(sp.owner, ship.name, sp.damage, sp.rng, ship.loc.Distance(sp.loc), sp.missile)
			if hit.Damage <= 0 {
				continue
			}
			if !ship.invulnerable {
				ship.InflictDamage(hit.Damage, nil, combat.HitSplash)
			}
			s.log.Debug("splash damage", hit.LoggingFields()...)
			s.telemetry.SplashApplied(hit)

			if !ship.InTransition() && ship.integrity < 1 {
				s.creditKill(sp.owner, ship, sp.missile)
				ship.DeathSpiral()
			}
		}

		for _, drone := range sp.region.drones {
			if drone.life == 0 {
				continue
			}
			dmg := combat.SplashDamageAt(sp.damage, sp.rng, drone.loc.Distance(sp.loc))
			if dmg <= 0 {
				continue
			}
			drone.InflictDamage(dmg)
			if drone.integrity < 1 {
				s.CreateExplosion(drone.loc, drone.vel, ExplosionLargeExplosion, 1, nil, sp.region)
				drone.SetLife(0)
				s.log.Debug("drone destroyed by splash", logging.String("drone", drone.name), logging.String("owner", sp.owner))
			}
		}
	}
}
