package sim

import (
	"math"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// escortRange is how close a dropship must be to ride along on a normal jump.
const escortRange = 5e3

// hyperJump is one deferred region transfer.
type hyperJump struct {
	ship       *Ship
	region     *Region
	loc        geom.Vec3
	kind       Transition
	hyperdrive bool
	fcSrc      *Ship
	fcDst      *Ship
}

// RequestHyperJump queues a transfer of ship to loc in region. A nil region means the
// nearest space region. Jumps resolve together at the end of the frame.
func (s *Sim) RequestHyperJump(ship *Ship, region *Region, loc geom.Vec3, kind Transition, fcSrc, fcDst *Ship) {
	if ship == nil {
		s.log.Warn("hyper jump requested without ship")
		return
	}
	jump := hyperJump{ship: ship, region: region, loc: loc, kind: kind, fcSrc: fcSrc, fcDst: fcDst}
	if ship.drive != nil && ship.drive.Subtype() == DriveHyper {
		jump.hyperdrive = true
	}
	s.jumps = append(s.jumps, jump)
}

// PendingJumps reports the number of queued transfers.
func (s *Sim) PendingJumps() int { return len(s.jumps) }

func (s *Sim) resolveHyperList() {
	if len(s.jumps) == 0 {
		return
	}
	jumps := s.jumps
	s.jumps = nil
	player := s.PlayerShip()

	for _, jump := range jumps {
		ship := jump.ship
		if ship == nil || ship.Destroyed() || ship.region == nil {
			s.log.Warn("dropping hyper jump for missing ship")
			continue
		}
		from := ship.region
		dest := jump.region
		if dest == nil {
			dest = s.FindNearestSpaceRegion(ship)
		}
		if dest == nil {
			if len(s.regions) > 1 {
				s.log.Warn("unusual jump request", logging.String("ship", ship.name))
				dest = s.regions[1]
			} else {
				s.log.Warn("no destination for jump", logging.String("ship", ship.name))
				continue
			}
		}

		//1.- Fighters on deck ride inside the carrier.
		if ship.hangar != nil {
			for _, docked := range ship.hangar.Ships() {
				dest.InsertObject(docked)
				docked.MoveTo(jump.loc)
				docked.ClearContacts()
				s.logJump(docked, from, dest)
			}
		}

		//2.- Gather escorts before moving anything so the source list stays intact.
		if jump.kind == TransitionNone && !jump.hyperdrive {
			var riders []*Ship
			for _, other := range from.ships {
				if other == ship || !other.IsDropship() || other.phase < PhaseLaunch || other.IsDying() {
					continue
				}
				if other.loc.Distance(ship.loc) < escortRange {
					riders = append(riders, other)
				}
			}
			for _, rider := range riders {
				delta := rider.loc.Sub(ship.loc)
				dest.InsertObject(rider)
				rider.MoveTo(jump.loc.Add(delta))
				rider.ClearContacts()
				if jump.fcDst != nil {
					orientLike(rider, jump.fcDst)
				}
				s.logJump(rider, from, dest)
			}
		}

		//3.- Now the jump ship itself.
		dest.InsertObject(ship)
		ship.MoveTo(jump.loc)
		ship.ClearContacts()

		switch {
		case jump.fcSrc != nil:
			s.CreateExplosion(ship.loc, geom.Vec3{}, ExplosionQuantumFlash, 1, nil, dest)
			if jump.fcDst != nil {
				orientLike(ship, jump.fcDst)
			}
			ship.SetHelm(0, 0)
		case jump.kind == TransitionDropOrbit:
			ship.SetAbsoluteOrientation(0, math.Pi/4, 0)
			ship.SetVelocity(ship.Heading().Scale(1e3))
			ship.recordEvent(EventBreakOrbit, dest.name)
		case jump.kind == TransitionMakeOrbit:
			ship.LookAt(geom.Vec3{})
			ship.SetVelocity(ship.Heading().Scale(500))
			ship.recordEvent(EventMakeOrbit, dest.name)
		default:
			flash := ExplosionQuantumFlash
			if jump.hyperdrive {
				flash = ExplosionHyperFlash
			}
			s.CreateExplosion(ship.loc, geom.Vec3{}, flash, 1, nil, dest)
			ship.LookAt(geom.Vec3{})
			ship.SetVelocity(ship.Heading().Scale(500))
			ship.SetHelm(0, 0)
			ship.recordEvent(EventJump, dest.name)
		}
		s.logJump(ship, from, dest)
	}

	if player != nil && player.region != nil && player.region != s.active {
		player.region.SetPlayerShip(player)
		s.ActivateRegion(player.region)
	}
}

// orientLike points ship along the destination farcaster and sends it through at speed.
func orientLike(ship, gate *Ship) {
	ship.cam = gate.Cam()
	ship.cam.MoveTo(ship.loc)
	ship.SetVelocity(gate.Heading().Scale(500))
}

func (s *Sim) logJump(ship *Ship, from, to *Region) {
	s.log.Info("ship jumped",
		logging.String("ship", ship.name),
		logging.String("from", from.name),
		logging.String("to", to.name))
	s.telemetry.JumpResolved(ship.name, from.name, to.name)
}
