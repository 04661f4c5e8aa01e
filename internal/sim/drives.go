package sim

import (
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// Farcaster warp states.
const (
	warpReady = iota
	warpPre
	warpPost
)

const (
	farcasterCaptureRange = 1000.0
	farcasterWarpLimit    = 5000.0
	farcasterExitSpeed    = 500.0
)

// Farcaster is a gate that throws ships flying through it to a paired gate.
type Farcaster struct {
	gate     *Ship
	dest     *Ship
	jumpship *Ship
	state    int
}

func newFarcaster(gate *Ship) *Farcaster { return &Farcaster{gate: gate} }

// Destination returns the paired gate or nil.
func (f *Farcaster) Destination() *Ship { return f.dest }

// SetDestination pairs the gate with another farcaster.
func (f *Farcaster) SetDestination(dest *Ship) {
	if dest == f.gate {
		return
	}
	f.dest = dest
	if dest != nil {
		dest.Observe(f)
	}
}

// Jumpship returns the ship currently in the warp sequence.
func (f *Farcaster) Jumpship() *Ship { return f.jumpship }

// ObjectDestroyed forgets a destroyed destination or jumpship.
func (f *Farcaster) ObjectDestroyed(obj Object) {
	if f.dest != nil && obj == Object(f.dest) {
		f.dest = nil
	}
	if f.jumpship != nil && obj == Object(f.jumpship) {
		f.jumpship = nil
		f.state = warpReady
	}
}

// ExecFrame captures ships at the throat, runs the warp and hands them to the sim.
func (f *Farcaster) ExecFrame(seconds float64) {
	if f.dest == nil {
		f.findDestination()
	}
	switch f.state {
	case warpReady:
		if f.dest == nil || f.gate.region == nil || !f.gate.powered {
			return
		}
		for _, ship := range f.gate.region.Ships() {
			if ship == f.gate || ship.IsStatic() || ship.InTransition() || ship.phase < PhaseActive {
				continue
			}
			if ship.Location().Distance(f.gate.Location()) < farcasterCaptureRange {
				f.jumpship = ship
				ship.Observe(f)
				f.state = warpPre
				break
			}
		}
	case warpPre:
		if f.jumpship == nil || f.jumpship.Life() == 0 {
			f.state = warpReady
			return
		}
		f.jumpship.warpFOV *= 1.5
		if f.jumpship.warpFOV >= farcasterWarpLimit {
			f.jump()
		}
	case warpPost:
		if f.jumpship == nil {
			f.state = warpReady
			return
		}
		f.jumpship.warpFOV *= 0.75
		if f.jumpship.warpFOV <= 1 {
			f.jumpship.warpFOV = 1
			f.jumpship.Ignore(f)
			f.jumpship = nil
			f.state = warpReady
		}
	}
}

func (f *Farcaster) findDestination() {
	sim := f.gate.sim
	if sim == nil || f.gate.element == nil {
		return
	}
	objectives := f.gate.element.Objectives()
	if len(objectives) == 0 || objectives[0].TargetName == "" {
		return
	}
	if dest := sim.FindShip(objectives[0].TargetName); dest != nil && dest.farcaster != nil {
		f.SetDestination(dest)
	}
}

func (f *Farcaster) jump() {
	sim := f.gate.sim
	ship := f.jumpship
	if sim == nil || ship == nil || f.dest == nil || f.dest.region == nil {
		f.state = warpReady
		return
	}
	sim.CreateExplosion(ship.Location(), geom.Vec3{}, ExplosionQuantumFlash, 1, nil, ship.region)
	dstLoc := f.dest.Location().Add(f.dest.Heading().Scale(f.dest.Radius() + ship.Radius() + farcasterCaptureRange))
	sim.RequestHyperJump(ship, f.dest.region, dstLoc, TransitionNone, f.gate, f.dest)
	if f.dest.farcaster != nil {
		f.dest.farcaster.Arrive(ship)
	}
	ship.recordEvent(EventFarcast, f.dest.Name())
	f.state = warpPost
}

// Arrive starts the exit warp for a ship thrown here by the paired gate.
func (f *Farcaster) Arrive(ship *Ship) {
	if ship == nil {
		return
	}
	if ship.Velocity().Length() < farcasterExitSpeed {
		ship.SetVelocity(f.gate.Heading().Scale(farcasterExitSpeed))
	}
	if f.jumpship == nil {
		f.jumpship = ship
		ship.Observe(f)
		f.state = warpPost
	}
}

// Quantum drive states.
const (
	driveIdle = iota
	driveCountdown
)

// quantumCountdown is the spool time before a quantum jump.
const quantumCountdown = 5.0

// QuantumDrive is a jump drive that moves its ship to another region.
type QuantumDrive struct {
	ship      *Ship
	subtype   int
	state     int
	countdown float64
	dstRegion *Region
	dstLoc    geom.Vec3
}

func newQuantumDrive(ship *Ship, subtype int) *QuantumDrive {
	return &QuantumDrive{ship: ship, subtype: subtype}
}

// Subtype returns DriveQuantum or DriveHyper.
func (q *QuantumDrive) Subtype() int { return q.subtype }

// Engaged reports a jump countdown in progress.
func (q *QuantumDrive) Engaged() bool { return q.state == driveCountdown }

// Countdown returns the seconds left before the jump.
func (q *QuantumDrive) Countdown() float64 { return q.countdown }

// SetDestination selects where the next jump goes.
func (q *QuantumDrive) SetDestination(region *Region, loc geom.Vec3) {
	q.dstRegion = region
	q.dstLoc = loc
}

// Engage starts the countdown to a jump.
func (q *QuantumDrive) Engage() bool {
	if q.dstRegion == nil || q.state != driveIdle || q.ship.InTransition() {
		return false
	}
	q.state = driveCountdown
	q.countdown = quantumCountdown
	return true
}

// Abort cancels a pending jump.
func (q *QuantumDrive) Abort() {
	q.state = driveIdle
	q.countdown = 0
}

// ExecFrame counts down and requests the jump.
func (q *QuantumDrive) ExecFrame(seconds float64) {
	if q.state != driveCountdown {
		return
	}
	q.countdown -= seconds
	if q.countdown > 0 {
		return
	}
	q.state = driveIdle
	if q.ship.sim == nil {
		return
	}
	q.ship.sim.RequestHyperJump(q.ship, q.dstRegion, q.dstLoc, TransitionNone, nil, nil)
	q.ship.recordEvent(EventQuantumJump, q.dstRegion.Name())
}

// Hangar is a carrier flight deck holding docked ships.
type Hangar struct {
	carrier *Ship
	slots   int
	deck    []*Ship
}

func newHangar(carrier *Ship, slots int) *Hangar {
	return &Hangar{carrier: carrier, slots: slots}
}

// Slots returns the deck capacity.
func (h *Hangar) Slots() int { return h.slots }

// Ships returns the ships on deck.
func (h *Hangar) Ships() []*Ship { return h.deck }

// Stow places a ship on deck without a landing, as at mission start.
func (h *Hangar) Stow(s *Ship) bool {
	if s == nil || s == h.carrier || len(h.deck) >= h.slots {
		return false
	}
	for _, existing := range h.deck {
		if existing == s {
			return true
		}
	}
	h.deck = append(h.deck, s)
	s.carrier = h.carrier
	s.phase = PhaseDocked
	s.throttle = 0
	s.throttleRequest = 0
	s.MoveTo(h.carrier.Location())
	s.vel = h.carrier.Velocity()
	return true
}

// Recover lands a ship on deck.
func (h *Hangar) Recover(s *Ship) bool {
	if !h.Stow(s) {
		return false
	}
	s.DropTarget()
	s.ClearRadioOrders()
	s.recordEvent(EventDock, h.carrier.Name())
	s.logger().Info("ship recovered", logging.String("ship", s.Name()), logging.String("carrier", h.carrier.Name()))
	return true
}

// Launch puts a docked ship back in flight ahead of the carrier.
func (h *Hangar) Launch(s *Ship) bool {
	for i, existing := range h.deck {
		if existing != s {
			continue
		}
		h.deck = append(h.deck[:i], h.deck[i+1:]...)
		fwd := h.carrier.Heading()
		s.cam = h.carrier.Cam()
		s.MoveTo(h.carrier.Location().Add(fwd.Scale(h.carrier.Radius() + s.Radius())))
		s.vel = h.carrier.Velocity().Add(fwd.Scale(100))
		s.phase = PhaseLaunch
		s.throttleRequest = 75
		return true
	}
	return false
}

// Release drops a ship from the deck without launching it.
func (h *Hangar) Release(s *Ship) {
	for i, existing := range h.deck {
		if existing == s {
			h.deck = append(h.deck[:i], h.deck[i+1:]...)
			return
		}
	}
}

// ExecFrame keeps docked ships riding on the carrier.
func (h *Hangar) ExecFrame(seconds float64) {
	kept := h.deck[:0]
	for _, s := range h.deck {
		if s.Life() == 0 {
			continue
		}
		kept = append(kept, s)
	}
	h.deck = kept
}
