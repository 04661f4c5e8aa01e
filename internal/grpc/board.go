package grpc

import (
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/hud"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// Status is the last published view of the running mission.
type Status struct {
	Mission  string
	Seed     string
	Active   bool
	Frame    uint64
	Updated  time.Time
	Snapshot hud.Snapshot
}

// Board holds the status served to RPC clients. The frame loop writes it and
// RPC handlers read copies, so the sim itself is never touched off-loop.
type Board struct {
	mu     sync.RWMutex
	status Status
	health *health.Server
	now    func() time.Time
}

// NewBoard builds a board that mirrors mission activity into the health server.
func NewBoard(h *health.Server) *Board {
	b := &Board{health: h, now: time.Now}
	b.setHealth(false)
	return b
}

// Update replaces the published status.
func (b *Board) Update(st Status) {
	if b == nil {
		return
	}
	if st.Updated.IsZero() {
		st.Updated = b.now()
	}
	b.mu.Lock()
	changed := b.status.Active != st.Active
	b.status = st
	b.mu.Unlock()
	if changed {
		b.setHealth(st.Active)
	}
}

// Status returns a copy of the published status.
func (b *Board) Status() Status {
	if b == nil {
		return Status{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := b.status
	out.Snapshot.Ships = append([]hud.ShipView(nil), b.status.Snapshot.Ships...)
	return out
}

// Ship returns the published view of one ship.
func (b *Board) Ship(name string) (hud.ShipView, bool) {
	if b == nil {
		return hud.ShipView{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, v := range b.status.Snapshot.Ships {
		if v.Name == name {
			return v, true
		}
	}
	return hud.ShipView{}, false
}

// Feed returns a frame hook that republishes the status once per interval of
// frame time.
func (b *Board) Feed(s *sim.Sim, interval time.Duration) func(frame uint64, step time.Duration) {
	var since time.Duration
	first := true
	return func(frame uint64, step time.Duration) {
		since += step
		if !first && since < interval {
			return
		}
		first = false
		since = 0
		b.Update(CaptureStatus(s, frame))
	}
}

// CaptureStatus reads the status of s. It must run on the frame loop goroutine.
func CaptureStatus(s *sim.Sim, frame uint64) Status {
	st := Status{Frame: frame, Snapshot: hud.BuildSnapshot(s, frame)}
	if s == nil {
		return st
	}
	st.Seed = s.Seed()
	st.Active = s.IsActive()
	if m := s.Mission(); m != nil {
		st.Mission = m.Name
	}
	return st
}

func (b *Board) setHealth(active bool) {
	if b.health == nil {
		return
	}
	state := healthpb.HealthCheckResponse_NOT_SERVING
	if active {
		state = healthpb.HealthCheckResponse_SERVING
	}
	b.health.SetServingStatus(ServiceName, state)
	b.health.SetServingStatus("", state)
}
