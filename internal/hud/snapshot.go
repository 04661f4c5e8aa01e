package hud

import (
	"strings"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/auth"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// ShipView is the HUD projection of one ship.
type ShipView struct {
	Name      string     `json:"name"`
	Class     string     `json:"class"`
	IFF       int        `json:"iff"`
	Position  [3]float64 `json:"pos"`
	Velocity  [3]float64 `json:"vel"`
	Integrity float64    `json:"integrity"`
	Shield    float64    `json:"shield"`
	Director  string     `json:"director,omitempty"`
	Target    string     `json:"target,omitempty"`
	Dying     bool       `json:"dying,omitempty"`
}

// Snapshot is one HUD frame of the active region.
type Snapshot struct {
	Frame   uint64     `json:"frame"`
	GameMs  int64      `json:"game_ms"`
	Mission int64      `json:"mission_ms"`
	Region  string     `json:"region"`
	Ships   []ShipView `json:"ships"`
}

// BuildSnapshot projects the active region of s. Without an active region the
// snapshot carries no ships.
func BuildSnapshot(s *sim.Sim, frame uint64) Snapshot {
	snap := Snapshot{Frame: frame, Ships: []ShipView{}}
	if s == nil {
		return snap
	}
	snap.GameMs = s.GameTime().Milliseconds()
	snap.Mission = s.MissionClock().Milliseconds()
	region := s.ActiveRegion()
	if region == nil {
		return snap
	}
	snap.Region = region.Name()
	for _, ship := range region.Ships() {
		loc, vel := ship.Location(), ship.Velocity()
		view := ShipView{
			Name:      ship.Name(),
			Class:     ship.Class().String(),
			IFF:       ship.IFF(),
			Position:  [3]float64{loc.X, loc.Y, loc.Z},
			Velocity:  [3]float64{vel.X, vel.Y, vel.Z},
			Integrity: ship.Integrity(),
			Shield:    ship.ShieldLevel(),
			Director:  ship.DirectorInfo(),
			Dying:     ship.IsDying(),
		}
		if tgt := ship.Target(); tgt != nil {
			view.Target = tgt.Base().Name()
		}
		snap.Ships = append(snap.Ships, view)
	}
	return snap
}

// For trims the snapshot to what the pass may see. Observers get it unchanged.
func (s Snapshot) For(pass *auth.Pass) Snapshot {
	if pass == nil || pass.Scope == auth.ScopeObserver {
		return s
	}
	out := s
	out.Ships = []ShipView{}
	for _, v := range s.Ships {
		if strings.EqualFold(v.Name, pass.Ship) {
			out.Ships = append(out.Ships, v)
		}
	}
	return out
}

// GameTime returns the snapshot game clock.
func (s Snapshot) GameTime() time.Duration { return time.Duration(s.GameMs) * time.Millisecond }
