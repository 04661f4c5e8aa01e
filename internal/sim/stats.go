package sim

import (
	"sort"
	"strings"
	"time"
)

// EventKind names an entry in a ship's mission log.
type EventKind string

const (
	EventLaunch      EventKind = "launch"
	EventDock        EventKind = "dock"
	EventJump        EventKind = "jump"
	EventQuantumJump EventKind = "quantum_jump"
	EventFarcast     EventKind = "farcast"
	EventBreakOrbit  EventKind = "break_orbit"
	EventMakeOrbit   EventKind = "make_orbit"
	EventGunsKill    EventKind = "guns_kill"
	EventMissileKill EventKind = "missile_kill"
	EventDestroyed   EventKind = "destroyed"
	EventCollision   EventKind = "collision"
)

// StatEvent is one timestamped mission log entry.
type StatEvent struct {
	Time time.Duration
	Kind EventKind
	Info string
}

// ShipStats is the per-ship mission score ledger.
type ShipStats struct {
	Name         string
	Design       string
	Element      string
	ElementIndex int
	IFF          int
	Player       bool

	GunKills      int
	MissileKills  int
	Deaths        int
	Collisions    int
	GunShots      int
	GunHits       int
	MissileShots  int
	MissileHits   int
	Points        int
	CommandPoints int

	Events []StatEvent
}

// AddEvent appends to the log and bumps the matching counter.
func (s *ShipStats) AddEvent(at time.Duration, kind EventKind, info string) {
	if s == nil {
		return
	}
	s.Events = append(s.Events, StatEvent{Time: at, Kind: kind, Info: info})
	switch kind {
	case EventGunsKill:
		s.GunKills++
	case EventMissileKill:
		s.MissileKills++
	case EventDestroyed:
		s.Deaths++
	case EventCollision:
		s.Collisions++
	}
}

// HasEvent reports whether an event of the given kind was logged.
func (s *ShipStats) HasEvent(kind EventKind) bool {
	if s == nil {
		return false
	}
	for _, e := range s.Events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// statsLedger owns the ShipStats of one mission keyed by case-insensitive ship name.
type statsLedger struct {
	byName map[string]*ShipStats
	order  []*ShipStats
}

func newStatsLedger() *statsLedger {
	return &statsLedger{byName: make(map[string]*ShipStats)}
}

// find returns the ledger entry for name, creating it when create is set.
func (l *statsLedger) find(name string, create bool) *ShipStats {
	if name == "" {
		return nil
	}
	key := strings.ToLower(name)
	if s, ok := l.byName[key]; ok {
		return s
	}
	if !create {
		return nil
	}
	s := &ShipStats{Name: name}
	l.byName[key] = s
	l.order = append(l.order, s)
	return s
}

// snapshot copies every entry in creation order.
func (l *statsLedger) snapshot() []ShipStats {
	out := make([]ShipStats, 0, len(l.order))
	for _, s := range l.order {
		copied := *s
		copied.Events = append([]StatEvent(nil), s.Events...)
		out = append(out, copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IFF != out[j].IFF {
			return out[i].IFF < out[j].IFF
		}
		return out[i].Element < out[j].Element
	})
	return out
}

func (l *statsLedger) reset() {
	l.byName = make(map[string]*ShipStats)
	l.order = nil
}
