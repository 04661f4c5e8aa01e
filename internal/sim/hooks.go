package sim

import (
	"context"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
)

// Director steers one ship. The ai package provides the standard implementations.
type Director interface {
	Observer
	ExecFrame(seconds float64)
}

// DirectorFactory builds the director for a newly created ship. Returning nil leaves
// the ship uncontrolled.
type DirectorFactory func(ship *Ship) Director

// Telemetry receives notable simulation events. Calls happen on the frame goroutine.
type Telemetry interface {
	FrameStepped(seconds float64, regions int)
	ShotFired(owner, weapon string, missile bool)
	ShipDestroyed(ship, killer string, missile bool)
	SplashApplied(hit combat.SplashHit)
	JumpResolved(ship, from, to string)
}

type nopTelemetry struct{}

func (nopTelemetry) FrameStepped(float64, int)           {}
func (nopTelemetry) ShotFired(string, string, bool)      {}
func (nopTelemetry) ShipDestroyed(string, string, bool)  {}
func (nopTelemetry) SplashApplied(combat.SplashHit)      {}
func (nopTelemetry) JumpResolved(string, string, string) {}

type multiTelemetry []Telemetry

// MultiTelemetry fans every event out to each non-nil sink in order.
func MultiTelemetry(sinks ...Telemetry) Telemetry {
	var out multiTelemetry
	for _, t := range sinks {
		if t != nil {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nopTelemetry{}
	}
	return out
}

func (m multiTelemetry) FrameStepped(seconds float64, regions int) {
	for _, t := range m {
		t.FrameStepped(seconds, regions)
	}
}

func (m multiTelemetry) ShotFired(owner, weapon string, missile bool) {
	for _, t := range m {
		t.ShotFired(owner, weapon, missile)
	}
}

func (m multiTelemetry) ShipDestroyed(ship, killer string, missile bool) {
	for _, t := range m {
		t.ShipDestroyed(ship, killer, missile)
	}
}

func (m multiTelemetry) SplashApplied(hit combat.SplashHit) {
	for _, t := range m {
		t.SplashApplied(hit)
	}
}

func (m multiTelemetry) JumpResolved(ship, from, to string) {
	for _, t := range m {
		t.JumpResolved(ship, from, to)
	}
}

// Debrief summarises a committed mission.
type Debrief struct {
	Mission   string
	Seed      string
	Started   time.Time
	Committed time.Time
	Duration  time.Duration
	Stats     []ShipStats
}

// Debriefer persists mission results when a mission is committed.
type Debriefer interface {
	Record(ctx context.Context, d Debrief) error
}

// Clock supplies wall-clock timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Tuning carries numeric constants that shape AI and weapon behaviour.
type Tuning struct {
	// FarcasterConeDeg is the largest angle between velocity and gate axis that still counts as a pass-through.
	FarcasterConeDeg float64
	// FarcasterPassError is the fraction of the gate radius the predicted pass point may miss the center by.
	FarcasterPassError float64
	// PointDefenseDerate scales the best shot distance when point defense considers ships instead.
	PointDefenseDerate float64
}

// DefaultTuning returns the stock tuning values.
func DefaultTuning() Tuning {
	return Tuning{FarcasterConeDeg: 35, FarcasterPassError: 0.667, PointDefenseDerate: 0.2}
}
