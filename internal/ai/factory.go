package ai

import (
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// Options configures the directors built by Factory.
type Options struct {
	// Level is the pilot skill from 0 (novice) to 2 (ace).
	Level int
}

// NewDirector builds the director that suits the ship class: small craft get a
// FighterAI, capital ships a StarshipAI and everything else the plain ShipAI.
// Farcaster gates fly no AI.
func NewDirector(ship *sim.Ship, opts Options) sim.Director {
	switch {
	case ship == nil || ship.Class() == sim.ClassFarcaster:
		return nil
	case ship.IsDropship():
		return NewFighterAI(ship, opts.Level)
	case ship.IsStarship():
		return NewStarshipAI(ship, opts.Level)
	}
	return NewShipAI(ship, opts.Level)
}

// Factory adapts NewDirector to the simulation's director hook.
func Factory(opts Options) sim.DirectorFactory {
	return func(ship *sim.Ship) sim.Director {
		return NewDirector(ship, opts)
	}
}
