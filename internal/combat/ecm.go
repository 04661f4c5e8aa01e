package combat

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SeedForSeduction derives a deterministic RNG seed for one seeker versus one decoy.
func SeedForSeduction(missionSeed, shotID, decoyID string) int64 {
	//1.- Hash the inputs with separators so each identifier influences the result independently.
	digest := sha256.Sum256([]byte("combat.decoy\x00" + missionSeed + "\x00" + shotID + "\x00" + decoyID))
	seed := int64(binary.LittleEndian.Uint64(digest[0:8]))
	if seed == 0 {
		seed = int64(binary.LittleEndian.Uint64(digest[8:16]))
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

// DecoySeduces resolves a single seduction roll with a fixed probability.
func DecoySeduces(missionSeed, shotID, decoyID string, probability float64) bool {
	p := clampProbability(probability)
	if p == 0 {
		return false
	}
	if p == 1 {
		return true
	}
	rng := rand.New(rand.NewSource(SeedForSeduction(missionSeed, shotID, decoyID)))
	return rng.Float64() < p
}

const (
	defaultSeductionInitial = 0.65
	defaultSeductionFinal   = 0.20
)

var (
	defaultSeductionPlateau = 1500 * time.Millisecond
	defaultSeductionTotal   = 3 * time.Second
)

// SeductionWindow describes how a decoy's pull on a seeker fades after launch.
type SeductionWindow struct {
	InitialProbability float64
	Plateau            time.Duration
	FinalProbability   float64
	Total              time.Duration
}

// DefaultSeductionWindow returns the stock 65% to 20% fade over three seconds.
func DefaultSeductionWindow() SeductionWindow {
	return SeductionWindow{
		InitialProbability: defaultSeductionInitial,
		Plateau:            defaultSeductionPlateau,
		FinalProbability:   defaultSeductionFinal,
		Total:              defaultSeductionTotal,
	}
}

// ProbabilityAt returns the seduction probability for a decoy of the given age.
func (w SeductionWindow) ProbabilityAt(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	w = w.normalised()
	start := clampProbability(w.InitialProbability)
	end := clampProbability(w.FinalProbability)
	//1.- Hold the initial pull through the plateau, then fade linearly to the final value.
	if w.Plateau > 0 && age <= w.Plateau {
		return start
	}
	if w.Total <= 0 || age >= w.Total {
		return end
	}
	span := w.Total - w.Plateau
	if span <= 0 {
		return end
	}
	progress := float64(age-w.Plateau) / float64(span)
	return clampProbability(start + (end-start)*clampProbability(progress))
}

func (w SeductionWindow) normalised() SeductionWindow {
	if w.Plateau < 0 {
		w.Plateau = 0
	}
	if w.Total < 0 {
		w.Total = 0
	}
	if w.Total != 0 && w.Total < w.Plateau {
		w.Total = w.Plateau
	}
	return w
}

// DecoyTracker keeps one deterministic roll stream per seeker and decoy pair so that
// replays of the same mission seed reproduce every seduction.
type DecoyTracker struct {
	mu     sync.Mutex
	states map[string]*seductionState
}

type seductionState struct {
	rng        *rand.Rand
	window     SeductionWindow
	lastAge    time.Duration
	lastResult bool
	rolled     bool
	seduced    bool
}

// NewDecoyTracker builds an empty tracker.
func NewDecoyTracker() *DecoyTracker {
	return &DecoyTracker{states: make(map[string]*seductionState)}
}

// Resolve rolls whether the decoy seduces the seeker at the given decoy age. Once a
// seeker is seduced it stays seduced; asking again for an age already rolled returns
// the cached result.
func (t *DecoyTracker) Resolve(missionSeed, shotID, decoyID string, age time.Duration, window SeductionWindow) bool {
	if t == nil || missionSeed == "" || shotID == "" || decoyID == "" {
		return false
	}
	if window.InitialProbability <= 0 && window.FinalProbability <= 0 {
		return false
	}
	key := missionSeed + "\x00" + shotID + "\x00" + decoyID
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[key]
	if !ok {
		state = &seductionState{
			rng:    rand.New(rand.NewSource(SeedForSeduction(missionSeed, shotID, decoyID))),
			window: window.normalised(),
		}
		t.states[key] = state
	}
	return state.evaluate(age)
}

// Release drops every pairing for the shot once it is gone.
func (t *DecoyTracker) Release(missionSeed, shotID string) {
	if t == nil {
		return
	}
	prefix := missionSeed + "\x00" + shotID + "\x00"
	t.mu.Lock()
	for key := range t.states {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(t.states, key)
		}
	}
	t.mu.Unlock()
}

// Len reports how many pairings are tracked.
func (t *DecoyTracker) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// Reset forgets every pairing.
func (t *DecoyTracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.states = make(map[string]*seductionState)
	t.mu.Unlock()
}

func (s *seductionState) evaluate(age time.Duration) bool {
	if age < 0 {
		age = 0
	}
	if s.seduced {
		if age > s.lastAge {
			s.lastAge = age
		}
		return true
	}
	if s.rolled && age <= s.lastAge {
		return s.lastResult
	}
	p := s.window.ProbabilityAt(age)
	s.lastResult = p > 0 && s.rng.Float64() < p
	s.seduced = s.lastResult
	s.lastAge = age
	s.rolled = true
	return s.lastResult
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
