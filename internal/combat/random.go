package combat

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

// SeedForStream derives a deterministic RNG seed for a named random stream within a mission.
func SeedForStream(missionSeed, stream string) int64 {
	//1.- Hash the inputs with separators so each identifier influences the result independently.
	digest := sha256.Sum256([]byte("sim.stream\x00" + missionSeed + "\x00" + stream))
	//2.- Convert the first eight bytes into a signed integer seed for math/rand.
	seed := int64(binary.LittleEndian.Uint64(digest[0:8]))
	if seed == 0 {
		seed = int64(binary.LittleEndian.Uint64(digest[8:16]))
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

// Stream is a deterministic random source bound to one mission seed and stream name.
// It is not safe for concurrent use.
type Stream struct {
	rng *rand.Rand
}

// NewStream builds a stream so that every replay of a mission reproduces the same rolls.
func NewStream(missionSeed, stream string) *Stream {
	return &Stream{rng: rand.New(rand.NewSource(SeedForStream(missionSeed, stream)))}
}

// Float64 returns a roll in [0, 1).
func (s *Stream) Float64() float64 { return s.rng.Float64() }

// Range returns a roll in [lo, hi).
func (s *Stream) Range(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Float64()*(hi-lo)
}

// Intn returns a roll in [0, n). Non-positive n yields zero.
func (s *Stream) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.Intn(n)
}

// Chance reports true with the given probability, clamped to [0, 1].
func (s *Stream) Chance(p float64) bool {
	if math.IsNaN(p) || p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.rng.Float64() < p
}

// Vector returns a vector with a uniformly random direction and the given length.
func (s *Stream) Vector(length float64) geom.Vec3 {
	//1.- Sample the unit sphere by height and azimuth so directions stay uniform.
	z := s.Range(-1, 1)
	theta := s.Range(0, 2*math.Pi)
	r := math.Sqrt(1 - z*z)
	return geom.V(r*math.Cos(theta), r*math.Sin(theta), z).Scale(length)
}
