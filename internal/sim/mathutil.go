package sim

import (
	"math"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

// Degrees converts degrees to radians.
const Degrees = math.Pi / 180

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func atan2(y, x float64) float64 { return math.Atan2(y, x) }

func asin(v float64) float64 { return math.Asin(v) }

// segmentDistance returns the distance from p to the segment a-b.
func segmentDistance(p, a, b geom.Vec3) float64 {
	ab := b.Sub(a)
	l2 := ab.LengthSquared()
	if l2 == 0 {
		return p.Distance(a)
	}
	t := clamp(p.Sub(a).Dot(ab)/l2, 0, 1)
	return p.Distance(a.Add(ab.Scale(t)))
}
