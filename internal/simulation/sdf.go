package simulation

import (
	"math"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

// SignedDistanceField exposes the sampling contract for ground queries.
type SignedDistanceField interface {
	Sample(point geom.Vec3) float64
}

// SampleFunc adapts a function into a SignedDistanceField.
type SampleFunc func(geom.Vec3) float64

// Sample invokes the wrapped sampling function.
func (s SampleFunc) Sample(point geom.Vec3) float64 {
	return s(point)
}

// SphereField describes an analytic sphere signed distance function.
type SphereField struct {
	Center geom.Vec3
	Radius float64
}

// Sample returns the distance from point to the sphere surface.
func (s SphereField) Sample(point geom.Vec3) float64 {
	return point.Distance(s.Center) - s.Radius
}

// PlaneField is an infinite plane through a point.
type PlaneField struct {
	origin geom.Vec3
	normal geom.Vec3
}

// NewPlaneField stores the plane with a unit normal. A zero normal faces up.
func NewPlaneField(point, normal geom.Vec3) PlaneField {
	unit := normal.Normalize()
	if unit.IsZero() {
		unit = geom.V(0, 1, 0)
	}
	return PlaneField{origin: point, normal: unit}
}

// Sample returns the signed distance above the plane.
func (p PlaneField) Sample(point geom.Vec3) float64 {
	return point.Sub(p.origin).Dot(p.normal)
}

// UnionField is the solid formed by all of its members.
type UnionField []SignedDistanceField

// Sample returns the distance to the nearest member.
func (u UnionField) Sample(point geom.Vec3) float64 {
	d := math.Inf(1)
	for _, f := range u {
		d = math.Min(d, f.Sample(point))
	}
	return d
}

// Raycast sphere-traces the field and reports the hit, travelled distance and end point.
func Raycast(field SignedDistanceField, origin, direction geom.Vec3, maxDistance float64, maxSteps int, epsilon float64) (bool, float64, geom.Vec3) {
	dir := direction.Normalize()
	if dir.IsZero() {
		return false, 0, origin
	}
	distance := 0.0
	current := origin
	for step := 0; step < maxSteps; step++ {
		sample := field.Sample(current)
		if sample < epsilon {
			return true, distance, current
		}
		distance += sample
		if distance > maxDistance {
			break
		}
		current = origin.Add(dir.Scale(distance))
	}
	capped := math.Min(distance, maxDistance)
	return false, capped, origin.Add(dir.Scale(capped))
}

// SphereIntersection reports whether a bounding sphere penetrates the field and its clearance.
func SphereIntersection(field SignedDistanceField, center geom.Vec3, radius float64) (bool, float64) {
	separation := field.Sample(center) - radius
	return separation <= 0, separation
}

const (
	terrainSteps   = 96
	terrainEpsilon = 1.0
)

// Terrain turns a field into a ground height map for airspace regions.
type Terrain struct {
	Field   SignedDistanceField
	Ceiling float64
}

// Height marches straight down from the ceiling and returns the ground elevation at x, z.
// Columns with no ground return zero.
func (t Terrain) Height(x, z float64) float64 {
	if t.Field == nil {
		return 0
	}
	ceiling := t.Ceiling
	if ceiling <= 0 {
		ceiling = 30e3
	}
	hit, _, point := Raycast(t.Field, geom.V(x, ceiling, z), geom.V(0, -1, 0), 2*ceiling, terrainSteps, terrainEpsilon)
	if !hit {
		return 0
	}
	return point.Y
}

// NewHills scatters count rounded hills over a square of half-width extent on a flat floor.
// Placement is drawn from the mission seed so the same seed always builds the same ground.
func NewHills(seed string, count int, extent, maxHeight float64) Terrain {
	rng := combat.NewStream(seed, "terrain")
	field := UnionField{NewPlaneField(geom.Vec3{}, geom.V(0, 1, 0))}
	for i := 0; i < count; i++ {
		radius := rng.Range(0.3, 1) * maxHeight * 2
		height := rng.Range(0.25, 1) * maxHeight
		center := geom.V(rng.Range(-extent, extent), height-radius, rng.Range(-extent, extent))
		field = append(field, SphereField{Center: center, Radius: radius})
	}
	return Terrain{Field: field, Ceiling: maxHeight * 4}
}
