package ai

import (
	"math"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// Steer is one steering demand in helm conventions: positive yaw turns right and
// positive pitch lowers the nose. Brake is a throttle reduction in [0, 1].
type Steer struct {
	Yaw   float64
	Pitch float64
	Roll  float64
	Brake float64
	Stop  bool
}

// Add sums two demands. The stronger brake wins.
func (s Steer) Add(o Steer) Steer {
	return Steer{
		Yaw:   s.Yaw + o.Yaw,
		Pitch: s.Pitch + o.Pitch,
		Roll:  s.Roll + o.Roll,
		Brake: math.Max(s.Brake, o.Brake),
		Stop:  s.Stop || o.Stop,
	}
}

// Scale multiplies the turn components.
func (s Steer) Scale(f float64) Steer {
	s.Yaw *= f
	s.Pitch *= f
	s.Roll *= f
	return s
}

// Magnitude is the combined yaw and pitch demand.
func (s Steer) Magnitude() float64 { return math.Hypot(s.Yaw, s.Pitch) }

const (
	seekGain    = 20.0
	seekDamp    = 0.5
	evadePeriod = 1250 * time.Millisecond
)

// steerer turns world-space goals into helm demands for one ship.
type steerer struct {
	ship *sim.Ship
	rng  *combat.Stream

	accum     Steer
	magnitude float64
	seeking   bool

	az [3]float64
	el [3]float64

	evadeTime  time.Duration
	evadeSteer Steer
}

func newSteerer(ship *sim.Ship, rng *combat.Stream) steerer {
	return steerer{ship: ship, rng: rng, evadeTime: -evadePeriod}
}

// reset clears the accumulator at the start of a navigator pass.
func (s *steerer) reset() {
	s.accum = Steer{}
	s.magnitude = 0
}

// accumulate adds a demand until the combined magnitude reaches one. It reports
// whether the demand overflowed the remaining budget.
func (s *steerer) accumulate(st Steer) bool {
	mag := st.Magnitude()
	if s.magnitude+mag > 1 {
		scale := (1 - s.magnitude) / mag
		s.accum = s.accum.Add(st.Scale(scale))
		s.magnitude = 1
		if s.seeking {
			s.az[0] *= scale
			s.el[0] *= scale
			s.seeking = false
		}
		return true
	}
	s.accum = s.accum.Add(st)
	s.magnitude += mag
	return false
}

// transform expresses a world point in the ship frame.
func (s *steerer) transform(p geom.Vec3) geom.Vec3 {
	cam := s.ship.Cam()
	cam.MoveTo(s.ship.Location())
	return cam.Transform(p)
}

// seek steers the nose toward a ship-frame point with damped proportional gain.
func (s *steerer) seek(p geom.Vec3) Steer {
	var st Steer
	s.az[2], s.az[1] = s.az[1], s.az[0]
	s.el[2], s.el[1] = s.el[1], s.el[0]

	if p.Z > 0 {
		s.az[0] = math.Atan2(math.Abs(p.X), p.Z) * seekGain
		s.el[0] = math.Atan2(math.Abs(p.Y), p.Z) * seekGain
		if p.X < 0 {
			s.az[0] = -s.az[0]
		}
		if p.Y > 0 {
			s.el[0] = -s.el[0]
		}
		st.Yaw = s.az[0] - seekDamp*(s.az[1]+s.az[2]*0.5)
		st.Pitch = s.el[0] - seekDamp*(s.el[1]+s.el[2]*0.5)
	} else {
		//1.- Behind us: hard turn toward the side the point is on.
		st.Yaw = -1
		if p.X > 0 {
			st.Yaw = 1
		}
		st.Pitch = -p.Normalize().Y * 0.5
	}
	s.seeking = true
	return st
}

// flee steers the nose away from a ship-frame point.
func (s *steerer) flee(p geom.Vec3) Steer {
	var st Steer
	p = p.Normalize()
	if p.Z > 0 {
		st.Yaw = 1
		if p.X > 0 {
			st.Yaw = -1
		}
	} else {
		st.Yaw = -p.X
		st.Pitch = p.Y
	}
	return st
}

// avoid steers around a ship-frame point by the cheaper axis to clear radius.
func (s *steerer) avoid(p geom.Vec3, radius float64) Steer {
	var st Steer
	if p.Z <= 0 {
		return st
	}
	ax := radius - math.Abs(p.X)
	ay := radius - math.Abs(p.Y)
	if ax < ay {
		st.Yaw = math.Atan2(ax, p.Z) * seekGain
		if p.X > 0 {
			st.Yaw = -st.Yaw
		}
	} else {
		st.Pitch = math.Atan2(ay, p.Z) * seekGain
		if p.Y < 0 {
			st.Pitch = -st.Pitch
		}
	}
	return st
}

// evade picks a new random jink every evade period and holds it in between.
func (s *steerer) evade(now time.Duration) Steer {
	if now-s.evadeTime < evadePeriod {
		return s.evadeSteer
	}
	s.evadeTime = now
	patterns := [...]Steer{
		{Pitch: -0.5},
		{Pitch: -1.0},
		{Yaw: 1, Pitch: -0.3},
		{Yaw: 1, Pitch: -0.6},
		{Yaw: 1, Pitch: -1.0},
		{Yaw: -1, Pitch: -0.3},
		{Yaw: -1, Pitch: -0.6},
		{Yaw: -1, Pitch: -1.0},
	}
	s.evadeSteer = patterns[s.rng.Intn(len(patterns))]
	return s.evadeSteer
}
