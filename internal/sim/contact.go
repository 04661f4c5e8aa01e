package sim

import (
	"math"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/geom"
)

// passiveRangeBucket is the granularity of ranges reported from passive-only detections.
const passiveRangeBucket = 25000.0

// Contact is one observer's knowledge of a detected ship or shot. The subject is
// cleared, along with the returns and the track, the moment it is destroyed.
type Contact struct {
	ship  *Ship
	shot  *Shot
	loc   geom.Vec3
	dPas  float64
	dAct  float64
	probe bool

	acquired  time.Duration
	updated   time.Duration
	trackTime time.Duration
	track     []geom.Vec3

	now func() time.Duration
}

// NewContact builds a contact for a ship or shot subject with the given returns.
// now reports the mission game time; a nil clock pins time at zero.
func NewContact(subject Object, pas, act float64, now func() time.Duration) *Contact {
	if now == nil {
		now = func() time.Duration { return 0 }
	}
	c := &Contact{dPas: pas, dAct: act, now: now}
	switch s := subject.(type) {
	case *Ship:
		c.ship = s
	case *Shot:
		c.shot = s
	default:
		return c
	}
	c.acquired = now()
	c.updated = c.acquired
	c.loc = subject.Base().Location()
	subject.Base().Observe(c)
	return c
}

// Ship returns the observed ship or nil.
func (c *Contact) Ship() *Ship { return c.ship }

// Shot returns the observed shot or drone or nil.
func (c *Contact) Shot() *Shot { return c.shot }

// Subject returns the observed object or nil once it is gone.
func (c *Contact) Subject() Object {
	switch {
	case c.ship != nil:
		return c.ship
	case c.shot != nil:
		return c.shot
	default:
		return nil
	}
}

// Location returns the last sensed position.
func (c *Contact) Location() geom.Vec3 { return c.loc }

// PassiveReturn is the passive sensor return strength.
func (c *Contact) PassiveReturn() float64 { return c.dPas }

// ActiveReturn is the active sensor return strength.
func (c *Contact) ActiveReturn() float64 { return c.dAct }

// AcquisitionTime is the game time the contact was first created.
func (c *Contact) AcquisitionTime() time.Duration { return c.acquired }

// IsProbe reports whether the contact was detected by a sensor probe.
func (c *Contact) IsProbe() bool { return c.probe }

// SetProbe flags the contact as probe-detected.
func (c *Contact) SetProbe(p bool) { c.probe = p }

// ObjectDestroyed clears every reference to the destroyed subject.
func (c *Contact) ObjectDestroyed(obj Object) {
	if obj == nil {
		return
	}
	if (c.ship != nil && obj == Object(c.ship)) || (c.shot != nil && obj == Object(c.shot)) {
		c.ship = nil
		c.shot = nil
		c.dPas = 0
		c.dAct = 0
		c.ClearTrack()
	}
}

// Age is the freshness of the contact, one when just updated, decaying to zero
// over DefaultTrackAge. A contact without a subject has age zero.
func (c *Contact) Age() float64 {
	if c.ship == nil && c.shot == nil {
		return 0
	}
	elapsed := c.now() - c.updated
	age := 1 - elapsed.Seconds()/DefaultTrackAge.Seconds()
	if age < 0 {
		age = 0
	}
	return age
}

// ActLock reports an active sensor lock.
func (c *Contact) ActLock() bool { return c.dAct >= SensorThreshold }

// PasLock reports a passive sensor lock.
func (c *Contact) PasLock() bool { return c.dPas >= SensorThreshold }

// IFF returns the side code the observer can attribute to the contact:
// the true code when resolvable, IFFUnknown otherwise.
func (c *Contact) IFF(observer *Ship) int {
	switch {
	case c.ship != nil:
		iff := c.ship.IFF()
		if observer != nil && iff != observer.IFF() && !c.Threat(observer) {
			if c.dPas < 2*SensorThreshold && c.dAct < SensorThreshold && !c.Visible(observer) {
				return IFFUnknown
			}
		}
		return iff
	case c.shot != nil && c.shot.Owner() != nil:
		return c.shot.Owner().IFF()
	case c.shot != nil:
		return c.shot.IFF()
	default:
		return 0
	}
}

// Bearing returns the azimuth, elevation and true range of the contact in the observer frame.
func (c *Contact) Bearing(observer *Ship) (az, el, rng float64) {
	if observer == nil {
		return 0, 0, 0
	}
	delta := c.loc.Sub(observer.Location())
	cam := observer.Cam()
	tx := delta.Dot(cam.Vrt)
	ty := delta.Dot(cam.Vup)
	tz := delta.Dot(cam.Vpn)
	rng = delta.Length()
	if rng == 0 {
		return 0, 0, 0
	}
	az = math.Asin(clamp(math.Abs(tx)/rng, 0, 1))
	el = math.Asin(clamp(math.Abs(ty)/rng, 0, 1))
	if tx < 0 {
		az = -az
	}
	if ty < 0 {
		el = -el
	}
	//1.- Fold angles into the rear hemisphere when the contact is behind.
	if tz < 0 {
		if az < 0 {
			az = -math.Pi - az
		} else {
			az = math.Pi - az
		}
	}
	return az, el, rng
}

// Range returns the true range under active lock, a 25 km bucketed range under
// passive lock and limit when the contact is not locked at all.
func (c *Contact) Range(observer *Ship, limit float64) float64 {
	if observer == nil {
		return limit
	}
	r := c.loc.Distance(observer.Location())
	if c.ActLock() {
		return r
	}
	if !c.PasLock() {
		return limit
	}
	if r <= passiveRangeBucket {
		return passiveRangeBucket
	}
	return math.Floor((r+passiveRangeBucket/2)/passiveRangeBucket) * passiveRangeBucket
}

// InFront reports whether the contact lies ahead of the observer.
func (c *Contact) InFront(observer *Ship) bool {
	if observer == nil {
		return false
	}
	return c.loc.Sub(observer.Location()).Dot(observer.Heading()) > 1
}

// Threat reports whether the contact is actively menacing the observer.
func (c *Contact) Threat(observer *Ship) bool {
	if observer == nil || observer.Life() == 0 {
		return false
	}
	if c.ship != nil && c.ship.Life() != 0 {
		s := c.ship
		threat := s.IFF() != 0 && s.IFF() != observer.IFF() && s.EMCON() > 2 && s.IsTracking(observer) && s.HasWeapons()
		if threat && observer.IFF() == 0 {
			threat = s.IFF() > 1
		}
		return threat
	}
	if c.shot != nil && c.shot.Life() != 0 {
		if c.shot.IsTracking(observer) {
			return true
		}
		if c.shot.IsProbe() && c.shot.IFF() != observer.IFF() {
			d := c.shot.Location().Distance(observer.Location())
			return d < c.shot.Design().LethalRadius
		}
	}
	return false
}

// Visible reports whether the subject subtends enough angle to be seen.
func (c *Contact) Visible(observer *Ship) bool {
	if observer == nil {
		return false
	}
	var radius float64
	switch {
	case c.ship != nil:
		radius = c.ship.Radius()
	case c.shot != nil:
		radius = c.shot.Radius()
	}
	rng := c.loc.Distance(observer.Location())
	return rng > 0 && radius/rng > 0.002
}

// Reset decays both returns ahead of a new sensor sweep.
func (c *Contact) Reset(frameSeconds float64) {
	step := frameSeconds / 10
	if c.dPas > 0 {
		c.dPas = math.Max(0, c.dPas-step)
	}
	if c.dAct > 0 {
		c.dAct = math.Max(0, c.dAct-step)
	}
}

// Merge raises the returns to the stronger of c and other when both track the same subject.
func (c *Contact) Merge(other *Contact) {
	if other == nil || other.ship != c.ship || other.shot != c.shot {
		return
	}
	if other.dPas > c.dPas {
		c.dPas = other.dPas
	}
	if other.dAct > c.dAct {
		c.dAct = other.dAct
	}
}

// refresh records a fresh detection of the subject.
func (c *Contact) refresh(pas, act float64) {
	if pas > c.dPas {
		c.dPas = pas
	}
	if act > c.dAct {
		c.dAct = act
	}
	if s := c.Subject(); s != nil {
		c.loc = s.Base().Location()
	}
	c.UpdateTrack()
}

// UpdateTrack stamps the contact and appends a trail point at most every
// DefaultTrackUpdate. Shots and ground units keep no trail.
func (c *Contact) UpdateTrack() {
	now := c.now()
	c.updated = now
	if c.shot != nil || (c.ship != nil && c.ship.IsGroundUnit()) {
		return
	}
	if c.track == nil {
		c.track = make([]geom.Vec3, 1, DefaultTrackLength)
		c.track[0] = c.loc
		c.trackTime = now
		return
	}
	if now-c.trackTime > DefaultTrackUpdate {
		if c.loc != c.track[0] {
			//1.- Shift the history one slot, dropping the oldest point at capacity.
			if len(c.track) < DefaultTrackLength {
				c.track = append(c.track, geom.Vec3{})
			}
			copy(c.track[1:], c.track[:len(c.track)-1])
			c.track[0] = c.loc
		}
		c.trackTime = now
	}
}

// TrackLength returns the number of stored trail points.
func (c *Contact) TrackLength() int { return len(c.track) }

// TrackPoint returns the i-th most recent trail point or the zero vector.
func (c *Contact) TrackPoint(i int) geom.Vec3 {
	if i < 0 || i >= len(c.track) {
		return geom.Vec3{}
	}
	return c.track[i]
}

// ClearTrack drops the trail.
func (c *Contact) ClearTrack() { c.track = nil }
