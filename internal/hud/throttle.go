package hud

import (
	"math"
	"sync"
	"time"
)

// DefaultBytesPerSecond caps each HUD client at 64 kB/s.
const DefaultBytesPerSecond = 64 * 1024.0

// Usage reports the throttle state of one HUD client.
type Usage struct {
	ClientID  string
	Available float64
	Rate      float64
	Observed  time.Duration
	Sent      int64
	Dropped   int64
	Updated   time.Time
}

type bucket struct {
	tokens  float64
	last    time.Time
	opened  time.Time
	sent    int64
	dropped int64
}

// Throttle keeps a token bucket per HUD client so slow links skip snapshots
// instead of queueing them.
type Throttle struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   float64
	rate    float64
	now     func() time.Time
}

// NewThrottle refills rate bytes per second up to burst bytes. A burst below
// the rate is raised to one second of traffic.
func NewThrottle(rate, burst float64, clock func() time.Time) *Throttle {
	if rate <= 0 {
		rate = DefaultBytesPerSecond
	}
	if burst < rate {
		burst = rate
	}
	if clock == nil {
		clock = time.Now
	}
	return &Throttle{buckets: make(map[string]*bucket), burst: burst, rate: rate, now: clock}
}

func (t *Throttle) refill(b *bucket, now time.Time) {
	//1.- A clock that steps backwards leaves the bucket untouched.
	if !now.After(b.last) {
		return
	}
	b.tokens = math.Min(t.burst, b.tokens+now.Sub(b.last).Seconds()*t.rate)
	b.last = now
}

// Allow charges size bytes to the client and reports whether the payload may be sent.
func (t *Throttle) Allow(clientID string, size int) bool {
	if t == nil || clientID == "" || size <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	b := t.buckets[clientID]
	if b == nil {
		//1.- New clients start with a full bucket so the first snapshot always lands.
		b = &bucket{tokens: t.burst, last: now, opened: now}
		t.buckets[clientID] = b
	}
	t.refill(b, now)
	if float64(size) > b.tokens {
		b.dropped++
		return false
	}
	b.tokens -= float64(size)
	b.sent += int64(size)
	return true
}

// Forget drops the bucket of a disconnected client.
func (t *Throttle) Forget(clientID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.buckets, clientID)
	t.mu.Unlock()
}

// Usage snapshots every client bucket after a refill on the shared clock.
func (t *Throttle) Usage() map[string]Usage {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buckets) == 0 {
		return nil
	}
	now := t.now()
	out := make(map[string]Usage, len(t.buckets))
	for id, b := range t.buckets {
		t.refill(b, now)
		observed := now.Sub(b.opened)
		if observed < 0 {
			observed = 0
		}
		rate := 0.0
		if observed > 0 {
			rate = float64(b.sent) / observed.Seconds()
		}
		out[id] = Usage{
			ClientID:  id,
			Available: math.Max(b.tokens, 0),
			Rate:      rate,
			Observed:  observed,
			Sent:      b.sent,
			Dropped:   b.dropped,
			Updated:   b.last,
		}
	}
	return out
}
