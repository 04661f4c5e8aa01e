package simulation

import (
	"sync"
	"time"
)

// TickMetricsSnapshot summarises observed frame durations.
type TickMetricsSnapshot struct {
	Samples  int
	Average  time.Duration
	Max      time.Duration
	Last     time.Duration
	Overruns int
	Skipped  int
}

// AverageFPS derives the frames-per-second equivalent of the sampled frame duration.
func (s TickMetricsSnapshot) AverageFPS() float64 {
	if s.Average <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Average)
}

// TickMonitor accumulates timing statistics for the frame loop. A frame that takes
// longer than the budget counts as an overrun.
type TickMonitor struct {
	budget time.Duration

	mu       sync.Mutex
	samples  int
	total    time.Duration
	max      time.Duration
	last     time.Duration
	overruns int
	skipped  int
}

// NewTickMonitor constructs an empty monitor. A zero budget disables overrun counting.
func NewTickMonitor(budget time.Duration) *TickMonitor {
	return &TickMonitor{budget: budget}
}

// Observe records the duration of a completed frame.
func (m *TickMonitor) Observe(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.mu.Lock()
	m.samples++
	m.total += duration
	if duration > m.max {
		m.max = duration
	}
	m.last = duration
	if m.budget > 0 && duration > m.budget {
		m.overruns++
	}
	m.mu.Unlock()
}

// Skip counts frames dropped because the loop fell too far behind.
func (m *TickMonitor) Skip(frames int) {
	if m == nil || frames <= 0 {
		return
	}
	m.mu.Lock()
	m.skipped += frames
	m.mu.Unlock()
}

// Snapshot returns a copy of the aggregated statistics.
func (m *TickMonitor) Snapshot() TickMetricsSnapshot {
	if m == nil {
		return TickMetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := TickMetricsSnapshot{
		Samples:  m.samples,
		Max:      m.max,
		Last:     m.last,
		Overruns: m.overruns,
		Skipped:  m.skipped,
	}
	if m.samples > 0 {
		snap.Average = m.total / time.Duration(m.samples)
	}
	return snap
}

// Reset clears the accumulated statistics so a new mission starts from zero.
func (m *TickMonitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.samples, m.total, m.max, m.last = 0, 0, 0, 0
	m.overruns, m.skipped = 0, 0
	m.mu.Unlock()
}
