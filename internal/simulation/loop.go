package simulation

import (
	"context"
	"sync/atomic"
	"time"
)

// Stepper advances a world by one fixed frame.
type Stepper interface {
	ExecFrame(seconds float64)
}

// FrameHook observes the world after a frame. Hooks run on the loop goroutine,
// so they may read simulation state directly.
type FrameHook func(frame uint64, step time.Duration)

// LoopOption customises a Loop.
type LoopOption func(*Loop)

// WithMonitor records the wall time of every frame.
func WithMonitor(m *TickMonitor) LoopOption {
	return func(l *Loop) { l.monitor = m }
}

// WithHook appends a hook run after every frame.
func WithHook(h FrameHook) LoopOption {
	return func(l *Loop) {
		if h != nil {
			l.hooks = append(l.hooks, h)
		}
	}
}

// WithMaxCatchUp bounds how many frames one tick may run when the loop falls behind.
// Time beyond the bound is dropped and counted as skipped.
func WithMaxCatchUp(frames int) LoopOption {
	return func(l *Loop) {
		if frames > 0 {
			l.maxCatchUp = frames
		}
	}
}

// Loop drives a Stepper at a fixed timestep.
type Loop struct {
	step       time.Duration
	world      Stepper
	monitor    *TickMonitor
	hooks      []FrameHook
	maxCatchUp int
	frames     atomic.Uint64

	ticker *time.Ticker
	quit   chan struct{}
	done   chan struct{}
}

// NewLoop configures a loop that targets the provided frames per second.
func NewLoop(targetHz float64, world Stepper, opts ...LoopOption) *Loop {
	if targetHz <= 0 {
		targetHz = 30
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 30
	}
	l := &Loop{step: interval, world: world, maxCatchUp: 5}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Step runs one frame synchronously. It must not be mixed with a started loop.
func (l *Loop) Step() {
	if l == nil || l.world == nil {
		return
	}
	start := time.Now()
	l.world.ExecFrame(l.step.Seconds())
	frame := l.frames.Add(1)
	for _, h := range l.hooks {
		h(frame, l.step)
	}
	l.monitor.Observe(time.Since(start))
}

// Start begins ticking until the context is cancelled or Stop is invoked.
func (l *Loop) Start(ctx context.Context) {
	if l == nil || l.world == nil || l.done != nil {
		return
	}
	l.ticker = time.NewTicker(l.step)
	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	quit := l.quit
	go func() {
		defer close(l.done)
		defer l.ticker.Stop()
		last := time.Now()
		accumulator := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-quit:
				return
			case now := <-l.ticker.C:
				//1.- Accumulate elapsed time and run fixed steps while catching up.
				accumulator += now.Sub(last)
				last = now
				if budget := time.Duration(l.maxCatchUp) * l.step; accumulator > budget {
					l.monitor.Skip(int((accumulator - budget) / l.step))
					accumulator = budget
				}
				for accumulator >= l.step {
					l.Step()
					accumulator -= l.step
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for the goroutine to exit.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	if l.quit != nil {
		close(l.quit)
		l.quit = nil
	}
	if l.done != nil {
		<-l.done
		l.done = nil
	}
}

// Done is closed when a started loop exits. It is nil before Start.
func (l *Loop) Done() <-chan struct{} {
	if l == nil {
		return nil
	}
	return l.done
}

// StepDuration exposes the configured timestep.
func (l *Loop) StepDuration() time.Duration {
	if l == nil {
		return 0
	}
	return l.step
}

// Frames returns how many frames have been executed.
func (l *Loop) Frames() uint64 {
	if l == nil {
		return 0
	}
	return l.frames.Load()
}
