package replay

import (
	"context"
	"sync"
	"time"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// Event types written to the log.
const (
	EventRadio   = "radio"
	EventMissile = "missile"
	EventKill    = "kill"
	EventSplash  = "splash"
	EventJump    = "jump"
)

// Stats summarises recorder health for monitoring endpoints.
type Stats struct {
	Directory      string
	Frames         int64
	Events         int64
	Flushes        int64
	Errors         int64
	BufferedFrames int
	WrittenBytes   int64
	LastFlush      time.Time
}

// Recorder turns simulation activity into a replay bundle. Frame capture and
// telemetry run on the frame goroutine; radio traffic arrives on its own.
type Recorder struct {
	writer   *Writer
	log      *logging.Logger
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	frame     uint64
	gameTime  time.Duration
	lastShot  time.Duration
	captured  bool
	frames    int64
	events    int64
	flushes   int64
	errors    int64
	lastFlush time.Time
}

// NewRecorder records into w, capturing one frame per interval of game time.
func NewRecorder(w *Writer, interval time.Duration, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.L()
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Recorder{writer: w, log: logger, interval: interval, now: time.Now}
}

// Capture encodes the world when a frame interval of game time has passed.
func (r *Recorder) Capture(s *sim.Sim) {
	if r == nil || r.writer == nil || s == nil {
		return
	}
	r.mu.Lock()
	gameTime := s.GameTime()
	if r.captured && gameTime-r.lastShot < r.interval {
		r.mu.Unlock()
		return
	}
	r.captured = true
	r.lastShot = gameTime
	frame := r.frame
	r.mu.Unlock()

	payload, err := EncodeFrame(s)
	if err == nil {
		err = r.writer.AppendFrame(frame, gameTime.Milliseconds(), payload)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors++
		r.log.Warn("replay frame dropped", logging.Error(err))
		return
	}
	r.frames++
}

// Listen records radio traffic from sub until ctx is cancelled or the channel closes.
func (r *Recorder) Listen(ctx context.Context, sub *radio.Subscription) {
	if r == nil || sub == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Events():
			if !ok {
				return
			}
			r.append(EventRadio, map[string]any{
				"seq":       msg.Sequence,
				"action":    msg.Action.String(),
				"sender":    msg.Sender,
				"recipient": msg.Recipient,
				"element":   msg.Element,
				"target":    msg.Target,
				"info":      msg.Info,
			})
			if err := sub.Ack(msg.Sequence); err != nil {
				r.log.Debug("radio ack rejected", logging.Error(err))
			}
		}
	}
}

// Flush pushes staged frames to disk and returns the bundle directory.
func (r *Recorder) Flush(context.Context) (string, error) {
	if r == nil || r.writer == nil {
		return "", ErrWriterClosed
	}
	err := r.writer.Flush()
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors++
		return "", err
	}
	r.flushes++
	r.lastFlush = r.now().UTC()
	return r.writer.Directory(), nil
}

// Close finishes the bundle.
func (r *Recorder) Close() error {
	if r == nil || r.writer == nil {
		return nil
	}
	return r.writer.Close()
}

// Snapshot returns the recorder statistics.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	stats := Stats{
		Frames:    r.frames,
		Events:    r.events,
		Flushes:   r.flushes,
		Errors:    r.errors,
		LastFlush: r.lastFlush,
	}
	r.mu.Unlock()
	stats.Directory = r.writer.Directory()
	stats.BufferedFrames = r.writer.Pending()
	stats.WrittenBytes = r.writer.Written()
	return stats
}

// FrameStepped advances the recorder's frame and game clock.
func (r *Recorder) FrameStepped(seconds float64, _ int) {
	r.mu.Lock()
	r.frame++
	r.gameTime += time.Duration(seconds * float64(time.Second))
	r.mu.Unlock()
}

// ShotFired records missile launches. Gun bolts are too frequent to log.
func (r *Recorder) ShotFired(owner, weapon string, missile bool) {
	if !missile {
		return
	}
	r.append(EventMissile, map[string]any{"owner": owner, "weapon": weapon})
}

// ShipDestroyed records a kill.
func (r *Recorder) ShipDestroyed(ship, killer string, missile bool) {
	r.append(EventKill, map[string]any{"ship": ship, "killer": killer, "missile": missile})
}

// SplashApplied records area damage dealt to one target.
func (r *Recorder) SplashApplied(hit combat.SplashHit) {
	r.append(EventSplash, map[string]any{
		"owner": hit.Owner, "target": hit.Target, "damage": hit.Damage, "distance": hit.Distance,
	})
}

// JumpResolved records a completed region transition.
func (r *Recorder) JumpResolved(ship, from, to string) {
	r.append(EventJump, map[string]any{"ship": ship, "from": from, "to": to})
}

func (r *Recorder) append(eventType string, payload map[string]any) {
	if r == nil || r.writer == nil {
		return
	}
	r.mu.Lock()
	frame, gameMs := r.frame+1, r.gameTime.Milliseconds()
	r.mu.Unlock()

	err := r.writer.AppendEvent(frame, gameMs, eventType, payload)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors++
		r.log.Warn("replay event dropped", logging.String("type", eventType), logging.Error(err))
		return
	}
	r.events++
}

var _ sim.Telemetry = (*Recorder)(nil)
