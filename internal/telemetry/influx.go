package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/config"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
)

// Measurement names written by the sink.
const (
	MeasurementFrames = "sim_frames"
	MeasurementKill   = "sim_kill"
	MeasurementSplash = "sim_splash"
	MeasurementJump   = "sim_jump"
)

// DefaultWindow is the span of game time folded into one frames point.
const DefaultWindow = time.Second

// ErrDisabled reports that no InfluxDB URL was configured.
var ErrDisabled = errors.New("telemetry: influx disabled")

// PointWriter accepts finished points. The influx client's WriteAPI satisfies it.
type PointWriter interface {
	WritePoint(point *write.Point)
}

type flusher interface {
	Flush()
}

// Sink folds combat events into InfluxDB points. It implements sim.Telemetry.
type Sink struct {
	mu      sync.Mutex
	out     PointWriter
	backup  *gzip.Writer
	file    *os.File
	client  influxdb2.Client
	log     *logging.Logger
	now     func() time.Time
	window  time.Duration
	mission string

	frames   int
	elapsed  float64
	regions  int
	guns     int
	missiles int

	written int64
	errors  int64
}

// Option customises a Sink.
type Option func(*Sink)

// WithClock overrides the wall clock used to stamp points.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWindow sets the game time aggregated into each frames point.
func WithWindow(window time.Duration) Option {
	return func(s *Sink) {
		if window > 0 {
			s.window = window
		}
	}
}

// WithLogger attaches a logger for write failures.
func WithLogger(log *logging.Logger) Option {
	return func(s *Sink) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSink writes points to out.
func NewSink(out PointWriter, opts ...Option) *Sink {
	s := &Sink{out: out, log: logging.L(), now: time.Now, window: DefaultWindow}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewBackupSink appends gzip line protocol to path, for replay into InfluxDB later.
func NewBackupSink(path string, opts ...Option) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create backup dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open backup file: %w", err)
	}
	s := NewSink(nil, opts...)
	s.file = file
	s.backup = gzip.NewWriter(file)
	return s, nil
}

// Connect dials InfluxDB and falls back to the backup file when the server does not answer a ping.
func Connect(ctx context.Context, cfg config.InfluxConfig, opts ...Option) (*Sink, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrDisabled
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		s, backupErr := NewBackupSink(cfg.Backup, opts...)
		if backupErr != nil {
			return nil, backupErr
		}
		s.log.Warn("influxdb unreachable, writing telemetry to backup file",
			logging.String("url", cfg.URL),
			logging.String("backup", cfg.Backup),
		)
		return s, nil
	}

	api := client.WriteAPI(cfg.Org, cfg.Bucket)
	s := NewSink(api, opts...)
	s.client = client
	go func(errs <-chan error) {
		for writeErr := range errs {
			s.mu.Lock()
			s.errors++
			s.mu.Unlock()
			s.log.Error("influxdb write failed", logging.String("bucket", cfg.Bucket), logging.Error(writeErr))
		}
	}(api.Errors())
	s.log.Info("influxdb telemetry connected", logging.String("url", cfg.URL), logging.String("bucket", cfg.Bucket))
	return s, nil
}

// SetMission tags subsequent points with the mission name.
func (s *Sink) SetMission(name string) {
	s.mu.Lock()
	s.mission = name
	s.mu.Unlock()
}

// FrameStepped accumulates frames until a full window of game time has passed.
func (s *Sink) FrameStepped(seconds float64, regions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	s.elapsed += seconds
	if regions > s.regions {
		s.regions = regions
	}
	if s.elapsed >= s.window.Seconds() {
		s.emitFramesLocked()
	}
}

// ShotFired counts shots into the current window.
func (s *Sink) ShotFired(_, _ string, missile bool) {
	s.mu.Lock()
	if missile {
		s.missiles++
	} else {
		s.guns++
	}
	s.mu.Unlock()
}

// ShipDestroyed writes one kill point.
func (s *Sink) ShipDestroyed(ship, killer string, missile bool) {
	s.emit(MeasurementKill, map[string]string{"weapon": weaponTag(missile)}, map[string]any{
		"ship":   ship,
		"killer": killer,
	})
}

// SplashApplied writes one splash damage point.
func (s *Sink) SplashApplied(hit combat.SplashHit) {
	s.emit(MeasurementSplash, map[string]string{"weapon": weaponTag(hit.Missile)}, map[string]any{
		"owner":    hit.Owner,
		"target":   hit.Target,
		"damage":   hit.Damage,
		"distance": hit.Distance,
	})
}

// JumpResolved writes one region transition point.
func (s *Sink) JumpResolved(ship, from, to string) {
	s.emit(MeasurementJump, map[string]string{"to": to}, map[string]any{
		"ship": ship,
		"from": from,
	})
}

// Flush writes any partial window and pushes buffered points out.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frames > 0 {
		s.emitFramesLocked()
	}
	if f, ok := s.out.(flusher); ok {
		f.Flush()
	}
	if s.backup != nil {
		return s.backup.Flush()
	}
	return nil
}

// Close flushes and releases the client or backup file.
func (s *Sink) Close() error {
	err := s.Flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	if s.backup != nil {
		err = errors.Join(err, s.backup.Close(), s.file.Close())
		s.backup, s.file = nil, nil
	}
	return err
}

// Written reports how many points were handed off and how many failed.
func (s *Sink) Written() (written, failed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written, s.errors
}

func (s *Sink) emit(measurement string, tags map[string]string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLocked(measurement, tags, fields)
}

func (s *Sink) emitFramesLocked() {
	s.writeLocked(MeasurementFrames, nil, map[string]any{
		"frames":      s.frames,
		"sim_seconds": s.elapsed,
		"regions":     s.regions,
		"gun_shots":   s.guns,
		"missiles":    s.missiles,
	})
	s.frames, s.elapsed, s.regions, s.guns, s.missiles = 0, 0, 0, 0, 0
}

func (s *Sink) writeLocked(measurement string, tags map[string]string, fields map[string]any) {
	if tags == nil {
		tags = map[string]string{}
	}
	if s.mission != "" {
		tags["mission"] = s.mission
	}
	point := write.NewPoint(measurement, tags, fields, s.now())

	//1.- The live writer batches internally; the backup takes one line per point.
	switch {
	case s.out != nil:
		s.out.WritePoint(point)
	case s.backup != nil:
		line := write.PointToLineProtocol(point, time.Nanosecond)
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if _, err := s.backup.Write([]byte(line)); err != nil {
			s.errors++
			s.log.Error("telemetry backup write failed", logging.Error(err))
			return
		}
	default:
		return
	}
	s.written++
}

func weaponTag(missile bool) string {
	if missile {
		return "missile"
	}
	return "gun"
}

var _ sim.Telemetry = (*Sink)(nil)
