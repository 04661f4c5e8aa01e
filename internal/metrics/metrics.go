package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/combat"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/simulation"
)

// Collector bundles the Prometheus metrics of a running simulation. It satisfies
// sim.Telemetry so the sim can drive counters directly from the frame loop.
type Collector struct {
	gatherer prometheus.Gatherer

	Frames      prometheus.Counter
	GameSeconds prometheus.Counter
	Regions     prometheus.Gauge
	Shots       *prometheus.CounterVec
	Kills       *prometheus.CounterVec
	Splash      prometheus.Counter
	SplashDmg   prometheus.Counter
	Jumps       *prometheus.CounterVec
	FrameTime   prometheus.Histogram
	Overruns    prometheus.Gauge
	Skipped     prometheus.Gauge
	HUDClients  prometheus.Gauge
	ReplayBytes prometheus.Gauge

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, defaulting to the global registry.
// Registering twice against the same registry reuses the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}
	var err error

	if c.Frames, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_frames_total", Help: "Simulation frames executed.",
	})); err != nil {
		return nil, err
	}
	if c.GameSeconds, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_game_seconds_total", Help: "Game time advanced in seconds.",
	})); err != nil {
		return nil, err
	}
	if c.Regions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_regions", Help: "Regions in the running mission.",
	})); err != nil {
		return nil, err
	}
	if c.Shots, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_shots_total", Help: "Shots fired, labeled by weapon kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.Kills, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_kills_total", Help: "Ships destroyed, labeled by the killing weapon kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.Splash, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_splash_hits_total", Help: "Area damage applications.",
	})); err != nil {
		return nil, err
	}
	if c.SplashDmg, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_splash_damage_total", Help: "Area damage dealt.",
	})); err != nil {
		return nil, err
	}
	if c.Jumps, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_jumps_total", Help: "Completed region transitions, labeled by destination.",
	}, []string{"region"})); err != nil {
		return nil, err
	}
	if c.FrameTime, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_frame_duration_seconds",
		Help:    "Wall time spent executing one frame.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})); err != nil {
		return nil, err
	}
	if c.Overruns, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_frame_overruns", Help: "Frames that exceeded the frame budget.",
	})); err != nil {
		return nil, err
	}
	if c.Skipped, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_frames_skipped", Help: "Frames dropped because the loop fell behind.",
	})); err != nil {
		return nil, err
	}
	if c.HUDClients, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_hud_clients", Help: "Connected HUD feed clients.",
	})); err != nil {
		return nil, err
	}
	if c.ReplayBytes, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_replay_written_bytes", Help: "Uncompressed bytes written to the current recording.",
	})); err != nil {
		return nil, err
	}
	if c.RPCRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_rpc_requests_total", Help: "Status RPCs handled, labeled by service, method and code.",
	}, []string{"service", "method", "code"})); err != nil {
		return nil, err
	}
	if c.RPCDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sim_rpc_duration_seconds",
		Help:    "Status RPC latency, labeled by service and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method"})); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTicks publishes the loop timing snapshot.
func (c *Collector) ObserveTicks(snap simulation.TickMetricsSnapshot) {
	if c == nil {
		return
	}
	c.FrameTime.Observe(snap.Last.Seconds())
	c.Overruns.Set(float64(snap.Overruns))
	c.Skipped.Set(float64(snap.Skipped))
}

// SetHUDClients publishes the HUD feed client count.
func (c *Collector) SetHUDClients(n int) {
	if c != nil {
		c.HUDClients.Set(float64(n))
	}
}

// SetReplayBytes publishes the size of the current recording.
func (c *Collector) SetReplayBytes(n int64) {
	if c != nil {
		c.ReplayBytes.Set(float64(n))
	}
}

// FrameStepped counts a frame.
func (c *Collector) FrameStepped(seconds float64, regions int) {
	c.Frames.Inc()
	if seconds > 0 {
		c.GameSeconds.Add(seconds)
	}
	c.Regions.Set(float64(regions))
}

// ShotFired counts a gun or missile shot.
func (c *Collector) ShotFired(_, _ string, missile bool) {
	c.Shots.WithLabelValues(weaponKind(missile)).Inc()
}

// ShipDestroyed counts a kill.
func (c *Collector) ShipDestroyed(_, _ string, missile bool) {
	c.Kills.WithLabelValues(weaponKind(missile)).Inc()
}

// SplashApplied counts area damage.
func (c *Collector) SplashApplied(hit combat.SplashHit) {
	c.Splash.Inc()
	if hit.Damage > 0 {
		c.SplashDmg.Add(hit.Damage)
	}
}

// JumpResolved counts a completed transition.
func (c *Collector) JumpResolved(_, _, to string) {
	c.Jumps.WithLabelValues(to).Inc()
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *Collector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if c != nil && info != nil {
			c.observeRPC(info.FullMethod, start, err)
		}
		return resp, err
	}
}

// StreamServerInterceptor records one sample per finished stream.
func (c *Collector) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		if c != nil && info != nil {
			c.observeRPC(info.FullMethod, start, err)
		}
		return err
	}
}

func (c *Collector) observeRPC(fullMethod string, start time.Time, err error) {
	service, method := SplitMethod(fullMethod)
	c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
	c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
}

// SplitMethod splits "/pkg.Service/Method" into its service and method parts.
func SplitMethod(fullMethod string) (string, string) {
	trimmed := strings.TrimPrefix(fullMethod, "/")
	service, method, ok := strings.Cut(trimmed, "/")
	if !ok {
		return "unknown", trimmed
	}
	return service, method
}

func weaponKind(missile bool) string {
	if missile {
		return "missile"
	}
	return "gun"
}

// register adds col to reg or returns the compatible collector already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		var zero T
		return zero, err
	}
	return col, nil
}

var _ sim.Telemetry = (*Collector)(nil)
