package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/ai"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/auth"
	configpkg "github.com/StarshatterWars/SSW-UE55-sub001/internal/config"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/debrief"
	grpcstream "github.com/StarshatterWars/SSW-UE55-sub001/internal/grpc"
	httpapi "github.com/StarshatterWars/SSW-UE55-sub001/internal/http"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/hud"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/metrics"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/replay"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/sim"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/simulation"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/telemetry"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/tracing"
)

const (
	replayInterval  = 200 * time.Millisecond
	commitTimeout   = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	passLeeway      = 2 * time.Second
)

func main() {
	cfg, err := configpkg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	logging.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("simhost stopped", logging.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run flies the configured mission until ctx ends or the run duration elapses,
// then commits the debrief and shuts every surface down.
func run(ctx context.Context, cfg *configpkg.Config, log *logging.Logger) error {
	if cfg.RunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunDuration)
		defer cancel()
	}
	state := newHostState(nil)

	//1.- Tracing comes first so the mission spans are exported.
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background(), shutdownTracing, log)

	mission, err := loadMission(cfg)
	if err != nil {
		return fmt.Errorf("load mission: %w", err)
	}
	log = log.With(logging.String("mission", mission.Name))

	//2.- Telemetry sinks: metrics always, replay and influx when configured.
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	sinks := []sim.Telemetry{collector}

	var recorder *replay.Recorder
	if cfg.Replay.Dir != "" {
		recorder, err = openRecorder(cfg.Replay, mission, log)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := recorder.Close(); cerr != nil {
				log.Error("close replay", logging.Error(cerr))
			}
		}()
		sinks = append(sinks, recorder)
	}

	influx, err := telemetry.Connect(ctx, cfg.Influx, telemetry.WithLogger(log))
	switch {
	case errors.Is(err, telemetry.ErrDisabled):
	case err != nil:
		return fmt.Errorf("connect telemetry: %w", err)
	default:
		influx.SetMission(mission.Name)
		defer func() {
			if cerr := influx.Close(); cerr != nil {
				log.Warn("close telemetry", logging.Error(cerr))
			}
		}()
		sinks = append(sinks, influx)
	}

	traffic := radio.NewTraffic(radio.Config{})
	opts := []sim.Option{
		sim.WithLogger(log),
		sim.WithSeed(cfg.MissionSeed),
		sim.WithRadio(traffic),
		sim.WithDirectorFactory(ai.Factory(ai.Options{Level: cfg.Tuning.AILevel})),
		sim.WithTelemetry(sim.MultiTelemetry(sinks...)),
		sim.WithTuning(sim.Tuning{
			FarcasterConeDeg:   cfg.Tuning.FarcasterConeDeg,
			FarcasterPassError: cfg.Tuning.FarcasterPassError,
			PointDefenseDerate: cfg.Tuning.PointDefenseDerate,
		}),
	}

	var ledger httpapi.Ledger
	if cfg.Debrief.Driver != "none" {
		store, err := debrief.Open(cfg.Debrief.Driver, cfg.Debrief.DSN, log)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				log.Warn("close debrief store", logging.Error(cerr))
			}
		}()
		ledger = store
		opts = append(opts, sim.WithDebriefer(store))
	}
	world := sim.New(opts...)

	//3.- Operational surfaces.
	var signer *auth.Signer
	if cfg.Admin.HUDSecret != "" {
		if signer, err = auth.NewSigner(cfg.Admin.HUDSecret, passLeeway); err != nil {
			return fmt.Errorf("init hud signer: %w", err)
		}
	}
	hub := hud.NewHub(hud.Options{
		Logger:       log,
		Signer:       signer,
		AllowOrigins: cfg.Admin.AllowOrigins,
		Throttle:     hud.NewThrottle(0, 0, nil),
		OnClients:    collector.SetHUDClients,
	})
	defer hub.Close()

	handlerOpts := httpapi.Options{
		Logger:      log,
		Readiness:   state,
		Metrics:     collector.Handler(),
		HUD:         hub,
		Signer:      signer,
		Ledger:      ledger,
		AdminToken:  cfg.Admin.Token,
		RateLimiter: httpapi.NewSlidingWindowLimiter(cfg.Admin.FlushWindow, cfg.Admin.FlushBurst, nil),
	}
	if recorder != nil {
		handlerOpts.Replay = httpapi.ReplayFlusherFunc(recorder.Flush)
	}
	mux := http.NewServeMux()
	httpapi.NewHandlerSet(handlerOpts).Register(mux)
	adminLis, err := net.Listen("tcp", cfg.Admin.Addr)
	if err != nil {
		return fmt.Errorf("listen admin: %w", err)
	}
	admin := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if serr := admin.Serve(adminLis); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Error("admin server failed", logging.Error(serr))
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := admin.Shutdown(sctx); serr != nil {
			log.Warn("admin shutdown", logging.Error(serr))
		}
	}()

	security, err := grpcstream.SecurityOptions(cfg.GRPCAuth, log)
	if err != nil {
		return fmt.Errorf("grpc security: %w", err)
	}
	status := grpcstream.NewServer(grpcstream.ServerOptions{Logger: log, Radio: traffic, Metrics: collector, Security: security})
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	links := surfacesFor(adminLis.Addr().String(), grpcLis.Addr().String(), false)
	log.Info("sim host listening",
		logging.String("admin", links.Admin),
		logging.String("hud", links.HUD),
		logging.String("hud_pass", links.Pass),
		logging.String("readyz", links.Health),
		logging.String("grpc", links.GRPC),
	)
	go func() {
		if serr := status.Serve(grpcLis); serr != nil {
			log.Error("grpc server failed", logging.Error(serr))
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		status.Stop(sctx)
	}()

	//4.- Fly the mission.
	world.LoadMission(mission)
	if err := world.ExecMission(); err != nil {
		state.fail(err)
		return fmt.Errorf("exec mission: %w", err)
	}
	state.begin(mission.Name)
	if recorder != nil {
		sub, err := traffic.Subscribe(ctx, "replay", 64)
		if err != nil {
			return fmt.Errorf("subscribe replay to radio: %w", err)
		}
		go recorder.Listen(ctx, sub)
	}

	loop := newFrameLoop(cfg, world, hub, status.Board(), recorder, collector)
	loop.Start(ctx)
	<-ctx.Done()
	loop.Stop()
	state.end()
	log.Info("mission loop stopped", logging.Int64("frames", int64(loop.Frames())))

	//5.- Commit with a fresh context; the run context is already done.
	cctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	err = world.CommitMission(cctx)
	world.UnloadMission()
	return err
}

func newFrameLoop(cfg *configpkg.Config, world *sim.Sim, hub *hud.Hub, board *grpcstream.Board, recorder *replay.Recorder, collector *metrics.Collector) *simulation.Loop {
	step := time.Duration(float64(time.Second) / cfg.FrameRate)
	monitor := simulation.NewTickMonitor(step)
	perSecond := uint64(cfg.FrameRate)
	if perSecond == 0 {
		perSecond = 1
	}
	opts := []simulation.LoopOption{
		simulation.WithMonitor(monitor),
		simulation.WithHook(hub.Feed(world, cfg.Admin.HUDInterval)),
		simulation.WithHook(board.Feed(world, cfg.Admin.HUDInterval)),
		simulation.WithHook(func(frame uint64, _ time.Duration) {
			collector.ObserveTicks(monitor.Snapshot())
			if recorder != nil && frame%perSecond == 0 {
				collector.SetReplayBytes(recorder.Snapshot().WrittenBytes)
			}
		}),
	}
	if recorder != nil {
		opts = append(opts, simulation.WithHook(func(uint64, time.Duration) { recorder.Capture(world) }))
	}
	return simulation.NewLoop(cfg.FrameRate, world, opts...)
}

// openRecorder prunes old bundles and starts a new recording for m.
func openRecorder(cfg configpkg.ReplayConfig, m *sim.Mission, log *logging.Logger) (*replay.Recorder, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create replay root: %w", err)
	}
	removed, err := replay.Prune(cfg.Dir, replay.RetentionPolicy{MaxBundles: cfg.MaxBundles, MaxAge: cfg.MaxAge}, time.Now(), log)
	if err != nil {
		log.Warn("replay retention failed", logging.Error(err))
	} else if len(removed) > 0 {
		log.Info("replay bundles pruned", logging.Int("removed", len(removed)))
	}
	writer, _, err := replay.NewWriter(cfg.Dir, m.Name, replayInterval, nil)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	writer.SetHeader(m.Seed, regionNames(m), regionParams(m))
	return replay.NewRecorder(writer, replayInterval, log), nil
}
