package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SIM_CONFIG_FILE", "SIM_FRAME_RATE", "SIM_MISSION_SEED", "SIM_MISSION", "SIM_CATALOG_FILE", "SIM_RUN_DURATION",
		"SIM_LOG_LEVEL", "SIM_LOG_PATH", "SIM_LOG_MAX_SIZE_MB", "SIM_LOG_MAX_BACKUPS", "SIM_LOG_MAX_AGE_DAYS", "SIM_LOG_COMPRESS",
		"SIM_REPLAY_DIR", "SIM_REPLAY_MAX_BUNDLES", "SIM_DEBRIEF_DRIVER", "SIM_DEBRIEF_DSN", "SIM_ADMIN_ADDR", "SIM_ADMIN_TOKEN", "SIM_HUD_SECRET",
		"SIM_HUD_INTERVAL", "SIM_REPLAY_FLUSH_BURST", "SIM_ALLOWED_ORIGINS", "SIM_GRPC_ADDR",
		"SIM_FARCASTER_CONE_DEG", "SIM_POINT_DEFENSE_DERATE", "SIM_AI_LEVEL", "SIM_LOG_GELF_ADDR",
		"SIM_INFLUX_URL", "SIM_INFLUX_TOKEN", "SIM_INFLUX_ORG", "SIM_INFLUX_BUCKET", "SIM_INFLUX_BACKUP",
		"SIM_TRACING_ENABLED", "SIM_TRACING_EXPORTER", "SIM_OTLP_ENDPOINT", "SIM_TRACING_SERVICE_NAME", "SIM_TRACING_SAMPLE_RATIO",
		"SIM_GRPC_AUTH_MODE", "SIM_GRPC_SHARED_SECRET", "SIM_GRPC_TLS_CERT", "SIM_GRPC_TLS_KEY", "SIM_GRPC_CLIENT_CA",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.FrameRate != DefaultFrameRate {
		t.Fatalf("expected default frame rate %v, got %v", DefaultFrameRate, cfg.FrameRate)
	}
	if cfg.MissionSeed != DefaultMissionSeed {
		t.Fatalf("expected default seed %q, got %q", DefaultMissionSeed, cfg.MissionSeed)
	}
	if cfg.Mission != DefaultMission || cfg.CatalogFile != "" {
		t.Fatalf("expected the stock %q mission, got %q from %q", DefaultMission, cfg.Mission, cfg.CatalogFile)
	}
	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Debrief.Driver != DefaultDebriefDriver || cfg.Debrief.DSN != DefaultDebriefDSN {
		t.Fatalf("unexpected debrief defaults: %+v", cfg.Debrief)
	}
	if cfg.Replay.MaxBundles != DefaultReplayMaxBundles || cfg.Replay.MaxAge != DefaultReplayMaxAge {
		t.Fatalf("unexpected replay retention defaults: %+v", cfg.Replay)
	}
	if cfg.Admin.HUDInterval != DefaultHUDInterval {
		t.Fatalf("expected default hud interval %v, got %v", DefaultHUDInterval, cfg.Admin.HUDInterval)
	}
	if cfg.Admin.AllowOrigins != nil {
		t.Fatalf("expected no allowed origins, got %#v", cfg.Admin.AllowOrigins)
	}
	if cfg.Tuning.FarcasterConeDeg != DefaultFarcasterConeDeg || cfg.Tuning.PointDefenseDerate != DefaultPointDefenseDerate {
		t.Fatalf("unexpected tuning defaults: %+v", cfg.Tuning)
	}
	if cfg.Tuning.AILevel != DefaultAILevel {
		t.Fatalf("expected default ai level %d, got %d", DefaultAILevel, cfg.Tuning.AILevel)
	}
	if cfg.Influx.URL != "" || cfg.Influx.Bucket != DefaultInfluxBucket {
		t.Fatalf("unexpected influx defaults: %+v", cfg.Influx)
	}
	if cfg.Tracing.Enabled || cfg.Tracing.Exporter != DefaultTracingExporter || cfg.Tracing.SampleRatio != 1 {
		t.Fatalf("unexpected tracing defaults: %+v", cfg.Tracing)
	}
}

func TestLoadTelemetryOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIM_INFLUX_URL", "http://influx:8086")
	t.Setenv("SIM_INFLUX_ORG", "wing")
	t.Setenv("SIM_TRACING_ENABLED", "true")
	t.Setenv("SIM_TRACING_EXPORTER", "otlp")
	t.Setenv("SIM_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("SIM_LOG_GELF_ADDR", "graylog:12201")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Influx.URL != "http://influx:8086" || cfg.Influx.Org != "wing" {
		t.Fatalf("unexpected influx config: %+v", cfg.Influx)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.Endpoint != "collector:4317" {
		t.Fatalf("unexpected tracing config: %+v", cfg.Tracing)
	}
	if cfg.Logging.GELFAddr != "graylog:12201" {
		t.Fatalf("unexpected gelf address: %q", cfg.Logging.GELFAddr)
	}

	//1.- An influx URL without an org is refused.
	t.Setenv("SIM_INFLUX_ORG", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SIM_INFLUX_ORG") {
		t.Fatalf("expected the missing org to be reported, got %v", err)
	}
}

func TestLoadGRPCAuth(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.GRPCAuth.Mode != GRPCAuthModeNone {
		t.Fatalf("expected unauthenticated grpc by default, got %q", cfg.GRPCAuth.Mode)
	}

	//1.- Shared secret mode needs the secret itself.
	t.Setenv("SIM_GRPC_AUTH_MODE", "Shared_Secret")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SIM_GRPC_SHARED_SECRET") {
		t.Fatalf("expected the missing secret to be reported, got %v", err)
	}
	t.Setenv("SIM_GRPC_SHARED_SECRET", "hunter2")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.GRPCAuth.Mode != GRPCAuthModeSharedSecret || cfg.GRPCAuth.SharedSecret != "hunter2" {
		t.Fatalf("unexpected grpc auth config: %+v", cfg.GRPCAuth)
	}

	//2.- Unknown modes and incomplete mtls settings are refused.
	t.Setenv("SIM_GRPC_AUTH_MODE", "mtls")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SIM_GRPC_CLIENT_CA") {
		t.Fatalf("expected the missing tls files to be reported, got %v", err)
	}
	t.Setenv("SIM_GRPC_AUTH_MODE", "kerberos")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "kerberos") {
		t.Fatalf("expected the unknown mode to be reported, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIM_FRAME_RATE", "60")
	t.Setenv("SIM_MISSION_SEED", "operation-firestorm")
	t.Setenv("SIM_RUN_DURATION", "90s")
	t.Setenv("SIM_LOG_LEVEL", "debug")
	t.Setenv("SIM_DEBRIEF_DRIVER", "none")
	t.Setenv("SIM_ALLOWED_ORIGINS", "https://example.com, https://demo.local")
	t.Setenv("SIM_POINT_DEFENSE_DERATE", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.FrameRate != 60 {
		t.Fatalf("expected frame rate 60, got %v", cfg.FrameRate)
	}
	if cfg.MissionSeed != "operation-firestorm" {
		t.Fatalf("unexpected seed: %q", cfg.MissionSeed)
	}
	if cfg.RunDuration != 90*time.Second {
		t.Fatalf("unexpected run duration: %v", cfg.RunDuration)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Logging.Level)
	}
	if cfg.Debrief.Driver != "none" {
		t.Fatalf("unexpected debrief driver: %q", cfg.Debrief.Driver)
	}
	if len(cfg.Admin.AllowOrigins) != 2 || cfg.Admin.AllowOrigins[1] != "https://demo.local" {
		t.Fatalf("unexpected origins: %#v", cfg.Admin.AllowOrigins)
	}
	if cfg.Tuning.PointDefenseDerate != 0.5 {
		t.Fatalf("unexpected derate: %v", cfg.Tuning.PointDefenseDerate)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)

	//1.- Write a YAML file that overrides a few defaults.
	path := filepath.Join(t.TempDir(), "sim.yaml")
	body := "frameRate: 20\nmissionSeed: from-file\nreplay:\n  dir: /tmp/replays\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SIM_CONFIG_FILE", path)

	//2.- Environment values still win over file values.
	t.Setenv("SIM_MISSION_SEED", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.FrameRate != 20 {
		t.Fatalf("expected frame rate from file, got %v", cfg.FrameRate)
	}
	if cfg.MissionSeed != "from-env" {
		t.Fatalf("expected env seed override, got %q", cfg.MissionSeed)
	}
	if cfg.Replay.Dir != "/tmp/replays" {
		t.Fatalf("expected replay dir from file, got %q", cfg.Replay.Dir)
	}
}

func TestLoadAggregatesProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIM_FRAME_RATE", "fast")
	t.Setenv("SIM_LOG_MAX_SIZE_MB", "0")
	t.Setenv("SIM_DEBRIEF_DRIVER", "mysql")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid overrides")
	}
	for _, fragment := range []string{"SIM_FRAME_RATE", "SIM_LOG_MAX_SIZE_MB", "SIM_DEBRIEF_DRIVER"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected error to mention %s, got %v", fragment, err)
		}
	}
}
