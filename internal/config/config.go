package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultFrameRate is the fixed simulation step frequency in Hz.
	DefaultFrameRate = 30.0
	// DefaultMissionSeed seeds every deterministic random stream in the sim.
	DefaultMissionSeed = "starshatter"
	// DefaultMission names the catalog mission flown at startup.
	DefaultMission = "Picket"
	// DefaultRunDuration of zero runs the host until it is signalled.
	DefaultRunDuration = time.Duration(0)

	// DefaultLogLevel controls verbosity for sim logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written. Empty logs to stdout only.
	DefaultLogPath = ""
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultReplayDir is the root folder for mission recordings. Empty disables recording.
	DefaultReplayDir = "replays"
	// DefaultReplayMaxBundles caps how many mission recordings are kept on disk. Zero keeps all.
	DefaultReplayMaxBundles = 20
	// DefaultReplayMaxAge drops recordings older than this. Zero keeps them forever.
	DefaultReplayMaxAge = 14 * 24 * time.Hour

	// DefaultDebriefDriver selects the gorm dialector used for the score ledger.
	DefaultDebriefDriver = "sqlite"
	// DefaultDebriefDSN is the SQLite file backing the score ledger.
	DefaultDebriefDSN = "debrief.db"

	// DefaultAdminAddr is the HTTP listen address for health, metrics and the HUD feed.
	DefaultAdminAddr = ":43180"
	// DefaultGRPCAddr is the listen address for the gRPC health service.
	DefaultGRPCAddr = ":43181"
	// DefaultGRPCAuthMode leaves the gRPC surface unauthenticated.
	DefaultGRPCAuthMode = GRPCAuthModeNone
	// DefaultHUDInterval throttles how often HUD snapshots are broadcast.
	DefaultHUDInterval = 250 * time.Millisecond
	// DefaultReplayFlushWindow bounds how frequently replay flushes may be requested.
	DefaultReplayFlushWindow = time.Minute
	// DefaultReplayFlushBurst sets how many replay flush requests may be made per window.
	DefaultReplayFlushBurst = 1

	// DefaultFarcasterConeDeg is the velocity/throat alignment that suppresses collision avoidance.
	DefaultFarcasterConeDeg = 35.0
	// DefaultFarcasterPassError is the pass-through miss distance in gate radii.
	DefaultFarcasterPassError = 0.667
	// DefaultPointDefenseDerate scales the shot distance cap before ship targets are considered.
	DefaultPointDefenseDerate = 0.2
	// DefaultAILevel is the skill of computer pilots, from 0 (green) to 2 (ace).
	DefaultAILevel = 2

	// DefaultInfluxBucket receives combat telemetry points when InfluxDB is configured.
	DefaultInfluxBucket = "sim_telemetry"
	// DefaultInfluxBackup is the gzip line protocol file used while InfluxDB is unreachable.
	DefaultInfluxBackup = "telemetry.lp.gz"

	// DefaultTracingExporter selects the span exporter when tracing is enabled.
	DefaultTracingExporter = "stdout"
	// DefaultTracingService names the service in exported spans.
	DefaultTracingService = "simhost"
)

// gRPC authentication modes.
const (
	GRPCAuthModeNone         = "none"
	GRPCAuthModeSharedSecret = "shared_secret"
	GRPCAuthModeMTLS         = "mtls"
)

// Config captures all runtime tunables for the simulation host.
type Config struct {
	FrameRate   float64
	MissionSeed string
	Mission     string
	CatalogFile string
	RunDuration time.Duration
	Logging     LoggingConfig
	Replay      ReplayConfig
	Debrief     DebriefConfig
	Admin       AdminConfig
	GRPCAddr    string
	GRPCAuth    GRPCAuthConfig
	Tuning      TuningConfig
	Influx      InfluxConfig
	Tracing     TracingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// GELFAddr mirrors log lines to a Graylog UDP input when set.
	GELFAddr string
}

// ReplayConfig controls mission recording.
type ReplayConfig struct {
	Dir        string
	MaxBundles int
	MaxAge     time.Duration
}

// DebriefConfig selects the score ledger backend.
type DebriefConfig struct {
	Driver string
	DSN    string
}

// AdminConfig configures the operational HTTP surface.
type AdminConfig struct {
	Addr         string
	Token        string
	HUDSecret    string
	HUDInterval  time.Duration
	FlushWindow  time.Duration
	FlushBurst   int
	AllowOrigins []string
}

// GRPCAuthConfig selects how gRPC callers prove who they are.
type GRPCAuthConfig struct {
	Mode         string
	SharedSecret string
	CertPath     string
	KeyPath      string
	ClientCAPath string
}

// TuningConfig exposes AI and fire-control constants that have no derivation beyond play testing.
type TuningConfig struct {
	FarcasterConeDeg   float64
	FarcasterPassError float64
	PointDefenseDerate float64
	AILevel            int
}

// InfluxConfig points combat telemetry at an InfluxDB v2 server. An empty URL disables it.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Backup string
}

// TracingConfig governs span export.
type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

// Load reads the configuration from an optional config file and environment variables,
// applying defaults and returning every invalid override in a single error.
func Load() (*Config, error) {
	file := viper.New()
	var problems []string

	//1.- Seed values from the optional config file so env variables can still override them.
	if path := strings.TrimSpace(os.Getenv("SIM_CONFIG_FILE")); path != "" {
		file.SetConfigFile(path)
		if err := file.ReadInConfig(); err != nil {
			problems = append(problems, fmt.Sprintf("SIM_CONFIG_FILE could not be read: %v", err))
		}
	}
	defaults(file)

	cfg := &Config{
		FrameRate:   file.GetFloat64("frameRate"),
		MissionSeed: getString("SIM_MISSION_SEED", file.GetString("missionSeed")),
		Mission:     getString("SIM_MISSION", file.GetString("mission")),
		CatalogFile: getString("SIM_CATALOG_FILE", file.GetString("catalogFile")),
		RunDuration: file.GetDuration("runDuration"),
		Logging: LoggingConfig{
			Level:      getString("SIM_LOG_LEVEL", file.GetString("log.level")),
			Path:       getString("SIM_LOG_PATH", file.GetString("log.path")),
			MaxSizeMB:  file.GetInt("log.maxSizeMB"),
			MaxBackups: file.GetInt("log.maxBackups"),
			MaxAgeDays: file.GetInt("log.maxAgeDays"),
			Compress:   file.GetBool("log.compress"),
			GELFAddr:   getString("SIM_LOG_GELF_ADDR", file.GetString("log.gelfAddr")),
		},
		Replay: ReplayConfig{
			Dir:        getString("SIM_REPLAY_DIR", file.GetString("replay.dir")),
			MaxBundles: file.GetInt("replay.maxBundles"),
			MaxAge:     file.GetDuration("replay.maxAge"),
		},
		Debrief: DebriefConfig{
			Driver: strings.ToLower(getString("SIM_DEBRIEF_DRIVER", file.GetString("debrief.driver"))),
			DSN:    getString("SIM_DEBRIEF_DSN", file.GetString("debrief.dsn")),
		},
		Admin: AdminConfig{
			Addr:         getString("SIM_ADMIN_ADDR", file.GetString("admin.addr")),
			Token:        getString("SIM_ADMIN_TOKEN", file.GetString("admin.token")),
			HUDSecret:    getString("SIM_HUD_SECRET", file.GetString("admin.hudSecret")),
			HUDInterval:  file.GetDuration("admin.hudInterval"),
			FlushWindow:  file.GetDuration("admin.flushWindow"),
			FlushBurst:   file.GetInt("admin.flushBurst"),
			AllowOrigins: parseList(getString("SIM_ALLOWED_ORIGINS", strings.Join(file.GetStringSlice("admin.allowOrigins"), ","))),
		},
		GRPCAddr: getString("SIM_GRPC_ADDR", file.GetString("grpc.addr")),
		GRPCAuth: GRPCAuthConfig{
			Mode:         strings.ToLower(getString("SIM_GRPC_AUTH_MODE", file.GetString("grpc.authMode"))),
			SharedSecret: getString("SIM_GRPC_SHARED_SECRET", file.GetString("grpc.sharedSecret")),
			CertPath:     getString("SIM_GRPC_TLS_CERT", file.GetString("grpc.tlsCert")),
			KeyPath:      getString("SIM_GRPC_TLS_KEY", file.GetString("grpc.tlsKey")),
			ClientCAPath: getString("SIM_GRPC_CLIENT_CA", file.GetString("grpc.clientCA")),
		},
		Tuning: TuningConfig{
			FarcasterConeDeg:   file.GetFloat64("tuning.farcasterConeDeg"),
			FarcasterPassError: file.GetFloat64("tuning.farcasterPassError"),
			PointDefenseDerate: file.GetFloat64("tuning.pointDefenseDerate"),
			AILevel:            file.GetInt("tuning.aiLevel"),
		},
		Influx: InfluxConfig{
			URL:    getString("SIM_INFLUX_URL", file.GetString("influx.url")),
			Token:  getString("SIM_INFLUX_TOKEN", file.GetString("influx.token")),
			Org:    getString("SIM_INFLUX_ORG", file.GetString("influx.org")),
			Bucket: getString("SIM_INFLUX_BUCKET", file.GetString("influx.bucket")),
			Backup: getString("SIM_INFLUX_BACKUP", file.GetString("influx.backup")),
		},
		Tracing: TracingConfig{
			Enabled:     file.GetBool("tracing.enabled"),
			Exporter:    strings.ToLower(getString("SIM_TRACING_EXPORTER", file.GetString("tracing.exporter"))),
			Endpoint:    getString("SIM_OTLP_ENDPOINT", file.GetString("tracing.endpoint")),
			ServiceName: getString("SIM_TRACING_SERVICE_NAME", file.GetString("tracing.serviceName")),
			SampleRatio: file.GetFloat64("tracing.sampleRatio"),
		},
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_FRAME_RATE")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_FRAME_RATE must be a positive number, got %q", raw))
		} else {
			cfg.FrameRate = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_RUN_DURATION")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("SIM_RUN_DURATION must be a non-negative duration, got %q", raw))
		} else {
			cfg.RunDuration = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SIM_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SIM_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("SIM_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_REPLAY_MAX_BUNDLES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SIM_REPLAY_MAX_BUNDLES must be a non-negative integer, got %q", raw))
		} else {
			cfg.Replay.MaxBundles = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_HUD_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_HUD_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.Admin.HUDInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_REPLAY_FLUSH_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_REPLAY_FLUSH_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.Admin.FlushBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_FARCASTER_CONE_DEG")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 || value > 90 {
			problems = append(problems, fmt.Sprintf("SIM_FARCASTER_CONE_DEG must be within (0, 90], got %q", raw))
		} else {
			cfg.Tuning.FarcasterConeDeg = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_POINT_DEFENSE_DERATE")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 || value > 1 {
			problems = append(problems, fmt.Sprintf("SIM_POINT_DEFENSE_DERATE must be within (0, 1], got %q", raw))
		} else {
			cfg.Tuning.PointDefenseDerate = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_AI_LEVEL")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 || value > 2 {
			problems = append(problems, fmt.Sprintf("SIM_AI_LEVEL must be 0, 1 or 2, got %q", raw))
		} else {
			cfg.Tuning.AILevel = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_TRACING_ENABLED")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("SIM_TRACING_ENABLED must be a boolean value, got %q", raw))
		} else {
			cfg.Tracing.Enabled = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_TRACING_SAMPLE_RATIO")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 || value > 1 {
			problems = append(problems, fmt.Sprintf("SIM_TRACING_SAMPLE_RATIO must be within [0, 1], got %q", raw))
		} else {
			cfg.Tracing.SampleRatio = value
		}
	}

	//2.- Validate values that may have arrived from the config file as well.
	if cfg.FrameRate <= 0 {
		problems = append(problems, fmt.Sprintf("frameRate must be positive, got %v", cfg.FrameRate))
	}
	switch cfg.Debrief.Driver {
	case "sqlite", "postgres", "none":
	default:
		problems = append(problems, fmt.Sprintf("SIM_DEBRIEF_DRIVER must be sqlite, postgres or none, got %q", cfg.Debrief.Driver))
	}
	if cfg.Debrief.Driver == "postgres" && cfg.Debrief.DSN == DefaultDebriefDSN {
		problems = append(problems, "SIM_DEBRIEF_DSN must be provided for the postgres driver")
	}

	switch cfg.Tracing.Exporter {
	case "stdout", "otlp":
	default:
		problems = append(problems, fmt.Sprintf("SIM_TRACING_EXPORTER must be stdout or otlp, got %q", cfg.Tracing.Exporter))
	}
	switch cfg.GRPCAuth.Mode {
	case GRPCAuthModeNone:
	case GRPCAuthModeSharedSecret:
		if cfg.GRPCAuth.SharedSecret == "" {
			problems = append(problems, "SIM_GRPC_SHARED_SECRET must be provided for shared_secret auth")
		}
	case GRPCAuthModeMTLS:
		if cfg.GRPCAuth.CertPath == "" || cfg.GRPCAuth.KeyPath == "" || cfg.GRPCAuth.ClientCAPath == "" {
			problems = append(problems, "SIM_GRPC_TLS_CERT, SIM_GRPC_TLS_KEY and SIM_GRPC_CLIENT_CA must be provided for mtls auth")
		}
	default:
		problems = append(problems, fmt.Sprintf("SIM_GRPC_AUTH_MODE must be none, shared_secret or mtls, got %q", cfg.GRPCAuth.Mode))
	}
	if cfg.Influx.URL != "" && cfg.Influx.Org == "" {
		problems = append(problems, "SIM_INFLUX_ORG must be provided with SIM_INFLUX_URL")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func defaults(v *viper.Viper) {
	v.SetDefault("frameRate", DefaultFrameRate)
	v.SetDefault("missionSeed", DefaultMissionSeed)
	v.SetDefault("mission", DefaultMission)
	v.SetDefault("runDuration", DefaultRunDuration)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.path", DefaultLogPath)
	v.SetDefault("log.maxSizeMB", DefaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", DefaultLogMaxBackups)
	v.SetDefault("log.maxAgeDays", DefaultLogMaxAgeDays)
	v.SetDefault("log.compress", DefaultLogCompress)
	v.SetDefault("replay.dir", DefaultReplayDir)
	v.SetDefault("replay.maxBundles", DefaultReplayMaxBundles)
	v.SetDefault("replay.maxAge", DefaultReplayMaxAge)
	v.SetDefault("debrief.driver", DefaultDebriefDriver)
	v.SetDefault("debrief.dsn", DefaultDebriefDSN)
	v.SetDefault("admin.addr", DefaultAdminAddr)
	v.SetDefault("admin.hudInterval", DefaultHUDInterval)
	v.SetDefault("admin.flushWindow", DefaultReplayFlushWindow)
	v.SetDefault("admin.flushBurst", DefaultReplayFlushBurst)
	v.SetDefault("grpc.addr", DefaultGRPCAddr)
	v.SetDefault("grpc.authMode", DefaultGRPCAuthMode)
	v.SetDefault("tuning.farcasterConeDeg", DefaultFarcasterConeDeg)
	v.SetDefault("tuning.farcasterPassError", DefaultFarcasterPassError)
	v.SetDefault("tuning.pointDefenseDerate", DefaultPointDefenseDerate)
	v.SetDefault("tuning.aiLevel", DefaultAILevel)
	v.SetDefault("influx.bucket", DefaultInfluxBucket)
	v.SetDefault("influx.backup", DefaultInfluxBackup)
	v.SetDefault("tracing.exporter", DefaultTracingExporter)
	v.SetDefault("tracing.serviceName", DefaultTracingService)
	v.SetDefault("tracing.sampleRatio", 1.0)
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(fallback)
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
