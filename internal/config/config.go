// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// logging, the catalog database path, the conversation-engine policy knobs
// (pagination, negativity threshold, resolution-loop bounds, hand-off
// timers), rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig holds the oracle backend settings.
type LLMConfig struct {
	GeminiAPIKey string        // GEMINI_API_KEY (empty → deterministic fallback oracle)
	GeminiModel  string        // GEMINI_MODEL
	Timeout      time.Duration // LLM_TIMEOUT per oracle call
}

// EngineConfig holds the conversation-engine policy knobs.
type EngineConfig struct {
	// PageSize is the catalog page size used for search and "show more".
	PageSize int
	// HistoryWindow is how many message pairs are kept readable per session.
	HistoryWindow int
	// OracleHistory is how many pairs are sent to the oracle as context.
	OracleHistory int
	// NegativityThreshold is the hostile-turn count that forces a hand-off.
	NegativityThreshold int
	// ResolveMaxPages caps the purchase resolution loop page count.
	ResolveMaxPages int
	// CloseMatchThreshold is the minimum score to accept a CLOSE_MATCH.
	CloseMatchThreshold float64
	// MinImageSimilarity is the similarity floor for photo lookups.
	MinImageSimilarity float64
	// StrictPagination applies strict category/properties filters on
	// "show more" pages.
	StrictPagination bool
	// HandoverTimeout is how long a hand-off state lasts before the
	// sweeper resets the session to idle.
	HandoverTimeout time.Duration
	// SweepInterval is the sweeper's tick period.
	SweepInterval time.Duration
	// SessionTTL evicts idle sessions from the store.
	SessionTTL time.Duration

	// StoreAddress and StoreHours are surfaced on store-info requests and
	// as the offline purchase path.
	StoreAddress string
	StoreHours   string
	StoreMapURL  string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// App
	DBPath string // SQLite path holding the product catalog

	Engine EngineConfig
	LLM    LLMConfig

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "catalog.db"),

		Engine: EngineConfig{
			PageSize:            getint("PAGE_SIZE", 8),
			HistoryWindow:       getint("HISTORY_WINDOW", 14),
			OracleHistory:       getint("ORACLE_HISTORY", 5),
			NegativityThreshold: getint("NEGATIVITY_THRESHOLD", 4),
			ResolveMaxPages:     getint("RESOLVE_MAX_PAGES", 5),
			CloseMatchThreshold: getfloat("CLOSE_MATCH_THRESHOLD", 0.75),
			MinImageSimilarity:  getfloat("MIN_IMAGE_SIMILARITY", 0.60),
			StrictPagination:    getbool("PAGINATION_STRICT", true),
			HandoverTimeout:     getdur("HANDOVER_TIMEOUT", 30*time.Minute),
			SweepInterval:       getdur("SWEEP_INTERVAL", 5*time.Minute),
			SessionTTL:          getdur("SESSION_TTL", 24*time.Hour),
			StoreAddress:        getenv("STORE_ADDRESS", "số 8 ngõ 117 Thái Hà, Đống Đa, Hà Nội"),
			StoreHours:          getenv("STORE_HOURS", "8h đến 18h"),
			StoreMapURL:         getenv("STORE_MAP_URL", ""),
		},

		LLM: LLMConfig{
			GeminiAPIKey: getenv("GEMINI_API_KEY", ""),
			GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:      getdur("LLM_TIMEOUT", 60*time.Second),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "chatbot-hm"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Engine.PageSize < 1 {
		return cfg, errors.New("PAGE_SIZE must be >= 1")
	}
	if cfg.Engine.HistoryWindow < 1 || cfg.Engine.OracleHistory < 1 {
		return cfg, errors.New("HISTORY_WINDOW and ORACLE_HISTORY must be >= 1")
	}
	if cfg.Engine.NegativityThreshold < 1 {
		return cfg, errors.New("NEGATIVITY_THRESHOLD must be >= 1")
	}
	if cfg.Engine.ResolveMaxPages < 1 {
		return cfg, errors.New("RESOLVE_MAX_PAGES must be >= 1")
	}
	if cfg.Engine.CloseMatchThreshold < 0 || cfg.Engine.CloseMatchThreshold > 1 {
		return cfg, errors.New("CLOSE_MATCH_THRESHOLD must be in [0,1]")
	}
	if cfg.Engine.MinImageSimilarity < 0 || cfg.Engine.MinImageSimilarity > 1 {
		return cfg, errors.New("MIN_IMAGE_SIMILARITY must be in [0,1]")
	}
	if cfg.Engine.HandoverTimeout <= 0 || cfg.Engine.SweepInterval <= 0 || cfg.Engine.SessionTTL <= 0 {
		return cfg, errors.New("HANDOVER_TIMEOUT, SWEEP_INTERVAL and SESSION_TTL must be > 0")
	}
	if cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("LLM_TIMEOUT must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
