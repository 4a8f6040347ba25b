package palisade

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/palisade-dev/palisade-go/internal/config"
	"github.com/palisade-dev/palisade-go/internal/engine"
	"github.com/palisade-dev/palisade-go/internal/policycache"
	"github.com/palisade-dev/palisade-go/internal/telemetry"
)

// settings is the mutable struct every Option writes into, resolved from
// PALISADE_* environment variables first and then overridden by explicit
// Options, mirroring the reference SDK's options.go precedence.
type settings struct {
	config.Options

	Logger            *slog.Logger
	MetricsRegisterer prometheus.Registerer
	TracingProvider   *telemetry.Provider
	Validators        []engine.NamedValidator
}

// Option is a functional option for New/Init.
type Option func(*settings)

// WithAPIKey sets the API key sent as X-Veto-API-Key. Defaults to
// PALISADE_API_KEY.
func WithAPIKey(key string) Option {
	return func(s *settings) { s.APIKey = key }
}

// WithBaseURL sets the Palisade Policy API base URL. Defaults to
// PALISADE_BASE_URL or cloudclient.DefaultBaseURL.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.BaseURL = url }
}

// WithLogLevel sets the logger's level: debug, info, warn, error, or
// silent. Defaults to PALISADE_LOG_LEVEL or "info".
func WithLogLevel(level string) Option {
	return func(s *settings) { s.LogLevel = level }
}

// WithSessionID sets the client's session identifier, which is logged when
// the client is constructed. Defaults to PALISADE_SESSION_ID or a generated
// UUID. It is not attached to individual calls, their ValidationContext, or
// their history entries.
func WithSessionID(id string) Option {
	return func(s *settings) { s.SessionID = id }
}

// WithAgentID sets the client's agent identifier. Defaults to
// PALISADE_AGENT_ID. It is stored on the client only and is not attached to
// individual calls, their ValidationContext, or their history entries.
func WithAgentID(id string) Option {
	return func(s *settings) { s.AgentID = id }
}

// WithMode sets strict (block denied calls) or log (record only) mode.
// Defaults to PALISADE_MODE or "strict".
func WithMode(mode config.Mode) Option {
	return func(s *settings) { s.Mode = mode }
}

// WithFailMode sets whether the cloud client fails open or closed when it
// cannot reach the server at all. Defaults to PALISADE_FAIL_MODE or
// "closed".
func WithFailMode(mode config.FailMode) Option {
	return func(s *settings) { s.FailMode = mode }
}

// WithHistoryCapacity sets how many past calls the client retains.
func WithHistoryCapacity(n int) Option {
	return func(s *settings) { s.HistoryCapacity = n }
}

// WithCacheHorizons sets the policy cache's fresh and max horizons, in
// seconds.
func WithCacheHorizons(freshSeconds, maxSeconds float64) Option {
	return func(s *settings) {
		s.FreshSeconds = freshSeconds
		s.MaxSeconds = maxSeconds
	}
}

// WithPollOptions sets the approval poll interval and timeout, in seconds.
func WithPollOptions(intervalSeconds, timeoutSeconds float64) Option {
	return func(s *settings) {
		s.PollIntervalSeconds = intervalSeconds
		s.PollTimeoutSeconds = timeoutSeconds
	}
}

// WithRetries sets the cloud client's retry count and delay between
// attempts, in seconds.
func WithRetries(retries int, delaySeconds float64) Option {
	return func(s *settings) {
		s.Retries = retries
		s.RetryDelaySeconds = delaySeconds
	}
}

// WithResponseCache sets the cloud client's best-effort validate()-response
// dedup cache TTL (seconds) and maximum entry count. A zero TTL disables
// the cache.
func WithResponseCache(ttlSeconds float64, maxSize int) Option {
	return func(s *settings) {
		s.ResponseCacheTTLSeconds = ttlSeconds
		s.ResponseCacheMaxSize = maxSize
	}
}

// WithLogger overrides the default stderr slog.Logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.Logger = logger }
}

// WithMetricsRegisterer enables Prometheus metrics, registered against reg.
// Without this option the client records no metrics.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) { s.MetricsRegisterer = reg }
}

// WithTracingProvider attaches an OpenTelemetry Provider (see
// telemetry.NewProvider); every Intercept call then runs inside a span
// tagged with the tool name. Without this option the client creates no
// spans.
func WithTracingProvider(p *telemetry.Provider) Option {
	return func(s *settings) { s.TracingProvider = p }
}

// WithValidators adds custom validators to the engine, in addition to the
// built-in palisade-cloud-validator. They run in (priority, insertion)
// order alongside it.
func WithValidators(vs ...engine.NamedValidator) Option {
	return func(s *settings) { s.Validators = append(s.Validators, vs...) }
}

// defaultSettings resolves PALISADE_* environment variables into a settings
// value before any Option is applied.
func defaultSettings() settings {
	return settings{
		Options: config.Options{
			APIKey:                  os.Getenv("PALISADE_API_KEY"),
			BaseURL:                 envOrDefault("PALISADE_BASE_URL", "https://api.palisade.dev"),
			LogLevel:                envOrDefault("PALISADE_LOG_LEVEL", "info"),
			SessionID:               os.Getenv("PALISADE_SESSION_ID"),
			AgentID:                 os.Getenv("PALISADE_AGENT_ID"),
			Mode:                    config.Mode(envOrDefault("PALISADE_MODE", string(config.ModeStrict))),
			HistoryCapacity:         parseIntEnv("PALISADE_HISTORY_CAPACITY", 100),
			FreshSeconds:            parseFloatEnv("PALISADE_CACHE_FRESH_SECONDS", policycache.DefaultFreshSeconds),
			MaxSeconds:              parseFloatEnv("PALISADE_CACHE_MAX_SECONDS", policycache.DefaultMaxSeconds),
			PollIntervalSeconds:     parseFloatEnv("PALISADE_POLL_INTERVAL_SECONDS", 2.0),
			PollTimeoutSeconds:      parseFloatEnv("PALISADE_POLL_TIMEOUT_SECONDS", 300.0),
			Retries:                 parseIntEnv("PALISADE_RETRIES", 2),
			RetryDelaySeconds:       parseFloatEnv("PALISADE_RETRY_DELAY_SECONDS", 1.0),
			ResponseCacheTTLSeconds: parseFloatEnv("PALISADE_RESPONSE_CACHE_TTL_SECONDS", 5.0),
			ResponseCacheMaxSize:    parseIntEnv("PALISADE_RESPONSE_CACHE_MAX_SIZE", 1000),
			FailMode:                config.FailMode(envOrDefault("PALISADE_FAIL_MODE", string(config.FailClosed))),
		},
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func parseIntEnv(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return defaultVal
}

func parseFloatEnv(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return defaultVal
}

// parseLogLevel converts LogLevel into a slog.Level. "silent" is mapped to
// a level above Error so every record is filtered out without needing a
// separate discard handler.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "silent":
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

// durationSeconds converts a float64 seconds value into a time.Duration,
// matching internal/cloudclient's PollOptions convention.
func durationSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
