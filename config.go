package clientauth

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/merbs-org/clientauth/api"
	"github.com/merbs-org/clientauth/session"
	"github.com/spf13/viper"
)

// Config is the complete engine configuration. Start from the value returned
// by [DefaultConfig] or [LoadConfig] and adjust fields; [Builder.Build]
// validates it.
type Config struct {
	API            APIConfig            `mapstructure:"api"`
	Session        SessionConfig        `mapstructure:"session"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	BotDetection   BotDetectionConfig   `mapstructure:"bot_detection"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Events         EventsConfig         `mapstructure:"events"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig controls the backend client.
type APIConfig struct {
	BaseURL                 string        `mapstructure:"base_url"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	UploadTimeoutMultiplier int           `mapstructure:"upload_timeout_multiplier"`
	// StrippedFields are removed from every JSON body before it is sent.
	StrippedFields []string `mapstructure:"stripped_fields"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session lifetime and where the session blob
// lives.
type SessionConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	WarningAfter     time.Duration `mapstructure:"warning_after"`
	StorageKey       string        `mapstructure:"storage_key"`
	LegacyStorageKey string        `mapstructure:"legacy_storage_key"`
	// ActivityDebounce coalesces TrackActivity calls.
	ActivityDebounce time.Duration `mapstructure:"activity_debounce"`
	// RedisPrefix namespaces session blobs when a Redis client is supplied.
	RedisPrefix string `mapstructure:"redis_prefix"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds the login and registration attempt policies.
type RateLimitConfig struct {
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	LoginWindow         time.Duration `mapstructure:"login_window"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	RegisterWindow      time.Duration `mapstructure:"register_window"`
	RedisPrefix         string        `mapstructure:"redis_prefix"`
}

/*
====================================
BOT DETECTION CONFIG
====================================
*/

// BotDetectionConfig tunes the interaction-cadence heuristic. Disabled by
// default.
type BotDetectionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// FastInterval is the gap under which two interactions count as suspicious.
	FastInterval time.Duration `mapstructure:"fast_interval"`
	Threshold    int           `mapstructure:"threshold"`
	Decay        int           `mapstructure:"decay"`
}

/*
====================================
CIRCUIT BREAKER CONFIG
====================================
*/

// CircuitBreakerConfig enables the breaker around backend calls.
type CircuitBreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig sizes the lifecycle event bus.
type EventsConfig struct {
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

/*
====================================
METRICS / LOGGING CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

// LoggingConfig is read by hosts that let the library build their logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:                 api.DefaultBaseURL,
			Timeout:                 api.DefaultTimeout,
			UploadTimeoutMultiplier: api.DefaultUploadTimeoutMultiplier,
			StrippedFields:          append([]string(nil), api.DefaultStrippedFields...),
		},
		Session: SessionConfig{
			Timeout:          session.DefaultTimeout,
			WarningAfter:     session.DefaultWarningAfter,
			StorageKey:       session.DefaultStorageKey,
			LegacyStorageKey: session.DefaultLegacyStorageKey,
			ActivityDebounce: time.Second,
			RedisPrefix:      "clientauth:session",
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts:    5,
			LoginWindow:         15 * time.Minute,
			RegisterMaxAttempts: 3,
			RegisterWindow:      time.Hour,
			RedisPrefix:         "clientauth:rate",
		},
		BotDetection: BotDetectionConfig{
			Enabled:      false,
			FastInterval: 50 * time.Millisecond,
			Threshold:    50,
			Decay:        2,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
		},
		Events: EventsConfig{
			BufferSize: 64,
			DropIfFull: false,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.API.StrippedFields = append([]string(nil), cfg.API.StrippedFields...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// API
	if c.API.BaseURL == "" {
		return errors.New("API BaseURL must be set")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return errors.New("API Timeout must be > 0")
	}
	if c.API.UploadTimeoutMultiplier < 1 {
		return errors.New("API UploadTimeoutMultiplier must be >= 1")
	}

	// Session
	if c.Session.Timeout <= 0 {
		return errors.New("Session Timeout must be > 0")
	}
	if c.Session.WarningAfter <= 0 || c.Session.WarningAfter >= c.Session.Timeout {
		return errors.New("Session WarningAfter must be > 0 and < Timeout")
	}
	if c.Session.StorageKey == "" {
		return errors.New("Session StorageKey must be set")
	}
	if c.Session.ActivityDebounce < 0 {
		return errors.New("Session ActivityDebounce must be >= 0")
	}

	// Rate limits
	if c.RateLimit.LoginMaxAttempts <= 0 || c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit login policy requires MaxAttempts > 0 and Window > 0")
	}
	if c.RateLimit.RegisterMaxAttempts <= 0 || c.RateLimit.RegisterWindow <= 0 {
		return errors.New("RateLimit register policy requires MaxAttempts > 0 and Window > 0")
	}

	// Bot detection
	if c.BotDetection.Enabled {
		if c.BotDetection.FastInterval <= 0 {
			return errors.New("BotDetection FastInterval must be > 0 when enabled")
		}
		if c.BotDetection.Threshold <= 0 {
			return errors.New("BotDetection Threshold must be > 0 when enabled")
		}
		if c.BotDetection.Decay < 0 {
			return errors.New("BotDetection Decay must be >= 0")
		}
	}

	// Circuit breaker
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.ConsecutiveFailures == 0 {
			return errors.New("CircuitBreaker ConsecutiveFailures must be > 0 when enabled")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return errors.New("CircuitBreaker Timeout must be > 0 when enabled")
		}
	}

	if c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("Logging Level %q is not supported", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("Logging Format %q is not supported", c.Logging.Format)
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes lists the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports settings that pass Validate but weaken the client.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings

	if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		ws = append(ws, LintWarning{
			Code:    "insecure_base_url",
			Message: "credentials are sent over plain http to a non-local backend",
		})
	}
	if c.Session.Timeout-c.Session.WarningAfter < time.Minute {
		ws = append(ws, LintWarning{
			Code:    "warning_window_short",
			Message: "users get less than a minute between the expiry warning and logout",
		})
	}
	if c.RateLimit.LoginMaxAttempts > 10 {
		ws = append(ws, LintWarning{
			Code:    "login_rate_limit_loose",
			Message: "more than 10 login attempts are allowed per window",
		})
	}
	if !containsFold(c.API.StrippedFields, "password") {
		ws = append(ws, LintWarning{
			Code:    "password_not_stripped",
			Message: "generic requests may send password fields",
		})
	}

	return ws
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

/*
====================================
LOADING
====================================
*/

// EnvPrefix prefixes every environment override, e.g. CLIENTAUTH_API_BASE_URL.
const EnvPrefix = "CLIENTAUTH"

// LoadConfig reads configuration from path (any format viper understands;
// empty path skips the file), then applies environment overrides.
// REACT_APP_API_URL is honoured for the backend URL. The result is validated.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, defaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", EnvPrefix+"_API_BASE_URL", "REACT_APP_API_URL"); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.upload_timeout_multiplier", d.API.UploadTimeoutMultiplier)
	v.SetDefault("api.stripped_fields", d.API.StrippedFields)

	v.SetDefault("session.timeout", d.Session.Timeout)
	v.SetDefault("session.warning_after", d.Session.WarningAfter)
	v.SetDefault("session.storage_key", d.Session.StorageKey)
	v.SetDefault("session.legacy_storage_key", d.Session.LegacyStorageKey)
	v.SetDefault("session.activity_debounce", d.Session.ActivityDebounce)
	v.SetDefault("session.redis_prefix", d.Session.RedisPrefix)

	v.SetDefault("rate_limit.login_max_attempts", d.RateLimit.LoginMaxAttempts)
	v.SetDefault("rate_limit.login_window", d.RateLimit.LoginWindow)
	v.SetDefault("rate_limit.register_max_attempts", d.RateLimit.RegisterMaxAttempts)
	v.SetDefault("rate_limit.register_window", d.RateLimit.RegisterWindow)
	v.SetDefault("rate_limit.redis_prefix", d.RateLimit.RedisPrefix)

	v.SetDefault("bot_detection.enabled", d.BotDetection.Enabled)
	v.SetDefault("bot_detection.fast_interval", d.BotDetection.FastInterval)
	v.SetDefault("bot_detection.threshold", d.BotDetection.Threshold)
	v.SetDefault("bot_detection.decay", d.BotDetection.Decay)

	v.SetDefault("circuit_breaker.enabled", d.CircuitBreaker.Enabled)
	v.SetDefault("circuit_breaker.max_requests", d.CircuitBreaker.MaxRequests)
	v.SetDefault("circuit_breaker.interval", d.CircuitBreaker.Interval)
	v.SetDefault("circuit_breaker.timeout", d.CircuitBreaker.Timeout)
	v.SetDefault("circuit_breaker.consecutive_failures", d.CircuitBreaker.ConsecutiveFailures)

	v.SetDefault("events.buffer_size", d.Events.BufferSize)
	v.SetDefault("events.drop_if_full", d.Events.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
