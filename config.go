package portalAuth

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/portalAuth/device"
	"github.com/MrEthical07/portalAuth/querycache"
	"github.com/MrEthical07/portalAuth/transport"
)

// Config is the top-level engine configuration.
//
// Config values are copied by the Builder; mutating a Config after Build has
// no effect on the engine.
type Config struct {
	Transport TransportConfig
	Refresh   RefreshConfig
	Session   SessionConfig
	Storage   StorageConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

// TransportConfig configures the authenticated HTTP client.
type TransportConfig struct {
	// BaseURL is the API root, for example https://portal.example.edu/api/v1.
	BaseURL      string
	Timeout      time.Duration
	Platform     string
	DeviceHeader string
	// Channels selects how credentials are attached. Both by default.
	Channels     transport.Channel
	UserAgent    string
	MaxBodyBytes int64
}

// RefreshConfig configures the refresh guard and coordinator.
type RefreshConfig struct {
	MinInterval   time.Duration
	SiblingPolicy transport.SiblingPolicy
	// ProactiveLeeway is the default window used by EnsureFresh.
	ProactiveLeeway time.Duration
}

// SessionConfig configures the session layer.
type SessionConfig struct {
	// StaleTime is how long query-cache entries stay fresh.
	StaleTime time.Duration
	// NotifyLogin shows a success message after login. Failures are always
	// shown.
	NotifyLogin bool
}

// StorageBackend selects the durable token store.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
)

// StorageConfig selects and configures the token store backend.
type StorageConfig struct {
	Backend  StorageBackend
	FilePath string
	// Passphrase seals file values at rest when set.
	Passphrase    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	// PersistCookies stores the cookie jar next to the tokens.
	PersistCookies bool
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// DrainTimeout bounds delivery of buffered events on Close. Zero uses
	// the dispatcher default.
	DrainTimeout time.Duration
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LogConfig configures the default logger built when none is injected.
// An empty or "off" Level disables it.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Transport: TransportConfig{
			Timeout:      transport.DefaultTimeout,
			Platform:     device.DefaultPlatform(),
			DeviceHeader: transport.DefaultDeviceHeader,
			Channels:     transport.ChannelsAll,
			UserAgent:    "portalAuth",
			MaxBodyBytes: 4 << 20,
		},
		Refresh: RefreshConfig{
			MinInterval:     transport.DefaultMinRefreshInterval,
			SiblingPolicy:   transport.SiblingFailFast,
			ProactiveLeeway: 2 * time.Minute,
		},
		Session: SessionConfig{
			StaleTime:   querycache.DefaultStaleTime,
			NotifyLogin: true,
		},
		Storage: StorageConfig{
			Backend:     StorageMemory,
			RedisPrefix: "portal",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Log: LogConfig{
			Level:  "off",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	// Transport
	if strings.TrimSpace(c.Transport.BaseURL) == "" {
		return errors.New("Transport BaseURL must be set")
	}
	u, err := url.Parse(c.Transport.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("Transport BaseURL must be an absolute http(s) URL")
	}
	if c.Transport.Timeout <= 0 {
		return errors.New("Transport Timeout must be > 0")
	}
	if strings.TrimSpace(c.Transport.Platform) == "" {
		return errors.New("Transport Platform must be set")
	}
	if strings.Contains(c.Transport.Platform, "-") {
		return errors.New("Transport Platform must not contain '-'")
	}
	if c.Transport.Channels == 0 || c.Transport.Channels&^transport.ChannelsAll != 0 {
		return errors.New("Transport Channels must enable bearer, cookie or both")
	}
	if c.Transport.MaxBodyBytes < 0 {
		return errors.New("Transport MaxBodyBytes must be >= 0")
	}

	// Refresh
	if c.Refresh.MinInterval <= 0 {
		return errors.New("Refresh MinInterval must be > 0")
	}
	if c.Refresh.SiblingPolicy != transport.SiblingFailFast && c.Refresh.SiblingPolicy != transport.SiblingWaitAndReplay {
		return errors.New("Refresh SiblingPolicy is unknown")
	}
	if c.Refresh.ProactiveLeeway < 0 {
		return errors.New("Refresh ProactiveLeeway must be >= 0")
	}

	// Session
	if c.Session.StaleTime < 0 {
		return errors.New("Session StaleTime must be >= 0")
	}

	// Storage
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile:
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return errors.New("Storage FilePath must be set for the file backend")
		}
		if c.Storage.Passphrase != "" && len(c.Storage.Passphrase) < 8 {
			return errors.New("Storage Passphrase must be at least 8 bytes")
		}
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("Storage RedisAddr must be set for the redis backend")
		}
		if c.Storage.RedisDB < 0 {
			return errors.New("Storage RedisDB must be >= 0")
		}
	default:
		return errors.New("Storage Backend must be memory, file or redis")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	if c.Audit.DrainTimeout < 0 {
		return errors.New("Audit DrainTimeout must be >= 0")
	}

	// Log
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "", "off", "none", "debug", "info", "warn", "warning", "error":
	default:
		return errors.New("Log Level must be off, debug, info, warn or error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return errors.New("Log Format must be json or text")
	}

	return nil
}

/*
====================================
ENVIRONMENT
====================================
*/

// ConfigFromEnv overlays environment variables on DefaultConfig. Variables
// are named <prefix>_<NAME>; prefix defaults to PORTAL. Malformed values
// keep the default.
//
//	PORTAL_BASE_URL, PORTAL_TIMEOUT, PORTAL_PLATFORM, PORTAL_CHANNELS,
//	PORTAL_MIN_REFRESH_INTERVAL, PORTAL_SIBLING_POLICY, PORTAL_PROACTIVE_LEEWAY,
//	PORTAL_STALE_TIME, PORTAL_STORAGE, PORTAL_STORE_PATH, PORTAL_STORE_PASSPHRASE,
//	PORTAL_REDIS_ADDR, PORTAL_REDIS_PASSWORD, PORTAL_REDIS_DB, PORTAL_REDIS_PREFIX,
//	PORTAL_PERSIST_COOKIES, PORTAL_AUDIT, PORTAL_AUDIT_DRAIN_TIMEOUT,
//	PORTAL_METRICS, PORTAL_LOG_LEVEL, PORTAL_LOG_FORMAT
func ConfigFromEnv(prefix string) Config {
	if prefix == "" {
		prefix = "PORTAL"
	}
	name := func(s string) string { return prefix + "_" + s }
	cfg := defaultConfig()

	cfg.Transport.BaseURL = envString(name("BASE_URL"), cfg.Transport.BaseURL)
	cfg.Transport.Timeout = envDuration(name("TIMEOUT"), cfg.Transport.Timeout)
	cfg.Transport.Platform = envString(name("PLATFORM"), cfg.Transport.Platform)
	if ch, ok := transport.ParseChannels(envString(name("CHANNELS"), "")); ok {
		cfg.Transport.Channels = ch
	}

	cfg.Refresh.MinInterval = envDuration(name("MIN_REFRESH_INTERVAL"), cfg.Refresh.MinInterval)
	switch strings.ToLower(envString(name("SIBLING_POLICY"), "")) {
	case "wait-and-replay", "wait":
		cfg.Refresh.SiblingPolicy = transport.SiblingWaitAndReplay
	case "fail-fast":
		cfg.Refresh.SiblingPolicy = transport.SiblingFailFast
	}
	cfg.Refresh.ProactiveLeeway = envDuration(name("PROACTIVE_LEEWAY"), cfg.Refresh.ProactiveLeeway)

	cfg.Session.StaleTime = envDuration(name("STALE_TIME"), cfg.Session.StaleTime)

	cfg.Storage.Backend = StorageBackend(strings.ToLower(envString(name("STORAGE"), string(cfg.Storage.Backend))))
	cfg.Storage.FilePath = envString(name("STORE_PATH"), cfg.Storage.FilePath)
	cfg.Storage.Passphrase = envString(name("STORE_PASSPHRASE"), cfg.Storage.Passphrase)
	cfg.Storage.RedisAddr = envString(name("REDIS_ADDR"), cfg.Storage.RedisAddr)
	cfg.Storage.RedisPassword = envString(name("REDIS_PASSWORD"), cfg.Storage.RedisPassword)
	cfg.Storage.RedisDB = envInt(name("REDIS_DB"), cfg.Storage.RedisDB)
	cfg.Storage.RedisPrefix = envString(name("REDIS_PREFIX"), cfg.Storage.RedisPrefix)
	cfg.Storage.PersistCookies = envBool(name("PERSIST_COOKIES"), cfg.Storage.PersistCookies)

	cfg.Audit.Enabled = envBool(name("AUDIT"), cfg.Audit.Enabled)
	cfg.Audit.DrainTimeout = envDuration(name("AUDIT_DRAIN_TIMEOUT"), cfg.Audit.DrainTimeout)
	cfg.Metrics.Enabled = envBool(name("METRICS"), cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = envBool(name("LATENCY_HISTOGRAMS"), cfg.Metrics.EnableLatencyHistograms)

	cfg.Log.Level = envString(name("LOG_LEVEL"), cfg.Log.Level)
	cfg.Log.Format = envString(name("LOG_FORMAT"), cfg.Log.Format)
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
