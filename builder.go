package portalAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/portalAuth/cookiejar"
	"github.com/MrEthical07/portalAuth/device"
	"github.com/MrEthical07/portalAuth/events"
	"github.com/MrEthical07/portalAuth/internal/audit"
	"github.com/MrEthical07/portalAuth/internal/flows"
	"github.com/MrEthical07/portalAuth/notify"
	"github.com/MrEthical07/portalAuth/querycache"
	"github.com/MrEthical07/portalAuth/refresh"
	"github.com/MrEthical07/portalAuth/tokenstore"
	"github.com/MrEthical07/portalAuth/transport"
)

// Builder assembles an Engine.
//
// Builder instances are intended to be configured during initialization and
// used for exactly one Build call.
type Builder struct {
	config Config

	backend    tokenstore.Backend
	redis      redis.UniversalClient
	notifier   notify.Notifier
	logger     *slog.Logger
	httpClient *http.Client
	auditSink  AuditSink
	guard      *refresh.Guard
	bus        *events.Bus
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Transport.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Transport.BaseURL = baseURL
	return b
}

// WithBackend injects a token store backend, overriding Storage.Backend.
func (b *Builder) WithBackend(backend tokenstore.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis injects the client used by the redis storage backend. The
// engine does not close injected clients.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	b.config.Storage.Backend = StorageRedis
	return b
}

// WithNotifier sets the presenter for user-facing messages.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Without one, a stderr logger is
// built from Config.Log whenever Log.Level is set; an empty or "off" level
// discards logs.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithHTTPClient sets the underlying HTTP client.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithGuard shares a refresh guard between engines. Tests use it to observe
// guard state directly.
func (b *Builder) WithGuard(g *refresh.Guard) *Builder {
	b.guard = g
	return b
}

// WithBus shares an event bus owned by the caller.
func (b *Builder) WithBus(bus *events.Bus) *Builder {
	b.bus = bus
	return b
}

// WithClock replaces time.Now for the guard, cache, jar and device ids.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithSiblingPolicy selects how concurrent 401s behave while a refresh is
// in flight.
func (b *Builder) WithSiblingPolicy(p transport.SiblingPolicy) *Builder {
	b.config.Refresh.SiblingPolicy = p
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. The
// returned engine is in StateInitializing until Start runs.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	check := cfg
	if b.backend != nil || b.redis != nil {
		// Injected storage is already configured.
		check.Storage = StorageConfig{Backend: StorageMemory}
	}
	if err := check.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = configLogger(cfg.Log, os.Stderr)
	}

	e := &Engine{
		config:  cfg,
		logger:  logger,
		now:     now,
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- TOKEN STORE --------
	backend, closer, err := b.openBackend(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		e.closers = append(e.closers, closer)
	}
	e.store = tokenstore.New(backend, tokenstore.Options{
		Logger: logger.With("component", "tokenstore"),
		OnFailure: func(error) {
			e.metrics.Inc(MetricStorageFailure)
		},
	})

	// -------- COOKIE JAR --------
	jarOpts := []cookiejar.Option{
		cookiejar.WithLogger(logger.With("component", "cookiejar")),
		cookiejar.WithClock(now),
	}
	if cfg.Storage.PersistCookies {
		jarOpts = append(jarOpts, cookiejar.WithBackend(backend))
	}
	e.jar = cookiejar.New(jarOpts...)

	// -------- DEVICE --------
	e.device = device.NewResolver(e.store, cfg.Transport.Platform, now)

	// -------- EVENTS + QUERY CACHE --------
	e.bus = b.bus
	if e.bus == nil {
		e.bus = events.NewBus()
	}
	e.cache = querycache.New(querycache.Options{
		StaleTime: cfg.Session.StaleTime,
		Bus:       e.bus,
		Now:       now,
	})
	e.cacheToken = e.cache.Listen(e.bus)

	// -------- NOTIFIER --------
	e.notifier = b.notifier
	if e.notifier == nil {
		e.notifier = notify.Log{Logger: logger.With("component", "notify")}
	}

	// -------- AUDIT --------
	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = audit.SlogSink{Logger: logger.With("component", "audit")}
		}
		e.audit = audit.NewDispatcher(audit.Config{
			Enabled:      true,
			BufferSize:   cfg.Audit.BufferSize,
			DropIfFull:   cfg.Audit.DropIfFull,
			DrainTimeout: cfg.Audit.DrainTimeout,
		}, sink)
	}

	// -------- TRANSPORT --------
	observer := metricsObserver{m: e.metrics}
	client, err := transport.New(e.store, e.jar, transport.Options{
		BaseURL:      cfg.Transport.BaseURL,
		Timeout:      cfg.Transport.Timeout,
		Channels:     cfg.Transport.Channels,
		DeviceHeader: cfg.Transport.DeviceHeader,
		DeviceID: func(ctx context.Context) string {
			id, _ := e.device.Current(ctx)
			return id
		},
		HTTPClient:   b.httpClient,
		Tracker:      e.cache,
		Observer:     observer,
		Logger:       logger.With("component", "transport"),
		UserAgent:    cfg.Transport.UserAgent,
		MaxBodyBytes: cfg.Transport.MaxBodyBytes,
	})
	if err != nil {
		e.closeResources()
		return nil, fmt.Errorf("transport: %w", err)
	}
	e.client = client

	// -------- REFRESH --------
	e.guard = b.guard
	if e.guard == nil {
		e.guard = refresh.NewGuard()
	}
	e.coordinator = transport.NewCoordinator(e.guard, e, transport.CoordinatorOptions{
		MinInterval: cfg.Refresh.MinInterval,
		Policy:      cfg.Refresh.SiblingPolicy,
		Now:         now,
		Observer:    observer,
		Logger:      logger.With("component", "coordinator"),
	})
	client.SetCoordinator(e.coordinator)

	// -------- FLOWS --------
	e.flows = flows.New(e.flowDeps())
	e.refreshSvc = &RefreshService{engine: e}

	b.built = true
	return e, nil
}

func (b *Builder) openBackend(cfg Config) (tokenstore.Backend, func() error, error) {
	if b.backend != nil {
		return b.backend, nil, nil
	}

	switch cfg.Storage.Backend {
	case StorageFile:
		fb, err := tokenstore.NewFileBackend(cfg.Storage.FilePath, tokenstore.FileOptions{
			Passphrase: cfg.Storage.Passphrase,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("token store: %w", err)
		}
		return fb, nil, nil
	case StorageRedis:
		if b.redis != nil {
			return tokenstore.NewRedisBackend(b.redis, cfg.Storage.RedisPrefix), nil, nil
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		return tokenstore.NewRedisBackend(client, cfg.Storage.RedisPrefix), client.Close, nil
	default:
		return tokenstore.NewMemoryBackend(), nil, nil
	}
}
