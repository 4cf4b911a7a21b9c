package clientauth

import (
	"context"
	"errors"
	"net/http"

	"github.com/merbs-org/clientauth/api"
	"github.com/merbs-org/clientauth/events"
	"github.com/merbs-org/clientauth/internal/activity"
	"github.com/merbs-org/clientauth/internal/botdetect"
	"github.com/merbs-org/clientauth/internal/rate"
	"github.com/merbs-org/clientauth/session"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config Config
	logger *zap.Logger
	redis  redis.UniversalClient

	storage    session.Storage
	legacy     session.Storage
	scheduler  session.Scheduler
	httpClient *http.Client
	tracer     trace.TracerProvider
	sinks      []events.Sink

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRedis backs the attempt ledger with Redis. Unless WithStorage is also
// given, the session blob is kept in Redis too.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStorage sets the tab-scoped session storage.
func (b *Builder) WithStorage(s session.Storage) *Builder {
	b.storage = s
	return b
}

// WithLegacyStorage sets the persistent storage whose legacy key is deleted on
// logout and at Start.
func (b *Builder) WithLegacyStorage(s session.Storage) *Builder {
	b.legacy = s
	return b
}

// WithScheduler replaces wall-clock timers, mainly for tests.
func (b *Builder) WithScheduler(s session.Scheduler) *Builder {
	b.scheduler = s
	return b
}

func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// WithSink subscribes sink to lifecycle events from the moment the engine is
// built.
func (b *Builder) WithSink(sink events.Sink) *Builder {
	if sink != nil {
		b.sinks = append(b.sinks, sink)
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sched := b.scheduler
	if sched == nil {
		sched = session.SystemScheduler{}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	engine := &Engine{
		config:   cloneConfig(cfg),
		logger:   logger,
		sched:    sched,
		metrics:  NewMetrics(cfg.Metrics),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	// -------- EVENTS --------
	engine.bus = events.NewBus(events.BusConfig{
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	})
	for _, sink := range b.sinks {
		engine.bus.Subscribe(sink)
	}

	// -------- ATTEMPT LEDGER --------
	if b.redis != nil {
		engine.limiter = rate.NewRedis(b.redis, cfg.RateLimit.RedisPrefix, sched.Now)
	} else {
		engine.limiter = rate.NewMemory(sched.Now)
	}

	// -------- SESSION STORE --------
	storage := b.storage
	if storage == nil && b.redis != nil {
		storage = session.NewRedisStorage(b.redis, cfg.Session.RedisPrefix, cfg.Session.Timeout)
	}
	engine.store = session.NewStore(session.Config{
		Timeout:          cfg.Session.Timeout,
		WarningAfter:     cfg.Session.WarningAfter,
		StorageKey:       cfg.Session.StorageKey,
		LegacyStorageKey: cfg.Session.LegacyStorageKey,
	},
		session.WithStorage(storage),
		session.WithLegacyStorage(b.legacy),
		session.WithScheduler(sched),
		session.WithSink(events.FuncSink(engine.onSessionEvent)),
		session.WithLogger(logger.Named("session")),
	)

	// -------- API CLIENT --------
	apiOpts := []api.Option{
		api.WithTimeout(cfg.API.Timeout),
		api.WithUploadTimeoutMultiplier(cfg.API.UploadTimeoutMultiplier),
		api.WithStrippedFields(cfg.API.StrippedFields...),
		api.WithCredentials(engine.credentials),
		api.WithLogger(logger.Named("api")),
	}
	if b.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(b.httpClient))
	}
	if b.tracer != nil {
		apiOpts = append(apiOpts, api.WithTracerProvider(b.tracer))
	}
	if cfg.CircuitBreaker.Enabled {
		apiOpts = append(apiOpts, api.WithCircuitBreaker(api.BreakerConfig{
			Name:                "clientauth-backend",
			MaxRequests:         cfg.CircuitBreaker.MaxRequests,
			Interval:            cfg.CircuitBreaker.Interval,
			Timeout:             cfg.CircuitBreaker.Timeout,
			ConsecutiveFailures: cfg.CircuitBreaker.ConsecutiveFailures,
		}))
	}
	engine.api = api.New(cfg.API.BaseURL, apiOpts...)

	// -------- ACTIVITY / BOT HEURISTIC --------
	engine.debouncer = activity.NewDebouncer(sched, cfg.Session.ActivityDebounce, engine.recordActivity)
	if cfg.BotDetection.Enabled {
		engine.bot = botdetect.New(botdetect.Config{
			FastInterval: cfg.BotDetection.FastInterval,
			Threshold:    cfg.BotDetection.Threshold,
			Decay:        cfg.BotDetection.Decay,
		}, sched.Now())
	}

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
