package clientauth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/merbs-org/clientauth/api"
	"github.com/merbs-org/clientauth/events"
	"github.com/merbs-org/clientauth/internal/activity"
	"github.com/merbs-org/clientauth/internal/botdetect"
	"github.com/merbs-org/clientauth/internal/flows"
	"github.com/merbs-org/clientauth/internal/rate"
	"github.com/merbs-org/clientauth/session"
	"go.uber.org/zap"
)

// State is the engine's authentication state.
type State uint8

const (
	// StateAnonymous means there is no session.
	StateAnonymous State = iota
	// StateAuthenticating means a login or registration is in flight and no
	// session exists yet.
	StateAuthenticating
	// StateAuthenticated means a session exists and the backend accepted it.
	StateAuthenticated
	// StateAuthenticatedUnverified means a session was restored at Start and
	// the backend has not confirmed it yet.
	StateAuthenticatedUnverified
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateAuthenticatedUnverified:
		return "authenticated_unverified"
	default:
		return "unknown"
	}
}

// Engine is the client-side auth orchestrator. It owns the session store, the
// attempt ledger, the backend client and the lifecycle event bus. All methods
// are safe for concurrent use; build it with [Builder.Build].
type Engine struct {
	config    Config
	logger    *zap.Logger
	sched     session.Scheduler
	store     *session.Store
	limiter   rate.Ledger
	api       *api.Client
	bus       *events.Bus
	metrics   *Metrics
	debouncer *activity.Debouncer
	bot       *botdetect.Detector
	flows     flows.Deps

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	mu         sync.Mutex
	identity   *session.Identity
	unverified bool
	warning    bool
	started    bool

	inFlight  atomic.Int32
	closed    atomic.Bool
	closeOnce sync.Once
}

// API returns the backend client, authenticated with the current session.
func (e *Engine) API() *api.Client {
	return e.api
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// State reports the current authentication state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.identity != nil && e.unverified:
		return StateAuthenticatedUnverified
	case e.identity != nil:
		return StateAuthenticated
	case e.inFlight.Load() > 0:
		return StateAuthenticating
	default:
		return StateAnonymous
	}
}

// Identity returns the signed-in user.
func (e *Engine) Identity() (session.Identity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.identity == nil {
		return session.Identity{}, false
	}
	return *e.identity, true
}

// SessionWarning reports whether an expiry warning is pending.
func (e *Engine) SessionWarning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.warning
}

// Loading reports whether a login or registration is in flight.
func (e *Engine) Loading() bool {
	return e.inFlight.Load() > 0
}

// Subscribe registers sink for session-warning, session-expired and
// bot-detected events and returns a function that removes it.
func (e *Engine) Subscribe(sink events.Sink) (unsubscribe func()) {
	return e.bus.Subscribe(sink)
}

// DroppedEvents returns how many events the bus discarded.
func (e *Engine) DroppedEvents() uint64 {
	return e.bus.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ExtendSession records activity and dismisses the expiry warning. Without a
// session it does nothing.
func (e *Engine) ExtendSession(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.identity == nil {
		return
	}
	e.store.UpdateActivity(ctx)
	e.warning = false
}

// TrackActivity reports a user interaction. Interactions are debounced into
// session activity updates and, when enabled, scored by the bot heuristic.
func (e *Engine) TrackActivity() {
	if e.closed.Load() {
		return
	}
	if e.bot != nil && e.bot.Observe(e.sched.Now()) {
		e.onBotDetected()
		return
	}
	e.debouncer.Touch()
}

// Close stops timers and background work and closes the event bus. The
// session itself is left in storage.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.debouncer.Stop()
		e.bgCancel()
		e.bg.Wait()
		e.bus.Close()
	})
}

func (e *Engine) metricInc(id MetricID) {
	if e.metrics != nil {
		e.metrics.Inc(id)
	}
}

// credentials feeds the api client. Authorization and X-Session-ID both carry
// the session token; a backend-issued token travels in its own header.
func (e *Engine) credentials() (api.Credentials, bool) {
	sess, ok := e.store.Get(e.bgCtx)
	if !ok {
		return api.Credentials{}, false
	}
	return api.Credentials{
		Bearer:       sess.Token,
		SessionID:    sess.Token,
		BackendToken: sess.BackendToken,
	}, true
}

// background runs fn on a tracked goroutine bound to the engine lifetime.
func (e *Engine) background(fn func(ctx context.Context)) {
	if e.closed.Load() {
		return
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		fn(e.bgCtx)
	}()
}

func (e *Engine) recordActivity() {
	e.store.UpdateActivity(e.bgCtx)
	e.metricInc(MetricActivityRecorded)
}

// onSessionEvent receives timer events from the session store, applies them
// to engine state and forwards them to subscribers.
func (e *Engine) onSessionEvent(ctx context.Context, ev events.Event) {
	switch ev.Kind {
	case events.KindSessionWarning:
		e.mu.Lock()
		e.warning = true
		e.mu.Unlock()
		e.metricInc(MetricSessionWarning)

	case events.KindSessionExpired:
		e.mu.Lock()
		// The store cleared the expired session before emitting; a session
		// present now was created by a login that completed in between.
		if e.hasSession(ctx) {
			e.mu.Unlock()
			e.logger.Debug("stale expiry ignored, newer session present")
			return
		}
		e.identity = nil
		e.unverified = false
		e.warning = false
		e.mu.Unlock()
		e.metricInc(MetricSessionExpired)
		e.logger.Info("session expired, signed out")

		e.background(func(ctx context.Context) {
			flows.RunBackendLogout(ctx, e.flows.Logout)
		})
	}

	e.bus.Emit(ctx, ev)
}

func (e *Engine) onBotDetected() {
	e.logger.Warn("suspicious interaction cadence, clearing session")
	e.clearLocal(e.bgCtx)
	e.metricInc(MetricBotDetected)
	e.bus.Emit(e.bgCtx, events.Event{
		Kind:    events.KindBotDetected,
		Message: botdetect.Message,
		At:      e.sched.Now(),
	})
}

// clearLocal drops the session and returns to Anonymous.
func (e *Engine) clearLocal(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Clear(ctx)
	e.identity = nil
	e.unverified = false
	e.warning = false
}
