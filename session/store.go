package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/merbs-org/clientauth/events"
	"github.com/merbs-org/clientauth/internal"
	"go.uber.org/zap"
)

const (
	DefaultTimeout          = 10 * time.Minute
	DefaultWarningAfter     = 8 * time.Minute
	DefaultStorageKey       = "merbs_secure_session"
	DefaultLegacyStorageKey = "user"

	// ExpiredMessage accompanies every session-expired event.
	ExpiredMessage = "Your session has expired due to inactivity."
)

var (
	// ErrNoSession is returned by operations that need a current session.
	ErrNoSession = errors.New("no active session")
	// ErrTokenGeneration wraps failures of the random source.
	ErrTokenGeneration = errors.New("session token generation failed")
)

// Config controls session lifetime and storage keys.
type Config struct {
	Timeout          time.Duration
	WarningAfter     time.Duration
	StorageKey       string
	LegacyStorageKey string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.WarningAfter <= 0 || c.WarningAfter >= c.Timeout {
		c.WarningAfter = c.Timeout - c.Timeout/5
	}
	if c.StorageKey == "" {
		c.StorageKey = DefaultStorageKey
	}
	if c.LegacyStorageKey == "" {
		c.LegacyStorageKey = DefaultLegacyStorageKey
	}
	return c
}

// Option customizes a Store.
type Option func(*Store)

// WithStorage sets the tab-scoped storage. Defaults to a fresh MemoryStorage.
func WithStorage(s Storage) Option {
	return func(st *Store) {
		if s != nil {
			st.storage = s
		}
	}
}

// WithLegacyStorage sets the cross-tab storage from which the legacy key is
// removed on Clear. Without it no legacy cleanup happens.
func WithLegacyStorage(s Storage) Option {
	return func(st *Store) { st.legacy = s }
}

func WithScheduler(s Scheduler) Option {
	return func(st *Store) {
		if s != nil {
			st.sched = s
		}
	}
}

// WithSink sets the receiver for session-warning and session-expired events.
// Events are emitted without the store lock held.
func WithSink(s events.Sink) Option {
	return func(st *Store) {
		if s != nil {
			st.sink = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(st *Store) {
		if l != nil {
			st.logger = l
		}
	}
}

// Store holds at most one session. All methods are safe for concurrent use.
type Store struct {
	cfg      Config
	storage  Storage
	legacy   Storage
	sched    Scheduler
	sink     events.Sink
	logger   *zap.Logger
	newToken func() (string, error)

	mu      sync.Mutex
	current *Session
	// gen increments whenever the timer pair is replaced or cancelled; a
	// callback carrying an older generation is a no-op.
	gen        uint64
	stopWarn   func() bool
	stopExpire func() bool
}

// NewStore creates an empty [Store].
func NewStore(cfg Config, opts ...Option) *Store {
	s := &Store{
		cfg:      cfg.withDefaults(),
		storage:  NewMemoryStorage(),
		sched:    SystemScheduler{},
		sink:     events.NoOpSink{},
		logger:   zap.NewNop(),
		newToken: internal.NewSessionToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration after defaults.
func (s *Store) Config() Config {
	return s.cfg
}

// Create replaces any current session with a new one for user and returns its
// token.
func (s *Store) Create(ctx context.Context, user Identity) (string, error) {
	token, err := s.newToken()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.sched.Now()
	sess := &Session{
		User:         user,
		CreatedAt:    now,
		LastActivity: now,
		Token:        token,
	}
	s.current = sess
	s.persistLocked(ctx, sess)
	s.startTimersLocked(now, now)

	s.logger.Debug("session created", zap.String("user_id", user.ID))
	return token, nil
}

// Get returns the current session if one exists and is valid. When the memory
// slot is empty the session is restored from storage. An invalid record is
// reported as absent but left in place; expiry or Clear removes it.
func (s *Store) Get(ctx context.Context) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(ctx)
	if sess == nil {
		return Session{}, false
	}
	return *sess, true
}

// UpdateActivity records activity on a valid session, persists it and restarts
// the timer pair. Without a valid session it does nothing.
func (s *Store) UpdateActivity(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(ctx)
	if sess == nil {
		return
	}

	now := s.sched.Now()
	sess.LastActivity = now
	s.persistLocked(ctx, sess)
	s.startTimersLocked(now, now)
}

// SetBackendToken attaches a backend-issued token to the current session.
func (s *Store) SetBackendToken(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getLocked(ctx)
	if sess == nil {
		return ErrNoSession
	}
	sess.BackendToken = token
	sess.BackendExpiresAt = expiresAt
	s.persistLocked(ctx, sess)
	return nil
}

// Clear removes the session from memory and storage, cancels its timers and
// deletes the legacy key. It is idempotent.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

// RemoveLegacy deletes the legacy key without touching the current session.
func (s *Store) RemoveLegacy(ctx context.Context) {
	if s.legacy == nil {
		return
	}
	if err := s.legacy.Remove(ctx, s.cfg.LegacyStorageKey); err != nil {
		s.logger.Warn("legacy storage remove failed", zap.Error(err))
	}
}

func (s *Store) getLocked(ctx context.Context) *Session {
	now := s.sched.Now()

	if s.current != nil {
		if !s.current.Valid(now, s.cfg.Timeout) {
			return nil
		}
		return s.current
	}

	data, err := s.storage.Load(ctx, s.cfg.StorageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("session storage read failed", zap.Error(err))
		}
		return nil
	}

	sess, err := Decode(data)
	if err != nil {
		s.logger.Warn("discarding unreadable session blob", zap.Error(err))
		return nil
	}
	if !sess.Valid(now, s.cfg.Timeout) {
		return nil
	}

	s.current = sess
	s.startTimersLocked(sess.LastActivity, now)
	s.logger.Debug("session restored from storage", zap.String("user_id", sess.User.ID))
	return sess
}

func (s *Store) clearLocked(ctx context.Context) {
	s.stopTimersLocked()
	s.current = nil

	if err := s.storage.Remove(ctx, s.cfg.StorageKey); err != nil {
		s.logger.Warn("session storage remove failed", zap.Error(err))
	}
	s.RemoveLegacy(ctx)
}

func (s *Store) persistLocked(ctx context.Context, sess *Session) {
	data, err := Encode(sess)
	if err != nil {
		s.logger.Warn("session encode failed", zap.Error(err))
		return
	}
	if err := s.storage.Save(ctx, s.cfg.StorageKey, data); err != nil {
		s.logger.Warn("session storage write failed, keeping memory only", zap.Error(err))
	}
}

// startTimersLocked schedules warning and expiry relative to base.
func (s *Store) startTimersLocked(base, now time.Time) {
	s.stopTimersLocked()
	gen := s.gen

	warnIn := base.Add(s.cfg.WarningAfter).Sub(now)
	expireIn := base.Add(s.cfg.Timeout).Sub(now)

	s.stopWarn = s.sched.AfterFunc(warnIn, func() { s.onWarning(gen) })
	s.stopExpire = s.sched.AfterFunc(expireIn, func() { s.onExpire(gen) })
}

func (s *Store) stopTimersLocked() {
	s.gen++
	if s.stopWarn != nil {
		s.stopWarn()
		s.stopWarn = nil
	}
	if s.stopExpire != nil {
		s.stopExpire()
		s.stopExpire = nil
	}
}

func (s *Store) onWarning(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.current == nil {
		s.mu.Unlock()
		return
	}
	s.stopWarn = nil
	at := s.sched.Now()
	s.mu.Unlock()

	s.sink.Emit(context.Background(), events.Event{
		Kind:    events.KindSessionWarning,
		Message: WarningMessage(s.cfg.Timeout - s.cfg.WarningAfter),
		At:      at,
	})
}

func (s *Store) onExpire(gen uint64) {
	ctx := context.Background()

	s.mu.Lock()
	if gen != s.gen || s.current == nil {
		s.mu.Unlock()
		return
	}
	s.clearLocked(ctx)
	at := s.sched.Now()
	s.mu.Unlock()

	s.logger.Info("session expired after inactivity")
	s.sink.Emit(ctx, events.Event{
		Kind:    events.KindSessionExpired,
		Message: ExpiredMessage,
		At:      at,
	})
}

// WarningMessage renders the session-warning text for the given remaining time.
func WarningMessage(remaining time.Duration) string {
	return "Your session will expire in " + humanDuration(remaining) + " due to inactivity."
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	if d >= time.Second && d < time.Minute && d%time.Second == 0 {
		sec := int(d / time.Second)
		if sec == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", sec)
	}
	return d.Round(time.Second).String()
}
