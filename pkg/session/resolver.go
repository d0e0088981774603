package session

import (
	"context"
	"sync"
	"time"

	"neuracall-backend/pkg/cache"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/identity"
	"neuracall-backend/pkg/metrics"

	"go.uber.org/zap"
)

// DefaultInitTimeout bounds how long Initialize waits for the identity
// provider before the app continues signed out.
const DefaultInitTimeout = 10 * time.Second

// Options configures a Resolver. Provider and DB are required; the
// rest default to safe no-ops.
type Options struct {
	Provider  identity.Provider
	DB        database.DatabaseInterface
	Cache     *cache.SessionCache
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Timeout   time.Duration
	IsFounder func(email string) bool
}

// Resolver owns the published session state. It is the single writer:
// every state change funnels through publish, tagged with a generation
// so a slow enrichment can never overwrite a newer auth event.
type Resolver struct {
	provider  identity.Provider
	db        database.DatabaseInterface
	cache     *cache.SessionCache
	logger    *zap.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	isFounder func(email string) bool

	mu          sync.RWMutex
	state       State
	generation  uint64
	subscribers map[int]chan State
	nextSubID   int
	closed      bool

	detach func()
}

// NewResolver creates a resolver in the loading state and attaches it
// to the provider's change stream.
func NewResolver(opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultInitTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IsFounder == nil {
		opts.IsFounder = func(string) bool { return false }
	}

	r := &Resolver{
		provider:    opts.Provider,
		db:          opts.DB,
		cache:       opts.Cache,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		timeout:     opts.Timeout,
		isFounder:   opts.IsFounder,
		state:       State{Loading: true},
		subscribers: make(map[int]chan State),
	}
	r.detach = r.provider.OnSessionChange(r.onSessionChanged)
	return r
}

// Current returns the latest published state.
func (r *Resolver) Current() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Subscribe returns a channel of state updates (current state first)
// and an unsubscribe function. Slow consumers miss intermediate states
// rather than blocking the writer.
func (r *Resolver) Subscribe() (<-chan State, func()) {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	ch := make(chan State, 16)
	ch <- r.state
	r.subscribers[id] = ch
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		if sub, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(sub)
		}
		r.mu.Unlock()
	}
}

// Initialize resolves the current session, racing the provider fetch
// plus enrichment against the configured timeout. Whatever the outcome,
// the app ends up in a usable state: a timeout or provider error
// degrades to signed out, never a crash.
func (r *Resolver) Initialize(ctx context.Context) {
	gen := r.nextGeneration()
	start := time.Now()

	type outcome struct {
		sess *Session
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		raw, err := r.provider.CurrentSession(ctx)
		if err != nil {
			done <- outcome{nil, err}
			return
		}
		if raw == nil {
			done <- outcome{nil, nil}
			return
		}
		done <- outcome{r.enrich(ctx, raw), nil}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	var result string
	select {
	case out := <-done:
		if out.err != nil {
			r.logger.Warn("session resolution failed, continuing signed out", zap.Error(out.err))
			result = "error"
			r.publish(gen, nil)
		} else if out.sess == nil {
			result = "signed_out"
			r.publish(gen, nil)
		} else {
			result = "resolved"
			r.publish(gen, out.sess)
		}
	case <-timer.C:
		r.logger.Warn("session resolution timed out, continuing signed out",
			zap.Duration("timeout", r.timeout))
		result = "timeout"
		// Taking a new generation makes the in-flight resolution stale,
		// so a late arrival cannot flip the state back.
		r.publish(r.nextGeneration(), nil)
	case <-ctx.Done():
		result = "canceled"
		r.publish(r.nextGeneration(), nil)
	}

	if r.metrics != nil {
		r.metrics.SessionResolutions.WithLabelValues(result).Inc()
		r.metrics.SessionResolveDuration.Observe(time.Since(start).Seconds())
	}
}

// SignIn delegates to the provider. The published state updates through
// the change notification, not here, so there is exactly one write path.
func (r *Resolver) SignIn(ctx context.Context, email, password string) error {
	_, err := r.provider.SignInWithPassword(ctx, email, password)
	return err
}

// SignOut clears the published session immediately, then revokes
// upstream best-effort.
func (r *Resolver) SignOut(ctx context.Context) {
	prev := r.Current()
	r.publish(r.nextGeneration(), nil)

	if r.cache != nil && prev.Session != nil {
		if err := r.cache.Invalidate(ctx, prev.Session.UserID); err != nil {
			r.logger.Debug("session cache invalidate failed", zap.Error(err))
		}
	}
	if err := r.provider.SignOut(ctx); err != nil {
		r.logger.Warn("provider sign-out failed", zap.Error(err))
	}
}

// Close detaches from the provider and closes all subscriber channels.
func (r *Resolver) Close() {
	if r.detach != nil {
		r.detach()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.subscribers {
		delete(r.subscribers, id)
		close(ch)
	}
}

// onSessionChanged handles provider push events. Enrichment runs off
// the notification goroutine; the generation taken here decides whether
// its result is still current when it lands.
func (r *Resolver) onSessionChanged(raw *identity.RawSession) {
	gen := r.nextGeneration()

	if raw == nil {
		r.publish(gen, nil)
		return
	}

	go func() {
		sess := r.enrich(context.Background(), raw)
		if !r.publish(gen, sess) {
			r.logger.Debug("stale session resolution dropped",
				zap.String("user_id", raw.UserID), zap.Uint64("generation", gen))
			if r.metrics != nil {
				r.metrics.StaleSessionSuppressed.Inc()
			}
		}
	}()
}

func (r *Resolver) enrich(ctx context.Context, raw *identity.RawSession) *Session {
	return Enrich(ctx, r.db, r.cache, r.logger, r.isFounder, raw)
}

// Enrich builds the full session from the raw identity: user row, tenant
// membership, tenant name. Every lookup fails soft — a user without a
// membership row gets an empty tenant context, and a flaky row store
// degrades to a partial session instead of an error.
func Enrich(ctx context.Context, db database.DatabaseInterface, c *cache.SessionCache, logger *zap.Logger, isFounder func(string) bool, raw *identity.RawSession) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if isFounder == nil {
		isFounder = func(string) bool { return false }
	}

	sess := &Session{
		UserID:  raw.UserID,
		Email:   raw.Email,
		Founder: isFounder(raw.Email),
	}

	if c != nil {
		var cached Session
		if c.Get(ctx, raw.UserID, &cached) && cached.UserID == raw.UserID {
			cached.Founder = isFounder(raw.Email)
			return &cached
		}
	}

	if user, err := db.GetUserByID(raw.UserID); err == nil {
		sess.Name = user.Name
	} else {
		logger.Warn("session enrichment: user lookup failed",
			zap.String("user_id", raw.UserID), zap.Error(err))
	}

	membership, err := db.GetMembershipByUser(raw.UserID)
	if err != nil {
		logger.Warn("session enrichment: membership lookup failed",
			zap.String("user_id", raw.UserID), zap.Error(err))
		return sess
	}
	if membership == nil {
		// valid state: signed in, not yet part of any tenant
		return sess
	}

	sess.TenantID = membership.TenantID
	sess.Role = membership.Role
	if tenant, err := db.GetTenant(membership.TenantID); err == nil {
		sess.TenantName = tenant.Name
	} else {
		logger.Warn("session enrichment: tenant lookup failed",
			zap.String("tenant_id", membership.TenantID), zap.Error(err))
	}

	if c != nil {
		if err := c.Set(ctx, raw.UserID, sess); err != nil {
			logger.Debug("session cache write failed", zap.Error(err))
		}
	}
	return sess
}

func (r *Resolver) nextGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	return r.generation
}

// publish applies a state for the given generation. It reports false
// (and writes nothing) when a newer generation exists, which is the
// stale-publish suppression the change stream relies on.
func (r *Resolver) publish(gen uint64, sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation || r.closed {
		return false
	}

	r.state = State{Loading: false, Session: sess}
	for _, ch := range r.subscribers {
		select {
		case ch <- r.state:
		default:
		}
	}
	return true
}
