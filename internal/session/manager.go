// Package session owns the process-wide identity session: bootstrap with
// token-then-anonymous fallback, sign-out with synchronous listener
// notification, and a watchable snapshot for identity-scoped consumers.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sabbirahammad/currency/internal/audit"
	"github.com/sabbirahammad/currency/internal/session/metrics"
	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
	"github.com/sabbirahammad/currency/pkg/requestcontext"
)

// Manager is the single writer of the identity session. Reads are cheap
// snapshots; state changes notify watchers synchronously in registration
// order before the triggering call returns.
type Manager struct {
	api         AuthAPI
	customToken string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       audit.Emitter

	// opMu serializes bootstrap and sign-out so the state machine only ever
	// advances from one operation at a time.
	opMu sync.Mutex

	mu      sync.RWMutex
	current Session
	lastErr error

	watchMu   sync.Mutex
	watchers  map[int]func(Session)
	nextWatch int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mx
	}
}

// WithCustomToken configures a pre-issued credential token. Bootstrap tries
// it first and falls back to anonymous sign-in when the exchange fails.
func WithCustomToken(token string) Option {
	return func(m *Manager) {
		m.customToken = token
	}
}

// WithAudit sets the audit emitter for session lifecycle events.
func WithAudit(emitter audit.Emitter) Option {
	return func(m *Manager) {
		if emitter != nil {
			m.audit = emitter
		}
	}
}

// NewManager creates a session manager. A nil AuthAPI means the identity
// service is not configured; Bootstrap will surface that as a configuration
// error instead of attempting network calls.
func NewManager(api AuthAPI, opts ...Option) *Manager {
	m := &Manager{
		api:      api,
		logger:   slog.Default(),
		audit:    audit.NopEmitter{},
		current:  Session{State: StateUninitialized},
		watchers: make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the session snapshot.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// LastError returns the most recent bootstrap or sign-out failure, or nil.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Watch registers a listener invoked synchronously on every session change,
// including the change that is in progress when the triggering operation
// publishes it. The returned cancel function removes the listener.
func (m *Manager) Watch(fn func(Session)) (cancel func()) {
	m.watchMu.Lock()
	idx := m.nextWatch
	m.nextWatch++
	m.watchers[idx] = fn
	m.watchMu.Unlock()

	return func() {
		m.watchMu.Lock()
		delete(m.watchers, idx)
		m.watchMu.Unlock()
	}
}

// Bootstrap drives Uninitialized -> Authenticating -> Ready. With a custom
// token configured the token exchange runs first and any failure falls back
// to anonymous sign-in. Without one, anonymous sign-in runs directly. When
// every path fails the state returns to Uninitialized and the error carries
// CodeAuth; a missing identity service configuration short-circuits with
// CodeConfiguration before any state change.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.bootstrapLocked(ctx)
}

func (m *Manager) bootstrapLocked(ctx context.Context) error {
	if m.api == nil {
		err := dErrors.New(dErrors.CodeConfiguration, "identity service endpoint is not configured")
		m.setError(err)
		m.logger.ErrorContext(ctx, "session bootstrap impossible",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		m.metrics.IncrementBootstrap("config_error")

		failed := audit.NewEvent(audit.ActionSessionBootstrapFailed, requestcontext.Now(ctx))
		failed.RequestID = requestcontext.RequestID(ctx)
		failed.Reason = err.Error()
		m.audit.Emit(ctx, failed)

		return err
	}

	m.publish(Session{State: StateAuthenticating})

	creds, outcome, err := m.signIn(ctx)
	if err != nil {
		authErr := dErrors.Wrap(err, dErrors.CodeAuth, "unable to establish an identity session")
		m.setError(authErr)
		m.publish(Session{State: StateUninitialized})
		m.logger.ErrorContext(ctx, "session bootstrap failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		m.metrics.IncrementBootstrap("auth_error")

		failed := audit.NewEvent(audit.ActionSessionBootstrapFailed, requestcontext.Now(ctx))
		failed.RequestID = requestcontext.RequestID(ctx)
		failed.ClientIP = requestcontext.ClientIP(ctx)
		failed.Reason = err.Error()
		m.audit.Emit(ctx, failed)

		return authErr
	}

	m.setError(nil)
	m.publish(Session{
		IdentityID:  creds.IdentityID,
		IsAnonymous: creds.IsAnonymous,
		State:       StateReady,
	})
	m.logger.InfoContext(ctx, "session ready",
		"identity_id", creds.IdentityID.String(),
		"anonymous", creds.IsAnonymous,
		"outcome", outcome,
	)
	m.metrics.IncrementBootstrap(outcome)

	signedIn := audit.NewEvent(audit.ActionSessionSignedIn, requestcontext.Now(ctx))
	signedIn.RequestID = requestcontext.RequestID(ctx)
	signedIn.ClientIP = requestcontext.ClientIP(ctx)
	signedIn.IdentityID = creds.IdentityID
	signedIn.Reason = outcome
	m.audit.Emit(ctx, signedIn)

	m.inspectGrant(ctx, creds)
	return nil
}

// signIn applies the bootstrap policy and reports which path produced the
// credentials: ready_custom, ready_anonymous or fallback_anonymous.
func (m *Manager) signIn(ctx context.Context) (*Credentials, string, error) {
	if m.customToken != "" {
		m.logTokenDiagnostics(ctx)

		creds, err := m.api.SignInWithToken(ctx, m.customToken)
		if err == nil {
			return creds, "ready_custom", nil
		}
		m.logger.WarnContext(ctx, "token sign-in failed, falling back to anonymous",
			"error", err.Error(),
		)

		creds, err = m.api.SignInAnonymously(ctx)
		if err != nil {
			return nil, "", err
		}
		return creds, "fallback_anonymous", nil
	}

	creds, err := m.api.SignInAnonymously(ctx)
	if err != nil {
		return nil, "", err
	}
	return creds, "ready_anonymous", nil
}

// SignOut clears the session and re-runs the bootstrap policy. Watchers see
// the cleared session before the identity service is contacted, so
// identity-scoped state (the history view) is reset synchronously. The
// server-side invalidation is best effort.
func (m *Manager) SignOut(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prior := m.Current()
	if !prior.Ready() {
		return dErrors.New(dErrors.CodeInvariantViolation, "sign-out requires an established session")
	}

	// Watchers run inside this call: the history view must be cleared before
	// any network round trip confirms the sign-out.
	m.publish(Session{State: StateAuthenticating})

	if err := m.api.SignOut(ctx, prior.IdentityID); err != nil {
		m.logger.WarnContext(ctx, "server-side sign-out failed, continuing",
			"identity_id", prior.IdentityID.String(),
			"error", err.Error(),
		)
	}
	m.metrics.IncrementSignOut()

	signedOut := audit.NewEvent(audit.ActionSessionSignedOut, requestcontext.Now(ctx))
	signedOut.RequestID = requestcontext.RequestID(ctx)
	signedOut.ClientIP = requestcontext.ClientIP(ctx)
	signedOut.IdentityID = prior.IdentityID
	m.audit.Emit(ctx, signedOut)

	return m.bootstrapLocked(ctx)
}

// publish replaces the snapshot and notifies watchers synchronously.
func (m *Manager) publish(next Session) {
	m.mu.Lock()
	m.current = next
	m.mu.Unlock()

	m.watchMu.Lock()
	fns := make([]func(Session), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.watchMu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

func (m *Manager) setError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// logTokenDiagnostics surfaces what the configured token claims about
// itself. An expired token still goes to the service; the service owns the
// verdict.
func (m *Manager) logTokenDiagnostics(ctx context.Context) {
	info, err := InspectToken(m.customToken)
	if err != nil {
		m.logger.WarnContext(ctx, "configured credential token is not a well-formed JWT", "error", err.Error())
		return
	}
	if info.Expired(requestcontext.Now(ctx)) {
		m.logger.WarnContext(ctx, "configured credential token looks expired",
			"subject", info.Subject,
			"expires_at", info.ExpiresAt,
		)
		return
	}
	m.logger.DebugContext(ctx, "using configured credential token",
		"subject", info.Subject,
		"expires_at", info.ExpiresAt,
	)
}

// inspectGrant logs the granted ID token's claims when one is present.
func (m *Manager) inspectGrant(ctx context.Context, creds *Credentials) {
	if creds.IDToken == "" {
		return
	}
	info, err := InspectToken(creds.IDToken)
	if err != nil {
		m.logger.DebugContext(ctx, "grant token not inspectable", "error", err.Error())
		return
	}
	m.logger.DebugContext(ctx, "session grant",
		"subject", info.Subject,
		"expires_at", info.ExpiresAt,
	)
}
