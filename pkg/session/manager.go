// Package session owns the authentication token lifecycle: bootstrap, login,
// logout, and the single-flight refresh that keeps concurrent authorization
// failures from stampeding the auth upstream.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"foyer/pkg/endpoints"
)

// Options configure a Manager against its auth upstream.
type Options struct {
	LoginPath         string
	RefreshPath       string
	LogoutPath        string
	RefreshCookieName string
	ExpiryLeeway      time.Duration
}

// refreshCall is the process-wide refresh lock: at most one exists at a time.
// Waiters block on done; close(done) resolves them all with the same result.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

type Manager struct {
	log  *zap.SugaredLogger
	auth *endpoints.Handle
	opts Options

	mu    sync.Mutex
	cred  Credential
	epoch uint64
	call  *refreshCall

	endCBs []func()

	refreshes prometheus.Counter
	coalesced prometheus.Counter
}

func NewManager(log *zap.SugaredLogger, auth *endpoints.Handle, opts Options, reg prometheus.Registerer) *Manager {
	if opts.LoginPath == "" {
		opts.LoginPath = "/auth/login"
	}
	if opts.RefreshPath == "" {
		opts.RefreshPath = "/auth/refresh"
	}
	if opts.LogoutPath == "" {
		opts.LogoutPath = "/auth/logout"
	}
	if opts.ExpiryLeeway <= 0 {
		opts.ExpiryLeeway = 30 * time.Second
	}
	m := &Manager{
		log:  log,
		auth: auth,
		opts: opts,
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foyer_token_refreshes_total", Help: "Refresh calls issued to the auth upstream.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foyer_token_refresh_waiters_total", Help: "Callers coalesced onto an in-flight refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshes, m.coalesced)
	}
	return m
}

// OnSessionEnd registers a callback fired whenever the logical session ends,
// by explicit logout or by a fatal refresh failure. The coordinator hangs the
// full tenant teardown here so there is exactly one teardown path.
func (m *Manager) OnSessionEnd(cb func()) {
	m.mu.Lock()
	m.endCBs = append(m.endCBs, cb)
	m.mu.Unlock()
}

// Authenticated reports whether a credential is currently held.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred.AccessToken != ""
}

// AccessToken returns the current token ("" when signed out).
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred.AccessToken
}

// User returns a copy of the current profile, or nil.
func (m *Manager) User() *UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred.User == nil {
		return nil
	}
	u := *m.cred.User
	return &u
}

// TenantID returns the tenant id of the authenticated session, or "".
func (m *Manager) TenantID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred.User == nil {
		return ""
	}
	return m.cred.User.TenantID
}

type authResponse struct {
	AccessToken string       `json:"accessToken"`
	User        *UserProfile `json:"user"`
}

// Bootstrap attempts silent re-authentication from the persisted refresh
// artifact (an HTTP-only cookie the auth client's jar carries; never read
// directly). Absence of a session is not an error cascade, just ErrNoSession.
func (m *Manager) Bootstrap(ctx context.Context) error {
	_, err := m.RefreshToken(ctx)
	if err != nil {
		return ErrNoSession
	}
	return nil
}

// Login authenticates and installs a fresh credential under a new session
// epoch. Auth endpoints always go through the central handle and are never
// subject to the refresh-and-retry path.
func (m *Manager) Login(ctx context.Context, email, password string) (*UserProfile, error) {
	ctx = endpoints.WithCategory(ctx, endpoints.CategoryAuth)
	resp, err := m.auth.Post(ctx, m.opts.LoginPath, map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	var ar authResponse
	if err := json.Unmarshal(resp.Data, &ar); err != nil {
		return nil, fmt.Errorf("login decode: %w", err)
	}
	if ar.User == nil {
		ar.User = &UserProfile{}
	}
	if ar.User.TenantID == "" {
		ar.User.TenantID = tenantClaim(ar.AccessToken)
	}
	m.mu.Lock()
	m.epoch++
	m.cred = Credential{AccessToken: ar.AccessToken, User: ar.User}
	m.mu.Unlock()
	m.log.Infow("login", "user", ar.User.ID, "tenant", ar.User.TenantID)
	u := *ar.User
	return &u, nil
}

// Logout clears the credential and bumps the session epoch so any refresh
// still in flight resolves as stale. With callServer the upstream session is
// invalidated too; a teardown triggered by a failed refresh passes false to
// avoid contacting the server a second time.
func (m *Manager) Logout(ctx context.Context, callServer bool) {
	m.mu.Lock()
	had := m.cred.AccessToken != ""
	m.epoch++
	m.cred = Credential{}
	m.mu.Unlock()
	if callServer {
		actx := endpoints.WithCategory(ctx, endpoints.CategoryAuth)
		if _, err := m.auth.Post(actx, m.opts.LogoutPath, nil); err != nil {
			m.log.Warnw("server logout failed", "err", err)
		}
	} else if m.opts.RefreshCookieName != "" {
		// Forced teardown: discard the persisted refresh artifact locally so
		// the next bootstrap cannot resurrect the dead session.
		m.auth.ExpireCookie(m.opts.RefreshCookieName)
	}
	if had {
		m.fireSessionEnd()
	}
}

// RefreshToken is the single-flight refresh. The first caller installs itself
// as the lock and performs the upstream call; every caller that observes the
// lock held waits for that same result. All waiters see either the one new
// token or the one failure.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if c := m.call; c != nil {
		m.mu.Unlock()
		m.coalesced.Inc()
		select {
		case <-c.done:
			return c.token, c.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c := &refreshCall{done: make(chan struct{})}
	m.call = c
	epoch := m.epoch
	hadSession := m.cred.AccessToken != ""
	m.mu.Unlock()

	m.refreshes.Inc()
	// The refresh itself is never cancelled by the triggering caller; only
	// its result delivery is.
	rctx := endpoints.WithCategory(context.WithoutCancel(ctx), endpoints.CategoryAuth)
	resp, err := m.auth.Post(rctx, m.opts.RefreshPath, nil)

	var ar authResponse
	if err == nil {
		if derr := json.Unmarshal(resp.Data, &ar); derr != nil {
			err = fmt.Errorf("refresh decode: %w", derr)
		} else if ar.AccessToken == "" {
			err = fmt.Errorf("refresh returned empty token")
		}
	}

	fatal := false
	m.mu.Lock()
	switch {
	case m.epoch != epoch:
		// A logout (or re-login) intervened while the refresh was in flight;
		// the result is stale and must not repopulate the credential.
		c.err = ErrSessionExpired
	case err != nil:
		m.log.Warnw("token refresh failed", "err", err)
		c.err = ErrSessionExpired
		m.epoch++
		m.cred = Credential{}
		fatal = hadSession
	default:
		if ar.User == nil {
			ar.User = m.cred.User
		}
		if ar.User != nil && ar.User.TenantID == "" {
			ar.User.TenantID = tenantClaim(ar.AccessToken)
		}
		m.cred = Credential{AccessToken: ar.AccessToken, User: ar.User}
		c.token = ar.AccessToken
	}
	m.call = nil
	m.mu.Unlock()
	close(c.done)

	if fatal {
		// Fatal-session: full local teardown without a second server call.
		if m.opts.RefreshCookieName != "" {
			m.auth.ExpireCookie(m.opts.RefreshCookieName)
		}
		m.fireSessionEnd()
	}
	return c.token, c.err
}

// ensureToken returns a token valid for at least the expiry leeway,
// refreshing proactively when the current one is about to lapse.
func (m *Manager) ensureToken(ctx context.Context) string {
	m.mu.Lock()
	tok := m.cred.AccessToken
	m.mu.Unlock()
	if tok == "" {
		return ""
	}
	exp := tokenExpiry(tok)
	if exp.IsZero() || time.Until(exp) > m.opts.ExpiryLeeway {
		return tok
	}
	fresh, err := m.RefreshToken(ctx)
	if err != nil {
		return ""
	}
	return fresh
}

func (m *Manager) fireSessionEnd() {
	m.mu.Lock()
	cbs := make([]func(), len(m.endCBs))
	copy(cbs, m.endCBs)
	m.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// tokenExpiry reads exp from the access token without verifying it; the
// upstream already vouched for the token, we only schedule refreshes off it.
func tokenExpiry(raw string) time.Time {
	tok, err := jwt.ParseInsecure([]byte(raw))
	if err != nil {
		return time.Time{}
	}
	return tok.Expiration()
}

func tenantClaim(raw string) string {
	tok, err := jwt.ParseInsecure([]byte(raw))
	if err != nil {
		return ""
	}
	if v, ok := tok.Get("tid"); ok {
		if s, _ := v.(string); s != "" {
			return s
		}
	}
	return ""
}
