package tuya

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager owns the authenticated session. Expiry is lazy:
// Active drops an expired session on read instead of running a
// background timer; the scheduled token refresher renews tokens ahead
// of expiry so the lazy path only fires when refreshing stopped
// working.
type SessionManager struct {
	mu        sync.Mutex
	transport *Transport
	session   *Session
	now       func() time.Time
	logger    *zap.Logger
}

func NewSessionManager(transport *Transport, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		transport: transport,
		now:       time.Now,
		logger:    logger.With(zap.String("component", "session")),
	}
}

// Login authenticates against the regional auth endpoint and replaces
// the current session. Any validator or transport failure surfaces as
// an authentication failure.
func (m *SessionManager) Login(ctx context.Context, username, password, region string) (*Session, error) {
	form := url.Values{
		"userName":    {username},
		"password":    {password},
		"countryCode": {"00"},
		"bizType":     {"smart_life"},
		"from":        {"tuya"},
	}
	m.transport.SetRegion(region)

	decoded, raw, err := m.transport.PostForm(ctx, "/auth.do", form)
	if err == nil {
		err = EnsureSuccess(decoded)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, ErrMalformedResponse)
	}
	session := Session{Region: region, Token: normalizeToken(tr, m.now())}

	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()

	m.logger.Info("session established",
		zap.String("region", region),
		zap.Int64("expires", session.Token.Expires))
	return &session, nil
}

// Refresh exchanges the refresh token for a new access token. A failed
// refresh drops the session: callers must re-authenticate.
func (m *SessionManager) Refresh(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	current := m.activeLocked()
	if current == nil {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	refreshToken := current.Token.RefreshToken
	region := current.Region
	m.mu.Unlock()

	payload := map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"rand":          rand.Float64(),
	}
	decoded, raw, err := m.transport.PostJSON(ctx, "/access.do", payload)
	if err == nil {
		err = EnsureSuccess(decoded)
	}
	if err != nil {
		m.Drop()
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		m.Drop()
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, ErrMalformedResponse)
	}
	token := normalizeToken(tr, m.now())
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	session := Session{Region: region, Token: token}

	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()

	m.logger.Info("session refreshed", zap.Int64("expires", session.Token.Expires))
	return &session, nil
}

// Active returns a copy of the current session, or nil when there is
// none or the token already expired.
func (m *SessionManager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.activeLocked()
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}

func (m *SessionManager) activeLocked() *Session {
	if m.session == nil {
		return nil
	}
	if !m.session.Token.ValidAt(m.now()) {
		m.logger.Warn("session expired", zap.Int64("expires", m.session.Token.Expires))
		m.session = nil
		return nil
	}
	return m.session
}

// AccessToken returns the current access token or ErrNoActiveSession.
func (m *SessionManager) AccessToken() (string, error) {
	s := m.Active()
	if s == nil {
		return "", ErrNoActiveSession
	}
	return s.Token.AccessToken, nil
}

func (m *SessionManager) Drop() {
	m.mu.Lock()
	dropped := m.session != nil
	m.session = nil
	m.mu.Unlock()
	if dropped {
		m.logger.Info("session dropped")
	}
}

// Restore installs a previously persisted session, e.g. across a
// process restart. Expiry still applies on the next Active call.
func (m *SessionManager) Restore(session Session) {
	m.transport.SetRegion(session.Region)
	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()
}
