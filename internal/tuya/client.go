package tuya

import (
	"context"
	"time"

	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/kvstore"

	"go.uber.org/zap"
)

// Store keys used by the client.
const (
	storeKeySession   = "tuya_session"
	storeKeyDiscovery = "tuya_discovery"
)

// Client is the high-level upstream API: session lifecycle, discovery,
// device control and the event-category queries. It is safe for
// concurrent use.
type Client struct {
	transport     *Transport
	sessions      *SessionManager
	store         kvstore.Store
	retry         RetryOptions
	sceneKeywords []string
	logger        *zap.Logger
}

func NewClient(cfg *config.Config, store kvstore.Store, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.Tuya.RequestTimeoutMillis) * time.Millisecond
	transport := NewTransport(cfg.Tuya.BaseURL, cfg.Tuya.Region, timeout, logger)

	keywords := cfg.Tuya.SceneKeywords
	if len(keywords) == 0 {
		keywords = config.DefaultSceneKeywords()
	}

	c := &Client{
		transport: transport,
		sessions:  NewSessionManager(transport, logger),
		store:     store,
		retry: RetryOptions{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  time.Duration(cfg.Retry.BaseDelayMillis) * time.Millisecond,
			Logger:     logger,
		},
		sceneKeywords: keywords,
		logger:        logger.With(zap.String("component", "tuya")),
	}
	c.restoreSession()
	return c
}

// Login authenticates and persists the resulting session so a restart
// does not force a re-login.
func (c *Client) Login(ctx context.Context, username, password, region string) (*Session, error) {
	region, err := config.CheckRegion(region)
	if err != nil {
		return nil, err
	}
	session, err := c.sessions.Login(ctx, username, password, region)
	if err != nil {
		return nil, err
	}
	c.persistSession(session)
	return session, nil
}

func (c *Client) Logout() {
	c.sessions.Drop()
	if err := c.store.Delete(storeKeySession); err != nil {
		c.logger.Warn("could not delete persisted session", zap.Error(err))
	}
}

func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	session, err := c.sessions.Refresh(ctx)
	if err != nil {
		if derr := c.store.Delete(storeKeySession); derr != nil {
			c.logger.Warn("could not delete persisted session", zap.Error(derr))
		}
		return nil, err
	}
	c.persistSession(session)
	return session, nil
}

// Session returns the active session or nil.
func (c *Client) Session() *Session {
	return c.sessions.Active()
}

// Sessions exposes the session manager, used by the token refresher.
func (c *Client) Sessions() *SessionManager {
	return c.sessions
}

func (c *Client) persistSession(session *Session) {
	if err := c.store.Set(storeKeySession, session); err != nil {
		c.logger.Warn("could not persist session", zap.Error(err))
	}
}

func (c *Client) restoreSession() {
	var session Session
	ok, err := c.store.Get(storeKeySession, &session)
	if err != nil {
		c.logger.Warn("could not restore persisted session", zap.Error(err))
		return
	}
	if ok && session.Token.ValidAt(time.Now()) {
		c.sessions.Restore(session)
		c.logger.Info("restored persisted session", zap.String("region", session.Region))
	}
}

// dropOnSessionLoss clears cached session state when an upstream call
// reported the token as gone, so the next caller is asked to log in
// instead of replaying a dead token.
func (c *Client) dropOnSessionLoss(err error) {
	if isSessionLoss(err) {
		c.sessions.Drop()
		if derr := c.store.Delete(storeKeySession); derr != nil {
			c.logger.Warn("could not delete persisted session", zap.Error(derr))
		}
	}
}
