package tuya

import (
	"context"
	"time"

	"smartlife2mqtt/internal/config"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// TokenRefresher renews the access token ahead of expiry on a fixed
// schedule, so the lazy expiry in the session manager stays a safety
// net rather than the normal path.
type TokenRefresher struct {
	client    *Client
	margin    time.Duration
	interval  time.Duration
	scheduler quartz.Scheduler
	logger    *zap.Logger
}

func NewTokenRefresher(client *Client, cfg config.TuyaConfig, logger *zap.Logger) *TokenRefresher {
	return &TokenRefresher{
		client:   client,
		margin:   time.Duration(cfg.TokenRefreshMarginSeconds) * time.Second,
		interval: time.Duration(cfg.TokenRefreshIntervalMillis) * time.Millisecond,
		logger:   logger.With(zap.String("component", "token_refresher")),
	}
}

func (r *TokenRefresher) Start(ctx context.Context) error {
	r.scheduler = quartz.NewStdScheduler()
	r.scheduler.Start(ctx)

	refreshJob := job.NewFunctionJob(func(jobCtx context.Context) (bool, error) {
		if err := r.tick(jobCtx); err != nil {
			return false, err
		}
		return true, nil
	})
	detail := quartz.NewJobDetail(refreshJob, quartz.NewJobKey("token_refresh"))
	return r.scheduler.ScheduleJob(detail, quartz.NewSimpleTrigger(r.interval))
}

func (r *TokenRefresher) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}

func (r *TokenRefresher) tick(ctx context.Context) error {
	session := r.client.Session()
	if session == nil {
		return nil
	}
	remaining := time.Until(time.Unix(session.Token.Expires, 0))
	if remaining > r.margin {
		return nil
	}
	r.logger.Info("access token close to expiry, refreshing",
		zap.Duration("remaining", remaining))
	if _, err := r.client.Refresh(ctx); err != nil {
		r.logger.Error("token refresh failed", zap.Error(err))
		return err
	}
	return nil
}
