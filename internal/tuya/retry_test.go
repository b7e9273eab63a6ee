package tuya

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep captures the backoff schedule instead of waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	opts := RetryOptions{
		MaxRetries: 3,
		BaseDelay:  5 * time.Second,
		Sleep:      recordingSleep(&delays),
	}

	calls := 0
	value, err := Retry(context.Background(), opts, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", ErrNetwork
		}
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 3, calls)
	// generic class doubles: 5s, 10s
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, delays)
}

func TestRetryRateLimitBackoff(t *testing.T) {
	var delays []time.Duration
	opts := RetryOptions{
		MaxRetries: 2,
		BaseDelay:  5 * time.Second,
		Sleep:      recordingSleep(&delays),
	}

	calls := 0
	_, err := Retry(context.Background(), opts, func(context.Context) (int, error) {
		calls++
		return 0, ErrRateLimited
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
	assert.Equal(t, 3, calls)
	// rate limit quadruples: 5s, 20s
	assert.Equal(t, []time.Duration{5 * time.Second, 20 * time.Second}, delays)
}

func TestRetryServiceUnavailableBackoff(t *testing.T) {
	var delays []time.Duration
	opts := RetryOptions{
		MaxRetries: 2,
		BaseDelay:  5 * time.Second,
		Sleep:      recordingSleep(&delays),
	}

	_, err := Retry(context.Background(), opts, func(context.Context) (int, error) {
		return 0, ErrServiceUnavailable
	}, nil)

	require.Error(t, err)
	// service unavailable triples: 5s, 15s
	assert.Equal(t, []time.Duration{5 * time.Second, 15 * time.Second}, delays)
}

func TestRetryNonRetryableFailsImmediately(t *testing.T) {
	var delays []time.Duration
	opts := RetryOptions{
		MaxRetries: 5,
		BaseDelay:  5 * time.Second,
		Sleep:      recordingSleep(&delays),
	}

	calls := 0
	_, err := Retry(context.Background(), opts, func(context.Context) (int, error) {
		calls++
		return 0, ErrAuthenticationFailed
	}, nil)

	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestRetryDependentServesFallbackImmediately(t *testing.T) {
	var delays []time.Duration
	opts := RetryOptions{
		MaxRetries: 5,
		BaseDelay:  5 * time.Second,
		Sleep:      recordingSleep(&delays),
	}

	fallback := "cached"
	calls := 0
	value, err := Retry(context.Background(), opts, func(context.Context) (string, error) {
		calls++
		return "", ErrDependentServiceUnavailable
	}, &fallback)

	require.NoError(t, err)
	assert.Equal(t, "cached", value)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestRetryDependentWithoutFallbackRetries(t *testing.T) {
	var delays []time.Duration
	opts := RetryOptions{
		MaxRetries: 2,
		BaseDelay:  5 * time.Second,
		Sleep:      recordingSleep(&delays),
	}

	_, err := Retry(context.Background(), opts, func(context.Context) (int, error) {
		return 0, ErrDependentServiceUnavailable
	}, nil)

	require.Error(t, err)
	// dependent class quintuples: 5s, 25s
	assert.Equal(t, []time.Duration{5 * time.Second, 25 * time.Second}, delays)
}

func TestRetryExhaustionServesFallback(t *testing.T) {
	var delays []time.Duration
	opts := RetryOptions{
		MaxRetries: 1,
		BaseDelay:  time.Second,
		Sleep:      recordingSleep(&delays),
	}

	fallback := 42
	value, err := Retry(context.Background(), opts, func(context.Context) (int, error) {
		return 0, ErrServiceUnavailable
	}, &fallback)

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := RetryOptions{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	_, err := Retry(ctx, opts, func(context.Context) (int, error) {
		calls++
		return 0, ErrNetwork
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryZeroRetriesSingleAttempt(t *testing.T) {
	opts := RetryOptions{MaxRetries: 0, BaseDelay: time.Second}

	calls := 0
	_, err := Retry(context.Background(), opts, func(context.Context) (int, error) {
		calls++
		return 0, ErrNetwork
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, ErrNetwork))
}
