package tuya

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryOptions bounds the retry loop. MaxRetries counts additional
// attempts after the first, so MaxRetries=2 means up to 3 invocations.
type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	Logger     *zap.Logger

	// Sleep overrides the cancellable wait between attempts. Tests use
	// it to record the backoff schedule without waiting.
	Sleep func(context.Context, time.Duration) error
}

// Retry invokes op until it succeeds, fails with a non-retryable error,
// or exhausts the attempt budget. The wait before attempt n is
// BaseDelay multiplied by the class multiplier raised to n-1: 2 for
// generic retryable errors, 3 for service-unavailable, 4 for
// rate-limit, 5 for dependent-service-unavailable.
//
// A dependent-service-unavailable failure returns fallback immediately
// when one is provided; without a fallback it retries like the other
// classes. On exhaustion the fallback (if any) is returned, otherwise
// the last error wrapped with the attempt count.
func Retry[T any](ctx context.Context, opts RetryOptions, op func(context.Context) (T, error), fallback *T) (T, error) {
	var zero T
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var last error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		last = err

		class := classify(err)
		if class == classFatal {
			return zero, err
		}
		if class == classDependent && fallback != nil {
			logger.Warn("dependent service unavailable, serving fallback data", zap.Error(err))
			return *fallback, nil
		}
		if attempt == opts.MaxRetries {
			break
		}

		delay := opts.BaseDelay * time.Duration(intPow(class.backoffBase(), attempt))
		logger.Warn("operation failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	if fallback != nil {
		logger.Warn("retries exhausted, serving fallback data", zap.Error(last))
		return *fallback, nil
	}
	return zero, fmt.Errorf("%w (gave up after %d attempts)", last, opts.MaxRetries+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func intPow(base int64, exp int) int64 {
	result := int64(1)
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
