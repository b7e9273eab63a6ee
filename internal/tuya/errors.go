package tuya

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// Upstream header codes the client understands.
const (
	CodeSuccess                     = "SUCCESS"
	CodeDependentServiceUnavailable = "DependentServiceUnavailable"
	CodeTokenExpired                = "TOKEN_EXPIRED"
	CodeRateLimitExceeded           = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable          = "SERVICE_UNAVAILABLE"
	CodeNetworkError                = "NETWORK_ERROR"
	CodeCachedData                  = "CACHED_DATA"
)

var (
	ErrMalformedResponse = errors.New("malformed response from upstream")
	ErrInvalidFormat     = errors.New("invalid response format from upstream")

	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrSessionExpired       = errors.New("session expired")
	ErrNoActiveSession      = errors.New("no active session")

	ErrTokenExpired                = errors.New("authentication expired")
	ErrRateLimited                 = errors.New("too many requests")
	ErrServiceUnavailable          = errors.New("service is currently unavailable")
	ErrNetwork                     = errors.New("network connection issue")
	ErrDependentServiceUnavailable = errors.New("dependent service unavailable")
)

// UpstreamError is a response that declared responseStatus=error with a
// free-text message.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream reported error: %s", e.Message)
}

// APIError is a header code the client has no dedicated mapping for.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api error %s", e.Code)
}

// CooldownError rejects a control submitted while the device cooldown
// window is still open.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("device in cooldown, retry in %dms", e.Remaining.Milliseconds())
}

var (
	ErrQueueFull    = errors.New("too many pending controls for this device")
	ErrQueueCleared = errors.New("device control queue cleared")
)

type errorClass int

const (
	classFatal errorClass = iota
	classGeneric
	classServiceUnavailable
	classRateLimit
	classDependent
)

// backoffBase is the per-class delay multiplier: delay = base * m^attempt.
func (c errorClass) backoffBase() int64 {
	switch c {
	case classServiceUnavailable:
		return 3
	case classRateLimit:
		return 4
	case classDependent:
		return 5
	default:
		return 2
	}
}

func classify(err error) errorClass {
	switch {
	case errors.Is(err, ErrDependentServiceUnavailable):
		return classDependent
	case errors.Is(err, ErrRateLimited):
		return classRateLimit
	case errors.Is(err, ErrServiceUnavailable):
		return classServiceUnavailable
	case errors.Is(err, ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNREFUSED),
		isTimeout(err):
		return classGeneric
	default:
		return classFatal
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryable reports whether the retry engine may re-invoke an
// operation that failed with err. Auth and validation failures are
// never retried.
func IsRetryable(err error) bool {
	return classify(err) != classFatal
}

// UserMessage formats err for display, appending a remediation hint
// keyed by the error class.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case errors.Is(err, ErrDependentServiceUnavailable):
		return msg + ". The upstream service is temporarily unavailable; retries back off at 5s, 25s, 125s. Cached data is used when available."
	case errors.Is(err, ErrServiceUnavailable):
		return msg + ". This is a temporary upstream problem; retries back off at 5s, 15s, 45s. If it persists, wait a few minutes."
	case errors.Is(err, ErrRateLimited):
		return msg + ". Retries back off at 5s, 20s, 80s before trying again."
	case errors.Is(err, ErrNetwork):
		return msg + ". Check your internet connection and try again."
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrSessionExpired):
		return msg + ". Your session has expired; please log in again."
	case errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrAuthenticationFailed):
		return msg + ". Please log in first."
	case errors.Is(err, ErrQueueFull):
		return msg + ". Wait for the pending operations to finish."
	default:
		var cd *CooldownError
		if errors.As(err, &cd) {
			secs := (cd.Remaining + time.Second - 1) / time.Second
			return fmt.Sprintf("%s. Wait %d second(s) before trying again.", msg, secs)
		}
		return msg
	}
}

// isSessionLoss reports errors that must clear cached session state
// before propagating.
func isSessionLoss(err error) bool {
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrNoActiveSession)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
