package server

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"smartlife2mqtt/internal/tuya"

	"github.com/stretchr/testify/assert"
)

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusForError(tuya.ErrNoActiveSession))
	assert.Equal(t, http.StatusUnauthorized, statusForError(tuya.ErrAuthenticationFailed))
	assert.Equal(t, http.StatusUnauthorized, statusForError(tuya.ErrSessionExpired))
	assert.Equal(t, http.StatusUnauthorized, statusForError(tuya.ErrTokenExpired))

	assert.Equal(t, http.StatusTooManyRequests, statusForError(&tuya.CooldownError{Remaining: time.Second}))
	assert.Equal(t, http.StatusTooManyRequests, statusForError(tuya.ErrRateLimited))
	assert.Equal(t, http.StatusTooManyRequests, statusForError(tuya.ErrQueueFull))

	assert.Equal(t, http.StatusServiceUnavailable, statusForError(tuya.ErrServiceUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(tuya.ErrDependentServiceUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(tuya.ErrNetwork))

	assert.Equal(t, http.StatusBadGateway, statusForError(&tuya.APIError{Code: "FrequentlyInvoke"}))
	assert.Equal(t, http.StatusBadGateway, statusForError(&tuya.UpstreamError{Message: "boom"}))

	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("boom")))
}

func TestStatusForWrappedErrors(t *testing.T) {
	// errors travel wrapped through the retry and client layers
	wrapped := errors.Join(errors.New("device discovery"), tuya.ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, statusForError(wrapped))
}
