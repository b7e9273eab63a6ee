package tuya

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(code string) map[string]any {
	return map[string]any{
		"header": map[string]any{"code": code},
	}
}

func TestEnsureSuccessNonObject(t *testing.T) {
	assert.ErrorIs(t, EnsureSuccess("not an object"), ErrMalformedResponse)
	assert.ErrorIs(t, EnsureSuccess(nil), ErrMalformedResponse)
	assert.ErrorIs(t, EnsureSuccess([]any{1, 2}), ErrMalformedResponse)
}

func TestEnsureSuccessAuthResponse(t *testing.T) {
	body := map[string]any{
		"access_token": "abc",
		"expires_in":   float64(864000),
	}
	assert.NoError(t, EnsureSuccess(body))
}

func TestEnsureSuccessResponseStatusError(t *testing.T) {
	body := map[string]any{
		"responseStatus": "error",
		"errorMsg":       "username or password is wrong",
	}
	err := EnsureSuccess(body)
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "username or password is wrong", upstream.Message)
}

func TestEnsureSuccessResponseStatusErrorWithoutMessage(t *testing.T) {
	err := EnsureSuccess(map[string]any{"responseStatus": "error"})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "unknown error", upstream.Message)
}

func TestEnsureSuccessHeaderCodes(t *testing.T) {
	assert.NoError(t, EnsureSuccess(header(CodeSuccess)))
	// some endpoints answer with an empty code on success
	assert.NoError(t, EnsureSuccess(header("")))

	assert.ErrorIs(t, EnsureSuccess(header(CodeTokenExpired)), ErrTokenExpired)
	assert.ErrorIs(t, EnsureSuccess(header(CodeRateLimitExceeded)), ErrRateLimited)
	assert.ErrorIs(t, EnsureSuccess(header(CodeServiceUnavailable)), ErrServiceUnavailable)
	assert.ErrorIs(t, EnsureSuccess(header(CodeNetworkError)), ErrNetwork)
	assert.ErrorIs(t, EnsureSuccess(header(CodeDependentServiceUnavailable)), ErrDependentServiceUnavailable)
}

func TestEnsureSuccessUnknownHeaderCode(t *testing.T) {
	body := map[string]any{
		"header": map[string]any{
			"code": "FrequentlyInvoke",
			"msg":  "you are invoking this api too frequently",
		},
	}
	err := EnsureSuccess(body)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "FrequentlyInvoke", apiErr.Code)
	assert.Equal(t, "you are invoking this api too frequently", apiErr.Message)
}

func TestEnsureSuccessMissingHeader(t *testing.T) {
	assert.ErrorIs(t, EnsureSuccess(map[string]any{"payload": map[string]any{}}), ErrInvalidFormat)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimited))
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.True(t, IsRetryable(ErrNetwork))
	assert.True(t, IsRetryable(ErrDependentServiceUnavailable))

	assert.False(t, IsRetryable(ErrTokenExpired))
	assert.False(t, IsRetryable(ErrAuthenticationFailed))
	assert.False(t, IsRetryable(ErrNoActiveSession))
	assert.False(t, IsRetryable(&APIError{Code: "FrequentlyInvoke"}))
	assert.False(t, IsRetryable(&UpstreamError{Message: "bad credentials"}))
	assert.False(t, IsRetryable(errors.New("some programming error")))
}

func TestUserMessageAppendsHints(t *testing.T) {
	assert.Contains(t, UserMessage(ErrTokenExpired), "log in again")
	assert.Contains(t, UserMessage(ErrNetwork), "internet connection")
	assert.Contains(t, UserMessage(ErrNoActiveSession), "log in first")
	assert.Contains(t, UserMessage(ErrQueueFull), "pending operations")

	cooldown := UserMessage(&CooldownError{Remaining: 1500 * time.Millisecond})
	assert.Contains(t, cooldown, "Wait 2 second(s)")

	plain := UserMessage(errors.New("boom"))
	assert.Equal(t, "boom", plain)
}
