package tuya

// EnsureSuccess classifies a decoded response body. It returns nil for
// accepted responses and a typed error otherwise. The function is pure:
// it inspects the body and never touches session or transport state.
//
// Acceptance, in order:
//   - a body that is not a JSON object is malformed
//   - a body carrying access_token is a successful auth response
//   - responseStatus == "error" surfaces the upstream errorMsg
//   - a header code is mapped to its dedicated error, SUCCESS to nil
//   - a known-format body without a header is an invalid format
func EnsureSuccess(body any) error {
	data, ok := body.(map[string]any)
	if !ok {
		return ErrMalformedResponse
	}
	if _, ok := data["access_token"]; ok {
		return nil
	}
	if status, _ := data["responseStatus"].(string); status == "error" {
		msg, _ := data["errorMsg"].(string)
		return &UpstreamError{Message: firstNonEmpty(msg, "unknown error")}
	}
	header, ok := data["header"].(map[string]any)
	if !ok {
		return ErrInvalidFormat
	}
	code, _ := header["code"].(string)
	switch code {
	case "", CodeSuccess:
		return nil
	case CodeDependentServiceUnavailable:
		return ErrDependentServiceUnavailable
	case CodeTokenExpired:
		return ErrTokenExpired
	case CodeRateLimitExceeded:
		return ErrRateLimited
	case CodeServiceUnavailable:
		return ErrServiceUnavailable
	case CodeNetworkError:
		return ErrNetwork
	default:
		msg, _ := header["msg"].(string)
		return &APIError{Code: code, Message: msg}
	}
}
