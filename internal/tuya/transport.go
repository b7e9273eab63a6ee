package tuya

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 4 << 20

// Transport posts requests to the regional upstream endpoint. The
// region travels both in the host name and as a query parameter, which
// relay deployments strip before forwarding.
type Transport struct {
	mu          sync.RWMutex
	overrideURL string
	region      string
	client      *http.Client
	logger      *zap.Logger
}

func NewTransport(baseURL, region string, timeout time.Duration, logger *zap.Logger) *Transport {
	return &Transport{
		overrideURL: strings.TrimRight(baseURL, "/"),
		region:      region,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (t *Transport) SetRegion(region string) {
	t.mu.Lock()
	t.region = region
	t.mu.Unlock()
}

func (t *Transport) Region() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.region
}

func (t *Transport) endpoint(path string) string {
	t.mu.RLock()
	base, region := t.overrideURL, t.region
	t.mu.RUnlock()
	if base == "" {
		base = fmt.Sprintf("https://px1.tuya%s.com/homeassistant", region)
	}
	return base + path + "?region=" + url.QueryEscape(region)
}

// PostForm sends an urlencoded form, used by the auth endpoints.
func (t *Transport) PostForm(ctx context.Context, path string, form url.Values) (any, []byte, error) {
	return t.post(ctx, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

// PostJSON sends a JSON body.
func (t *Transport) PostJSON(ctx context.Context, path string, payload any) (any, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}
	return t.post(ctx, path, "application/json", bytes.NewReader(body))
}

// Skill posts a request envelope to the /skill endpoint.
func (t *Transport) Skill(ctx context.Context, namespace, name string, payload map[string]any) (any, []byte, error) {
	req := skillRequest{
		Header: envelopeHeader{
			PayloadVersion: 1,
			Namespace:      namespace,
			Name:           name,
		},
		Payload: payload,
	}
	return t.PostJSON(ctx, "/skill", req)
}

func (t *Transport) post(ctx context.Context, path, contentType string, body io.Reader) (any, []byte, error) {
	endpoint := t.endpoint(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response of %s: %w", path, err)
	}
	t.logger.Debug("upstream call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, nil, fmt.Errorf("%w: upstream returned status %d", ErrServiceUnavailable, resp.StatusCode)
		}
		return nil, nil, fmt.Errorf("decode response of %s (status %d): %w", path, resp.StatusCode, ErrMalformedResponse)
	}
	return decoded, raw, nil
}
