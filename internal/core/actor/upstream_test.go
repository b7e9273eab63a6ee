package actor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	adactor "smartlife2mqtt/internal/adapter/actor"
	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/kvstore"
	"smartlife2mqtt/internal/tuya"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// skillFunc answers one decoded /skill envelope.
type skillFunc func(namespace, name string, payload map[string]any) map[string]any

type fakeUpstream struct {
	server *httptest.Server

	mu    sync.Mutex
	skill skillFunc
}

func successBody() map[string]any {
	return map[string]any{
		"header":  map[string]any{"code": "SUCCESS"},
		"payload": map[string]any{},
	}
}

func queryBody(field string, records any) map[string]any {
	return map[string]any{
		"header":  map[string]any{"code": "SUCCESS"},
		"payload": map[string]any{field: records},
	}
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth.do", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"token_type":    "bearer",
			"expires_in":    864000,
		})
	})
	mux.HandleFunc("/skill", func(w http.ResponseWriter, r *http.Request) {
		var envelope struct {
			Header struct {
				Namespace string `json:"namespace"`
				Name      string `json:"name"`
			} `json:"header"`
			Payload map[string]any `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		fn := f.skill
		f.mu.Unlock()

		body := successBody()
		if fn != nil {
			body = fn(envelope.Header.Namespace, envelope.Header.Name, envelope.Payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) setSkill(fn skillFunc) {
	f.mu.Lock()
	f.skill = fn
	f.mu.Unlock()
}

// newUpstreamFixture builds a logged-in client against the fake
// upstream plus a config tuned for fast test ticks.
func newUpstreamFixture(t *testing.T, upstream *fakeUpstream, store kvstore.Store) (*config.Config, *tuya.Client) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Tuya.BaseURL = upstream.server.URL
	cfg.Tuya.Region = "eu"
	cfg.Tuya.RequestTimeoutMillis = 5000
	cfg.Retry.MaxRetries = 0
	cfg.Retry.BaseDelayMillis = 1
	cfg.Monitor.PollIntervalMillis = 200
	cfg.Monitor.KnownSetCap = 100
	cfg.Monitor.AutomationSetCap = 10
	cfg.Monitor.EventLogCap = 100
	cfg.Control.CooldownMillis = 400
	cfg.Control.MaxQueued = 2

	client := tuya.NewClient(cfg, store, zap.NewNop())
	_, err := client.Login(context.Background(), "user", "pass", "eu")
	require.NoError(t, err)
	return cfg, client
}

func spawnTuyaActor(t *testing.T, context *pactor.RootContext, client *tuya.Client, logger *zap.Logger) *pactor.PID {
	t.Helper()
	props := pactor.PropsFromProducer(func() pactor.Actor {
		return adactor.NewTuyaActor(client, logger)
	})
	return context.Spawn(props)
}

func healthCheck(context *pactor.RootContext, pid *pactor.PID) (domain.ActorHealthResponse, error) {
	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 3*time.Second).Result()
	if err != nil {
		return domain.ActorHealthResponse{}, err
	}
	return res.(domain.ActorHealthResponse), nil
}
