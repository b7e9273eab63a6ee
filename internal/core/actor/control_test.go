package actor

import (
	"errors"
	"testing"
	"time"

	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/kvstore"
	"smartlife2mqtt/internal/tuya"
	"smartlife2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func submit(context *pactor.RootContext, pid *pactor.PID, deviceID string) *pactor.Future {
	return context.RequestFuture(pid, domain.SubmitControlRequest{
		DeviceID:   deviceID,
		Action:     tuya.ActionTurnOnOff,
		FieldName:  "value",
		FieldValue: true,
	}, 5*time.Second)
}

func submitResult(t *testing.T, future *pactor.Future) domain.SubmitControlResponse {
	t.Helper()
	res, err := future.Result()
	require.NoError(t, err)
	resp, ok := res.(domain.SubmitControlResponse)
	require.True(t, ok, "unexpected response type %T", res)
	return resp
}

func TestControlQueueCooldown(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	upstream := newFakeUpstream(t)
	cfg, client := newUpstreamFixture(t, upstream, kvstore.NewMemoryStore())

	tuyaPID := spawnTuyaActor(t, context, client, logger)
	queueProps := pactor.PropsFromProducer(func() pactor.Actor {
		return NewControlQueueActor(cfg, tuyaPID, logger)
	})
	queuePID := context.Spawn(queueProps)

	time.Sleep(200 * time.Millisecond)

	// first control goes straight through
	resp := submitResult(t, submit(context, queuePID, "dev-1"))
	require.False(t, resp.HasResponseError(), "first control should succeed: %v", resp.GetResponseError())
	assert.NotEmpty(t, resp.EntryID)
	assert.Equal(t, "dev-1", resp.DeviceID)

	// an immediate second submit lands in the cooldown window
	resp = submitResult(t, submit(context, queuePID, "dev-1"))
	require.True(t, resp.HasResponseError())
	var cooldown *tuya.CooldownError
	assert.True(t, errors.As(resp.GetResponseError(), &cooldown), "expected cooldown rejection, got %v", resp.GetResponseError())

	// a different device is not affected
	resp = submitResult(t, submit(context, queuePID, "dev-2"))
	assert.False(t, resp.HasResponseError())

	// once the window passed the device accepts controls again
	time.Sleep(time.Duration(cfg.Control.CooldownMillis)*time.Millisecond + 100*time.Millisecond)
	resp = submitResult(t, submit(context, queuePID, "dev-1"))
	assert.False(t, resp.HasResponseError())

	context.Stop(queuePID)
	as.Shutdown()
}

func TestControlQueueFullAndClear(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	upstream := newFakeUpstream(t)
	upstream.setSkill(func(namespace, name string, payload map[string]any) map[string]any {
		if namespace == "control" {
			time.Sleep(600 * time.Millisecond)
		}
		return successBody()
	})
	cfg, client := newUpstreamFixture(t, upstream, kvstore.NewMemoryStore())

	tuyaPID := spawnTuyaActor(t, context, client, logger)
	queueProps := pactor.PropsFromProducer(func() pactor.Actor {
		return NewControlQueueActor(cfg, tuyaPID, logger)
	})
	queuePID := context.Spawn(queueProps)

	time.Sleep(200 * time.Millisecond)

	// fill the queue: one in flight plus one waiting (max_queued = 2)
	futureA := submit(context, queuePID, "dev-1")
	futureB := submit(context, queuePID, "dev-1")
	time.Sleep(100 * time.Millisecond)

	resp := submitResult(t, submit(context, queuePID, "dev-1"))
	require.True(t, resp.HasResponseError())
	assert.ErrorIs(t, resp.GetResponseError(), tuya.ErrQueueFull)

	// status reflects the saturated queue
	res, err := context.RequestFuture(queuePID, domain.ControlQueueStatusRequest{DeviceID: "dev-1"}, 3*time.Second).Result()
	require.NoError(t, err)
	status := res.(domain.ControlQueueStatusResponse)
	assert.Equal(t, 2, status.QueuedCount)
	assert.False(t, status.CanAcceptNewControl)

	// clear rejects the waiting entry but keeps the one in flight
	res, err = context.RequestFuture(queuePID, domain.ClearControlQueueRequest{DeviceID: "dev-1"}, 3*time.Second).Result()
	require.NoError(t, err)
	cleared := res.(domain.ClearControlQueueResponse)
	assert.Equal(t, 1, cleared.Cleared)

	respB := submitResult(t, futureB)
	require.True(t, respB.HasResponseError())
	assert.ErrorIs(t, respB.GetResponseError(), tuya.ErrQueueCleared)

	respA := submitResult(t, futureA)
	assert.False(t, respA.HasResponseError(), "in-flight control should still complete: %v", respA.GetResponseError())

	context.Stop(queuePID)
	as.Shutdown()
}

func TestControlQueuesDrainIndependently(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	upstream := newFakeUpstream(t)
	upstream.setSkill(func(namespace, name string, payload map[string]any) map[string]any {
		if namespace == "control" && payload["devId"] == "dev-slow" {
			time.Sleep(800 * time.Millisecond)
		}
		return successBody()
	})
	cfg, client := newUpstreamFixture(t, upstream, kvstore.NewMemoryStore())

	tuyaPID := spawnTuyaActor(t, context, client, logger)
	queueProps := pactor.PropsFromProducer(func() pactor.Actor {
		return NewControlQueueActor(cfg, tuyaPID, logger)
	})
	queuePID := context.Spawn(queueProps)

	time.Sleep(200 * time.Millisecond)

	slowFuture := submit(context, queuePID, "dev-slow")

	// the fast device completes while the slow one is still executing
	start := time.Now()
	resp := submitResult(t, submit(context, queuePID, "dev-fast"))
	assert.False(t, resp.HasResponseError())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	resp = submitResult(t, slowFuture)
	assert.False(t, resp.HasResponseError())

	context.Stop(queuePID)
	as.Shutdown()
}

func TestControlQueueHealth(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	upstream := newFakeUpstream(t)
	cfg, client := newUpstreamFixture(t, upstream, kvstore.NewMemoryStore())

	tuyaPID := spawnTuyaActor(t, context, client, logger)
	queueProps := pactor.PropsFromProducer(func() pactor.Actor {
		return NewControlQueueActor(cfg, tuyaPID, logger)
	})
	queuePID := context.Spawn(queueProps)

	time.Sleep(200 * time.Millisecond)

	hcr, err := healthCheck(context, queuePID)
	require.NoError(t, err)
	assert.True(t, hcr.Healthy)
	assert.Equal(t, "idle", hcr.State)

	context.Stop(queuePID)
	as.Shutdown()
}
