package actor

import (
	"fmt"
	"time"

	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/tuya"
	. "smartlife2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const controlExecTimeout = 35 * time.Second

// ControlQueueActor serializes device controls per device: at most one
// call in flight per device, a bounded FIFO of waiting entries and a
// cooldown window after every execution, successful or not. Queues of
// different devices drain independently.
type ControlQueueActor struct {
	behavior  actor.Behavior
	scheduler *scheduler.TimerScheduler

	config    *config.Config
	tuyaActor *actor.PID
	queues    map[string]*deviceQueue
	now       func() time.Time

	logger *zap.Logger
}

type deviceQueue struct {
	entries       []*controlEntry
	cooldownUntil time.Time
	inFlight      bool
}

type controlEntry struct {
	id         string
	request    domain.SubmitControlRequest
	replyTo    *actor.PID
	enqueuedAt time.Time
}

type drainTick struct {
	deviceID string
}

func NewControlQueueActor(config *config.Config, tuyaActor *actor.PID, logger *zap.Logger) *ControlQueueActor {
	act := &ControlQueueActor{
		config:    config,
		tuyaActor: tuyaActor,
		queues:    make(map[string]*deviceQueue),
		now:       time.Now,
		logger:    ActorLogger(domain.ACTOR_ID_CONTROL_QUEUE, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *ControlQueueActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ControlQueueActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("control@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)

	case domain.ActorHealthRequest:
		state.logger.Debug("control@default ActorHealthRequest")
		healthState := "idle"
		for _, q := range state.queues {
			if q.inFlight || len(q.entries) > 0 {
				healthState = "draining"
				break
			}
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CONTROL_QUEUE,
			Healthy: true,
			State:   healthState,
		})

	case domain.SubmitControlRequest:
		state.handleSubmit(ctx, msg)

	case domain.DeviceControlResponse:
		state.handleExecuted(ctx, msg)

	case drainTick:
		q := state.queues[msg.deviceID]
		if q == nil || q.inFlight || len(q.entries) == 0 {
			return
		}
		if state.now().Before(q.cooldownUntil) {
			return
		}
		state.executeNext(ctx, msg.deviceID)

	case domain.ControlQueueStatusRequest:
		state.handleStatus(ctx, msg)

	case domain.ClearControlQueueRequest:
		state.handleClear(ctx, msg)

	default:
		state.logger.Debug("control@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ControlQueueActor) handleSubmit(ctx actor.Context, msg domain.SubmitControlRequest) {
	replyTo := ForRequest(msg).ReplyTo(ctx)
	q := state.queue(msg.DeviceID)
	now := state.now()

	if now.Before(q.cooldownUntil) {
		remaining := q.cooldownUntil.Sub(now)
		state.logger.Debug("control@default submit rejected, cooldown",
			zap.String("device", msg.DeviceID),
			zap.Duration("remaining", remaining))
		ctx.Send(replyTo, domain.SubmitControlResponse{
			ActorResponseMixIn: domain.ResponseWithError(&tuya.CooldownError{Remaining: remaining}),
			DeviceID:           msg.DeviceID,
		})
		return
	}
	if len(q.entries) >= state.config.Control.MaxQueued {
		state.logger.Debug("control@default submit rejected, queue full",
			zap.String("device", msg.DeviceID))
		ctx.Send(replyTo, domain.SubmitControlResponse{
			ActorResponseMixIn: domain.ResponseWithError(tuya.ErrQueueFull),
			DeviceID:           msg.DeviceID,
		})
		return
	}

	entry := &controlEntry{
		id:         uuid.NewString(),
		request:    msg,
		replyTo:    replyTo,
		enqueuedAt: now,
	}
	q.entries = append(q.entries, entry)
	state.logger.Debug("control@default enqueued",
		zap.String("device", msg.DeviceID),
		zap.String("action", msg.Action),
		zap.Int("depth", len(q.entries)))

	if !q.inFlight {
		state.executeNext(ctx, msg.DeviceID)
	}
}

func (state *ControlQueueActor) executeNext(ctx actor.Context, deviceID string) {
	q := state.queues[deviceID]
	if q == nil || len(q.entries) == 0 {
		return
	}
	q.inFlight = true
	entry := q.entries[0]

	request := domain.DeviceControlRequest{
		DeviceID:   entry.request.DeviceID,
		Action:     entry.request.Action,
		FieldName:  entry.request.FieldName,
		FieldValue: entry.request.FieldValue,
	}
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.tuyaActor, request, controlExecTimeout), func(err error) any {
		return domain.DeviceControlResponse{
			ActorResponseMixIn: domain.ResponseWithError(err),
			DeviceID:           deviceID,
			Action:             entry.request.Action,
		}
	})
}

// handleExecuted resolves the head entry and opens the cooldown
// window. The cooldown applies after failures too: a misbehaving
// device does not get hammered faster just because calls error out.
func (state *ControlQueueActor) handleExecuted(ctx actor.Context, msg domain.DeviceControlResponse) {
	q := state.queues[msg.DeviceID]
	if q == nil || !q.inFlight || len(q.entries) == 0 {
		return
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	q.inFlight = false

	cooldown := time.Duration(state.config.Control.CooldownMillis) * time.Millisecond
	q.cooldownUntil = state.now().Add(cooldown)

	ctx.Send(entry.replyTo, domain.SubmitControlResponse{
		ActorResponseMixIn: domain.ResponseWithError(msg.GetResponseError()),
		EntryID:            entry.id,
		DeviceID:           msg.DeviceID,
	})
	if msg.HasResponseError() {
		state.logger.Warn("control execution failed",
			zap.String("device", msg.DeviceID),
			zap.String("action", msg.Action),
			zap.Error(msg.GetResponseError()))
	} else {
		state.logger.Info("control executed",
			zap.String("device", msg.DeviceID),
			zap.String("action", msg.Action),
			zap.Duration("waited", state.now().Sub(entry.enqueuedAt)))
	}

	if len(q.entries) > 0 {
		state.scheduler.RequestOnce(cooldown, ctx.Self(), drainTick{deviceID: msg.DeviceID})
	}
}

func (state *ControlQueueActor) handleStatus(ctx actor.Context, msg domain.ControlQueueStatusRequest) {
	now := state.now()
	resp := domain.ControlQueueStatusResponse{
		DeviceID: msg.DeviceID,
	}
	if q, ok := state.queues[msg.DeviceID]; ok {
		resp.QueuedCount = len(q.entries)
		if now.Before(q.cooldownUntil) {
			resp.InCooldown = true
			resp.CooldownRemaining = q.cooldownUntil.Sub(now)
		}
	}
	resp.CanAcceptNewControl = !resp.InCooldown && resp.QueuedCount < state.config.Control.MaxQueued
	ForRequest(msg).Respond(ctx, resp)
}

// handleClear rejects the waiting entries. An entry already in flight
// cannot be recalled and stays; the cooldown window is reset.
func (state *ControlQueueActor) handleClear(ctx actor.Context, msg domain.ClearControlQueueRequest) {
	cleared := 0
	if q, ok := state.queues[msg.DeviceID]; ok {
		waiting := q.entries
		if q.inFlight && len(waiting) > 0 {
			q.entries = waiting[:1]
			waiting = waiting[1:]
		} else {
			q.entries = nil
		}
		for _, entry := range waiting {
			ctx.Send(entry.replyTo, domain.SubmitControlResponse{
				ActorResponseMixIn: domain.ResponseWithError(tuya.ErrQueueCleared),
				EntryID:            entry.id,
				DeviceID:           msg.DeviceID,
			})
			cleared++
		}
		q.cooldownUntil = time.Time{}
	}
	state.logger.Info("control queue cleared",
		zap.String("device", msg.DeviceID),
		zap.Int("cleared", cleared))
	ForRequest(msg).Respond(ctx, domain.ClearControlQueueResponse{
		DeviceID: msg.DeviceID,
		Cleared:  cleared,
	})
}

func (state *ControlQueueActor) queue(deviceID string) *deviceQueue {
	q, ok := state.queues[deviceID]
	if !ok {
		q = &deviceQueue{}
		state.queues[deviceID] = q
	}
	return q
}
