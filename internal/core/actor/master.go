package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "smartlife2mqtt/internal/adapter/actor"
	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/kvstore"
	. "smartlife2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type TuyaActorProvider func() *adactor.TuyaActor

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

// MasterActor supervises the bridge: the upstream adapter, the event
// monitor, the control queue and the MQTT sink. Requests from the HTTP
// facade land here and are forwarded to the owning child.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	store              kvstore.Store

	tuyaActor         *actor.PID
	mqttActor         *actor.PID
	monitorActor      *actor.PID
	controlQueueActor *actor.PID

	tuyaActorProvider TuyaActorProvider
	mqttActorProvider MQTTActorProvider

	logger *zap.Logger
}

type healthCheckResult struct {
	tuyaActorHealthy         bool
	mqttActorHealthy         bool
	monitorActorHealthy      bool
	controlQueueActorHealthy bool
	checksReceived           int
	respondTo                *actor.PID
}

func NewMasterActor(config config.Config, store kvstore.Store, tuyaActorProvider TuyaActorProvider,
	mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:            config,
		stash:             &Stash{},
		eventStream:       &eventstream.EventStream{},
		store:             store,
		tuyaActorProvider: tuyaActorProvider,
		mqttActorProvider: mqttActorProvider,
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		tuyaActorPID, err := state.startTuyaActor(ctx)
		if err != nil {
			panic(err)
		}
		state.tuyaActor = tuyaActorPID

		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		monitorActorPID, err := state.startMonitorActor(ctx)
		if err != nil {
			panic(err)
		}
		state.monitorActor = monitorActorPID

		controlQueueActorPID, err := state.startControlQueueActor(ctx)
		if err != nil {
			panic(err)
		}
		state.controlQueueActor = controlQueueActorPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for _, child := range []*actor.PID{state.tuyaActor, state.mqttActor, state.monitorActor, state.controlQueueActor} {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(child, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{Healthy: false}
			})
		}
		ctx.SetReceiveTimeout(1 * time.Second)
		state.behavior.BecomeStacked(state.HealthCheckReceive)

	case domain.DiscoverDevicesRequest:
		ctx.Forward(state.tuyaActor)

	case domain.StartMonitorRequest:
		ctx.Forward(state.monitorActor)
	case domain.StopMonitorRequest:
		ctx.Forward(state.monitorActor)
	case domain.GetRecentEventsRequest:
		ctx.Forward(state.monitorActor)

	case domain.SubmitControlRequest:
		ctx.Forward(state.controlQueueActor)
	case domain.ControlQueueStatusRequest:
		ctx.Forward(state.controlQueueActor)
	case domain.ClearControlQueueRequest:
		ctx.Forward(state.controlQueueActor)

	case *actor.Terminated:
		// if the adapter fails on boot there is nothing to bridge
		if msg.Who.GetId() == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_TUYA) {
			state.logger.Error("master@default tuya adapter terminated")
			panic(errors.New("tuya adapter terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// a child that does not answer counts as unhealthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse",
			zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_TUYA:
				state.currentHealthCheck.tuyaActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			case domain.ACTOR_ID_EVENT_MONITOR:
				state.currentHealthCheck.monitorActorHealthy = true
			case domain.ACTOR_ID_CONTROL_QUEUE:
				state.currentHealthCheck.controlQueueActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) startTuyaActor(ctx actor.Context) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	tuyaProps := actor.PropsFromProducer(func() actor.Actor {
		return state.tuyaActorProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(tuyaProps, domain.ACTOR_ID_TUYA)
}

func (state *MasterActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterActor) startMonitorActor(ctx actor.Context) (*actor.PID, error) {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	monitorProps := actor.PropsFromProducer(func() actor.Actor {
		return NewEventMonitorActor(&state.config, state.tuyaActor, state.eventStream, state.store, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(monitorProps, domain.ACTOR_ID_EVENT_MONITOR)
}

func (state *MasterActor) startControlQueueActor(ctx actor.Context) (*actor.PID, error) {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	controlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewControlQueueActor(&state.config, state.tuyaActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(controlProps, domain.ACTOR_ID_CONTROL_QUEUE)
}

func (state *healthCheckResult) reset() {
	state.tuyaActorHealthy = false
	state.mqttActorHealthy = false
	state.monitorActorHealthy = false
	state.controlQueueActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 4
}

func (state *healthCheckResult) allHealthy() bool {
	return state.tuyaActorHealthy && state.mqttActorHealthy &&
		state.monitorActorHealthy && state.controlQueueActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
