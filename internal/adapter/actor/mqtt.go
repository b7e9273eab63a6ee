package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/mqtt"
	"smartlife2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTActor publishes monitor events to MQTT and turns scene command
// topics into control submissions routed through the parent.
type MQTTActor struct {
	config      *config.Config
	client      *mqtt.MQTTClient
	eventStream *eventstream.EventStream
	sub         *eventstream.Subscription
	behavior    actor.Behavior
	stash       *actorutil.Stash
	logger      *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type publishResult struct {
	err error
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		eventStream: eventStream,
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// NewDisabledMQTTActor answers health checks but publishes nothing.
// Used when the MQTT sink is not configured, so the supervision tree
// keeps a uniform shape.
func NewDisabledMQTTActor(config *config.Config, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config: config,
		stash:  &actorutil.Stash{},
		logger: actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DisabledReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		state.client.SubscribeToCommandTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseMQTTCommand(m)
			if err == nil && cmd != nil {
				ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)

	case MQTTSubscribed:
		state.logger.Debug("mqtt@starting subscribed")
		state.sub = state.eventStream.Subscribe(func(evt any) {
			if event, ok := evt.(domain.Event); ok {
				ctx.Send(ctx.Self(), domain.PublishEventRequest{Event: event})
			}
		})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)

	case MQTTConnectionLost:
		// let the supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)

	case *actor.Restarting:
		state.stop()

	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()

	case *actor.Stopping:
		state.stop()

	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "connected",
		})

	case ParsedCommand:
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command.Payload == mqtt.MQTT_PAYLOAD_ON {
			ctx.Send(ctx.Parent(), domain.SubmitControlRequest{
				DeviceID:   msg.Command.SceneId,
				Action:     "turnOnOff",
				FieldName:  "value",
				FieldValue: true,
			})
		}

	case domain.PublishEventRequest:
		state.logger.Debug("mqtt@default PublishEventRequest", zap.String("category", string(msg.Event.Category)))
		state.publishEvent(ctx, msg.Event)

	case MQTTConnectionLost:
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)

	default:
		state.logger.Debug("mqtt@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) publishEvent(ctx actor.Context, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		state.logger.Error("mqtt@default could not encode event", zap.Error(err))
		return
	}
	topic := state.client.EventTopic(string(event.Category), event.SubjectID)
	state.client.Publish(topic, payload, 1, false, func(err error) {
		ctx.Send(ctx.Self(), publishResult{err: err})
	}, 2*time.Second)
	state.behavior.BecomeStacked(state.PublishResultReceive)
}

func (state *MQTTActor) PublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		if msg.err != nil {
			state.logger.Error("mqtt@publishing publish error", zap.Error(msg.err))
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DisabledReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@disabled started")
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "disabled",
		})
	case domain.PublishEventRequest:
	default:
		state.logger.Debug("mqtt@disabled ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) stop() {
	if state.sub != nil && state.eventStream != nil {
		state.eventStream.Unsubscribe(state.sub)
		state.sub = nil
	}
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}
