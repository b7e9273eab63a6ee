package actor

import (
	"context"
	"time"

	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/tuya"
	"smartlife2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	// Discovery is retry-wrapped inside the client, so its budget has
	// to cover the whole backoff schedule.
	discoveryTaskTimeout = 3 * time.Minute
	queryTaskTimeout     = 30 * time.Second
	controlTaskTimeout   = 30 * time.Second
)

// TuyaActor owns the upstream client. Calls run on background tasks
// that reply straight to the requester, so independent requests (the
// six monitor queries, controls on different devices) proceed
// concurrently.
type TuyaActor struct {
	client *tuya.Client
	logger *zap.Logger
}

func NewTuyaActor(client *tuya.Client, logger *zap.Logger) *TuyaActor {
	return &TuyaActor{
		client: client,
		logger: actorutil.ActorLogger(domain.ACTOR_ID_TUYA, logger),
	}
}

func (state *TuyaActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("tuya@default started")

	case domain.ActorHealthRequest:
		state.logger.Debug("tuya@default ActorHealthRequest")
		healthState := "unauthenticated"
		if state.client.Session() != nil {
			healthState = "authenticated"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TUYA,
			Healthy: true,
			State:   healthState,
		})

	case domain.DiscoverDevicesRequest:
		state.logger.Debug("tuya@default DiscoverDevicesRequest")
		replyTask(ctx, msg, discoveryTaskTimeout, func() *domain.DiscoverDevicesResponse {
			result, err := state.client.Discover(context.Background())
			return &domain.DiscoverDevicesResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Result:             result,
			}
		}, func(err error) domain.DiscoverDevicesResponse {
			return domain.DiscoverDevicesResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
		})

	case domain.DeviceControlRequest:
		state.logger.Debug("tuya@default DeviceControlRequest",
			zap.String("device", msg.DeviceID), zap.String("action", msg.Action))
		replyTask(ctx, msg, controlTaskTimeout, func() *domain.DeviceControlResponse {
			err := state.client.DeviceControl(context.Background(), msg.DeviceID, msg.Action, msg.FieldName, msg.FieldValue)
			return &domain.DeviceControlResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				DeviceID:           msg.DeviceID,
				Action:             msg.Action,
			}
		}, func(err error) domain.DeviceControlResponse {
			return domain.DeviceControlResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				DeviceID:           msg.DeviceID,
				Action:             msg.Action,
			}
		})

	case domain.GetDeviceStatusesRequest:
		replyTask(ctx, msg, queryTaskTimeout, func() *domain.GetDeviceStatusesResponse {
			devices, err := state.client.DeviceStatuses(context.Background())
			return &domain.GetDeviceStatusesResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Devices:            devices,
			}
		}, func(err error) domain.GetDeviceStatusesResponse {
			return domain.GetDeviceStatusesResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
		})

	case domain.GetSceneExecutionsRequest:
		replyTask(ctx, msg, queryTaskTimeout, func() *domain.GetSceneExecutionsResponse {
			executions, err := state.client.SceneExecutions(context.Background())
			return &domain.GetSceneExecutionsResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Executions:         executions,
			}
		}, func(err error) domain.GetSceneExecutionsResponse {
			return domain.GetSceneExecutionsResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
		})

	case domain.GetAutomationEventsRequest:
		replyTask(ctx, msg, queryTaskTimeout, func() *domain.GetAutomationEventsResponse {
			automations, err := state.client.AutomationEvents(context.Background())
			return &domain.GetAutomationEventsResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Automations:        automations,
			}
		}, func(err error) domain.GetAutomationEventsResponse {
			return domain.GetAutomationEventsResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
		})

	case domain.GetSystemAlertsRequest:
		replyTask(ctx, msg, queryTaskTimeout, func() *domain.GetSystemAlertsResponse {
			alerts, err := state.client.SystemAlerts(context.Background())
			return &domain.GetSystemAlertsResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Alerts:             alerts,
			}
		}, func(err error) domain.GetSystemAlertsResponse {
			return domain.GetSystemAlertsResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
		})

	case domain.GetNotificationsRequest:
		replyTask(ctx, msg, queryTaskTimeout, func() *domain.GetNotificationsResponse {
			notifications, err := state.client.Notifications(context.Background())
			return &domain.GetNotificationsResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Notifications:      notifications,
			}
		}, func(err error) domain.GetNotificationsResponse {
			return domain.GetNotificationsResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
		})

	case domain.GetDeviceChangesRequest:
		replyTask(ctx, msg, queryTaskTimeout, func() *domain.GetDeviceChangesResponse {
			changes, err := state.client.DeviceChanges(context.Background())
			return &domain.GetDeviceChangesResponse{
				ActorResponseMixIn: domain.ResponseWithError(err),
				Changes:            changes,
			}
		}, func(err error) domain.GetDeviceChangesResponse {
			return domain.GetDeviceChangesResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
		})
	}
}

// replyTask executes fn off the actor goroutine and delivers the
// result to the requester. recover maps task-level failures (timeouts)
// onto the response type so every request gets exactly one reply.
func replyTask[T any](ctx actor.Context, req domain.ActorRequest, timeout time.Duration, fn func() *T, recover func(error) T) {
	replyTo := actorutil.ForRequest(req).ReplyTo(ctx)
	actorutil.NewBackgroundTaskNoError(ctx, fn).
		WithTimeout(timeout).
		Recover(recover).
		PipeToAsync(replyTo)
}
