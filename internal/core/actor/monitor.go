package actor

import (
	"fmt"
	"time"

	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/core/events"
	"smartlife2mqtt/internal/kvstore"
	"smartlife2mqtt/internal/tuya"
	. "smartlife2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const monitorQueryTimeout = 35 * time.Second

// Persisted monitor state.
const (
	storeKeyKnownScenes        = "monitor_known_scenes"
	storeKeyKnownAlerts        = "monitor_known_alerts"
	storeKeyKnownNotifications = "monitor_known_notifications"
	storeKeyKnownChanges       = "monitor_known_changes"
	storeKeyKnownAutomations   = "monitor_known_automations"
	storeKeyDeviceStatus       = "monitor_device_status"
	storeKeyEventLog           = "monitor_event_log"
)

// EventMonitorActor polls the six upstream event categories on a fixed
// tick, de-duplicates records against bounded known-sets and publishes
// fresh observations as Event records. A category that fails on a tick
// is logged and skipped; the other categories still go through.
type EventMonitorActor struct {
	behavior   actor.Behavior
	scheduler  *scheduler.TimerScheduler
	cancelTick scheduler.CancelFunc

	config      *config.Config
	tuyaActor   *actor.PID
	eventStream *eventstream.EventStream
	store       kvstore.Store

	running            bool
	knownScenes        *events.KnownSet
	knownAlerts        *events.KnownSet
	knownNotifications *events.KnownSet
	knownChanges       *events.KnownSet
	knownAutomations   map[string]*events.KnownSet
	prevStatus         map[string]tuya.DeviceStatus
	eventLog           []domain.Event

	logger *zap.Logger
}

type monitorTick struct {
}

func NewEventMonitorActor(config *config.Config, tuyaActor *actor.PID, eventStream *eventstream.EventStream,
	store kvstore.Store, logger *zap.Logger) *EventMonitorActor {
	act := &EventMonitorActor{
		config:      config,
		tuyaActor:   tuyaActor,
		eventStream: eventStream,
		store:       store,
		logger:      ActorLogger(domain.ACTOR_ID_EVENT_MONITOR, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *EventMonitorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *EventMonitorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("monitor@default started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.loadState()

	case domain.ActorHealthRequest:
		state.logger.Debug("monitor@default ActorHealthRequest")
		healthState := "idle"
		if state.running {
			healthState = "monitoring"
		}
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_EVENT_MONITOR,
			Healthy: true,
			State:   healthState,
		})

	case domain.StartMonitorRequest:
		state.logger.Debug("monitor@default StartMonitorRequest")
		if state.running {
			ForRequest(msg).Respond(ctx, domain.StartMonitorResponse{AlreadyRunning: true})
			return
		}
		state.running = true
		state.scheduleTick(ctx)
		state.logger.Info("event monitoring started",
			zap.Uint32("interval_ms", state.config.Monitor.PollIntervalMillis))
		ForRequest(msg).Respond(ctx, domain.StartMonitorResponse{})

	case domain.StopMonitorRequest:
		state.logger.Debug("monitor@default StopMonitorRequest")
		wasRunning := state.running
		state.running = false
		// cancel so the stop takes effect before the next tick
		if state.cancelTick != nil {
			state.cancelTick()
			state.cancelTick = nil
		}
		if wasRunning {
			state.logger.Info("event monitoring stopped")
		}
		ForRequest(msg).Respond(ctx, domain.StopMonitorResponse{WasRunning: wasRunning})

	case domain.GetRecentEventsRequest:
		limit := msg.Limit
		if limit <= 0 || limit > len(state.eventLog) {
			limit = len(state.eventLog)
		}
		// newest first
		out := make([]domain.Event, 0, limit)
		for i := len(state.eventLog) - 1; i >= len(state.eventLog)-limit; i-- {
			out = append(out, state.eventLog[i])
		}
		ForRequest(msg).Respond(ctx, domain.GetRecentEventsResponse{Events: out})

	case monitorTick:
		if !state.running {
			return
		}
		state.logger.Debug("monitor@default tick")
		state.pollAllCategories(ctx)
		state.scheduleTick(ctx)

	case domain.GetDeviceStatusesResponse:
		if msg.HasResponseError() {
			state.logger.Warn("device status query failed", zap.Error(msg.GetResponseError()))
			return
		}
		state.handleDeviceStatuses(ctx, msg.Devices)

	case domain.GetSceneExecutionsResponse:
		if msg.HasResponseError() {
			state.logger.Warn("scene execution query failed", zap.Error(msg.GetResponseError()))
			return
		}
		now := time.Now()
		changed := false
		for _, execution := range msg.Executions {
			if state.knownScenes.Has(execution.ID) {
				continue
			}
			state.knownScenes.Add(execution.ID)
			state.emit(events.SceneExecutionEvent(execution, now))
			changed = true
		}
		if changed {
			state.saveKnownSet(storeKeyKnownScenes, state.knownScenes)
		}

	case domain.GetAutomationEventsResponse:
		if msg.HasResponseError() {
			state.logger.Warn("automation query failed", zap.Error(msg.GetResponseError()))
			return
		}
		now := time.Now()
		changed := false
		for _, automation := range msg.Automations {
			known := state.knownAutomations[automation.ID]
			if known == nil {
				known = events.NewKnownSet(state.config.Monitor.AutomationSetCap)
				state.knownAutomations[automation.ID] = known
			}
			identity := events.AutomationIdentity(automation)
			if known.Has(identity) {
				continue
			}
			known.Add(identity)
			state.emit(events.AutomationTriggeredEvent(automation, now))
			changed = true
		}
		if changed {
			state.saveKnownAutomations()
		}

	case domain.GetSystemAlertsResponse:
		if msg.HasResponseError() {
			state.logger.Warn("system alert query failed", zap.Error(msg.GetResponseError()))
			return
		}
		now := time.Now()
		changed := false
		for _, alert := range msg.Alerts {
			if state.knownAlerts.Has(alert.ID) {
				continue
			}
			state.knownAlerts.Add(alert.ID)
			state.emit(events.SystemAlertEvent(alert, now))
			changed = true
		}
		if changed {
			state.saveKnownSet(storeKeyKnownAlerts, state.knownAlerts)
		}

	case domain.GetNotificationsResponse:
		if msg.HasResponseError() {
			state.logger.Warn("notification query failed", zap.Error(msg.GetResponseError()))
			return
		}
		now := time.Now()
		changed := false
		for _, notification := range msg.Notifications {
			if state.knownNotifications.Has(notification.ID) {
				continue
			}
			state.knownNotifications.Add(notification.ID)
			state.emit(events.NotificationEvent(notification, now))
			changed = true
		}
		if changed {
			state.saveKnownSet(storeKeyKnownNotifications, state.knownNotifications)
		}

	case domain.GetDeviceChangesResponse:
		if msg.HasResponseError() {
			state.logger.Warn("device change query failed", zap.Error(msg.GetResponseError()))
			return
		}
		now := time.Now()
		changed := false
		for _, change := range msg.Changes {
			if state.knownChanges.Has(change.ID) {
				continue
			}
			state.knownChanges.Add(change.ID)
			state.emit(events.DeviceChangeEvent(change, now))
			changed = true
		}
		if changed {
			state.saveKnownSet(storeKeyKnownChanges, state.knownChanges)
		}

	default:
		state.logger.Debug("monitor@default ignored", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *EventMonitorActor) scheduleTick(ctx actor.Context) {
	interval := time.Duration(state.config.Monitor.PollIntervalMillis) * time.Millisecond
	state.cancelTick = state.scheduler.RequestOnce(interval, ctx.Self(), monitorTick{})
}

// pollAllCategories fires the six category queries concurrently. Each
// future resolves (or fails) into its own response message, so one
// broken category cannot take the tick down with it.
func (state *EventMonitorActor) pollAllCategories(ctx actor.Context) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.tuyaActor, domain.GetDeviceStatusesRequest{}, monitorQueryTimeout), func(err error) any {
		return domain.GetDeviceStatusesResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
	})
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.tuyaActor, domain.GetSceneExecutionsRequest{}, monitorQueryTimeout), func(err error) any {
		return domain.GetSceneExecutionsResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
	})
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.tuyaActor, domain.GetAutomationEventsRequest{}, monitorQueryTimeout), func(err error) any {
		return domain.GetAutomationEventsResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
	})
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.tuyaActor, domain.GetSystemAlertsRequest{}, monitorQueryTimeout), func(err error) any {
		return domain.GetSystemAlertsResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
	})
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.tuyaActor, domain.GetNotificationsRequest{}, monitorQueryTimeout), func(err error) any {
		return domain.GetNotificationsResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
	})
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.tuyaActor, domain.GetDeviceChangesRequest{}, monitorQueryTimeout), func(err error) any {
		return domain.GetDeviceChangesResponse{ActorResponseMixIn: domain.ResponseWithError(err)}
	})
}

func (state *EventMonitorActor) handleDeviceStatuses(ctx actor.Context, statuses []tuya.DeviceStatus) {
	now := time.Now()
	changed := false
	for _, current := range statuses {
		if current.ID == "" {
			continue
		}
		prev, seen := state.prevStatus[current.ID]
		if seen {
			for _, event := range events.DeviceStatusDiff(prev, current, now) {
				state.emit(event)
			}
		}
		if !seen || prev != current {
			state.prevStatus[current.ID] = current
			changed = true
		}
	}
	if changed {
		if err := state.store.Set(storeKeyDeviceStatus, state.prevStatus); err != nil {
			state.logger.Warn("could not persist device status snapshot", zap.Error(err))
		}
	}
}

func (state *EventMonitorActor) emit(event domain.Event) {
	state.eventLog = append(state.eventLog, event)
	if cap := state.config.Monitor.EventLogCap; cap > 0 && len(state.eventLog) > cap {
		state.eventLog = state.eventLog[len(state.eventLog)-cap:]
	}
	state.eventStream.Publish(event)
	state.logger.Info("event",
		zap.String("category", string(event.Category)),
		zap.String("message", event.Message))
	if err := state.store.Set(storeKeyEventLog, state.eventLog); err != nil {
		state.logger.Warn("could not persist event log", zap.Error(err))
	}
}

func (state *EventMonitorActor) loadState() {
	state.knownScenes = state.loadKnownSet(storeKeyKnownScenes, state.config.Monitor.KnownSetCap)
	state.knownAlerts = state.loadKnownSet(storeKeyKnownAlerts, state.config.Monitor.KnownSetCap)
	state.knownNotifications = state.loadKnownSet(storeKeyKnownNotifications, state.config.Monitor.KnownSetCap)
	state.knownChanges = state.loadKnownSet(storeKeyKnownChanges, state.config.Monitor.KnownSetCap)

	state.knownAutomations = make(map[string]*events.KnownSet)
	var automationSnapshots map[string][]string
	if ok, err := state.store.Get(storeKeyKnownAutomations, &automationSnapshots); err == nil && ok {
		for id, ids := range automationSnapshots {
			state.knownAutomations[id] = events.RestoreKnownSet(state.config.Monitor.AutomationSetCap, ids)
		}
	}

	state.prevStatus = make(map[string]tuya.DeviceStatus)
	if _, err := state.store.Get(storeKeyDeviceStatus, &state.prevStatus); err != nil {
		state.logger.Warn("could not load device status snapshot", zap.Error(err))
		state.prevStatus = make(map[string]tuya.DeviceStatus)
	}

	if _, err := state.store.Get(storeKeyEventLog, &state.eventLog); err != nil {
		state.logger.Warn("could not load event log", zap.Error(err))
		state.eventLog = nil
	}
}

func (state *EventMonitorActor) loadKnownSet(key string, cap int) *events.KnownSet {
	var ids []string
	if ok, err := state.store.Get(key, &ids); err == nil && ok {
		return events.RestoreKnownSet(cap, ids)
	}
	return events.NewKnownSet(cap)
}

func (state *EventMonitorActor) saveKnownSet(key string, set *events.KnownSet) {
	if err := state.store.Set(key, set.Snapshot()); err != nil {
		state.logger.Warn("could not persist known set", zap.String("key", key), zap.Error(err))
	}
}

func (state *EventMonitorActor) saveKnownAutomations() {
	snapshots := make(map[string][]string, len(state.knownAutomations))
	for id, set := range state.knownAutomations {
		snapshots[id] = set.Snapshot()
	}
	if err := state.store.Set(storeKeyKnownAutomations, snapshots); err != nil {
		state.logger.Warn("could not persist automation known sets", zap.Error(err))
	}
}
