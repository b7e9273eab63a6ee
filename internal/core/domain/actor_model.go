package domain

import (
	"time"

	"smartlife2mqtt/internal/tuya"
)

const (
	ACTOR_ID_MASTER        = "master"
	ACTOR_ID_TUYA          = "tuya"
	ACTOR_ID_EVENT_MONITOR = "event_monitor"
	ACTOR_ID_CONTROL_QUEUE = "control_queue"
	ACTOR_ID_MQTT          = "mqtt"
)

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}

// Upstream adapter messages.

type DiscoverDevicesRequest struct {
	ActorRequestMixIn
}

type DiscoverDevicesResponse struct {
	ActorResponseMixIn
	Result *tuya.DiscoveryResult
}

type DeviceControlRequest struct {
	ActorRequestMixIn
	DeviceID   string
	Action     string
	FieldName  string
	FieldValue any
}

type DeviceControlResponse struct {
	ActorResponseMixIn
	DeviceID string
	Action   string
}

type GetDeviceStatusesRequest struct {
	ActorRequestMixIn
}

type GetDeviceStatusesResponse struct {
	ActorResponseMixIn
	Devices []tuya.DeviceStatus
}

type GetSceneExecutionsRequest struct {
	ActorRequestMixIn
}

type GetSceneExecutionsResponse struct {
	ActorResponseMixIn
	Executions []tuya.SceneExecution
}

type GetAutomationEventsRequest struct {
	ActorRequestMixIn
}

type GetAutomationEventsResponse struct {
	ActorResponseMixIn
	Automations []tuya.AutomationEvent
}

type GetSystemAlertsRequest struct {
	ActorRequestMixIn
}

type GetSystemAlertsResponse struct {
	ActorResponseMixIn
	Alerts []tuya.SystemAlert
}

type GetNotificationsRequest struct {
	ActorRequestMixIn
}

type GetNotificationsResponse struct {
	ActorResponseMixIn
	Notifications []tuya.Notification
}

type GetDeviceChangesRequest struct {
	ActorRequestMixIn
}

type GetDeviceChangesResponse struct {
	ActorResponseMixIn
	Changes []tuya.DeviceChange
}

// Event monitor messages.

type StartMonitorRequest struct {
	ActorRequestMixIn
}

type StartMonitorResponse struct {
	ActorResponseMixIn
	AlreadyRunning bool
}

type StopMonitorRequest struct {
	ActorRequestMixIn
}

type StopMonitorResponse struct {
	ActorResponseMixIn
	WasRunning bool
}

type GetRecentEventsRequest struct {
	ActorRequestMixIn
	Limit int
}

type GetRecentEventsResponse struct {
	ActorResponseMixIn
	Events []Event
}

// Control queue messages.

type SubmitControlRequest struct {
	ActorRequestMixIn
	DeviceID   string
	Action     string
	FieldName  string
	FieldValue any
}

type SubmitControlResponse struct {
	ActorResponseMixIn
	EntryID  string
	DeviceID string
}

type ControlQueueStatusRequest struct {
	ActorRequestMixIn
	DeviceID string
}

type ControlQueueStatusResponse struct {
	ActorResponseMixIn
	DeviceID            string
	QueuedCount         int
	InCooldown          bool
	CooldownRemaining   time.Duration
	CanAcceptNewControl bool
}

type ClearControlQueueRequest struct {
	ActorRequestMixIn
	DeviceID string
}

type ClearControlQueueResponse struct {
	ActorResponseMixIn
	DeviceID string
	Cleared  int
}

// MQTT sink messages.

type PublishEventRequest struct {
	ActorRequestMixIn
	Event Event
}

type PublishEventResponse struct {
	ActorResponseMixIn
}
