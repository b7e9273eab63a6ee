package domain

import "time"

type EventCategory string

const (
	EventCategoryDeviceStatus   EventCategory = "device_status"
	EventCategorySceneExecution EventCategory = "scene_execution"
	EventCategoryAutomation     EventCategory = "automation"
	EventCategoryAlert          EventCategory = "alert"
	EventCategoryNotification   EventCategory = "notification"
	EventCategoryDeviceChange   EventCategory = "device_change"
)

// Event is a normalized monitor observation: something happened
// upstream that the dashboard (or the MQTT sink) should hear about
// exactly once.
type Event struct {
	ID        string         `json:"id"`
	Category  EventCategory  `json:"category"`
	Type      string         `json:"type"`
	SubjectID string         `json:"subject_id"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}
