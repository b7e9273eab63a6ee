// Package events converts raw upstream records into Event records with
// stable identities for de-duplication and human-readable messages.
package events

import (
	"fmt"
	"time"

	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/tuya"

	"github.com/google/uuid"
)

// AutomationIdentity distinguishes re-triggers of the same automation:
// the automation id alone would announce only the first firing.
func AutomationIdentity(a tuya.AutomationEvent) string {
	return a.ID + "@" + a.LastTriggered
}

func SceneExecutionEvent(e tuya.SceneExecution, now time.Time) domain.Event {
	message := fmt.Sprintf("Scene %q executed", e.Name)
	if e.ExecutedBy != "" {
		message = fmt.Sprintf("Scene %q executed by %s", e.Name, e.ExecutedBy)
	}
	return domain.Event{
		ID:        uuid.NewString(),
		Category:  domain.EventCategorySceneExecution,
		Type:      "scene_executed",
		SubjectID: e.ID,
		Subject:   e.Name,
		Message:   message,
		Timestamp: parseTimestamp(e.Timestamp, now),
		Payload: map[string]any{
			"executed_by": e.ExecutedBy,
			"success":     e.Success,
		},
	}
}

func AutomationTriggeredEvent(a tuya.AutomationEvent, now time.Time) domain.Event {
	message := fmt.Sprintf("Automation %q triggered", a.Name)
	if a.Trigger != "" {
		message = fmt.Sprintf("Automation %q triggered by %s", a.Name, a.Trigger)
	}
	return domain.Event{
		ID:        uuid.NewString(),
		Category:  domain.EventCategoryAutomation,
		Type:      "automation_triggered",
		SubjectID: a.ID,
		Subject:   a.Name,
		Message:   message,
		Timestamp: parseTimestamp(a.LastTriggered, now),
		Payload: map[string]any{
			"trigger": a.Trigger,
		},
	}
}

func SystemAlertEvent(a tuya.SystemAlert, now time.Time) domain.Event {
	return domain.Event{
		ID:        uuid.NewString(),
		Category:  domain.EventCategoryAlert,
		Type:      "system_alert",
		SubjectID: a.ID,
		Subject:   a.Category,
		Message:   fmt.Sprintf("[%s] %s", a.Level, a.Message),
		Timestamp: parseTimestamp(a.Timestamp, now),
		Payload: map[string]any{
			"level":        a.Level,
			"category":     a.Category,
			"acknowledged": a.Acknowledged,
		},
	}
}

func NotificationEvent(n tuya.Notification, now time.Time) domain.Event {
	message := n.Message
	if n.Title != "" {
		message = fmt.Sprintf("%s: %s", n.Title, n.Message)
	}
	return domain.Event{
		ID:        uuid.NewString(),
		Category:  domain.EventCategoryNotification,
		Type:      "notification",
		SubjectID: n.ID,
		Subject:   n.Title,
		Message:   message,
		Timestamp: parseTimestamp(n.Timestamp, now),
		Payload: map[string]any{
			"priority": n.Priority,
			"category": n.Category,
			"read":     n.Read,
		},
	}
}

func DeviceChangeEvent(c tuya.DeviceChange, now time.Time) domain.Event {
	return domain.Event{
		ID:        uuid.NewString(),
		Category:  domain.EventCategoryDeviceChange,
		Type:      "device_change",
		SubjectID: c.DeviceID,
		Subject:   c.DeviceName,
		Message: fmt.Sprintf("Device %q: %s changed from %v to %v",
			c.DeviceName, c.Property, c.OldValue, c.NewValue),
		Timestamp: parseTimestamp(c.Timestamp, now),
		Payload: map[string]any{
			"change_type": c.ChangeType,
			"property":    c.Property,
			"old_value":   c.OldValue,
			"new_value":   c.NewValue,
			"source":      c.Source,
		},
	}
}

// DeviceStatusDiff compares a device snapshot against the previous one
// and emits one event per changed field, carrying both the before and
// after values.
func DeviceStatusDiff(prev, current tuya.DeviceStatus, now time.Time) []domain.Event {
	var out []domain.Event
	if prev.Online != current.Online {
		message := fmt.Sprintf("Device %q went offline", current.Name)
		if current.Online {
			message = fmt.Sprintf("Device %q came online", current.Name)
		}
		out = append(out, domain.Event{
			ID:        uuid.NewString(),
			Category:  domain.EventCategoryDeviceStatus,
			Type:      "device_online_change",
			SubjectID: current.ID,
			Subject:   current.Name,
			Message:   message,
			Timestamp: now,
			Payload: map[string]any{
				"before": prev.Online,
				"after":  current.Online,
			},
		})
	}
	if prev.State != current.State {
		message := fmt.Sprintf("Device %q turned off", current.Name)
		if current.State {
			message = fmt.Sprintf("Device %q turned on", current.Name)
		}
		out = append(out, domain.Event{
			ID:        uuid.NewString(),
			Category:  domain.EventCategoryDeviceStatus,
			Type:      "device_state_change",
			SubjectID: current.ID,
			Subject:   current.Name,
			Message:   message,
			Timestamp: now,
			Payload: map[string]any{
				"before": prev.State,
				"after":  current.State,
			},
		})
	}
	return out
}

func parseTimestamp(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return fallback
}
