package tuya

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event-category query names of the /skill query namespace, with the
// payload field each response carries its records in.
const (
	QueryDeviceStatus     = "deviceStatus"
	QuerySceneExecutions  = "sceneExecutions"
	QueryAutomationEvents = "automationEvents"
	QuerySystemAlerts     = "systemAlerts"
	QueryNotifications    = "notifications"
	QueryDeviceChanges    = "deviceChanges"
)

func (c *Client) DeviceStatuses(ctx context.Context) ([]DeviceStatus, error) {
	return queryCategory[DeviceStatus](ctx, c, QueryDeviceStatus, "devices")
}

func (c *Client) SceneExecutions(ctx context.Context) ([]SceneExecution, error) {
	return queryCategory[SceneExecution](ctx, c, QuerySceneExecutions, "executions")
}

func (c *Client) AutomationEvents(ctx context.Context) ([]AutomationEvent, error) {
	return queryCategory[AutomationEvent](ctx, c, QueryAutomationEvents, "automations")
}

func (c *Client) SystemAlerts(ctx context.Context) ([]SystemAlert, error) {
	return queryCategory[SystemAlert](ctx, c, QuerySystemAlerts, "alerts")
}

func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	return queryCategory[Notification](ctx, c, QueryNotifications, "notifications")
}

func (c *Client) DeviceChanges(ctx context.Context) ([]DeviceChange, error) {
	return queryCategory[DeviceChange](ctx, c, QueryDeviceChanges, "changes")
}

func queryCategory[T any](ctx context.Context, c *Client, name, field string) ([]T, error) {
	token, err := c.sessions.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	decoded, raw, err := c.transport.Skill(ctx, "query", name, map[string]any{
		"accessToken": token,
	})
	if err == nil {
		err = EnsureSuccess(decoded)
	}
	if err != nil {
		c.dropOnSessionLoss(err)
		return nil, fmt.Errorf("query %s: %w", name, err)
	}

	var resp struct {
		Payload map[string]json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", name, ErrMalformedResponse)
	}
	records, ok := resp.Payload[field]
	if !ok {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(records, &out); err != nil {
		return nil, fmt.Errorf("query %s: %w", name, ErrMalformedResponse)
	}
	return out, nil
}
