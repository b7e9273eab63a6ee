package tuya

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Control actions understood by the upstream /skill control namespace.
const (
	ActionTurnOnOff           = "turnOnOff"
	ActionBrightnessSet       = "brightnessSet"
	ActionColorSet            = "colorSet"
	ActionColorTemperatureSet = "colorTemperatureSet"
)

// DeviceControl issues a single control call. The payload carries the
// access token, the device id and one optional field. Booleans sent to
// turnOnOff are coerced to 1/0 as the upstream expects.
func (c *Client) DeviceControl(ctx context.Context, deviceID, action, fieldName string, fieldValue any) error {
	token, err := c.sessions.AccessToken()
	if err != nil {
		return fmt.Errorf("control %s on %s: %w", action, deviceID, err)
	}

	payload := map[string]any{
		"accessToken": token,
		"devId":       deviceID,
	}
	if fieldName != "" {
		if action == ActionTurnOnOff {
			if on, ok := fieldValue.(bool); ok {
				fieldValue = boolToInt(on)
			}
		}
		payload[fieldName] = fieldValue
	}

	decoded, _, err := c.transport.Skill(ctx, "control", action, payload)
	if err == nil {
		err = EnsureSuccess(decoded)
	}
	if err != nil {
		c.dropOnSessionLoss(err)
		return fmt.Errorf("control %s on %s: %w", action, deviceID, err)
	}
	c.logger.Debug("control executed",
		zap.String("device", deviceID),
		zap.String("action", action))
	return nil
}

// TurnOnOff switches a device (or triggers a scene) on or off.
func (c *Client) TurnOnOff(ctx context.Context, deviceID string, on bool) error {
	return c.DeviceControl(ctx, deviceID, ActionTurnOnOff, "value", on)
}

// SetBrightness takes a 0-100 percentage and rescales it to the 0-1000
// range of the upstream.
func (c *Client) SetBrightness(ctx context.Context, deviceID string, percent int) error {
	value := int(math.Round(float64(clamp(percent, 0, 100)) / 100 * 1000))
	return c.DeviceControl(ctx, deviceID, ActionBrightnessSet, "value", value)
}

// SetColor sends an HSV color in the packed 12-hex-digit encoding.
func (c *Client) SetColor(ctx context.Context, deviceID string, color HSVColor) error {
	return c.DeviceControl(ctx, deviceID, ActionColorSet, "color", EncodeColorValue(color))
}

func (c *Client) SetColorTemperature(ctx context.Context, deviceID string, value int) error {
	return c.DeviceControl(ctx, deviceID, ActionColorTemperatureSet, "value", value)
}

// TriggerScene executes a scene. Scenes trigger through the same
// turn-on call as devices.
func (c *Client) TriggerScene(ctx context.Context, sceneID string) error {
	return c.TurnOnOff(ctx, sceneID, true)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
