package tuya

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const defaultSceneIcon = "/device_icons/scene.png"

// A scene whose name ends in "#" (optionally preceded by whitespace)
// is an automation in disguise.
var automationSuffix = regexp.MustCompile(`\s*#$`)

// Discover fetches the full upstream entry list, normalizes it and
// partitions it into devices and scenes/automations. The call is
// retry-wrapped; when the upstream dependent service is unavailable a
// previously cached result is served instead, marked FromCache.
func (c *Client) Discover(ctx context.Context) (*DiscoveryResult, error) {
	if c.sessions.Active() == nil {
		return nil, ErrNoActiveSession
	}
	result, err := Retry(ctx, c.retry, c.discoverOnce, c.cachedDiscovery())
	if err != nil {
		c.dropOnSessionLoss(err)
		return nil, fmt.Errorf("device discovery: %w", err)
	}
	return result, nil
}

// Scenes returns only the scene/automation partition of a discovery.
func (c *Client) Scenes(ctx context.Context) ([]Device, error) {
	result, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return result.ScenesAndAutomations, nil
}

func (c *Client) discoverOnce(ctx context.Context) (*DiscoveryResult, error) {
	token, err := c.sessions.AccessToken()
	if err != nil {
		return nil, err
	}
	decoded, raw, err := c.transport.Skill(ctx, "discovery", "Discovery", map[string]any{
		"accessToken": token,
	})
	if err == nil {
		err = EnsureSuccess(decoded)
	}
	if err != nil {
		return nil, err
	}

	var resp discoveryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	result := c.partition(resp.Payload.Devices)
	if err := c.store.Set(storeKeyDiscovery, result); err != nil {
		c.logger.Warn("could not cache discovery result", zap.Error(err))
	}
	c.logger.Info("discovery completed",
		zap.Int("devices", len(result.Devices)),
		zap.Int("scenes", len(result.ScenesAndAutomations)))
	return result, nil
}

// partition keeps the upstream order within each group.
func (c *Client) partition(entries []rawDevice) *DiscoveryResult {
	result := &DiscoveryResult{
		Devices:              []Device{},
		ScenesAndAutomations: []Device{},
	}
	for _, entry := range entries {
		device := c.normalizeEntry(entry)
		if device.Type == DeviceTypeScene || device.Type == DeviceTypeAutomation || c.isSceneLike(device.Name) {
			result.ScenesAndAutomations = append(result.ScenesAndAutomations, device)
		} else {
			result.Devices = append(result.Devices, device)
		}
	}
	return result
}

func (c *Client) normalizeEntry(raw rawDevice) Device {
	name := c.decodeEscapedName(raw.Name)
	devType := DeviceType(raw.DevType)
	if devType == DeviceTypeScene && automationSuffix.MatchString(name) {
		devType = DeviceTypeAutomation
		name = automationSuffix.ReplaceAllString(name, "")
	}

	device := Device{
		ID:   raw.ID,
		Name: name,
		Type: devType,
		Icon: raw.Icon,
		Data: raw.Data,
	}
	if (devType == DeviceTypeScene || devType == DeviceTypeAutomation) && device.Icon == "" {
		device.Icon = defaultSceneIcon
	}
	if raw.Data != nil {
		device.Brightness = extractBrightness(raw.Data)
		device.Color = extractColor(raw.Data)
		device.ColorTemperature = extractColorTemperature(raw.Data)
		device.WorkMode = extractWorkMode(raw.Data)
	}
	return device
}

// decodeEscapedName undoes the extra JSON escaping some firmwares
// apply to entry names. A name that does not survive decoding is kept
// as-is.
func (c *Client) decodeEscapedName(name string) string {
	if !strings.Contains(name, "\\") {
		return name
	}
	decoded, err := strconv.Unquote(`"` + name + `"`)
	if err != nil {
		c.logger.Debug("could not decode entry name", zap.String("name", name))
		return name
	}
	return decoded
}

func (c *Client) isSceneLike(name string) bool {
	lowered := strings.ToLower(name)
	for _, keyword := range c.sceneKeywords {
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// cachedDiscovery loads the last successful discovery for use as a
// retry fallback, or nil when nothing was cached yet.
func (c *Client) cachedDiscovery() **DiscoveryResult {
	var cached DiscoveryResult
	ok, err := c.store.Get(storeKeyDiscovery, &cached)
	if err != nil {
		c.logger.Warn("could not load cached discovery result", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	cached.FromCache = true
	ptr := &cached
	return &ptr
}
