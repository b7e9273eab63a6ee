package tuya

import "time"

// Token is a normalized access token. Expires is an absolute unix
// timestamp computed from the relative expires_in at the moment the
// token was received.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Expires      int64  `json:"expires"`
}

func (t Token) ValidAt(now time.Time) bool {
	return t.AccessToken != "" && t.Expires > now.Unix()
}

// Session is an authenticated account session bound to a region.
type Session struct {
	Region string `json:"region"`
	Token  Token  `json:"token"`
}

type DeviceType string

const (
	DeviceTypeScene      DeviceType = "scene"
	DeviceTypeAutomation DeviceType = "automation"
)

// Capability is a raw vendor data field resolved through an ordered
// list of known key aliases. Key records which alias matched.
type Capability struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// BrightnessCapability carries brightness normalized to 0-100. Raw
// keeps the unscaled vendor value.
type BrightnessCapability struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
	Raw   any    `json:"raw"`
}

// HSVColor is a decoded vendor color. Hue 0-360, Saturation and Value
// 0-100.
type HSVColor struct {
	Hue        int `json:"hue"`
	Saturation int `json:"saturation"`
	Value      int `json:"value"`
}

// ColorCapability keeps the raw vendor color value plus the decoded
// HSV when the value uses the packed 12-hex-digit encoding.
type ColorCapability struct {
	Key    string    `json:"key"`
	Value  any       `json:"value"`
	Parsed *HSVColor `json:"parsed,omitempty"`
}

// Device is a normalized upstream entry: a physical device, a scene or
// an automation.
type Device struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Type             DeviceType            `json:"type"`
	Icon             string                `json:"icon,omitempty"`
	Data             map[string]any        `json:"data,omitempty"`
	Brightness       *BrightnessCapability `json:"brightness,omitempty"`
	Color            *ColorCapability      `json:"color,omitempty"`
	ColorTemperature *Capability           `json:"color_temperature,omitempty"`
	WorkMode         *Capability           `json:"work_mode,omitempty"`
}

// DiscoveryResult partitions upstream entries into controllable
// devices and scene-like entries. FromCache marks a CACHED_DATA
// fallback served after the upstream stayed unavailable.
type DiscoveryResult struct {
	Devices              []Device `json:"devices"`
	ScenesAndAutomations []Device `json:"scenes_and_automations"`
	FromCache            bool     `json:"from_cache"`
}

// DeviceStatus is one entry of the deviceStatus event query.
type DeviceStatus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	State    bool   `json:"state"`
	LastSeen string `json:"lastSeen"`
}

type SceneExecution struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ExecutedBy string `json:"executedBy"`
	Timestamp  string `json:"timestamp"`
	Success    *bool  `json:"success,omitempty"`
}

type AutomationEvent struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Trigger       string `json:"trigger"`
	LastTriggered string `json:"lastTriggered"`
}

type SystemAlert struct {
	ID           string `json:"id"`
	Level        string `json:"level"`
	Message      string `json:"message"`
	Category     string `json:"category"`
	Timestamp    string `json:"timestamp"`
	Acknowledged bool   `json:"acknowledged"`
}

type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

type DeviceChange struct {
	ID         string `json:"id"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	ChangeType string `json:"changeType"`
	Property   string `json:"property"`
	OldValue   any    `json:"oldValue"`
	NewValue   any    `json:"newValue"`
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
}

type envelopeHeader struct {
	PayloadVersion int    `json:"payloadVersion"`
	Namespace      string `json:"namespace"`
	Name           string `json:"name"`
}

type skillRequest struct {
	Header  envelopeHeader `json:"header"`
	Payload map[string]any `json:"payload"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type rawDevice struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	DevType string         `json:"dev_type"`
	Icon    string         `json:"icon"`
	Data    map[string]any `json:"data"`
}

type discoveryResponse struct {
	Payload struct {
		Devices []rawDevice `json:"devices"`
	} `json:"payload"`
}

func normalizeToken(resp tokenResponse, now time.Time) Token {
	return Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		Expires:      now.Unix() + resp.ExpiresIn,
	}
}
