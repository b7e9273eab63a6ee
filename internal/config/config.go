package config

import (
	"errors"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level

	Tuya    TuyaConfig    `mapstructure:"tuya"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Control ControlConfig `mapstructure:"control"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Store   StoreConfig   `mapstructure:"store"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Rooms   RoomsConfig   `mapstructure:"rooms"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

type TuyaConfig struct {
	// BaseURL overrides the regional endpoint. Leave empty to derive it
	// from Region.
	BaseURL                    string   `mapstructure:"base_url"`
	Region                     string   `mapstructure:"region"`
	RequestTimeoutMillis       uint32   `mapstructure:"request_timeout_millis"`
	TokenRefreshMarginSeconds  uint32   `mapstructure:"token_refresh_margin_seconds"`
	TokenRefreshIntervalMillis uint32   `mapstructure:"token_refresh_interval_millis"`
	SceneKeywords              []string `mapstructure:"scene_keywords"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	KnownSetCap        int    `mapstructure:"known_set_cap"`
	AutomationSetCap   int    `mapstructure:"automation_set_cap"`
	EventLogCap        int    `mapstructure:"event_log_cap"`
}

type ControlConfig struct {
	CooldownMillis uint32 `mapstructure:"cooldown_millis"`
	MaxQueued      int    `mapstructure:"max_queued"`
}

type RetryConfig struct {
	MaxRetries      int    `mapstructure:"max_retries"`
	BaseDelayMillis uint32 `mapstructure:"base_delay_millis"`
}

type StoreConfig struct {
	// Path of the sqlite database file. Empty selects the in-memory
	// store.
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	BaseTopic string `mapstructure:"base_topic"`
}

type RoomsConfig struct {
	Names []string `mapstructure:"names"`
}

var validRegions = map[string]bool{
	"eu": true,
	"us": true,
	"cn": true,
}

// CheckRegion validates and canonicalizes an upstream region code.
func CheckRegion(region string) (string, error) {
	r := strings.ToLower(strings.TrimSpace(region))
	if !validRegions[r] {
		return "", errors.New("invalid region. must be one of eu, us, cn")
	}
	return r, nil
}

func DefaultSceneKeywords() []string {
	return []string{"scene", "cena", "automation", "automação"}
}

func DefaultRooms() []string {
	return []string{"Living Room", "Bedroom", "Kitchen", "Bathroom", "Office"}
}
