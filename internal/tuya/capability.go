package tuya

import (
	"fmt"
	"math"
	"strconv"
)

// Vendor data field aliases, probed in order. The first key present in
// the device data wins.
var (
	brightnessKeys       = []string{"bright_value", "bright_value_1", "brightness", "dimmer"}
	colorKeys            = []string{"colour_data", "color_data", "colour", "color", "hsv", "rgb"}
	colorTemperatureKeys = []string{"temp_value", "color_temp", "colour_temp", "temperature"}
	workModeKeys         = []string{"work_mode", "mode", "scene_mode"}
)

func extractBrightness(data map[string]any) *BrightnessCapability {
	for _, key := range brightnessKeys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		value, ok := asInt(raw)
		if !ok {
			return nil
		}
		// Some firmwares report 0-1000 instead of 0-100.
		if value > 100 {
			value = int(math.Round(float64(value) / 1000 * 100))
		}
		if value < 0 {
			value = 0
		}
		if value > 100 {
			value = 100
		}
		return &BrightnessCapability{Key: key, Value: value, Raw: raw}
	}
	return nil
}

func extractColor(data map[string]any) *ColorCapability {
	for _, key := range colorKeys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		cap := &ColorCapability{Key: key, Value: raw}
		if s, ok := raw.(string); ok {
			cap.Parsed = ParseColorValue(s)
		}
		return cap
	}
	return nil
}

func extractColorTemperature(data map[string]any) *Capability {
	return extractFirst(data, colorTemperatureKeys)
}

func extractWorkMode(data map[string]any) *Capability {
	return extractFirst(data, workModeKeys)
}

func extractFirst(data map[string]any, keys []string) *Capability {
	for _, key := range keys {
		if raw, ok := data[key]; ok {
			return &Capability{Key: key, Value: raw}
		}
	}
	return nil
}

// ParseColorValue decodes the packed vendor color encoding: three
// 4-hex-digit fields (hue, saturation, value) each scaled over 0xFFFF.
// Returns nil for values that do not use the encoding.
func ParseColorValue(value string) *HSVColor {
	if len(value) < 12 {
		return nil
	}
	h, err1 := strconv.ParseUint(value[0:4], 16, 32)
	s, err2 := strconv.ParseUint(value[4:8], 16, 32)
	v, err3 := strconv.ParseUint(value[8:12], 16, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	return &HSVColor{
		Hue:        int(math.Round(float64(h) / 65535 * 360)),
		Saturation: int(math.Round(float64(s) / 65535 * 100)),
		Value:      int(math.Round(float64(v) / 65535 * 100)),
	}
}

// EncodeColorValue packs HSV into the 12-hex-digit vendor encoding.
// Hue 0-360, saturation and value 0-100.
func EncodeColorValue(color HSVColor) string {
	h := uint16(math.Round(float64(clamp(color.Hue, 0, 360)) / 360 * 65535))
	s := uint16(math.Round(float64(clamp(color.Saturation, 0, 100)) / 100 * 65535))
	v := uint16(math.Round(float64(clamp(color.Value, 0, 100)) / 100 * 65535))
	return fmt.Sprintf("%04x%04x%04x", h, s, v)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
