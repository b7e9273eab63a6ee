package tuya

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBrightnessAliases(t *testing.T) {
	b := extractBrightness(map[string]any{"bright_value": float64(80)})
	require.NotNil(t, b)
	assert.Equal(t, "bright_value", b.Key)
	assert.Equal(t, 80, b.Value)

	b = extractBrightness(map[string]any{"dimmer": float64(50)})
	require.NotNil(t, b)
	assert.Equal(t, "dimmer", b.Key)

	assert.Nil(t, extractBrightness(map[string]any{"state": true}))
}

func TestExtractBrightnessFirstAliasWins(t *testing.T) {
	b := extractBrightness(map[string]any{
		"brightness":   float64(10),
		"bright_value": float64(90),
	})
	require.NotNil(t, b)
	assert.Equal(t, "bright_value", b.Key)
	assert.Equal(t, 90, b.Value)
}

func TestExtractBrightnessRescalesThousandScale(t *testing.T) {
	// firmwares reporting 0-1000 get rescaled to 0-100
	b := extractBrightness(map[string]any{"bright_value": float64(500)})
	require.NotNil(t, b)
	assert.Equal(t, 50, b.Value)
	assert.Equal(t, float64(500), b.Raw)

	b = extractBrightness(map[string]any{"bright_value": float64(1000)})
	require.NotNil(t, b)
	assert.Equal(t, 100, b.Value)
}

func TestExtractBrightnessStringValue(t *testing.T) {
	b := extractBrightness(map[string]any{"brightness": "75"})
	require.NotNil(t, b)
	assert.Equal(t, 75, b.Value)
}

func TestExtractColorParsesPackedEncoding(t *testing.T) {
	c := extractColor(map[string]any{"colour_data": "00b4e147ffff"})
	require.NotNil(t, c)
	assert.Equal(t, "colour_data", c.Key)
	require.NotNil(t, c.Parsed)
	assert.Equal(t, 1, c.Parsed.Hue)

	// non-string color values are kept raw without a parse
	c = extractColor(map[string]any{"hsv": map[string]any{"h": float64(10)}})
	require.NotNil(t, c)
	assert.Nil(t, c.Parsed)
}

func TestParseColorValueRejectsGarbage(t *testing.T) {
	assert.Nil(t, ParseColorValue("short"))
	assert.Nil(t, ParseColorValue("zzzzzzzzzzzz"))
}

func TestColorValueRoundTrip(t *testing.T) {
	for _, color := range []HSVColor{
		{Hue: 0, Saturation: 0, Value: 0},
		{Hue: 360, Saturation: 100, Value: 100},
		{Hue: 180, Saturation: 50, Value: 75},
		{Hue: 42, Saturation: 13, Value: 99},
	} {
		decoded := ParseColorValue(EncodeColorValue(color))
		require.NotNil(t, decoded)
		// scaling over 0xFFFF loses at most one unit per channel
		assert.InDelta(t, color.Hue, decoded.Hue, 1)
		assert.InDelta(t, color.Saturation, decoded.Saturation, 1)
		assert.InDelta(t, color.Value, decoded.Value, 1)
	}
}

func TestEncodeColorValueClamps(t *testing.T) {
	assert.Equal(t, EncodeColorValue(HSVColor{Hue: 400, Saturation: 150, Value: -5}),
		EncodeColorValue(HSVColor{Hue: 360, Saturation: 100, Value: 0}))
}

func TestExtractColorTemperatureAndWorkMode(t *testing.T) {
	ct := extractColorTemperature(map[string]any{"temp_value": float64(500)})
	require.NotNil(t, ct)
	assert.Equal(t, "temp_value", ct.Key)

	wm := extractWorkMode(map[string]any{"work_mode": "colour"})
	require.NotNil(t, wm)
	assert.Equal(t, "colour", wm.Value)

	assert.Nil(t, extractWorkMode(map[string]any{"state": true}))
}
