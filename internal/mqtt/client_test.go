package mqtt

import (
	"testing"

	"smartlife2mqtt/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestSceneCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/scene/my_scene-1/set"
	r := sceneCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "my_scene-1", "scene extract")
}

func TestSceneCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/scene/my_scene/state"
	r := sceneCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	cfg := &config.Config{}
	cfg.MQTT.BaseTopic = "smartlife"
	client := CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)

	assert.Equal("smartlife/bridge/state", client.BridgeStateTopic())
	assert.Equal("smartlife/scene/scn-1/set", client.SceneCommandTopic("scn-1"))
	assert.Equal("smartlife/event/scene_execution/scn-1", client.EventTopic("scene_execution", "scn-1"))
}

func TestEventTopicSanitizesSubject(t *testing.T) {

	assert := assert.New(t)

	cfg := &config.Config{}
	cfg.MQTT.BaseTopic = "smartlife"
	client := CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)

	assert.Equal("smartlife/event/alert/living_room_lamp", client.EventTopic("alert", "living room/lamp"))
}
