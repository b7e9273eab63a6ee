package tuya

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryBody(field string, records any) map[string]any {
	return map[string]any{
		"header":  map[string]any{"code": "SUCCESS"},
		"payload": map[string]any{field: records},
	}
}

func TestDeviceStatusesQuery(t *testing.T) {
	upstream := newFakeUpstream(t)

	var envelope skillRequest
	upstream.skillHandler = func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		writeJSON(w, queryBody("devices", []map[string]any{
			{"id": "dev-1", "name": "Desk Lamp", "online": true, "state": false, "lastSeen": "2026-08-30T10:00:00Z"},
		}))
	}

	client := loginTestClient(t, upstream)
	statuses, err := client.DeviceStatuses(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "query", envelope.Header.Namespace)
	assert.Equal(t, QueryDeviceStatus, envelope.Header.Name)

	require.Len(t, statuses, 1)
	assert.Equal(t, "dev-1", statuses[0].ID)
	assert.True(t, statuses[0].Online)
	assert.False(t, statuses[0].State)
}

func TestSceneExecutionsQuery(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.skillHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, queryBody("executions", []map[string]any{
			{"id": "exec-1", "name": "Movie Night", "executedBy": "app", "timestamp": "2026-08-30T10:00:00Z"},
		}))
	}

	client := loginTestClient(t, upstream)
	executions, err := client.SceneExecutions(context.Background())
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, "exec-1", executions[0].ID)
	assert.Equal(t, "app", executions[0].ExecutedBy)
}

func TestAutomationEventsQuery(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.skillHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, queryBody("automations", []map[string]any{
			{"id": "auto-1", "name": "Night Mode", "trigger": "sunset", "lastTriggered": "2026-08-30T20:00:00Z"},
		}))
	}

	client := loginTestClient(t, upstream)
	events, err := client.AutomationEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sunset", events[0].Trigger)
}

func TestQueryMissingFieldYieldsEmpty(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.skillHandler = func(w http.ResponseWriter, r *http.Request) {
		writeHeaderCode(w, CodeSuccess)
	}

	client := loginTestClient(t, upstream)
	alerts, err := client.SystemAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestQueryTokenExpiredDropsSession(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.skillHandler = func(w http.ResponseWriter, r *http.Request) {
		writeHeaderCode(w, CodeTokenExpired)
	}

	client := loginTestClient(t, upstream)
	_, err := client.Notifications(context.Background())
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, client.Session())
}

func TestDeviceChangesQuery(t *testing.T) {
	upstream := newFakeUpstream(t)
	upstream.skillHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, queryBody("changes", []map[string]any{
			{"id": "chg-1", "deviceId": "dev-1", "deviceName": "Desk Lamp",
				"changeType": "property", "property": "brightness",
				"oldValue": float64(20), "newValue": float64(80),
				"timestamp": "2026-08-30T10:00:00Z", "source": "app"},
		}))
	}

	client := loginTestClient(t, upstream)
	changes, err := client.DeviceChanges(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "dev-1", changes[0].DeviceID)
	assert.Equal(t, "brightness", changes[0].Property)
}
