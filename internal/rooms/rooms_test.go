package rooms

import (
	"testing"

	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/kvstore"
	"smartlife2mqtt/internal/tuya"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService() *Service {
	return NewService(config.RoomsConfig{}, kvstore.NewMemoryStore(), zap.NewNop())
}

func TestRoomsDefaultsWhenNothingSaved(t *testing.T) {
	svc := newTestService()

	rooms, err := svc.Rooms()
	require.NoError(t, err)
	require.NotEmpty(t, rooms)
	assert.Equal(t, "living_room", rooms[0].ID)
	assert.Equal(t, "Living Room", rooms[0].Name)
}

func TestSaveRoomsGeneratesMissingIDs(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.SaveRooms([]Room{
		{Name: "Guest Room"},
		{ID: "den", Name: "Den"},
	}))

	rooms, err := svc.Rooms()
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "guest_room", rooms[0].ID)
	assert.Equal(t, "den", rooms[1].ID)
}

func TestAssignRejectsUnknownRoom(t *testing.T) {
	svc := newTestService()
	assert.ErrorIs(t, svc.Assign("dev-1", "nonexistent"), ErrUnknownRoom)
}

func TestAssignAndUnassign(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.Assign("dev-1", "kitchen"))
	assignments, err := svc.Assignments()
	require.NoError(t, err)
	assert.Equal(t, "kitchen", assignments["dev-1"])

	// empty room removes the assignment
	require.NoError(t, svc.Assign("dev-1", ""))
	assignments, err = svc.Assignments()
	require.NoError(t, err)
	assert.NotContains(t, assignments, "dev-1")
}

func TestOrganizeDevices(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.Assign("dev-1", "kitchen"))

	devices := []tuya.Device{
		{ID: "dev-1", Name: "Kettle"},
		{ID: "dev-2", Name: "Desk Lamp"},
	}
	organized, err := svc.OrganizeDevices(devices)
	require.NoError(t, err)

	require.Len(t, organized["kitchen"], 1)
	assert.Equal(t, "dev-1", organized["kitchen"][0].ID)
	require.Len(t, organized[UnassignedRoomID], 1)
	assert.Equal(t, "dev-2", organized[UnassignedRoomID][0].ID)
}
