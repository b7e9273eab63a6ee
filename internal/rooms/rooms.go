// Package rooms keeps the dashboard's room list and the device-room
// assignments. Rooms are purely client-side: the upstream API has no
// notion of them.
package rooms

import (
	"errors"
	"strings"

	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/kvstore"
	"smartlife2mqtt/internal/tuya"

	"go.uber.org/zap"
)

const (
	storeKeyRooms       = "rooms"
	storeKeyAssignments = "room_assignments"

	// UnassignedRoomID groups devices without an explicit room.
	UnassignedRoomID = "unassigned"
)

var ErrUnknownRoom = errors.New("unknown room")

type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Service struct {
	store    kvstore.Store
	defaults []string
	logger   *zap.Logger
}

func NewService(cfg config.RoomsConfig, store kvstore.Store, logger *zap.Logger) *Service {
	defaults := cfg.Names
	if len(defaults) == 0 {
		defaults = config.DefaultRooms()
	}
	return &Service{
		store:    store,
		defaults: defaults,
		logger:   logger.With(zap.String("component", "rooms")),
	}
}

// Rooms returns the saved room list, falling back to the configured
// defaults when nothing was saved yet.
func (s *Service) Rooms() ([]Room, error) {
	var saved []Room
	ok, err := s.store.Get(storeKeyRooms, &saved)
	if err != nil {
		return nil, err
	}
	if ok {
		return saved, nil
	}
	rooms := make([]Room, 0, len(s.defaults))
	for _, name := range s.defaults {
		rooms = append(rooms, Room{ID: slug(name), Name: name})
	}
	return rooms, nil
}

func (s *Service) SaveRooms(rooms []Room) error {
	for i := range rooms {
		if rooms[i].ID == "" {
			rooms[i].ID = slug(rooms[i].Name)
		}
	}
	return s.store.Set(storeKeyRooms, rooms)
}

// Assign binds a device to a room. An empty roomID removes the
// assignment.
func (s *Service) Assign(deviceID, roomID string) error {
	if roomID != "" && roomID != UnassignedRoomID {
		rooms, err := s.Rooms()
		if err != nil {
			return err
		}
		known := false
		for _, room := range rooms {
			if room.ID == roomID {
				known = true
				break
			}
		}
		if !known {
			return ErrUnknownRoom
		}
	}

	assignments, err := s.Assignments()
	if err != nil {
		return err
	}
	if roomID == "" {
		delete(assignments, deviceID)
	} else {
		assignments[deviceID] = roomID
	}
	return s.store.Set(storeKeyAssignments, assignments)
}

func (s *Service) Assignments() (map[string]string, error) {
	assignments := make(map[string]string)
	if _, err := s.store.Get(storeKeyAssignments, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// OrganizeDevices groups discovered devices by their assigned room.
func (s *Service) OrganizeDevices(devices []tuya.Device) (map[string][]tuya.Device, error) {
	assignments, err := s.Assignments()
	if err != nil {
		return nil, err
	}
	organized := make(map[string][]tuya.Device)
	for _, device := range devices {
		roomID, ok := assignments[device.ID]
		if !ok || roomID == "" {
			roomID = UnassignedRoomID
		}
		organized[roomID] = append(organized[roomID], device)
	}
	return organized, nil
}

func slug(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(lowered, " ", "_")
}
