package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"smartlife2mqtt/internal/core/domain"
	"smartlife2mqtt/internal/rooms"
	"smartlife2mqtt/internal/tuya"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Control submissions can wait behind a full queue plus cooldowns, and
// discovery behind the whole retry schedule.
const (
	controlRequestTimeout   = 3 * time.Minute
	discoveryRequestTimeout = 4 * time.Minute
	monitorRequestTimeout   = 10 * time.Second
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.HTTPErrorHandler = corsErrorHandler(e)

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/version", s.VersionHandler)

	api := e.Group("/api")
	api.POST("/login", s.LoginHandler)
	api.POST("/logout", s.LogoutHandler)
	api.GET("/session", s.SessionHandler)
	api.POST("/session/refresh", s.RefreshSessionHandler)

	api.GET("/devices", s.DevicesHandler)
	api.GET("/scenes", s.ScenesHandler)

	api.POST("/control", s.ControlHandler)
	api.POST("/devices/:id/power", s.PowerHandler)
	api.POST("/devices/:id/brightness", s.BrightnessHandler)
	api.POST("/devices/:id/color", s.ColorHandler)
	api.POST("/devices/:id/temperature", s.ColorTemperatureHandler)
	api.POST("/scenes/:id/trigger", s.TriggerSceneHandler)

	api.GET("/queue/:deviceId", s.QueueStatusHandler)
	api.DELETE("/queue/:deviceId", s.ClearQueueHandler)

	api.POST("/monitor/start", s.StartMonitorHandler)
	api.POST("/monitor/stop", s.StopMonitorHandler)
	api.GET("/events", s.RecentEventsHandler)

	api.GET("/rooms", s.RoomsHandler)
	api.PUT("/rooms", s.SaveRoomsHandler)
	api.POST("/rooms/assign", s.AssignRoomHandler)
	api.GET("/rooms/devices", s.OrganizedDevicesHandler)

	api.Any("/homeassistant*", s.RelayHandler)

	return e
}

// corsErrorHandler keeps the permissive CORS headers on error
// responses too; the browser otherwise hides the actual error from
// the dashboard.
func corsErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Header().Get(echo.HeaderAccessControlAllowOrigin) == "" {
			c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.requestMaster(domain.ActorHealthRequest{}, 10*time.Second)
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) VersionHandler(c echo.Context) error {
	return c.String(http.StatusOK, versioninfo.Short())
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Region   string `json:"region"`
}

func (s *Server) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}
	session, err := s.client.Login(c.Request().Context(), req.Username, req.Password, req.Region)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, sessionSummary(session))
}

func (s *Server) LogoutHandler(c echo.Context) error {
	s.client.Logout()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) SessionHandler(c echo.Context) error {
	session := s.client.Session()
	if session == nil {
		return s.errorJSON(c, tuya.ErrNoActiveSession)
	}
	return c.JSON(http.StatusOK, sessionSummary(session))
}

func (s *Server) RefreshSessionHandler(c echo.Context) error {
	session, err := s.client.Refresh(c.Request().Context())
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, sessionSummary(session))
}

func sessionSummary(session *tuya.Session) map[string]any {
	return map[string]any{
		"region":  session.Region,
		"expires": session.Token.Expires,
	}
}

func (s *Server) DevicesHandler(c echo.Context) error {
	res, err := s.requestMaster(domain.DiscoverDevicesRequest{}, discoveryRequestTimeout)
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.DiscoverDevicesResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if resp.HasResponseError() {
		return s.errorJSON(c, resp.GetResponseError())
	}
	return c.JSON(http.StatusOK, resp.Result)
}

func (s *Server) ScenesHandler(c echo.Context) error {
	scenes, err := s.client.Scenes(c.Request().Context())
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"scenes": scenes})
}

type controlRequest struct {
	DeviceID   string `json:"device_id"`
	Action     string `json:"action"`
	FieldName  string `json:"field_name"`
	FieldValue any    `json:"field_value"`
}

func (s *Server) ControlHandler(c echo.Context) error {
	var req controlRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DeviceID == "" || req.Action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "device_id and action are required")
	}
	if req.FieldName == "" {
		req.FieldName = "value"
	}
	return s.submitControl(c, domain.SubmitControlRequest{
		DeviceID:   req.DeviceID,
		Action:     req.Action,
		FieldName:  req.FieldName,
		FieldValue: req.FieldValue,
	})
}

type powerRequest struct {
	On bool `json:"on"`
}

func (s *Server) PowerHandler(c echo.Context) error {
	var req powerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.submitControl(c, domain.SubmitControlRequest{
		DeviceID:   c.Param("id"),
		Action:     tuya.ActionTurnOnOff,
		FieldName:  "value",
		FieldValue: req.On,
	})
}

type brightnessRequest struct {
	Percent int `json:"percent"`
}

func (s *Server) BrightnessHandler(c echo.Context) error {
	var req brightnessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	percent := req.Percent
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return s.submitControl(c, domain.SubmitControlRequest{
		DeviceID:   c.Param("id"),
		Action:     tuya.ActionBrightnessSet,
		FieldName:  "value",
		FieldValue: percent * 10,
	})
}

func (s *Server) ColorHandler(c echo.Context) error {
	var req tuya.HSVColor
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.submitControl(c, domain.SubmitControlRequest{
		DeviceID:   c.Param("id"),
		Action:     tuya.ActionColorSet,
		FieldName:  "color",
		FieldValue: tuya.EncodeColorValue(req),
	})
}

type colorTemperatureRequest struct {
	Value int `json:"value"`
}

func (s *Server) ColorTemperatureHandler(c echo.Context) error {
	var req colorTemperatureRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.submitControl(c, domain.SubmitControlRequest{
		DeviceID:   c.Param("id"),
		Action:     tuya.ActionColorTemperatureSet,
		FieldName:  "value",
		FieldValue: req.Value,
	})
}

func (s *Server) TriggerSceneHandler(c echo.Context) error {
	return s.submitControl(c, domain.SubmitControlRequest{
		DeviceID:   c.Param("id"),
		Action:     tuya.ActionTurnOnOff,
		FieldName:  "value",
		FieldValue: true,
	})
}

func (s *Server) submitControl(c echo.Context, req domain.SubmitControlRequest) error {
	res, err := s.requestMaster(req, controlRequestTimeout)
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.SubmitControlResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if resp.HasResponseError() {
		return s.errorJSON(c, resp.GetResponseError())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entry_id":  resp.EntryID,
		"device_id": resp.DeviceID,
	})
}

func (s *Server) QueueStatusHandler(c echo.Context) error {
	res, err := s.requestMaster(domain.ControlQueueStatusRequest{DeviceID: c.Param("deviceId")}, monitorRequestTimeout)
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.ControlQueueStatusResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"device_id":              resp.DeviceID,
		"queued_count":           resp.QueuedCount,
		"in_cooldown":            resp.InCooldown,
		"cooldown_remaining_ms":  resp.CooldownRemaining.Milliseconds(),
		"can_accept_new_control": resp.CanAcceptNewControl,
	})
}

func (s *Server) ClearQueueHandler(c echo.Context) error {
	res, err := s.requestMaster(domain.ClearControlQueueRequest{DeviceID: c.Param("deviceId")}, monitorRequestTimeout)
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.ClearControlQueueResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"device_id": resp.DeviceID,
		"cleared":   resp.Cleared,
	})
}

func (s *Server) StartMonitorHandler(c echo.Context) error {
	res, err := s.requestMaster(domain.StartMonitorRequest{}, monitorRequestTimeout)
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.StartMonitorResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"running":         true,
		"already_running": resp.AlreadyRunning,
	})
}

func (s *Server) StopMonitorHandler(c echo.Context) error {
	res, err := s.requestMaster(domain.StopMonitorRequest{}, monitorRequestTimeout)
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.StopMonitorResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"running":     false,
		"was_running": resp.WasRunning,
	})
}

func (s *Server) RecentEventsHandler(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	res, err := s.requestMaster(domain.GetRecentEventsRequest{Limit: limit}, monitorRequestTimeout)
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.GetRecentEventsResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	return c.JSON(http.StatusOK, map[string]any{"events": resp.Events})
}

func (s *Server) RoomsHandler(c echo.Context) error {
	list, err := s.rooms.Rooms()
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"rooms": list})
}

type saveRoomsRequest struct {
	Rooms []rooms.Room `json:"rooms"`
}

func (s *Server) SaveRoomsHandler(c echo.Context) error {
	var req saveRoomsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.rooms.SaveRooms(req.Rooms); err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"rooms": req.Rooms})
}

type assignRoomRequest struct {
	DeviceID string `json:"device_id"`
	RoomID   string `json:"room_id"`
}

func (s *Server) AssignRoomHandler(c echo.Context) error {
	var req assignRoomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DeviceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "device_id is required")
	}
	if err := s.rooms.Assign(req.DeviceID, req.RoomID); err != nil {
		if errors.Is(err, rooms.ErrUnknownRoom) {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown room")
		}
		return s.errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) OrganizedDevicesHandler(c echo.Context) error {
	result, err := s.client.Discover(c.Request().Context())
	if err != nil {
		return s.errorJSON(c, err)
	}
	organized, err := s.rooms.OrganizeDevices(result.Devices)
	if err != nil {
		return s.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"rooms":      organized,
		"from_cache": result.FromCache,
	})
}

func (s *Server) requestMaster(msg any, timeout time.Duration) (any, error) {
	return s.rootContext.RequestFuture(s.masterActor, msg, timeout).Result()
}

func (s *Server) errorJSON(c echo.Context, err error) error {
	return c.JSON(statusForError(err), map[string]any{"error": tuya.UserMessage(err)})
}

func statusForError(err error) int {
	var cooldown *tuya.CooldownError
	var apiErr *tuya.APIError
	var upstreamErr *tuya.UpstreamError
	switch {
	case errors.Is(err, tuya.ErrNoActiveSession),
		errors.Is(err, tuya.ErrAuthenticationFailed),
		errors.Is(err, tuya.ErrTokenExpired),
		errors.Is(err, tuya.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.As(err, &cooldown),
		errors.Is(err, tuya.ErrRateLimited),
		errors.Is(err, tuya.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, tuya.ErrServiceUnavailable),
		errors.Is(err, tuya.ErrDependentServiceUnavailable),
		errors.Is(err, tuya.ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr), errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
