package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"smartlife2mqtt/internal/config"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RelayHandler forwards raw API calls to the regional upstream. The
// dashboard cannot talk to the upstream directly because it does not
// send CORS headers; everything under /api/homeassistant is passed
// through verbatim.
func (s *Server) RelayHandler(c echo.Context) error {
	region := c.QueryParam("region")
	if region == "" {
		region = "eu"
	}
	region, err := config.CheckRegion(region)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported region")
	}

	path := strings.TrimPrefix(c.Request().URL.Path, "/api/homeassistant")
	target := fmt.Sprintf("https://px1.tuya%s.com/homeassistant%s", region, path)

	query := c.Request().URL.Query()
	query.Del("region")
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	upstream, err := http.NewRequestWithContext(c.Request().Context(),
		c.Request().Method, target, c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid relay request")
	}
	if contentType := c.Request().Header.Get(echo.HeaderContentType); contentType != "" {
		upstream.Header.Set(echo.HeaderContentType, contentType)
	}

	s.logger.Debug("relaying request",
		zap.String("method", c.Request().Method),
		zap.String("target", target))

	resp, err := s.relayClient.Do(upstream)
	if err != nil {
		s.logger.Warn("relay failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]any{"error": "upstream request failed"})
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Stream(resp.StatusCode, contentType, io.LimitReader(resp.Body, 4<<20))
}
