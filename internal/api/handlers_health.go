package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	version string
}

func NewHealthHandler(version string) HealthHandler {
	return HealthHandler{version: version}
}

func (h HealthHandler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}
