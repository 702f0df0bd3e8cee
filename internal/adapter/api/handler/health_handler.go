package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by the identity provider client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ViewCounter reports how many conversation views are live.
type ViewCounter interface {
	Len() int
}

type HealthHandler struct {
	identity Pinger
	views    ViewCounter
}

func NewHealthHandler(identity Pinger, views ViewCounter) *HealthHandler {
	return &HealthHandler{
		identity: identity,
		views:    views,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status": "Server is running",
		"time":   time.Now().Format(time.RFC3339),
	}
	if h.views != nil {
		body["active_views"] = h.views.Len()
	}
	return c.JSON(http.StatusOK, body)
}

func (h *HealthHandler) CheckFirebaseHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.identity.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "Firebase Auth connection failed",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Firebase Auth connected successfully",
	})
}
