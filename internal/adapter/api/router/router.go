package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
	"classifieds/internal/observability"
)

func Setup(e *echo.Echo, h *handler.Handlers, authMiddleware *middleware.AuthMiddleware, roleMiddleware *middleware.RoleMiddleware) {
	SetupAuthRouter(e, h.Auth, authMiddleware)
	SetupUserRouter(e, h.User, authMiddleware)
	SetupPostRouter(e, h.Post, authMiddleware)
	SetupCatalogRouter(e, h.Catalog)
	SetupConversationRouter(e, h.Conversation, authMiddleware)
	SetupNotificationRouter(e, h.Notification, authMiddleware)
	SetupAdminRouter(e, h.Admin, authMiddleware, roleMiddleware)
	SetupWebSocketRouter(e, h.WebSocket, authMiddleware)
	SetupHealthRouter(e, h.Health)
}

// SetupMetricsRouter exposes the Prometheus scrape endpoint.
func SetupMetricsRouter(e *echo.Echo) {
	e.GET("/metrics", observability.MetricsHandler())
}

// SetupSetupModeRouter answers every path with the setup instructions.
func SetupSetupModeRouter(e *echo.Echo, setupHandler *handler.SetupHandler) {
	e.Any("/", setupHandler.Instructions)
	e.Any("/*", setupHandler.Instructions)
}
