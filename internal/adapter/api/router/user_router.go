package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
)

func SetupUserRouter(e *echo.Echo, userHandler *handler.UserHandler, authMiddleware *middleware.AuthMiddleware) {
	profiles := e.Group("/v1/profiles")

	// Registered before /:id so "me" is not read as an id.
	profiles.PATCH("/me", userHandler.UpdateMyProfile, authMiddleware.Authenticate)
	profiles.GET("/:id", userHandler.GetProfile, authMiddleware.Optional)
}
