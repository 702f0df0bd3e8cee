package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
)

func SetupAuthRouter(e *echo.Echo, authHandler *handler.AuthHandler, authMiddleware *middleware.AuthMiddleware) {
	session := e.Group("/v1/session")
	session.POST("", authHandler.SignIn)
	session.GET("/me", authHandler.Me, authMiddleware.Authenticate)
}
