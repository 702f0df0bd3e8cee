package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
)

func SetupAdminRouter(e *echo.Echo, adminHandler *handler.AdminHandler, authMiddleware *middleware.AuthMiddleware, roleMiddleware *middleware.RoleMiddleware) {
	admin := e.Group("/v1/admin")
	admin.Use(authMiddleware.Authenticate)

	// Moderation queue
	posts := admin.Group("/posts", roleMiddleware.RequireModerator)
	posts.GET("", adminHandler.ListPosts)
	posts.POST("/:id/approve", adminHandler.ApprovePost)
	posts.POST("/:id/reject", adminHandler.RejectPost)

	// Role management
	users := admin.Group("/users", roleMiddleware.RequireSuperModerator)
	users.GET("", adminHandler.ListUsers)
	users.PUT("/:id/roles", adminHandler.UpdateUserRoles)
}
