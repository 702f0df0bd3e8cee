package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"classifieds/internal/adapter/api/handler"
	"classifieds/internal/adapter/api/middleware"
)

// Ten images of up to 10 MB combined plus the form fields.
const postBodyLimit = "12M"

func SetupPostRouter(e *echo.Echo, postHandler *handler.PostHandler, authMiddleware *middleware.AuthMiddleware) {
	posts := e.Group("/v1/posts")

	// Public
	posts.GET("", postHandler.ListPosts, authMiddleware.Optional)
	posts.GET("/:id", postHandler.GetPost, authMiddleware.Optional)

	// Protected
	posts.POST("", postHandler.CreatePost, echomw.BodyLimit(postBodyLimit), authMiddleware.Authenticate)
	posts.PUT("/:id", postHandler.UpdatePost, authMiddleware.Authenticate)
	posts.DELETE("/:id", postHandler.DeletePost, authMiddleware.Authenticate)
	posts.POST("/:id/sold", postHandler.MarkSold, authMiddleware.Authenticate)
	posts.POST("/:id/contact", postHandler.ContactSeller, authMiddleware.Authenticate)

	e.GET("/v1/my-posts", postHandler.ListMyPosts, authMiddleware.Authenticate)
}
