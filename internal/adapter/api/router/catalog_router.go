package router

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/handler"
)

func SetupCatalogRouter(e *echo.Echo, catalogHandler *handler.CatalogHandler) {
	e.GET("/v1/categories", catalogHandler.ListCategories)
	e.GET("/v1/locations", catalogHandler.ListLocations)
}
