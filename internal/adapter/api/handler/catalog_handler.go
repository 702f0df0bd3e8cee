package handler

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/usecase"
	"classifieds/pkg/response"
)

type CatalogHandler struct {
	catalogUseCase *usecase.CatalogUseCase
}

func NewCatalogHandler(catalogUseCase *usecase.CatalogUseCase) *CatalogHandler {
	return &CatalogHandler{
		catalogUseCase: catalogUseCase,
	}
}

func (h *CatalogHandler) ListCategories(c echo.Context) error {
	categories, err := h.catalogUseCase.ListCategories(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, categories)
}

func (h *CatalogHandler) ListLocations(c echo.Context) error {
	locations, err := h.catalogUseCase.ListLocations(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, locations)
}
