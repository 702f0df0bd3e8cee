package usecase

import (
	"context"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
)

type CatalogUseCase struct {
	categories repository.CategoryRepository
	locations  repository.LocationRepository
}

func NewCatalogUseCase(categories repository.CategoryRepository, locations repository.LocationRepository) *CatalogUseCase {
	return &CatalogUseCase{
		categories: categories,
		locations:  locations,
	}
}

func (uc *CatalogUseCase) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	return uc.categories.List(ctx)
}

func (uc *CatalogUseCase) ListLocations(ctx context.Context) ([]*entity.Location, error) {
	return uc.locations.List(ctx)
}
