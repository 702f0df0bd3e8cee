package repository

import (
	"context"
	"time"

	"classifieds/internal/domain/entity"
)

// PostFilter holds equality filters; empty fields are not applied.
type PostFilter struct {
	CategoryID string
	LocationID string
	AuthorID   string
	Status     entity.PostStatus
}

type PostSort string

const (
	SortNewest    PostSort = "newest"
	SortOldest    PostSort = "oldest"
	SortPriceAsc  PostSort = "price_asc"
	SortPriceDesc PostSort = "price_desc"
)

// ParsePostSort falls back to newest first for unknown values.
func ParsePostSort(s string) PostSort {
	switch PostSort(s) {
	case SortOldest, SortPriceAsc, SortPriceDesc:
		return PostSort(s)
	}
	return SortNewest
}

type PostRepository interface {
	Create(ctx context.Context, post *entity.Post) error
	GetByID(ctx context.Context, id string) (*entity.Post, error)
	List(ctx context.Context, filter PostFilter, sort PostSort, limit, offset int) ([]*entity.Post, int64, error)
	// ListAll returns every match, for searches the store cannot express.
	ListAll(ctx context.Context, filter PostFilter, sort PostSort) ([]*entity.Post, error)
	Update(ctx context.Context, post *entity.Post) error
	// ExpireLapsed marks as expired the listings among ids that are still
	// approved and past expiry at now, and returns the ids it changed.
	ExpireLapsed(ctx context.Context, ids []string, now time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type CategoryRepository interface {
	List(ctx context.Context) ([]*entity.Category, error)
	GetByID(ctx context.Context, id string) (*entity.Category, error)
}

type LocationRepository interface {
	List(ctx context.Context) ([]*entity.Location, error)
	GetByID(ctx context.Context, id string) (*entity.Location, error)
}
