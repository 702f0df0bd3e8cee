package repository

import (
	"context"

	"classifieds/internal/domain/entity"
)

type ProfileRepository interface {
	// Upsert creates the profile on first sign-in and otherwise refreshes the
	// identity fields, leaving roles untouched.
	Upsert(ctx context.Context, profile *entity.Profile) (*entity.Profile, error)
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	// GetByIDs returns the profiles that exist; missing ids are simply absent.
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Profile, error)
	Update(ctx context.Context, profile *entity.Profile) error
	UpdateRoles(ctx context.Context, id string, roles []string) error
	List(ctx context.Context, limit, offset int) ([]*entity.Profile, int64, error)
}
