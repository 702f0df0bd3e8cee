package usecase

import (
	"context"
	"strings"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

type UserUseCase struct {
	profiles  repository.ProfileRepository
	locations repository.LocationRepository
	roles     *RoleCache
	now       func() time.Time
}

func NewUserUseCase(profiles repository.ProfileRepository, locations repository.LocationRepository, roles *RoleCache) *UserUseCase {
	return &UserUseCase{
		profiles:  profiles,
		locations: locations,
		roles:     roles,
		now:       time.Now,
	}
}

type UpdateProfileInput struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=80"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
	LocationID  *string `json:"location_id"`
}

type UpdateRolesInput struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,required,role"`
}

// SyncProfile upserts the profile keyed by the identity id.
func (uc *UserUseCase) SyncProfile(ctx context.Context, identity *entity.Identity) (*entity.Profile, error) {
	profile := entity.ProfileFromIdentity(identity)
	profile.UpdatedAt = uc.now()

	saved, err := uc.profiles.Upsert(ctx, profile)
	if err != nil {
		logger.Error("SyncProfile: upsert for %s failed: %v", identity.UID, err)
		return nil, err
	}
	return saved, nil
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID string) (*entity.Profile, error) {
	return uc.profiles.GetByID(ctx, userID)
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.Profile, error) {
	profile, err := uc.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, errors.Validation("Invalid profile", map[string]string{"display_name": "Display name is required"})
		}
		profile.DisplayName = name
	}
	if input.AvatarURL != nil {
		profile.AvatarURL = strings.TrimSpace(*input.AvatarURL)
	}
	if input.LocationID != nil {
		locationID := strings.TrimSpace(*input.LocationID)
		if locationID != "" {
			if _, err := uc.locations.GetByID(ctx, locationID); err != nil {
				if errors.IsNotFound(err) {
					return nil, errors.Validation("Invalid profile", map[string]string{"location_id": "Unknown location"})
				}
				return nil, err
			}
		}
		profile.LocationID = locationID
	}

	profile.UpdatedAt = uc.now()
	if err := uc.profiles.Update(ctx, profile); err != nil {
		logger.Error("UpdateProfile: failed for %s: %v", userID, err)
		return nil, err
	}
	return profile, nil
}

// ListProfiles backs the role management screen.
func (uc *UserUseCase) ListProfiles(ctx context.Context, limit, offset int) ([]*entity.Profile, int64, error) {
	return uc.profiles.List(ctx, limit, offset)
}

// UpdateRoles lets a super-moderator set another user's role tags. Nobody may
// grant super-moderator or edit a super-moderator.
func (uc *UserUseCase) UpdateRoles(ctx context.Context, actorID, targetID string, input UpdateRolesInput) (*entity.Profile, error) {
	actorRole := uc.roles.Resolve(ctx, actorID)
	if actorRole != entity.RoleSuperModerator {
		return nil, errors.Forbidden("Only super-moderators can change roles", nil)
	}
	if actorID == targetID {
		return nil, errors.Forbidden("You cannot change your own roles", nil)
	}

	roles, ok := entity.NormalizeRoles(input.Roles)
	if !ok {
		return nil, errors.Validation("Invalid roles", map[string]string{"roles": "Roles must be user or moderator"})
	}
	if entity.HighestRole(roles) == entity.RoleSuperModerator {
		return nil, errors.Forbidden("The super-moderator role cannot be granted", nil)
	}

	target, err := uc.profiles.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !CanEditRole(actorRole, target.Roles) {
		return nil, errors.Forbidden("You cannot change the roles of this user", nil)
	}

	if err := uc.profiles.UpdateRoles(ctx, targetID, roles); err != nil {
		logger.Error("UpdateRoles: failed for %s: %v", targetID, err)
		return nil, err
	}
	uc.roles.Invalidate(targetID)
	logger.Info("UpdateRoles: %s set roles of %s to %v", actorID, targetID, roles)

	target.Roles = roles
	return target, nil
}
