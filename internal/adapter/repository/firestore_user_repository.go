package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

type firestoreProfileRepository struct {
	client *firestore.Client
}

func NewFirestoreProfileRepository(client *firestore.Client) repository.ProfileRepository {
	return &firestoreProfileRepository{
		client: client,
	}
}

func (r *firestoreProfileRepository) Upsert(ctx context.Context, profile *entity.Profile) (*entity.Profile, error) {
	ref := r.client.Collection(profilesCollection).Doc(profile.ID)

	var stored entity.Profile
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now()
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			stored = *profile
			if len(stored.Roles) == 0 {
				stored.Roles = []string{string(entity.RoleUser)}
			}
			stored.CreatedAt = now
			stored.UpdatedAt = now
			return tx.Set(ref, &stored)
		}

		stored = entity.Profile{}
		if err := doc.DataTo(&stored); err != nil {
			return err
		}
		// Keep names the user edited; only fill blanks from the identity.
		update := map[string]interface{}{"updatedAt": now}
		if profile.Email != "" && profile.Email != stored.Email {
			stored.Email = profile.Email
			update["email"] = profile.Email
		}
		if stored.DisplayName == "" && profile.DisplayName != "" {
			stored.DisplayName = profile.DisplayName
			update["displayName"] = profile.DisplayName
		}
		if stored.AvatarURL == "" && profile.AvatarURL != "" {
			stored.AvatarURL = profile.AvatarURL
			update["avatarUrl"] = profile.AvatarURL
		}
		stored.UpdatedAt = now
		return tx.Set(ref, update, firestore.MergeAll)
	})
	if err != nil {
		return nil, errors.Internal("Failed to upsert profile", err)
	}

	return &stored, nil
}

func (r *firestoreProfileRepository) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	doc, err := r.client.Collection(profilesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Profile", err)
		}
		return nil, errors.Internal("Failed to get profile", err)
	}

	var profile entity.Profile
	if err := doc.DataTo(&profile); err != nil {
		return nil, errors.Internal("Failed to parse profile data", err)
	}

	return &profile, nil
}

func (r *firestoreProfileRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Profile, error) {
	profiles := make(map[string]*entity.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection(profilesCollection).Doc(id))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to get profiles", err)
	}

	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var profile entity.Profile
		if err := doc.DataTo(&profile); err != nil {
			continue
		}
		profiles[doc.Ref.ID] = &profile
	}

	return profiles, nil
}

func (r *firestoreProfileRepository) Update(ctx context.Context, profile *entity.Profile) error {
	profile.UpdatedAt = time.Now()

	_, err := r.client.Collection(profilesCollection).Doc(profile.ID).Set(ctx, map[string]interface{}{
		"displayName": profile.DisplayName,
		"avatarUrl":   profile.AvatarURL,
		"locationId":  profile.LocationID,
		"updatedAt":   profile.UpdatedAt,
	}, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update profile", err)
	}

	return nil
}

func (r *firestoreProfileRepository) UpdateRoles(ctx context.Context, id string, roles []string) error {
	_, err := r.client.Collection(profilesCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "roles", Value: roles},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Profile", err)
		}
		return errors.Internal("Failed to update roles", err)
	}

	return nil
}

func (r *firestoreProfileRepository) List(ctx context.Context, limit, offset int) ([]*entity.Profile, int64, error) {
	query := r.client.Collection(profilesCollection).OrderBy("createdAt", firestore.Desc)

	total, err := countQuery(ctx, query)
	if err != nil {
		return nil, 0, errors.Internal("Failed to count profiles", err)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var profiles []*entity.Profile
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, errors.Internal("Failed to iterate profiles", err)
		}

		var profile entity.Profile
		if err := doc.DataTo(&profile); err != nil {
			return nil, 0, errors.Internal("Failed to parse profile data", err)
		}
		profiles = append(profiles, &profile)
	}

	return profiles, total, nil
}
