package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

type firestoreCategoryRepository struct {
	client *firestore.Client
}

func NewFirestoreCategoryRepository(client *firestore.Client) repository.CategoryRepository {
	return &firestoreCategoryRepository{client: client}
}

func (r *firestoreCategoryRepository) List(ctx context.Context) ([]*entity.Category, error) {
	docs, err := r.client.Collection(categoriesCollection).OrderBy("order", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list categories", err)
	}

	categories := make([]*entity.Category, 0, len(docs))
	for _, doc := range docs {
		var category entity.Category
		if err := doc.DataTo(&category); err != nil {
			continue
		}
		category.ID = doc.Ref.ID
		categories = append(categories, &category)
	}

	return categories, nil
}

func (r *firestoreCategoryRepository) GetByID(ctx context.Context, id string) (*entity.Category, error) {
	doc, err := r.client.Collection(categoriesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Category", err)
		}
		return nil, errors.Internal("Failed to get category", err)
	}

	var category entity.Category
	if err := doc.DataTo(&category); err != nil {
		return nil, errors.Internal("Failed to parse category data", err)
	}
	category.ID = doc.Ref.ID

	return &category, nil
}

type firestoreLocationRepository struct {
	client *firestore.Client
}

func NewFirestoreLocationRepository(client *firestore.Client) repository.LocationRepository {
	return &firestoreLocationRepository{client: client}
}

func (r *firestoreLocationRepository) List(ctx context.Context) ([]*entity.Location, error) {
	docs, err := r.client.Collection(locationsCollection).OrderBy("order", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to list locations", err)
	}

	locations := make([]*entity.Location, 0, len(docs))
	for _, doc := range docs {
		var location entity.Location
		if err := doc.DataTo(&location); err != nil {
			continue
		}
		location.ID = doc.Ref.ID
		locations = append(locations, &location)
	}

	return locations, nil
}

func (r *firestoreLocationRepository) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	doc, err := r.client.Collection(locationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Location", err)
		}
		return nil, errors.Internal("Failed to get location", err)
	}

	var location entity.Location
	if err := doc.DataTo(&location); err != nil {
		return nil, errors.Internal("Failed to parse location data", err)
	}
	location.ID = doc.Ref.ID

	return &location, nil
}
