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

type firestorePostRepository struct {
	client *firestore.Client
}

func NewFirestorePostRepository(client *firestore.Client) repository.PostRepository {
	return &firestorePostRepository{
		client: client,
	}
}

func (r *firestorePostRepository) Create(ctx context.Context, post *entity.Post) error {
	if post.ID == "" {
		post.ID = r.client.Collection(postsCollection).NewDoc().ID
	}

	now := time.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	_, err := r.client.Collection(postsCollection).Doc(post.ID).Set(ctx, post)
	if err != nil {
		return errors.Internal("Failed to create post", err)
	}

	return nil
}

func (r *firestorePostRepository) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	doc, err := r.client.Collection(postsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Post", err)
		}
		return nil, errors.Internal("Failed to get post", err)
	}

	var post entity.Post
	if err := doc.DataTo(&post); err != nil {
		return nil, errors.Internal("Failed to parse post data", err)
	}

	return &post, nil
}

func (r *firestorePostRepository) query(filter repository.PostFilter, sort repository.PostSort) firestore.Query {
	query := r.client.Collection(postsCollection).Query

	if filter.CategoryID != "" {
		query = query.Where("categoryId", "==", filter.CategoryID)
	}
	if filter.LocationID != "" {
		query = query.Where("locationId", "==", filter.LocationID)
	}
	if filter.AuthorID != "" {
		query = query.Where("authorId", "==", filter.AuthorID)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}

	switch sort {
	case repository.SortOldest:
		query = query.OrderBy("createdAt", firestore.Asc)
	case repository.SortPriceAsc:
		query = query.OrderBy("price", firestore.Asc)
	case repository.SortPriceDesc:
		query = query.OrderBy("price", firestore.Desc)
	default:
		query = query.OrderBy("createdAt", firestore.Desc)
	}

	return query
}

func (r *firestorePostRepository) List(ctx context.Context, filter repository.PostFilter, sort repository.PostSort, limit, offset int) ([]*entity.Post, int64, error) {
	query := r.query(filter, sort)

	total, err := countQuery(ctx, query)
	if err != nil {
		return nil, 0, errors.Internal("Failed to count posts", err)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	posts, err := r.collect(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (r *firestorePostRepository) ListAll(ctx context.Context, filter repository.PostFilter, sort repository.PostSort) ([]*entity.Post, error) {
	return r.collect(ctx, r.query(filter, sort))
}

func (r *firestorePostRepository) collect(ctx context.Context, query firestore.Query) ([]*entity.Post, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var posts []*entity.Post
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate posts", err)
		}

		var post entity.Post
		if err := doc.DataTo(&post); err != nil {
			return nil, errors.Internal("Failed to parse post data", err)
		}
		posts = append(posts, &post)
	}

	return posts, nil
}

func (r *firestorePostRepository) Update(ctx context.Context, post *entity.Post) error {
	post.UpdatedAt = time.Now()

	_, err := r.client.Collection(postsCollection).Doc(post.ID).Set(ctx, post)
	if err != nil {
		return errors.Internal("Failed to update post", err)
	}

	return nil
}

func (r *firestorePostRepository) ExpireLapsed(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.client.Collection(postsCollection).Doc(id)
	}

	var expired []string
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		expired = expired[:0]
		docs, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if !doc.Exists() {
				continue
			}
			var post entity.Post
			if err := doc.DataTo(&post); err != nil {
				return err
			}
			// Sold, edited or deleted since the read: leave it alone.
			if !post.IsLapsed(now) {
				continue
			}
			if err := tx.Update(doc.Ref, []firestore.Update{
				{Path: "status", Value: string(entity.PostExpired)},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
			expired = append(expired, doc.Ref.ID)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Internal("Failed to expire posts", err)
	}

	return expired, nil
}

func (r *firestorePostRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(postsCollection).Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete post", err)
	}

	return nil
}
