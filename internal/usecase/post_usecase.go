package usecase

import (
	"context"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/internal/domain/service"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
	"classifieds/pkg/utils"
)

type PostUseCase struct {
	posts      repository.PostRepository
	categories repository.CategoryRepository
	locations  repository.LocationRepository
	files      service.FileUploadService
	expiry     *ExpiryCorrector
	now        func() time.Time
}

func NewPostUseCase(
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	locations repository.LocationRepository,
	files service.FileUploadService,
	expiry *ExpiryCorrector,
) *PostUseCase {
	return &PostUseCase{
		posts:      posts,
		categories: categories,
		locations:  locations,
		files:      files,
		expiry:     expiry,
		now:        time.Now,
	}
}

type ListPostsQuery struct {
	CategoryID string
	LocationID string
	AuthorID   string
	Status     string
	Keyword    string
	Sort       string
	Limit      int
	Offset     int
}

type UpdatePostInput struct {
	Name        string  `json:"name" validate:"required,max=120,listingname"`
	Price       float64 `json:"price" validate:"required,gt=0,lte=10000000"`
	CategoryID  string  `json:"category_id" validate:"required"`
	LocationID  string  `json:"location_id" validate:"required"`
	Description string  `json:"description" validate:"required,nospam,min=20,max=5000"`
}

// ListPosts applies equality filters and sort in the store. A keyword is
// matched in memory against the folded title and description.
func (uc *PostUseCase) ListPosts(ctx context.Context, q ListPostsQuery) ([]*entity.Post, int64, error) {
	filter := repository.PostFilter{
		CategoryID: q.CategoryID,
		LocationID: q.LocationID,
		AuthorID:   q.AuthorID,
	}
	if q.Status != "" {
		status, ok := entity.ParsePostStatus(q.Status)
		if !ok {
			return nil, 0, errors.BadRequest("Unknown listing status", nil)
		}
		filter.Status = status
	}
	sort := repository.ParsePostSort(q.Sort)

	if q.Keyword != "" {
		return uc.searchPosts(ctx, filter, sort, q)
	}

	posts, total, err := uc.posts.List(ctx, filter, sort, q.Limit, q.Offset)
	if err != nil {
		logger.Error("ListPosts: query failed: %v", err)
		return nil, 0, err
	}

	posts, dropped := uc.applyExpiry(posts, filter.Status == entity.PostApproved)
	return posts, total - int64(dropped), nil
}

func (uc *PostUseCase) searchPosts(ctx context.Context, filter repository.PostFilter, sort repository.PostSort, q ListPostsQuery) ([]*entity.Post, int64, error) {
	all, err := uc.posts.ListAll(ctx, filter, sort)
	if err != nil {
		logger.Error("ListPosts: search query failed: %v", err)
		return nil, 0, err
	}

	matched := make([]*entity.Post, 0, len(all))
	for _, p := range all {
		if utils.MatchesKeyword(q.Keyword, p.Title, p.Description) {
			matched = append(matched, p)
		}
	}

	matched, _ = uc.applyExpiry(matched, filter.Status == entity.PostApproved)
	start, end := utils.Window(len(matched), q.Offset, q.Limit)
	return matched[start:end], int64(len(matched)), nil
}

// applyExpiry presents lapsed listings as expired and queues the write-back.
// With dropLapsed the lapsed listings are removed instead.
func (uc *PostUseCase) applyExpiry(posts []*entity.Post, dropLapsed bool) ([]*entity.Post, int) {
	now := uc.now()
	var lapsed []*entity.Post
	kept := posts[:0]
	for _, p := range posts {
		if p.IsLapsed(now) {
			original := *p
			lapsed = append(lapsed, &original)
			p.Status = entity.PostExpired
			if dropLapsed {
				continue
			}
		}
		kept = append(kept, p)
	}

	if len(lapsed) > 0 && uc.expiry != nil {
		uc.expiry.Submit(lapsed)
	}
	return kept, len(posts) - len(kept)
}

// GetPost hides unpublished listings from everyone but the author and
// moderators.
func (uc *PostUseCase) GetPost(ctx context.Context, id, viewerID string, moderator bool) (*entity.Post, error) {
	post, err := uc.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if (post.Status == entity.PostPending || post.Status == entity.PostRejected) && post.AuthorID != viewerID && !moderator {
		return nil, errors.NotFound("Post", nil)
	}

	uc.applyExpiry([]*entity.Post{post}, false)
	return post, nil
}

func (uc *PostUseCase) ListMyPosts(ctx context.Context, authorID, status string, limit, offset int) ([]*entity.Post, int64, error) {
	return uc.ListPosts(ctx, ListPostsQuery{
		AuthorID: authorID,
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
}

func (uc *PostUseCase) ownPost(ctx context.Context, authorID, id string) (*entity.Post, error) {
	post, err := uc.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != authorID {
		return nil, errors.Forbidden("You can only change your own listings", nil)
	}
	return post, nil
}

// UpdatePost edits a listing and sends it back to moderation.
func (uc *PostUseCase) UpdatePost(ctx context.Context, authorID, id string, input UpdatePostInput) (*entity.Post, error) {
	post, err := uc.ownPost(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	if post.Status == entity.PostSold {
		return nil, errors.Conflict("Sold listings cannot be edited")
	}

	if err := checkCatalogRefs(ctx, uc.categories, uc.locations, input.CategoryID, input.LocationID); err != nil {
		return nil, err
	}

	post.Title = input.Name
	post.Description = input.Description
	post.Price = input.Price
	post.CategoryID = input.CategoryID
	post.LocationID = input.LocationID
	post.Resubmit()
	post.UpdatedAt = uc.now()

	if err := uc.posts.Update(ctx, post); err != nil {
		logger.Error("UpdatePost: failed for %s: %v", id, err)
		return nil, err
	}
	return post, nil
}

func (uc *PostUseCase) MarkSold(ctx context.Context, authorID, id string) (*entity.Post, error) {
	post, err := uc.ownPost(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	if post.Status != entity.PostApproved && post.Status != entity.PostExpired {
		return nil, errors.Conflict("Only published listings can be marked as sold")
	}

	post.Status = entity.PostSold
	post.UpdatedAt = uc.now()
	if err := uc.posts.Update(ctx, post); err != nil {
		logger.Error("MarkSold: failed for %s: %v", id, err)
		return nil, err
	}
	return post, nil
}

// DeletePost removes a listing. Image cleanup is best effort.
func (uc *PostUseCase) DeletePost(ctx context.Context, userID, id string, moderator bool) error {
	post, err := uc.posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != userID && !moderator {
		return errors.Forbidden("You can only delete your own listings", nil)
	}

	if err := uc.posts.Delete(ctx, id); err != nil {
		logger.Error("DeletePost: failed for %s: %v", id, err)
		return err
	}

	if uc.files != nil {
		for _, url := range post.Images {
			if err := uc.files.DeleteFile(ctx, url); err != nil {
				logger.Warn("DeletePost: failed to delete image %s: %v", url, err)
			}
		}
	}
	return nil
}

// checkCatalogRefs reports unknown category or location ids as field errors.
func checkCatalogRefs(ctx context.Context, categories repository.CategoryRepository, locations repository.LocationRepository, categoryID, locationID string) error {
	fields := map[string]string{}

	if _, err := categories.GetByID(ctx, categoryID); err != nil {
		if !errors.IsNotFound(err) {
			return err
		}
		fields["category_id"] = "Unknown category"
	}
	if _, err := locations.GetByID(ctx, locationID); err != nil {
		if !errors.IsNotFound(err) {
			return err
		}
		fields["location_id"] = "Unknown location"
	}

	if len(fields) > 0 {
		return errors.Validation("Invalid listing", fields)
	}
	return nil
}
