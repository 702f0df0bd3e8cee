package usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/internal/domain/service"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
	"classifieds/pkg/validation"
)

const (
	MaxListingImages     = 10
	MaxListingImageBytes = 10 << 20
)

type SubmitListingInput struct {
	Name        string  `json:"name" form:"name" validate:"required,max=120,listingname"`
	Price       float64 `json:"price" form:"price" validate:"required,gt=0,lte=10000000"`
	CategoryID  string  `json:"category_id" form:"category_id" validate:"required"`
	LocationID  string  `json:"location_id" form:"location_id" validate:"required"`
	Description string  `json:"description" form:"description" validate:"required,nospam,min=20,max=5000"`
}

// ListingImage is one uploaded file as received from the client.
type ListingImage struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type ListingSubmission struct {
	posts      repository.PostRepository
	categories repository.CategoryRepository
	locations  repository.LocationRepository
	files      service.FileUploadService
	validate   *validator.Validate
	now        func() time.Time
}

func NewListingSubmission(
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	locations repository.LocationRepository,
	files service.FileUploadService,
) *ListingSubmission {
	return &ListingSubmission{
		posts:      posts,
		categories: categories,
		locations:  locations,
		files:      files,
		validate:   validation.New(),
		now:        time.Now,
	}
}

// Validate checks the form and the images without touching the network.
func (ls *ListingSubmission) Validate(input SubmitListingInput, images []ListingImage) error {
	_, err := ls.check(input, images)
	return err
}

func (ls *ListingSubmission) check(input SubmitListingInput, images []ListingImage) ([]string, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)

	fields := map[string]string{}
	if err := ls.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !stderrors.As(err, &verrs) {
			return nil, errors.BadRequest("Invalid listing", err)
		}
		for field, msg := range validation.FieldErrors(verrs) {
			fields[field] = msg
		}
	}

	types, msg := checkImages(images)
	if msg != "" {
		fields["images"] = msg
	}

	if len(fields) > 0 {
		return nil, errors.Validation("Invalid listing", fields)
	}
	return types, nil
}

// checkImages returns the sniffed content type of every image, or a message
// describing the first rule broken.
func checkImages(images []ListingImage) ([]string, string) {
	if len(images) > MaxListingImages {
		return nil, fmt.Sprintf("At most %d images are allowed", MaxListingImages)
	}

	var total int64
	for _, img := range images {
		total += img.Size
	}
	if total > MaxListingImageBytes {
		return nil, "Images must be 10 MB or less in total"
	}

	types := make([]string, len(images))
	for i, img := range images {
		if !strings.HasPrefix(strings.ToLower(img.ContentType), "image/") {
			return nil, fmt.Sprintf("%s is not an image", img.Filename)
		}

		rc, err := img.Open()
		if err != nil {
			return nil, fmt.Sprintf("%s could not be read", img.Filename)
		}
		detected, err := mimetype.DetectReader(rc)
		rc.Close()
		if err != nil || !strings.HasPrefix(detected.String(), "image/") {
			return nil, fmt.Sprintf("%s is not an image", img.Filename)
		}
		types[i] = detected.String()
	}
	return types, ""
}

// Submit validates, uploads the images and then stores the listing as
// pending. Images uploaded before a failed insert are left in storage.
func (ls *ListingSubmission) Submit(ctx context.Context, authorID string, input SubmitListingInput, images []ListingImage) (*entity.Post, error) {
	types, err := ls.check(input, images)
	if err != nil {
		return nil, err
	}

	if err := checkCatalogRefs(ctx, ls.categories, ls.locations, input.CategoryID, input.LocationID); err != nil {
		return nil, err
	}

	urls, err := ls.upload(ctx, authorID, images, types)
	if err != nil {
		return nil, err
	}

	now := ls.now()
	post := &entity.Post{
		Title:       strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Images:      urls,
		CategoryID:  input.CategoryID,
		LocationID:  input.LocationID,
		AuthorID:    authorID,
		Status:      entity.PostPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ls.posts.Create(ctx, post); err != nil {
		logger.Error("SubmitListing: insert failed for %s, orphaned uploads: %v: %v", authorID, urls, err)
		return nil, err
	}

	logger.Info("SubmitListing: %s submitted listing %s with %d images", authorID, post.ID, len(urls))
	return post, nil
}

func (ls *ListingSubmission) upload(ctx context.Context, authorID string, images []ListingImage, types []string) ([]string, error) {
	urls := make([]string, 0, len(images))
	folder := "posts/" + authorID

	for i, img := range images {
		rc, err := img.Open()
		if err != nil {
			logger.Error("SubmitListing: reopen %s failed, orphaned uploads: %v: %v", img.Filename, urls, err)
			return nil, errors.Internal("Failed to read image", err)
		}

		url, err := ls.files.UploadFile(ctx, rc, img.Size, types[i], folder)
		rc.Close()
		if err != nil {
			logger.Error("SubmitListing: upload of %s failed, orphaned uploads: %v: %v", img.Filename, urls, err)
			return nil, errors.Internal("Failed to upload image", err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}
