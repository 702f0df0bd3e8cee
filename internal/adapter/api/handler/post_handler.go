package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/middleware"
	"classifieds/internal/domain/entity"
	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/response"
	"classifieds/pkg/utils"
)

type PostHandler struct {
	postUseCase         *usecase.PostUseCase
	listingSubmission   *usecase.ListingSubmission
	conversationService *usecase.ConversationService
	roles               *middleware.RoleMiddleware
}

func NewPostHandler(
	postUseCase *usecase.PostUseCase,
	listingSubmission *usecase.ListingSubmission,
	conversationService *usecase.ConversationService,
	roles *middleware.RoleMiddleware,
) *PostHandler {
	return &PostHandler{
		postUseCase:         postUseCase,
		listingSubmission:   listingSubmission,
		conversationService: conversationService,
		roles:               roles,
	}
}

// ListPosts is the public feed. It shows approved listings unless a status is
// asked for; unpublished statuses are limited to moderators and to the
// author's own listings.
func (h *PostHandler) ListPosts(c echo.Context) error {
	pagination := utils.GetPaginationParams(c, 20)

	query := usecase.ListPostsQuery{
		CategoryID: c.QueryParam("category_id"),
		LocationID: c.QueryParam("location_id"),
		AuthorID:   c.QueryParam("author_id"),
		Status:     c.QueryParam("status"),
		Keyword:    c.QueryParam("q"),
		Sort:       c.QueryParam("sort"),
		Limit:      pagination.PageSize,
		Offset:     pagination.Offset,
	}
	if query.Status == "" {
		query.Status = string(entity.PostApproved)
	}

	if !publicStatus(query.Status) {
		uid := middleware.UserID(c)
		if uid == "" || (query.AuthorID != uid && !h.roles.IsModerator(c)) {
			return response.Error(c, errors.Forbidden("You cannot list listings with this status", nil))
		}
	}

	posts, total, err := h.postUseCase.ListPosts(c.Request().Context(), query)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, posts, total, pagination.PageSize, pagination.Offset)
}

func publicStatus(status string) bool {
	switch entity.PostStatus(status) {
	case entity.PostApproved, entity.PostExpired, entity.PostSold:
		return true
	}
	return false
}

func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postUseCase.GetPost(c.Request().Context(), c.Param("id"), middleware.UserID(c), h.roles.IsModerator(c))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, post)
}

func (h *PostHandler) ListMyPosts(c echo.Context) error {
	uid := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c, 20)

	posts, total, err := h.postUseCase.ListMyPosts(c.Request().Context(), uid, c.QueryParam("status"), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, posts, total, pagination.PageSize, pagination.Offset)
}

// CreatePost accepts the listing form as multipart with the pictures under
// "images".
func (h *PostHandler) CreatePost(c echo.Context) error {
	var input usecase.SubmitListingInput
	if err := c.Bind(&input); err != nil {
		return response.Error(c, errors.BadRequest("Invalid listing form", err))
	}

	var images []usecase.ListingImage
	if form, err := c.MultipartForm(); err == nil {
		for _, fh := range form.File["images"] {
			fh := fh
			images = append(images, usecase.ListingImage{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Size:        fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	} else if err != http.ErrNotMultipart {
		return response.Error(c, errors.BadRequest("Invalid upload", err))
	}

	uid := c.Get("uid").(string)

	post, err := h.listingSubmission.Submit(c.Request().Context(), uid, input, images)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, post)
}

func (h *PostHandler) UpdatePost(c echo.Context) error {
	var req usecase.UpdatePostInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	post, err := h.postUseCase.UpdatePost(c.Request().Context(), uid, c.Param("id"), req)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, post)
}

func (h *PostHandler) MarkSold(c echo.Context) error {
	uid := c.Get("uid").(string)

	post, err := h.postUseCase.MarkSold(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, post)
}

func (h *PostHandler) DeletePost(c echo.Context) error {
	uid := c.Get("uid").(string)

	if err := h.postUseCase.DeletePost(c.Request().Context(), uid, c.Param("id"), h.roles.IsModerator(c)); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"id": c.Param("id")})
}

// ContactSeller opens (or reuses) the conversation with the listing's author.
func (h *PostHandler) ContactSeller(c echo.Context) error {
	uid := c.Get("uid").(string)

	result, err := h.conversationService.ContactSeller(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	if result.Created {
		return response.Created(c, result)
	}
	return response.Success(c, result)
}
