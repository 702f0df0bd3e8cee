package handler

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/usecase"
	"classifieds/pkg/response"
	"classifieds/pkg/utils"
)

// AdminHandler serves the moderation queue and role management.
type AdminHandler struct {
	moderationUseCase *usecase.ModerationUseCase
	userUseCase       *usecase.UserUseCase
}

func NewAdminHandler(moderationUseCase *usecase.ModerationUseCase, userUseCase *usecase.UserUseCase) *AdminHandler {
	return &AdminHandler{
		moderationUseCase: moderationUseCase,
		userUseCase:       userUseCase,
	}
}

func (h *AdminHandler) ListPosts(c echo.Context) error {
	pagination := utils.GetPaginationParams(c, 20)

	posts, total, err := h.moderationUseCase.ListByStatus(c.Request().Context(), c.QueryParam("status"), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, posts, total, pagination.PageSize, pagination.Offset)
}

func (h *AdminHandler) ApprovePost(c echo.Context) error {
	uid := c.Get("uid").(string)

	post, err := h.moderationUseCase.Approve(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, post)
}

func (h *AdminHandler) RejectPost(c echo.Context) error {
	var req usecase.RejectPostInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	post, err := h.moderationUseCase.Reject(c.Request().Context(), uid, c.Param("id"), req)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, post)
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	pagination := utils.GetPaginationParams(c, 50)

	profiles, total, err := h.userUseCase.ListProfiles(c.Request().Context(), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, profiles, total, pagination.PageSize, pagination.Offset)
}

func (h *AdminHandler) UpdateUserRoles(c echo.Context) error {
	var req usecase.UpdateRolesInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	profile, err := h.userUseCase.UpdateRoles(c.Request().Context(), uid, c.Param("id"), req)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, profile)
}
