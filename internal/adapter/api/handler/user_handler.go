package handler

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/adapter/api/middleware"
	"classifieds/internal/usecase"
	"classifieds/pkg/response"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

// GetProfile returns a public profile. The email is only shown to its owner.
func (h *UserHandler) GetProfile(c echo.Context) error {
	id := c.Param("id")

	profile, err := h.userUseCase.GetProfile(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	if middleware.UserID(c) != id {
		public := *profile
		public.Email = ""
		profile = &public
	}
	return response.Success(c, profile)
}

func (h *UserHandler) UpdateMyProfile(c echo.Context) error {
	var req usecase.UpdateProfileInput
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	profile, err := h.userUseCase.UpdateProfile(c.Request().Context(), uid, req)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, profile)
}
