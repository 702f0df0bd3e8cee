package middleware

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/domain/entity"
	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/response"
)

type RoleMiddleware struct {
	roles *usecase.RoleCache
}

func NewRoleMiddleware(roles *usecase.RoleCache) *RoleMiddleware {
	return &RoleMiddleware{
		roles: roles,
	}
}

func (m *RoleMiddleware) RequireModerator(next echo.HandlerFunc) echo.HandlerFunc {
	return m.require(entity.RoleModerator, "Moderator privileges required", next)
}

func (m *RoleMiddleware) RequireSuperModerator(next echo.HandlerFunc) echo.HandlerFunc {
	return m.require(entity.RoleSuperModerator, "Super-moderator privileges required", next)
}

func (m *RoleMiddleware) require(min entity.Role, message string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid := UserID(c)
		if uid == "" {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}

		role := m.roles.Resolve(c.Request().Context(), uid)
		if !role.AtLeast(min) {
			return response.Error(c, errors.Forbidden(message, nil))
		}

		c.Set("role", role)
		return next(c)
	}
}

// IsModerator reports the role resolved for the request, resolving it if no
// role middleware ran.
func (m *RoleMiddleware) IsModerator(c echo.Context) bool {
	if role, ok := c.Get("role").(entity.Role); ok {
		return role.AtLeast(entity.RoleModerator)
	}
	uid := UserID(c)
	if uid == "" {
		return false
	}
	return m.roles.Resolve(c.Request().Context(), uid).AtLeast(entity.RoleModerator)
}
