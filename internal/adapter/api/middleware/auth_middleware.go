package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"classifieds/internal/domain/entity"
	"classifieds/pkg/errors"
	"classifieds/pkg/response"
)

// Authenticator resolves a bearer token to an identity. It accepts session
// tokens and Firebase ID tokens alike.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*entity.Identity, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// BearerToken reads the Authorization header. Browsers cannot set headers on
// a WebSocket upgrade, so the access_token query parameter is accepted too.
func BearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}

	if token := c.QueryParam("access_token"); token != "" {
		return token, true
	}
	return "", false
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := BearerToken(c)
		if !ok {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		identity, err := m.auth.Authenticate(c.Request().Context(), token)
		if err != nil {
			return response.Error(c, err)
		}

		c.Set("uid", identity.UID)
		c.Set("identity", identity)
		return next(c)
	}
}

// Optional sets uid when a valid token is present and carries on without one
// otherwise.
func (m *AuthMiddleware) Optional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := BearerToken(c)
		if !ok {
			return next(c)
		}

		if identity, err := m.auth.Authenticate(c.Request().Context(), token); err == nil {
			c.Set("uid", identity.UID)
			c.Set("identity", identity)
		}
		return next(c)
	}
}

// UserID returns the authenticated uid, or "" for anonymous requests.
func UserID(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}
