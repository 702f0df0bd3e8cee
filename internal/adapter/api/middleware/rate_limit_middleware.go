package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"classifieds/pkg/errors"
	"classifieds/pkg/response"
)

// RateLimit limits requests per caller: the signed-in uid when known, the
// client address otherwise. Burst is twice the per-second rate.
func RateLimit(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = 20
	}
	burst := int(perSecond * 2)

	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if uid := UserID(c); uid != "" {
				return "uid:" + uid, nil
			}
			return "ip:" + c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return response.Error(c, errors.BadRequest("Could not identify caller", err))
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return response.Error(c, errors.TooManyRequests("Rate limit exceeded", time.Second))
		},
	})
}
