package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"classifieds/internal/adapter/api/handler"
)

func TestSetupModeAnswersEveryPath(t *testing.T) {
	e := echo.New()
	SetupSetupModeRouter(e, handler.NewSetupHandler([]string{"STORAGE_BUCKET"}))

	for _, target := range []string{"/", "/v1/posts", "/ws", "/health"} {
		for _, method := range []string{http.MethodGet, http.MethodPost} {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code, method+" "+target)
			assert.Contains(t, rec.Body.String(), "STORAGE_BUCKET")
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	e := echo.New()
	SetupMetricsRouter(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace_seen_rollbacks_total")
}
