package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"classifieds/pkg/response"
)

// SetupHandler answers every request while required settings are missing.
type SetupHandler struct {
	missingKeys []string
}

func NewSetupHandler(missingKeys []string) *SetupHandler {
	return &SetupHandler{
		missingKeys: missingKeys,
	}
}

func (h *SetupHandler) Instructions(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, response.Response{
		Success:   false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error: &response.ErrorInfo{
			Code:    "CONFIGURATION_MISSING",
			Message: "The service is not configured yet",
			Details: map[string]interface{}{
				"missing_keys": h.missingKeys,
				"instructions": []string{
					"Create a Firebase project and set FIREBASE_PROJECT_ID.",
					"Provide service account credentials in FIREBASE_SERVICE_ACCOUNT_JSON or a file path in FIREBASE_SERVICE_ACCOUNT_PATH.",
					"Set STORAGE_BUCKET. For STORAGE_DRIVER=s3 also set S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY.",
					"Set SESSION_TOKEN_SECRET to a long random string.",
					"Put the values in .env or the environment and restart the service.",
				},
			},
		},
	})
}
