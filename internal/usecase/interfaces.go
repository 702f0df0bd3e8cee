package usecase

import (
	"context"
	"time"

	"classifieds/internal/domain/entity"
)

// IdentityProvider verifies provider-issued ID tokens.
type IdentityProvider interface {
	VerifyIDToken(ctx context.Context, idToken string) (*entity.Identity, error)
	GetIdentity(ctx context.Context, uid string) (*entity.Identity, error)
}

// SessionTokens issues and checks the API's own short-lived access tokens.
type SessionTokens interface {
	Issue(ctx context.Context, uid, template string) (string, time.Time, error)
	Verify(token string) (string, error)
}
