package usecase

import (
	"context"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

type AuthUseCase struct {
	identity IdentityProvider
	tokens   SessionTokens
	users    *UserUseCase
	roles    *RoleCache
	template string
}

func NewAuthUseCase(identity IdentityProvider, tokens SessionTokens, users *UserUseCase, roles *RoleCache, template string) *AuthUseCase {
	return &AuthUseCase{
		identity: identity,
		tokens:   tokens,
		users:    users,
		roles:    roles,
		template: template,
	}
}

type SessionResult struct {
	AccessToken string          `json:"access_token,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Profile     *entity.Profile `json:"profile"`
	Role        entity.Role     `json:"role"`
}

// SignIn exchanges a provider ID token for a session token, creating the
// profile on first sign-in.
func (uc *AuthUseCase) SignIn(ctx context.Context, idToken string) (*SessionResult, error) {
	if uc.identity == nil {
		return nil, errors.AuthNotReady(nil)
	}

	identity, err := uc.identity.VerifyIDToken(ctx, idToken)
	if err != nil {
		logger.Debug("SignIn: ID token rejected: %v", err)
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}

	profile, err := uc.users.SyncProfile(ctx, identity)
	if err != nil {
		return nil, err
	}

	// A new sign-in starts a new session, so role tags are fetched again.
	uc.roles.Invalidate(identity.UID)
	role := uc.roles.Resolve(ctx, identity.UID)

	token, expiresAt, err := uc.tokens.Issue(ctx, identity.UID, uc.template)
	if err != nil {
		logger.Error("SignIn: failed to issue session token for %s: %v", identity.UID, err)
		return nil, errors.Internal("Failed to issue session token", err)
	}

	return &SessionResult{
		AccessToken: token,
		ExpiresAt:   &expiresAt,
		Profile:     profile,
		Role:        role,
	}, nil
}

// Authenticate accepts either a session token or a provider ID token and
// returns the identity behind it.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*entity.Identity, error) {
	if uid, err := uc.tokens.Verify(token); err == nil {
		return &entity.Identity{UID: uid}, nil
	}

	if uc.identity == nil {
		return nil, errors.AuthNotReady(nil)
	}

	identity, err := uc.identity.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}
	return identity, nil
}

// Me returns the signed-in user's profile and role.
func (uc *AuthUseCase) Me(ctx context.Context, uid string) (*SessionResult, error) {
	profile, err := uc.users.GetProfile(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &SessionResult{
		Profile: profile,
		Role:    uc.roles.Resolve(ctx, uid),
	}, nil
}

// Identity loads the provider record for uid, used when a session token
// carries nothing but the subject.
func (uc *AuthUseCase) Identity(ctx context.Context, uid string) (*entity.Identity, error) {
	if uc.identity == nil {
		return &entity.Identity{UID: uid}, nil
	}
	identity, err := uc.identity.GetIdentity(ctx, uid)
	if err != nil {
		logger.Warn("Identity: provider lookup for %s failed: %v", uid, err)
		return &entity.Identity{UID: uid}, nil
	}
	return identity, nil
}
