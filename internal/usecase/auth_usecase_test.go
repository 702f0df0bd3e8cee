package usecase

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classifieds/internal/domain/entity"
	"classifieds/pkg/errors"
)

type stubIdentity struct {
	tokens map[string]*entity.Identity
}

func (s *stubIdentity) VerifyIDToken(ctx context.Context, idToken string) (*entity.Identity, error) {
	if id, ok := s.tokens[idToken]; ok {
		return id, nil
	}
	return nil, stderrors.New("token rejected")
}

func (s *stubIdentity) GetIdentity(ctx context.Context, uid string) (*entity.Identity, error) {
	for _, id := range s.tokens {
		if id.UID == uid {
			return id, nil
		}
	}
	return nil, stderrors.New("no such user")
}

type stubTokens struct {
	expires time.Time
	fail    bool
}

func (s *stubTokens) Issue(ctx context.Context, uid, template string) (string, time.Time, error) {
	if s.fail {
		return "", time.Time{}, stderrors.New("signing key missing")
	}
	return "session-" + template + "-" + uid, s.expires, nil
}

func (s *stubTokens) Verify(token string) (string, error) {
	if uid, ok := strings.CutPrefix(token, "session-marketplace-"); ok {
		return uid, nil
	}
	return "", stderrors.New("not a session token")
}

func newAuthFixture(identity IdentityProvider) (*AuthUseCase, *fakeProfiles, *stubTokens) {
	profiles := newFakeProfiles(&entity.Profile{ID: "mod", DisplayName: "Mod", Roles: []string{"user"}})
	roles := NewRoleCache(profiles)
	users := NewUserUseCase(profiles, fakeLocations{newFakeCatalog()}, roles)
	tokens := &stubTokens{expires: newFakeClock().Now().Add(time.Hour)}
	return NewAuthUseCase(identity, tokens, users, roles, "marketplace"), profiles, tokens
}

func TestSignInCreatesProfileAndSession(t *testing.T) {
	identity := &stubIdentity{tokens: map[string]*entity.Identity{
		"id-alice": {UID: "alice", Email: "alice@example.com", DisplayName: "Alice"},
	}}
	uc, profiles, tokens := newAuthFixture(identity)

	result, err := uc.SignIn(context.Background(), "id-alice")
	require.NoError(t, err)
	assert.Equal(t, "session-marketplace-alice", result.AccessToken)
	assert.Equal(t, tokens.expires, *result.ExpiresAt)
	assert.Equal(t, entity.RoleUser, result.Role)
	assert.Equal(t, "Alice", result.Profile.DisplayName)

	stored, err := profiles.GetByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, stored.Roles)
}

func TestSignInRefetchesRole(t *testing.T) {
	identity := &stubIdentity{tokens: map[string]*entity.Identity{"id-mod": {UID: "mod"}}}
	uc, profiles, _ := newAuthFixture(identity)
	ctx := context.Background()

	me, err := uc.Me(ctx, "mod")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, me.Role)

	profiles.items["mod"].Roles = []string{"user", "moderator"}
	result, err := uc.SignIn(ctx, "id-mod")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleModerator, result.Role)
}

func TestSignInFailures(t *testing.T) {
	uc, _, _ := newAuthFixture(nil)
	_, err := uc.SignIn(context.Background(), "id-alice")
	assert.True(t, errors.Is(err, "AUTH_NOT_READY"))

	uc, _, tokens := newAuthFixture(&stubIdentity{tokens: map[string]*entity.Identity{"id-alice": {UID: "alice"}}})
	_, err = uc.SignIn(context.Background(), "forged")
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))

	tokens.fail = true
	_, err = uc.SignIn(context.Background(), "id-alice")
	assert.True(t, errors.Is(err, "INTERNAL_ERROR"))
}

func TestAuthenticate(t *testing.T) {
	identity := &stubIdentity{tokens: map[string]*entity.Identity{"id-bob": {UID: "bob", Email: "bob@example.com"}}}
	uc, _, _ := newAuthFixture(identity)
	ctx := context.Background()

	id, err := uc.Authenticate(ctx, "session-marketplace-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UID)

	id, err = uc.Authenticate(ctx, "id-bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", id.Email)

	_, err = uc.Authenticate(ctx, "garbage")
	assert.True(t, errors.Is(err, "UNAUTHORIZED"))

	uc, _, _ = newAuthFixture(nil)
	id, err = uc.Authenticate(ctx, "session-marketplace-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.UID)

	_, err = uc.Authenticate(ctx, "id-bob")
	assert.True(t, errors.Is(err, "AUTH_NOT_READY"))
}
