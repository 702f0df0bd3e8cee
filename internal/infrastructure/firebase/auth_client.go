package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"classifieds/internal/domain/entity"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyIDToken checks a Firebase ID token and returns the identity it carries.
func (f *FirebaseAuthClient) VerifyIDToken(ctx context.Context, idToken string) (*entity.Identity, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	identity := &entity.Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		identity.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		identity.AvatarURL = picture
	}

	return identity, nil
}

// GetIdentity loads the provider's current record for uid.
func (f *FirebaseAuthClient) GetIdentity(ctx context.Context, uid string) (*entity.Identity, error) {
	user, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	return &entity.Identity{
		UID:         user.UID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.PhotoURL,
	}, nil
}

// Ping checks that the provider answers. A lookup of a uid that cannot exist
// coming back as not-found counts as reachable.
func (f *FirebaseAuthClient) Ping(ctx context.Context) error {
	_, err := f.client.GetUser(ctx, "health-probe")
	if err == nil || auth.IsUserNotFound(err) {
		return nil
	}
	return err
}
