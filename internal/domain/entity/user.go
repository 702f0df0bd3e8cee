package entity

import "time"

// Identity is what the identity provider vouches for about a signed-in user.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type Profile struct {
	ID          string    `json:"id" firestore:"id"`
	Email       string    `json:"email,omitempty" firestore:"email"`
	DisplayName string    `json:"display_name" firestore:"displayName"`
	AvatarURL   string    `json:"avatar_url,omitempty" firestore:"avatarUrl"`
	Roles       []string  `json:"roles" firestore:"roles"`
	LocationID  string    `json:"location_id,omitempty" firestore:"locationId,omitempty"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (p *Profile) Role() Role {
	return HighestRole(p.Roles)
}

// ProfileFromIdentity builds the profile created on first sign-in.
func ProfileFromIdentity(id *Identity) *Profile {
	return &Profile{
		ID:          id.UID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		AvatarURL:   id.AvatarURL,
		Roles:       []string{string(RoleUser)},
	}
}

// AnonymousProfile stands in for a participant whose profile no longer exists.
func AnonymousProfile(id string) *Profile {
	return &Profile{
		ID:          id,
		DisplayName: "Unknown user",
		Roles:       []string{string(RoleUser)},
	}
}
