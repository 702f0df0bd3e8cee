package entity

import "strings"

// Role is the coarse permission level derived from a profile's role tags.
type Role string

const (
	RoleUser           Role = "user"
	RoleModerator      Role = "moderator"
	RoleSuperModerator Role = "super-moderator"
)

func (r Role) rank() int {
	switch r {
	case RoleSuperModerator:
		return 2
	case RoleModerator:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r grants everything other grants.
func (r Role) AtLeast(other Role) bool {
	return r.rank() >= other.rank()
}

func (r Role) String() string {
	return string(r)
}

// ParseRole validates a raw role tag from the store.
func ParseRole(tag string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(tag))) {
	case RoleUser:
		return RoleUser, true
	case RoleModerator:
		return RoleModerator, true
	case RoleSuperModerator:
		return RoleSuperModerator, true
	}
	return "", false
}

// HighestRole picks the strongest valid tag. Unknown tags are ignored and an
// empty list resolves to RoleUser.
func HighestRole(tags []string) Role {
	best := RoleUser
	for _, tag := range tags {
		if role, ok := ParseRole(tag); ok && role.rank() > best.rank() {
			best = role
		}
	}
	return best
}

// NormalizeRoles validates tags, drops duplicates and always keeps "user".
func NormalizeRoles(tags []string) ([]string, bool) {
	out := []string{string(RoleUser)}
	seen := map[Role]bool{RoleUser: true}
	for _, tag := range tags {
		role, ok := ParseRole(tag)
		if !ok {
			return nil, false
		}
		if seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, string(role))
	}
	return out, true
}
