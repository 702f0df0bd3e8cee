package usecase

import (
	"context"
	"sync"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

type ResolverState int

const (
	ResolverUninitialized ResolverState = iota
	ResolverLoading
	ResolverResolved
	ResolverErrored
)

func (s ResolverState) String() string {
	switch s {
	case ResolverLoading:
		return "loading"
	case ResolverResolved:
		return "resolved"
	case ResolverErrored:
		return "errored"
	default:
		return "uninitialized"
	}
}

// RoleResolver fetches a user's role tags once and answers permission
// questions from the cached result. A failed fetch degrades to RoleUser.
type RoleResolver struct {
	userID   string
	profiles repository.ProfileRepository

	mu    sync.Mutex
	state ResolverState
	role  Role
	done  chan struct{}
}

// Role is re-exported so callers of the resolver need not import entity.
type Role = entity.Role

func NewRoleResolver(userID string, profiles repository.ProfileRepository) *RoleResolver {
	return &RoleResolver{
		userID:   userID,
		profiles: profiles,
		role:     entity.RoleUser,
	}
}

func (r *RoleResolver) State() ResolverState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Resolve fetches the role on first call; later calls wait for or reuse it.
func (r *RoleResolver) Resolve(ctx context.Context) Role {
	r.mu.Lock()
	switch r.state {
	case ResolverResolved, ResolverErrored:
		role := r.role
		r.mu.Unlock()
		return role
	case ResolverLoading:
		done := r.done
		r.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return entity.RoleUser
		}
		if r.State() == ResolverUninitialized {
			return r.Resolve(ctx)
		}
		return r.Role()
	}
	r.state = ResolverLoading
	r.done = make(chan struct{})
	r.mu.Unlock()

	role, state := r.fetch(ctx)

	r.mu.Lock()
	r.role = role
	r.state = state
	close(r.done)
	r.mu.Unlock()
	return role
}

func (r *RoleResolver) fetch(ctx context.Context) (Role, ResolverState) {
	profile, err := r.profiles.GetByID(ctx, r.userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return entity.RoleUser, ResolverResolved
		}
		// The caller went away; the next caller fetches again.
		if ctx.Err() != nil {
			return entity.RoleUser, ResolverUninitialized
		}
		logger.Warn("RoleResolver: role fetch for %s failed, using least privilege: %v", r.userID, err)
		return entity.RoleUser, ResolverErrored
	}
	return profile.Role(), ResolverResolved
}

// Role returns the current role without fetching.
func (r *RoleResolver) Role() Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.role
}

func (r *RoleResolver) IsModerator() bool {
	return r.Role().AtLeast(entity.RoleModerator)
}

func (r *RoleResolver) IsSuperModerator() bool {
	return r.Role() == entity.RoleSuperModerator
}

// CanEditRoleOf allows super-moderators to edit anyone but another
// super-moderator.
func (r *RoleResolver) CanEditRoleOf(targetRoles []string) bool {
	return CanEditRole(r.Role(), targetRoles)
}

func CanEditRole(actor Role, targetRoles []string) bool {
	if actor != entity.RoleSuperModerator {
		return false
	}
	return entity.HighestRole(targetRoles) != entity.RoleSuperModerator
}

// RoleCache keeps one resolver per user for the life of the process.
type RoleCache struct {
	profiles repository.ProfileRepository

	mu        sync.Mutex
	resolvers map[string]*RoleResolver
}

func NewRoleCache(profiles repository.ProfileRepository) *RoleCache {
	return &RoleCache{
		profiles:  profiles,
		resolvers: make(map[string]*RoleResolver),
	}
}

func (c *RoleCache) For(userID string) *RoleResolver {
	c.mu.Lock()
	defer c.mu.Unlock()

	resolver, ok := c.resolvers[userID]
	if !ok {
		resolver = NewRoleResolver(userID, c.profiles)
		c.resolvers[userID] = resolver
	}
	return resolver
}

// Resolve is shorthand for For(userID).Resolve(ctx).
func (c *RoleCache) Resolve(ctx context.Context, userID string) Role {
	return c.For(userID).Resolve(ctx)
}

// Invalidate forces the next lookup for userID to refetch.
func (c *RoleCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.resolvers, userID)
}
