package usecase

import (
	"context"
	"sync"
	"time"

	"classifieds/pkg/logger"
)

// SyncFactory builds the view for a user on first use.
type SyncFactory func(userID string) *ConversationSync

// SyncRegistry holds one ConversationSync per active user.
type SyncRegistry struct {
	factory SyncFactory
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*ConversationSync
}

func NewSyncRegistry(factory SyncFactory, idleTTL time.Duration) *SyncRegistry {
	return &SyncRegistry{
		factory: factory,
		idleTTL: idleTTL,
		now:     time.Now,
		views:   make(map[string]*ConversationSync),
	}
}

// Get returns the user's view, creating it if needed.
func (r *SyncRegistry) Get(userID string) *ConversationSync {
	r.mu.Lock()
	defer r.mu.Unlock()

	view, ok := r.views[userID]
	if !ok {
		view = r.factory(userID)
		r.views[userID] = view
	}
	return view
}

// Peek returns the user's view only if one is live.
func (r *SyncRegistry) Peek(userID string) (*ConversationSync, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.views[userID]
	return view, ok
}

func (r *SyncRegistry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, userID)
}

func (r *SyncRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// EvictIdle drops views unused for longer than the idle TTL.
func (r *SyncRegistry) EvictIdle() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for userID, view := range r.views {
		if view.IdleSince(cutoff) {
			delete(r.views, userID)
			evicted++
		}
	}
	return evicted
}

// StartJanitor runs EvictIdle every interval until ctx is done.
func (r *SyncRegistry) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := r.EvictIdle(); n > 0 {
					logger.Debug("SyncRegistry: evicted %d idle conversation views", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
