package usecase

import (
	"context"
	"sync"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/internal/observability"
	"classifieds/pkg/logger"
)

// ExpiryCorrector writes lapsed listings back as expired in the background.
// Reads never wait for it; a failed write is retried by the next read that
// sees the same listing.
type ExpiryCorrector struct {
	posts         repository.PostRepository
	notifications repository.NotificationRepository
	timeout       time.Duration
	now           func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

func NewExpiryCorrector(posts repository.PostRepository, notifications repository.NotificationRepository) *ExpiryCorrector {
	return &ExpiryCorrector{
		posts:         posts,
		notifications: notifications,
		timeout:       15 * time.Second,
		now:           time.Now,
		inFlight:      make(map[string]struct{}),
	}
}

// Submit queues one batched correction for the listings not already queued.
func (c *ExpiryCorrector) Submit(lapsed []*entity.Post) {
	c.mu.Lock()
	batch := make([]*entity.Post, 0, len(lapsed))
	for _, p := range lapsed {
		if _, busy := c.inFlight[p.ID]; busy {
			continue
		}
		c.inFlight[p.ID] = struct{}{}
		batch = append(batch, p)
	}
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release(batch)
		c.correct(batch)
	}()
}

func (c *ExpiryCorrector) correct(batch []*entity.Post) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	ids := make([]string, len(batch))
	for i, p := range batch {
		ids[i] = p.ID
	}

	expired, err := c.posts.ExpireLapsed(ctx, ids, c.now())
	if err != nil {
		logger.Warn("ExpiryCorrector: failed to expire %d listings: %v", len(ids), err)
		return
	}
	observability.ExpiryCorrections().Add(float64(len(expired)))

	changed := make(map[string]struct{}, len(expired))
	for _, id := range expired {
		changed[id] = struct{}{}
	}
	for _, p := range batch {
		if _, ok := changed[p.ID]; !ok {
			continue
		}
		notice := entity.PostNotification(entity.NotificationPostExpired, p)
		if err := c.notifications.Create(ctx, notice); err != nil {
			logger.Warn("ExpiryCorrector: failed to notify %s about %s: %v", p.AuthorID, p.ID, err)
		}
	}
	logger.Debug("ExpiryCorrector: expired %d of %d listings", len(expired), len(ids))
}

func (c *ExpiryCorrector) release(batch []*entity.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range batch {
		delete(c.inFlight, p.ID)
	}
}

// Wait blocks until every submitted correction has finished.
func (c *ExpiryCorrector) Wait() {
	c.wg.Wait()
}
