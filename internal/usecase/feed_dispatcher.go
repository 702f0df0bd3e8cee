package usecase

import (
	"context"
	"sync"

	"classifieds/internal/domain/repository"
	"classifieds/internal/observability"
	"classifieds/pkg/logger"
)

// FeedDispatcher routes change-feed inserts to the live views of the users
// they concern. Each user's events are applied in feed order on a goroutine
// of their own, so a slow view never holds up the feed.
type FeedDispatcher struct {
	feed          repository.ChangeFeed
	conversations repository.ConversationRepository
	registry      *SyncRegistry

	mu      sync.RWMutex
	members map[string][]string

	qmu    sync.Mutex
	queues map[string]*viewQueue
	wg     sync.WaitGroup
}

type queuedEvent struct {
	view *ConversationSync
	ev   repository.ChangeEvent
}

type viewQueue struct {
	pending []queuedEvent
}

func NewFeedDispatcher(feed repository.ChangeFeed, conversations repository.ConversationRepository, registry *SyncRegistry) *FeedDispatcher {
	return &FeedDispatcher{
		feed:          feed,
		conversations: conversations,
		registry:      registry,
		members:       make(map[string][]string),
		queues:        make(map[string]*viewQueue),
	}
}

// Run subscribes to the feed and blocks until ctx is done or the feed fails.
func (d *FeedDispatcher) Run(ctx context.Context) error {
	logger.Info("FeedDispatcher: subscribing to message and conversation inserts")
	return d.feed.Subscribe(ctx, d.Dispatch)
}

func (d *FeedDispatcher) Dispatch(ctx context.Context, ev repository.ChangeEvent) {
	observability.RealtimeEvents().WithLabelValues(string(ev.Kind)).Inc()

	var participants []string
	switch ev.Kind {
	case repository.ConversationInserted:
		if ev.Conversation == nil {
			return
		}
		participants = ev.Conversation.ParticipantIDs
		d.remember(ev.Conversation.ID, participants)
	case repository.MessageInserted:
		if ev.Message == nil {
			return
		}
		participants = d.participantsOf(ctx, ev.Message.ConversationID)
	default:
		return
	}

	for _, uid := range participants {
		if view, ok := d.registry.Peek(uid); ok {
			d.enqueue(ctx, uid, queuedEvent{view: view, ev: ev})
		}
	}
}

// enqueue appends to the user's queue and starts a drainer if none runs.
func (d *FeedDispatcher) enqueue(ctx context.Context, userID string, item queuedEvent) {
	d.qmu.Lock()
	defer d.qmu.Unlock()

	if q, running := d.queues[userID]; running {
		q.pending = append(q.pending, item)
		return
	}
	d.queues[userID] = &viewQueue{pending: []queuedEvent{item}}
	d.wg.Add(1)
	go d.drain(ctx, userID)
}

func (d *FeedDispatcher) drain(ctx context.Context, userID string) {
	defer d.wg.Done()
	for {
		d.qmu.Lock()
		q := d.queues[userID]
		if len(q.pending) == 0 {
			delete(d.queues, userID)
			d.qmu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		d.qmu.Unlock()

		item.view.Ingest(ctx, item.ev)
	}
}

// Wait blocks until every dispatched event has been applied.
func (d *FeedDispatcher) Wait() {
	d.wg.Wait()
}

func (d *FeedDispatcher) remember(conversationID string, participants []string) {
	d.mu.Lock()
	d.members[conversationID] = append([]string(nil), participants...)
	d.mu.Unlock()
}

func (d *FeedDispatcher) participantsOf(ctx context.Context, conversationID string) []string {
	d.mu.RLock()
	ids, ok := d.members[conversationID]
	d.mu.RUnlock()
	if ok {
		return ids
	}

	conv, err := d.conversations.GetByID(ctx, conversationID)
	if err != nil {
		logger.Warn("FeedDispatcher: failed to resolve participants of %s: %v", conversationID, err)
		return nil
	}
	d.remember(conv.ID, conv.ParticipantIDs)
	return conv.ParticipantIDs
}
