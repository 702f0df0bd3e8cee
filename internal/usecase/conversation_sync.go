package usecase

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/internal/infrastructure/ratelimit"
	"classifieds/internal/observability"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

// Events pushed from a view to the user's connections.
const (
	SyncConversationAdded   = "conversation.added"
	SyncConversationUpdated = "conversation.updated"
	SyncMessageAdded        = "message.added"
	SyncSeenChanged         = "conversation.seen"
)

const recentMessageCap = 512

type SyncEvent struct {
	Type string
	Data interface{}
}

type SeenState struct {
	ConversationID string `json:"conversation_id"`
	Unread         bool   `json:"unread"`
}

// ConversationBackend is the remote side a view talks to.
type ConversationBackend interface {
	ListConversations(ctx context.Context, userID string, offset, limit int) ([]*ConversationSummary, int, error)
	GetSummary(ctx context.Context, userID, conversationID string) (*ConversationSummary, error)
	LoadMessages(ctx context.Context, userID, conversationID string, offset, limit int) ([]*entity.Message, int64, error)
	SendMessage(ctx context.Context, userID, conversationID, text string) (*entity.Message, error)
	SetSeen(ctx context.Context, userID, conversationID string, seen bool) error
	MergeDuplicates(ctx context.Context, userID string) (*MergeResult, error)
}

type ConversationPage struct {
	Conversations []*ConversationSummary `json:"conversations"`
	Total         int                    `json:"total"`
	HasMore       bool                   `json:"has_more"`
}

type MessagePage struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []*entity.Message `json:"messages"`
	Total          int64             `json:"total"`
	HasOlder       bool              `json:"has_older"`
}

type ConversationView struct {
	ConversationPage
	Open *MessagePage `json:"open,omitempty"`
}

type SyncOptions struct {
	ConversationPageSize int
	MessagePageSize      int
	Cooldown             time.Duration
	Now                  func() time.Time
}

type openConversation struct {
	id       string
	messages []*entity.Message
	total    int64
}

// seenTransition is one optimistic seen-flag change awaiting confirmation.
type seenTransition struct {
	conversationID string
	seq            uint64
	previousUnread bool
	nextUnread     bool
	tracked        bool
}

// ConversationSync is one user's in-memory view of their conversations and
// of the open conversation's messages.
type ConversationSync struct {
	userID      string
	backend     ConversationBackend
	limiter     *ratelimit.RateLimiter
	pageSize    int
	msgPageSize int
	now         func() time.Time
	notify      func(SyncEvent)
	pages       singleflight.Group

	mu            sync.Mutex
	conversations []*ConversationSummary
	total         int
	open          *openConversation
	seenSeq       uint64
	pendingSeen   map[string]uint64
	recent        map[string]struct{}
	recentOrder   []string
	lastUsed      time.Time
}

func NewConversationSync(userID string, backend ConversationBackend, opts SyncOptions, notify func(SyncEvent)) *ConversationSync {
	if opts.ConversationPageSize <= 0 {
		opts.ConversationPageSize = 20
	}
	if opts.MessagePageSize <= 0 {
		opts.MessagePageSize = 30
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notify == nil {
		notify = func(SyncEvent) {}
	}

	return &ConversationSync{
		userID:      userID,
		backend:     backend,
		limiter:     ratelimit.NewRateLimiter(ratelimit.WithPolicy(ratelimit.ActionSendMessage, ratelimit.Cooldown(opts.Cooldown)), ratelimit.WithClock(opts.Now)),
		pageSize:    opts.ConversationPageSize,
		msgPageSize: opts.MessagePageSize,
		now:         opts.Now,
		notify:      notify,
		pendingSeen: make(map[string]uint64),
		recent:      make(map[string]struct{}),
		lastUsed:    opts.Now(),
	}
}

func (s *ConversationSync) UserID() string {
	return s.userID
}

func (s *ConversationSync) touch() {
	s.lastUsed = s.now()
}

// IdleSince reports whether the view has not been used since cutoff.
func (s *ConversationSync) IdleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed.Before(cutoff)
}

// LoadConversations merges duplicate conversations and then replaces the list
// with the first page.
func (s *ConversationSync) LoadConversations(ctx context.Context) (*ConversationPage, error) {
	if result, err := s.backend.MergeDuplicates(ctx, s.userID); err != nil {
		logger.Warn("LoadConversations: duplicate merge for %s failed: %v", s.userID, err)
	} else if result.Merged > 0 {
		logger.Info("LoadConversations: merged %d duplicate conversations for %s", result.Merged, s.userID)
	}

	items, total, err := s.backend.ListConversations(ctx, s.userID, 0, s.pageSize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.conversations = items
	s.total = total
	return s.pageLocked(), nil
}

// LoadMore appends the next page of conversations.
func (s *ConversationSync) LoadMore(ctx context.Context) (*ConversationPage, error) {
	s.mu.Lock()
	offset := len(s.conversations)
	s.touch()
	s.mu.Unlock()

	v, err, _ := s.pages.Do("conversations:"+strconv.Itoa(offset), func() (interface{}, error) {
		items, total, err := s.backend.ListConversations(ctx, s.userID, offset, s.pageSize)
		if err != nil {
			return nil, err
		}
		return &ConversationPage{Conversations: items, Total: total}, nil
	})
	if err != nil {
		return nil, err
	}
	page := v.(*ConversationPage)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range page.Conversations {
		if s.findSummaryLocked(item.ID) == nil {
			s.conversations = append(s.conversations, item)
		}
	}
	SortSummaries(s.conversations)
	s.total = page.Total
	return s.pageLocked(), nil
}

func (s *ConversationSync) pageLocked() *ConversationPage {
	items := make([]*ConversationSummary, len(s.conversations))
	for i, sum := range s.conversations {
		cp := *sum
		items[i] = &cp
	}
	return &ConversationPage{
		Conversations: items,
		Total:         s.total,
		HasMore:       len(items) < s.total,
	}
}

func (s *ConversationSync) findSummaryLocked(conversationID string) *ConversationSummary {
	for _, sum := range s.conversations {
		if sum.ID == conversationID {
			return sum
		}
	}
	return nil
}

func (s *ConversationSync) loadMessagePage(ctx context.Context, conversationID string, offset int) ([]*entity.Message, int64, error) {
	type result struct {
		msgs  []*entity.Message
		total int64
	}

	v, err, _ := s.pages.Do("messages:"+conversationID+":"+strconv.Itoa(offset), func() (interface{}, error) {
		msgs, total, err := s.backend.LoadMessages(ctx, s.userID, conversationID, offset, s.msgPageSize)
		if err != nil {
			return nil, err
		}
		return result{msgs: msgs, total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	r := v.(result)
	return r.msgs, r.total, nil
}

// OpenConversation loads the newest page of messages, makes the conversation
// the open one and marks it seen.
func (s *ConversationSync) OpenConversation(ctx context.Context, conversationID string) (*MessagePage, error) {
	msgs, total, err := s.loadMessagePage(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	merged, _ := mergeMessages(nil, msgs)
	s.open = &openConversation{id: conversationID, messages: merged, total: total}
	for _, m := range merged {
		s.rememberLocked(m.ID)
	}
	s.touch()
	page := s.openPageLocked()
	s.mu.Unlock()

	if err := s.MarkSeen(ctx, conversationID, true); err != nil {
		logger.Warn("OpenConversation: failed to mark %s seen for %s: %v", conversationID, s.userID, err)
	}
	return page, nil
}

func (s *ConversationSync) CloseConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open != nil && (conversationID == "" || s.open.id == conversationID) {
		s.open = nil
	}
	s.touch()
}

// LoadOlder fetches the page before the oldest loaded message of the open
// conversation.
func (s *ConversationSync) LoadOlder(ctx context.Context, conversationID string) (*MessagePage, error) {
	s.mu.Lock()
	if s.open == nil || s.open.id != conversationID {
		s.mu.Unlock()
		return nil, errors.BadRequest("Conversation is not open", nil)
	}
	offset := len(s.open.messages)
	s.touch()
	s.mu.Unlock()

	msgs, total, err := s.loadMessagePage(ctx, conversationID, offset)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil || s.open.id != conversationID {
		return &MessagePage{ConversationID: conversationID, Messages: msgs, Total: total}, nil
	}
	s.open.messages, _ = mergeMessages(s.open.messages, msgs)
	s.open.total = total
	for _, m := range msgs {
		s.rememberLocked(m.ID)
	}

	page := s.openPageLocked()
	page.Messages = msgs
	return page, nil
}

func (s *ConversationSync) openPageLocked() *MessagePage {
	if s.open == nil {
		return nil
	}
	msgs := append([]*entity.Message(nil), s.open.messages...)
	return &MessagePage{
		ConversationID: s.open.id,
		Messages:       msgs,
		Total:          s.open.total,
		HasOlder:       int64(len(msgs)) < s.open.total,
	}
}

// SendMessage enforces the per-user cooldown, stores the message and applies
// it to the view.
func (s *ConversationSync) SendMessage(ctx context.Context, conversationID, text string) (*entity.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Validation("Message cannot be empty", map[string]string{"content": "Message cannot be empty"})
	}

	if allowed, wait := s.limiter.Allow(s.userID, ratelimit.ActionSendMessage); !allowed {
		observability.CooldownRejections().Inc()
		return nil, errors.TooManyRequests("Please wait before sending another message", wait)
	}

	msg, err := s.backend.SendMessage(ctx, s.userID, conversationID, text)
	if err != nil {
		s.limiter.Refund(s.userID, ratelimit.ActionSendMessage)
		return nil, err
	}

	s.mu.Lock()
	s.touch()
	isNew, updated := s.applyMessageLocked(msg)
	s.mu.Unlock()

	if isNew {
		s.notify(SyncEvent{Type: SyncMessageAdded, Data: msg})
	}
	if updated != nil {
		s.notify(SyncEvent{Type: SyncConversationUpdated, Data: updated})
	}
	return msg, nil
}

// applyMessageLocked inserts msg into the open conversation and refreshes the
// summary. It returns false for a message id already known to the view.
func (s *ConversationSync) applyMessageLocked(msg *entity.Message) (bool, *ConversationSummary) {
	if _, ok := s.recent[msg.ID]; ok {
		return false, nil
	}
	if s.open != nil && s.open.id == msg.ConversationID {
		merged, added := mergeMessages(s.open.messages, []*entity.Message{msg})
		if added == 0 {
			s.rememberLocked(msg.ID)
			return false, nil
		}
		s.open.messages = merged
		s.open.total++
	}
	s.rememberLocked(msg.ID)

	sum := s.findSummaryLocked(msg.ConversationID)
	if sum == nil || msg.CreatedAt.Before(sum.ActivityAt()) {
		return true, nil
	}
	conv := *sum.Conversation
	conv.LastMessage = msg.Preview()
	conv.LastMessageAt = msg.CreatedAt
	sum.Conversation = &conv
	SortSummaries(s.conversations)

	cp := *sum
	return true, &cp
}

func (s *ConversationSync) rememberLocked(id string) {
	if _, ok := s.recent[id]; ok {
		return
	}
	s.recent[id] = struct{}{}
	s.recentOrder = append(s.recentOrder, id)
	if len(s.recentOrder) > recentMessageCap {
		oldest := s.recentOrder[0]
		s.recentOrder = s.recentOrder[1:]
		delete(s.recent, oldest)
	}
}

// MarkSeen flips the unread flag locally, confirms it remotely and reverts it
// if the remote write fails and no later change superseded it.
func (s *ConversationSync) MarkSeen(ctx context.Context, conversationID string, seen bool) error {
	tr := s.applySeen(conversationID, seen)
	if tr.tracked && tr.previousUnread != tr.nextUnread {
		s.notify(SyncEvent{Type: SyncSeenChanged, Data: SeenState{ConversationID: conversationID, Unread: tr.nextUnread}})
	}

	if err := s.backend.SetSeen(ctx, s.userID, conversationID, seen); err != nil {
		if s.revertSeen(tr) {
			observability.SeenRollbacks().Inc()
			s.notify(SyncEvent{Type: SyncSeenChanged, Data: SeenState{ConversationID: conversationID, Unread: tr.previousUnread}})
		}
		return err
	}

	s.commitSeen(tr)
	return nil
}

func (s *ConversationSync) applySeen(conversationID string, seen bool) seenTransition {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	s.seenSeq++
	tr := seenTransition{
		conversationID: conversationID,
		seq:            s.seenSeq,
		nextUnread:     !seen,
	}
	s.pendingSeen[conversationID] = tr.seq

	if sum := s.findSummaryLocked(conversationID); sum != nil {
		tr.tracked = true
		tr.previousUnread = sum.Unread
		sum.Unread = tr.nextUnread
	}
	return tr
}

func (s *ConversationSync) commitSeen(tr seenTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingSeen[tr.conversationID] == tr.seq {
		delete(s.pendingSeen, tr.conversationID)
	}
}

// revertSeen restores the previous flag only while tr is still the latest
// transition for its conversation.
func (s *ConversationSync) revertSeen(tr seenTransition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingSeen[tr.conversationID] != tr.seq {
		return false
	}
	delete(s.pendingSeen, tr.conversationID)

	if !tr.tracked {
		return false
	}
	if sum := s.findSummaryLocked(tr.conversationID); sum != nil {
		sum.Unread = tr.previousUnread
		return true
	}
	return false
}

// Ingest applies one change-feed insert to the view.
func (s *ConversationSync) Ingest(ctx context.Context, ev repository.ChangeEvent) {
	switch ev.Kind {
	case repository.MessageInserted:
		if ev.Message != nil {
			s.ingestMessage(ctx, ev.Message)
		}
	case repository.ConversationInserted:
		if ev.Conversation != nil {
			s.ingestConversation(ctx, ev.Conversation)
		}
	}
}

func (s *ConversationSync) ingestMessage(ctx context.Context, msg *entity.Message) {
	s.mu.Lock()
	isNew, updated := s.applyMessageLocked(msg)
	isOpen := s.open != nil && s.open.id == msg.ConversationID
	listed := s.findSummaryLocked(msg.ConversationID) != nil
	s.mu.Unlock()

	if !isNew {
		observability.DuplicateMessages().Inc()
		return
	}

	s.notify(SyncEvent{Type: SyncMessageAdded, Data: msg})
	if updated != nil {
		s.notify(SyncEvent{Type: SyncConversationUpdated, Data: updated})
	}

	if !listed {
		s.addSummary(ctx, msg.ConversationID)
	}

	if msg.SenderID == s.userID {
		return
	}
	// The sender flagged the conversation unseen; an open conversation has
	// been read, so confirm it.
	if err := s.MarkSeen(ctx, msg.ConversationID, isOpen); err != nil {
		logger.Warn("Ingest: failed to mark %s seen=%t for %s: %v", msg.ConversationID, isOpen, s.userID, err)
	}
}

func (s *ConversationSync) ingestConversation(ctx context.Context, conv *entity.Conversation) {
	if !conv.HasParticipant(s.userID) {
		return
	}

	s.mu.Lock()
	listed := s.findSummaryLocked(conv.ID) != nil
	s.mu.Unlock()

	if !listed {
		s.addSummary(ctx, conv.ID)
	}
}

func (s *ConversationSync) addSummary(ctx context.Context, conversationID string) {
	sum, err := s.backend.GetSummary(ctx, s.userID, conversationID)
	if err != nil {
		logger.Warn("Ingest: failed to load conversation %s for %s: %v", conversationID, s.userID, err)
		return
	}

	s.mu.Lock()
	if s.findSummaryLocked(conversationID) != nil {
		s.mu.Unlock()
		return
	}
	s.conversations = append(s.conversations, sum)
	s.total++
	SortSummaries(s.conversations)
	cp := *sum
	s.mu.Unlock()

	s.notify(SyncEvent{Type: SyncConversationAdded, Data: &cp})
}

// Snapshot returns a copy of the current view.
func (s *ConversationSync) Snapshot() *ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &ConversationView{
		ConversationPage: *s.pageLocked(),
		Open:             s.openPageLocked(),
	}
}

// mergeMessages combines two message lists without duplicate ids, ordered by
// creation time. It returns the merged list and how many incoming messages
// were new.
func mergeMessages(existing, incoming []*entity.Message) ([]*entity.Message, int) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]*entity.Message, 0, len(existing)+len(incoming))
	for _, m := range existing {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}

	added := 0
	for _, m := range incoming {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
		added++
	}

	entity.SortMessages(out)
	return out, added
}
