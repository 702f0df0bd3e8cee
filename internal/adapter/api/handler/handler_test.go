package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"classifieds/internal/adapter/api"
	"classifieds/internal/domain/entity"
	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/response"
)

// memoryBackend keeps conversations and messages for a handful of users.
type memoryBackend struct {
	mu       sync.Mutex
	convs    map[string]*entity.Conversation
	messages map[string][]*entity.Message
	seen     map[string]bool
	seenErr  error
	seq      int
	base     time.Time
}

func newMemoryBackend() *memoryBackend {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	b := &memoryBackend{
		convs:    make(map[string]*entity.Conversation),
		messages: make(map[string][]*entity.Message),
		seen:     make(map[string]bool),
		base:     base,
	}
	b.convs["c1"] = &entity.Conversation{ID: "c1", ParticipantIDs: []string{"alice", "bob"}, CreatedAt: base}
	for i := 1; i <= 3; i++ {
		b.messages["c1"] = append(b.messages["c1"], &entity.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: "c1",
			SenderID:       "bob",
			Content:        fmt.Sprintf("hello %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return b
}

func (b *memoryBackend) member(userID, conversationID string) (*entity.Conversation, error) {
	conv, ok := b.convs[conversationID]
	if !ok || !conv.HasParticipant(userID) {
		return nil, errors.NotFound("Conversation", nil)
	}
	return conv, nil
}

func (b *memoryBackend) ListConversations(ctx context.Context, userID string, offset, limit int) ([]*usecase.ConversationSummary, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*usecase.ConversationSummary
	for _, conv := range b.convs {
		if conv.HasParticipant(userID) {
			out = append(out, &usecase.ConversationSummary{Conversation: conv, Unread: !b.seen[conv.ID+"/"+userID]})
		}
	}
	return out, len(out), nil
}

func (b *memoryBackend) GetSummary(ctx context.Context, userID, conversationID string) (*usecase.ConversationSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conv, err := b.member(userID, conversationID)
	if err != nil {
		return nil, err
	}
	return &usecase.ConversationSummary{Conversation: conv}, nil
}

func (b *memoryBackend) LoadMessages(ctx context.Context, userID, conversationID string, offset, limit int) ([]*entity.Message, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.member(userID, conversationID); err != nil {
		return nil, 0, err
	}
	all := b.messages[conversationID]
	end := len(all) - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return append([]*entity.Message(nil), all[start:end]...), int64(len(all)), nil
}

func (b *memoryBackend) SendMessage(ctx context.Context, userID, conversationID, text string) (*entity.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.member(userID, conversationID); err != nil {
		return nil, err
	}
	b.seq++
	msg := &entity.Message{
		ID:             fmt.Sprintf("sent%d", b.seq),
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        strings.TrimSpace(text),
		CreatedAt:      b.base.Add(time.Hour + time.Duration(b.seq)*time.Second),
	}
	b.messages[conversationID] = append(b.messages[conversationID], msg)
	return msg, nil
}

func (b *memoryBackend) SetSeen(ctx context.Context, userID, conversationID string, seen bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seenErr != nil {
		return b.seenErr
	}
	if _, err := b.member(userID, conversationID); err != nil {
		return err
	}
	b.seen[conversationID+"/"+userID] = seen
	return nil
}

func (b *memoryBackend) MergeDuplicates(ctx context.Context, userID string) (*usecase.MergeResult, error) {
	return &usecase.MergeResult{}, nil
}

func newTestRegistry(backend usecase.ConversationBackend) *usecase.SyncRegistry {
	return usecase.NewSyncRegistry(func(userID string) *usecase.ConversationSync {
		return usecase.NewConversationSync(userID, backend, usecase.SyncOptions{Cooldown: 2 * time.Second}, nil)
	}, time.Hour)
}

func newContext(method, target string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = api.NewValidator()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
