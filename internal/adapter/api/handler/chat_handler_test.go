package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classifieds/internal/domain/entity"
	"classifieds/internal/usecase"
)

func TestSendMessageAppliesCooldown(t *testing.T) {
	backend := newMemoryBackend()
	h := NewConversationHandler(nil, newTestRegistry(backend), 20, 30)

	c, rec := newContext(http.MethodPost, "/v1/conversations/c1/messages", strings.NewReader(`{"content":"  is it still available?  "}`))
	c.SetParamNames("id")
	c.SetParamValues("c1")
	c.Set("uid", "alice")

	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var msg entity.Message
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &msg))
	assert.Equal(t, "is it still available?", msg.Content)
	assert.Equal(t, "alice", msg.SenderID)

	c, rec = newContext(http.MethodPost, "/v1/conversations/c1/messages", strings.NewReader(`{"content":"hello?"}`))
	c.SetParamNames("id")
	c.SetParamValues("c1")
	c.Set("uid", "alice")

	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "TOO_MANY_REQUESTS", env.Error.Code)
	assert.Contains(t, env.Error.Details, "retry_after_ms")
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	h := NewConversationHandler(nil, newTestRegistry(newMemoryBackend()), 20, 30)

	for _, body := range []string{`{"content":""}`, `{"content":"   "}`} {
		c, rec := newContext(http.MethodPost, "/v1/conversations/c1/messages", strings.NewReader(body))
		c.SetParamNames("id")
		c.SetParamValues("c1")
		c.Set("uid", "alice")

		require.NoError(t, h.SendMessage(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code, body)
	}
}

func TestSetSeenDefaultsToSeen(t *testing.T) {
	backend := newMemoryBackend()
	h := NewConversationHandler(nil, newTestRegistry(backend), 20, 30)

	c, rec := newContext(http.MethodPut, "/v1/conversations/c1/seen", strings.NewReader(`{}`))
	c.SetParamNames("id")
	c.SetParamValues("c1")
	c.Set("uid", "bob")

	require.NoError(t, h.SetSeen(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var state usecase.SeenState
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &state))
	assert.False(t, state.Unread)
	assert.True(t, backend.seen["c1/bob"])

	c, _ = newContext(http.MethodPut, "/v1/conversations/c1/seen", strings.NewReader(`{"seen":false}`))
	c.SetParamNames("id")
	c.SetParamValues("c1")
	c.Set("uid", "bob")

	require.NoError(t, h.SetSeen(c))
	assert.False(t, backend.seen["c1/bob"])
}

func TestSetSeenOnForeignConversation(t *testing.T) {
	h := NewConversationHandler(nil, newTestRegistry(newMemoryBackend()), 20, 30)

	c, rec := newContext(http.MethodPut, "/v1/conversations/c1/seen", strings.NewReader(`{}`))
	c.SetParamNames("id")
	c.SetParamValues("c1")
	c.Set("uid", "mallory")

	require.NoError(t, h.SetSeen(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
