package websocket

import (
	"encoding/json"
	stderrors "errors"

	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

// Client commands
const (
	CommandPing              = "ping"
	CommandLoadConversations = "conversations.load"
	CommandMoreConversations = "conversations.more"
	CommandOpenConversation  = "conversation.open"
	CommandCloseConversation = "conversation.close"
	CommandOlderMessages     = "messages.older"
	CommandSendMessage       = "message.send"
	CommandConversationSeen  = "conversation.seen"
)

// Server events. Command replies reuse the command's type; view changes are
// pushed under the names the conversation view emits.
const (
	EventPong         = "pong"
	EventError        = "error"
	EventSessionToken = "session.token"
)

// Command is what a client sends.
type Command struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the command payload into v.
func (c Command) Decode(v interface{}) error {
	if len(c.Data) == 0 {
		return errors.BadRequest("Missing command data", nil)
	}
	if err := json.Unmarshal(c.Data, v); err != nil {
		return errors.BadRequest("Invalid command data", err)
	}
	return nil
}

// Event is what the server pushes.
type Event struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorBody struct {
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	Fields       map[string]string `json:"fields,omitempty"`
	RetryAfterMs int64             `json:"retry_after_ms,omitempty"`
}

// ErrorEvent converts err into an error event answering requestID.
func ErrorEvent(requestID string, err error) Event {
	body := &ErrorBody{Code: "INTERNAL_ERROR", Message: "Internal server error"}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		body.Code = appErr.Code
		body.Message = appErr.Message
		body.Fields = appErr.Fields
		body.RetryAfterMs = appErr.RetryAfter.Milliseconds()
	}

	return Event{Type: EventError, RequestID: requestID, Error: body}
}

// HandleClientMessage processes incoming WebSocket messages
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		logger.Debug("WebSocket: invalid message from %s: %v", client.UserID, err)
		m.SendToClient(client, ErrorEvent("", errors.BadRequest("Invalid message format", err)))
		return
	}

	if cmd.Type == CommandPing {
		m.SendToClient(client, Event{Type: EventPong, RequestID: cmd.RequestID})
		return
	}

	if m.handler == nil {
		m.SendToClient(client, ErrorEvent(cmd.RequestID, errors.Unavailable("Realtime commands are not available", nil)))
		return
	}

	m.handler.HandleCommand(m.ctx, client, cmd)
}
