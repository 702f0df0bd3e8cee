package handler

import (
	"context"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"classifieds/internal/domain/entity"
	"classifieds/internal/infrastructure/session"
	ws "classifieds/internal/infrastructure/websocket"
	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
	"classifieds/pkg/response"
)

// SessionKey is where the connection's token session lives in Client.Values.
const SessionKey = "session"

const commandTimeout = 15 * time.Second

type WebSocketHandler struct {
	wsManager       *ws.Manager
	tokens          session.TokenIssuer
	template        string
	refreshInterval time.Duration
	ctx             context.Context
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketHandler builds the upgrade endpoint. Sessions started here live
// until the connection closes or ctx ends.
func NewWebSocketHandler(ctx context.Context, wsManager *ws.Manager, tokens session.TokenIssuer, template string, refreshInterval time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:       wsManager,
		tokens:          tokens,
		template:        template,
		refreshInterval: refreshInterval,
		ctx:             ctx,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	identity, ok := c.Get("identity").(*entity.Identity)
	if !ok || identity == nil {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("WebSocket: upgrade failed for %s: %v", identity.UID, err)
		return nil
	}

	client := ws.NewClient(identity.UID, conn)

	sess := session.New(identity, h.tokens, h.template, h.refreshInterval,
		session.OnRefresh(func(token string, expiresAt time.Time) {
			h.wsManager.SendToClient(client, ws.Event{
				Type: ws.EventSessionToken,
				Data: map[string]interface{}{
					"access_token": token,
					"expires_at":   expiresAt.UTC().Format(time.RFC3339),
				},
			})
		}),
	)
	client.Values.Store(SessionKey, sess)

	h.wsManager.Register <- client

	go client.WritePump()
	go client.ReadPump(h.wsManager)

	sess.Start(h.ctx)
	return nil
}

// StopSession ends the token refresh loop of a closed connection.
func StopSession(client *ws.Client) {
	if v, ok := client.Values.Load(SessionKey); ok {
		v.(*session.Session).Stop()
	}
}

// ConversationCommands executes socket commands against the caller's view.
type ConversationCommands struct {
	registry *usecase.SyncRegistry
	manager  *ws.Manager
}

func NewConversationCommands(registry *usecase.SyncRegistry, manager *ws.Manager) *ConversationCommands {
	return &ConversationCommands{
		registry: registry,
		manager:  manager,
	}
}

type conversationRef struct {
	ConversationID string `json:"conversation_id"`
}

type sendCommand struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type seenCommand struct {
	ConversationID string `json:"conversation_id"`
	Seen           *bool  `json:"seen"`
}

// HandleCommand runs on the connection's read loop, so one client's commands
// are applied in the order they were sent.
func (h *ConversationCommands) HandleCommand(ctx context.Context, client *ws.Client, cmd ws.Command) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	data, err := h.execute(ctx, h.registry.Get(client.UserID), cmd)
	if err != nil {
		logger.Debug("WebSocket: %s from %s failed: %v", cmd.Type, client.UserID, err)
		h.manager.SendToClient(client, ws.ErrorEvent(cmd.RequestID, err))
		return
	}
	h.manager.SendToClient(client, ws.Event{Type: cmd.Type, RequestID: cmd.RequestID, Data: data})
}

func (h *ConversationCommands) execute(ctx context.Context, view *usecase.ConversationSync, cmd ws.Command) (interface{}, error) {
	switch cmd.Type {
	case ws.CommandLoadConversations:
		return view.LoadConversations(ctx)

	case ws.CommandMoreConversations:
		return view.LoadMore(ctx)

	case ws.CommandOpenConversation:
		var ref conversationRef
		if err := decodeRef(cmd, &ref); err != nil {
			return nil, err
		}
		return view.OpenConversation(ctx, ref.ConversationID)

	case ws.CommandCloseConversation:
		var ref conversationRef
		if err := decodeRef(cmd, &ref); err != nil {
			return nil, err
		}
		view.CloseConversation(ref.ConversationID)
		return ref, nil

	case ws.CommandOlderMessages:
		var ref conversationRef
		if err := decodeRef(cmd, &ref); err != nil {
			return nil, err
		}
		return view.LoadOlder(ctx, ref.ConversationID)

	case ws.CommandSendMessage:
		var req sendCommand
		if err := cmd.Decode(&req); err != nil {
			return nil, err
		}
		if req.ConversationID == "" {
			return nil, errors.Validation("conversation_id is required", map[string]string{"conversation_id": "conversation_id is required"})
		}
		return view.SendMessage(ctx, req.ConversationID, req.Content)

	case ws.CommandConversationSeen:
		var req seenCommand
		if err := cmd.Decode(&req); err != nil {
			return nil, err
		}
		if req.ConversationID == "" {
			return nil, errors.Validation("conversation_id is required", map[string]string{"conversation_id": "conversation_id is required"})
		}
		seen := req.Seen == nil || *req.Seen
		if err := view.MarkSeen(ctx, req.ConversationID, seen); err != nil {
			return nil, err
		}
		return usecase.SeenState{ConversationID: req.ConversationID, Unread: !seen}, nil

	default:
		return nil, errors.BadRequest("Unknown command: "+cmd.Type, nil)
	}
}

func decodeRef(cmd ws.Command, ref *conversationRef) error {
	if err := cmd.Decode(ref); err != nil {
		return err
	}
	if ref.ConversationID == "" {
		return errors.Validation("conversation_id is required", map[string]string{"conversation_id": "conversation_id is required"})
	}
	return nil
}
