package handler

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/usecase"
	"classifieds/pkg/response"
	"classifieds/pkg/utils"
)

// ConversationHandler is the REST side of messaging. Sends and seen changes go
// through the caller's live view so the cooldown and pushes apply the same way
// as over the socket.
type ConversationHandler struct {
	conversationService *usecase.ConversationService
	registry            *usecase.SyncRegistry
	pageSize            int
	messagePageSize     int
}

func NewConversationHandler(conversationService *usecase.ConversationService, registry *usecase.SyncRegistry, pageSize, messagePageSize int) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		registry:            registry,
		pageSize:            pageSize,
		messagePageSize:     messagePageSize,
	}
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type setSeenRequest struct {
	Seen *bool `json:"seen"`
}

func (h *ConversationHandler) ListConversations(c echo.Context) error {
	uid := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c, h.pageSize)

	items, total, err := h.conversationService.ListConversations(c.Request().Context(), uid, pagination.Offset, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, items, int64(total), pagination.PageSize, pagination.Offset)
}

// GetMessages pages backwards from the newest message; offset counts messages
// already loaded.
func (h *ConversationHandler) GetMessages(c echo.Context) error {
	uid := c.Get("uid").(string)
	id := c.Param("id")
	pagination := utils.GetPaginationParams(c, h.messagePageSize)

	msgs, total, err := h.conversationService.LoadMessages(c.Request().Context(), uid, id, pagination.Offset, pagination.PageSize)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, &usecase.MessagePage{
		ConversationID: id,
		Messages:       msgs,
		Total:          total,
		HasOlder:       int64(pagination.Offset+len(msgs)) < total,
	})
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	msg, err := h.registry.Get(uid).SendMessage(c.Request().Context(), c.Param("id"), req.Content)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, msg)
}

// SetSeen marks the conversation seen, or unseen with {"seen": false}.
func (h *ConversationHandler) SetSeen(c echo.Context) error {
	var req setSeenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	seen := req.Seen == nil || *req.Seen

	uid := c.Get("uid").(string)
	id := c.Param("id")

	if err := h.registry.Get(uid).MarkSeen(c.Request().Context(), id, seen); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, usecase.SeenState{ConversationID: id, Unread: !seen})
}

func (h *ConversationHandler) MergeDuplicates(c echo.Context) error {
	uid := c.Get("uid").(string)

	result, err := h.conversationService.MergeDuplicates(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, result)
}
