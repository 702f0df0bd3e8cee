package repository

import (
	"context"
	"time"

	"classifieds/internal/domain/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entity.Conversation, error)
	// FindBetween returns the oldest conversation between two users, or a
	// NOT_FOUND error.
	FindBetween(ctx context.Context, userA, userB string) (*entity.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*entity.Conversation, error)
	UpdateLastMessage(ctx context.Context, id, text string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type ParticipantRepository interface {
	Create(ctx context.Context, participant *entity.Participant) error
	ListForUser(ctx context.Context, userID string) ([]*entity.Participant, error)
	ListForConversation(ctx context.Context, conversationID string) ([]*entity.Participant, error)
	SetSeen(ctx context.Context, conversationID, userID string, seen bool) error
	DeleteForConversation(ctx context.Context, conversationID string) error
}

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	// ListPage pages from the newest message backwards and returns the page
	// oldest first, together with the conversation's message count.
	ListPage(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
	Latest(ctx context.Context, conversationID string) (*entity.Message, error)
	// Reassign moves every message of one conversation into another.
	Reassign(ctx context.Context, fromConversationID, toConversationID string) (int, error)
	HasInquiry(ctx context.Context, conversationID, postID string) (bool, error)
}
