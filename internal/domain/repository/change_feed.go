package repository

import (
	"context"

	"classifieds/internal/domain/entity"
)

type ChangeKind string

const (
	MessageInserted      ChangeKind = "message.inserted"
	ConversationInserted ChangeKind = "conversation.inserted"
)

// ChangeEvent is one insert pushed by the store. Exactly one of Message or
// Conversation is set, matching Kind.
type ChangeEvent struct {
	Kind         ChangeKind
	Message      *entity.Message
	Conversation *entity.Conversation
}

// ChangeFeed delivers inserts that happen after Subscribe is called. Subscribe
// blocks until ctx is done or the feed fails.
type ChangeFeed interface {
	Subscribe(ctx context.Context, handle func(context.Context, ChangeEvent)) error
}
