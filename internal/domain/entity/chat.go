package entity

import (
	"sort"
	"strings"
	"time"
)

// Conversation is a two-party thread. ParticipantKey is the sorted pair and is
// what duplicate detection groups on.
type Conversation struct {
	ID             string    `json:"id" firestore:"id"`
	ParticipantIDs []string  `json:"participant_ids" firestore:"participantIds"`
	ParticipantKey string    `json:"-" firestore:"participantKey"`
	PostID         string    `json:"post_id,omitempty" firestore:"postId,omitempty"`
	LastMessage    string    `json:"last_message,omitempty" firestore:"lastMessage"`
	LastMessageAt  time.Time `json:"last_message_at" firestore:"lastMessageAt"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}

// Participant carries one user's seen flag for a conversation.
type Participant struct {
	ID             string    `json:"id" firestore:"id"`
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	UserID         string    `json:"user_id" firestore:"userId"`
	Seen           bool      `json:"seen" firestore:"seen"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}

// ParticipantKey returns an order-independent key for a participant set.
func ParticipantKey(ids ...string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// ParticipantRecordID is the deterministic id of a participant row.
func ParticipantRecordID(conversationID, userID string) string {
	return conversationID + "_" + userID
}

func NewConversation(a, b, postID string, now time.Time) *Conversation {
	ids := []string{a, b}
	sort.Strings(ids)
	return &Conversation{
		ParticipantIDs: ids,
		ParticipantKey: ParticipantKey(ids...),
		PostID:         postID,
		LastMessageAt:  now,
		CreatedAt:      now,
	}
}

// Key recomputes the participant key from the stored ids.
func (c *Conversation) Key() string {
	return ParticipantKey(c.ParticipantIDs...)
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the counterpart of userID, or "" for a self thread.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// ActivityAt is the time the conversation list sorts by.
func (c *Conversation) ActivityAt() time.Time {
	if c.LastMessageAt.IsZero() {
		return c.CreatedAt
	}
	return c.LastMessageAt
}
