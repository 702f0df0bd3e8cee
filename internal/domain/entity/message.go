package entity

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// productInquiryTag prefixes message content that embeds a listing snapshot.
const productInquiryTag = "[[product-inquiry]]"

type Message struct {
	ID             string    `json:"id" firestore:"id"`
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	Content        string    `json:"content" firestore:"content"`
	PostID         string    `json:"post_id,omitempty" firestore:"postId,omitempty"`
	CreatedAt      time.Time `json:"created_at" firestore:"createdAt"`
}

// ProductInquiry is the listing card a buyer sends when contacting a seller.
type ProductInquiry struct {
	PostID string  `json:"post_id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Image  string  `json:"image,omitempty"`
}

func InquiryFromPost(p *Post) ProductInquiry {
	inq := ProductInquiry{PostID: p.ID, Title: p.Title, Price: p.Price}
	if len(p.Images) > 0 {
		inq.Image = p.Images[0]
	}
	return inq
}

func EncodeProductInquiry(inq ProductInquiry) (string, error) {
	raw, err := json.Marshal(inq)
	if err != nil {
		return "", err
	}
	return productInquiryTag + string(raw), nil
}

// DecodeProductInquiry returns the payload when content is a tagged inquiry.
func DecodeProductInquiry(content string) (*ProductInquiry, bool) {
	if !strings.HasPrefix(content, productInquiryTag) {
		return nil, false
	}
	var inq ProductInquiry
	if err := json.Unmarshal([]byte(strings.TrimPrefix(content, productInquiryTag)), &inq); err != nil {
		return nil, false
	}
	return &inq, true
}

// Preview is the text stored as a conversation's last message.
func (m *Message) Preview() string {
	if inq, ok := DecodeProductInquiry(m.Content); ok {
		return "Product inquiry: " + inq.Title
	}
	return m.Content
}

// MessageBefore orders by creation time with the id as tie-break.
func MessageBefore(a, b *Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func SortMessages(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return MessageBefore(msgs[i], msgs[j])
	})
}
