package entity

import "time"

type PostStatus string

const (
	PostPending  PostStatus = "pending"
	PostApproved PostStatus = "approved"
	PostRejected PostStatus = "rejected"
	PostExpired  PostStatus = "expired"
	PostSold     PostStatus = "sold"
)

// ListingLifetime is how long an approved listing stays visible.
const ListingLifetime = 7 * 24 * time.Hour

func ParsePostStatus(s string) (PostStatus, bool) {
	switch st := PostStatus(s); st {
	case PostPending, PostApproved, PostRejected, PostExpired, PostSold:
		return st, true
	}
	return "", false
}

type Post struct {
	ID           string     `json:"id" firestore:"id"`
	Title        string     `json:"title" firestore:"title"`
	Description  string     `json:"description" firestore:"description"`
	Price        float64    `json:"price" firestore:"price"`
	Images       []string   `json:"images" firestore:"images"`
	CategoryID   string     `json:"category_id" firestore:"categoryId"`
	LocationID   string     `json:"location_id" firestore:"locationId"`
	AuthorID     string     `json:"author_id" firestore:"authorId"`
	Status       PostStatus `json:"status" firestore:"status"`
	RejectReason string     `json:"reject_reason,omitempty" firestore:"rejectReason,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" firestore:"expiresAt"`
	CreatedAt    time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time  `json:"updated_at" firestore:"updatedAt"`
}

// IsLapsed reports an approved listing whose expiry has passed.
func (p *Post) IsLapsed(now time.Time) bool {
	return p.Status == PostApproved && p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

func (p *Post) Approve(now time.Time) {
	expires := now.Add(ListingLifetime)
	p.Status = PostApproved
	p.ExpiresAt = &expires
	p.RejectReason = ""
}

func (p *Post) Reject(reason string) {
	p.Status = PostRejected
	p.ExpiresAt = nil
	p.RejectReason = reason
}

// Resubmit sends an edited listing back to moderation.
func (p *Post) Resubmit() {
	p.Status = PostPending
	p.ExpiresAt = nil
	p.RejectReason = ""
}
