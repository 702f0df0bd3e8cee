package entity

import "time"

type NotificationType string

const (
	NotificationPostApproved NotificationType = "post_approved"
	NotificationPostRejected NotificationType = "post_rejected"
	NotificationPostExpired  NotificationType = "post_expired"
)

type Notification struct {
	ID        string                 `json:"id" firestore:"id"`
	UserID    string                 `json:"user_id" firestore:"userId"`
	Type      NotificationType       `json:"type" firestore:"type"`
	Read      bool                   `json:"read" firestore:"read"`
	Content   map[string]interface{} `json:"content,omitempty" firestore:"content,omitempty"`
	Link      string                 `json:"link,omitempty" firestore:"link,omitempty"`
	CreatedAt time.Time              `json:"created_at" firestore:"createdAt"`
}

// PostNotification builds the notice sent to a listing's author.
func PostNotification(kind NotificationType, post *Post) *Notification {
	content := map[string]interface{}{
		"post_id": post.ID,
		"title":   post.Title,
	}
	if kind == NotificationPostRejected && post.RejectReason != "" {
		content["reason"] = post.RejectReason
	}
	return &Notification{
		UserID:  post.AuthorID,
		Type:    kind,
		Content: content,
		Link:    "/posts/" + post.ID,
	}
}
