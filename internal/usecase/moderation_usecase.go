package usecase

import (
	"context"
	"strings"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

type ModerationUseCase struct {
	posts         repository.PostRepository
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewModerationUseCase(posts repository.PostRepository, notifications repository.NotificationRepository) *ModerationUseCase {
	return &ModerationUseCase{
		posts:         posts,
		notifications: notifications,
		now:           time.Now,
	}
}

type RejectPostInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ListByStatus returns the moderation queue, oldest submission first.
func (uc *ModerationUseCase) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*entity.Post, int64, error) {
	if status == "" {
		status = string(entity.PostPending)
	}
	parsed, ok := entity.ParsePostStatus(status)
	if !ok {
		return nil, 0, errors.BadRequest("Unknown listing status", nil)
	}
	return uc.posts.List(ctx, repository.PostFilter{Status: parsed}, repository.SortOldest, limit, offset)
}

// Approve publishes a pending listing for ListingLifetime.
func (uc *ModerationUseCase) Approve(ctx context.Context, moderatorID, postID string) (*entity.Post, error) {
	post, err := uc.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != entity.PostPending {
		return nil, errors.Conflict("Only pending listings can be approved")
	}

	now := uc.now()
	post.Approve(now)
	post.UpdatedAt = now
	if err := uc.posts.Update(ctx, post); err != nil {
		logger.Error("Approve: failed to update %s: %v", postID, err)
		return nil, err
	}

	uc.notify(ctx, entity.NotificationPostApproved, post)
	logger.Info("Approve: %s approved listing %s", moderatorID, postID)
	return post, nil
}

func (uc *ModerationUseCase) Reject(ctx context.Context, moderatorID, postID string, input RejectPostInput) (*entity.Post, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, errors.Validation("Invalid rejection", map[string]string{"reason": "reason is required"})
	}

	post, err := uc.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != entity.PostPending && post.Status != entity.PostApproved {
		return nil, errors.Conflict("Only pending or published listings can be rejected")
	}

	post.Reject(reason)
	post.UpdatedAt = uc.now()
	if err := uc.posts.Update(ctx, post); err != nil {
		logger.Error("Reject: failed to update %s: %v", postID, err)
		return nil, err
	}

	uc.notify(ctx, entity.NotificationPostRejected, post)
	logger.Info("Reject: %s rejected listing %s", moderatorID, postID)
	return post, nil
}

func (uc *ModerationUseCase) notify(ctx context.Context, kind entity.NotificationType, post *entity.Post) {
	notice := entity.PostNotification(kind, post)
	notice.CreatedAt = uc.now()
	if err := uc.notifications.Create(ctx, notice); err != nil {
		logger.Warn("Moderation: failed to send %s notice for %s: %v", kind, post.ID, err)
	}
}
