package usecase

import (
	"context"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
)

type NotificationUseCase struct {
	notifications repository.NotificationRepository
}

func NewNotificationUseCase(notifications repository.NotificationRepository) *NotificationUseCase {
	return &NotificationUseCase{notifications: notifications}
}

func (uc *NotificationUseCase) List(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, int64, error) {
	return uc.notifications.ListByUser(ctx, userID, limit, offset)
}

func (uc *NotificationUseCase) MarkRead(ctx context.Context, userID, id string) error {
	return uc.notifications.MarkRead(ctx, userID, id)
}

func (uc *NotificationUseCase) MarkAllRead(ctx context.Context, userID string) error {
	return uc.notifications.MarkAllRead(ctx, userID)
}

func (uc *NotificationUseCase) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return uc.notifications.CountUnread(ctx, userID)
}
