package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classifieds/internal/domain/entity"
	"classifieds/pkg/errors"
)

func newModeration(posts ...*entity.Post) (*ModerationUseCase, *fakePosts, *fakeNotifications, *fakeClock) {
	store := newFakePosts(posts...)
	notices := &fakeNotifications{}
	clock := newFakeClock()
	uc := NewModerationUseCase(store, notices)
	uc.now = clock.Now
	return uc, store, notices, clock
}

func TestApprovePublishesForLifetime(t *testing.T) {
	now := newFakeClock().Now()
	uc, store, notices, clock := newModeration(pendingPost("p1", "bob", now))

	post, err := uc.Approve(context.Background(), "mod", "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.PostApproved, post.Status)
	require.NotNil(t, post.ExpiresAt)
	assert.Equal(t, clock.Now().Add(entity.ListingLifetime), *post.ExpiresAt)
	assert.Equal(t, entity.PostApproved, store.stored("p1").Status)

	sent := notices.ofType(entity.NotificationPostApproved)
	require.Len(t, sent, 1)
	assert.Equal(t, "bob", sent[0].UserID)
	assert.Equal(t, "/posts/p1", sent[0].Link)

	_, err = uc.Approve(context.Background(), "mod", "p1")
	assert.True(t, errors.Is(err, "CONFLICT"))
}

func TestRejectRequiresReason(t *testing.T) {
	now := newFakeClock().Now()
	uc, store, notices, _ := newModeration(pendingPost("p1", "bob", now))

	_, err := uc.Reject(context.Background(), "mod", "p1", RejectPostInput{Reason: "  "})
	assert.True(t, errors.Is(err, "VALIDATION_ERROR"))
	assert.Equal(t, entity.PostPending, store.stored("p1").Status)
	assert.Empty(t, notices.items)
}

func TestRejectPublishedListing(t *testing.T) {
	now := newFakeClock().Now()
	sold := approvedPost("p2", "bob", now)
	sold.Status = entity.PostSold
	uc, store, notices, _ := newModeration(approvedPost("p1", "bob", now), sold)

	post, err := uc.Reject(context.Background(), "mod", "p1", RejectPostInput{Reason: "Counterfeit goods"})
	require.NoError(t, err)
	assert.Equal(t, entity.PostRejected, post.Status)
	assert.Nil(t, post.ExpiresAt)
	assert.Equal(t, "Counterfeit goods", store.stored("p1").RejectReason)

	sent := notices.ofType(entity.NotificationPostRejected)
	require.Len(t, sent, 1)
	assert.Equal(t, "Counterfeit goods", sent[0].Content["reason"])

	_, err = uc.Reject(context.Background(), "mod", "p2", RejectPostInput{Reason: "late"})
	assert.True(t, errors.Is(err, "CONFLICT"))
}

func TestModerationQueueOldestFirst(t *testing.T) {
	now := newFakeClock().Now()
	older := pendingPost("p1", "bob", now.Add(-2*time.Hour))
	newer := pendingPost("p2", "carol", now.Add(-time.Hour))
	uc, _, _, _ := newModeration(newer, older, approvedPost("p3", "bob", now))

	posts, total, err := uc.ListByStatus(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, posts, 2)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "p2", posts[1].ID)

	_, _, err = uc.ListByStatus(context.Background(), "draft", 10, 0)
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}
