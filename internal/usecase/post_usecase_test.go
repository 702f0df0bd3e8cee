package usecase

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classifieds/internal/domain/entity"
	"classifieds/pkg/errors"
)

type postFixture struct {
	posts   *fakePosts
	notices *fakeNotifications
	files   *fakeFiles
	clock   *fakeClock
	expiry  *ExpiryCorrector
	uc      *PostUseCase
}

func newPostFixture(posts ...*entity.Post) *postFixture {
	f := &postFixture{
		posts:   newFakePosts(posts...),
		notices: &fakeNotifications{},
		files:   &fakeFiles{},
		clock:   newFakeClock(),
	}
	catalog := newFakeCatalog()
	f.expiry = NewExpiryCorrector(f.posts, f.notices)
	f.expiry.now = f.clock.Now
	f.uc = NewPostUseCase(f.posts, fakeCategories{catalog}, fakeLocations{catalog}, f.files, f.expiry)
	f.uc.now = f.clock.Now
	return f
}

func lapsedPost(id, author string, now time.Time) *entity.Post {
	p := approvedPost(id, author, now.Add(-8*24*time.Hour))
	return p
}

func pendingPost(id, author string, now time.Time) *entity.Post {
	p := approvedPost(id, author, now)
	p.Status = entity.PostPending
	p.ExpiresAt = nil
	return p
}

func validUpdate() UpdatePostInput {
	return UpdatePostInput{
		Name:        "Áo khoác mùa đông",
		Price:       250000,
		CategoryID:  "cat1",
		LocationID:  "loc1",
		Description: "Mặc hai lần, còn rất mới, size M",
	}
}

func TestListPostsPresentsLapsedAsExpired(t *testing.T) {
	now := newFakeClock().Now()
	f := newPostFixture(lapsedPost("p1", "bob", now), approvedPost("p2", "carol", now.Add(-time.Hour)))

	posts, total, err := f.uc.ListPosts(context.Background(), ListPostsQuery{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, entity.PostApproved, posts[0].Status)
	assert.Equal(t, "p1", posts[1].ID)
	assert.Equal(t, entity.PostExpired, posts[1].Status)

	f.expiry.Wait()
	assert.Equal(t, entity.PostExpired, f.posts.stored("p1").Status)
	assert.Equal(t, entity.PostApproved, f.posts.stored("p2").Status)

	notices := f.notices.ofType(entity.NotificationPostExpired)
	require.Len(t, notices, 1)
	assert.Equal(t, "bob", notices[0].UserID)
	assert.Equal(t, "p1", notices[0].Content["post_id"])
}

func TestListPostsApprovedFilterDropsLapsed(t *testing.T) {
	now := newFakeClock().Now()
	f := newPostFixture(lapsedPost("p1", "bob", now), approvedPost("p2", "carol", now))

	posts, total, err := f.uc.ListPosts(context.Background(), ListPostsQuery{Status: "approved", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "p2", posts[0].ID)

	f.expiry.Wait()
	assert.Equal(t, entity.PostExpired, f.posts.stored("p1").Status)
}

func TestExpiryWriteBackSkipsListingsSoldMeanwhile(t *testing.T) {
	now := newFakeClock().Now()
	f := newPostFixture(lapsedPost("p1", "bob", now), lapsedPost("p2", "bob", now))
	f.posts.expireGate = make(chan struct{})
	ctx := context.Background()

	_, _, err := f.uc.ListPosts(ctx, ListPostsQuery{Limit: 10})
	require.NoError(t, err)

	sold, err := f.uc.MarkSold(ctx, "bob", "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.PostSold, sold.Status)

	close(f.posts.expireGate)
	f.expiry.Wait()

	assert.Equal(t, entity.PostSold, f.posts.stored("p1").Status)
	assert.Equal(t, entity.PostExpired, f.posts.stored("p2").Status)
	notices := f.notices.ofType(entity.NotificationPostExpired)
	require.Len(t, notices, 1)
	assert.Equal(t, "p2", notices[0].Content["post_id"])
}

func TestListPostsKeywordIgnoresDiacritics(t *testing.T) {
	now := newFakeClock().Now()
	table := approvedPost("p2", "carol", now)
	table.Title = "Bàn gỗ"
	f := newPostFixture(approvedPost("p1", "bob", now), table)

	posts, total, err := f.uc.ListPosts(context.Background(), ListPostsQuery{Keyword: "AO KHOAC", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)

	posts, _, err = f.uc.ListPosts(context.Background(), ListPostsQuery{Keyword: "ban go", Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p2", posts[0].ID)
}

func TestListPostsRejectsUnknownStatus(t *testing.T) {
	f := newPostFixture()
	_, _, err := f.uc.ListPosts(context.Background(), ListPostsQuery{Status: "archived"})
	assert.True(t, errors.Is(err, "BAD_REQUEST"))
}

func TestGetPostHidesUnpublished(t *testing.T) {
	now := newFakeClock().Now()
	f := newPostFixture(pendingPost("p1", "bob", now))
	ctx := context.Background()

	_, err := f.uc.GetPost(ctx, "p1", "alice", false)
	assert.True(t, errors.IsNotFound(err))

	post, err := f.uc.GetPost(ctx, "p1", "bob", false)
	require.NoError(t, err)
	assert.Equal(t, entity.PostPending, post.Status)

	_, err = f.uc.GetPost(ctx, "p1", "mod", true)
	assert.NoError(t, err)
}

func TestUpdatePostResubmits(t *testing.T) {
	now := newFakeClock().Now()
	f := newPostFixture(approvedPost("p1", "bob", now))
	ctx := context.Background()

	post, err := f.uc.UpdatePost(ctx, "bob", "p1", validUpdate())
	require.NoError(t, err)
	assert.Equal(t, entity.PostPending, post.Status)
	assert.Nil(t, post.ExpiresAt)

	stored := f.posts.stored("p1")
	assert.Equal(t, "Áo khoác mùa đông", stored.Title)
	assert.Equal(t, entity.PostPending, stored.Status)
}

func TestUpdatePostRules(t *testing.T) {
	now := newFakeClock().Now()
	sold := approvedPost("p2", "bob", now)
	sold.Status = entity.PostSold
	f := newPostFixture(approvedPost("p1", "bob", now), sold)
	ctx := context.Background()

	_, err := f.uc.UpdatePost(ctx, "alice", "p1", validUpdate())
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	_, err = f.uc.UpdatePost(ctx, "bob", "p2", validUpdate())
	assert.True(t, errors.Is(err, "CONFLICT"))

	input := validUpdate()
	input.CategoryID = "nope"
	_, err = f.uc.UpdatePost(ctx, "bob", "p1", input)
	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Fields, "category_id")
	assert.NotContains(t, appErr.Fields, "location_id")
}

func TestMarkSold(t *testing.T) {
	now := newFakeClock().Now()
	f := newPostFixture(approvedPost("p1", "bob", now), pendingPost("p2", "bob", now))
	ctx := context.Background()

	_, err := f.uc.MarkSold(ctx, "bob", "p2")
	assert.True(t, errors.Is(err, "CONFLICT"))

	post, err := f.uc.MarkSold(ctx, "bob", "p1")
	require.NoError(t, err)
	assert.Equal(t, entity.PostSold, post.Status)
	assert.Equal(t, entity.PostSold, f.posts.stored("p1").Status)
}

func TestDeletePost(t *testing.T) {
	now := newFakeClock().Now()
	f := newPostFixture(approvedPost("p1", "bob", now))
	ctx := context.Background()

	err := f.uc.DeletePost(ctx, "alice", "p1", false)
	assert.True(t, errors.Is(err, "FORBIDDEN"))

	require.NoError(t, f.uc.DeletePost(ctx, "mod", "p1", true))
	_, err = f.posts.GetByID(ctx, "p1")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, []string{"https://files.test/p1.jpg"}, f.files.deleted)
}
