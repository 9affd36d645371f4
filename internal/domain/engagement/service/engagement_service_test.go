package service

import (
	"context"
	"errors"
	"testing"

	engagementModel "blog_engine/internal/domain/engagement/model"
	"blog_engine/internal/domain/engagement/repository"
	postModel "blog_engine/internal/domain/post/model"
	userModel "blog_engine/internal/domain/user/model"
	userService "blog_engine/internal/domain/user/service"
	"blog_engine/internal/pkg/testdb"
	"blog_engine/pkg/metrics"
	"blog_engine/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserLookup is a mock of UserLookup
type MockUserLookup struct {
	mock.Mock
}

func (m *MockUserLookup) GetByUsername(ctx context.Context, username string) (*userModel.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*userModel.User), args.Error(1)
}

// MockPostReader is a mock of PostReader
type MockPostReader struct {
	mock.Mock
}

func (m *MockPostReader) ByAuthor(ctx context.Context, authorID uint, page utils.Pagination) (*utils.PageResult, *postModel.AuthorTotals, error) {
	args := m.Called(ctx, authorID, page)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*utils.PageResult), args.Get(1).(*postModel.AuthorTotals), args.Error(2)
}

func (m *MockPostReader) Decorate(posts []postModel.Post) {
	m.Called(posts)
}

func newUser(id uint, name string) *userModel.User {
	u := &userModel.User{Username: name}
	u.ID = id
	return u
}

type fixture struct {
	svc   EngagementService
	repo  repository.EngagementRepository
	users *MockUserLookup
	posts *MockPostReader
	post  postModel.Post
}

func setup(t *testing.T) *fixture {
	db := testdb.Open(t,
		&userModel.User{}, &userModel.Profile{}, &postModel.Category{}, &postModel.Post{},
		&engagementModel.Like{}, &engagementModel.Bookmark{}, &engagementModel.Follow{},
	)
	alice := userModel.User{Username: "alice", Email: "alice@example.com", Password: "x"}
	require.NoError(t, db.Create(&alice).Error)
	post := postModel.Post{Title: "Hello", Slug: "hello", Content: "body", AuthorID: alice.ID, Status: postModel.StatusPublished}
	require.NoError(t, db.Omit("Author", "Category", "Tags").Create(&post).Error)

	f := &fixture{
		repo:  repository.NewEngagementRepository(db),
		users: new(MockUserLookup),
		posts: new(MockPostReader),
		post:  post,
	}
	f.svc = NewEngagementService(f.repo, f.users, f.posts, metrics.NewMetricsCollector())
	return f
}

func TestToggleLike(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	r, err := f.svc.ToggleLike(ctx, 7, f.post.ID)
	require.NoError(t, err)
	assert.True(t, r.Liked)
	assert.Equal(t, int64(1), r.TotalLikes)

	r, err = f.svc.ToggleLike(ctx, 8, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.TotalLikes)

	// 再次切换回到原状态
	r, err = f.svc.ToggleLike(ctx, 7, f.post.ID)
	require.NoError(t, err)
	assert.False(t, r.Liked)
	assert.Equal(t, int64(1), r.TotalLikes)

	liked, err := f.repo.HasLiked(ctx, f.post.ID, 7)
	require.NoError(t, err)
	assert.False(t, liked)

	_, err = f.svc.ToggleLike(ctx, 7, 9999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestToggleBookmark(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	r, err := f.svc.ToggleBookmark(ctx, 7, f.post.ID)
	require.NoError(t, err)
	assert.True(t, r.Bookmarked)

	r, err = f.svc.ToggleBookmark(ctx, 7, f.post.ID)
	require.NoError(t, err)
	assert.False(t, r.Bookmarked)

	_, err = f.svc.ToggleBookmark(ctx, 7, 9999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestToggleFollow(t *testing.T) {
	ctx := context.Background()

	t.Run("self by name never reaches storage", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.ToggleFollow(ctx, 1, "alice", "alice")
		assert.ErrorIs(t, err, ErrSelfFollow)
		f.users.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
	})

	t.Run("self by id", func(t *testing.T) {
		f := setup(t)
		f.users.On("GetByUsername", ctx, "alice").Return(newUser(1, "alice"), nil)
		_, err := f.svc.ToggleFollow(ctx, 1, "", "alice")
		assert.ErrorIs(t, err, ErrSelfFollow)

		followers, _, err := f.repo.FollowCounts(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, followers)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := setup(t)
		f.users.On("GetByUsername", ctx, "ghost").Return(nil, userService.ErrUserNotFound)
		_, err := f.svc.ToggleFollow(ctx, 2, "bob", "ghost")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("follow then unfollow", func(t *testing.T) {
		f := setup(t)
		f.users.On("GetByUsername", ctx, "alice").Return(newUser(1, "alice"), nil)

		r, err := f.svc.ToggleFollow(ctx, 2, "bob", "alice")
		require.NoError(t, err)
		assert.True(t, r.Following)
		assert.Equal(t, int64(1), r.FollowersCount)

		ids, err := f.repo.FollowerIDs(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint{2}, ids)

		r, err = f.svc.ToggleFollow(ctx, 2, "bob", "alice")
		require.NoError(t, err)
		assert.False(t, r.Following)
		assert.Zero(t, r.FollowersCount)
	})

	t.Run("lookup error is passed through", func(t *testing.T) {
		f := setup(t)
		boom := errors.New("boom")
		f.users.On("GetByUsername", ctx, "alice").Return(nil, boom)
		_, err := f.svc.ToggleFollow(ctx, 2, "bob", "alice")
		assert.ErrorIs(t, err, boom)
	})
}

func TestBookmarks(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.posts.On("Decorate", mock.Anything).Return()

	page, err := f.svc.Bookmarks(ctx, 7, utils.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Equal(t, BookmarksPageSize, page.Limit)

	_, err = f.svc.ToggleBookmark(ctx, 7, f.post.ID)
	require.NoError(t, err)

	page, err = f.svc.Bookmarks(ctx, 7, utils.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	posts := page.List.([]postModel.Post)
	require.Len(t, posts, 1)
	assert.Equal(t, f.post.ID, posts[0].ID)
	f.posts.AssertNumberOfCalls(t, "Decorate", 2)
}

func TestAuthorPage(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	alice := newUser(1, "alice")
	f.users.On("GetByUsername", ctx, "alice").Return(alice, nil)
	f.users.On("GetByUsername", ctx, "ghost").Return(nil, userService.ErrUserNotFound)

	listing := utils.NewPageResult([]postModel.Post{f.post}, 1, utils.Pagination{Page: 1, Limit: AuthorPageSize})
	totals := &postModel.AuthorTotals{TotalPosts: 1, TotalViews: 10, TotalLikes: 3}
	f.posts.On("ByAuthor", ctx, uint(1), utils.Pagination{Page: 1, Limit: AuthorPageSize}).Return(&listing, totals, nil)

	_, err := f.svc.ToggleFollow(ctx, 2, "bob", "alice")
	require.NoError(t, err)

	page, err := f.svc.AuthorPage(ctx, "alice", 2, utils.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, "alice", page.Author.Username)
	assert.Equal(t, int64(1), page.TotalPosts)
	assert.Equal(t, int64(10), page.TotalViews)
	assert.Equal(t, int64(3), page.TotalLikes)
	assert.Equal(t, int64(1), page.FollowersCount)
	assert.Zero(t, page.FollowingCount)
	assert.True(t, page.IsFollowing)

	anonymous, err := f.svc.AuthorPage(ctx, "alice", 0, utils.Pagination{})
	require.NoError(t, err)
	assert.False(t, anonymous.IsFollowing)

	_, err = f.svc.AuthorPage(ctx, "ghost", 0, utils.Pagination{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
