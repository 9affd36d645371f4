package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	engagementModel "blog_engine/internal/domain/engagement/model"
	"blog_engine/internal/domain/post/model"
	userModel "blog_engine/internal/domain/user/model"
	"blog_engine/internal/pkg/content"
	"blog_engine/internal/pkg/testdb"
	baseModel "blog_engine/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *gorm.DB {
	return testdb.Open(t,
		&userModel.User{}, &userModel.Profile{},
		&model.Post{}, &model.Category{}, &model.Tag{}, &model.Comment{},
		&engagementModel.Like{}, &engagementModel.Bookmark{},
	)
}

func createUser(t *testing.T, db *gorm.DB, name string) *userModel.User {
	u := &userModel.User{Username: name, Email: name + "@example.com", Password: "x"}
	require.NoError(t, db.Create(u).Error)
	require.NoError(t, db.Create(&userModel.Profile{UserID: u.ID, Image: userModel.DefaultAvatar}).Error)
	return u
}

type postOpt func(*model.Post)

func createPost(t *testing.T, repo PostRepository, author uint, title string, hoursAgo int, opts ...postOpt) *model.Post {
	p := &model.Post{
		BaseModel:     baseModel.BaseModel{CreatedAt: base.Add(-time.Duration(hoursAgo) * time.Hour)},
		Title:         title,
		Slug:          fmt.Sprintf("%s-%d", title, hoursAgo),
		Content:       "content of " + title,
		AuthorID:      author,
		Status:        model.StatusPublished,
		AllowComments: true,
		ReadingTime:   1,
	}
	for _, o := range opts {
		o(p)
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func withTags(tags ...model.Tag) postOpt {
	return func(p *model.Post) { p.Tags = tags }
}

func withCategory(c *model.Category) postOpt {
	return func(p *model.Post) { p.CategoryID = &c.ID }
}

func withStatus(s string) postOpt {
	return func(p *model.Post) { p.Status = s }
}

func withViews(n int64) postOpt {
	return func(p *model.Post) { p.ViewsCount = n }
}

func like(t *testing.T, db *gorm.DB, postID, userID uint, at time.Time) {
	require.NoError(t, db.Create(&engagementModel.Like{PostID: postID, UserID: userID, CreatedAt: at}).Error)
}

func ids(posts []model.Post) []uint {
	out := make([]uint, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestList_TagAndCategoryIntersection(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := createUser(t, db, "alice")

	tags, err := repo.GetOrCreateTags(ctx, []string{"Go", "Web"})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	backend, err := repo.GetOrCreateCategory(ctx, "Backend", author.ID)
	require.NoError(t, err)

	a := createPost(t, repo, author.ID, "post-a", 3, withTags(tags...), withCategory(backend))
	b := createPost(t, repo, author.ID, "post-b", 2, withTags(tags[0]))
	createPost(t, repo, author.ID, "post-c", 1, withTags(tags...), withStatus(model.StatusDraft))

	posts, total, err := repo.List(ctx, NewPostQuery().Published().TagSlug("go"), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []uint{b.ID, a.ID}, ids(posts))

	posts, total, err = repo.List(ctx, NewPostQuery().Published().TagSlug("go").CategorySlug("backend"), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []uint{a.ID}, ids(posts))
	assert.Len(t, posts[0].Tags, 2)
	require.NotNil(t, posts[0].Category)
	assert.Equal(t, "Backend", posts[0].Category.Name)

	posts, _, err = repo.List(ctx, NewPostQuery().Published().TagID(tags[1].ID).CategoryID(backend.ID), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID}, ids(posts))
}

func TestList_SearchAndSort(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bobby")

	p1 := createPost(t, repo, alice.ID, "Learning Golang", 30, withViews(5))
	p2 := createPost(t, repo, alice.ID, "Cooking pasta", 20, withViews(50))
	p3 := createPost(t, repo, bob.ID, "Gardening", 10, withViews(1))

	posts, _, err := repo.List(ctx, NewPostQuery().Published().Search("GOLANG"), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{p1.ID}, ids(posts))

	posts, _, err = repo.List(ctx, NewPostQuery().Published().Search("bobby"), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, posts)

	posts, _, err = repo.List(ctx, NewPostQuery().Published().Search("bobby").IncludeAuthorName(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{p3.ID}, ids(posts))

	posts, _, err = repo.List(ctx, NewPostQuery().Published().Sort("bogus"), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{p3.ID, p2.ID, p1.ID}, ids(posts))

	posts, _, err = repo.List(ctx, NewPostQuery().Published().Sort(SortOldest), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{p1.ID, p2.ID, p3.ID}, ids(posts))

	posts, _, err = repo.List(ctx, NewPostQuery().Published().Sort(SortPopular), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{p2.ID, p1.ID, p3.ID}, ids(posts))

	// p1 最近被点赞，p3 没有点赞
	like(t, db, p2.ID, bob.ID, base.Add(-5*time.Hour))
	like(t, db, p1.ID, bob.ID, base.Add(-1*time.Hour))
	posts, _, err = repo.List(ctx, NewPostQuery().Published().Sort(SortTrending), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{p1.ID, p2.ID, p3.ID}, ids(posts))
	assert.Equal(t, int64(1), posts[0].LikesCount)

	posts, total, err := repo.List(ctx, NewPostQuery().Published(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []uint{p2.ID}, ids(posts))
}

func TestList_SearchMatchesWildcardsLiterally(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	underscored := createUser(t, db, "under_score")

	createPost(t, repo, alice.ID, "plain title one", 3)
	createPost(t, repo, alice.ID, "plain title two", 2)
	discount := createPost(t, repo, alice.ID, "Save 50% today", 1)
	snake := createPost(t, repo, underscored.ID, "snake_case naming", 4)

	cases := []struct {
		q    string
		want []uint
	}{
		{"_", []uint{snake.ID}},
		{"%", []uint{discount.ID}},
		{"50%", []uint{discount.ID}},
		{"t_tle", nil},
		{`\`, nil},
	}
	for _, tc := range cases {
		posts, total, err := repo.List(ctx, NewPostQuery().Published().Search(tc.q), 0, 10)
		require.NoError(t, err, tc.q)
		assert.Equal(t, int64(len(tc.want)), total, tc.q)
		if tc.want == nil {
			assert.Empty(t, posts, tc.q)
		} else {
			assert.Equal(t, tc.want, ids(posts), tc.q)
		}
	}

	// 作者名中的下划线同样按字面匹配
	posts, _, err := repo.List(ctx, NewPostQuery().Published().Search("unde_").IncludeAuthorName(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
	posts, _, err = repo.List(ctx, NewPostQuery().Published().Search("under_").IncludeAuthorName(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{snake.ID}, ids(posts))
}

func TestList_AuthorAnyStatus(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	draft := createPost(t, repo, alice.ID, "draft", 2, withStatus(model.StatusDraft))
	pub := createPost(t, repo, alice.ID, "published", 1)
	createPost(t, repo, bob.ID, "other", 1)

	posts, total, err := repo.List(ctx, NewPostQuery().Author(alice.ID), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []uint{pub.ID, draft.ID}, ids(posts))

	posts, _, err = repo.List(ctx, NewPostQuery().Author(alice.ID).Status(model.StatusDraft, "bogus"), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{draft.ID}, ids(posts))
}

func TestTrendingAndRelated(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	cat, err := repo.GetOrCreateCategory(ctx, "Travel", alice.ID)
	require.NoError(t, err)

	quiet := createPost(t, repo, alice.ID, "quiet", 5, withViews(100), withCategory(cat))
	busy := createPost(t, repo, alice.ID, "busy", 6, withViews(1), withCategory(cat))
	viewed := createPost(t, repo, alice.ID, "viewed", 7, withViews(10))
	old := createPost(t, repo, alice.ID, "old", 24*30, withCategory(cat))

	like(t, db, busy.ID, bob.ID, base)
	require.NoError(t, db.Create(&model.Comment{PostID: busy.ID, AuthorID: bob.ID, Content: "nice", IsApproved: true, Level: 1}).Error)
	require.NoError(t, db.Create(&model.Comment{PostID: quiet.ID, AuthorID: bob.ID, Content: "hidden", IsApproved: false, Level: 1}).Error)

	posts, err := repo.Trending(ctx, base.AddDate(0, 0, -7), 5)
	require.NoError(t, err)
	assert.Equal(t, []uint{busy.ID, quiet.ID, viewed.ID}, ids(posts))
	assert.Equal(t, int64(2), posts[0].Engagement)
	assert.Equal(t, int64(0), posts[1].CommentsCount)

	related, err := repo.Related(ctx, busy, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint{quiet.ID, old.ID}, ids(related))

	related, err = repo.Related(ctx, viewed, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint{quiet.ID, busy.ID}, ids(related))
}

func TestIncrementViewsAndDelete(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	tags, err := repo.GetOrCreateTags(ctx, []string{"go"})
	require.NoError(t, err)
	p := createPost(t, repo, alice.ID, "doomed", 1, withTags(tags...))

	require.NoError(t, repo.IncrementViews(ctx, p.ID))
	require.NoError(t, repo.IncrementViews(ctx, p.ID))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewsCount)

	like(t, db, p.ID, alice.ID, base)
	require.NoError(t, db.Create(&engagementModel.Bookmark{PostID: p.ID, UserID: alice.ID}).Error)
	require.NoError(t, db.Create(&model.Comment{PostID: p.ID, AuthorID: alice.ID, Content: "c", IsApproved: true, Level: 1}).Error)

	require.NoError(t, repo.Delete(ctx, p.ID))
	for _, table := range []string{"comments", "likes", "bookmarks", "post_tags", "posts"} {
		var n int64
		require.NoError(t, db.Table(table).Count(&n).Error)
		assert.Zero(t, n, table)
	}
	// 标签保留
	var tagCount int64
	require.NoError(t, db.Model(&model.Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(1), tagCount)

	assert.ErrorIs(t, repo.Delete(ctx, p.ID), gorm.ErrRecordNotFound)
}

func TestUpdate_ReplacesTags(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	first, err := repo.GetOrCreateTags(ctx, []string{"one", "two"})
	require.NoError(t, err)
	p := createPost(t, repo, alice.ID, "tagged", 1, withTags(first...))

	second, err := repo.GetOrCreateTags(ctx, []string{"Two", "three"})
	require.NoError(t, err)
	assert.Equal(t, first[1].ID, second[0].ID, "existing tag reused by slug")

	p.Tags = second
	p.Title = "retitled"
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "retitled", got.Title)
	names := []string{}
	for _, tag := range got.Tags {
		names = append(names, tag.Slug)
	}
	assert.ElementsMatch(t, []string{"two", "three"}, names)
}

func TestGetOrCreateTags_LongTransliteratedName(t *testing.T) {
	repo := NewPostRepository(setupDB(t))
	ctx := context.Background()
	name := strings.Repeat("中文", 25)

	tags, err := repo.GetOrCreateTags(ctx, []string{name})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.LessOrEqual(t, len(tags[0].Slug), content.MaxTagSlugLength)

	again, err := repo.GetOrCreateTags(ctx, []string{name})
	require.NoError(t, err)
	assert.Equal(t, tags[0].ID, again[0].ID)
}

func TestSlugExistsAndDuplicate(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	createPost(t, repo, alice.ID, "same", 1)

	ok, err := repo.SlugExists(ctx, "same-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.SlugExists(ctx, "same-2")
	require.NoError(t, err)
	assert.False(t, ok)

	dup := &model.Post{Title: "x", Slug: "same-1", Content: "c", AuthorID: alice.ID, Status: model.StatusDraft}
	assert.ErrorIs(t, repo.Create(ctx, dup), gorm.ErrDuplicatedKey)
}

func TestSidebarAggregates(t *testing.T) {
	db := setupDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	createUser(t, db, "carol")

	tags, err := repo.GetOrCreateTags(ctx, []string{"go", "rust", "unused"})
	require.NoError(t, err)
	tech, err := repo.GetOrCreateCategory(ctx, "Tech", alice.ID)
	require.NoError(t, err)
	_, err = repo.GetOrCreateCategory(ctx, "Empty", alice.ID)
	require.NoError(t, err)

	p := createPost(t, repo, alice.ID, "a", 3, withTags(tags[0], tags[1]), withCategory(tech), withViews(7))
	createPost(t, repo, bob.ID, "b", 2, withTags(tags[0]), withViews(3),
		func(p *model.Post) { p.IsFeatured = true })
	createPost(t, repo, bob.ID, "c", 1, withTags(tags[2]), withStatus(model.StatusDraft), withViews(100),
		func(p *model.Post) { p.IsFeatured = true })
	like(t, db, p.ID, bob.ID, base)
	require.NoError(t, db.Create(&model.Comment{PostID: p.ID, AuthorID: bob.ID, Content: "hi", IsApproved: true, Level: 1}).Error)

	cats, err := repo.CategoriesWithPosts(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Tech", cats[0].Name)
	assert.Equal(t, int64(1), cats[0].PostCount)

	popular, err := repo.PopularTags(ctx, 10)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "go", popular[0].Slug)
	assert.Equal(t, int64(2), popular[0].PostCount)

	featured, err := repo.Featured(ctx)
	require.NoError(t, err)
	require.NotNil(t, featured)
	assert.Equal(t, "b", featured.Title)

	stats, err := repo.SiteStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.SiteStats{TotalPosts: 2, TotalAuthors: 2, TotalComments: 1, TotalViews: 10}, stats)

	totals, err := repo.AuthorTotals(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, &model.AuthorTotals{TotalPosts: 1, TotalViews: 7, TotalLikes: 1}, totals)

	cat, err := repo.GetCategoryBySlug(ctx, "tech")
	require.NoError(t, err)
	assert.Equal(t, tech.ID, cat.ID)
	_, err = repo.GetTagBySlug(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
