package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blog_engine/internal/domain/post/model"
	"blog_engine/internal/domain/post/repository"
	userModel "blog_engine/internal/domain/user/model"
	"blog_engine/internal/pkg/content"
	"blog_engine/internal/pkg/media"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/internal/pkg/worker"
	"blog_engine/pkg/cache"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/metrics"
	"blog_engine/pkg/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrNoPermission     = errors.New("you do not have permission to modify this post")
	ErrCategoryNotFound = errors.New("category not found")
	ErrTagNotFound      = errors.New("tag not found")
)

// 表单按钮
const (
	ActionSaveDraft = "save_draft"
	ActionPublish   = "publish"
)

const (
	HomePageSize     = 6
	CategoryPageSize = 9
	TrendingWindow   = 7 * 24 * time.Hour
	TrendingLimit    = 5
	RelatedLimit     = 3
	PopularTagsLimit = 10

	slugAttempts  = 3
	statsCacheKey = "stats:"
)

// PostInput 创建/更新文章的输入
type PostInput struct {
	Title            string
	Content          string
	Excerpt          string
	MetaDescription  string
	MetaKeywords     string
	Category         string   // 分类名称，不存在时创建
	Tags             []string // 标签名称
	IsFeatured       bool
	IsPinned         bool
	AllowComments    *bool // nil 表示默认允许
	Status           string
	PublishDate      *time.Time
	Action           string // save_draft, publish
	FeaturedImageKey string // 已存储的新封面
}

// ListParams 列表查询参数
type ListParams struct {
	Q        string `form:"q"`
	Category string `form:"category"`
	Tag      string `form:"tag"`
	Sort     string `form:"sort"`
	utils.Pagination
}

// PostDetail 文章详情
type PostDetail struct {
	*model.Post
	ContentHTML string          `json:"contentHtml"`
	Liked       bool            `json:"liked"`
	Bookmarked  bool            `json:"bookmarked"`
	Comments    []model.Comment `json:"comments"`
	Related     []model.Post    `json:"related"`
}

// Sidebar 首页侧栏
type Sidebar struct {
	Featured     *model.Post      `json:"featured"`
	Categories   []model.Category `json:"categories"`
	PopularTags  []model.Tag      `json:"popularTags"`
	TotalPosts   int64            `json:"totalPosts"`
	TotalAuthors int64            `json:"totalAuthors"`
}

// HomePage 首页
type HomePage struct {
	Posts    utils.PageResult `json:"posts"`
	Trending []model.Post     `json:"trending"`
	Sidebar  *Sidebar         `json:"sidebar"`
}

// CategoryPage 分类/标签页
type CategoryPage struct {
	Category *model.Category  `json:"category,omitempty"`
	Tag      *model.Tag       `json:"tag,omitempty"`
	Posts    utils.PageResult `json:"posts"`
}

// EngagementReader 当前用户对文章的点赞/收藏状态
type EngagementReader interface {
	HasLiked(ctx context.Context, postID, userID uint) (bool, error)
	HasBookmarked(ctx context.Context, postID, userID uint) (bool, error)
}

// Notifier 发布后通知关注者
type Notifier interface {
	AddTask(task worker.NotifyTask)
}

type PostService interface {
	Create(ctx context.Context, authorID uint, authorName string, in PostInput) (*model.Post, error)
	Update(ctx context.Context, userID, postID uint, in PostInput) (*model.Post, error)
	Delete(ctx context.Context, userID, postID uint) error
	Detail(ctx context.Context, postID, viewerID uint) (*PostDetail, error)
	RecordView(ctx context.Context, postID uint) error

	Home(ctx context.Context, p ListParams) (*HomePage, error)
	Search(ctx context.Context, q string, categoryID, tagID uint, page utils.Pagination) (*utils.PageResult, error)
	ByCategory(ctx context.Context, slug string, page utils.Pagination) (*CategoryPage, error)
	ByTag(ctx context.Context, slug string, page utils.Pagination) (*CategoryPage, error)
	Dashboard(ctx context.Context, authorID uint, status string, page utils.Pagination) (*utils.PageResult, error)
	ByAuthor(ctx context.Context, authorID uint, page utils.Pagination) (*utils.PageResult, *model.AuthorTotals, error)

	Trending(ctx context.Context) ([]model.Post, error)
	Sidebar(ctx context.Context) (*Sidebar, error)
	AboutStats(ctx context.Context) (*model.SiteStats, error)

	Decorate(posts []model.Post)
}

type postService struct {
	repo       repository.PostRepository
	comments   repository.CommentRepository
	engagement EngagementReader
	storage    uploader.Storage
	normalizer *media.Normalizer
	cache      cache.CacheService
	metrics    *metrics.MetricsCollector
	notifier   Notifier
	statsTTL   time.Duration
	now        func() time.Time
}

// Options 可选依赖
type Options struct {
	Engagement EngagementReader
	Normalizer *media.Normalizer
	Cache      cache.CacheService
	Metrics    *metrics.MetricsCollector
	Notifier   Notifier
	StatsTTL   time.Duration
}

func NewPostService(repo repository.PostRepository, comments repository.CommentRepository, storage uploader.Storage, opts Options) PostService {
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache()
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = 5 * time.Minute
	}
	return &postService{
		repo:       repo,
		comments:   comments,
		engagement: opts.Engagement,
		storage:    storage,
		normalizer: opts.Normalizer,
		cache:      opts.Cache,
		metrics:    opts.Metrics,
		notifier:   opts.Notifier,
		statsTTL:   opts.StatsTTL,
		now:        time.Now,
	}
}

// --- 写操作 ---

func (s *postService) Create(ctx context.Context, authorID uint, authorName string, in PostInput) (*model.Post, error) {
	post := &model.Post{AuthorID: authorID, AllowComments: true}
	if err := s.apply(ctx, post, in, true); err != nil {
		return nil, err
	}
	// webp 规整后 key 会变，需在落库前完成
	post.FeaturedImage = s.normalizer.NormalizeBestEffort(ctx, in.FeaturedImageKey)
	s.markPublished(post, "")

	base := content.PostSlug(post.Title)
	var err error
	for attempt := 0; attempt < slugAttempts; attempt++ {
		post.Slug, err = content.UniqueSlug(ctx, base, content.MaxSlugLength, s.repo.SlugExists)
		if err != nil {
			return nil, err
		}
		err = s.repo.Create(ctx, post)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		logger.L().Info("slug taken concurrently, retrying", zap.String("slug", post.Slug), zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.invalidateStats(ctx)
	if post.IsPublished() {
		s.notify(post, authorName)
	}
	s.decorateOne(post)
	return post, nil
}

func (s *postService) Update(ctx context.Context, userID, postID uint, in PostInput) (*model.Post, error) {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	previous := post.Status

	if err := s.apply(ctx, post, in, false); err != nil {
		return nil, err
	}
	oldImage := ""
	if in.FeaturedImageKey != "" && in.FeaturedImageKey != post.FeaturedImage {
		oldImage = post.FeaturedImage
		post.FeaturedImage = s.normalizer.NormalizeBestEffort(ctx, in.FeaturedImageKey)
	}
	s.markPublished(post, previous)

	if err := s.repo.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}

	if oldImage != "" {
		s.removeImage(ctx, oldImage)
	}
	s.invalidateStats(ctx)
	if previous != model.StatusPublished && post.IsPublished() {
		author := ""
		if post.Author != nil {
			author = post.Author.Username
		}
		s.notify(post, author)
	}
	s.decorateOne(post)
	return post, nil
}

func (s *postService) Delete(ctx context.Context, userID, postID uint) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, post.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}
	if post.FeaturedImage != "" {
		s.removeImage(ctx, post.FeaturedImage)
	}
	s.invalidateStats(ctx)
	return nil
}

// apply 校验分类标签并运行派生流水线
func (s *postService) apply(ctx context.Context, post *model.Post, in PostInput, creating bool) error {
	post.Title = strings.TrimSpace(in.Title)
	post.Content = in.Content
	post.Excerpt = strings.TrimSpace(in.Excerpt)
	post.MetaDescription = strings.TrimSpace(in.MetaDescription)
	post.MetaKeywords = strings.TrimSpace(in.MetaKeywords)
	post.IsFeatured = in.IsFeatured
	post.IsPinned = in.IsPinned
	if in.AllowComments != nil {
		post.AllowComments = *in.AllowComments
	}
	if in.PublishDate != nil {
		post.PublishDate = in.PublishDate
	}
	post.Status = resolveStatus(post.Status, in, creating, s.now())

	post.CategoryID, post.Category = nil, nil
	if name := strings.TrimSpace(in.Category); name != "" {
		category, err := s.repo.GetOrCreateCategory(ctx, name, post.AuthorID)
		if err != nil {
			return fmt.Errorf("resolve category: %w", err)
		}
		post.CategoryID, post.Category = &category.ID, category
	}

	tags, err := s.repo.GetOrCreateTags(ctx, cleanNames(in.Tags))
	if err != nil {
		return fmt.Errorf("resolve tags: %w", err)
	}
	post.Tags = tags

	derived := content.Derive(content.Fields{
		Content:         post.Content,
		Excerpt:         post.Excerpt,
		MetaDescription: post.MetaDescription,
	})
	post.Excerpt = derived.Excerpt
	post.ReadingTime = derived.ReadingTime
	post.MetaDescription = derived.MetaDescription
	return nil
}

// resolveStatus save_draft 总是草稿，publish 总是发布
// 新建时默认发布；指定未来发布时间且状态为 scheduled 时为定时
func resolveStatus(current string, in PostInput, creating bool, now time.Time) string {
	switch in.Action {
	case ActionSaveDraft:
		return model.StatusDraft
	case ActionPublish:
		return model.StatusPublished
	}
	if in.Status == model.StatusScheduled {
		if in.PublishDate != nil && in.PublishDate.After(now) {
			return model.StatusScheduled
		}
		return model.StatusPublished
	}
	if creating {
		return model.StatusPublished
	}
	if model.ValidStatus(in.Status) {
		return in.Status
	}
	return current
}

// markPublished 首次发布时补齐发布时间
func (s *postService) markPublished(post *model.Post, previous string) {
	if post.IsPublished() && previous != model.StatusPublished && post.PublishDate == nil {
		now := s.now()
		post.PublishDate = &now
	}
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// owned 加载文章并校验作者
func (s *postService) owned(ctx context.Context, userID, postID uint) (*model.Post, error) {
	post, err := s.get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, ErrNoPermission
	}
	return post, nil
}

func (s *postService) get(ctx context.Context, postID uint) (*model.Post, error) {
	post, err := s.repo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

func (s *postService) notify(post *model.Post, authorName string) {
	if s.notifier == nil {
		return
	}
	s.notifier.AddTask(worker.NotifyTask{
		PostID:     post.ID,
		AuthorID:   post.AuthorID,
		AuthorName: authorName,
		Title:      post.Title,
	})
}

func (s *postService) removeImage(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil && !errors.Is(err, uploader.ErrObjectNotFound) {
		logger.L().Warn("failed to remove featured image", zap.String("key", key), zap.Error(err))
	}
}

// --- 读操作 ---

func (s *postService) Detail(ctx context.Context, postID, viewerID uint) (*PostDetail, error) {
	post, err := s.get(ctx, postID)
	if err != nil {
		return nil, err
	}
	// 未发布的文章只有作者能看到
	if !post.IsPublished() && post.AuthorID != viewerID {
		return nil, ErrPostNotFound
	}
	s.decorateOne(post)

	detail := &PostDetail{Post: post, ContentHTML: content.RenderMarkdown(post.Content)}

	if viewerID != 0 && s.engagement != nil {
		if detail.Liked, err = s.engagement.HasLiked(ctx, post.ID, viewerID); err != nil {
			return nil, err
		}
		if detail.Bookmarked, err = s.engagement.HasBookmarked(ctx, post.ID, viewerID); err != nil {
			return nil, err
		}
	}

	if detail.Comments, err = s.commentTree(ctx, post.ID); err != nil {
		return nil, err
	}
	if detail.Related, err = s.repo.Related(ctx, post, RelatedLimit); err != nil {
		return nil, err
	}
	s.Decorate(detail.Related)
	return detail, nil
}

func (s *postService) commentTree(ctx context.Context, postID uint) ([]model.Comment, error) {
	comments, err := s.comments.ListApproved(ctx, postID)
	if err != nil {
		return nil, err
	}
	tree := buildTree(comments)
	for i := range tree {
		s.decorateAuthor(tree[i].Author)
		for j := range tree[i].Replies {
			s.decorateAuthor(tree[i].Replies[j].Author)
		}
	}
	return tree, nil
}

func (s *postService) RecordView(ctx context.Context, postID uint) error {
	if err := s.repo.IncrementViews(ctx, postID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordPostView()
	}
	return nil
}

func (s *postService) Home(ctx context.Context, p ListParams) (*HomePage, error) {
	p.Normalize(HomePageSize)
	q := repository.NewPostQuery().Published().
		Search(p.Q).CategorySlug(p.Category).TagSlug(p.Tag).Sort(p.Sort)

	posts, err := s.list(ctx, q, p.Pagination)
	if err != nil {
		return nil, err
	}
	trending, err := s.Trending(ctx)
	if err != nil {
		return nil, err
	}
	sidebar, err := s.Sidebar(ctx)
	if err != nil {
		return nil, err
	}
	return &HomePage{Posts: *posts, Trending: trending, Sidebar: sidebar}, nil
}

func (s *postService) Search(ctx context.Context, text string, categoryID, tagID uint, page utils.Pagination) (*utils.PageResult, error) {
	page.Normalize(CategoryPageSize)
	q := repository.NewPostQuery().Published().
		Search(text).IncludeAuthorName().CategoryID(categoryID).TagID(tagID)
	return s.list(ctx, q, page)
}

func (s *postService) ByCategory(ctx context.Context, slug string, page utils.Pagination) (*CategoryPage, error) {
	category, err := s.repo.GetCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	page.Normalize(CategoryPageSize)
	posts, err := s.list(ctx, repository.NewPostQuery().Published().CategoryID(category.ID), page)
	if err != nil {
		return nil, err
	}
	return &CategoryPage{Category: category, Posts: *posts}, nil
}

func (s *postService) ByTag(ctx context.Context, slug string, page utils.Pagination) (*CategoryPage, error) {
	tag, err := s.repo.GetTagBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	page.Normalize(CategoryPageSize)
	posts, err := s.list(ctx, repository.NewPostQuery().Published().TagID(tag.ID), page)
	if err != nil {
		return nil, err
	}
	return &CategoryPage{Tag: tag, Posts: *posts}, nil
}

func (s *postService) Dashboard(ctx context.Context, authorID uint, status string, page utils.Pagination) (*utils.PageResult, error) {
	page.Normalize(10)
	q := repository.NewPostQuery().Author(authorID)
	if status != "" {
		q.Status(status)
	}
	return s.list(ctx, q, page)
}

func (s *postService) ByAuthor(ctx context.Context, authorID uint, page utils.Pagination) (*utils.PageResult, *model.AuthorTotals, error) {
	page.Normalize(HomePageSize)
	posts, err := s.list(ctx, repository.NewPostQuery().Published().Author(authorID), page)
	if err != nil {
		return nil, nil, err
	}
	totals, err := s.repo.AuthorTotals(ctx, authorID)
	if err != nil {
		return nil, nil, err
	}
	return posts, totals, nil
}

func (s *postService) list(ctx context.Context, q *repository.PostQuery, page utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	posts, total, err := s.repo.List(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	s.Decorate(posts)
	result := utils.NewPageResult(posts, total, page)
	return &result, nil
}

func (s *postService) Trending(ctx context.Context) ([]model.Post, error) {
	posts, err := s.repo.Trending(ctx, s.now().Add(-TrendingWindow), TrendingLimit)
	if err != nil {
		return nil, err
	}
	s.Decorate(posts)
	return posts, nil
}

// Sidebar 首页侧栏，写文章时失效
func (s *postService) Sidebar(ctx context.Context) (*Sidebar, error) {
	var sidebar Sidebar
	if s.cached(ctx, statsCacheKey+"sidebar", &sidebar) {
		return &sidebar, nil
	}

	featured, err := s.repo.Featured(ctx)
	if err != nil {
		return nil, err
	}
	if featured != nil {
		s.decorateOne(featured)
	}
	categories, err := s.repo.CategoriesWithPosts(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.repo.PopularTags(ctx, PopularTagsLimit)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.SiteStats(ctx)
	if err != nil {
		return nil, err
	}

	sidebar = Sidebar{
		Featured:     featured,
		Categories:   categories,
		PopularTags:  tags,
		TotalPosts:   stats.TotalPosts,
		TotalAuthors: stats.TotalAuthors,
	}
	s.store(ctx, statsCacheKey+"sidebar", &sidebar)
	return &sidebar, nil
}

func (s *postService) AboutStats(ctx context.Context) (*model.SiteStats, error) {
	var stats model.SiteStats
	if s.cached(ctx, statsCacheKey+"about", &stats) {
		return &stats, nil
	}
	fresh, err := s.repo.SiteStats(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, statsCacheKey+"about", fresh)
	return fresh, nil
}

func (s *postService) cached(ctx context.Context, key string, dest interface{}) bool {
	err := s.cache.Get(ctx, key, dest)
	hit := err == nil
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		logger.L().Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordCache("stats", hit)
	}
	return hit
}

func (s *postService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.statsTTL); err != nil {
		logger.L().Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *postService) invalidateStats(ctx context.Context) {
	if err := s.cache.InvalidatePattern(ctx, statsCacheKey+"*"); err != nil {
		logger.L().Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// Decorate 填充封面和作者头像的访问地址
func (s *postService) Decorate(posts []model.Post) {
	for i := range posts {
		s.decorateOne(&posts[i])
	}
}

func (s *postService) decorateOne(post *model.Post) {
	if post.FeaturedImage != "" {
		post.FeaturedImageURL = s.storage.URL(post.FeaturedImage)
	}
	s.decorateAuthor(post.Author)
}

func (s *postService) decorateAuthor(author *userModel.User) {
	if author != nil && author.Profile != nil {
		author.Profile.ImageURL = s.storage.URL(author.Profile.Image)
	}
}
