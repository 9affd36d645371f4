package service

import (
	"context"
	"errors"
	"fmt"

	"blog_engine/internal/domain/engagement/repository"
	postModel "blog_engine/internal/domain/post/model"
	userModel "blog_engine/internal/domain/user/model"
	userService "blog_engine/internal/domain/user/service"
	"blog_engine/pkg/metrics"
	"blog_engine/pkg/utils"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrUserNotFound = errors.New("user not found")
	ErrSelfFollow   = errors.New("you cannot follow yourself")
)

const (
	AuthorPageSize    = 6 // 作者主页每页文章数
	BookmarksPageSize = 9
)

// LikeResult 点赞切换结果
type LikeResult struct {
	Liked      bool  `json:"liked"`
	TotalLikes int64 `json:"total_likes"`
}

// BookmarkResult 收藏切换结果
type BookmarkResult struct {
	Bookmarked bool `json:"bookmarked"`
}

// FollowResult 关注切换结果
type FollowResult struct {
	Following      bool  `json:"following"`
	FollowersCount int64 `json:"followers_count"`
}

// AuthorPage 作者主页
type AuthorPage struct {
	Author         *userModel.User   `json:"author"`
	Posts          *utils.PageResult `json:"posts"`
	TotalPosts     int64             `json:"totalPosts"`
	TotalViews     int64             `json:"totalViews"`
	TotalLikes     int64             `json:"totalLikes"`
	FollowersCount int64             `json:"followersCount"`
	FollowingCount int64             `json:"followingCount"`
	IsFollowing    bool              `json:"isFollowing"`
}

// UserLookup 按用户名查找作者
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*userModel.User, error)
}

// PostReader 作者文章列表与封面地址填充，由文章服务实现
type PostReader interface {
	ByAuthor(ctx context.Context, authorID uint, page utils.Pagination) (*utils.PageResult, *postModel.AuthorTotals, error)
	Decorate(posts []postModel.Post)
}

// EngagementService 点赞、收藏、关注
type EngagementService interface {
	ToggleLike(ctx context.Context, userID, postID uint) (*LikeResult, error)
	ToggleBookmark(ctx context.Context, userID, postID uint) (*BookmarkResult, error)
	// ToggleFollow followerName 来自登录令牌，与目标相同时直接拒绝
	ToggleFollow(ctx context.Context, followerID uint, followerName, username string) (*FollowResult, error)

	Bookmarks(ctx context.Context, userID uint, page utils.Pagination) (*utils.PageResult, error)
	AuthorPage(ctx context.Context, username string, viewerID uint, page utils.Pagination) (*AuthorPage, error)
}

type engagementService struct {
	repo    repository.EngagementRepository
	users   UserLookup
	posts   PostReader
	metrics *metrics.MetricsCollector
}

func NewEngagementService(repo repository.EngagementRepository, users UserLookup, posts PostReader, m *metrics.MetricsCollector) EngagementService {
	return &engagementService{repo: repo, users: users, posts: posts, metrics: m}
}

func (s *engagementService) ToggleLike(ctx context.Context, userID, postID uint) (*LikeResult, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	liked, total, err := s.repo.ToggleLike(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("toggle like: %w", err)
	}
	s.record("like", liked)
	return &LikeResult{Liked: liked, TotalLikes: total}, nil
}

func (s *engagementService) ToggleBookmark(ctx context.Context, userID, postID uint) (*BookmarkResult, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	bookmarked, err := s.repo.ToggleBookmark(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("toggle bookmark: %w", err)
	}
	s.record("bookmark", bookmarked)
	return &BookmarkResult{Bookmarked: bookmarked}, nil
}

func (s *engagementService) ToggleFollow(ctx context.Context, followerID uint, followerName, username string) (*FollowResult, error) {
	if followerName != "" && followerName == username {
		return nil, ErrSelfFollow
	}
	target, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if target.ID == followerID {
		return nil, ErrSelfFollow
	}

	following, followers, err := s.repo.ToggleFollow(ctx, followerID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("toggle follow: %w", err)
	}
	s.record("follow", following)
	return &FollowResult{Following: following, FollowersCount: followers}, nil
}

// Bookmarks 本人收藏的已发布文章，最近收藏在前
func (s *engagementService) Bookmarks(ctx context.Context, userID uint, page utils.Pagination) (*utils.PageResult, error) {
	page.Normalize(BookmarksPageSize)
	offset, limit := page.GetPageOffset()
	posts, total, err := s.repo.BookmarkedPosts(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	s.posts.Decorate(posts)
	result := utils.NewPageResult(posts, total, page)
	return &result, nil
}

func (s *engagementService) AuthorPage(ctx context.Context, username string, viewerID uint, page utils.Pagination) (*AuthorPage, error) {
	author, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	page.Normalize(AuthorPageSize)
	posts, totals, err := s.posts.ByAuthor(ctx, author.ID, page)
	if err != nil {
		return nil, err
	}
	followers, following, err := s.repo.FollowCounts(ctx, author.ID)
	if err != nil {
		return nil, err
	}

	result := &AuthorPage{
		Author:         author,
		Posts:          posts,
		TotalPosts:     totals.TotalPosts,
		TotalViews:     totals.TotalViews,
		TotalLikes:     totals.TotalLikes,
		FollowersCount: followers,
		FollowingCount: following,
	}
	if viewerID != 0 && viewerID != author.ID {
		if result.IsFollowing, err = s.repo.IsFollowing(ctx, viewerID, author.ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *engagementService) requirePost(ctx context.Context, postID uint) error {
	ok, err := s.repo.PostExists(ctx, postID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPostNotFound
	}
	return nil
}

func (s *engagementService) lookup(ctx context.Context, username string) (*userModel.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, userService.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *engagementService) record(kind string, on bool) {
	if s.metrics != nil {
		s.metrics.RecordToggle(kind, on)
	}
}
