package repository

import (
	"context"

	"blog_engine/internal/domain/engagement/model"
	postModel "blog_engine/internal/domain/post/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementRepository 点赞、收藏、关注
type EngagementRepository interface {
	ToggleLike(ctx context.Context, postID, userID uint) (liked bool, total int64, err error)
	ToggleBookmark(ctx context.Context, postID, userID uint) (bool, error)
	ToggleFollow(ctx context.Context, followerID, followingID uint) (following bool, followers int64, err error)

	HasLiked(ctx context.Context, postID, userID uint) (bool, error)
	HasBookmarked(ctx context.Context, postID, userID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	FollowCounts(ctx context.Context, userID uint) (followers, following int64, err error)
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)

	PostExists(ctx context.Context, postID uint) (bool, error)
	BookmarkedPosts(ctx context.Context, userID uint, offset, limit int) ([]postModel.Post, int64, error)
}

type engagementRepository struct {
	db *gorm.DB
}

func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

// toggle 先删除，未删到则插入；唯一索引兜底并发插入
func toggle(tx *gorm.DB, empty, record interface{}, query string, args ...interface{}) (bool, error) {
	res := tx.Where(query, args...).Delete(empty)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *engagementRepository) ToggleLike(ctx context.Context, postID, userID uint) (bool, int64, error) {
	var liked bool
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		liked, err = toggle(tx, &model.Like{}, &model.Like{PostID: postID, UserID: userID},
			"post_id = ? AND user_id = ?", postID, userID)
		if err != nil {
			return err
		}
		return tx.Model(&model.Like{}).Where("post_id = ?", postID).Count(&total).Error
	})
	return liked, total, err
}

func (r *engagementRepository) ToggleBookmark(ctx context.Context, postID, userID uint) (bool, error) {
	var bookmarked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		bookmarked, err = toggle(tx, &model.Bookmark{}, &model.Bookmark{PostID: postID, UserID: userID},
			"user_id = ? AND post_id = ?", userID, postID)
		return err
	})
	return bookmarked, err
}

func (r *engagementRepository) ToggleFollow(ctx context.Context, followerID, followingID uint) (bool, int64, error) {
	var following bool
	var followers int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		following, err = toggle(tx, &model.Follow{}, &model.Follow{FollowerID: followerID, FollowingID: followingID},
			"follower_id = ? AND following_id = ?", followerID, followingID)
		if err != nil {
			return err
		}
		return tx.Model(&model.Follow{}).Where("following_id = ?", followingID).Count(&followers).Error
	})
	return following, followers, err
}

func (r *engagementRepository) exists(ctx context.Context, value interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(value).Where(query, args...).Limit(1).Count(&count).Error
	return count > 0, err
}

func (r *engagementRepository) HasLiked(ctx context.Context, postID, userID uint) (bool, error) {
	return r.exists(ctx, &model.Like{}, "post_id = ? AND user_id = ?", postID, userID)
}

func (r *engagementRepository) HasBookmarked(ctx context.Context, postID, userID uint) (bool, error) {
	return r.exists(ctx, &model.Bookmark{}, "user_id = ? AND post_id = ?", userID, postID)
}

func (r *engagementRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	return r.exists(ctx, &model.Follow{}, "follower_id = ? AND following_id = ?", followerID, followingID)
}

func (r *engagementRepository) FollowCounts(ctx context.Context, userID uint) (int64, int64, error) {
	var followers, following int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Follow{}).Where("following_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, err
	}
	if err := db.Model(&model.Follow{}).Where("follower_id = ?", userID).Count(&following).Error; err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

// FollowerIDs 关注该用户的所有用户
func (r *engagementRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Follow{}).
		Where("following_id = ?", userID).
		Order("id").
		Pluck("follower_id", &ids).Error
	return ids, err
}

func (r *engagementRepository) PostExists(ctx context.Context, postID uint) (bool, error) {
	return r.exists(ctx, &postModel.Post{}, "id = ?", postID)
}

// BookmarkedPosts 收藏的已发布文章，按收藏时间倒序
func (r *engagementRepository) BookmarkedPosts(ctx context.Context, userID uint, offset, limit int) ([]postModel.Post, int64, error) {
	var posts []postModel.Post
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		return db.Model(&postModel.Post{}).
			Joins("JOIN bookmarks ON bookmarks.post_id = posts.id AND bookmarks.user_id = ?", userID).
			Where("posts.status = ?", postModel.StatusPublished)
	}

	if err := r.db.WithContext(ctx).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []postModel.Post{}, 0, nil
	}

	err := r.db.WithContext(ctx).Scopes(scope).
		Select("posts.*, (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count").
		Preload("Author.Profile").Preload("Category").
		Order("bookmarks.created_at DESC").Order("bookmarks.id DESC").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}
