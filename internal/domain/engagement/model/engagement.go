package model

import "time"

// Like 点赞，(post, user) 唯一
type Like struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"uniqueIndex:idx_likes_post_user;not null" json:"postId"`
	UserID    uint      `gorm:"uniqueIndex:idx_likes_post_user;index;not null" json:"userId"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Bookmark 收藏，(user, post) 唯一
type Bookmark struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_bookmarks_user_post;not null" json:"userId"`
	PostID    uint      `gorm:"uniqueIndex:idx_bookmarks_user_post;index;not null" json:"postId"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Follow 关注，(follower, following) 唯一
type Follow struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	FollowerID  uint      `gorm:"uniqueIndex:idx_follows_pair;not null" json:"followerId"`
	FollowingID uint      `gorm:"uniqueIndex:idx_follows_pair;index;not null" json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`
}
