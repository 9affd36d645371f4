package model

import (
	"time"

	userModel "blog_engine/internal/domain/user/model"
	baseModel "blog_engine/pkg/model"
)

// 文章状态
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusScheduled = "scheduled"
)

// ValidStatus 是否为合法状态
func ValidStatus(s string) bool {
	return s == StatusDraft || s == StatusPublished || s == StatusScheduled
}

// Post 文章模型
type Post struct {
	baseModel.BaseModel
	Title            string          `gorm:"type:varchar(200);not null" json:"title"`
	Slug             string          `gorm:"type:varchar(200);uniqueIndex;not null" json:"slug"`
	Content          string          `gorm:"type:text;not null" json:"content"`
	Excerpt          string          `gorm:"type:varchar(300)" json:"excerpt"`
	FeaturedImage    string          `gorm:"type:varchar(255)" json:"featuredImage"` // 存储 key
	FeaturedImageURL string          `gorm:"-" json:"featuredImageUrl,omitempty"`
	CategoryID       *uint           `gorm:"index" json:"categoryId"`
	Category         *Category       `json:"category,omitempty"`
	Tags             []Tag           `gorm:"many2many:post_tags;" json:"tags"`
	AuthorID         uint            `gorm:"index;not null" json:"authorId"`
	Author           *userModel.User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	PublishDate      *time.Time      `json:"publishDate"`
	Status           string          `gorm:"type:varchar(10);index;not null" json:"status"` // draft, published, scheduled
	IsFeatured       bool            `gorm:"not null" json:"isFeatured"`
	IsPinned         bool            `gorm:"not null" json:"isPinned"`
	AllowComments    bool            `gorm:"not null" json:"allowComments"`
	ViewsCount       int64           `gorm:"not null;default:0" json:"viewsCount"`
	ReadingTime      int             `gorm:"not null;default:1" json:"readingTime"` // 分钟
	MetaDescription  string          `gorm:"type:varchar(160)" json:"metaDescription"`
	MetaKeywords     string          `gorm:"type:varchar(255)" json:"metaKeywords"`

	// 列表查询计算得出，不落库
	LikesCount    int64 `gorm:"->;-:migration" json:"likesCount"`
	CommentsCount int64 `gorm:"->;-:migration" json:"commentsCount"`
	Engagement    int64 `gorm:"->;-:migration" json:"engagement,omitempty"`
}

// IsPublished 是否已发布
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// Category 分类
type Category struct {
	baseModel.BaseModel
	Name        string `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Slug        string `gorm:"type:varchar(200);index" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	AuthorID    uint   `gorm:"not null" json:"authorId"`

	PostCount int64 `gorm:"->;-:migration" json:"postCount,omitempty"`
}

// Tag 标签
type Tag struct {
	baseModel.BaseModel
	Name string `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Slug string `gorm:"type:varchar(50);uniqueIndex;not null" json:"slug"`

	PostCount int64 `gorm:"->;-:migration" json:"postCount,omitempty"`
}

// Comment 评论模型，最多两级
type Comment struct {
	baseModel.BaseModel
	PostID     uint            `gorm:"index;not null" json:"postId"`
	AuthorID   uint            `gorm:"not null" json:"authorId"`
	Author     *userModel.User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	IsApproved bool            `gorm:"not null" json:"isApproved"`
	ParentID   *uint           `gorm:"index" json:"parentId"` // 直接父评论
	RootID     *uint           `gorm:"index" json:"rootId"`   // 一级评论ID
	Level      int             `gorm:"not null;default:1" json:"level"`

	Replies []Comment `gorm:"-" json:"replies,omitempty"`
}

// SiteStats 站点统计
type SiteStats struct {
	TotalPosts    int64 `json:"totalPosts"`
	TotalAuthors  int64 `json:"totalAuthors"`
	TotalComments int64 `json:"totalComments"`
	TotalViews    int64 `json:"totalViews"`
}

// AuthorTotals 作者主页统计
type AuthorTotals struct {
	TotalPosts int64 `json:"totalPosts"`
	TotalViews int64 `json:"totalViews"`
	TotalLikes int64 `json:"totalLikes"`
}
