package repository

import (
	"context"
	"errors"
	"time"

	"blog_engine/internal/domain/post/model"
	"blog_engine/internal/pkg/content"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository 文章、分类、标签的持久化
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*model.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, q *PostQuery, offset, limit int) ([]model.Post, int64, error)
	IncrementViews(ctx context.Context, id uint) error

	Trending(ctx context.Context, since time.Time, limit int) ([]model.Post, error)
	Related(ctx context.Context, post *model.Post, limit int) ([]model.Post, error)
	Featured(ctx context.Context) (*model.Post, error)
	SiteStats(ctx context.Context) (*model.SiteStats, error)
	AuthorTotals(ctx context.Context, authorID uint) (*model.AuthorTotals, error)

	GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error)
	GetOrCreateCategory(ctx context.Context, name string, authorID uint) (*model.Category, error)
	CategoriesWithPosts(ctx context.Context) ([]model.Category, error)
	GetTagBySlug(ctx context.Context, slug string) (*model.Tag, error)
	GetOrCreateTags(ctx context.Context, names []string) ([]model.Tag, error)
	PopularTags(ctx context.Context, limit int) ([]model.Tag, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// --- Post ---

// Create 插入文章及标签关联，标签须已存在
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Omit("Author", "Category", "Tags.*").Create(post).Error
}

// Update 保存字段并替换标签关联
func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Category", "Tags").Save(post).Error; err != nil {
			return err
		}
		return tx.Model(post).Association("Tags").Replace(post.Tags)
	})
}

// Delete 同一事务内删除评论、点赞、收藏、标签关联和文章
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"comments", "likes", "bookmarks", "post_tags"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE post_id = ?", id).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&model.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	err := withCounts(r.db.WithContext(ctx).Model(&model.Post{})).
		Preload("Author.Profile").Preload("Category").Preload("Tags").
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Post{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// List 执行查询构造器，返回具体结果集和总数
func (r *postRepository) List(ctx context.Context, q *PostQuery, offset, limit int) ([]model.Post, int64, error) {
	var posts []model.Post
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Post{})
	if err := q.filter(db).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.Post{}, 0, nil
	}

	query := q.order(withCounts(q.filter(r.db.WithContext(ctx).Model(&model.Post{}))))
	err := query.
		Preload("Author.Profile").Preload("Category").Preload("Tags").
		Offset(offset).Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// IncrementViews 原子自增，不更新 updated_at
func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Post{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", 1)).Error
}

// --- 聚合 ---

// Trending 窗口内发布的文章按 (已审核评论数 + 点赞数) 降序，再按浏览量
func (r *postRepository) Trending(ctx context.Context, since time.Time, limit int) ([]model.Post, error) {
	var posts []model.Post
	err := r.db.WithContext(ctx).Model(&model.Post{}).
		Select("posts.*, "+likesCountSQL+" AS likes_count, "+commentsCountSQL+" AS comments_count, "+
			likesCountSQL+" + "+commentsCountSQL+" AS engagement", true, true).
		Preload("Author.Profile").
		Where("posts.status = ? AND posts.created_at >= ?", model.StatusPublished, since).
		Order("engagement DESC").Order("posts.views_count DESC").Order("posts.id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// Related 同分类的其他已发布文章，最新优先
func (r *postRepository) Related(ctx context.Context, post *model.Post, limit int) ([]model.Post, error) {
	var posts []model.Post
	db := withCounts(r.db.WithContext(ctx).Model(&model.Post{})).
		Preload("Author.Profile").
		Where("posts.status = ? AND posts.id <> ?", model.StatusPublished, post.ID)
	if post.CategoryID != nil {
		db = db.Where("posts.category_id = ?", *post.CategoryID)
	}
	err := db.Order("posts.created_at DESC").Limit(limit).Find(&posts).Error
	return posts, err
}

// Featured 最新的已发布精选文章，没有时返回 nil
func (r *postRepository) Featured(ctx context.Context) (*model.Post, error) {
	var post model.Post
	err := withCounts(r.db.WithContext(ctx).Model(&model.Post{})).
		Preload("Author.Profile").
		Where("posts.status = ? AND posts.is_featured = ?", model.StatusPublished, true).
		Order("posts.created_at DESC").
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) SiteStats(ctx context.Context) (*model.SiteStats, error) {
	var stats model.SiteStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Post{}).Where("status = ?", model.StatusPublished).Count(&stats.TotalPosts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Post{}).Where("status = ?", model.StatusPublished).
		Distinct("author_id").Count(&stats.TotalAuthors).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Comment{}).Where("is_approved = ?", true).Count(&stats.TotalComments).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&model.Post{}).Where("status = ?", model.StatusPublished).
		Select("COALESCE(SUM(views_count), 0)").Scan(&stats.TotalViews).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *postRepository) AuthorTotals(ctx context.Context, authorID uint) (*model.AuthorTotals, error) {
	var totals model.AuthorTotals
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Post{}).
		Where("author_id = ? AND status = ?", authorID, model.StatusPublished).
		Select("COUNT(*) AS total_posts, COALESCE(SUM(views_count), 0) AS total_views").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	if err := db.Table("likes").
		Where("post_id IN (SELECT id FROM posts WHERE author_id = ?)", authorID).
		Count(&totals.TotalLikes).Error; err != nil {
		return nil, err
	}
	return &totals, nil
}

// --- Category / Tag ---

func (r *postRepository) GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).Order("id").First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// GetOrCreateCategory 按名称查找，不存在时以当前作者创建
func (r *postRepository) GetOrCreateCategory(ctx context.Context, name string, authorID uint) (*model.Category, error) {
	category := model.Category{Name: name, Slug: content.Slugify(name), AuthorID: authorID}
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&category).Error; err != nil {
		return nil, err
	}
	if category.ID == 0 {
		if err := db.Where("name = ?", name).First(&category).Error; err != nil {
			return nil, err
		}
	}
	return &category, nil
}

// CategoriesWithPosts 至少有一篇已发布文章的分类及其数量
func (r *postRepository) CategoriesWithPosts(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).Model(&model.Category{}).
		Select("categories.*, COUNT(posts.id) AS post_count").
		Joins("JOIN posts ON posts.category_id = categories.id AND posts.status = ?", model.StatusPublished).
		Group("categories.id").
		Order("categories.name").
		Find(&categories).Error
	return categories, err
}

func (r *postRepository) GetTagBySlug(ctx context.Context, slug string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// GetOrCreateTags 标签按 slug 复用，名称重复的只保留一个
func (r *postRepository) GetOrCreateTags(ctx context.Context, names []string) ([]model.Tag, error) {
	tags := make([]model.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	db := r.db.WithContext(ctx)

	for _, name := range names {
		slug := content.TagSlug(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		var tag model.Tag
		err := db.Where("slug = ?", slug).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = model.Tag{Name: name, Slug: slug}
			err = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error
			if err == nil && tag.ID == 0 {
				// 并发创建或名称冲突
				err = db.Where("slug = ? OR name = ?", slug, name).First(&tag).Error
			}
		}
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// PopularTags 按已发布文章数降序
func (r *postRepository) PopularTags(ctx context.Context, limit int) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).Model(&model.Tag{}).
		Select("tags.*, COUNT(posts.id) AS post_count").
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Joins("JOIN posts ON posts.id = post_tags.post_id AND posts.status = ?", model.StatusPublished).
		Group("tags.id").
		Order("post_count DESC").Order("tags.name").
		Limit(limit).
		Find(&tags).Error
	return tags, err
}
