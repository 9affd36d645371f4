package repository

import (
	"context"

	"blog_engine/internal/domain/post/model"

	"gorm.io/gorm"
)

// CommentRepository 评论持久化
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id uint) (*model.Comment, error)
	ListApproved(ctx context.Context, postID uint) ([]model.Comment, error)
	Delete(ctx context.Context, comment *model.Comment) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Omit("Author").Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*model.Comment, error) {
	var comment model.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListApproved 文章下所有已审核评论，按时间正序
func (r *commentRepository) ListApproved(ctx context.Context, postID uint) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.db.WithContext(ctx).
		Preload("Author.Profile").
		Where("post_id = ? AND is_approved = ?", postID, true).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error
	return comments, err
}

// Delete 连同回复一起删除
func (r *commentRepository) Delete(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("root_id = ? OR parent_id = ?", comment.ID, comment.ID).
			Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Comment{}, comment.ID).Error
	})
}
