package repository

import (
	"context"

	"blog_engine/internal/domain/newsletter/model"

	"gorm.io/gorm"
)

// NewsletterRepository 订阅与联系留言
type NewsletterRepository interface {
	GetByEmail(ctx context.Context, email string) (*model.Newsletter, error)
	Create(ctx context.Context, sub *model.Newsletter) error
	// Activate 非激活状态改为激活，返回是否发生了变化
	Activate(ctx context.Context, id uint) (bool, error)
	// DeactivateByToken 按令牌取消订阅，令牌不存在时返回 gorm.ErrRecordNotFound
	DeactivateByToken(ctx context.Context, token string) error

	CreateContact(ctx context.Context, msg *model.ContactMessage) error
}

type newsletterRepository struct {
	db *gorm.DB
}

func NewNewsletterRepository(db *gorm.DB) NewsletterRepository {
	return &newsletterRepository{db: db}
}

func (r *newsletterRepository) GetByEmail(ctx context.Context, email string) (*model.Newsletter, error) {
	var sub model.Newsletter
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *newsletterRepository) Create(ctx context.Context, sub *model.Newsletter) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *newsletterRepository) Activate(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Newsletter{}).
		Where("id = ? AND is_active = ?", id, false).
		Update("is_active", true)
	return res.RowsAffected > 0, res.Error
}

func (r *newsletterRepository) DeactivateByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub model.Newsletter
		if err := tx.Where("unsubscribe_token = ?", token).First(&sub).Error; err != nil {
			return err
		}
		return tx.Model(&sub).Update("is_active", false).Error
	})
}

func (r *newsletterRepository) CreateContact(ctx context.Context, msg *model.ContactMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}
