package model

import (
	"time"

	"blog_engine/pkg/model"
)

// Newsletter 邮件订阅，email 统一小写
type Newsletter struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email            string    `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`
	IsActive         bool      `gorm:"not null" json:"isActive"`
	UnsubscribeToken string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"-"`
	SubscribedAt     time.Time `gorm:"autoCreateTime;index" json:"subscribedAt"`
}

// ContactMessage 联系留言，只有已读/已回复两个标记
type ContactMessage struct {
	model.BaseModel
	Name    string `gorm:"type:varchar(100);not null" json:"name"`
	Email   string `gorm:"type:varchar(254);not null" json:"email"`
	Subject string `gorm:"type:varchar(200);not null" json:"subject"`
	Message string `gorm:"type:text;not null" json:"message"`
	IsRead  bool   `gorm:"not null" json:"isRead"`
	Replied bool   `gorm:"not null" json:"replied"`
}
