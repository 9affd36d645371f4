package model

import "blog_engine/pkg/model"

// DefaultAvatar 未上传头像时使用的默认图片
const DefaultAvatar = "profile_pics/default.jpg"

// User 用户模型
type User struct {
	model.BaseModel
	Username string   `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email    string   `gorm:"type:varchar(254);uniqueIndex;not null" json:"-"`
	Password string   `gorm:"not null" json:"-"` // 密码不返回给前端
	Profile  *Profile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// Profile 用户资料，与用户一对一
type Profile struct {
	model.BaseModel
	UserID   uint   `gorm:"uniqueIndex;not null" json:"userId"`
	Image    string `gorm:"type:varchar(255)" json:"image"`
	ImageURL string `gorm:"-" json:"imageUrl"`
	Bio      string `gorm:"type:varchar(500)" json:"bio"`
	Location string `gorm:"type:varchar(100)" json:"location"`
	Website  string `gorm:"type:varchar(200)" json:"website"`
}
