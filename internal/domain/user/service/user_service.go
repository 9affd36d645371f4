package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog_engine/internal/domain/user/model"
	"blog_engine/internal/domain/user/repository"
	"blog_engine/internal/pkg/media"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserExists         = errors.New("username or email already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// LoginResult 登录结果
type LoginResult struct {
	Token    string      `json:"token"`
	ExpireAt *time.Time  `json:"expireAt"`
	User     *model.User `json:"user"`
}

// ProfileUpdate 资料更新，nil 字段保持不变
type ProfileUpdate struct {
	Bio      *string
	Location *string
	Website  *string
	ImageKey string // 已存储的新头像
}

// UserService 用户服务接口
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uint, in ProfileUpdate) (*model.User, error)
}

// userService 实现
type userService struct {
	repo       repository.UserRepository
	storage    uploader.Storage
	normalizer *media.Normalizer
}

// NewUserService 创建用户服务
func NewUserService(repo repository.UserRepository, storage uploader.Storage, normalizer *media.Normalizer) UserService {
	return &userService{repo: repo, storage: storage, normalizer: normalizer}
}

// Register 注册
func (s *userService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Username: username,
		Email:    email,
		Password: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	s.fillImageURL(user)
	return user, nil
}

// Login 用户名密码登录
func (s *userService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, expireAt, err := utils.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	s.fillImageURL(user)
	return &LoginResult{Token: token, ExpireAt: expireAt, User: user}, nil
}

// GetUser 获取单个用户
func (s *userService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	s.fillImageURL(user)
	return user, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	s.fillImageURL(user)
	return user, nil
}

// UpdateProfile 更新资料，新头像保存后再规整为 300x300 以内
func (s *userService) UpdateProfile(ctx context.Context, userID uint, in ProfileUpdate) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Bio != nil {
		profile.Bio = *in.Bio
	}
	if in.Location != nil {
		profile.Location = *in.Location
	}
	if in.Website != nil {
		profile.Website = *in.Website
	}
	oldImage := profile.Image
	if in.ImageKey != "" {
		profile.Image = s.normalizer.NormalizeBestEffort(ctx, in.ImageKey)
	}

	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}

	if in.ImageKey != "" {
		if oldImage != "" && oldImage != model.DefaultAvatar && oldImage != profile.Image {
			if err := s.storage.Delete(ctx, oldImage); err != nil {
				logger.L().Warn("failed to delete old avatar", zap.String("key", oldImage), zap.Error(err))
			}
		}
	}

	user.Profile = profile
	s.fillImageURL(user)
	return user, nil
}

func (s *userService) fillImageURL(user *model.User) {
	if user.Profile != nil && s.storage != nil {
		user.Profile.ImageURL = s.storage.URL(user.Profile.Image)
	}
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
