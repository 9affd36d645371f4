package service

import (
	"context"
	"fmt"
	"time"

	"blog_engine/internal/domain/user/model"
	"blog_engine/pkg/cache"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/metrics"

	"go.uber.org/zap"
)

// 缓存键常量
const (
	UserCacheKeyPrefix = "user:"
	UserCacheTTL       = time.Minute * 10
)

// CachedUserService 带缓存的用户服务，只缓存按用户名查询的公开资料
type CachedUserService struct {
	UserService
	cache   cache.CacheService
	metrics *metrics.MetricsCollector
}

// NewCachedUserService 创建带缓存的用户服务
func NewCachedUserService(inner UserService, c cache.CacheService, m *metrics.MetricsCollector) UserService {
	return &CachedUserService{
		UserService: inner,
		cache:       c,
		metrics:     m,
	}
}

// getUserCacheKey 获取用户缓存键
func (s *CachedUserService) getUserCacheKey(username string) string {
	return fmt.Sprintf("%s%s", UserCacheKeyPrefix, username)
}

// GetByUsername 获取用户（带缓存）
func (s *CachedUserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	cacheKey := s.getUserCacheKey(username)

	// 尝试从缓存获取
	var user model.User
	if err := s.cache.Get(ctx, cacheKey, &user); err == nil {
		s.record(true)
		return &user, nil
	}
	s.record(false)

	// 缓存未命中，从数据库获取
	u, err := s.UserService.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	// 缓存失败不影响业务逻辑，只记录日志
	if err := s.cache.Set(ctx, cacheKey, u, UserCacheTTL); err != nil {
		logger.L().Warn("failed to cache user", zap.String("username", username), zap.Error(err))
	}
	return u, nil
}

// UpdateProfile 更新资料（带缓存失效）
func (s *CachedUserService) UpdateProfile(ctx context.Context, userID uint, in ProfileUpdate) (*model.User, error) {
	u, err := s.UserService.UpdateProfile(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, s.getUserCacheKey(u.Username)); err != nil {
		logger.L().Warn("failed to invalidate user cache", zap.String("username", u.Username), zap.Error(err))
	}
	return u, nil
}

func (s *CachedUserService) record(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCache(UserCacheKeyPrefix, hit)
	}
}
