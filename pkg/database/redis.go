package database

import (
	"context"
	"fmt"
	"time"

	"blog_engine/internal/pkg/config"
	"blog_engine/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis 初始化 Redis 连接
// 未配置地址时返回 nil，调用方退化为内存实现
func InitRedis() (*redis.Client, error) {
	cfg := config.GlobalConfig.Redis
	if cfg.Addr == "" {
		logger.L().Warn("redis address not configured, falling back to in-memory cache and cookie view tracking")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// 连接池配置
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  time.Second * 5,
		ReadTimeout:  time.Second * 3,
		WriteTimeout: time.Second * 3,
		PoolTimeout:  time.Second * 4,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.L().Info("redis connection established", zap.String("addr", cfg.Addr))
	return rdb, nil
}
