package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"blog_engine/internal/pkg/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ViewTracker 判断某个会话是否第一次浏览某篇文章
// 同一会话内的并发请求可能都返回 true，计数允许轻微偏多
type ViewTracker interface {
	FirstView(c *gin.Context, postID uint) (bool, error)
}

// Middleware 基于 cookie 的会话中间件
func Middleware(cfg config.SessionConfig) gin.HandlerFunc {
	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(cfg.Name, store)
}

// NewViewTracker 有 Redis 时使用 RedisTracker
func NewViewTracker(rdb *redis.Client, maxAge int) ViewTracker {
	if rdb == nil {
		return CookieTracker{}
	}
	return NewRedisTracker(rdb, time.Duration(maxAge)*time.Second)
}

// CookieTracker 把已浏览标记直接写入会话 cookie
type CookieTracker struct{}

func viewedKey(postID uint) string {
	return fmt.Sprintf("viewed_post_%d", postID)
}

func (CookieTracker) FirstView(c *gin.Context, postID uint) (bool, error) {
	s := sessions.Default(c)
	key := viewedKey(postID)
	if s.Get(key) != nil {
		return false, nil
	}
	s.Set(key, true)
	if err := s.Save(); err != nil {
		return false, err
	}
	return true, nil
}

// RedisTracker 会话 cookie 只保存会话 ID，浏览标记存放在 Redis
type RedisTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

const sessionIDKey = "sid"

func NewRedisTracker(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &RedisTracker{rdb: rdb, ttl: ttl}
}

// sessionID 读取或生成会话 ID
func sessionID(c *gin.Context) (string, error) {
	s := sessions.Default(c)
	if sid, ok := s.Get(sessionIDKey).(string); ok && sid != "" {
		return sid, nil
	}
	sid := uuid.New().String()
	s.Set(sessionIDKey, sid)
	if err := s.Save(); err != nil {
		return "", err
	}
	return sid, nil
}

func (t *RedisTracker) FirstView(c *gin.Context, postID uint) (bool, error) {
	sid, err := sessionID(c)
	if err != nil {
		return false, err
	}
	return t.markViewed(c.Request.Context(), sid, postID)
}

// markViewed SETNX 保证同一会话只计一次
func (t *RedisTracker) markViewed(ctx context.Context, sid string, postID uint) (bool, error) {
	key := fmt.Sprintf("viewed:%s:%d", sid, postID)
	return t.rdb.SetNX(ctx, key, 1, t.ttl).Result()
}
