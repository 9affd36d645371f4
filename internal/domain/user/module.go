package user

import (
	"blog_engine/internal/domain/user/handler"
	"blog_engine/internal/domain/user/model"
	"blog_engine/internal/domain/user/repository"
	"blog_engine/internal/domain/user/service"
	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/media"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// UserModule 用户模块
type UserModule struct{}

func init() {
	// 自动注册模块
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	// 用户模块优先级最高，因为其他模块依赖 users 表
	return 1
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{&model.User{}, &model.Profile{}}
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	if config.GlobalConfig.Database.AutoMigrate {
		if err := ctx.DB.AutoMigrate(Models()...); err != nil {
			return err
		}
	}

	// 1. 依赖注入
	cfg := config.GlobalConfig.Media
	userRepo := repository.NewUserRepository(ctx.DB)
	avatars := media.ForAvatars(ctx.Storage, cfg, ctx.Metrics)
	userService := service.NewCachedUserService(
		service.NewUserService(userRepo, ctx.Storage, avatars),
		ctx.Cache,
		ctx.Metrics,
	)
	userHandler := handler.NewUserHandler(userService, ctx.Storage, cfg.MaxUploadMB)

	// 2. 路由注册
	limiter := middleware.NewIPRateLimiter(rate.Limit(config.GlobalConfig.RateLimit.RPS), config.GlobalConfig.RateLimit.Burst)
	setupRoutes(ctx.Router, userHandler, limiter)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.UserHandler, limiter *middleware.IPRateLimiter) {
	// 公开路由
	authGroup := r.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(limiter))
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	// 受保护的路由
	profile := r.Group("/profile")
	profile.Use(middleware.AuthMiddleware())
	{
		profile.GET("/", h.GetProfile)
		profile.POST("/", h.UpdateProfile)
	}
}
