package engagement

import (
	"blog_engine/internal/domain/engagement/handler"
	"blog_engine/internal/domain/engagement/model"
	"blog_engine/internal/domain/engagement/repository"
	"blog_engine/internal/domain/engagement/service"
	"blog_engine/internal/domain/post"
	userRepo "blog_engine/internal/domain/user/repository"
	userService "blog_engine/internal/domain/user/service"
	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/media"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// EngagementModule 点赞、收藏、关注模块
type EngagementModule struct{}

func init() {
	registry.Register(&EngagementModule{})
}

func (m *EngagementModule) Name() string {
	return "engagement"
}

func (m *EngagementModule) Priority() int {
	// 依赖 users 与 posts 表
	return 20
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{&model.Like{}, &model.Bookmark{}, &model.Follow{}}
}

func (m *EngagementModule) Init(ctx *registry.ModuleContext) error {
	if config.GlobalConfig.Database.AutoMigrate {
		if err := ctx.DB.AutoMigrate(Models()...); err != nil {
			return err
		}
	}

	// 1. 依赖注入
	users := userService.NewCachedUserService(
		userService.NewUserService(
			userRepo.NewUserRepository(ctx.DB),
			ctx.Storage,
			media.ForAvatars(ctx.Storage, config.GlobalConfig.Media, ctx.Metrics),
		),
		ctx.Cache,
		ctx.Metrics,
	)
	engagementService := service.NewEngagementService(
		repository.NewEngagementRepository(ctx.DB),
		users,
		post.NewService(ctx, nil),
		ctx.Metrics,
	)
	engagementHandler := handler.NewEngagementHandler(engagementService)

	// 2. 路由注册
	setupRoutes(ctx.Router, engagementHandler)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.EngagementHandler) {
	r.GET("/user/:username/", middleware.OptionalAuth(), h.AuthorPage)

	auth := r.Group("")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.POST("/post/:id/like/", h.ToggleLike)
		auth.POST("/post/:id/bookmark/", h.ToggleBookmark)
		auth.GET("/bookmarks/", h.Bookmarks)
		auth.POST("/user/:username/follow/", h.ToggleFollow)
	}
}
