package post

import (
	"time"

	engagementRepo "blog_engine/internal/domain/engagement/repository"
	"blog_engine/internal/domain/post/handler"
	"blog_engine/internal/domain/post/model"
	"blog_engine/internal/domain/post/repository"
	"blog_engine/internal/domain/post/service"
	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/media"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/registry"
	"blog_engine/internal/pkg/worker"
	"blog_engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PostModule 文章模块
type PostModule struct{}

func init() {
	registry.Register(&PostModule{})
}

func (m *PostModule) Name() string {
	return "post"
}

func (m *PostModule) Priority() int {
	return 10
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{&model.Category{}, &model.Tag{}, &model.Post{}, &model.Comment{}}
}

func (m *PostModule) Init(ctx *registry.ModuleContext) error {
	if config.GlobalConfig.Database.AutoMigrate {
		if err := ctx.DB.AutoMigrate(Models()...); err != nil {
			return err
		}
	}

	// 1. 依赖注入
	cfg := config.GlobalConfig
	postRepo := repository.NewPostRepository(ctx.DB)
	commentRepo := repository.NewCommentRepository(ctx.DB)

	var notifier service.Notifier
	if ctx.Push != nil {
		pool := worker.NewWorkerPool(engagementRepo.NewEngagementRepository(ctx.DB), ctx.Push, ctx.Metrics, cfg.Push.Workers, cfg.Push.QueueSize)
		pool.Start()
		ctx.OnShutdown(pool.Stop)
		notifier = pool
		logger.L().Info("follower notifications enabled", zap.Int("workers", pool.WorkerNum))
	}

	postService := NewService(ctx, notifier)
	commentService := service.NewCommentService(postRepo, commentRepo)
	postHandler := handler.NewPostHandler(postService, commentService, ctx.Views, ctx.Storage, cfg.Media.MaxUploadMB)

	// 2. 路由注册
	setupRoutes(ctx.Router, postHandler)

	return nil
}

// NewService 按模块上下文组装文章服务，notifier 为 nil 时不发送关注者通知
// engagement 模块也用它读取作者文章和收藏列表
func NewService(ctx *registry.ModuleContext, notifier service.Notifier) service.PostService {
	cfg := config.GlobalConfig
	return service.NewPostService(
		repository.NewPostRepository(ctx.DB),
		repository.NewCommentRepository(ctx.DB),
		ctx.Storage,
		service.Options{
			Engagement: engagementRepo.NewEngagementRepository(ctx.DB),
			Normalizer: media.ForPosts(ctx.Storage, cfg.Media, ctx.Metrics),
			Cache:      ctx.Cache,
			Metrics:    ctx.Metrics,
			Notifier:   notifier,
			StatsTTL:   time.Duration(cfg.Cache.StatsTTLSeconds) * time.Second,
		},
	)
}

func setupRoutes(r *gin.Engine, h *handler.PostHandler) {
	// 公开路由
	r.GET("/", h.Home)
	r.GET("/search/", h.Search)
	r.GET("/about/", h.About)
	r.GET("/category/:slug/", h.Category)
	r.GET("/tag/:slug/", h.Tag)
	r.GET("/post/:id/", middleware.OptionalAuth(), h.Detail)

	// 需要登录
	auth := r.Group("")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.POST("/post/new/", h.Create)
		auth.POST("/post/:id/update/", h.Update)
		auth.POST("/post/:id/delete/", h.Delete)
		auth.POST("/post/:id/comment/", h.AddComment)
		auth.POST("/comment/:id/delete/", h.DeleteComment)
		auth.GET("/dashboard/posts/", h.Dashboard)
	}
}
