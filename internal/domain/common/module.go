package common

import (
	commonHandler "blog_engine/internal/pkg/common"
	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/media"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// CommonModule 通用功能模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	cfg := config.GlobalConfig.Media
	h := commonHandler.NewCommonHandler(
		ctx.DB,
		ctx.Redis,
		ctx.Storage,
		media.ForPosts(ctx.Storage, cfg, ctx.Metrics),
		cfg.MaxUploadMB,
	)

	// 注册通用路由
	setupRoutes(ctx, h)
	return nil
}

func setupRoutes(ctx *registry.ModuleContext, h *commonHandler.CommonHandler) {
	r := ctx.Router
	r.GET("/health", h.Health)

	// 文章插图批量上传
	r.POST("/upload/", middleware.AuthMiddleware(), h.UploadImages)

	if ctx.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(ctx.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
