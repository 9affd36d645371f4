package newsletter

import (
	"blog_engine/internal/domain/newsletter/handler"
	"blog_engine/internal/domain/newsletter/model"
	"blog_engine/internal/domain/newsletter/repository"
	"blog_engine/internal/domain/newsletter/service"
	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// NewsletterModule 邮件订阅与联系留言
type NewsletterModule struct{}

func init() {
	registry.Register(&NewsletterModule{})
}

func (m *NewsletterModule) Name() string {
	return "newsletter"
}

func (m *NewsletterModule) Priority() int {
	return 30
}

// Models 需要迁移的表
func Models() []interface{} {
	return []interface{}{&model.Newsletter{}, &model.ContactMessage{}}
}

func (m *NewsletterModule) Init(ctx *registry.ModuleContext) error {
	if config.GlobalConfig.Database.AutoMigrate {
		if err := ctx.DB.AutoMigrate(Models()...); err != nil {
			return err
		}
	}

	// 1. 依赖注入
	repo := repository.NewNewsletterRepository(ctx.DB)
	h := handler.NewNewsletterHandler(service.NewNewsletterService(repo, ctx.Metrics))

	// 2. 路由注册
	limit := config.GlobalConfig.RateLimit
	setupRoutes(ctx.Router, h, middleware.NewIPRateLimiter(rate.Limit(limit.RPS), limit.Burst))

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.NewsletterHandler, limiter *middleware.IPRateLimiter) {
	// 匿名可写接口统一限流
	public := r.Group("")
	public.Use(middleware.RateLimitMiddleware(limiter))
	{
		public.POST("/newsletter/subscribe/", h.Subscribe)
		public.GET("/newsletter/unsubscribe/:token/", h.Unsubscribe)
		public.POST("/contact/", h.Contact)
	}
}
