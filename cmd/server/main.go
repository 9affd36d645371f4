package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "blog_engine/docs"
	_ "blog_engine/internal/domain/common"
	_ "blog_engine/internal/domain/engagement"
	_ "blog_engine/internal/domain/newsletter"
	_ "blog_engine/internal/domain/post"
	_ "blog_engine/internal/domain/user"
	"blog_engine/internal/pkg/config"
	"blog_engine/internal/pkg/middleware"
	"blog_engine/internal/pkg/push"
	"blog_engine/internal/pkg/registry"
	"blog_engine/internal/pkg/session"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/pkg/cache"
	"blog_engine/pkg/database"
	"blog_engine/pkg/logger"
	"blog_engine/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title Blog Engine API
// @version 1.0
// @description 博客服务：文章、评论、点赞收藏关注、邮件订阅
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	// 1. 配置与日志
	config.LoadConfig()
	cfg := config.GlobalConfig
	if err := logger.Init(cfg.App.Env, cfg.App.Debug); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 2. 基础设施
	db, err := database.InitDatabase()
	if err != nil {
		logger.L().Fatal("database init failed", zap.Error(err))
	}
	rdb, err := database.InitRedis()
	if err != nil {
		logger.L().Fatal("redis init failed", zap.Error(err))
	}
	storage, err := uploader.NewStorage(cfg)
	if err != nil {
		logger.L().Fatal("storage init failed", zap.Error(err))
	}
	pusher, err := push.New(cfg.Push)
	if err != nil {
		logger.L().Fatal("push init failed", zap.Error(err))
	}
	collector := metrics.GetGlobalCollector()

	// 3. 路由与全局中间件
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware(collector))
	r.Use(session.Middleware(cfg.Session))

	if cfg.Media.Driver == "local" {
		r.Static(cfg.Media.BaseURL, cfg.Media.Root)
	}

	// 4. 模块初始化
	moduleCtx := &registry.ModuleContext{
		DB:      db,
		Redis:   rdb,
		Router:  r,
		Cache:   cache.New(rdb, "blog:"),
		Storage: storage,
		Metrics: collector,
		Push:    pusher,
		Views:   session.NewViewTracker(rdb, cfg.Session.MaxAge),
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.L().Fatal("module init failed", zap.Error(err))
	}

	// 5. 启动与优雅退出
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.L().Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L().Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.L().Error("server forced to shutdown", zap.Error(err))
	}

	// 停止后台 worker，等待队列中的通知处理完
	moduleCtx.Shutdown()

	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.L().Info("server exited")
}

// corsConfig "*" 表示允许所有来源，此时不携带凭证
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"},
		ExposeHeaders: []string{"X-Trace-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
