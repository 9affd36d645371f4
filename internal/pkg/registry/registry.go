package registry

import (
	"sort"

	"blog_engine/internal/pkg/push"
	"blog_engine/internal/pkg/session"
	"blog_engine/internal/pkg/uploader"
	"blog_engine/pkg/cache"
	"blog_engine/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	DB      *gorm.DB
	Redis   *redis.Client // 可能为 nil
	Router  *gin.Engine
	Cache   cache.CacheService
	Storage uploader.Storage
	Metrics *metrics.MetricsCollector
	Push    push.PushService // 未配置推送时为 nil
	Views   session.ViewTracker

	shutdown []func()
}

// OnShutdown 注册退出时的清理函数，例如停止后台 worker
func (c *ModuleContext) OnShutdown(fn func()) {
	c.shutdown = append(c.shutdown, fn)
}

// Shutdown 按注册的逆序执行清理
func (c *ModuleContext) Shutdown() {
	for i := len(c.shutdown) - 1; i >= 0; i-- {
		c.shutdown[i]()
	}
	c.shutdown = nil
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// 例如：post 模块需要 user 表先迁移
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// Sorted 按优先级返回模块，优先级相同时按名称排序
func Sorted() []Module {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})
	return modules
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	for _, module := range Sorted() {
		if err := module.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}
