package registry

import (
	"fmt"
	"sort"

	"coupon_hub/internal/pkg/archive"
	"coupon_hub/internal/pkg/config"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/internal/pkg/push"
	"coupon_hub/pkg/cache"
	"coupon_hub/pkg/database"
	"coupon_hub/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 模块间共享服务名
const (
	ServiceUserRepository     = "user.repository"
	ServiceCampaignRepository = "campaign.repository"
	ServiceCampaignService    = "campaign.service"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Router   *gin.Engine
	Logger   *zap.Logger
	Tx       database.TxManager
	Cache    cache.CacheService
	Verifier identity.TokenVerifier
	Archiver archive.Archiver
	Notifier push.Notifier
	Metrics  *metrics.MetricsCollector

	// Auth 由 user 模块初始化后填充，其他模块复用
	Auth gin.HandlerFunc

	// services 模块间共享的服务，按名称注册
	services map[string]interface{}
}

// Provide 注册供其他模块使用的服务
func (c *ModuleContext) Provide(name string, svc interface{}) {
	if c.services == nil {
		c.services = make(map[string]interface{})
	}
	c.services[name] = svc
}

// Lookup 获取其他模块注册的服务
func Lookup[T any](c *ModuleContext, name string) (T, error) {
	var zero T
	svc, ok := c.services[name]
	if !ok {
		return zero, fmt.Errorf("service %q not provided, check module priority", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has type %T", name, svc)
	}
	return typed, nil
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// 例如：user 模块需要先于 coupon 模块初始化
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

// sorted 按优先级排序，优先级相同按名称
func sorted(registry map[string]Module) []Module {
	modules := make([]Module, 0, len(registry))
	for _, m := range registry {
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
	for _, module := range sorted(moduleRegistry) {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
		if ctx.Logger != nil {
			ctx.Logger.Info("module initialized", zap.String("module", module.Name()), zap.Int("priority", module.Priority()))
		}
	}
	return nil
}
