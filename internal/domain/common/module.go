package common

import (
	commonHandler "coupon_hub/internal/pkg/common"
	"coupon_hub/internal/pkg/registry"

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
	var pinger commonHandler.Pinger
	if ctx.DB != nil {
		sqlDB, err := ctx.DB.DB()
		if err != nil {
			return err
		}
		pinger = sqlDB
	}
	h := commonHandler.NewHealthHandler(pinger, 0, ctx.Logger)

	setupRoutes(ctx.Router, h, ctx.Config == nil || !ctx.Config.IsProduction())
	return nil
}

func setupRoutes(r *gin.Engine, h *commonHandler.HealthHandler, docs bool) {
	r.GET("/health", h.Live)
	r.GET("/health/ready", h.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}
