package campaign

import (
	"coupon_hub/internal/domain/campaign/handler"
	"coupon_hub/internal/domain/campaign/repository"
	"coupon_hub/internal/domain/campaign/service"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/internal/pkg/middleware"
	"coupon_hub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CampaignModule 活动模块
type CampaignModule struct{}

func init() {
	registry.Register(&CampaignModule{})
}

func (m *CampaignModule) Name() string {
	return "campaign"
}

func (m *CampaignModule) Priority() int {
	// 先于 coupon 模块，优惠券需要校验活动
	return 5
}

func (m *CampaignModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	repo := repository.NewCampaignRepository(ctx.DB)
	svc := service.NewCampaignService(repo, ctx.Tx, ctx.Logger)
	h := handler.NewCampaignHandler(svc)

	ctx.Provide(registry.ServiceCampaignRepository, repo)
	ctx.Provide(registry.ServiceCampaignService, svc)

	// 2. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, h)

	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.CampaignHandler) {
	g := r.Group("/admin/campaigns")
	g.Use(auth, middleware.RequireRole(identity.RoleAdmin, identity.RoleManager))
	{
		g.GET("", h.ListCampaigns)
		g.POST("", h.CreateCampaign)
		g.GET("/:id", h.GetCampaign)
		g.PUT("/:id", h.UpdateCampaign)
		g.DELETE("/:id", middleware.RequireRole(identity.RoleAdmin), h.DeleteCampaign)
	}
}
