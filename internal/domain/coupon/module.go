package coupon

import (
	campaignRepo "coupon_hub/internal/domain/campaign/repository"
	campaignService "coupon_hub/internal/domain/campaign/service"
	"coupon_hub/internal/domain/coupon/handler"
	"coupon_hub/internal/domain/coupon/repository"
	"coupon_hub/internal/domain/coupon/service"
	userRepo "coupon_hub/internal/domain/user/repository"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/internal/pkg/middleware"
	"coupon_hub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// CouponModule 优惠券模块
type CouponModule struct{}

func init() {
	registry.Register(&CouponModule{})
}

func (m *CouponModule) Name() string {
	return "coupon"
}

func (m *CouponModule) Priority() int {
	return 10
}

func (m *CouponModule) Init(ctx *registry.ModuleContext) error {
	users, err := registry.Lookup[userRepo.UserRepository](ctx, registry.ServiceUserRepository)
	if err != nil {
		return err
	}
	campaigns, err := registry.Lookup[campaignRepo.CampaignRepository](ctx, registry.ServiceCampaignRepository)
	if err != nil {
		return err
	}
	campaignSvc, err := registry.Lookup[campaignService.CampaignService](ctx, registry.ServiceCampaignService)
	if err != nil {
		return err
	}

	// 1. 依赖注入
	repo := repository.NewCouponRepository(ctx.DB)
	svc := service.NewCouponService(
		repo, campaigns, users, ctx.Tx, ctx.Notifier, ctx.Metrics, ctx.Logger,
		ctx.Config.Coupon, service.Options{},
	)
	h := handler.NewCouponHandler(svc, ctx.Archiver, ctx.Config.Archive.Prefix, ctx.Logger)

	// 活动详情和列表的统计来自优惠券
	campaignSvc.UseStats(svc)

	// 2. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, h)

	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.CouponHandler) {
	admin := r.Group("/admin/coupons")
	admin.Use(auth, middleware.RequireRole(identity.RoleAdmin, identity.RoleManager))
	{
		admin.GET("", h.ListCoupons)
		admin.POST("", h.CreateCoupon)
		admin.GET("/:id", h.GetCoupon)
		admin.PUT("/:id", h.UpdateCoupon)
		admin.DELETE("/:id", middleware.RequireRole(identity.RoleAdmin), h.DeleteCoupon)

		admin.POST("/generate/:campaign_id/:count", h.GenerateCoupons)
		admin.POST("/assign/bulk/:campaign_id", h.AssignCampaignToAll)
		admin.POST("/assign/:coupon_id/user/:user_id", h.AssignCoupon)
		admin.POST("/import/:campaign_id", h.ImportCoupons)
		admin.GET("/unassigned/:campaign_id", h.ListUnassigned)
		admin.GET("/stats/:campaign_id", h.CampaignStats)
		admin.GET("/user/:user_id/campaign/:campaign_id", h.GetUserCouponForCampaign)
	}

	user := r.Group("/user/coupons")
	user.Use(auth)
	{
		user.GET("/my", h.MyCoupons)
		user.GET("/campaign/:campaign_id", h.MyCouponForCampaign)
		user.POST("/redeem/:coupon_id", h.RedeemCoupon)
		user.GET("/:coupon_id", h.GetOwnCoupon)
	}
}
