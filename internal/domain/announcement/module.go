package announcement

import (
	"coupon_hub/internal/domain/announcement/handler"
	"coupon_hub/internal/domain/announcement/repository"
	"coupon_hub/internal/domain/announcement/service"
	campaignRepo "coupon_hub/internal/domain/campaign/repository"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/internal/pkg/middleware"
	"coupon_hub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// AnnouncementModule 公告模块
type AnnouncementModule struct{}

func init() {
	registry.Register(&AnnouncementModule{})
}

func (m *AnnouncementModule) Name() string {
	return "announcement"
}

func (m *AnnouncementModule) Priority() int {
	return 20
}

func (m *AnnouncementModule) Init(ctx *registry.ModuleContext) error {
	campaigns, err := registry.Lookup[campaignRepo.CampaignRepository](ctx, registry.ServiceCampaignRepository)
	if err != nil {
		return err
	}

	repo := repository.NewAnnouncementRepository(ctx.DB)
	svc := service.NewAnnouncementService(repo, campaigns, ctx.Logger)
	h := handler.NewAnnouncementHandler(svc)

	setupRoutes(ctx.Router, ctx.Auth, h)
	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.AnnouncementHandler) {
	public := r.Group("/announcements")
	public.GET("/published", h.ListPublished)

	authed := r.Group("/announcements")
	authed.Use(auth)
	{
		authed.GET("", h.ListAnnouncements)
		authed.GET("/:id", h.GetAnnouncement)
	}

	admin := r.Group("/admin/announcements")
	admin.Use(auth, middleware.RequireRole(identity.RoleAdmin, identity.RoleManager))
	{
		admin.POST("", h.CreateAnnouncement)
		admin.PUT("/:id", h.UpdateAnnouncement)
		admin.DELETE("/:id", middleware.RequireRole(identity.RoleAdmin), h.DeleteAnnouncement)
	}
}
