package handler

import (
	"net/http"

	"coupon_hub/internal/domain/campaign/service"
	pkgmodel "coupon_hub/pkg/model"
	"coupon_hub/pkg/response"
	"coupon_hub/pkg/utils"

	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	service service.CampaignService
}

func NewCampaignHandler(service service.CampaignService) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// ListQuery 列表查询参数
type ListQuery struct {
	utils.Pagination
	Search string `form:"search"`
}

func campaignID(c *gin.Context) (string, bool) {
	id, ok := pkgmodel.ParseID(c.Param("id"))
	if !ok {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid campaign id")
	}
	return id, ok
}

// CreateCampaign 创建活动
// @Summary 创建活动
// @Tags Campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateCampaignInput true "Campaign"
// @Success 201 {object} response.Response{data=model.Campaign}
// @Router /admin/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var input service.CreateCampaignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	campaign, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, campaign)
}

// ListCampaigns 活动列表 (含统计)
// @Summary 活动列表
// @Tags Campaigns
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search in title/description"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /admin/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	q.GetPageOffset()

	list, total, err := h.service.List(c.Request.Context(), q.Search, q.Page, q.Limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, utils.NewPageResult(list, total, q.Pagination))
}

// GetCampaign 活动详情
// @Summary 活动详情 (含统计)
// @Tags Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Response{data=model.CampaignWithStats}
// @Router /admin/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	campaign, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, campaign)
}

// UpdateCampaign 更新活动
// @Summary 更新活动
// @Tags Campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Param body body service.UpdateCampaignInput true "Fields to update"
// @Success 200 {object} response.Response{data=model.Campaign}
// @Router /admin/campaigns/{id} [put]
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var input service.UpdateCampaignInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	campaign, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, campaign)
}

// DeleteCampaign 删除活动，仍有优惠券时返回 409
// @Summary 删除活动 (仅管理员)
// @Tags Campaigns
// @Produce json
// @Security BearerAuth
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/campaigns/{id} [delete]
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Campaign deleted successfully"})
}
