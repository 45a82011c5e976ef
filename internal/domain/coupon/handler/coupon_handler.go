package handler

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"coupon_hub/internal/domain/coupon/service"
	"coupon_hub/internal/pkg/archive"
	"coupon_hub/internal/pkg/middleware"
	pkgmodel "coupon_hub/pkg/model"
	"coupon_hub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CouponHandler struct {
	service       service.CouponService
	archiver      archive.Archiver
	archivePrefix string
	log           *zap.Logger
}

func NewCouponHandler(service service.CouponService, archiver archive.Archiver, archivePrefix string, log *zap.Logger) *CouponHandler {
	if archiver == nil {
		archiver = archive.NopArchiver{}
	}
	return &CouponHandler{service: service, archiver: archiver, archivePrefix: archivePrefix, log: log}
}

// pathID 解析路径中的 UUID 参数
func pathID(c *gin.Context, name string) (string, bool) {
	id, ok := pkgmodel.ParseID(c.Param(name))
	if !ok {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid "+name)
	}
	return id, ok
}

func currentUser(c *gin.Context) (string, bool) {
	id, err := middleware.CurrentUserID(c)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return "", false
	}
	return id, true
}

// ListCoupons 优惠券列表
// @Summary 优惠券列表
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search in code"
// @Param category query string false "Campaign title/description"
// @Param campaign_id query string false "Campaign ID"
// @Param assigned_user_id query string false "Assigned user ID"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response{data=model.CouponList}
// @Router /admin/coupons [get]
func (h *CouponHandler) ListCoupons(c *gin.Context) {
	var q service.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	list, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// CreateCoupon 创建单张优惠券
// @Summary 创建优惠券
// @Tags Coupons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateCouponInput true "Coupon"
// @Success 201 {object} response.Response{data=model.Coupon}
// @Router /admin/coupons [post]
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var input service.CreateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	coupon, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, coupon)
}

// GetCoupon 优惠券详情
// @Summary 优惠券详情
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Coupon ID"
// @Success 200 {object} response.Response{data=model.Coupon}
// @Router /admin/coupons/{id} [get]
func (h *CouponHandler) GetCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	coupon, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupon)
}

// UpdateCoupon 修改券码、折扣、过期时间或活动
// @Summary 更新优惠券
// @Tags Coupons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Coupon ID"
// @Param body body service.UpdateCouponInput true "Fields"
// @Success 200 {object} response.Response{data=model.Coupon}
// @Router /admin/coupons/{id} [put]
func (h *CouponHandler) UpdateCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input service.UpdateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	coupon, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupon)
}

// DeleteCoupon 删除优惠券
// @Summary 删除优惠券
// @Tags Coupons
// @Security BearerAuth
// @Param id path string true "Coupon ID"
// @Success 200 {object} response.Response
// @Router /admin/coupons/{id} [delete]
func (h *CouponHandler) DeleteCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// GenerateCoupons 为活动批量生成优惠券
// @Summary 批量生成
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param campaign_id path string true "Campaign ID"
// @Param count path int true "Count"
// @Success 201 {object} response.Response{data=model.GenerateResult}
// @Router /admin/coupons/generate/{campaign_id}/{count} [post]
func (h *CouponHandler) GenerateCoupons(c *gin.Context) {
	campaignID, ok := pathID(c, "campaign_id")
	if !ok {
		return
	}
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid count")
		return
	}

	result, err := h.service.Generate(c.Request.Context(), campaignID, count)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, result)
}

// AssignCampaignToAll 轮询分配活动内的未分配优惠券
// @Summary 轮询分配
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param campaign_id path string true "Campaign ID"
// @Success 200 {object} response.Response{data=model.BulkAssignResult}
// @Router /admin/coupons/assign/bulk/{campaign_id} [post]
func (h *CouponHandler) AssignCampaignToAll(c *gin.Context) {
	campaignID, ok := pathID(c, "campaign_id")
	if !ok {
		return
	}
	result, err := h.service.AssignCampaignToAll(c.Request.Context(), campaignID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// AssignCoupon 分配给指定用户
// @Summary 分配优惠券
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param coupon_id path string true "Coupon ID"
// @Param user_id path string true "User ID"
// @Success 200 {object} response.Response{data=model.Coupon}
// @Router /admin/coupons/assign/{coupon_id}/user/{user_id} [post]
func (h *CouponHandler) AssignCoupon(c *gin.Context) {
	couponID, ok := pathID(c, "coupon_id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	coupon, err := h.service.Assign(c.Request.Context(), couponID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupon)
}

// ImportCoupons 从 xlsx/csv 导入
// @Summary 导入优惠券
// @Tags Coupons
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param campaign_id path string true "Campaign ID"
// @Param file formData file true "Spreadsheet (.xlsx or .csv)"
// @Success 201 {object} response.Response{data=model.ImportResult}
// @Router /admin/coupons/import/{campaign_id} [post]
func (h *CouponHandler) ImportCoupons(c *gin.Context) {
	campaignID, ok := pathID(c, "campaign_id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "File is required")
		return
	}
	if fileHeader.Size > maxImportSize {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "File is too large")
		return
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, supported := contentTypes[ext]
	if !supported {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, errUnsupportedFormat.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Failed to open file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportSize+1))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Failed to read file")
		return
	}

	sheet, err := decodeSheet(fileHeader.Filename, data)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	result, err := h.service.Import(c.Request.Context(), campaignID, sheet)
	if err != nil {
		response.FromError(c, err)
		return
	}

	// 归档原始文件，失败不影响导入结果
	key := archive.ObjectKey(h.archivePrefix, campaignID, fileHeader.Filename, time.Now())
	url, err := h.archiver.Archive(c.Request.Context(), key, bytes.NewReader(data), contentType)
	if err != nil {
		h.log.Warn("archive import file failed", zap.String("campaign_id", campaignID), zap.String("key", key), zap.Error(err))
	} else {
		result.ArchiveURL = url
	}

	response.Created(c, result)
}

// ListUnassigned 活动内未分配的券
// @Summary 未分配优惠券
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param campaign_id path string true "Campaign ID"
// @Success 200 {object} response.Response{data=[]model.Coupon}
// @Router /admin/coupons/unassigned/{campaign_id} [get]
func (h *CouponHandler) ListUnassigned(c *gin.Context) {
	campaignID, ok := pathID(c, "campaign_id")
	if !ok {
		return
	}
	coupons, err := h.service.ListUnassigned(c.Request.Context(), campaignID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupons)
}

// CampaignStats 活动统计
// @Summary 活动统计
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param campaign_id path string true "Campaign ID"
// @Success 200 {object} response.Response
// @Router /admin/coupons/stats/{campaign_id} [get]
func (h *CouponHandler) CampaignStats(c *gin.Context) {
	campaignID, ok := pathID(c, "campaign_id")
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), campaignID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, stats)
}

// GetUserCouponForCampaign 查询用户在活动中的券
// @Summary 用户在活动中的券
// @Tags Coupons
// @Produce json
// @Security BearerAuth
// @Param user_id path string true "User ID"
// @Param campaign_id path string true "Campaign ID"
// @Success 200 {object} response.Response{data=model.Coupon}
// @Router /admin/coupons/user/{user_id}/campaign/{campaign_id} [get]
func (h *CouponHandler) GetUserCouponForCampaign(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	campaignID, ok := pathID(c, "campaign_id")
	if !ok {
		return
	}
	coupon, err := h.service.GetUserCouponForCampaign(c.Request.Context(), userID, campaignID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupon)
}

// MyCoupons 当前用户的券
// @Summary 我的优惠券
// @Tags UserCoupons
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]model.Coupon}
// @Router /user/coupons/my [get]
func (h *CouponHandler) MyCoupons(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	coupons, err := h.service.MyCoupons(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupons)
}

// MyCouponForCampaign 当前用户在活动中的券
// @Summary 我在活动中的券
// @Tags UserCoupons
// @Produce json
// @Security BearerAuth
// @Param campaign_id path string true "Campaign ID"
// @Success 200 {object} response.Response{data=model.Coupon}
// @Router /user/coupons/campaign/{campaign_id} [get]
func (h *CouponHandler) MyCouponForCampaign(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	campaignID, ok := pathID(c, "campaign_id")
	if !ok {
		return
	}
	coupon, err := h.service.GetUserCouponForCampaign(c.Request.Context(), userID, campaignID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupon)
}

// RedeemCoupon 核销自己的券
// @Summary 核销优惠券
// @Tags UserCoupons
// @Produce json
// @Security BearerAuth
// @Param coupon_id path string true "Coupon ID"
// @Success 200 {object} response.Response{data=model.Coupon}
// @Router /user/coupons/redeem/{coupon_id} [post]
func (h *CouponHandler) RedeemCoupon(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	couponID, ok := pathID(c, "coupon_id")
	if !ok {
		return
	}
	coupon, err := h.service.Redeem(c.Request.Context(), couponID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupon)
}

// GetOwnCoupon 查看自己的券
// @Summary 我的优惠券详情
// @Tags UserCoupons
// @Produce json
// @Security BearerAuth
// @Param coupon_id path string true "Coupon ID"
// @Success 200 {object} response.Response{data=model.Coupon}
// @Router /user/coupons/{coupon_id} [get]
func (h *CouponHandler) GetOwnCoupon(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	couponID, ok := pathID(c, "coupon_id")
	if !ok {
		return
	}
	coupon, err := h.service.GetOwnCoupon(c.Request.Context(), couponID, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, coupon)
}
