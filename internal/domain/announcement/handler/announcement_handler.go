package handler

import (
	"net/http"

	"coupon_hub/internal/domain/announcement/service"
	"coupon_hub/internal/pkg/middleware"
	pkgmodel "coupon_hub/pkg/model"
	"coupon_hub/pkg/response"

	"github.com/gin-gonic/gin"
)

type AnnouncementHandler struct {
	service service.AnnouncementService
}

func NewAnnouncementHandler(service service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

func announcementID(c *gin.Context) (string, bool) {
	id, ok := pkgmodel.ParseID(c.Param("id"))
	if !ok {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid announcement id")
	}
	return id, ok
}

func privileged(c *gin.Context) bool {
	p, ok := middleware.CurrentPrincipal(c)
	return ok && p.IsPrivileged()
}

// ListPublished 公开的已发布公告
// @Summary 已发布公告
// @Tags Announcements
// @Produce json
// @Param category query string false "Category"
// @Param search query string false "Search in title/description"
// @Param new query bool false "Created in the last 10 days"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response{data=model.AnnouncementList}
// @Router /announcements/published [get]
func (h *AnnouncementHandler) ListPublished(c *gin.Context) {
	var q service.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	list, err := h.service.ListPublished(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// ListAnnouncements 管理员和运营可以看到草稿和已过期的公告
// @Summary 公告列表
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category"
// @Param search query string false "Search in title/description"
// @Param new query bool false "Created in the last 10 days"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response{data=model.AnnouncementList}
// @Router /announcements [get]
func (h *AnnouncementHandler) ListAnnouncements(c *gin.Context) {
	var q service.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	list, err := h.service.List(c.Request.Context(), q, privileged(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, list)
}

// GetAnnouncement 公告详情
// @Summary 公告详情
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Response{data=model.Announcement}
// @Router /announcements/{id} [get]
func (h *AnnouncementHandler) GetAnnouncement(c *gin.Context) {
	id, ok := announcementID(c)
	if !ok {
		return
	}
	a, err := h.service.Get(c.Request.Context(), id, privileged(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, a)
}

// CreateAnnouncement 创建公告
// @Summary 创建公告
// @Tags Announcements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateAnnouncementInput true "Announcement"
// @Success 201 {object} response.Response{data=model.Announcement}
// @Router /admin/announcements [post]
func (h *AnnouncementHandler) CreateAnnouncement(c *gin.Context) {
	var input service.CreateAnnouncementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	a, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, a)
}

// UpdateAnnouncement 更新公告
// @Summary 更新公告
// @Tags Announcements
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Param body body service.UpdateAnnouncementInput true "Fields"
// @Success 200 {object} response.Response{data=model.Announcement}
// @Router /admin/announcements/{id} [put]
func (h *AnnouncementHandler) UpdateAnnouncement(c *gin.Context) {
	id, ok := announcementID(c)
	if !ok {
		return
	}
	var input service.UpdateAnnouncementInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	a, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, a)
}

// DeleteAnnouncement 软删除
// @Summary 删除公告 (仅管理员)
// @Tags Announcements
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Response
// @Router /admin/announcements/{id} [delete]
func (h *AnnouncementHandler) DeleteAnnouncement(c *gin.Context) {
	id, ok := announcementID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "Announcement deleted successfully"})
}
