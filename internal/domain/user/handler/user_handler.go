package handler

import (
	"net/http"

	"coupon_hub/internal/domain/user/model"
	"coupon_hub/internal/domain/user/service"
	"coupon_hub/internal/pkg/middleware"
	pkgmodel "coupon_hub/pkg/model"
	"coupon_hub/pkg/response"
	"coupon_hub/pkg/utils"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户处理器
type UserHandler struct {
	service service.UserService
}

// NewUserHandler 创建处理器
func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// MeResponse 当前用户
type MeResponse struct {
	*model.User
	Roles []string `json:"roles"`
}

// GetMe 获取当前用户
// @Summary 当前用户信息
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=MeResponse}
// @Router /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), p.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, MeResponse{User: user, Roles: p.Roles})
}

// GetUsers 获取用户列表
// @Summary 用户列表 (管理员)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /admin/users [get]
func (h *UserHandler) GetUsers(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	p.GetPageOffset()

	users, total, err := h.service.GetUsers(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, utils.NewPageResult(users, total, p))
}

// GetUser 获取单个用户
// @Summary 用户详情 (管理员)
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response{data=model.User}
// @Router /admin/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := pkgmodel.ParseID(c.Param("id"))
	if !ok {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid user id")
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}
