package response

import (
	"net/http"

	"coupon_hub/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// ErrorDetail 校验类错误的定位信息
type ErrorDetail struct {
	Kind   string   `json:"kind"`
	Row    int      `json:"row,omitempty"`
	Field  string   `json:"field,omitempty"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// Abort 错误响应并终止后续 handler
func Abort(c *gin.Context, httpCode int, errCode int, msg string) {
	c.AbortWithStatusJSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// Status 根据错误类别返回 HTTP 状态码和业务码
func Status(err error) (int, int) {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound, ErrNotFound
	case apperror.KindConflict:
		return http.StatusConflict, ErrConflict
	case apperror.KindAuthorization:
		return http.StatusForbidden, ErrForbidden
	case apperror.KindValidation:
		return http.StatusBadRequest, ErrValidation
	case apperror.KindStorage:
		return http.StatusServiceUnavailable, ErrStorage
	default:
		return http.StatusInternalServerError, ErrServerInternal
	}
}

// FromError 将业务错误映射为 HTTP 响应
func FromError(c *gin.Context, err error) {
	httpCode, errCode := Status(err)
	appErr, ok := apperror.As(err)
	if !ok {
		Error(c, httpCode, errCode, "internal server error")
		return
	}

	var data interface{}
	if appErr.Row > 0 || appErr.Field != "" || len(appErr.Values) > 0 {
		data = ErrorDetail{
			Kind:   appErr.Kind.String(),
			Row:    appErr.Row,
			Field:  appErr.Field,
			Value:  appErr.Value,
			Values: appErr.Values,
		}
	}

	msg := appErr.Message
	if appErr.Kind == apperror.KindStorage {
		// 不向调用方暴露底层存储细节
		msg = "storage temporarily unavailable"
	}
	c.JSON(httpCode, Response{Code: errCode, Message: msg, Data: data})
}
