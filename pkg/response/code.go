package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 认证与权限 100xx
	ErrAuthFailed   = 10003
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005
	ErrUserInactive = 10006

	// 领域错误 200xx
	ErrNotFound   = 20001
	ErrConflict   = 20002
	ErrForbidden  = 20003
	ErrValidation = 20004

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
	ErrStorage         = 50004
)
