package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"coupon_hub/internal/pkg/identity"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/metrics"
	"coupon_hub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 上下文键
const (
	ContextUserID    = "userID"
	ContextPrincipal = "principal"
	ContextRoles     = "roles"
)

// UserResolver 将外部身份映射为本地用户 (不存在则创建)
type UserResolver interface {
	ResolveIdentity(ctx context.Context, ident *identity.Identity) (*identity.Principal, error)
}

// ResolverFunc 函数适配器
type ResolverFunc func(ctx context.Context, ident *identity.Identity) (*identity.Principal, error)

func (f ResolverFunc) ResolveIdentity(ctx context.Context, ident *identity.Identity) (*identity.Principal, error) {
	return f(ctx, ident)
}

// AuthMiddleware Bearer 令牌认证中间件
func AuthMiddleware(verifier identity.TokenVerifier, resolver UserResolver, log *zap.Logger, m *metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, response.ErrAuthFailed, "Authorization header is required")
			return
		}

		// 检查格式 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Abort(c, http.StatusUnauthorized, response.ErrAuthFailed, "Invalid authorization header format")
			return
		}

		ident, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			recordVerification(m, "invalid")
			log.Debug("token verification failed", zap.Error(err))
			response.Abort(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid or expired token")
			return
		}
		recordVerification(m, "ok")

		principal, err := resolver.ResolveIdentity(c.Request.Context(), ident)
		if err != nil {
			if apperror.IsKind(err, apperror.KindAuthorization) {
				response.Abort(c, http.StatusForbidden, response.ErrUserInactive, err.Error())
				return
			}
			log.Error("resolve identity failed", zap.String("subject", ident.Subject), zap.Error(err))
			response.FromError(c, err)
			c.Abort()
			return
		}

		// 将调用方存入上下文
		c.Set(ContextUserID, principal.UserID)
		c.Set(ContextPrincipal, principal)
		c.Set(ContextRoles, principal.Roles)
		c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), principal))

		c.Next()
	}
}

// RequireRole 角色校验中间件，满足任一角色即可
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, response.ErrNoPermission, "Unauthorized")
			return
		}
		if !p.HasAnyRole(roles...) {
			response.Abort(c, http.StatusForbidden, response.ErrNoPermission, "Permission denied")
			return
		}
		c.Next()
	}
}

// CurrentPrincipal 当前调用方
func CurrentPrincipal(c *gin.Context) (*identity.Principal, bool) {
	v, exists := c.Get(ContextPrincipal)
	if !exists {
		return nil, false
	}
	p, ok := v.(*identity.Principal)
	return p, ok && p != nil
}

// CurrentUserID 当前用户 ID
func CurrentUserID(c *gin.Context) (string, error) {
	p, ok := CurrentPrincipal(c)
	if !ok {
		return "", errors.New("no authenticated user in context")
	}
	return p.UserID, nil
}

func recordVerification(m *metrics.MetricsCollector, result string) {
	if m != nil {
		m.RecordTokenVerification(result)
	}
}
