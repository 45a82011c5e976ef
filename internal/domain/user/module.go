package user

import (
	"context"

	"coupon_hub/internal/domain/user/handler"
	"coupon_hub/internal/domain/user/repository"
	"coupon_hub/internal/domain/user/service"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/internal/pkg/middleware"
	"coupon_hub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// UserModule 用户模块
type UserModule struct{}

func init() {
	// 自动注册模块
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	// 用户模块优先级最高，认证中间件依赖它
	return 1
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	userRepo := repository.NewUserRepository(ctx.DB)
	userService := service.NewUserService(userRepo, ctx.Logger)
	if ctx.Cache != nil {
		userService = service.NewCachedUserService(userService, ctx.Cache, ctx.Metrics, ctx.Logger)
	}
	userHandler := handler.NewUserHandler(userService)

	// 2. 认证中间件供其他模块复用
	resolver := middleware.ResolverFunc(func(c context.Context, ident *identity.Identity) (*identity.Principal, error) {
		u, err := userService.ResolveIdentity(c, ident)
		if err != nil {
			return nil, err
		}
		return service.ToPrincipal(u, ident), nil
	})
	ctx.Auth = middleware.AuthMiddleware(ctx.Verifier, resolver, ctx.Logger, ctx.Metrics)
	ctx.Provide(registry.ServiceUserRepository, userRepo)

	// 3. 路由注册
	setupRoutes(ctx.Router, ctx.Auth, userHandler)

	return nil
}

func setupRoutes(r *gin.Engine, auth gin.HandlerFunc, h *handler.UserHandler) {
	userGroup := r.Group("/users")
	userGroup.Use(auth)
	{
		userGroup.GET("/me", h.GetMe)
	}

	adminGroup := r.Group("/admin/users")
	adminGroup.Use(auth, middleware.RequireRole(identity.RoleAdmin, identity.RoleManager))
	{
		adminGroup.GET("", h.GetUsers)
		adminGroup.GET("/:id", h.GetUser)
	}
}
