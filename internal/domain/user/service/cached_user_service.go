package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon_hub/internal/domain/user/model"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/pkg/cache"
	"coupon_hub/pkg/metrics"

	"go.uber.org/zap"
)

// CachedUserService 带缓存的用户服务
type CachedUserService struct {
	next    UserService
	cache   cache.CacheService
	metrics *metrics.MetricsCollector
	log     *zap.Logger
}

// NewCachedUserService 创建带缓存的用户服务
func NewCachedUserService(next UserService, c cache.CacheService, m *metrics.MetricsCollector, log *zap.Logger) UserService {
	return &CachedUserService{
		next:    next,
		cache:   c,
		metrics: m,
		log:     log,
	}
}

// 缓存键常量
const (
	UserCacheKeyPrefix     = "user:"
	UserListCacheKeyPrefix = "user_list:"
	UserCacheTTL           = time.Hour * 2
	UserListCacheTTL       = time.Minute * 5
)

// getUserCacheKey 获取用户缓存键
func (s *CachedUserService) getUserCacheKey(id string) string {
	return fmt.Sprintf("%s%s", UserCacheKeyPrefix, id)
}

// getUserListCacheKey 获取用户列表缓存键
func (s *CachedUserService) getUserListCacheKey(page, limit int) string {
	return fmt.Sprintf("%s%d:%d", UserListCacheKeyPrefix, page, limit)
}

// invalidateUserCache 清除用户相关缓存
func (s *CachedUserService) invalidateUserCache(ctx context.Context, userID string) error {
	// 清除用户缓存
	if err := s.cache.Delete(ctx, s.getUserCacheKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate user cache: %w", err)
	}

	// 清除用户列表缓存（所有页）
	if err := s.cache.InvalidatePattern(ctx, UserListCacheKeyPrefix+"*"); err != nil {
		return fmt.Errorf("failed to invalidate user list cache: %w", err)
	}

	return nil
}

func (s *CachedUserService) record(prefix string, hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(prefix, hit)
	}
}

// ResolveIdentity 不走缓存，资料可能变更，成功后清除该用户缓存
func (s *CachedUserService) ResolveIdentity(ctx context.Context, ident *identity.Identity) (*model.User, error) {
	user, err := s.next.ResolveIdentity(ctx, ident)
	if err != nil {
		return nil, err
	}

	var cached model.User
	if err := s.cache.Get(ctx, s.getUserCacheKey(user.ID), &cached); err == nil && userChanged(&cached, user) {
		if err := s.invalidateUserCache(ctx, user.ID); err != nil {
			s.log.Warn("failed to invalidate cache after identity sync", zap.Error(err))
		}
	}
	return user, nil
}

func userChanged(a, b *model.User) bool {
	return a.Email != b.Email || a.FullName != b.FullName ||
		a.IsActive != b.IsActive || a.IsSuperuser != b.IsSuperuser
}

// GetUsers 获取用户列表（带缓存）
func (s *CachedUserService) GetUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	cacheKey := s.getUserListCacheKey(page, limit)

	// 尝试从缓存获取
	var cachedResult struct {
		Users []model.User `json:"users"`
		Total int64        `json:"total"`
	}

	if err := s.cache.Get(ctx, cacheKey, &cachedResult); err == nil {
		s.record(UserListCacheKeyPrefix, true)
		return cachedResult.Users, cachedResult.Total, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("user list cache read failed", zap.Error(err))
	}
	s.record(UserListCacheKeyPrefix, false)

	// 缓存未命中，从数据库获取
	users, total, err := s.next.GetUsers(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	// 缓存结果
	cachedResult.Users = users
	cachedResult.Total = total
	if err := s.cache.Set(ctx, cacheKey, cachedResult, UserListCacheTTL); err != nil {
		// 缓存失败不影响业务逻辑，只记录日志
		s.log.Warn("failed to cache user list", zap.Error(err))
	}

	return users, total, nil
}

// GetUser 获取单个用户（带缓存）
func (s *CachedUserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	cacheKey := s.getUserCacheKey(id)

	// 尝试从缓存获取
	var user model.User
	if err := s.cache.Get(ctx, cacheKey, &user); err == nil {
		s.record(UserCacheKeyPrefix, true)
		return &user, nil
	}
	s.record(UserCacheKeyPrefix, false)

	// 缓存未命中，从数据库获取
	userData, err := s.next.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	// 缓存结果
	if err := s.cache.Set(ctx, cacheKey, userData, UserCacheTTL); err != nil {
		s.log.Warn("failed to cache user", zap.String("user_id", id), zap.Error(err))
	}

	return userData, nil
}
