package service

import (
	"context"
	"fmt"

	"coupon_hub/internal/domain/user/model"
	"coupon_hub/internal/domain/user/repository"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/pkg/apperror"

	"go.uber.org/zap"
)

// UserService 用户服务接口
type UserService interface {
	ResolveIdentity(ctx context.Context, ident *identity.Identity) (*model.User, error)
	GetUsers(ctx context.Context, page, limit int) ([]model.User, int64, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// userService 实现
type userService struct {
	repo repository.UserRepository
	log  *zap.Logger
}

// NewUserService 创建用户服务
func NewUserService(repo repository.UserRepository, log *zap.Logger) UserService {
	return &userService{repo: repo, log: log}
}

// ResolveIdentity 按 subject、邮箱查找本地用户，不存在则创建，并同步令牌中的资料
func (s *userService) ResolveIdentity(ctx context.Context, ident *identity.Identity) (*model.User, error) {
	user, err := s.lookup(ctx, ident)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user, err = s.provision(ctx, ident)
		if err != nil {
			return nil, err
		}
	} else if s.sync(user, ident) {
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, err
		}
		s.log.Info("user synced from identity", zap.String("user_id", user.ID), zap.String("subject", ident.Subject))
	}

	if !user.IsActive {
		return nil, apperror.Authorization("user account is inactive")
	}
	return user, nil
}

func (s *userService) lookup(ctx context.Context, ident *identity.Identity) (*model.User, error) {
	user, err := s.repo.GetBySubject(ctx, ident.Subject)
	if err == nil {
		return user, nil
	}
	if !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, err
	}

	if ident.Email == "" {
		return nil, nil
	}
	user, err = s.repo.GetByEmail(ctx, ident.Email)
	if err == nil {
		return user, nil
	}
	if !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, err
	}
	return nil, nil
}

func (s *userService) provision(ctx context.Context, ident *identity.Identity) (*model.User, error) {
	subject := ident.Subject
	user := &model.User{
		Email:             ident.Email,
		FullName:          ident.Name,
		IsActive:          true,
		IsSuperuser:       ident.HasRole(identity.RoleAdmin),
		ExternalSubjectID: &subject,
	}
	if user.Email == "" {
		user.Email = fmt.Sprintf("unknown_%s@example.com", subject)
	}
	if user.FullName == "" {
		user.FullName = "User " + subject
	}

	if err := s.repo.Create(ctx, user); err != nil {
		// 并发的首次请求可能已经创建了该用户
		if apperror.IsKind(err, apperror.KindConflict) {
			existing, lookupErr := s.lookup(ctx, ident)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.log.Info("user provisioned from identity", zap.String("user_id", user.ID), zap.String("subject", subject))
	return user, nil
}

// sync 返回是否有字段变更
func (s *userService) sync(user *model.User, ident *identity.Identity) bool {
	updated := false
	if user.ExternalSubjectID == nil || *user.ExternalSubjectID != ident.Subject {
		subject := ident.Subject
		user.ExternalSubjectID = &subject
		updated = true
	}
	if ident.Email != "" && user.Email != ident.Email {
		user.Email = ident.Email
		updated = true
	}
	if ident.Name != "" && user.FullName != ident.Name {
		user.FullName = ident.Name
		updated = true
	}
	if isAdmin := ident.HasRole(identity.RoleAdmin); user.IsSuperuser != isAdmin {
		user.IsSuperuser = isAdmin
		updated = true
	}
	return updated
}

// GetUsers 获取用户列表
func (s *userService) GetUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.GetList(ctx, (page-1)*limit, limit)
}

// GetUser 获取单个用户
func (s *userService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetByID(ctx, id)
}

// ToPrincipal 将本地用户与令牌角色组合为调用方
func ToPrincipal(user *model.User, ident *identity.Identity) *identity.Principal {
	return &identity.Principal{
		UserID:      user.ID,
		Email:       user.Email,
		IsSuperuser: user.IsSuperuser,
		Roles:       ident.Roles,
	}
}
