package repository

import (
	"context"

	"coupon_hub/internal/domain/user/model"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/database"

	"gorm.io/gorm"
)

// UserRepository 接口定义
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetBySubject(ctx context.Context, subject string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetList(ctx context.Context, offset, limit int) ([]model.User, int64, error)
	ListAllOrdered(ctx context.Context) ([]model.User, error)
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

// userRepository 实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建新的仓库实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 创建用户
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return apperror.FromStore(database.Conn(ctx, r.db).Create(user).Error, "user")
}

// Update 更新用户
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return apperror.FromStore(database.Conn(ctx, r.db).Save(user).Error, "user")
}

// GetByID 根据ID获取用户
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, apperror.FromStore(err, "user")
	}
	return &user, nil
}

// GetBySubject 根据身份提供方 subject 获取用户
func (r *userRepository) GetBySubject(ctx context.Context, subject string) (*model.User, error) {
	var user model.User
	if err := database.Conn(ctx, r.db).Where("external_subject_id = ?", subject).First(&user).Error; err != nil {
		return nil, apperror.FromStore(err, "user")
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := database.Conn(ctx, r.db).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, apperror.FromStore(err, "user")
	}
	return &user, nil
}

// GetList 获取用户列表（分页）
func (r *userRepository) GetList(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := database.Conn(ctx, r.db)
	if err := db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, apperror.FromStore(err, "user")
	}

	if err := db.Order("created_at, id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, apperror.FromStore(err, "user")
	}
	return users, total, nil
}

// ListAllOrdered 按创建时间、ID 返回全部用户，轮询分配依赖这个稳定顺序
func (r *userRepository) ListAllOrdered(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := database.Conn(ctx, r.db).Order("created_at, id").Find(&users).Error; err != nil {
		return nil, apperror.FromStore(err, "user")
	}
	return users, nil
}

// ExistingIDs 返回 ids 中实际存在的用户 ID
func (r *userRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	if err := database.Conn(ctx, r.db).Model(&model.User{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, apperror.FromStore(err, "user")
	}
	return found, nil
}
