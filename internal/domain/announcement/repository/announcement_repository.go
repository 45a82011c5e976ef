package repository

import (
	"context"
	"strings"
	"time"

	"coupon_hub/internal/domain/announcement/model"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/database"

	"gorm.io/gorm"
)

// Filter 列表过滤条件
type Filter struct {
	Category      string
	Search        string
	CreatedSince  *time.Time
	PublishedOnly bool
	// NotExpiredAt 非空时排除在该时刻已过期的公告
	NotExpiredAt *time.Time
	Offset       int
	Limit        int
}

type AnnouncementRepository interface {
	Create(ctx context.Context, a *model.Announcement) error
	Update(ctx context.Context, a *model.Announcement) error
	GetByID(ctx context.Context, id string) (*model.Announcement, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, f Filter) ([]model.Announcement, int64, error)
}

type announcementRepository struct {
	db *gorm.DB
}

func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

func (r *announcementRepository) active(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db).Model(&model.Announcement{}).Where("state = ?", model.StateActive)
}

func (r *announcementRepository) Create(ctx context.Context, a *model.Announcement) error {
	if a.State == "" {
		a.State = model.StateActive
	}
	return apperror.FromStore(database.Conn(ctx, r.db).Create(a).Error, "announcement")
}

func (r *announcementRepository) Update(ctx context.Context, a *model.Announcement) error {
	result := r.active(ctx).
		Where("id = ?", a.ID).
		Select("title", "description", "category", "requires_coupon", "campaign_id",
			"is_published", "publish_date", "created_date", "expiry_date", "updated_at").
		Updates(a)
	if result.Error != nil {
		return apperror.FromStore(result.Error, "announcement")
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("announcement not found")
	}
	return nil
}

func (r *announcementRepository) GetByID(ctx context.Context, id string) (*model.Announcement, error) {
	var a model.Announcement
	if err := r.active(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, apperror.FromStore(err, "announcement")
	}
	return &a, nil
}

// SoftDelete 只能删除仍处于 active 的公告
func (r *announcementRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	result := r.active(ctx).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":      model.StateDeleted,
			"deleted_at": at,
			"updated_at": at,
		})
	if result.Error != nil {
		return apperror.FromStore(result.Error, "announcement")
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("announcement not found")
	}
	return nil
}

func (r *announcementRepository) List(ctx context.Context, f Filter) ([]model.Announcement, int64, error) {
	query := r.active(ctx)
	if f.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}
	if f.NotExpiredAt != nil {
		query = query.Where("expiry_date IS NULL OR expiry_date > ?", *f.NotExpiredAt)
	}
	if f.CreatedSince != nil {
		query = query.Where("created_date >= ?", *f.CreatedSince)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		query = query.Where("category ILIKE ?", "%"+c+"%")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", like, like)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.FromStore(err, "announcement")
	}

	var list []model.Announcement
	err := query.Order("created_date DESC, id").Offset(f.Offset).Limit(f.Limit).Find(&list).Error
	if err != nil {
		return nil, 0, apperror.FromStore(err, "announcement")
	}
	return list, total, nil
}
