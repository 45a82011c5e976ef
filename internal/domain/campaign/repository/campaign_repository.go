package repository

import (
	"context"
	"strings"

	"coupon_hub/internal/domain/campaign/model"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignRepository 活动仓库
type CampaignRepository interface {
	Create(ctx context.Context, campaign *model.Campaign) error
	Update(ctx context.Context, campaign *model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	GetForUpdate(ctx context.Context, id string) (*model.Campaign, error)
	List(ctx context.Context, search string, offset, limit int) ([]model.Campaign, int64, error)
	CountCoupons(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type campaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	return apperror.FromStore(database.Conn(ctx, r.db).Create(campaign).Error, "campaign")
}

func (r *campaignRepository) Update(ctx context.Context, campaign *model.Campaign) error {
	return apperror.FromStore(database.Conn(ctx, r.db).Save(campaign).Error, "campaign")
}

func (r *campaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, apperror.FromStore(err, "campaign")
	}
	return &campaign, nil
}

// GetForUpdate 加行锁读取，必须在事务内调用
func (r *campaignRepository) GetForUpdate(ctx context.Context, id string) (*model.Campaign, error) {
	var campaign model.Campaign
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&campaign).Error
	if err != nil {
		return nil, apperror.FromStore(err, "campaign")
	}
	return &campaign, nil
}

// List 按标题、描述模糊搜索
func (r *campaignRepository) List(ctx context.Context, search string, offset, limit int) ([]model.Campaign, int64, error) {
	var campaigns []model.Campaign
	var total int64

	query := database.Conn(ctx, r.db).Model(&model.Campaign{})
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + s + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", like, like)
	}

	query = query.Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.FromStore(err, "campaign")
	}
	if err := query.Order("created_at DESC, id").Offset(offset).Limit(limit).Find(&campaigns).Error; err != nil {
		return nil, 0, apperror.FromStore(err, "campaign")
	}
	return campaigns, total, nil
}

// CountCoupons 统计引用该活动的优惠券数量
func (r *campaignRepository) CountCoupons(ctx context.Context, id string) (int64, error) {
	var count int64
	if err := database.Conn(ctx, r.db).Table("coupons").Where("campaign_id = ?", id).Count(&count).Error; err != nil {
		return 0, apperror.FromStore(err, "coupon")
	}
	return count, nil
}

func (r *campaignRepository) Delete(ctx context.Context, id string) error {
	result := database.Conn(ctx, r.db).Where("id = ?", id).Delete(&model.Campaign{})
	if result.Error != nil {
		return apperror.FromStore(result.Error, "campaign")
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("campaign not found")
	}
	return nil
}
