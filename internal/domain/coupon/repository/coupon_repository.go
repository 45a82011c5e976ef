package repository

import (
	"context"
	"strings"
	"time"

	campaignModel "coupon_hub/internal/domain/campaign/model"
	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const createBatchSize = 500

// CouponFilter 管理端列表过滤条件
type CouponFilter struct {
	Search         string
	Category       string
	CampaignID     string
	AssignedUserID string
	Offset         int
	Limit          int
}

// CouponRepository 优惠券仓库
type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	CreateBatch(ctx context.Context, coupons []*model.Coupon) error
	GetByID(ctx context.Context, id string) (*model.Coupon, error)
	GetForUpdate(ctx context.Context, id string) (*model.Coupon, error)
	UpdateDetails(ctx context.Context, coupon *model.Coupon) error
	Delete(ctx context.Context, id string) error

	AssignIfUnassigned(ctx context.Context, id, userID string) (bool, error)
	AssignBatch(ctx context.Context, ids []string, userID string) (int64, error)
	MarkRedeemed(ctx context.Context, id, userID string, at time.Time) (bool, error)

	LockUnassigned(ctx context.Context, campaignID string) ([]model.Coupon, error)
	ListUnassigned(ctx context.Context, campaignID string) ([]model.Coupon, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]model.Coupon, error)
	StatsByCampaign(ctx context.Context, campaignIDs []string) (map[string]campaignModel.Stats, error)
	List(ctx context.Context, f CouponFilter) ([]model.Coupon, int64, error)
	ListByUser(ctx context.Context, userID string) ([]model.Coupon, error)
	FindByUserAndCampaign(ctx context.Context, userID, campaignID string) (*model.Coupon, error)
	ExistingCodes(ctx context.Context, codes []string) ([]string, error)
}

type couponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	return apperror.FromStore(database.Conn(ctx, r.db).Create(coupon).Error, "coupon")
}

// CreateBatch 分批插入，调用方负责事务
func (r *couponRepository) CreateBatch(ctx context.Context, coupons []*model.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}
	return apperror.FromStore(database.Conn(ctx, r.db).CreateInBatches(coupons, createBatchSize).Error, "coupon")
}

func (r *couponRepository) GetByID(ctx context.Context, id string) (*model.Coupon, error) {
	var coupon model.Coupon
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&coupon).Error; err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}
	return &coupon, nil
}

// GetForUpdate SELECT ... FOR UPDATE，必须在事务内调用
func (r *couponRepository) GetForUpdate(ctx context.Context, id string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&coupon).Error
	if err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}
	return &coupon, nil
}

// UpdateDetails 只更新可编辑字段，归属和核销状态不在此处修改
func (r *couponRepository) UpdateDetails(ctx context.Context, coupon *model.Coupon) error {
	err := database.Conn(ctx, r.db).
		Model(coupon).
		Select("code", "discount_type", "discount_value", "expires_at", "campaign_id", "updated_at").
		Updates(coupon).Error
	return apperror.FromStore(err, "coupon")
}

func (r *couponRepository) Delete(ctx context.Context, id string) error {
	result := database.Conn(ctx, r.db).Where("id = ?", id).Delete(&model.Coupon{})
	if result.Error != nil {
		return apperror.FromStore(result.Error, "coupon")
	}
	if result.RowsAffected == 0 {
		return apperror.NotFound("coupon not found")
	}
	return nil
}

// AssignIfUnassigned 条件更新，仅当券未分配且未核销时写入，返回是否命中
func (r *couponRepository) AssignIfUnassigned(ctx context.Context, id, userID string) (bool, error) {
	result := database.Conn(ctx, r.db).
		Model(&model.Coupon{}).
		Where("id = ? AND assigned_to_user_id IS NULL AND redeemed = ?", id, false).
		Updates(map[string]interface{}{
			"assigned_to_user_id": userID,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return false, apperror.FromStore(result.Error, "coupon")
	}
	return result.RowsAffected == 1, nil
}

// AssignBatch 批量条件更新，返回实际更新行数
func (r *couponRepository) AssignBatch(ctx context.Context, ids []string, userID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := database.Conn(ctx, r.db).
		Model(&model.Coupon{}).
		Where("id IN ? AND assigned_to_user_id IS NULL AND redeemed = ?", ids, false).
		Updates(map[string]interface{}{
			"assigned_to_user_id": userID,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return 0, apperror.FromStore(result.Error, "coupon")
	}
	return result.RowsAffected, nil
}

// MarkRedeemed 条件更新，仅当归属匹配且未核销时写入
func (r *couponRepository) MarkRedeemed(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	result := database.Conn(ctx, r.db).
		Model(&model.Coupon{}).
		Where("id = ? AND assigned_to_user_id = ? AND redeemed = ?", id, userID, false).
		Updates(map[string]interface{}{
			"redeemed":    true,
			"redeemed_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, apperror.FromStore(result.Error, "coupon")
	}
	return result.RowsAffected == 1, nil
}

func (r *couponRepository) unassignedQuery(ctx context.Context, campaignID string) *gorm.DB {
	return database.Conn(ctx, r.db).
		Where("campaign_id = ? AND assigned_to_user_id IS NULL AND redeemed = ?", campaignID, false).
		Order("created_at, id")
}

// LockUnassigned 锁定活动下全部可分配的券，顺序稳定
func (r *couponRepository) LockUnassigned(ctx context.Context, campaignID string) ([]model.Coupon, error) {
	var coupons []model.Coupon
	err := r.unassignedQuery(ctx, campaignID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Find(&coupons).Error
	if err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}
	return coupons, nil
}

func (r *couponRepository) ListUnassigned(ctx context.Context, campaignID string) ([]model.Coupon, error) {
	var coupons []model.Coupon
	if err := r.unassignedQuery(ctx, campaignID).Find(&coupons).Error; err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}
	return coupons, nil
}

// ListByCampaign 活动下全部券，只取统计需要的列
func (r *couponRepository) ListByCampaign(ctx context.Context, campaignID string) ([]model.Coupon, error) {
	var coupons []model.Coupon
	err := database.Conn(ctx, r.db).
		Select("id", "assigned_to_user_id", "redeemed").
		Where("campaign_id = ?", campaignID).
		Find(&coupons).Error
	if err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}
	return coupons, nil
}

type statsRow struct {
	CampaignID string
	Total      int64
	Assigned   int64
	Redeemed   int64
}

// StatsByCampaign 列表页按活动聚合
func (r *couponRepository) StatsByCampaign(ctx context.Context, campaignIDs []string) (map[string]campaignModel.Stats, error) {
	out := make(map[string]campaignModel.Stats, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return out, nil
	}

	var rows []statsRow
	err := database.Conn(ctx, r.db).
		Model(&model.Coupon{}).
		Select("campaign_id, COUNT(*) AS total, COUNT(assigned_to_user_id) AS assigned, COUNT(*) FILTER (WHERE redeemed) AS redeemed").
		Where("campaign_id IN ?", campaignIDs).
		Group("campaign_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}

	for _, row := range rows {
		out[row.CampaignID] = campaignModel.Stats{
			Total:      row.Total,
			Assigned:   row.Assigned,
			Unassigned: row.Total - row.Assigned,
			Redeemed:   row.Redeemed,
		}
	}
	return out, nil
}

// List 管理端列表，category 按活动标题或描述匹配
func (r *couponRepository) List(ctx context.Context, f CouponFilter) ([]model.Coupon, int64, error) {
	query := database.Conn(ctx, r.db).Model(&model.Coupon{})

	if s := strings.TrimSpace(f.Search); s != "" {
		query = query.Where("coupons.code ILIKE ?", "%"+s+"%")
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		like := "%" + c + "%"
		query = query.
			Joins("LEFT JOIN campaigns ON campaigns.id = coupons.campaign_id").
			Where("campaigns.title ILIKE ? OR campaigns.description ILIKE ?", like, like)
	}
	if f.CampaignID != "" {
		query = query.Where("coupons.campaign_id = ?", f.CampaignID)
	}
	if f.AssignedUserID != "" {
		query = query.Where("coupons.assigned_to_user_id = ?", f.AssignedUserID)
	}

	// Session 后 Count 与 Find 互不影响
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.FromStore(err, "coupon")
	}

	var coupons []model.Coupon
	err := query.
		Select("coupons.*").
		Order("coupons.created_at DESC, coupons.id").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&coupons).Error
	if err != nil {
		return nil, 0, apperror.FromStore(err, "coupon")
	}
	return coupons, total, nil
}

func (r *couponRepository) ListByUser(ctx context.Context, userID string) ([]model.Coupon, error) {
	var coupons []model.Coupon
	err := database.Conn(ctx, r.db).
		Where("assigned_to_user_id = ?", userID).
		Order("created_at DESC, id").
		Find(&coupons).Error
	if err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}
	return coupons, nil
}

func (r *couponRepository) FindByUserAndCampaign(ctx context.Context, userID, campaignID string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := database.Conn(ctx, r.db).
		Where("assigned_to_user_id = ? AND campaign_id = ?", userID, campaignID).
		Order("created_at, id").
		First(&coupon).Error
	if err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}
	return &coupon, nil
}

// ExistingCodes 返回 codes 中已存在的券码
func (r *couponRepository) ExistingCodes(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var found []string
	err := database.Conn(ctx, r.db).
		Model(&model.Coupon{}).
		Where("code IN ?", codes).
		Order("code").
		Pluck("code", &found).Error
	if err != nil {
		return nil, apperror.FromStore(err, "coupon")
	}
	return found, nil
}
