package service

import (
	"context"
	"strings"
	"time"

	campaignModel "coupon_hub/internal/domain/campaign/model"
	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/internal/domain/coupon/repository"
	userModel "coupon_hub/internal/domain/user/model"
	"coupon_hub/internal/pkg/config"
	"coupon_hub/internal/pkg/push"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/database"
	"coupon_hub/pkg/metrics"
	"coupon_hub/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CampaignReader 活动查询
type CampaignReader interface {
	GetByID(ctx context.Context, id string) (*campaignModel.Campaign, error)
}

// UserDirectory 用户查询，轮询分配依赖 ListAllOrdered 的稳定顺序
type UserDirectory interface {
	ListAllOrdered(ctx context.Context) ([]userModel.User, error)
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
}

// CouponService 优惠券服务
type CouponService interface {
	// 核心操作
	Generate(ctx context.Context, campaignID string, count int) (*model.GenerateResult, error)
	Assign(ctx context.Context, couponID, userID string) (*model.Coupon, error)
	AssignCampaignToAll(ctx context.Context, campaignID string) (*model.BulkAssignResult, error)
	Import(ctx context.Context, campaignID string, sheet Sheet) (*model.ImportResult, error)
	Redeem(ctx context.Context, couponID, actingUserID string) (*model.Coupon, error)
	Stats(ctx context.Context, campaignID string) (*campaignModel.Stats, error)
	StatsByCampaign(ctx context.Context, campaignIDs []string) (map[string]campaignModel.Stats, error)

	// 管理端
	Create(ctx context.Context, in CreateCouponInput) (*model.Coupon, error)
	Get(ctx context.Context, id string) (*model.Coupon, error)
	Update(ctx context.Context, id string, in UpdateCouponInput) (*model.Coupon, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q ListQuery) (*model.CouponList, error)
	ListUnassigned(ctx context.Context, campaignID string) ([]model.Coupon, error)
	GetUserCouponForCampaign(ctx context.Context, userID, campaignID string) (*model.Coupon, error)

	// 用户端
	MyCoupons(ctx context.Context, userID string) ([]model.Coupon, error)
	GetOwnCoupon(ctx context.Context, couponID, userID string) (*model.Coupon, error)
}

// Options 可替换的依赖，零值使用默认实现
type Options struct {
	Now       func() time.Time
	NewSuffix func(n int) string
}

type couponService struct {
	repo      repository.CouponRepository
	campaigns CampaignReader
	users     UserDirectory
	tx        database.TxManager
	notifier  push.Notifier
	metrics   *metrics.MetricsCollector
	log       *zap.Logger
	cfg       config.CouponConfig

	now       func() time.Time
	newSuffix func(n int) string
}

func NewCouponService(
	repo repository.CouponRepository,
	campaigns CampaignReader,
	users UserDirectory,
	tx database.TxManager,
	notifier push.Notifier,
	m *metrics.MetricsCollector,
	log *zap.Logger,
	cfg config.CouponConfig,
	opts Options,
) CouponService {
	s := &couponService{
		repo:      repo,
		campaigns: campaigns,
		users:     users,
		tx:        tx,
		notifier:  notifier,
		metrics:   m,
		log:       log,
		cfg:       cfg,
		now:       opts.Now,
		newSuffix: opts.NewSuffix,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newSuffix == nil {
		s.newSuffix = randomSuffix
	}
	if s.notifier == nil {
		s.notifier = push.NopNotifier{}
	}
	if s.cfg.CodeSuffixLen <= 0 {
		s.cfg.CodeSuffixLen = 8
	}
	return s
}

// observe 记录操作耗时和结果
func (s *couponService) observe(operation string, start time.Time, affected int, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = apperror.KindOf(err).String()
	}
	s.metrics.RecordCouponOperation(operation, result, time.Since(start), affected)
}

// logRejected 前置条件失败记 Warn，存储失败记 Error
func (s *couponService) logRejected(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch apperror.KindOf(err) {
	case apperror.KindStorage, apperror.KindUnknown:
		s.log.Error(msg, fields...)
	default:
		s.log.Warn(msg, fields...)
	}
}

// CreateCouponInput 管理端直接创建
type CreateCouponInput struct {
	Code             string          `json:"code" binding:"required"`
	DiscountType     string          `json:"discount_type" binding:"required"`
	DiscountValue    decimal.Decimal `json:"discount_value" swaggertype:"number"`
	ExpiresAt        *time.Time      `json:"expires_at"`
	CampaignID       *string         `json:"campaign_id"`
	AssignedToUserID *string         `json:"assigned_to_user_id"`
}

// UpdateCouponInput 可编辑字段，nil 保持不变
type UpdateCouponInput struct {
	Code          *string          `json:"code"`
	DiscountType  *string          `json:"discount_type"`
	DiscountValue *decimal.Decimal `json:"discount_value" swaggertype:"number"`
	ExpiresAt     *time.Time       `json:"expires_at"`
	CampaignID    *string          `json:"campaign_id"`
}

// ListQuery 管理端列表查询
type ListQuery struct {
	utils.Pagination
	Search         string `form:"search"`
	Category       string `form:"category"`
	CampaignID     string `form:"campaign_id"`
	AssignedUserID string `form:"assigned_user_id"`
}

func normalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", apperror.Validation("code must not be empty").WithField("code", code)
	}
	if len(code) > model.MaxCodeLength {
		return "", apperror.Validation("code must be at most %d characters", model.MaxCodeLength).WithField("code", code)
	}
	return code, nil
}

func normalizeDiscountType(t string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(t))
	if !model.ValidDiscountType(n) {
		return "", apperror.Validation("discount_type must be one of fixed, percentage").WithField("discount_type", t)
	}
	return n, nil
}

var (
	maxDiscountValue = decimal.New(1, 10) // numeric(12,2) 上限
	hundred          = decimal.NewFromInt(100)
)

func validateDiscountValue(discountType string, v decimal.Decimal) error {
	if v.IsNegative() {
		return apperror.Validation("discount_value must not be negative").WithField("discount_value", v.String())
	}
	if v.GreaterThanOrEqual(maxDiscountValue) {
		return apperror.Validation("discount_value is too large").WithField("discount_value", v.String())
	}
	if discountType == model.DiscountPercentage && v.GreaterThan(hundred) {
		return apperror.Validation("percentage discount must not exceed 100").WithField("discount_value", v.String())
	}
	return nil
}

func (s *couponService) requireCampaign(ctx context.Context, campaignID string) (*campaignModel.Campaign, error) {
	return s.campaigns.GetByID(ctx, campaignID)
}

func (s *couponService) requireUser(ctx context.Context, userID string) error {
	found, err := s.users.ExistingIDs(ctx, []string{userID})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return apperror.NotFound("user not found").WithField("user_id", userID)
	}
	return nil
}

func (s *couponService) Create(ctx context.Context, in CreateCouponInput) (*model.Coupon, error) {
	code, err := normalizeCode(in.Code)
	if err != nil {
		return nil, err
	}
	discountType, err := normalizeDiscountType(in.DiscountType)
	if err != nil {
		return nil, err
	}
	if err := validateDiscountValue(discountType, in.DiscountValue); err != nil {
		return nil, err
	}

	coupon := &model.Coupon{
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: in.DiscountValue,
		ExpiresAt:     in.ExpiresAt,
	}

	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if in.CampaignID != nil && *in.CampaignID != "" {
			if _, err := s.requireCampaign(ctx, *in.CampaignID); err != nil {
				return err
			}
			coupon.CampaignID = in.CampaignID
		}
		if in.AssignedToUserID != nil && *in.AssignedToUserID != "" {
			if err := s.requireUser(ctx, *in.AssignedToUserID); err != nil {
				return err
			}
			coupon.AssignedToUserID = in.AssignedToUserID
		}
		return s.repo.Create(ctx, coupon)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("coupon created", zap.String("coupon_id", coupon.ID), zap.String("code", coupon.Code))
	if coupon.AssignedToUserID != nil {
		s.notifyAssigned(ctx, coupon.CampaignID, []string{*coupon.AssignedToUserID})
	}
	return coupon, nil
}

func (s *couponService) Get(ctx context.Context, id string) (*model.Coupon, error) {
	return s.repo.GetByID(ctx, id)
}

// Update 只修改券码、折扣、过期时间和活动
func (s *couponService) Update(ctx context.Context, id string, in UpdateCouponInput) (*model.Coupon, error) {
	var coupon *model.Coupon
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		coupon, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if in.Code != nil {
			if coupon.Code, err = normalizeCode(*in.Code); err != nil {
				return err
			}
		}
		if in.DiscountType != nil {
			if coupon.DiscountType, err = normalizeDiscountType(*in.DiscountType); err != nil {
				return err
			}
		}
		if in.DiscountValue != nil {
			coupon.DiscountValue = *in.DiscountValue
		}
		if err := validateDiscountValue(coupon.DiscountType, coupon.DiscountValue); err != nil {
			return err
		}
		if in.ExpiresAt != nil {
			coupon.ExpiresAt = in.ExpiresAt
		}
		if in.CampaignID != nil {
			if *in.CampaignID == "" {
				coupon.CampaignID = nil
			} else {
				if _, err := s.requireCampaign(ctx, *in.CampaignID); err != nil {
					return err
				}
				coupon.CampaignID = in.CampaignID
			}
		}
		coupon.UpdatedAt = s.now()
		return s.repo.UpdateDetails(ctx, coupon)
	})
	if err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *couponService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("coupon deleted", zap.String("coupon_id", id))
	return nil
}

func (s *couponService) List(ctx context.Context, q ListQuery) (*model.CouponList, error) {
	offset, limit := q.GetPageOffset()
	coupons, total, err := s.repo.List(ctx, repository.CouponFilter{
		Search:         q.Search,
		Category:       q.Category,
		CampaignID:     q.CampaignID,
		AssignedUserID: q.AssignedUserID,
		Offset:         offset,
		Limit:          limit,
	})
	if err != nil {
		return nil, err
	}
	return &model.CouponList{Coupons: coupons, Count: total}, nil
}

func (s *couponService) ListUnassigned(ctx context.Context, campaignID string) ([]model.Coupon, error) {
	if _, err := s.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.repo.ListUnassigned(ctx, campaignID)
}

func (s *couponService) GetUserCouponForCampaign(ctx context.Context, userID, campaignID string) (*model.Coupon, error) {
	coupon, err := s.repo.FindByUserAndCampaign(ctx, userID, campaignID)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return nil, apperror.NotFound("no coupon assigned to user for this campaign")
	}
	return coupon, err
}

func (s *couponService) MyCoupons(ctx context.Context, userID string) ([]model.Coupon, error) {
	return s.repo.ListByUser(ctx, userID)
}

// GetOwnCoupon 只能查看分配给自己的券
func (s *couponService) GetOwnCoupon(ctx context.Context, couponID, userID string) (*model.Coupon, error) {
	coupon, err := s.repo.GetByID(ctx, couponID)
	if err != nil {
		return nil, err
	}
	if coupon.AssignedToUserID == nil || *coupon.AssignedToUserID != userID {
		return nil, apperror.Authorization("not authorized to access this coupon")
	}
	return coupon, nil
}
