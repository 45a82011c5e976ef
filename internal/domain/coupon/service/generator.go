package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	codePrefixLen   = 3
	maxCodeAttempts = 5
)

// randomSuffix 取 UUID 的前 n 个十六进制字符
func randomSuffix(n int) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(hex) {
		n = len(hex)
	}
	return strings.ToUpper(hex[:n])
}

// codePrefix 活动标题的前三个字符（含空白），大写
func codePrefix(title string) string {
	runes := []rune(title)
	if len(runes) > codePrefixLen {
		runes = runes[:codePrefixLen]
	}
	return strings.ToUpper(string(runes))
}

func (s *couponService) newCode(prefix string) string {
	suffix := s.newSuffix(s.cfg.CodeSuffixLen)
	if prefix == "" {
		return suffix
	}
	return prefix + "-" + suffix
}

func (s *couponService) defaultDiscount() (string, decimal.Decimal) {
	t := strings.ToLower(s.cfg.DefaultDiscountType)
	if !model.ValidDiscountType(t) {
		t = model.DiscountPercentage
	}
	return t, decimal.NewFromFloat(s.cfg.DefaultDiscountValue).Round(2)
}

// Generate 为活动批量生成券，全部成功或全部回滚
func (s *couponService) Generate(ctx context.Context, campaignID string, count int) (result *model.GenerateResult, err error) {
	start := time.Now()
	defer func() {
		affected := 0
		if result != nil {
			affected = result.Count
		}
		s.observe("generate", start, affected, err)
	}()

	if count <= 0 {
		return nil, apperror.Validation("count must be positive").WithField("count", strconv.Itoa(count))
	}
	if s.cfg.MaxGenerate > 0 && count > s.cfg.MaxGenerate {
		return nil, apperror.Validation("count must be at most %d", s.cfg.MaxGenerate).WithField("count", strconv.Itoa(count))
	}

	var coupons []*model.Coupon
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		campaign, err := s.requireCampaign(ctx, campaignID)
		if err != nil {
			return err
		}

		prefix := codePrefix(campaign.Title)
		discountType, discountValue := s.defaultDiscount()
		coupons = make([]*model.Coupon, count)
		for i := range coupons {
			coupons[i] = &model.Coupon{
				Code:          s.newCode(prefix),
				DiscountType:  discountType,
				DiscountValue: discountValue,
				CampaignID:    &campaign.ID,
			}
		}

		// 整批插入失败于唯一约束时，回滚到保存点逐条重试
		batchErr := s.tx.Do(ctx, func(ctx context.Context) error {
			return s.repo.CreateBatch(ctx, coupons)
		})
		if batchErr == nil {
			return nil
		}
		if !apperror.IsKind(batchErr, apperror.KindConflict) {
			return batchErr
		}
		s.log.Warn("code collision in batch, retrying per coupon", zap.String("campaign_id", campaignID), zap.Error(batchErr))
		for _, c := range coupons {
			c.ID = ""
			if err := s.createWithRetry(ctx, c, prefix); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logRejected("generate coupons failed", err, zap.String("campaign_id", campaignID), zap.Int("count", count))
		return nil, err
	}

	result = &model.GenerateResult{CampaignID: campaignID, Count: len(coupons), Coupons: make([]model.Coupon, len(coupons))}
	for i, c := range coupons {
		result.Coupons[i] = *c
	}
	s.log.Info("coupons generated", zap.String("campaign_id", campaignID), zap.Int("count", result.Count))
	return result, nil
}

// createWithRetry 单条插入，券码冲突时换后缀重试
func (s *couponService) createWithRetry(ctx context.Context, c *model.Coupon, prefix string) error {
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		err = s.tx.Do(ctx, func(ctx context.Context) error {
			return s.repo.Create(ctx, c)
		})
		if err == nil {
			return nil
		}
		if !apperror.IsKind(err, apperror.KindConflict) {
			return err
		}
		c.ID = ""
		c.Code = s.newCode(prefix)
	}
	return apperror.Conflict("could not generate a unique coupon code after %d attempts", maxCodeAttempts)
}
