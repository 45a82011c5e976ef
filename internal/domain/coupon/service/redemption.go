package service

import (
	"context"
	"time"

	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/pkg/apperror"

	"go.uber.org/zap"
)

// Redeem 核销，只有持有人可以核销，且只能核销一次
func (s *couponService) Redeem(ctx context.Context, couponID, actingUserID string) (coupon *model.Coupon, err error) {
	start := time.Now()
	defer func() { s.observe("redeem", start, boolToInt(err == nil), err) }()

	err = s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		coupon, err = s.repo.GetForUpdate(ctx, couponID)
		if err != nil {
			return err
		}
		if coupon.AssignedToUserID == nil || *coupon.AssignedToUserID != actingUserID {
			return apperror.Authorization("not authorized to redeem this coupon")
		}
		if coupon.Redeemed {
			return apperror.Conflict("coupon has already been redeemed")
		}
		now := s.now()
		if coupon.IsExpired(now) {
			return apperror.Conflict("coupon has expired")
		}

		ok, err := s.repo.MarkRedeemed(ctx, couponID, actingUserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("coupon has already been redeemed")
		}
		coupon.Redeemed = true
		coupon.RedeemedAt = &now
		return nil
	})
	if err != nil {
		s.logRejected("redeem coupon failed", err, zap.String("coupon_id", couponID), zap.String("user_id", actingUserID))
		return nil, err
	}

	s.log.Info("coupon redeemed", zap.String("coupon_id", couponID), zap.String("user_id", actingUserID))
	return coupon, nil
}
