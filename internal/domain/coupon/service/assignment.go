package service

import (
	"context"
	"time"

	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/internal/pkg/push"
	"coupon_hub/pkg/apperror"

	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// Assign 单张分配，行锁内校验未分配且未核销
func (s *couponService) Assign(ctx context.Context, couponID, userID string) (coupon *model.Coupon, err error) {
	start := time.Now()
	defer func() { s.observe("assign", start, boolToInt(err == nil), err) }()

	err = s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		coupon, err = s.repo.GetForUpdate(ctx, couponID)
		if err != nil {
			return err
		}
		if err := s.requireUser(ctx, userID); err != nil {
			return err
		}
		if coupon.Redeemed {
			return apperror.Conflict("coupon has already been redeemed")
		}
		if coupon.IsAssigned() {
			return apperror.Conflict("coupon is already assigned to a user")
		}

		ok, err := s.repo.AssignIfUnassigned(ctx, couponID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("coupon is already assigned to a user")
		}
		coupon.AssignedToUserID = &userID
		return nil
	})
	if err != nil {
		s.logRejected("assign coupon failed", err, zap.String("coupon_id", couponID), zap.String("user_id", userID))
		return nil, err
	}

	s.log.Info("coupon assigned", zap.String("coupon_id", couponID), zap.String("user_id", userID))
	s.notifyAssigned(ctx, coupon.CampaignID, []string{userID})
	return coupon, nil
}

// AssignCampaignToAll 按用户创建顺序轮询分配活动内所有未分配的券
func (s *couponService) AssignCampaignToAll(ctx context.Context, campaignID string) (result *model.BulkAssignResult, err error) {
	start := time.Now()
	defer func() {
		affected := 0
		if result != nil {
			affected = result.Assigned
		}
		s.observe("assign_bulk", start, affected, err)
	}()

	var recipients []string
	result = &model.BulkAssignResult{CampaignID: campaignID}
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if _, err := s.requireCampaign(ctx, campaignID); err != nil {
			return err
		}
		users, err := s.users.ListAllOrdered(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}
		coupons, err := s.repo.LockUnassigned(ctx, campaignID)
		if err != nil {
			return err
		}

		// 第 i 张券分给第 i % n 个用户
		batches := make([][]string, len(users))
		for i, c := range coupons {
			u := i % len(users)
			batches[u] = append(batches[u], c.ID)
		}

		for u, ids := range batches {
			if len(ids) == 0 {
				continue
			}
			affected, err := s.repo.AssignBatch(ctx, ids, users[u].ID)
			if err != nil {
				return err
			}
			if affected != int64(len(ids)) {
				return apperror.Conflict("coupons changed during bulk assignment, expected %d got %d", len(ids), affected)
			}
			recipients = append(recipients, users[u].ID)
		}
		result.Assigned = len(coupons)
		result.Recipients = len(recipients)
		return nil
	})
	if err != nil {
		s.logRejected("bulk assignment failed", err, zap.String("campaign_id", campaignID))
		return nil, err
	}

	s.log.Info("campaign coupons assigned",
		zap.String("campaign_id", campaignID),
		zap.Int("assigned", result.Assigned),
		zap.Int("recipients", result.Recipients),
	)
	s.notifyAssigned(ctx, &campaignID, recipients)
	return result, nil
}

// notifyAssigned 提交后推送分配通知，失败只记录日志
func (s *couponService) notifyAssigned(ctx context.Context, campaignID *string, userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	msg := push.Message{
		Title: "New coupon",
		Body:  "A coupon has been assigned to you",
	}
	if campaignID != nil {
		msg.Extra = map[string]string{"campaign_id": *campaignID}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyAccounts(ctx, userIDs, msg); err != nil {
		s.log.Warn("assignment notification failed", zap.Int("accounts", len(userIDs)), zap.Error(err))
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
