package service

import (
	"context"
	"time"

	campaignModel "coupon_hub/internal/domain/campaign/model"
)

// Stats 每次调用都从券记录重新计算，不缓存
func (s *couponService) Stats(ctx context.Context, campaignID string) (stats *campaignModel.Stats, err error) {
	start := time.Now()
	defer func() { s.observe("stats", start, 0, err) }()

	if _, err := s.requireCampaign(ctx, campaignID); err != nil {
		return nil, err
	}
	coupons, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stats = &campaignModel.Stats{Total: int64(len(coupons))}
	for i := range coupons {
		if coupons[i].IsAssigned() {
			stats.Assigned++
		}
		if coupons[i].Redeemed {
			stats.Redeemed++
		}
	}
	stats.Unassigned = stats.Total - stats.Assigned
	return stats, nil
}

// StatsByCampaign 活动列表使用的分组统计
func (s *couponService) StatsByCampaign(ctx context.Context, campaignIDs []string) (map[string]campaignModel.Stats, error) {
	if len(campaignIDs) == 0 {
		return map[string]campaignModel.Stats{}, nil
	}
	return s.repo.StatsByCampaign(ctx, campaignIDs)
}
