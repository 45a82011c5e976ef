package service

import (
	"context"
	"sync"
	"time"

	"coupon_hub/internal/domain/campaign/model"
	"coupon_hub/internal/domain/campaign/repository"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/database"
	"coupon_hub/pkg/utils"

	"go.uber.org/zap"
)

// StatsProvider 由优惠券模块提供的活动统计
type StatsProvider interface {
	Stats(ctx context.Context, campaignID string) (*model.Stats, error)
	StatsByCampaign(ctx context.Context, campaignIDs []string) (map[string]model.Stats, error)
}

// CreateCampaignInput 创建活动
type CreateCampaignInput struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date" binding:"required"`
	EndDate     time.Time `json:"end_date" binding:"required"`
	IsActive    *bool     `json:"is_active"`
}

// UpdateCampaignInput 部分更新，nil 字段保持不变
type UpdateCampaignInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	IsActive    *bool      `json:"is_active"`
}

// CampaignService 活动服务
type CampaignService interface {
	Create(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error)
	Get(ctx context.Context, id string) (*model.CampaignWithStats, error)
	List(ctx context.Context, search string, page, limit int) ([]model.CampaignWithStats, int64, error)
	Update(ctx context.Context, id string, in UpdateCampaignInput) (*model.Campaign, error)
	Delete(ctx context.Context, id string) error
	UseStats(p StatsProvider)
}

type campaignService struct {
	repo repository.CampaignRepository
	tx   database.TxManager
	log  *zap.Logger

	mu    sync.RWMutex
	stats StatsProvider
}

func NewCampaignService(repo repository.CampaignRepository, tx database.TxManager, log *zap.Logger) CampaignService {
	return &campaignService{repo: repo, tx: tx, log: log}
}

// UseStats 优惠券模块初始化后注入统计来源
func (s *campaignService) UseStats(p StatsProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = p
}

func (s *campaignService) statsProvider() StatsProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func validateWindow(start, end time.Time) error {
	if end.Before(start) {
		return apperror.Validation("end_date must not be before start_date").WithField("end_date", end.Format(time.RFC3339))
	}
	return nil
}

func (s *campaignService) Create(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	title := utils.SanitizeText(in.Title)
	if title == "" {
		return nil, apperror.Validation("title is required").WithField("title", in.Title)
	}
	if err := validateWindow(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	campaign := &model.Campaign{
		Title:       title,
		Description: utils.SanitizeText(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsActive:    true,
	}
	if in.IsActive != nil {
		campaign.IsActive = *in.IsActive
	}

	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, err
	}
	s.log.Info("campaign created", zap.String("campaign_id", campaign.ID), zap.String("title", campaign.Title))
	return campaign, nil
}

func (s *campaignService) Get(ctx context.Context, id string) (*model.CampaignWithStats, error) {
	campaign, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &model.CampaignWithStats{Campaign: *campaign}
	if p := s.statsProvider(); p != nil {
		stats, err := p.Stats(ctx, id)
		if err != nil {
			return nil, err
		}
		out.Stats = *stats
	}
	return out, nil
}

func (s *campaignService) List(ctx context.Context, search string, page, limit int) ([]model.CampaignWithStats, int64, error) {
	p := utils.Pagination{Page: page, Limit: limit}
	offset, limit := p.GetPageOffset()

	campaigns, total, err := s.repo.List(ctx, search, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	var byCampaign map[string]model.Stats
	if provider := s.statsProvider(); provider != nil && len(campaigns) > 0 {
		ids := make([]string, len(campaigns))
		for i := range campaigns {
			ids[i] = campaigns[i].ID
		}
		if byCampaign, err = provider.StatsByCampaign(ctx, ids); err != nil {
			return nil, 0, err
		}
	}

	out := make([]model.CampaignWithStats, len(campaigns))
	for i, c := range campaigns {
		out[i] = model.CampaignWithStats{Campaign: c, Stats: byCampaign[c.ID]}
	}
	return out, total, nil
}

func (s *campaignService) Update(ctx context.Context, id string, in UpdateCampaignInput) (*model.Campaign, error) {
	var campaign *model.Campaign
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		campaign, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if in.Title != nil {
			title := utils.SanitizeText(*in.Title)
			if title == "" {
				return apperror.Validation("title must not be empty").WithField("title", *in.Title)
			}
			campaign.Title = title
		}
		if in.Description != nil {
			campaign.Description = utils.SanitizeText(*in.Description)
		}
		if in.StartDate != nil {
			campaign.StartDate = *in.StartDate
		}
		if in.EndDate != nil {
			campaign.EndDate = *in.EndDate
		}
		if in.IsActive != nil {
			campaign.IsActive = *in.IsActive
		}
		if err := validateWindow(campaign.StartDate, campaign.EndDate); err != nil {
			return err
		}
		return s.repo.Update(ctx, campaign)
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// Delete 仍有优惠券引用时拒绝删除
func (s *campaignService) Delete(ctx context.Context, id string) error {
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetForUpdate(ctx, id); err != nil {
			return err
		}

		count, err := s.repo.CountCoupons(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Conflict("campaign has %d coupons and cannot be deleted", count)
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindConflict) {
			s.log.Warn("campaign delete rejected", zap.String("campaign_id", id), zap.Error(err))
		}
		return err
	}

	s.log.Info("campaign deleted", zap.String("campaign_id", id))
	return nil
}
