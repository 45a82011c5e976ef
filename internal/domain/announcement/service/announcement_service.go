package service

import (
	"context"
	"time"
	"unicode/utf8"

	"coupon_hub/internal/domain/announcement/model"
	"coupon_hub/internal/domain/announcement/repository"
	campaignModel "coupon_hub/internal/domain/campaign/model"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/utils"

	"go.uber.org/zap"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 5000
	maxCategoryLen    = 100
)

// CampaignReader 校验关联活动
type CampaignReader interface {
	GetByID(ctx context.Context, id string) (*campaignModel.Campaign, error)
}

// ListQuery 列表查询参数
type ListQuery struct {
	utils.Pagination
	Category string `form:"category"`
	Search   string `form:"search"`
	New      bool   `form:"new"`
}

type CreateAnnouncementInput struct {
	Title          string     `json:"title" binding:"required"`
	Description    *string    `json:"description"`
	Category       string     `json:"category" binding:"required"`
	RequiresCoupon bool       `json:"requires_coupon"`
	CampaignID     *string    `json:"campaign_id"`
	IsPublished    bool       `json:"is_published"`
	PublishDate    *time.Time `json:"publish_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
}

// UpdateAnnouncementInput nil 字段保持不变
type UpdateAnnouncementInput struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Category       *string    `json:"category"`
	RequiresCoupon *bool      `json:"requires_coupon"`
	CampaignID     *string    `json:"campaign_id"`
	IsPublished    *bool      `json:"is_published"`
	PublishDate    *time.Time `json:"publish_date"`
	CreatedDate    *time.Time `json:"created_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
}

type AnnouncementService interface {
	Create(ctx context.Context, in CreateAnnouncementInput) (*model.Announcement, error)
	Update(ctx context.Context, id string, in UpdateAnnouncementInput) (*model.Announcement, error)
	Delete(ctx context.Context, id string) error
	// Get privileged 为 false 时只能看到已发布且未过期的公告
	Get(ctx context.Context, id string, privileged bool) (*model.Announcement, error)
	List(ctx context.Context, q ListQuery, privileged bool) (*model.AnnouncementList, error)
	ListPublished(ctx context.Context, q ListQuery) (*model.AnnouncementList, error)
}

type announcementService struct {
	repo      repository.AnnouncementRepository
	campaigns CampaignReader
	log       *zap.Logger
	now       func() time.Time
}

func NewAnnouncementService(repo repository.AnnouncementRepository, campaigns CampaignReader, log *zap.Logger) AnnouncementService {
	return &announcementService{repo: repo, campaigns: campaigns, log: log, now: time.Now}
}

func checkLen(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return apperror.Validation("%s must be at most %d characters", field, max).WithField(field, value)
	}
	return nil
}

func (s *announcementService) validate(ctx context.Context, a *model.Announcement) error {
	if a.Title == "" {
		return apperror.Validation("title is required").WithField("title", a.Title)
	}
	if err := checkLen("title", a.Title, maxTitleLen); err != nil {
		return err
	}
	if a.Description != nil {
		if err := checkLen("description", *a.Description, maxDescriptionLen); err != nil {
			return err
		}
	}
	if a.Category == "" {
		return apperror.Validation("category is required").WithField("category", a.Category)
	}
	if err := checkLen("category", a.Category, maxCategoryLen); err != nil {
		return err
	}
	if a.CampaignID != nil {
		if _, err := s.campaigns.GetByID(ctx, *a.CampaignID); err != nil {
			return err
		}
	}
	return nil
}

func (s *announcementService) Create(ctx context.Context, in CreateAnnouncementInput) (*model.Announcement, error) {
	a := &model.Announcement{
		Title:          utils.SanitizeText(in.Title),
		Description:    utils.SanitizeRichTextPtr(in.Description),
		Category:       utils.SanitizeText(in.Category),
		RequiresCoupon: in.RequiresCoupon,
		CampaignID:     emptyToNil(in.CampaignID),
		IsPublished:    in.IsPublished,
		PublishDate:    in.PublishDate,
		CreatedDate:    s.now().UTC(),
		ExpiryDate:     in.ExpiryDate,
		State:          model.StateActive,
	}
	if err := s.validate(ctx, a); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("announcement created", zap.String("announcement_id", a.ID), zap.Bool("published", a.IsPublished))
	return a, nil
}

func (s *announcementService) Update(ctx context.Context, id string, in UpdateAnnouncementInput) (*model.Announcement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		a.Title = utils.SanitizeText(*in.Title)
	}
	if in.Description != nil {
		a.Description = utils.SanitizeRichTextPtr(in.Description)
	}
	if in.Category != nil {
		a.Category = utils.SanitizeText(*in.Category)
	}
	if in.RequiresCoupon != nil {
		a.RequiresCoupon = *in.RequiresCoupon
	}
	if in.CampaignID != nil {
		a.CampaignID = emptyToNil(in.CampaignID)
	}
	if in.IsPublished != nil {
		a.IsPublished = *in.IsPublished
	}
	if in.PublishDate != nil {
		a.PublishDate = in.PublishDate
	}
	if in.CreatedDate != nil {
		a.CreatedDate = *in.CreatedDate
	}
	if in.ExpiryDate != nil {
		a.ExpiryDate = in.ExpiryDate
	}
	if err := s.validate(ctx, a); err != nil {
		return nil, err
	}

	a.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *announcementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return err
	}
	s.log.Info("announcement deleted", zap.String("announcement_id", id))
	return nil
}

func (s *announcementService) Get(ctx context.Context, id string, privileged bool) (*model.Announcement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !privileged && !a.VisibleToPublic(s.now()) {
		return nil, apperror.NotFound("announcement not found")
	}
	return a, nil
}

func (s *announcementService) List(ctx context.Context, q ListQuery, privileged bool) (*model.AnnouncementList, error) {
	if !privileged {
		return s.ListPublished(ctx, q)
	}
	return s.list(ctx, s.filter(q))
}

func (s *announcementService) ListPublished(ctx context.Context, q ListQuery) (*model.AnnouncementList, error) {
	f := s.filter(q)
	now := s.now()
	f.PublishedOnly = true
	f.NotExpiredAt = &now
	return s.list(ctx, f)
}

func (s *announcementService) filter(q ListQuery) repository.Filter {
	offset, limit := q.GetPageOffset()
	f := repository.Filter{Category: q.Category, Search: q.Search, Offset: offset, Limit: limit}
	if q.New {
		since := s.now().Add(-model.NewWindow)
		f.CreatedSince = &since
	}
	return f
}

func (s *announcementService) list(ctx context.Context, f repository.Filter) (*model.AnnouncementList, error) {
	data, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &model.AnnouncementList{Data: data, Count: total}, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
