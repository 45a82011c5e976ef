package service

import (
	"context"
	"testing"
	"time"

	"coupon_hub/internal/domain/campaign/model"
	"coupon_hub/pkg/apperror"
	pkgmodel "coupon_hub/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	return m.Called(ctx, campaign).Error(0)
}

func (m *MockCampaignRepository) Update(ctx context.Context, campaign *model.Campaign) error {
	return m.Called(ctx, campaign).Error(0)
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) GetForUpdate(ctx context.Context, id string) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) List(ctx context.Context, search string, offset, limit int) ([]model.Campaign, int64, error) {
	args := m.Called(ctx, search, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Campaign), args.Get(1).(int64), args.Error(2)
}

func (m *MockCampaignRepository) CountCoupons(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCampaignRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockStatsProvider struct {
	mock.Mock
}

func (m *MockStatsProvider) Stats(ctx context.Context, campaignID string) (*model.Stats, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Stats), args.Error(1)
}

func (m *MockStatsProvider) StatsByCampaign(ctx context.Context, ids []string) (map[string]model.Stats, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]model.Stats), args.Error(1)
}

// inlineTx 直接执行，不开启真实事务
type inlineTx struct{}

func (inlineTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newService(repo *MockCampaignRepository) CampaignService {
	return NewCampaignService(repo, inlineTx{}, zap.NewNop())
}

func TestCreateCampaign(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    CreateCampaignInput
		wantKind apperror.Kind
	}{
		{
			name:  "valid",
			input: CreateCampaignInput{Title: "Spring Sale", StartDate: start, EndDate: start.AddDate(0, 1, 0)},
		},
		{
			name:     "blank title",
			input:    CreateCampaignInput{Title: "   ", StartDate: start, EndDate: start},
			wantKind: apperror.KindValidation,
		},
		{
			name:     "end before start",
			input:    CreateCampaignInput{Title: "Late", StartDate: start, EndDate: start.Add(-time.Hour)},
			wantKind: apperror.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockCampaignRepository)
			repo.On("Create", ctx, mock.AnythingOfType("*model.Campaign")).Return(nil).Maybe()

			campaign, err := newService(repo).Create(ctx, tt.input)
			if tt.wantKind != apperror.KindUnknown {
				assert.True(t, apperror.IsKind(err, tt.wantKind), "got %v", err)
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Spring Sale", campaign.Title)
			assert.True(t, campaign.IsActive)
		})
	}
}

func TestGetCampaignWithStats(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCampaignRepository)
	stats := new(MockStatsProvider)
	svc := newService(repo)
	svc.UseStats(stats)

	repo.On("GetByID", ctx, "c1").Return(&model.Campaign{BaseModel: pkgmodel.BaseModel{ID: "c1"}, Title: "Spring Sale"}, nil)
	stats.On("Stats", ctx, "c1").Return(&model.Stats{Total: 3, Assigned: 1, Unassigned: 2, Redeemed: 1}, nil)

	got, err := svc.Get(ctx, "c1")

	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 3, Assigned: 1, Unassigned: 2, Redeemed: 1}, got.Stats)
}

func TestListCampaignsAttachesStats(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCampaignRepository)
	stats := new(MockStatsProvider)
	svc := newService(repo)
	svc.UseStats(stats)

	campaigns := []model.Campaign{
		{BaseModel: pkgmodel.BaseModel{ID: "c1"}, Title: "A"},
		{BaseModel: pkgmodel.BaseModel{ID: "c2"}, Title: "B"},
	}
	repo.On("List", ctx, "sale", 0, 20).Return(campaigns, int64(2), nil)
	stats.On("StatsByCampaign", ctx, []string{"c1", "c2"}).Return(map[string]model.Stats{
		"c1": {Total: 4, Unassigned: 4},
	}, nil)

	list, total, err := svc.List(ctx, "sale", 0, 0)

	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(4), list[0].Stats.Total)
	assert.Equal(t, model.Stats{}, list[1].Stats)
}

func TestUpdateCampaignPartial(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCampaignRepository)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	existing := &model.Campaign{
		BaseModel: pkgmodel.BaseModel{ID: "c1"},
		Title:     "Old",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 7),
		IsActive:  true,
	}
	repo.On("GetForUpdate", ctx, "c1").Return(existing, nil)
	repo.On("Update", ctx, existing).Return(nil)

	inactive := false
	title := "New"
	got, err := newService(repo).Update(ctx, "c1", UpdateCampaignInput{Title: &title, IsActive: &inactive})

	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.False(t, got.IsActive)
	assert.Equal(t, start, got.StartDate)

	badEnd := start.Add(-time.Hour)
	_, err = newService(repo).Update(ctx, "c1", UpdateCampaignInput{EndDate: &badEnd})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestDeleteCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("no coupons", func(t *testing.T) {
		repo := new(MockCampaignRepository)
		repo.On("GetForUpdate", ctx, "c1").Return(&model.Campaign{BaseModel: pkgmodel.BaseModel{ID: "c1"}}, nil)
		repo.On("CountCoupons", ctx, "c1").Return(int64(0), nil)
		repo.On("Delete", ctx, "c1").Return(nil)

		assert.NoError(t, newService(repo).Delete(ctx, "c1"))
		repo.AssertExpectations(t)
	})

	t.Run("has coupons", func(t *testing.T) {
		repo := new(MockCampaignRepository)
		repo.On("GetForUpdate", ctx, "c1").Return(&model.Campaign{BaseModel: pkgmodel.BaseModel{ID: "c1"}}, nil)
		repo.On("CountCoupons", ctx, "c1").Return(int64(3), nil)

		err := newService(repo).Delete(ctx, "c1")
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockCampaignRepository)
		repo.On("GetForUpdate", ctx, "c9").Return(nil, apperror.NotFound("campaign not found"))

		err := newService(repo).Delete(ctx, "c9")
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}
