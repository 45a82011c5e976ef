package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"coupon_hub/pkg/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestGetForUpdateLocksRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "campaigns" WHERE id = $1 ORDER BY "campaigns"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs("c1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "start_date", "end_date", "is_active", "created_at", "updated_at"}).
			AddRow("c1", "Spring Sale", now, now, true, now, now))

	campaign, err := repo.GetForUpdate(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, "Spring Sale", campaign.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "campaigns" WHERE id = $1`)).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")

	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestCountCoupons(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "coupons" WHERE campaign_id = $1`)).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountCoupons(context.Background(), "c1")

	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestDeleteMissingCampaign(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCampaignRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "campaigns" WHERE id = $1`)).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "c1")

	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
