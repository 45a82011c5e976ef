package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/pkg/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
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

func TestAssignIfUnassignedIsGuarded(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"unassigned", 1, true},
		{"already taken", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewCouponRepository(db)

			mock.ExpectExec(`UPDATE "coupons" SET "assigned_to_user_id"=\$1,"updated_at"=\$2 ` +
				regexp.QuoteMeta(`WHERE id = $3 AND assigned_to_user_id IS NULL AND redeemed = $4`)).
				WithArgs("u1", sqlmock.AnyArg(), "c1", false).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.AssignIfUnassigned(context.Background(), "c1", "u1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMarkRedeemedChecksOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCouponRepository(db)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE "coupons" SET "redeemed"=\$1,"redeemed_at"=\$2,"updated_at"=\$3 ` +
		regexp.QuoteMeta(`WHERE id = $4 AND assigned_to_user_id = $5 AND redeemed = $6`)).
		WithArgs(true, at, at, "c1", "u1", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkRedeemed(context.Background(), "c1", "u1", at)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockUnassignedOrdersAndLocks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCouponRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "coupons" WHERE campaign_id = $1 AND assigned_to_user_id IS NULL AND redeemed = $2 ORDER BY created_at, id FOR UPDATE`)).
		WithArgs("camp", false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).AddRow("c1", "SPR-1").AddRow("c2", "SPR-2"))

	coupons, err := repo.LockUnassigned(context.Background(), "camp")

	require.NoError(t, err)
	require.Len(t, coupons, 2)
	assert.Equal(t, "c1", coupons[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsByCampaign(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCouponRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT campaign_id, COUNT(*) AS total, COUNT(assigned_to_user_id) AS assigned, COUNT(*) FILTER (WHERE redeemed) AS redeemed FROM "coupons" WHERE campaign_id IN ($1,$2) GROUP BY "campaign_id"`)).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "total", "assigned", "redeemed"}).AddRow("a", 7, 5, 2))

	stats, err := repo.StatsByCampaign(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, int64(7), stats["a"].Total)
	assert.Equal(t, int64(2), stats["a"].Unassigned)
	assert.Equal(t, int64(2), stats["a"].Redeemed)
	_, ok := stats["b"]
	assert.False(t, ok)
}

func TestExistingCodes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCouponRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "code" FROM "coupons" WHERE code IN ($1,$2) ORDER BY code`)).
		WithArgs("A", "B").
		WillReturnRows(sqlmock.NewRows([]string{"code"}).AddRow("B"))

	found, err := repo.ExistingCodes(context.Background(), []string{"A", "B"})

	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, found)
}

func TestCreateDuplicateCodeIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCouponRepository(db)

	mock.ExpectQuery(`INSERT INTO "coupons"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &model.Coupon{Code: "DUP", DiscountType: model.DiscountFixed, DiscountValue: decimal.NewFromInt(1)})

	assert.True(t, apperror.IsKind(err, apperror.KindConflict), "got %v", err)
}

func TestDeleteMissingCoupon(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCouponRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "coupons" WHERE id = $1`)).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "c1")

	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
