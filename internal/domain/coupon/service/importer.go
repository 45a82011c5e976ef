package service

import (
	"context"
	"strings"
	"time"

	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/pkg/apperror"
	baseModel "coupon_hub/pkg/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 导入列名
const (
	ColumnCode          = "code"
	ColumnDiscountType  = "discount_type"
	ColumnDiscountValue = "discount_value"
	ColumnExpiresAt     = "expires_at"
	ColumnUserID        = "user_id"
)

var requiredColumns = []string{ColumnCode, ColumnDiscountType, ColumnDiscountValue}

// Sheet 已解码的表格，列名已规范化
type Sheet struct {
	Columns []string
	Rows    []map[string]string
	// DateSerials 为 true 时 expires_at 接受表格日期序列号，仅 xlsx 来源设置
	DateSerials bool
}

// NewSheet 第一行为表头，去掉末尾的空行
func NewSheet(header []string, records [][]string) Sheet {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = normalizeColumn(h)
	}

	last := len(records)
	for last > 0 && blankRecord(records[last-1]) {
		last--
	}

	rows := make([]map[string]string, 0, last)
	for _, rec := range records[:last] {
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if col == "" {
				continue
			}
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return Sheet{Columns: columns, Rows: rows}
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// displayRow 表格中的行号，第 1 行是表头
func displayRow(index int) int {
	return index + 2
}

// stagedRow 校验通过待写入的行
type stagedRow struct {
	row    int
	coupon *model.Coupon
}

// Import 校验整张表后在一个事务中写入
func (s *couponService) Import(ctx context.Context, campaignID string, sheet Sheet) (result *model.ImportResult, err error) {
	start := time.Now()
	defer func() {
		affected := 0
		if result != nil {
			affected = result.Count
		}
		s.observe("import", start, affected, err)
	}()

	var staged []stagedRow
	err = s.tx.Do(ctx, func(ctx context.Context) error {
		campaign, err := s.requireCampaign(ctx, campaignID)
		if err != nil {
			return err
		}

		staged, err = validateSheet(sheet, campaign.ID)
		if err != nil {
			return err
		}
		if err := s.checkImportUsers(ctx, staged); err != nil {
			return err
		}
		if err := s.checkImportCodes(ctx, staged); err != nil {
			return err
		}

		coupons := make([]*model.Coupon, len(staged))
		for i, r := range staged {
			coupons[i] = r.coupon
		}
		return s.repo.CreateBatch(ctx, coupons)
	})
	if err != nil {
		s.logRejected("import coupons failed", err, zap.String("campaign_id", campaignID), zap.Int("rows", len(sheet.Rows)))
		return nil, err
	}

	result = &model.ImportResult{CampaignID: campaignID, Count: len(staged), Codes: make([]string, len(staged))}
	var assignees []string
	seen := make(map[string]struct{})
	for i, r := range staged {
		result.Codes[i] = r.coupon.Code
		if uid := r.coupon.AssignedToUserID; uid != nil {
			if _, ok := seen[*uid]; !ok {
				seen[*uid] = struct{}{}
				assignees = append(assignees, *uid)
			}
		}
	}
	s.log.Info("coupons imported", zap.String("campaign_id", campaignID), zap.Int("count", result.Count))
	s.notifyAssigned(ctx, &campaignID, assignees)
	return result, nil
}

// validateSheet 不访问存储的校验，按列、类型、逐行的顺序报告第一个错误
func validateSheet(sheet Sheet, campaignID string) ([]stagedRow, error) {
	present := make(map[string]bool, len(sheet.Columns))
	for _, c := range sheet.Columns {
		present[c] = true
	}
	var missing []string
	for _, c := range requiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, apperror.Validation("missing required columns: %s", strings.Join(missing, ", ")).WithValues(missing)
	}
	if len(sheet.Rows) == 0 {
		return nil, apperror.Validation("sheet contains no rows")
	}

	var invalidTypes []string
	seenInvalid := make(map[string]bool)
	for _, row := range sheet.Rows {
		raw := row[ColumnDiscountType]
		if model.ValidDiscountType(strings.ToLower(strings.TrimSpace(raw))) || seenInvalid[raw] {
			continue
		}
		seenInvalid[raw] = true
		invalidTypes = append(invalidTypes, raw)
	}
	if len(invalidTypes) > 0 {
		return nil, apperror.Validation("invalid discount_type values: %s (allowed: fixed, percentage)", strings.Join(invalidTypes, ", ")).
			WithValues(invalidTypes)
	}

	staged := make([]stagedRow, 0, len(sheet.Rows))
	codes := make(map[string]int, len(sheet.Rows))
	for i, row := range sheet.Rows {
		n := displayRow(i)
		coupon, err := parseRow(row, n, sheet.DateSerials)
		if err != nil {
			return nil, err
		}
		if first, dup := codes[coupon.Code]; dup {
			return nil, apperror.Validation("duplicate code %q in rows %d and %d", coupon.Code, first, n).
				WithRow(n).WithField(ColumnCode, coupon.Code)
		}
		codes[coupon.Code] = n
		coupon.CampaignID = &campaignID
		staged = append(staged, stagedRow{row: n, coupon: coupon})
	}
	return staged, nil
}

func parseRow(row map[string]string, n int, dateSerials bool) (*model.Coupon, error) {
	rawCode := row[ColumnCode]
	code := strings.TrimSpace(rawCode)
	if code == "" {
		return nil, apperror.Validation("empty code in row %d", n).WithRow(n).WithField(ColumnCode, rawCode)
	}
	if len(code) > model.MaxCodeLength {
		return nil, apperror.Validation("code in row %d exceeds %d characters", n, model.MaxCodeLength).
			WithRow(n).WithField(ColumnCode, rawCode)
	}

	discountType := strings.ToLower(strings.TrimSpace(row[ColumnDiscountType]))

	rawValue := row[ColumnDiscountValue]
	value, err := decimal.NewFromString(strings.TrimSpace(rawValue))
	if err != nil {
		return nil, apperror.Validation("invalid discount_value %q in row %d", rawValue, n).
			WithRow(n).WithField(ColumnDiscountValue, rawValue)
	}
	if err := validateDiscountValue(discountType, value); err != nil {
		return nil, apperror.Validation("%s in row %d", err.Error(), n).WithRow(n).WithField(ColumnDiscountValue, rawValue)
	}

	coupon := &model.Coupon{
		Code:          code,
		DiscountType:  discountType,
		DiscountValue: value.Round(2),
	}

	if rawExpiry := row[ColumnExpiresAt]; strings.TrimSpace(rawExpiry) != "" {
		t, ok := parseExpiry(rawExpiry, dateSerials)
		if !ok {
			return nil, apperror.Validation("invalid expires_at %q in row %d", rawExpiry, n).
				WithRow(n).WithField(ColumnExpiresAt, rawExpiry)
		}
		coupon.ExpiresAt = &t
	}

	if rawUser := row[ColumnUserID]; strings.TrimSpace(rawUser) != "" {
		id, ok := baseModel.ParseID(strings.TrimSpace(rawUser))
		if !ok {
			return nil, apperror.Validation("invalid user_id %q in row %d", rawUser, n).
				WithRow(n).WithField(ColumnUserID, rawUser)
		}
		coupon.AssignedToUserID = &id
	}
	return coupon, nil
}

// checkImportUsers 行内引用的用户必须存在
func (s *couponService) checkImportUsers(ctx context.Context, staged []stagedRow) error {
	var ids []string
	seen := make(map[string]bool)
	for _, r := range staged {
		if uid := r.coupon.AssignedToUserID; uid != nil && !seen[*uid] {
			seen[*uid] = true
			ids = append(ids, *uid)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	found, err := s.users.ExistingIDs(ctx, ids)
	if err != nil {
		return err
	}
	exists := make(map[string]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}
	for _, r := range staged {
		if uid := r.coupon.AssignedToUserID; uid != nil && !exists[*uid] {
			return apperror.NotFound("user %s in row %d not found", *uid, r.row).
				WithRow(r.row).WithField(ColumnUserID, *uid)
		}
	}
	return nil
}

// checkImportCodes 已存在于库中的券码整批拒绝
func (s *couponService) checkImportCodes(ctx context.Context, staged []stagedRow) error {
	codes := make([]string, len(staged))
	for i, r := range staged {
		codes[i] = r.coupon.Code
	}
	existing, err := s.repo.ExistingCodes(ctx, codes)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return apperror.Conflict("codes already exist: %s", strings.Join(existing, ", ")).WithValues(existing)
	}
	return nil
}
