package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/internal/domain/coupon/service"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/internal/pkg/middleware"
	"coupon_hub/pkg/apperror"
	"coupon_hub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	campaignUUID = "7f1c1b9e-3c4a-4f51-9a55-2d3f8e0c1a01"
	couponUUID   = "0a7e2c44-5b1d-4e0b-8f3e-6c2a9d4b7e02"
	userUUID     = "5d2b8f60-9e4c-4a2d-b1f7-3e8c0a6d9f03"
)

// stubService 只实现用到的方法
type stubService struct {
	service.CouponService

	importSheet service.Sheet
	redeemErr   error
	generated   int
}

func (s *stubService) Import(_ context.Context, campaignID string, sheet service.Sheet) (*model.ImportResult, error) {
	s.importSheet = sheet
	codes := make([]string, len(sheet.Rows))
	for i, r := range sheet.Rows {
		codes[i] = r["code"]
	}
	return &model.ImportResult{CampaignID: campaignID, Count: len(codes), Codes: codes}, nil
}

func (s *stubService) Redeem(_ context.Context, couponID, userID string) (*model.Coupon, error) {
	if s.redeemErr != nil {
		return nil, s.redeemErr
	}
	return &model.Coupon{Code: "SPR-1", Redeemed: true, AssignedToUserID: &userID}, nil
}

func (s *stubService) Generate(_ context.Context, campaignID string, count int) (*model.GenerateResult, error) {
	s.generated = count
	return &model.GenerateResult{CampaignID: campaignID, Count: count}, nil
}

type recordingArchiver struct {
	key         string
	contentType string
	body        []byte
}

func (a *recordingArchiver) Archive(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	a.key = key
	a.contentType = contentType
	a.body, _ = io.ReadAll(body)
	return "https://files.example.com/" + key, nil
}

// asUser 模拟认证中间件写入调用方
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := &identity.Principal{UserID: userID}
		c.Set(middleware.ContextPrincipal, p)
		c.Next()
	}
}

func newRouter(svc *stubService, archiver *recordingArchiver) *gin.Engine {
	h := NewCouponHandler(svc, archiver, "imports", zap.NewNop())
	r := gin.New()
	r.POST("/admin/coupons/import/:campaign_id", h.ImportCoupons)
	r.POST("/admin/coupons/generate/:campaign_id/:count", h.GenerateCoupons)
	r.POST("/user/coupons/redeem/:coupon_id", asUser(userUUID), h.RedeemCoupon)
	return r
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestImportCouponsCSV(t *testing.T) {
	svc := &stubService{}
	archiver := &recordingArchiver{}
	r := newRouter(svc, archiver)

	csvData := []byte("Code,Discount_Type,Discount_Value\nA-1,fixed,5\nA-2,percentage,10\n")
	body, contentType := multipartBody(t, "batch.csv", csvData)
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons/import/"+campaignUUID, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"code", "discount_type", "discount_value"}, svc.importSheet.Columns)
	require.Len(t, svc.importSheet.Rows, 2)
	assert.Equal(t, "percentage", svc.importSheet.Rows[1]["discount_type"])
	assert.False(t, svc.importSheet.DateSerials)

	assert.True(t, strings.HasPrefix(archiver.key, "imports/"))
	assert.Contains(t, archiver.key, campaignUUID)
	assert.Equal(t, "text/csv", archiver.contentType)
	assert.Equal(t, csvData, archiver.body)
	assert.Contains(t, w.Body.String(), "https://files.example.com/imports/")
}

func TestImportCouponsXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"code", "discount_type", "discount_value", "expires_at"},
		{"X-1", "fixed", 5, "2025-06-30 23:59:59"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	svc := &stubService{}
	r := newRouter(svc, &recordingArchiver{})
	body, contentType := multipartBody(t, "batch.XLSX", buf.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons/import/"+campaignUUID, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, svc.importSheet.Rows, 1)
	assert.Equal(t, "X-1", svc.importSheet.Rows[0]["code"])
	assert.Equal(t, "5", svc.importSheet.Rows[0]["discount_value"])
	assert.Equal(t, "2025-06-30 23:59:59", svc.importSheet.Rows[0]["expires_at"])
	assert.True(t, svc.importSheet.DateSerials)
}

func TestImportCouponsRejectsBadUpload(t *testing.T) {
	r := newRouter(&stubService{}, &recordingArchiver{})

	body, contentType := multipartBody(t, "batch.txt", []byte("code\nA"))
	req := httptest.NewRequest(http.MethodPost, "/admin/coupons/import/"+campaignUUID, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/coupons/import/not-a-uuid", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateCouponsParsesCount(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc, &recordingArchiver{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/coupons/generate/"+campaignUUID+"/5", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 5, svc.generated)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/coupons/generate/"+campaignUUID+"/many", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedeemCouponErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"success", nil, http.StatusOK, response.CodeSuccess},
		{"not owner", apperror.Authorization("not authorized to redeem this coupon"), http.StatusForbidden, response.ErrForbidden},
		{"already redeemed", apperror.Conflict("coupon has already been redeemed"), http.StatusConflict, response.ErrConflict},
		{"missing", apperror.NotFound("coupon not found"), http.StatusNotFound, response.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&stubService{redeemErr: tt.err}, &recordingArchiver{})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/user/coupons/redeem/"+couponUUID, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decode(t, w).Code)
		})
	}
}
