package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coupon_hub/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, err error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	FromError(c, err)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"not found", apperror.NotFound("coupon not found"), http.StatusNotFound, ErrNotFound},
		{"conflict", apperror.Conflict("coupon already redeemed"), http.StatusConflict, ErrConflict},
		{"authorization", apperror.Authorization("not the owner"), http.StatusForbidden, ErrForbidden},
		{"validation", apperror.Validation("bad input"), http.StatusBadRequest, ErrValidation},
		{"storage", apperror.Storage(errors.New("timeout"), "db"), http.StatusServiceUnavailable, ErrStorage},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrServerInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := render(t, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestFromErrorDetails(t *testing.T) {
	t.Run("Validation carries row and field", func(t *testing.T) {
		err := apperror.Validation("empty code").WithRow(3).WithField("code", "")
		_, body := render(t, err)

		data, ok := body.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "validation", data["kind"])
		assert.Equal(t, float64(3), data["row"])
		assert.Equal(t, "code", data["field"])
	})

	t.Run("Storage hides cause", func(t *testing.T) {
		_, body := render(t, apperror.Storage(errors.New("password=secret"), "db"))
		assert.NotContains(t, body.Message, "secret")
	})
}
