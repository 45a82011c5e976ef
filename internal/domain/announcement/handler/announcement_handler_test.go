package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"coupon_hub/internal/domain/announcement/model"
	"coupon_hub/internal/domain/announcement/service"
	"coupon_hub/internal/pkg/identity"
	"coupon_hub/internal/pkg/middleware"
	"coupon_hub/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const announcementUUID = "3b9d6f1a-2c4e-4d8b-9a7f-1e5c0b2d4f06"

type stubService struct {
	service.AnnouncementService

	privileged bool
	getErr     error
}

func (s *stubService) Get(_ context.Context, id string, privileged bool) (*model.Announcement, error) {
	s.privileged = privileged
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &model.Announcement{Title: "Spring"}, nil
}

func (s *stubService) List(_ context.Context, _ service.ListQuery, privileged bool) (*model.AnnouncementList, error) {
	s.privileged = privileged
	return &model.AnnouncementList{}, nil
}

func newRouter(svc service.AnnouncementService, roles ...string) *gin.Engine {
	h := NewAnnouncementHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, &identity.Principal{UserID: "u1", Roles: roles})
		c.Next()
	})
	r.GET("/announcements", h.ListAnnouncements)
	r.GET("/announcements/:id", h.GetAnnouncement)
	return r
}

func TestListAnnouncementsPrivilege(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"member", nil, false},
		{"manager", []string{identity.RoleManager}, true},
		{"admin", []string{identity.RoleAdmin}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			w := httptest.NewRecorder()
			newRouter(svc, tt.roles...).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/announcements?page=1", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, svc.privileged)
		})
	}
}

func TestGetAnnouncement(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(&stubService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/announcements/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("hidden", func(t *testing.T) {
		svc := &stubService{getErr: apperror.NotFound("announcement not found")}
		w := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/announcements/"+announcementUUID, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(&stubService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/announcements/"+announcementUUID, nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Spring")
	})
}
