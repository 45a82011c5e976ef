package model

import (
	"time"

	baseModel "coupon_hub/pkg/model"
)

// 公告状态，删除为软删除
const (
	StateActive  = "active"
	StateDeleted = "deleted"
)

// NewWindow 创建时间在此范围内的公告视为新公告
const NewWindow = 10 * 24 * time.Hour

// Announcement 公告
// 所有查询必须显式过滤 state = 'active'
type Announcement struct {
	baseModel.BaseModel
	Title          string     `gorm:"size:255;not null" json:"title"`
	Description    *string    `gorm:"type:text" json:"description"`
	Category       string     `gorm:"size:100;not null;index" json:"category"`
	RequiresCoupon bool       `gorm:"not null;default:false" json:"requires_coupon"`
	CampaignID     *string    `gorm:"type:uuid;index" json:"campaign_id"`
	IsPublished    bool       `gorm:"not null;default:false" json:"is_published"`
	PublishDate    *time.Time `json:"publish_date"`
	CreatedDate    time.Time  `gorm:"not null" json:"created_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	State          string     `gorm:"size:20;not null;default:'active';index" json:"-"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func (Announcement) TableName() string {
	return "announcements"
}

// IsExpired 是否已过期
func (a *Announcement) IsExpired(now time.Time) bool {
	return a.ExpiryDate != nil && !a.ExpiryDate.After(now)
}

// VisibleToPublic 已发布且未过期
func (a *Announcement) VisibleToPublic(now time.Time) bool {
	return a.IsPublished && !a.IsExpired(now)
}

// AnnouncementList 分页列表
type AnnouncementList struct {
	Data  []Announcement `json:"data"`
	Count int64          `json:"count"`
}
