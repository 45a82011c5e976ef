package model

import (
	"time"

	"coupon_hub/pkg/model"
)

// Campaign 营销活动，拥有优惠券和公告
type Campaign struct {
	model.BaseModel
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"size:1000" json:"description"`
	StartDate   time.Time `gorm:"not null" json:"start_date"`
	EndDate     time.Time `gorm:"not null" json:"end_date"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Stats 活动优惠券统计，每次实时计算
type Stats struct {
	Total      int64 `json:"total"`
	Assigned   int64 `json:"assigned"`
	Unassigned int64 `json:"unassigned"`
	Redeemed   int64 `json:"redeemed"`
}

// CampaignWithStats 带统计的活动
type CampaignWithStats struct {
	Campaign
	Stats Stats `json:"stats"`
}
