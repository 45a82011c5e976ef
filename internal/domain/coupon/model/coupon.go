package model

import (
	"time"

	baseModel "coupon_hub/pkg/model"

	"github.com/shopspring/decimal"
)

// 折扣类型
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// MaxCodeLength 券码最大长度
const MaxCodeLength = 50

// Coupon 优惠券
// 分配和核销都是一次性状态迁移：assigned_to_user_id 只能从空变为非空，redeemed 只能从 false 变为 true
type Coupon struct {
	baseModel.BaseModel
	Code             string          `gorm:"size:50;uniqueIndex;not null" json:"code"`
	DiscountType     string          `gorm:"size:20;not null" json:"discount_type"`
	DiscountValue    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_value"`
	ExpiresAt        *time.Time      `json:"expires_at"`
	Redeemed         bool            `gorm:"not null;default:false" json:"redeemed"`
	RedeemedAt       *time.Time      `json:"redeemed_at"`
	CampaignID       *string         `gorm:"type:uuid;index" json:"campaign_id"`
	AssignedToUserID *string         `gorm:"type:uuid;index" json:"assigned_to_user_id"`
}

func (Coupon) TableName() string {
	return "coupons"
}

// IsExpired 是否已过期，没有过期时间的券永不过期
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// IsAssigned 是否已分配
func (c *Coupon) IsAssigned() bool {
	return c.AssignedToUserID != nil
}

// ValidDiscountType 校验折扣类型
func ValidDiscountType(t string) bool {
	return t == DiscountPercentage || t == DiscountFixed
}
