package model

import (
	"coupon_hub/pkg/model"
)

// User 本地用户，首次携带外部令牌访问时自动创建
type User struct {
	model.BaseModel
	Email             string  `gorm:"uniqueIndex;not null" json:"email"`
	FullName          string  `json:"full_name"`
	IsActive          bool    `gorm:"not null;default:true" json:"is_active"`
	IsSuperuser       bool    `gorm:"not null;default:false" json:"is_superuser"`
	ExternalSubjectID *string `gorm:"uniqueIndex" json:"external_subject_id,omitempty"`
}

func (User) TableName() string {
	return "users"
}
