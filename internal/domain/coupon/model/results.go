package model

// GenerateResult 批量生成结果
type GenerateResult struct {
	CampaignID string   `json:"campaign_id"`
	Count      int      `json:"count"`
	Coupons    []Coupon `json:"coupons"`
}

// BulkAssignResult 轮询分配结果
type BulkAssignResult struct {
	CampaignID string `json:"campaign_id"`
	Assigned   int    `json:"assigned"`
	Recipients int    `json:"recipients"`
}

// ImportResult 表格导入结果
type ImportResult struct {
	CampaignID string   `json:"campaign_id"`
	Count      int      `json:"count"`
	Codes      []string `json:"codes"`
	ArchiveURL string   `json:"archive_url,omitempty"`
}

// CouponList 分页列表
type CouponList struct {
	Coupons []Coupon `json:"coupons"`
	Count   int64    `json:"count"`
}
