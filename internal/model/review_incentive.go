package model

import "gorm.io/datatypes"

// ReviewIncentiveSettings 评价激励配置，按 (刊登, 提供者) 唯一
type ReviewIncentiveSettings struct {
	DependentModel
	ListingID  int64  `gorm:"uniqueIndex:idx_incentive_listing_provider;not null" json:"listing_id"`
	ProviderID string `gorm:"size:64;uniqueIndex:idx_incentive_listing_provider;not null" json:"provider_id"`

	Enabled            bool     `json:"enabled"`
	IncentiveType      string   `gorm:"size:16" json:"incentive_type"`
	DiscountPercentage *float64 `json:"discount_percentage"`
	DiscountAmount     *float64 `json:"discount_amount"`
	MinRating          float64  `json:"min_rating"`
	RequireTextReview  bool     `json:"require_text_review"`
	MaxUsesPerCustomer int      `json:"max_uses_per_customer"`
	AutoGenerateCoupon bool     `json:"auto_generate_coupon"`
	CouponPrefix       string   `gorm:"size:32" json:"coupon_prefix"`
	CouponValidDays    int      `json:"coupon_valid_days"`
	Message            string   `gorm:"type:text" json:"message"`

	Platforms   datatypes.JSONSlice[string] `json:"platforms"`
	FacebookURL string                      `gorm:"size:500" json:"facebook_url"`
	GoogleURL   string                      `gorm:"size:500" json:"google_url"`
}

func (*ReviewIncentiveSettings) TableName() string {
	return "review_incentive_settings"
}
