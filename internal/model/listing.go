package model

import (
	"time"

	"gorm.io/datatypes"
)

// ==================== 状态常量 ====================

const (
	ListingStatusActive  = "active"
	ListingStatusPaused  = "paused"
	ListingStatusExpired = "expired"

	// ListingTTL 新刊登的有效期
	ListingTTL = 30 * 24 * time.Hour
)

// ==================== 数据库模型 ====================

// Listing 刊登主记录
// 数组列统一存 JSON；Details 只保存当前刊登类型对应的变体
type Listing struct {
	BaseModel
	UserID      string `gorm:"size:64;index;not null;comment:所属用户" json:"user_id"`
	ListingType string `gorm:"size:32;index;not null;comment:刊登类型" json:"listing_type"`

	Title       string         `gorm:"size:200;not null;comment:标题" json:"title"`
	Description string         `gorm:"type:text;comment:描述" json:"description"`
	Category    string         `gorm:"size:100;index;comment:分类" json:"category"`
	Tags        datatypes.JSON `gorm:"comment:标签" json:"tags"`
	Photos      datatypes.JSON `gorm:"comment:图片URL" json:"photos"`

	LocationAddress  string   `gorm:"size:500;comment:展示地址" json:"location_address"`
	LocationLat      *float64 `json:"location_lat"`
	LocationLng      *float64 `json:"location_lng"`
	StreetAddress    string   `gorm:"size:255" json:"street_address"`
	City             string   `gorm:"size:100" json:"city"`
	State            string   `gorm:"size:100" json:"state"`
	PostalCode       string   `gorm:"size:32" json:"postal_code"`
	Country          string   `gorm:"size:100" json:"country"`
	ShowExactAddress bool     `json:"show_exact_address"`

	Status        string     `gorm:"size:32;index;not null;comment:状态" json:"status"`
	ExpiresAt     *time.Time `gorm:"index;comment:过期时间" json:"expires_at"`
	PreferredDate *string    `gorm:"size:10" json:"preferred_date"`

	BudgetType string         `gorm:"size:32;comment:定价方式" json:"budget_type"`
	BudgetMin  *float64       `json:"budget_min"`
	BudgetMax  *float64       `json:"budget_max"`
	Currency   string         `gorm:"size:3;comment:货币代码" json:"currency"`
	PriceList  datatypes.JSON `gorm:"comment:价目表" json:"price_list"`
	Details    datatypes.JSON `gorm:"comment:刊登类型专属字段" json:"details"`

	BookingEnabled      bool           `json:"booking_enabled"`
	ServiceName         string         `gorm:"size:200" json:"service_name"`
	TimeSlots           datatypes.JSON `json:"time_slots"`
	AvailabilityPeriods datatypes.JSON `json:"availability_periods"`

	CancellationHours         int      `json:"cancellation_hours"`
	CancellationFeeEnabled    bool     `json:"cancellation_fee_enabled"`
	CancellationFeePercentage *float64 `json:"cancellation_fee_percentage"`
	CancellationFeeAmount     *float64 `json:"cancellation_fee_amount"`
	RefundPolicy              string   `gorm:"size:16" json:"refund_policy"`
}

func (*Listing) TableName() string {
	return "listings"
}

// IsExpired 是否已过有效期
func (l *Listing) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
