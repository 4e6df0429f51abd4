package model

import "gorm.io/datatypes"

// DayHours 某一天的营业时间窗口
type DayHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// WorkingHours 周一到周日的营业时间，key 为小写英文星期
type WorkingHours map[string]DayHours

// ServiceSettings 预约/服务配置，每个刊登最多一条
type ServiceSettings struct {
	DependentModel
	ListingID  int64  `gorm:"uniqueIndex;not null;comment:刊登ID" json:"listing_id"`
	ProviderID string `gorm:"size:64;index;not null;comment:服务提供者" json:"provider_id"`

	ServiceName         string                          `gorm:"size:200" json:"service_name"`
	BookingEnabled      bool                            `json:"booking_enabled"`
	WorkingHours        datatypes.JSONType[WorkingHours] `json:"working_hours"`
	TimeSlots           datatypes.JSON                  `json:"time_slots"`
	AvailabilityPeriods datatypes.JSON                  `json:"availability_periods"`

	CancellationHours         int      `json:"cancellation_hours"`
	CancellationFeeEnabled    bool     `json:"cancellation_fee_enabled"`
	CancellationFeePercentage *float64 `json:"cancellation_fee_percentage"`
	CancellationFeeAmount     *float64 `json:"cancellation_fee_amount"`
	RefundPolicy              string   `gorm:"size:16" json:"refund_policy"`
}

func (*ServiceSettings) TableName() string {
	return "service_settings"
}
