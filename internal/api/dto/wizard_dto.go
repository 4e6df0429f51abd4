package dto

import (
	"bytes"
	"encoding/json"
	"strconv"

	"listing_wizard_v1/internal/form"
)

// NumericText 兼容客户端传数字或字符串，统一保存为文本
type NumericText string

func (n *NumericText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumericText(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = NumericText(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// ==================== 请求 DTO ====================

// OpenWizardRequest 打开新建向导
type OpenWizardRequest struct {
	ListingType string `json:"listing_type"`
}

// UpdateWizardRequest 修改草稿
// 指针/切片为 nil 表示不修改；切片传 [] 表示清空
type UpdateWizardRequest struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Photos      []string `json:"photos,omitempty"`
	Status      *string  `json:"status,omitempty"`

	ListingType *string         `json:"listing_type,omitempty"`
	Variant     json.RawMessage `json:"variant,omitempty"` // 按 listing_type 解码

	LocationAddress  *string       `json:"location_address,omitempty"`
	Lat              *float64      `json:"lat,omitempty"`
	Lng              *float64      `json:"lng,omitempty"`
	Address          *form.Address `json:"address,omitempty"`
	ShowExactAddress *bool         `json:"show_exact_address,omitempty"`
	PreferredDate    *string       `json:"preferred_date,omitempty"`

	BudgetType *string          `json:"budget_type,omitempty"`
	BudgetMin  *NumericText     `json:"budget_min,omitempty"`
	BudgetMax  *NumericText     `json:"budget_max,omitempty"`
	Currency   *string          `json:"currency,omitempty"`
	PriceList  []form.PriceItem `json:"price_list,omitempty"`

	BookingEnabled      *bool                     `json:"booking_enabled,omitempty"`
	ServiceName         *string                   `json:"service_name,omitempty"`
	TimeSlots           []form.TimeSlot           `json:"time_slots,omitempty"`
	AvailabilityPeriods []form.AvailabilityPeriod `json:"availability_periods,omitempty"`

	CancellationHours      *int         `json:"cancellation_hours,omitempty"`
	CancellationFeeEnabled *bool        `json:"cancellation_fee_enabled,omitempty"`
	CancellationFee        *form.Amount `json:"cancellation_fee,omitempty"`
	RefundPolicy           *string      `json:"refund_policy,omitempty"`

	ReviewIncentive *form.ReviewIncentive `json:"review_incentive,omitempty"`
}

// ReverseGeocodeRequest 坐标反查地址
type ReverseGeocodeRequest struct {
	Lat float64 `json:"lat" binding:"min=-90,max=90"`
	Lng float64 `json:"lng" binding:"min=-180,max=180"`
}

// ==================== 响应 DTO ====================

// AlertVO 用户提示
type AlertVO struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// WizardVO 向导当前状态
type WizardVO struct {
	SessionID string            `json:"session_id"`
	Step      form.Step         `json:"step"`
	Plan      []form.Step       `json:"plan"`
	Editing   bool              `json:"editing"`
	ListingID int64             `json:"listing_id,omitempty"`
	Draft     form.ListingDraft `json:"draft"`

	// BudgetTypes 当前刊登类型可选的定价方式，第一个为默认值
	BudgetTypes []form.BudgetType `json:"budget_types"`
}

// WizardResponse 大部分向导接口的响应
type WizardResponse struct {
	Wizard *WizardVO `json:"wizard,omitempty"`
	Alerts []AlertVO `json:"alerts"`
}

// SubmissionVO 提交结果
type SubmissionVO struct {
	ListingID      int64  `json:"listing_id"`
	Mode           string `json:"mode"`
	BookingWarning string `json:"booking_warning,omitempty"`
}

// StepResponse 下一步/提交的响应
type StepResponse struct {
	Wizard     *WizardVO        `json:"wizard,omitempty"`
	Result     *form.StepResult `json:"result,omitempty"`
	Submission *SubmissionVO    `json:"submission,omitempty"`
	Alerts     []AlertVO        `json:"alerts"`
}

// UploadPhotosResponse 上传图片的响应
type UploadPhotosResponse struct {
	Wizard   *WizardVO `json:"wizard"`
	Uploaded []string  `json:"uploaded"`
	Failed   string    `json:"failed,omitempty"`
	Alerts   []AlertVO `json:"alerts"`
}
