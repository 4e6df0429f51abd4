package form

import "strings"

const (
	DefaultCurrency = "GBP"
	StatusActive    = "active"
)

// transientPhotoSchemes 本地预览图的协议头，不能原样写入远端
var transientPhotoSchemes = []string{"file:", "content:", "blob:", "ph:", "assets-library:", "data:"}

// IsTransientPhoto 是否为本地临时预览图
func IsTransientPhoto(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	for _, scheme := range transientPhotoSchemes {
		if strings.HasPrefix(ref, scheme) {
			return true
		}
	}
	return false
}

// ListingDraft 刊登表单的完整状态
type ListingDraft struct {
	ID     int64  `json:"id,omitempty"` // 首次提交成功前为 0
	UserID string `json:"userId,omitempty"`

	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Category         string      `json:"category"`
	Tags             []string    `json:"tags"`
	Photos           []string    `json:"photos"`
	Location         Location    `json:"location"`
	Address          Address     `json:"address"`
	ShowExactAddress bool        `json:"showExactAddress"`
	Status           string      `json:"status"`
	PreferredDate    string      `json:"preferredDate"`
	ListingType      ListingType `json:"listingType"`

	Pricing   Pricing            `json:"pricing"`
	Variant   Variant            `json:"variant"`
	Booking   Booking            `json:"booking"`
	Policy    CancellationPolicy `json:"policy"`
	Incentive ReviewIncentive    `json:"incentive"`
}

// NewDraft 按刊登类型构造带默认值的草稿
func NewDraft(t ListingType) ListingDraft {
	if _, ok := legalBudgetTypes[t]; !ok {
		t = ListingTypeService
	}
	return ListingDraft{
		Tags:        []string{},
		Photos:      []string{},
		Status:      StatusActive,
		ListingType: t,
		Pricing: Pricing{
			BudgetType: DefaultBudgetType(t),
			Currency:   DefaultCurrency,
			PriceList:  []PriceItem{},
		},
		Variant: NewVariant(t),
		Booking: Booking{
			TimeSlots:           []TimeSlot{},
			AvailabilityPeriods: []AvailabilityPeriod{},
		},
		Policy: CancellationPolicy{
			Hours:        24,
			Fee:          Amount{Kind: AmountPercentage},
			RefundPolicy: RefundFull,
		},
		Incentive: DefaultReviewIncentive(),
	}
}

// DefaultReviewIncentive 评价激励默认配置（默认关闭）
func DefaultReviewIncentive() ReviewIncentive {
	return ReviewIncentive{
		Type:               IncentiveDiscount,
		Discount:           Amount{Kind: AmountPercentage, Value: 10},
		MinRating:          4.0,
		MaxUsesPerCustomer: 1,
		CouponPrefix:       "REVIEW",
		CouponValidDays:    30,
		Platforms:          []Platform{PlatformInApp},
	}
}

// UsesAvailabilityPeriods 出租类刊登用日期区间，其余用每周时段
func (d *ListingDraft) UsesAvailabilityPeriods() bool {
	return d.ListingType == ListingTypeRental
}

// Clone 深拷贝，调用方修改返回值不会影响原草稿
func (d ListingDraft) Clone() ListingDraft {
	out := d
	out.Tags = cloneStrings(d.Tags)
	out.Photos = cloneStrings(d.Photos)
	if d.Location.Lat != nil {
		lat := *d.Location.Lat
		out.Location.Lat = &lat
	}
	if d.Location.Lng != nil {
		lng := *d.Location.Lng
		out.Location.Lng = &lng
	}
	out.Pricing.PriceList = append([]PriceItem(nil), d.Pricing.PriceList...)
	if d.Pricing.PriceList != nil && out.Pricing.PriceList == nil {
		out.Pricing.PriceList = []PriceItem{}
	}
	if d.Variant != nil {
		out.Variant = d.Variant.clone()
	}
	out.Booking.TimeSlots = append([]TimeSlot(nil), d.Booking.TimeSlots...)
	if d.Booking.TimeSlots != nil && out.Booking.TimeSlots == nil {
		out.Booking.TimeSlots = []TimeSlot{}
	}
	out.Booking.AvailabilityPeriods = append([]AvailabilityPeriod(nil), d.Booking.AvailabilityPeriods...)
	if d.Booking.AvailabilityPeriods != nil && out.Booking.AvailabilityPeriods == nil {
		out.Booking.AvailabilityPeriods = []AvailabilityPeriod{}
	}
	out.Incentive.Platforms = append([]Platform(nil), d.Incentive.Platforms...)
	if d.Incentive.Platforms != nil && out.Incentive.Platforms == nil {
		out.Incentive.Platforms = []Platform{}
	}
	return out
}

// ActiveVariant 返回与刊登类型匹配的变体；不匹配时返回该类型的默认变体
func (d *ListingDraft) ActiveVariant() Variant {
	if d.Variant == nil || d.Variant.Kind() != d.ListingType {
		return NewVariant(d.ListingType)
	}
	return d.Variant
}

// NormalizeVariant 去除变体字符串字段首尾空白
func NormalizeVariant(v Variant) Variant {
	if v == nil {
		return nil
	}
	return v.trimmed()
}
