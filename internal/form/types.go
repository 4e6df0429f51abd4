package form

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ==================== 刊登类型 ====================

// ListingType 刊登类型（决定当前激活的变体）
type ListingType string

const (
	ListingTypeService        ListingType = "service"
	ListingTypeGoods          ListingType = "goods"
	ListingTypeRental         ListingType = "rental"
	ListingTypeExperience     ListingType = "experience"
	ListingTypeSubscription   ListingType = "subscription"
	ListingTypeFreelance      ListingType = "freelance"
	ListingTypeAuction        ListingType = "auction"
	ListingTypeSpaceSharing   ListingType = "space_sharing"
	ListingTypeFundraising    ListingType = "fundraising"
	ListingTypeTransportation ListingType = "transportation"
	ListingTypeLink           ListingType = "link"
	ListingTypeGatedContent   ListingType = "gated_content"
)

// AllListingTypes 全部刊登类型
var AllListingTypes = []ListingType{
	ListingTypeService,
	ListingTypeGoods,
	ListingTypeRental,
	ListingTypeExperience,
	ListingTypeSubscription,
	ListingTypeFreelance,
	ListingTypeAuction,
	ListingTypeSpaceSharing,
	ListingTypeFundraising,
	ListingTypeTransportation,
	ListingTypeLink,
	ListingTypeGatedContent,
}

// ParseListingType 解析刊登类型，未知类型返回 false
func ParseListingType(s string) (ListingType, bool) {
	t := ListingType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllListingTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// ==================== 定价类型 ====================

// BudgetType 定价方式
type BudgetType string

const (
	BudgetFixed      BudgetType = "fixed"
	BudgetRange      BudgetType = "range"
	BudgetPriceList  BudgetType = "price_list"
	BudgetAuction    BudgetType = "auction"
	BudgetPerProject BudgetType = "per_project"
	BudgetPerHour    BudgetType = "per_hour"
	BudgetPerDay     BudgetType = "per_day"
	BudgetPerMonth   BudgetType = "per_month"
	BudgetPerPerson  BudgetType = "per_person"
	BudgetDonation   BudgetType = "donation"
	BudgetFree       BudgetType = "free"
)

// legalBudgetTypes 每种刊登类型允许的定价方式，第一个为默认值
var legalBudgetTypes = map[ListingType][]BudgetType{
	ListingTypeService:        {BudgetFixed, BudgetRange, BudgetPriceList, BudgetPerHour},
	ListingTypeGoods:          {BudgetFixed, BudgetRange},
	ListingTypeRental:         {BudgetPerDay, BudgetPerHour, BudgetPerMonth, BudgetFixed},
	ListingTypeExperience:     {BudgetPerPerson, BudgetFixed},
	ListingTypeSubscription:   {BudgetFixed},
	ListingTypeFreelance:      {BudgetPerProject, BudgetPerHour, BudgetFixed, BudgetRange},
	ListingTypeAuction:        {BudgetAuction},
	ListingTypeSpaceSharing:   {BudgetPerHour, BudgetPerDay, BudgetPerMonth},
	ListingTypeFundraising:    {BudgetDonation},
	ListingTypeTransportation: {BudgetFixed, BudgetRange, BudgetPerHour},
	ListingTypeLink:           {BudgetFree, BudgetFixed},
	ListingTypeGatedContent:   {BudgetFixed},
}

// LegalBudgetTypes 返回刊登类型允许的定价方式
func LegalBudgetTypes(t ListingType) []BudgetType {
	return append([]BudgetType(nil), legalBudgetTypes[t]...)
}

// DefaultBudgetType 刊登类型的默认定价方式
func DefaultBudgetType(t ListingType) BudgetType {
	if legal := legalBudgetTypes[t]; len(legal) > 0 {
		return legal[0]
	}
	return BudgetFixed
}

// IsLegalBudgetType 定价方式是否属于该刊登类型的合法集合
func IsLegalBudgetType(t ListingType, b BudgetType) bool {
	for _, legal := range legalBudgetTypes[t] {
		if legal == b {
			return true
		}
	}
	return false
}

// ==================== 值对象 ====================

// PriceItem 价目表条目
type PriceItem struct {
	ServiceName string `json:"serviceName"`
	Price       string `json:"price"`
}

// TimeSlot 每周可预约时段
type TimeSlot struct {
	ID              string `json:"id"`
	Day             string `json:"day"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	BlockingService string `json:"blockingService,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// AvailabilityPeriod 出租类刊登的可用日期区间
type AvailabilityPeriod struct {
	ID          string `json:"id"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	IsAvailable bool   `json:"isAvailable"`
	Notes       string `json:"notes,omitempty"`
}

// Location 展示用地址及坐标
type Location struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Address 结构化地址
type Address struct {
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
}

// AmountKind 百分比或固定金额
type AmountKind string

const (
	AmountPercentage AmountKind = "percentage"
	AmountFixed      AmountKind = "fixed"
)

// Amount 百分比/固定金额二选一
// 同一时刻只有一种生效，类型本身保证互斥
type Amount struct {
	Kind  AmountKind `json:"kind"`
	Value float64    `json:"value"`
}

// Percentage 取百分比值，非百分比时返回 0
func (a Amount) Percentage() float64 {
	if a.Kind == AmountPercentage {
		return a.Value
	}
	return 0
}

// Fixed 取固定金额，非固定金额时返回 0
func (a Amount) Fixed() float64 {
	if a.Kind == AmountFixed {
		return a.Value
	}
	return 0
}

// AmountFromPair 由两列数据还原，两者都非零时以百分比为准
func AmountFromPair(percentage, fixed *float64) Amount {
	if percentage != nil && *percentage > 0 {
		return Amount{Kind: AmountPercentage, Value: *percentage}
	}
	if fixed != nil && *fixed > 0 {
		return Amount{Kind: AmountFixed, Value: *fixed}
	}
	return Amount{Kind: AmountPercentage}
}

// RefundPolicy 退款策略
type RefundPolicy string

const (
	RefundFull    RefundPolicy = "full"
	RefundPartial RefundPolicy = "partial"
	RefundNone    RefundPolicy = "none"
)

// IncentiveType 评价激励类型
type IncentiveType string

const (
	IncentiveDiscount IncentiveType = "discount"
	IncentiveCredit   IncentiveType = "credit"
	IncentivePoints   IncentiveType = "points"
)

// Platform 评价平台
type Platform string

const (
	PlatformInApp    Platform = "in_app"
	PlatformFacebook Platform = "facebook"
	PlatformGoogle   Platform = "google"
)

// ==================== 草稿分组 ====================

// Pricing 定价信息
type Pricing struct {
	BudgetType BudgetType  `json:"budgetType"`
	BudgetMin  string      `json:"budgetMin"`
	BudgetMax  string      `json:"budgetMax"`
	Currency   string      `json:"currency"`
	PriceList  []PriceItem `json:"priceList"`
}

// Booking 预约配置
// 出租类刊登使用 AvailabilityPeriods，其余使用 TimeSlots
type Booking struct {
	Enabled             bool                 `json:"enabled"`
	ServiceName         string               `json:"serviceName"`
	TimeSlots           []TimeSlot           `json:"timeSlots"`
	AvailabilityPeriods []AvailabilityPeriod `json:"availabilityPeriods"`
}

// CancellationPolicy 取消政策
type CancellationPolicy struct {
	Hours        int          `json:"hours"`
	FeeEnabled   bool         `json:"feeEnabled"`
	Fee          Amount       `json:"fee"`
	RefundPolicy RefundPolicy `json:"refundPolicy"`
}

// ReviewIncentive 评价激励配置
type ReviewIncentive struct {
	Enabled            bool          `json:"enabled"`
	Type               IncentiveType `json:"type"`
	Discount           Amount        `json:"discount"`
	MinRating          float64       `json:"minRating"`
	RequireTextReview  bool          `json:"requireTextReview"`
	MaxUsesPerCustomer int           `json:"maxUsesPerCustomer"`
	AutoGenerateCoupon bool          `json:"autoGenerateCoupon"`
	CouponPrefix       string        `json:"couponPrefix"`
	CouponValidDays    int           `json:"couponValidDays"`
	Message            string        `json:"message"`
	Platforms          []Platform    `json:"platforms"`
	FacebookURL        string        `json:"facebookUrl,omitempty"`
	GoogleURL          string        `json:"googleUrl,omitempty"`
}

// HasPlatform 是否选中某平台
func (r ReviewIncentive) HasPlatform(p Platform) bool {
	for _, selected := range r.Platforms {
		if selected == p {
			return true
		}
	}
	return false
}

// UnmarshalJSON 兼容价格为数字或字符串两种存储形式
func (p *PriceItem) UnmarshalJSON(b []byte) error {
	var raw struct {
		ServiceName string          `json:"serviceName"`
		Price       json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.ServiceName = raw.ServiceName
	p.Price = ""

	price := strings.TrimSpace(string(raw.Price))
	switch {
	case price == "" || price == "null":
	case strings.HasPrefix(price, `"`):
		var s string
		if err := json.Unmarshal(raw.Price, &s); err != nil {
			return err
		}
		p.Price = s
	default:
		var f float64
		if err := json.Unmarshal(raw.Price, &f); err != nil {
			return err
		}
		p.Price = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return nil
}
