package form

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Variant 刊登类型专属字段
// 每种类型一个结构体，Kind() 即标签；同一时刻草稿只持有一个激活变体
type Variant interface {
	Kind() ListingType
	clone() Variant
	trimmed() Variant
}

// ==================== 变体定义 ====================

// ServiceDetails 服务类没有额外字段，预约信息在 Booking 中
type ServiceDetails struct{}

type GoodsDetails struct {
	Condition         string `json:"condition"`
	Quantity          string `json:"quantity"`
	ShippingAvailable bool   `json:"shippingAvailable"`
}

type RentalDetails struct {
	RentalPeriod    string `json:"rentalPeriod"`
	DailyRate       string `json:"dailyRate"`
	WeeklyRate      string `json:"weeklyRate"`
	MonthlyRate     string `json:"monthlyRate"`
	SecurityDeposit string `json:"securityDeposit"`
	MinRentalDays   string `json:"minRentalDays"`
}

type ExperienceDetails struct {
	DurationMinutes string   `json:"durationMinutes"`
	MaxParticipants string   `json:"maxParticipants"`
	IncludedItems   []string `json:"includedItems"`
	Difficulty      string   `json:"difficulty"`
}

type SubscriptionDetails struct {
	BillingCycle string   `json:"billingCycle"`
	TrialDays    string   `json:"trialDays"`
	Benefits     []string `json:"benefits"`
}

type FreelanceDetails struct {
	FreelanceCategory string   `json:"freelanceCategory"`
	Skills            []string `json:"skills"`
	DeliveryDays      string   `json:"deliveryDays"`
	Revisions         string   `json:"revisions"`
}

type AuctionDetails struct {
	StartingBid  string `json:"startingBid"`
	ReservePrice string `json:"reservePrice"`
	BidIncrement string `json:"bidIncrement"`
	BuyNowPrice  string `json:"buyNowPrice"`
	EndsAt       string `json:"endsAt"`
}

type SpaceSharingDetails struct {
	SpaceType string   `json:"spaceType"`
	Capacity  string   `json:"capacity"`
	Amenities []string `json:"amenities"`
}

type FundraisingDetails struct {
	GoalAmount  string `json:"goalAmount"`
	Beneficiary string `json:"beneficiary"`
	Deadline    string `json:"deadline"`
}

// TransportationDetails 配送 (delivery) 与打车 (taxi) 共用
type TransportationDetails struct {
	Mode        string `json:"mode"`
	VehicleType string `json:"vehicleType"`
	ServiceArea string `json:"serviceArea"`
	BaseFare    string `json:"baseFare"`
	PerKmRate   string `json:"perKmRate"`
	MaxWeightKg string `json:"maxWeightKg"`
}

type LinkDetails struct {
	URL      string `json:"url"`
	LinkType string `json:"linkType"`
}

type GatedContentDetails struct {
	ContentURL  string `json:"contentUrl"`
	AccessType  string `json:"accessType"`
	PreviewText string `json:"previewText"`
}

// ==================== Kind ====================

func (ServiceDetails) Kind() ListingType { return ListingTypeService }
func (GoodsDetails) Kind() ListingType { return ListingTypeGoods }
func (RentalDetails) Kind() ListingType { return ListingTypeRental }
func (ExperienceDetails) Kind() ListingType { return ListingTypeExperience }
func (SubscriptionDetails) Kind() ListingType { return ListingTypeSubscription }
func (FreelanceDetails) Kind() ListingType { return ListingTypeFreelance }
func (AuctionDetails) Kind() ListingType { return ListingTypeAuction }
func (SpaceSharingDetails) Kind() ListingType { return ListingTypeSpaceSharing }
func (FundraisingDetails) Kind() ListingType { return ListingTypeFundraising }
func (TransportationDetails) Kind() ListingType { return ListingTypeTransportation }
func (LinkDetails) Kind() ListingType { return ListingTypeLink }
func (GatedContentDetails) Kind() ListingType { return ListingTypeGatedContent }

// ==================== clone ====================

func (v ServiceDetails) clone() Variant { return v }
func (v GoodsDetails) clone() Variant { return v }
func (v RentalDetails) clone() Variant { return v }
func (v AuctionDetails) clone() Variant { return v }
func (v FundraisingDetails) clone() Variant { return v }
func (v TransportationDetails) clone() Variant { return v }
func (v LinkDetails) clone() Variant { return v }
func (v GatedContentDetails) clone() Variant { return v }

func (v ExperienceDetails) clone() Variant {
	v.IncludedItems = cloneStrings(v.IncludedItems)
	return v
}

func (v SubscriptionDetails) clone() Variant {
	v.Benefits = cloneStrings(v.Benefits)
	return v
}

func (v FreelanceDetails) clone() Variant {
	v.Skills = cloneStrings(v.Skills)
	return v
}

func (v SpaceSharingDetails) clone() Variant {
	v.Amenities = cloneStrings(v.Amenities)
	return v
}

// ==================== trimmed ====================

func (v ServiceDetails) trimmed() Variant { return v }

func (v GoodsDetails) trimmed() Variant {
	v.Condition = strings.TrimSpace(v.Condition)
	v.Quantity = strings.TrimSpace(v.Quantity)
	return v
}

func (v RentalDetails) trimmed() Variant {
	v.RentalPeriod = strings.TrimSpace(v.RentalPeriod)
	v.DailyRate = strings.TrimSpace(v.DailyRate)
	v.WeeklyRate = strings.TrimSpace(v.WeeklyRate)
	v.MonthlyRate = strings.TrimSpace(v.MonthlyRate)
	v.SecurityDeposit = strings.TrimSpace(v.SecurityDeposit)
	v.MinRentalDays = strings.TrimSpace(v.MinRentalDays)
	return v
}

func (v ExperienceDetails) trimmed() Variant {
	v.DurationMinutes = strings.TrimSpace(v.DurationMinutes)
	v.MaxParticipants = strings.TrimSpace(v.MaxParticipants)
	v.IncludedItems = trimStrings(v.IncludedItems)
	v.Difficulty = strings.TrimSpace(v.Difficulty)
	return v
}

func (v SubscriptionDetails) trimmed() Variant {
	v.BillingCycle = strings.TrimSpace(v.BillingCycle)
	v.TrialDays = strings.TrimSpace(v.TrialDays)
	v.Benefits = trimStrings(v.Benefits)
	return v
}

func (v FreelanceDetails) trimmed() Variant {
	v.FreelanceCategory = strings.TrimSpace(v.FreelanceCategory)
	v.Skills = trimStrings(v.Skills)
	v.DeliveryDays = strings.TrimSpace(v.DeliveryDays)
	v.Revisions = strings.TrimSpace(v.Revisions)
	return v
}

func (v AuctionDetails) trimmed() Variant {
	v.StartingBid = strings.TrimSpace(v.StartingBid)
	v.ReservePrice = strings.TrimSpace(v.ReservePrice)
	v.BidIncrement = strings.TrimSpace(v.BidIncrement)
	v.BuyNowPrice = strings.TrimSpace(v.BuyNowPrice)
	v.EndsAt = strings.TrimSpace(v.EndsAt)
	return v
}

func (v SpaceSharingDetails) trimmed() Variant {
	v.SpaceType = strings.TrimSpace(v.SpaceType)
	v.Capacity = strings.TrimSpace(v.Capacity)
	v.Amenities = trimStrings(v.Amenities)
	return v
}

func (v FundraisingDetails) trimmed() Variant {
	v.GoalAmount = strings.TrimSpace(v.GoalAmount)
	v.Beneficiary = strings.TrimSpace(v.Beneficiary)
	v.Deadline = strings.TrimSpace(v.Deadline)
	return v
}

func (v TransportationDetails) trimmed() Variant {
	v.Mode = strings.TrimSpace(v.Mode)
	v.VehicleType = strings.TrimSpace(v.VehicleType)
	v.ServiceArea = strings.TrimSpace(v.ServiceArea)
	v.BaseFare = strings.TrimSpace(v.BaseFare)
	v.PerKmRate = strings.TrimSpace(v.PerKmRate)
	v.MaxWeightKg = strings.TrimSpace(v.MaxWeightKg)
	return v
}

func (v LinkDetails) trimmed() Variant {
	v.URL = strings.TrimSpace(v.URL)
	v.LinkType = strings.TrimSpace(v.LinkType)
	return v
}

func (v GatedContentDetails) trimmed() Variant {
	v.ContentURL = strings.TrimSpace(v.ContentURL)
	v.AccessType = strings.TrimSpace(v.AccessType)
	v.PreviewText = strings.TrimSpace(v.PreviewText)
	return v
}

// ==================== 构造与解码 ====================

// NewVariant 返回刊登类型的默认变体
func NewVariant(t ListingType) Variant {
	switch t {
	case ListingTypeGoods:
		return GoodsDetails{Condition: "new", Quantity: "1"}
	case ListingTypeRental:
		return RentalDetails{RentalPeriod: "daily", MinRentalDays: "1"}
	case ListingTypeExperience:
		return ExperienceDetails{DurationMinutes: "60", MaxParticipants: "10", Difficulty: "easy", IncludedItems: []string{}}
	case ListingTypeSubscription:
		return SubscriptionDetails{BillingCycle: "monthly", Benefits: []string{}}
	case ListingTypeFreelance:
		return FreelanceDetails{DeliveryDays: "7", Revisions: "1", Skills: []string{}}
	case ListingTypeAuction:
		return AuctionDetails{BidIncrement: "1"}
	case ListingTypeSpaceSharing:
		return SpaceSharingDetails{SpaceType: "desk", Capacity: "1", Amenities: []string{}}
	case ListingTypeFundraising:
		return FundraisingDetails{}
	case ListingTypeTransportation:
		return TransportationDetails{Mode: "delivery"}
	case ListingTypeLink:
		return LinkDetails{LinkType: "website"}
	case ListingTypeGatedContent:
		return GatedContentDetails{AccessType: "one_time"}
	default:
		return ServiceDetails{}
	}
}

// DecodeVariant 按刊登类型解码变体 JSON，缺省字段保留默认值
func DecodeVariant(t ListingType, raw []byte) (Variant, error) {
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return NewVariant(t), nil
	}

	var err error
	switch v := NewVariant(t).(type) {
	case GoodsDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case RentalDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case ExperienceDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case SubscriptionDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case FreelanceDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case AuctionDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case SpaceSharingDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case FundraisingDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case TransportationDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case LinkDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	case GatedContentDetails:
		err = json.Unmarshal(raw, &v)
		return v, wrapDecodeErr(t, err)
	default:
		return v, nil
	}
}

func wrapDecodeErr(t ListingType, err error) error {
	if err != nil {
		return fmt.Errorf("解码 %s 变体失败: %w", t, err)
	}
	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

func trimStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
