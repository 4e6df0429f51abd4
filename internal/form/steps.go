package form

import (
	"fmt"
	"strings"
)

// Step 向导步骤
type Step string

const (
	StepBasicInfo Step = "basic_info"
	StepPricing   Step = "pricing"
	StepBooking   Step = "booking"
	StepLocation  Step = "location"
	StepSettings  Step = "settings"
	StepReview    Step = "review"
)

// 需要预约步骤的刊登类型
var bookingStepTypes = map[ListingType]bool{
	ListingTypeService:        true,
	ListingTypeRental:         true,
	ListingTypeExperience:     true,
	ListingTypeSpaceSharing:   true,
	ListingTypeTransportation: true,
}

// StepPlan 刊登类型对应的有序步骤
func StepPlan(t ListingType) []Step {
	plan := []Step{StepBasicInfo, StepPricing}
	if bookingStepTypes[t] {
		plan = append(plan, StepBooking)
	}
	plan = append(plan, StepLocation)
	if t != ListingTypeLink {
		plan = append(plan, StepSettings)
	}
	return append(plan, StepReview)
}

// NextStep 下一步；已是最后一步或步骤不在计划内时返回 false
func NextStep(t ListingType, current Step) (Step, bool) {
	plan := StepPlan(t)
	for i, s := range plan {
		if s == current && i+1 < len(plan) {
			return plan[i+1], true
		}
	}
	return "", false
}

// PrevStep 上一步；已是第一步时返回 false
func PrevStep(t ListingType, current Step) (Step, bool) {
	plan := StepPlan(t)
	for i, s := range plan {
		if s == current && i > 0 {
			return plan[i-1], true
		}
	}
	return "", false
}

// StepResult 步骤校验结果
// OK 为 false 时 Reason 是可直接展示给用户的提示；Final 为 true 表示调用方应提交
type StepResult struct {
	OK     bool   `json:"ok"`
	Next   Step   `json:"nextStep,omitempty"`
	Final  bool   `json:"final"`
	Reason string `json:"reason,omitempty"`
}

// ==================== 校验分发表 ====================

// stepValidator 返回空串表示通过
type stepValidator func(d *ListingDraft) string

type stepKey struct {
	step        Step
	listingType ListingType
}

// anyListingType 通配，具体类型没有登记时使用
const anyListingType ListingType = "*"

var stepValidators = map[stepKey]stepValidator{
	{StepBasicInfo, anyListingType}:          validateBasicInfo,
	{StepBasicInfo, ListingTypeLink}:         chain(validateBasicInfo, validateLinkURL),
	{StepBasicInfo, ListingTypeGatedContent}: chain(validateBasicInfo, validateContentURL),

	{StepPricing, anyListingType}: validatePricing,

	{StepBooking, anyListingType}:    validateTimeSlots,
	{StepBooking, ListingTypeRental}: validateAvailabilityPeriods,

	{StepLocation, anyListingType}: validateLocation,
	{StepSettings, anyListingType}: pass,
	{StepReview, anyListingType}:   pass,
}

// budgetValidators 定价步骤按定价方式二次分发
var budgetValidators = map[BudgetType]stepValidator{
	BudgetFixed:      requireBudgetMin,
	BudgetPerProject: requireBudgetMin,
	BudgetPerHour:    requireBudgetMin,
	BudgetPerDay:     requireBudgetMin,
	BudgetPerMonth:   requireBudgetMin,
	BudgetPerPerson:  requireBudgetMin,
	BudgetRange:      validateRange,
	BudgetPriceList:  validatePriceList,
	BudgetAuction:    validateAuction,
	BudgetDonation:   validateDonation,
	BudgetFree:       pass,
}

// ValidateStep 校验单个步骤，不修改草稿
func ValidateStep(step Step, d ListingDraft) StepResult {
	v, ok := stepValidators[stepKey{step, d.ListingType}]
	if !ok {
		v, ok = stepValidators[stepKey{step, anyListingType}]
	}
	if !ok {
		return StepResult{Reason: fmt.Sprintf("Unknown step %q", step)}
	}

	if reason := v(&d); reason != "" {
		return StepResult{Reason: reason}
	}

	next, hasNext := NextStep(d.ListingType, step)
	return StepResult{OK: true, Next: next, Final: !hasNext}
}

// MissingRequiredFields 提交前必须存在的字段，按固定顺序返回缺失项
func MissingRequiredFields(d ListingDraft) []string {
	var missing []string
	if isBlank(d.Title) {
		missing = append(missing, "title")
	}
	if isBlank(d.Description) {
		missing = append(missing, "description")
	}
	if isBlank(d.Category) {
		missing = append(missing, "category")
	}
	if isBlank(d.Location.Address) {
		missing = append(missing, "location")
	}
	return missing
}

// ==================== 基础信息 ====================

func validateBasicInfo(d *ListingDraft) string {
	var missing []string
	if isBlank(d.Title) {
		missing = append(missing, "title")
	}
	if isBlank(d.Description) {
		missing = append(missing, "description")
	}
	if isBlank(d.Category) {
		missing = append(missing, "category")
	}
	return missingReason(missing)
}

func validateLinkURL(d *ListingDraft) string {
	if v, ok := d.ActiveVariant().(LinkDetails); !ok || isBlank(v.URL) {
		return "Please enter the link URL"
	}
	return ""
}

func validateContentURL(d *ListingDraft) string {
	if v, ok := d.ActiveVariant().(GatedContentDetails); !ok || isBlank(v.ContentURL) {
		return "Please enter the content URL"
	}
	return ""
}

// ==================== 定价 ====================

func validatePricing(d *ListingDraft) string {
	b := d.Pricing.BudgetType
	if !IsLegalBudgetType(d.ListingType, b) {
		return fmt.Sprintf("Pricing type %q is not available for %s listings", b, d.ListingType)
	}
	if v, ok := budgetValidators[b]; ok {
		return v(d)
	}
	return ""
}

func requireBudgetMin(d *ListingDraft) string {
	if isBlank(d.Pricing.BudgetMin) {
		return "Please enter a price"
	}
	if v := ParseDecimal(d.Pricing.BudgetMin); v == nil || *v < 0 {
		return "Price must be a valid number"
	}
	return ""
}

func validateRange(d *ListingDraft) string {
	if isBlank(d.Pricing.BudgetMin) || isBlank(d.Pricing.BudgetMax) {
		return "Please enter both a minimum and a maximum price"
	}
	lo, hi := ParseDecimal(d.Pricing.BudgetMin), ParseDecimal(d.Pricing.BudgetMax)
	if lo == nil || hi == nil {
		return "Price range must contain valid numbers"
	}
	if *lo >= *hi {
		return "Minimum price must be less than maximum price"
	}
	return ""
}

func validatePriceList(d *ListingDraft) string {
	if len(d.Pricing.PriceList) == 0 {
		return "Please add at least one item to the price list"
	}
	for i, item := range d.Pricing.PriceList {
		if isBlank(item.ServiceName) || isBlank(item.Price) {
			return fmt.Sprintf("Price list item %d needs a name and a price", i+1)
		}
	}
	return ""
}

func validateAuction(d *ListingDraft) string {
	v, _ := d.ActiveVariant().(AuctionDetails)
	bid := ParseDecimal(v.StartingBid)
	if bid == nil || *bid <= 0 {
		return "Please enter a starting bid"
	}
	if !isBlank(v.ReservePrice) {
		reserve := ParseDecimal(v.ReservePrice)
		if reserve == nil || *reserve < *bid {
			return "Reserve price must be at least the starting bid"
		}
	}
	return ""
}

func validateDonation(d *ListingDraft) string {
	v, _ := d.ActiveVariant().(FundraisingDetails)
	if goal := ParseDecimal(v.GoalAmount); goal == nil || *goal <= 0 {
		return "Please enter a fundraising goal"
	}
	return ""
}

// ==================== 预约 ====================

func validateTimeSlots(d *ListingDraft) string {
	if !d.Booking.Enabled {
		return ""
	}
	if len(d.Booking.TimeSlots) == 0 {
		return "Please add at least one time slot"
	}
	for i, slot := range d.Booking.TimeSlots {
		if _, ok := NormalizeWeekday(slot.Day); !ok {
			return fmt.Sprintf("Time slot %d has an invalid day", i+1)
		}
		start, okStart := parseClock(slot.StartTime)
		end, okEnd := parseClock(slot.EndTime)
		if !okStart || !okEnd {
			return fmt.Sprintf("Time slot %d needs a start and end time (HH:MM)", i+1)
		}
		if start >= end {
			return fmt.Sprintf("Time slot %d must end after it starts", i+1)
		}
	}
	return ""
}

func validateAvailabilityPeriods(d *ListingDraft) string {
	if !d.Booking.Enabled {
		return ""
	}
	if len(d.Booking.AvailabilityPeriods) == 0 {
		return "Please add at least one availability period"
	}
	for i, p := range d.Booking.AvailabilityPeriods {
		start, end := NormalizeCalendarDate(p.StartDate), NormalizeCalendarDate(p.EndDate)
		if start == nil || end == nil {
			return fmt.Sprintf("Availability period %d needs valid dates", i+1)
		}
		// YYYY-MM-DD 可直接按字符串比较
		if *start > *end {
			return fmt.Sprintf("Availability period %d must end on or after its start date", i+1)
		}
	}
	return ""
}

// ==================== 位置 ====================

func validateLocation(d *ListingDraft) string {
	if isBlank(d.Location.Address) {
		return "Please enter a location"
	}
	if !d.ShowExactAddress {
		return ""
	}

	var missing []string
	if isBlank(d.Address.StreetAddress) {
		missing = append(missing, "street address")
	}
	if isBlank(d.Address.City) {
		missing = append(missing, "city")
	}
	if isBlank(d.Address.PostalCode) {
		missing = append(missing, "postal code")
	}
	if isBlank(d.Address.Country) {
		missing = append(missing, "country")
	}
	return missingReason(missing)
}

// ==================== 辅助函数 ====================

func pass(*ListingDraft) string { return "" }

func chain(validators ...stepValidator) stepValidator {
	return func(d *ListingDraft) string {
		for _, v := range validators {
			if reason := v(d); reason != "" {
				return reason
			}
		}
		return ""
	}
}

func missingReason(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	return "Please fill in: " + strings.Join(missing, ", ")
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
