package service

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"listing_wizard_v1/internal/form"
	"listing_wizard_v1/internal/model"
)

// storedPriceItem 价目表落库格式，价格转为数字，非法值为 null
type storedPriceItem struct {
	ServiceName string   `json:"serviceName"`
	Price       *float64 `json:"price"`
}

// BuildListingRecord 由草稿构造刊登主记录
// 字符串去空白；价格类文本转数字，非法或为空时写 null；数组列永远是 JSON 数组；
// 本地预览图不会写入；偏好日期经日历校验，非法时写 null
func BuildListingRecord(d form.ListingDraft, userID string, now time.Time) *model.Listing {
	expiresAt := now.Add(model.ListingTTL)

	status := strings.TrimSpace(d.Status)
	if status == "" {
		status = model.ListingStatusActive
	}

	currency := strings.ToUpper(strings.TrimSpace(d.Pricing.Currency))
	if currency == "" {
		currency = form.DefaultCurrency
	}

	feePct, feeAmount := amountColumns(d.Policy.Fee)
	slots, periods := activeSchedule(d)

	rec := &model.Listing{
		UserID:      userID,
		ListingType: string(d.ListingType),
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Category:    strings.TrimSpace(d.Category),
		Tags:        encodeJSONArray(trimmedUnique(d.Tags)),
		Photos:      encodeJSONArray(persistablePhotos(d.Photos)),

		LocationAddress:  strings.TrimSpace(d.Location.Address),
		LocationLat:      d.Location.Lat,
		LocationLng:      d.Location.Lng,
		StreetAddress:    strings.TrimSpace(d.Address.StreetAddress),
		City:             strings.TrimSpace(d.Address.City),
		State:            strings.TrimSpace(d.Address.State),
		PostalCode:       strings.TrimSpace(d.Address.PostalCode),
		Country:          strings.TrimSpace(d.Address.Country),
		ShowExactAddress: d.ShowExactAddress,

		Status:        status,
		ExpiresAt:     &expiresAt,
		PreferredDate: form.NormalizeCalendarDate(d.PreferredDate),

		BudgetType: string(d.Pricing.BudgetType),
		BudgetMin:  form.ParseDecimal(d.Pricing.BudgetMin),
		BudgetMax:  form.ParseDecimal(d.Pricing.BudgetMax),
		Currency:   currency,
		PriceList:  encodeJSONArray(storedPriceList(d.Pricing.PriceList)),
		Details:    encodeVariant(d.ActiveVariant()),

		BookingEnabled:      d.Booking.Enabled,
		ServiceName:         strings.TrimSpace(d.Booking.ServiceName),
		TimeSlots:           encodeJSONArray(slots),
		AvailabilityPeriods: encodeJSONArray(periods),

		CancellationHours:         d.Policy.Hours,
		CancellationFeeEnabled:    d.Policy.FeeEnabled,
		CancellationFeePercentage: feePct,
		CancellationFeeAmount:     feeAmount,
		RefundPolicy:              refundPolicyOrDefault(d.Policy.RefundPolicy),
	}
	return rec
}

// ==================== 辅助函数 ====================

// activeSchedule 按刊登类型取唯一生效的排期，另一种一律写空数组
// 切换类型前录入的排期仍留在草稿里，但不会落库
func activeSchedule(d form.ListingDraft) ([]form.TimeSlot, []form.AvailabilityPeriod) {
	if d.UsesAvailabilityPeriods() {
		return []form.TimeSlot{}, trimmedPeriods(d.Booking.AvailabilityPeriods)
	}
	return trimmedSlots(d.Booking.TimeSlots), []form.AvailabilityPeriod{}
}

// amountColumns 二选一金额拆成两列，未选中的一列为 null
func amountColumns(a form.Amount) (percentage, fixed *float64) {
	v := a.Value
	if a.Kind == form.AmountFixed {
		return nil, &v
	}
	return &v, nil
}

func refundPolicyOrDefault(p form.RefundPolicy) string {
	if p == "" {
		return string(form.RefundFull)
	}
	return string(p)
}

func persistablePhotos(photos []string) []string {
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		p = strings.TrimSpace(p)
		if p == "" || form.IsTransientPhoto(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func trimmedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func storedPriceList(items []form.PriceItem) []storedPriceItem {
	out := make([]storedPriceItem, 0, len(items))
	for _, item := range items {
		out = append(out, storedPriceItem{
			ServiceName: strings.TrimSpace(item.ServiceName),
			Price:       form.ParseDecimal(item.Price),
		})
	}
	return out
}

func trimmedSlots(slots []form.TimeSlot) []form.TimeSlot {
	out := make([]form.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		slot.Day = strings.TrimSpace(slot.Day)
		if day, ok := form.NormalizeWeekday(slot.Day); ok {
			slot.Day = day
		}
		slot.StartTime = strings.TrimSpace(slot.StartTime)
		slot.EndTime = strings.TrimSpace(slot.EndTime)
		slot.BlockingService = strings.TrimSpace(slot.BlockingService)
		slot.Notes = strings.TrimSpace(slot.Notes)
		out = append(out, slot)
	}
	return out
}

func trimmedPeriods(periods []form.AvailabilityPeriod) []form.AvailabilityPeriod {
	out := make([]form.AvailabilityPeriod, 0, len(periods))
	for _, p := range periods {
		p.StartDate = normalizedDateOrEmpty(p.StartDate)
		p.EndDate = normalizedDateOrEmpty(p.EndDate)
		p.Notes = strings.TrimSpace(p.Notes)
		out = append(out, p)
	}
	return out
}

func normalizedDateOrEmpty(s string) string {
	if d := form.NormalizeCalendarDate(s); d != nil {
		return *d
	}
	return ""
}

func encodeJSONArray[T any](items []T) datatypes.JSON {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

func encodeVariant(v form.Variant) datatypes.JSON {
	b, err := json.Marshal(form.NormalizeVariant(v))
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
