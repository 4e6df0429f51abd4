package form

import (
	"reflect"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"listing_wizard_v1/internal/model"
)

// prefixNormalizer 测试用：相对路径加上 CDN 前缀
type prefixNormalizer struct{}

func (prefixNormalizer) NormalizePhotoURL(raw string) string {
	if raw == "" || IsTransientPhoto(raw) || strings.HasPrefix(raw, "http") {
		return raw
	}
	return "https://cdn.test/" + strings.TrimPrefix(raw, "/")
}

func existingListing() *model.Listing {
	date := "2025-07-01"
	pct := 15.0
	budgetMin := 50.0
	rec := &model.Listing{
		UserID:                    "user-1",
		ListingType:               "service",
		Title:                     "Fix sink",
		Description:               "Leaky pipe",
		Category:                  "Plumbing",
		Tags:                      datatypes.JSON(`"[\"plumbing\",\"urgent\"]"`),
		Photos:                    datatypes.JSON(`["listings/a.jpg","https://cdn.test/b.jpg"]`),
		LocationAddress:           "10 Downing St",
		Status:                    "active",
		PreferredDate:             &date,
		BudgetType:                "fixed",
		BudgetMin:                 &budgetMin,
		Currency:                  "GBP",
		PriceList:                 datatypes.JSON(`[]`),
		Details:                   datatypes.JSON(`{}`),
		BookingEnabled:            true,
		ServiceName:               "Plumbing visit",
		TimeSlots:                 datatypes.JSON(`[{"day":"Mon","startTime":"09:00","endTime":"12:00"}]`),
		CancellationHours:         48,
		CancellationFeeEnabled:    true,
		CancellationFeePercentage: &pct,
		RefundPolicy:              "partial",
	}
	rec.ID = 42
	return rec
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(ListingTypeRental, nil)
	d := s.Draft()

	if d.ListingType != ListingTypeRental {
		t.Errorf("listing_type = %s", d.ListingType)
	}
	if d.Pricing.BudgetType != BudgetPerDay {
		t.Errorf("budget_type = %s, want per_day", d.Pricing.BudgetType)
	}
	if d.Pricing.Currency != "GBP" || d.Status != "active" {
		t.Errorf("currency = %s status = %s", d.Pricing.Currency, d.Status)
	}
	if _, ok := d.Variant.(RentalDetails); !ok {
		t.Errorf("variant = %T, want RentalDetails", d.Variant)
	}
	if d.Tags == nil || d.Photos == nil || d.Booking.TimeSlots == nil {
		t.Error("数组字段不应为 nil")
	}
	if s.IsEditing() || s.ListingID() != 0 {
		t.Error("新建模式不应有 ID")
	}
}

func TestNewStore_UnknownTypeFallsBackToService(t *testing.T) {
	s := NewStore(ListingType("spaceship"), nil)
	if got := s.Draft().ListingType; got != ListingTypeService {
		t.Errorf("listing_type = %s, want service", got)
	}
}

func TestStore_DraftIsCopy(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.SetTags([]string{"a"})

	d := s.Draft()
	d.Tags[0] = "mutated"
	d.Title = "mutated"

	if got := s.Draft(); got.Tags[0] != "a" || got.Title != "" {
		t.Error("修改返回的草稿不应影响 store")
	}
}

func TestStore_SetTags(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.SetTags([]string{"plumbing", " plumbing ", "", "urgent"})

	want := []string{"plumbing", "urgent"}
	if got := s.Draft().Tags; !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestStore_Photos(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.SetPhotos([]string{"file:///a.jpg", " ", "https://cdn.test/b.jpg"})
	s.AddPhoto("file:///c.jpg")
	s.RemovePhoto(10)
	s.RemovePhoto(-1)

	if got := s.Draft().Photos; len(got) != 3 {
		t.Fatalf("photos = %v", got)
	}

	s.ReplacePhoto("file:///a.jpg", "https://cdn.test/a.jpg")
	s.RemovePhoto(1)

	want := []string{"https://cdn.test/a.jpg", "file:///c.jpg"}
	if got := s.Draft().Photos; !reflect.DeepEqual(got, want) {
		t.Errorf("photos = %v, want %v", got, want)
	}
}

func TestStore_SetListingType_StashesVariant(t *testing.T) {
	s := NewStore(ListingTypeGoods, nil)
	s.SetVariant(GoodsDetails{Condition: "used", Quantity: "5"})

	s.SetListingType(ListingTypeAuction)
	if _, ok := s.Draft().Variant.(AuctionDetails); !ok {
		t.Fatalf("variant = %T, want AuctionDetails", s.Draft().Variant)
	}

	s.SetListingType(ListingTypeGoods)
	got, ok := s.Draft().Variant.(GoodsDetails)
	if !ok || got.Quantity != "5" || got.Condition != "used" {
		t.Errorf("切回 goods 应恢复之前的变体, got %#v", s.Draft().Variant)
	}
}

func TestStore_SetListingType_CoercesBudgetType(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.SetBudgetType(BudgetPriceList)

	s.SetListingType(ListingTypeGoods)
	if got := s.Draft().Pricing.BudgetType; got != BudgetFixed {
		t.Errorf("budget_type = %s, want fixed", got)
	}

	s.SetBudgetType(BudgetRange)
	s.SetListingType(ListingTypeFreelance)
	if got := s.Draft().Pricing.BudgetType; got != BudgetRange {
		t.Errorf("合法的定价方式应保留, got %s", got)
	}

	s.SetListingType(ListingType("unknown"))
	if got := s.Draft().ListingType; got != ListingTypeFreelance {
		t.Errorf("未知类型应忽略, got %s", got)
	}
}

func TestStore_SetVariant_SwitchesType(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.SetBudgetType(BudgetPriceList)
	s.SetVariant(LinkDetails{URL: "https://example.com"})

	d := s.Draft()
	if d.ListingType != ListingTypeLink {
		t.Errorf("listing_type = %s, want link", d.ListingType)
	}
	if d.Pricing.BudgetType != BudgetFree {
		t.Errorf("budget_type = %s, want free", d.Pricing.BudgetType)
	}
	if v := d.Variant.(LinkDetails); v.URL != "https://example.com" {
		t.Errorf("variant = %#v", v)
	}
}

func TestStore_CancellationFeeIsExclusive(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.SetCancellationFee(true, Amount{Kind: AmountPercentage, Value: 20})
	s.SetCancellationFee(true, Amount{Kind: AmountFixed, Value: 5})

	fee := s.Draft().Policy.Fee
	if fee.Percentage() != 0 || fee.Fixed() != 5 {
		t.Errorf("fee = %+v", fee)
	}

	s.SetCancellationHours(-3)
	if got := s.Draft().Policy.Hours; got != 0 {
		t.Errorf("hours = %d, want 0", got)
	}
}

func TestStore_SetTimeSlots(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.SetTimeSlots([]TimeSlot{{Day: "Tue", StartTime: "09:00", EndTime: "10:00"}, {ID: "keep", Day: "friday"}})

	slots := s.Draft().Booking.TimeSlots
	if slots[0].ID == "" || slots[0].Day != "tuesday" {
		t.Errorf("slot[0] = %+v", slots[0])
	}
	if slots[1].ID != "keep" {
		t.Errorf("已有 ID 不应覆盖, got %s", slots[1].ID)
	}
}

func TestStore_SetReviewIncentive_DedupesPlatforms(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	ri := DefaultReviewIncentive()
	ri.Enabled = true
	ri.Platforms = []Platform{PlatformInApp, PlatformGoogle, PlatformInApp, ""}
	s.SetReviewIncentive(ri)

	want := []Platform{PlatformInApp, PlatformGoogle}
	if got := s.Draft().Incentive.Platforms; !reflect.DeepEqual(got, want) {
		t.Errorf("platforms = %v, want %v", got, want)
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(ListingTypeGoods, nil)
	s.SetTitle("Bike")
	s.SetListingType(ListingTypeRental)

	if !s.Reset() {
		t.Fatal("新建模式应允许重置")
	}
	d := s.Draft()
	if d.Title != "" || d.ListingType != ListingTypeGoods {
		t.Errorf("重置后 title = %q type = %s", d.Title, d.ListingType)
	}
}

func TestStore_ResetIsNoopWhileEditing(t *testing.T) {
	s := NewStore(ListingTypeService, prefixNormalizer{})
	s.LoadFromExisting(existingListing())
	s.SetTitle("Edited")

	if s.Reset() {
		t.Error("编辑模式下 Reset 应返回 false")
	}
	if got := s.Draft().Title; got != "Edited" {
		t.Errorf("title = %q, 编辑模式下不应被重置", got)
	}
}

func TestStore_LoadFromExisting(t *testing.T) {
	s := NewStore(ListingTypeGoods, prefixNormalizer{})
	s.LoadFromExisting(existingListing())
	d := s.Draft()

	if !s.IsEditing() || s.ListingID() != 42 {
		t.Errorf("editing = %v id = %d", s.IsEditing(), s.ListingID())
	}
	if d.ListingType != ListingTypeService || d.UserID != "user-1" {
		t.Errorf("type = %s user = %s", d.ListingType, d.UserID)
	}
	if !reflect.DeepEqual(d.Tags, []string{"plumbing", "urgent"}) {
		t.Errorf("tags = %v", d.Tags)
	}
	wantPhotos := []string{"https://cdn.test/listings/a.jpg", "https://cdn.test/b.jpg"}
	if !reflect.DeepEqual(d.Photos, wantPhotos) {
		t.Errorf("photos = %v, want %v", d.Photos, wantPhotos)
	}
	if d.Pricing.BudgetMin != "50" || d.Pricing.BudgetMax != "" {
		t.Errorf("budget = %q..%q", d.Pricing.BudgetMin, d.Pricing.BudgetMax)
	}
	if d.PreferredDate != "2025-07-01" {
		t.Errorf("preferred_date = %q", d.PreferredDate)
	}
	if len(d.Booking.TimeSlots) != 1 || d.Booking.TimeSlots[0].Day != "monday" || d.Booking.TimeSlots[0].ID == "" {
		t.Errorf("time_slots = %+v", d.Booking.TimeSlots)
	}
	if d.Booking.AvailabilityPeriods == nil || d.Pricing.PriceList == nil {
		t.Error("缺失的数组列应解析为空切片")
	}
	if d.Policy.Hours != 48 || d.Policy.Fee.Percentage() != 15 || d.Policy.RefundPolicy != RefundPartial {
		t.Errorf("policy = %+v", d.Policy)
	}
	if _, ok := d.Variant.(ServiceDetails); !ok {
		t.Errorf("variant = %T", d.Variant)
	}
}

func TestStore_LoadFromExisting_Idempotent(t *testing.T) {
	rec := existingListing()
	s := NewStore(ListingTypeService, prefixNormalizer{})

	s.LoadFromExisting(rec)
	first := s.Draft()
	s.LoadFromExisting(rec)
	second := s.Draft()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("两次加载结果不同:\n%+v\n%+v", first, second)
	}
}

func TestStore_LoadFromExisting_MalformedColumns(t *testing.T) {
	rec := existingListing()
	rec.Tags = datatypes.JSON(`plumbing`)
	rec.Photos = nil
	rec.PriceList = datatypes.JSON(`{oops`)
	rec.ListingType = "goods"
	rec.Details = datatypes.JSON(`"{\"condition\":\"used\",\"quantity\":\"3\"}"`)

	s := NewStore(ListingTypeService, prefixNormalizer{})
	s.LoadFromExisting(rec)
	d := s.Draft()

	if !reflect.DeepEqual(d.Tags, []string{"plumbing"}) {
		t.Errorf("tags = %v, 应包装原始文本", d.Tags)
	}
	if d.Photos == nil || len(d.Photos) != 0 {
		t.Errorf("photos = %v", d.Photos)
	}
	if d.Pricing.PriceList == nil || len(d.Pricing.PriceList) != 0 {
		t.Errorf("price_list = %v", d.Pricing.PriceList)
	}
	goods, ok := d.Variant.(GoodsDetails)
	if !ok || goods.Condition != "used" || goods.Quantity != "3" {
		t.Errorf("variant = %#v", d.Variant)
	}
}

func TestStore_LoadFromExisting_FeeAmountFallback(t *testing.T) {
	rec := existingListing()
	zero, amount := 0.0, 7.5
	rec.CancellationFeePercentage = &zero
	rec.CancellationFeeAmount = &amount

	s := NewStore(ListingTypeService, nil)
	s.LoadFromExisting(rec)

	if fee := s.Draft().Policy.Fee; fee.Kind != AmountFixed || fee.Value != 7.5 {
		t.Errorf("fee = %+v", fee)
	}
}

func TestStore_LoadReviewIncentive(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.LoadReviewIncentive(nil)
	if got := s.Draft().Incentive; got.Enabled || got.CouponValidDays != 30 {
		t.Errorf("nil 应恢复默认配置, got %+v", got)
	}

	pct := 12.0
	s.LoadReviewIncentive(&model.ReviewIncentiveSettings{
		Enabled:            true,
		IncentiveType:      "credit",
		DiscountPercentage: &pct,
		MinRating:          4.5,
		MaxUsesPerCustomer: 2,
		CouponPrefix:       "THANKS",
		CouponValidDays:    60,
		Platforms:          datatypes.JSONSlice[string]{"in_app", "google"},
		GoogleURL:          "https://g.page/x",
	})

	got := s.Draft().Incentive
	if !got.Enabled || got.Type != IncentiveCredit || got.Discount.Percentage() != 12 {
		t.Errorf("incentive = %+v", got)
	}
	if !got.HasPlatform(PlatformGoogle) || got.GoogleURL != "https://g.page/x" {
		t.Errorf("platforms = %v url = %s", got.Platforms, got.GoogleURL)
	}
}

func TestStore_MarkSaved(t *testing.T) {
	s := NewStore(ListingTypeService, nil)
	s.MarkSaved(7, "user-1")

	if s.ListingID() != 7 || s.Draft().UserID != "user-1" {
		t.Errorf("id = %d user = %s", s.ListingID(), s.Draft().UserID)
	}
}
