package form

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"listing_wizard_v1/internal/model"
)

// PhotoNormalizer 把存储相对路径改写为绝对 URL，本地预览图原样返回
type PhotoNormalizer interface {
	NormalizePhotoURL(raw string) string
}

// Store 表单状态
// 所有 setter 都是同步、不会失败的整体替换；非并发安全，由调用方串行访问
type Store struct {
	draft       ListingDraft
	initialType ListingType
	editing     bool
	stash       map[ListingType]Variant
	photos      PhotoNormalizer
}

// NewStore 创建新建模式的表单
func NewStore(t ListingType, photos PhotoNormalizer) *Store {
	d := NewDraft(t)
	return &Store{
		draft:       d,
		initialType: d.ListingType,
		stash:       make(map[ListingType]Variant),
		photos:      photos,
	}
}

// Draft 返回草稿副本
func (s *Store) Draft() ListingDraft {
	return s.draft.Clone()
}

// IsEditing 是否为编辑已有刊登
func (s *Store) IsEditing() bool {
	return s.editing
}

// ListingID 已持久化的刊登 ID，未提交过时为 0
func (s *Store) ListingID() int64 {
	return s.draft.ID
}

// MarkSaved 提交成功后记录刊登 ID 与所属用户
func (s *Store) MarkSaved(id int64, userID string) {
	s.draft.ID = id
	s.draft.UserID = userID
}

// ==================== 基础信息 ====================

func (s *Store) SetTitle(v string)       { s.draft.Title = v }
func (s *Store) SetDescription(v string) { s.draft.Description = v }
func (s *Store) SetCategory(v string)    { s.draft.Category = v }
func (s *Store) SetStatus(v string)      { s.draft.Status = v }
func (s *Store) SetPreferredDate(v string) {
	s.draft.PreferredDate = v
}

// SetTags 标签按集合处理：去空白、去重，保留首次出现的顺序
func (s *Store) SetTags(tags []string) {
	s.draft.Tags = uniqueStrings(tags)
}

func (s *Store) SetPhotos(photos []string) {
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	s.draft.Photos = out
}

func (s *Store) AddPhoto(ref string) {
	if ref = strings.TrimSpace(ref); ref != "" {
		s.draft.Photos = append(s.draft.Photos, ref)
	}
}

// RemovePhoto 越界索引忽略
func (s *Store) RemovePhoto(index int) {
	if index < 0 || index >= len(s.draft.Photos) {
		return
	}
	photos := s.draft.Photos
	s.draft.Photos = append(append([]string{}, photos[:index]...), photos[index+1:]...)
}

// ReplacePhoto 用上传后的 URL 替换本地预览图
func (s *Store) ReplacePhoto(old, replacement string) {
	for i, p := range s.draft.Photos {
		if p == old {
			s.draft.Photos[i] = replacement
			return
		}
	}
}

// ==================== 位置 ====================

func (s *Store) SetLocation(address string, lat, lng *float64) {
	s.draft.Location = Location{Address: address, Lat: copyFloat(lat), Lng: copyFloat(lng)}
}

func (s *Store) SetAddress(a Address) {
	s.draft.Address = a
}

func (s *Store) SetShowExactAddress(v bool) {
	s.draft.ShowExactAddress = v
}

// ==================== 刊登类型与变体 ====================

// SetListingType 切换刊登类型
// 旧变体暂存，切回时恢复；当前定价方式不合法时改为新类型的默认值
func (s *Store) SetListingType(t ListingType) {
	if _, ok := legalBudgetTypes[t]; !ok || t == s.draft.ListingType {
		return
	}

	if s.draft.Variant != nil {
		s.stash[s.draft.Variant.Kind()] = s.draft.Variant
	}

	s.draft.ListingType = t
	if stashed, ok := s.stash[t]; ok {
		s.draft.Variant = stashed
		delete(s.stash, t)
	} else {
		s.draft.Variant = NewVariant(t)
	}

	if !IsLegalBudgetType(t, s.draft.Pricing.BudgetType) {
		s.draft.Pricing.BudgetType = DefaultBudgetType(t)
	}
}

// SetVariant 设置变体；变体类型与当前刊登类型不同时先切换类型
func (s *Store) SetVariant(v Variant) {
	if v == nil {
		return
	}
	if v.Kind() != s.draft.ListingType {
		s.SetListingType(v.Kind())
	}
	s.draft.Variant = v.clone()
}

// ==================== 定价 ====================

// SetBudgetType 原样保存，合法性由定价步骤校验
func (s *Store) SetBudgetType(b BudgetType) { s.draft.Pricing.BudgetType = b }
func (s *Store) SetBudgetMin(v string)      { s.draft.Pricing.BudgetMin = v }
func (s *Store) SetBudgetMax(v string)      { s.draft.Pricing.BudgetMax = v }

func (s *Store) SetCurrency(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	s.draft.Pricing.Currency = code
}

func (s *Store) SetPriceList(items []PriceItem) {
	s.draft.Pricing.PriceList = append([]PriceItem{}, items...)
}

// ==================== 预约 ====================

func (s *Store) SetBookingEnabled(v bool) { s.draft.Booking.Enabled = v }
func (s *Store) SetServiceName(v string)  { s.draft.Booking.ServiceName = v }

// SetTimeSlots 缺少 ID 的时段自动分配
func (s *Store) SetTimeSlots(slots []TimeSlot) {
	out := make([]TimeSlot, len(slots))
	for i, slot := range slots {
		if strings.TrimSpace(slot.ID) == "" {
			slot.ID = uuid.NewString()
		}
		if day, ok := NormalizeWeekday(slot.Day); ok {
			slot.Day = day
		}
		out[i] = slot
	}
	s.draft.Booking.TimeSlots = out
}

func (s *Store) SetAvailabilityPeriods(periods []AvailabilityPeriod) {
	out := make([]AvailabilityPeriod, len(periods))
	for i, p := range periods {
		if strings.TrimSpace(p.ID) == "" {
			p.ID = uuid.NewString()
		}
		out[i] = p
	}
	s.draft.Booking.AvailabilityPeriods = out
}

// ==================== 取消政策 ====================

func (s *Store) SetCancellationHours(hours int) {
	if hours < 0 {
		hours = 0
	}
	s.draft.Policy.Hours = hours
}

// SetCancellationFee 百分比与固定金额互斥，设置一种即清除另一种
func (s *Store) SetCancellationFee(enabled bool, fee Amount) {
	s.draft.Policy.FeeEnabled = enabled
	s.draft.Policy.Fee = normalizeAmount(fee)
}

func (s *Store) SetRefundPolicy(p RefundPolicy) {
	s.draft.Policy.RefundPolicy = p
}

// ==================== 评价激励 ====================

func (s *Store) SetReviewIncentive(ri ReviewIncentive) {
	ri.Discount = normalizeAmount(ri.Discount)
	seen := make(map[Platform]bool, len(ri.Platforms))
	platforms := make([]Platform, 0, len(ri.Platforms))
	for _, p := range ri.Platforms {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		platforms = append(platforms, p)
	}
	ri.Platforms = platforms
	s.draft.Incentive = ri
}

// ==================== 批量操作 ====================

// Reset 恢复默认值；编辑模式下不做任何事，返回 false
func (s *Store) Reset() bool {
	if s.editing {
		return false
	}
	s.draft = NewDraft(s.initialType)
	s.stash = make(map[ListingType]Variant)
	return true
}

// LoadFromExisting 用已持久化的刊登覆盖整个草稿并进入编辑模式
// 数组列既可能是原生数组也可能是 JSON 文本，解析失败时降级而不是报错
func (s *Store) LoadFromExisting(rec *model.Listing) {
	if rec == nil {
		return
	}

	t, ok := ParseListingType(rec.ListingType)
	if !ok {
		t = ListingTypeService
	}

	d := NewDraft(t)
	d.ID = rec.ID
	d.UserID = rec.UserID
	d.Title = rec.Title
	d.Description = rec.Description
	d.Category = rec.Category
	d.Tags = uniqueStrings(ParseArrayField[string]([]byte(rec.Tags), WrapRawString))
	d.Photos = s.normalizePhotos(ParseArrayField[string]([]byte(rec.Photos), WrapRawString))

	d.Location = Location{Address: rec.LocationAddress, Lat: copyFloat(rec.LocationLat), Lng: copyFloat(rec.LocationLng)}
	d.Address = Address{
		StreetAddress: rec.StreetAddress,
		City:          rec.City,
		State:         rec.State,
		PostalCode:    rec.PostalCode,
		Country:       rec.Country,
	}
	d.ShowExactAddress = rec.ShowExactAddress
	if rec.Status != "" {
		d.Status = rec.Status
	}
	if rec.PreferredDate != nil {
		d.PreferredDate = *rec.PreferredDate
	}

	if rec.BudgetType != "" {
		d.Pricing.BudgetType = BudgetType(rec.BudgetType)
	}
	d.Pricing.BudgetMin = FormatDecimal(rec.BudgetMin)
	d.Pricing.BudgetMax = FormatDecimal(rec.BudgetMax)
	if rec.Currency != "" {
		d.Pricing.Currency = rec.Currency
	}
	d.Pricing.PriceList = ParseArrayField[PriceItem]([]byte(rec.PriceList), nil)

	if v, err := DecodeVariant(t, ParseObjectField([]byte(rec.Details))); err == nil {
		d.Variant = v
	}

	d.Booking.Enabled = rec.BookingEnabled
	d.Booking.ServiceName = rec.ServiceName
	d.Booking.TimeSlots = normalizeLoadedSlots(ParseArrayField[TimeSlot]([]byte(rec.TimeSlots), nil))
	d.Booking.AvailabilityPeriods = normalizeLoadedPeriods(ParseArrayField[AvailabilityPeriod]([]byte(rec.AvailabilityPeriods), nil))

	d.Policy.Hours = rec.CancellationHours
	d.Policy.FeeEnabled = rec.CancellationFeeEnabled
	d.Policy.Fee = AmountFromPair(rec.CancellationFeePercentage, rec.CancellationFeeAmount)
	if rec.RefundPolicy != "" {
		d.Policy.RefundPolicy = RefundPolicy(rec.RefundPolicy)
	}

	s.draft = d
	s.initialType = t
	s.editing = true
	s.stash = make(map[ListingType]Variant)
}

// LoadReviewIncentive 编辑模式下回填评价激励，nil 表示从未配置
func (s *Store) LoadReviewIncentive(rec *model.ReviewIncentiveSettings) {
	ri := DefaultReviewIncentive()
	if rec != nil {
		ri.Enabled = rec.Enabled
		if rec.IncentiveType != "" {
			ri.Type = IncentiveType(rec.IncentiveType)
		}
		ri.Discount = AmountFromPair(rec.DiscountPercentage, rec.DiscountAmount)
		ri.MinRating = rec.MinRating
		ri.RequireTextReview = rec.RequireTextReview
		ri.MaxUsesPerCustomer = rec.MaxUsesPerCustomer
		ri.AutoGenerateCoupon = rec.AutoGenerateCoupon
		ri.CouponPrefix = rec.CouponPrefix
		ri.CouponValidDays = rec.CouponValidDays
		ri.Message = rec.Message
		ri.Platforms = make([]Platform, 0, len(rec.Platforms))
		for _, p := range rec.Platforms {
			ri.Platforms = append(ri.Platforms, Platform(p))
		}
		ri.FacebookURL = rec.FacebookURL
		ri.GoogleURL = rec.GoogleURL
	}
	s.draft.Incentive = ri
}

// ==================== 辅助函数 ====================

func (s *Store) normalizePhotos(photos []string) []string {
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		if s.photos != nil {
			p = s.photos.NormalizePhotoURL(p)
		}
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeLoadedSlots 加载时不生成随机 ID，保证重复加载得到相同结果
func normalizeLoadedSlots(slots []TimeSlot) []TimeSlot {
	for i := range slots {
		if strings.TrimSpace(slots[i].ID) == "" {
			slots[i].ID = fmt.Sprintf("slot-%d", i+1)
		}
		if day, ok := NormalizeWeekday(slots[i].Day); ok {
			slots[i].Day = day
		}
	}
	return slots
}

func normalizeLoadedPeriods(periods []AvailabilityPeriod) []AvailabilityPeriod {
	for i := range periods {
		if strings.TrimSpace(periods[i].ID) == "" {
			periods[i].ID = fmt.Sprintf("period-%d", i+1)
		}
	}
	return periods
}

func normalizeAmount(a Amount) Amount {
	if a.Kind != AmountFixed {
		a.Kind = AmountPercentage
	}
	if a.Value < 0 {
		a.Value = 0
	}
	return a
}

func uniqueStrings(in []string) []string {
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

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
