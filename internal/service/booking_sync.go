package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"listing_wizard_v1/internal/form"
	"listing_wizard_v1/internal/model"
	"listing_wizard_v1/internal/repository"
)

// BookingSynchronizer 预约配置同步接口
type BookingSynchronizer interface {
	Sync(ctx context.Context, listingID int64, userID string, d form.ListingDraft) error
}

// ServiceSettingsSynchronizer 把草稿中的预约与取消政策同步到 service_settings
// 先按刊登 ID 查询，存在则更新，否则插入；同一草稿重复提交结果不变
type ServiceSettingsSynchronizer struct {
	repo   repository.ServiceSettingsRepository
	logger *zap.Logger
}

func NewServiceSettingsSynchronizer(repo repository.ServiceSettingsRepository, logger *zap.Logger) *ServiceSettingsSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceSettingsSynchronizer{repo: repo, logger: logger}
}

func (s *ServiceSettingsSynchronizer) Sync(ctx context.Context, listingID int64, userID string, d form.ListingDraft) error {
	existing, err := s.repo.FindByListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("查询预约配置失败: %w", err)
	}

	feePct, feeAmount := amountColumns(d.Policy.Fee)
	slots, periods := activeSchedule(d)

	rec := &model.ServiceSettings{
		ListingID:                 listingID,
		ProviderID:                userID,
		ServiceName:               strings.TrimSpace(d.Booking.ServiceName),
		BookingEnabled:            d.Booking.Enabled,
		WorkingHours:              datatypes.NewJSONType(BuildWorkingHours(slots)),
		TimeSlots:                 encodeJSONArray(slots),
		AvailabilityPeriods:       encodeJSONArray(periods),
		CancellationHours:         d.Policy.Hours,
		CancellationFeeEnabled:    d.Policy.FeeEnabled,
		CancellationFeePercentage: feePct,
		CancellationFeeAmount:     feeAmount,
		RefundPolicy:              refundPolicyOrDefault(d.Policy.RefundPolicy),
	}
	if rec.ServiceName == "" {
		rec.ServiceName = strings.TrimSpace(d.Title)
	}

	if existing == nil {
		if err := s.repo.Create(ctx, rec); err != nil {
			return fmt.Errorf("创建预约配置失败: %w", err)
		}
		s.logger.Debug("预约配置已创建", zap.Int64("listing_id", listingID))
		return nil
	}

	rec.ID = existing.ID
	rec.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("更新预约配置失败: %w", err)
	}
	s.logger.Debug("预约配置已更新", zap.Int64("listing_id", listingID))
	return nil
}

// BuildWorkingHours 由时段列表推导每日营业时间
// 有损投影：同一天的多个时段合并为 [最早开始, 最晚结束]，中间的空档不保留。
// 时段明细以 time_slots 列为准
func BuildWorkingHours(slots []form.TimeSlot) model.WorkingHours {
	hours := make(model.WorkingHours, len(form.Weekdays))
	for _, day := range form.Weekdays {
		hours[day] = model.DayHours{}
	}

	for _, slot := range slots {
		day, ok := form.NormalizeWeekday(slot.Day)
		if !ok || !validClock(slot.StartTime) || !validClock(slot.EndTime) {
			continue
		}

		h := hours[day]
		if !h.Enabled {
			h = model.DayHours{Enabled: true, Start: slot.StartTime, End: slot.EndTime}
		} else {
			// HH:MM 定长，可直接按字符串比较
			if slot.StartTime < h.Start {
				h.Start = slot.StartTime
			}
			if slot.EndTime > h.End {
				h.End = slot.EndTime
			}
		}
		hours[day] = h
	}
	return hours
}

func validClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hh, mm := s[:2], s[3:]
	return isDigits(hh) && isDigits(mm) && hh <= "23" && mm <= "59"
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
