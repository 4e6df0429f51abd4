package service

import (
	"errors"
	"fmt"

	"listing_wizard_v1/internal/api/dto"
	"listing_wizard_v1/internal/form"
)

// ErrInvalidUpdate 修改请求无法应用到草稿
var ErrInvalidUpdate = errors.New("无效的修改请求")

// applyUpdate 把修改请求逐字段应用到表单，nil 字段保持不变
// 刊登类型与变体在写入前先全部校验，请求被拒绝时表单不会有任何改动；
// 变体按切换后的类型解码
func applyUpdate(store *form.Store, req *dto.UpdateWizardRequest) error {
	if req == nil {
		return nil
	}

	target := store.Draft().ListingType
	if req.ListingType != nil {
		t, ok := form.ParseListingType(*req.ListingType)
		if !ok {
			return fmt.Errorf("%w: 不支持的刊登类型 %s", ErrInvalidUpdate, *req.ListingType)
		}
		target = t
	}
	var variant form.Variant
	if len(req.Variant) > 0 {
		v, err := form.DecodeVariant(target, req.Variant)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
		}
		variant = v
	}

	// 以下写入均不会失败
	store.SetListingType(target)
	if variant != nil {
		store.SetVariant(variant)
	}

	// 基础信息
	if req.Title != nil {
		store.SetTitle(*req.Title)
	}
	if req.Description != nil {
		store.SetDescription(*req.Description)
	}
	if req.Category != nil {
		store.SetCategory(*req.Category)
	}
	if req.Tags != nil {
		store.SetTags(req.Tags)
	}
	if req.Photos != nil {
		store.SetPhotos(req.Photos)
	}
	if req.Status != nil {
		store.SetStatus(*req.Status)
	}

	// 位置
	if req.LocationAddress != nil || req.Lat != nil || req.Lng != nil {
		loc := store.Draft().Location
		if req.LocationAddress != nil {
			loc.Address = *req.LocationAddress
		}
		if req.Lat != nil {
			loc.Lat = req.Lat
		}
		if req.Lng != nil {
			loc.Lng = req.Lng
		}
		store.SetLocation(loc.Address, loc.Lat, loc.Lng)
	}
	if req.Address != nil {
		store.SetAddress(*req.Address)
	}
	if req.ShowExactAddress != nil {
		store.SetShowExactAddress(*req.ShowExactAddress)
	}
	if req.PreferredDate != nil {
		store.SetPreferredDate(*req.PreferredDate)
	}

	// 定价
	if req.BudgetType != nil {
		store.SetBudgetType(form.BudgetType(*req.BudgetType))
	}
	if req.BudgetMin != nil {
		store.SetBudgetMin(string(*req.BudgetMin))
	}
	if req.BudgetMax != nil {
		store.SetBudgetMax(string(*req.BudgetMax))
	}
	if req.Currency != nil {
		store.SetCurrency(*req.Currency)
	}
	if req.PriceList != nil {
		store.SetPriceList(req.PriceList)
	}

	// 预约
	if req.BookingEnabled != nil {
		store.SetBookingEnabled(*req.BookingEnabled)
	}
	if req.ServiceName != nil {
		store.SetServiceName(*req.ServiceName)
	}
	if req.TimeSlots != nil {
		store.SetTimeSlots(req.TimeSlots)
	}
	if req.AvailabilityPeriods != nil {
		store.SetAvailabilityPeriods(req.AvailabilityPeriods)
	}

	// 取消政策
	if req.CancellationHours != nil {
		store.SetCancellationHours(*req.CancellationHours)
	}
	if req.CancellationFeeEnabled != nil || req.CancellationFee != nil {
		policy := store.Draft().Policy
		enabled, fee := policy.FeeEnabled, policy.Fee
		if req.CancellationFeeEnabled != nil {
			enabled = *req.CancellationFeeEnabled
		}
		if req.CancellationFee != nil {
			fee = *req.CancellationFee
		}
		store.SetCancellationFee(enabled, fee)
	}
	if req.RefundPolicy != nil {
		store.SetRefundPolicy(form.RefundPolicy(*req.RefundPolicy))
	}

	if req.ReviewIncentive != nil {
		store.SetReviewIncentive(*req.ReviewIncentive)
	}
	return nil
}
