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

const (
	minIncentiveRating     = 1.0
	maxIncentiveRating     = 5.0
	defaultCouponValidDays = 30
	defaultCouponPrefix    = "REVIEW"
)

// IncentiveSynchronizer 评价激励同步接口
type IncentiveSynchronizer interface {
	Sync(ctx context.Context, listingID int64, userID string, ri form.ReviewIncentive) error
}

// ReviewIncentiveSynchronizer 按 (刊登, 提供者) 同步评价激励
// 关闭激励时删除已有记录，而不是写入一条 enabled=false 的记录
type ReviewIncentiveSynchronizer struct {
	repo   repository.ReviewIncentiveRepository
	logger *zap.Logger
}

func NewReviewIncentiveSynchronizer(repo repository.ReviewIncentiveRepository, logger *zap.Logger) *ReviewIncentiveSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewIncentiveSynchronizer{repo: repo, logger: logger}
}

func (s *ReviewIncentiveSynchronizer) Sync(ctx context.Context, listingID int64, userID string, ri form.ReviewIncentive) error {
	existing, err := s.repo.FindByListingAndProvider(ctx, listingID, userID)
	if err != nil {
		return fmt.Errorf("查询评价激励失败: %w", err)
	}

	if !ri.Enabled {
		if existing == nil {
			return nil
		}
		if err := s.repo.Delete(ctx, existing.ID); err != nil {
			return fmt.Errorf("删除评价激励失败: %w", err)
		}
		s.logger.Debug("评价激励已删除", zap.Int64("listing_id", listingID))
		return nil
	}

	rec := s.buildRecord(ctx, listingID, userID, ri)
	if existing == nil {
		if err := s.repo.Create(ctx, rec); err != nil {
			return fmt.Errorf("创建评价激励失败: %w", err)
		}
		return nil
	}

	rec.ID = existing.ID
	rec.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("更新评价激励失败: %w", err)
	}
	return nil
}

// buildRecord 缺少链接的外部平台不落库，并提示用户补填
func (s *ReviewIncentiveSynchronizer) buildRecord(ctx context.Context, listingID int64, userID string, ri form.ReviewIncentive) *model.ReviewIncentiveSettings {
	minRating := ri.MinRating
	if minRating < minIncentiveRating {
		minRating = minIncentiveRating
	}
	if minRating > maxIncentiveRating {
		minRating = maxIncentiveRating
	}

	maxUses := ri.MaxUsesPerCustomer
	if maxUses < 1 {
		maxUses = 1
	}

	validDays := ri.CouponValidDays
	if validDays <= 0 {
		validDays = defaultCouponValidDays
	}

	prefix := strings.TrimSpace(ri.CouponPrefix)
	if prefix == "" {
		prefix = defaultCouponPrefix
	}

	incentiveType := ri.Type
	if incentiveType == "" {
		incentiveType = form.IncentiveDiscount
	}

	facebookURL := strings.TrimSpace(ri.FacebookURL)
	googleURL := strings.TrimSpace(ri.GoogleURL)

	platforms := make(datatypes.JSONSlice[string], 0, len(ri.Platforms))
	var skipped []string
	for _, p := range ri.Platforms {
		switch {
		case p == form.PlatformInApp:
		case p == form.PlatformFacebook && facebookURL != "":
		case p == form.PlatformGoogle && googleURL != "":
		default:
			s.logger.Warn("评价平台缺少链接，已忽略",
				zap.Int64("listing_id", listingID),
				zap.String("platform", string(p)),
			)
			skipped = append(skipped, string(p))
			continue
		}
		platforms = append(platforms, string(p))
	}
	if len(skipped) > 0 {
		notify(ctx, nil, Alert{
			Level:   AlertWarning,
			Title:   "Review platforms skipped",
			Message: "Add a review link for: " + strings.Join(skipped, ", "),
		})
	}

	discountPct, discountAmount := amountColumns(ri.Discount)

	return &model.ReviewIncentiveSettings{
		ListingID:          listingID,
		ProviderID:         userID,
		Enabled:            true,
		IncentiveType:      string(incentiveType),
		DiscountPercentage: discountPct,
		DiscountAmount:     discountAmount,
		MinRating:          minRating,
		RequireTextReview:  ri.RequireTextReview,
		MaxUsesPerCustomer: maxUses,
		AutoGenerateCoupon: ri.AutoGenerateCoupon,
		CouponPrefix:       prefix,
		CouponValidDays:    validDays,
		Message:            strings.TrimSpace(ri.Message),
		Platforms:          platforms,
		FacebookURL:        facebookURL,
		GoogleURL:          googleURL,
	}
}
