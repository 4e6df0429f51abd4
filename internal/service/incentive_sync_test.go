package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"listing_wizard_v1/internal/form"
	"listing_wizard_v1/internal/repository"
)

func TestReviewIncentiveSync_Normalizes(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewReviewIncentiveRepository(db)
	core, logs := observer.New(zap.WarnLevel)
	sync := NewReviewIncentiveSynchronizer(repo, zap.New(core))
	recorder := NewAlertRecorder()
	ctx := WithAlertRecorder(context.Background(), recorder)

	ri := form.ReviewIncentive{
		Enabled:            true,
		MinRating:          9,
		MaxUsesPerCustomer: 0,
		CouponPrefix:       "  ",
		Discount:           form.Amount{Kind: form.AmountFixed, Value: 3},
		Platforms:          []form.Platform{form.PlatformInApp, form.PlatformFacebook, form.PlatformGoogle},
		GoogleURL:          "https://g.page/r/abc",
	}
	if err := sync.Sync(ctx, 3, "user-1", ri); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	rec, err := repo.FindByListingAndProvider(ctx, 3, "user-1")
	if err != nil || rec == nil {
		t.Fatalf("FindByListingAndProvider() = %v, %v", rec, err)
	}
	if rec.MinRating != 5 || rec.MaxUsesPerCustomer != 1 || rec.CouponValidDays != 30 {
		t.Errorf("min_rating = %v max_uses = %d valid_days = %d", rec.MinRating, rec.MaxUsesPerCustomer, rec.CouponValidDays)
	}
	if rec.CouponPrefix != "REVIEW" || rec.IncentiveType != "discount" {
		t.Errorf("prefix = %s type = %s", rec.CouponPrefix, rec.IncentiveType)
	}
	if rec.DiscountPercentage != nil || rec.DiscountAmount == nil || *rec.DiscountAmount != 3 {
		t.Errorf("discount pct = %v amount = %v", rec.DiscountPercentage, rec.DiscountAmount)
	}
	if len(rec.Platforms) != 2 || rec.Platforms[0] != "in_app" || rec.Platforms[1] != "google" {
		t.Errorf("platforms = %v", rec.Platforms)
	}
	if logs.FilterMessage("评价平台缺少链接，已忽略").Len() != 1 {
		t.Errorf("缺少链接的平台应记录一次警告, got %d", logs.Len())
	}

	alerts := recorder.Alerts()
	if len(alerts) != 1 || alerts[0].Level != AlertWarning || alerts[0].Message != "Add a review link for: facebook" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestReviewIncentiveSync_UpdateKeepsID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewReviewIncentiveRepository(db)
	sync := NewReviewIncentiveSynchronizer(repo, nil)
	ctx := context.Background()

	ri := form.DefaultReviewIncentive()
	ri.Enabled = true
	if err := sync.Sync(ctx, 3, "user-1", ri); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	first, _ := repo.FindByListingAndProvider(ctx, 3, "user-1")

	ri.Message = "Thanks!"
	if err := sync.Sync(ctx, 3, "user-1", ri); err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	second, _ := repo.FindByListingAndProvider(ctx, 3, "user-1")
	if second.ID != first.ID || second.Message != "Thanks!" {
		t.Errorf("second = %+v", second)
	}
}

func TestReviewIncentiveSync_DisabledWithoutRecord(t *testing.T) {
	db := setupTestDB(t)
	sync := NewReviewIncentiveSynchronizer(repository.NewReviewIncentiveRepository(db), nil)

	// 从未开启过，关闭时无需任何写入
	if err := sync.Sync(context.Background(), 3, "user-1", form.DefaultReviewIncentive()); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
}
