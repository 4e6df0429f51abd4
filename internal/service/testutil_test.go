package service

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listing_wizard_v1/internal/form"
	"listing_wizard_v1/internal/model"
)

// ==================== 测试辅助 ====================

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(&model.Listing{}, &model.ServiceSettings{}, &model.ReviewIncentiveSettings{})
	if err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func fixedUser(id string) AuthProvider {
	return AuthProviderFunc(func(ctx context.Context) (*CurrentUser, bool) {
		return &CurrentUser{ID: id}, true
	})
}

func anonymous() AuthProvider {
	return AuthProviderFunc(func(ctx context.Context) (*CurrentUser, bool) {
		return nil, false
	})
}

func fixSinkDraft() form.ListingDraft {
	d := form.NewDraft(form.ListingTypeService)
	d.Title = "Fix sink"
	d.Description = "Leaky pipe"
	d.Category = "Plumbing"
	d.Pricing.BudgetType = form.BudgetFixed
	d.Pricing.BudgetMin = "50"
	d.Location.Address = "10 Downing St"
	return d
}

func countRows(t *testing.T, db *gorm.DB, m interface{}) int64 {
	var n int64
	if err := db.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	return n
}

// ==================== Mock ====================

type mockBookingSync struct {
	syncFn func(ctx context.Context, listingID int64, userID string, d form.ListingDraft) error
	calls  int
}

func (m *mockBookingSync) Sync(ctx context.Context, listingID int64, userID string, d form.ListingDraft) error {
	m.calls++
	if m.syncFn != nil {
		return m.syncFn(ctx, listingID, userID, d)
	}
	return nil
}

type mockIncentiveSync struct {
	syncFn func(ctx context.Context, listingID int64, userID string, ri form.ReviewIncentive) error
	calls  int
}

func (m *mockIncentiveSync) Sync(ctx context.Context, listingID int64, userID string, ri form.ReviewIncentive) error {
	m.calls++
	if m.syncFn != nil {
		return m.syncFn(ctx, listingID, userID, ri)
	}
	return nil
}
