package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"listing_wizard_v1/internal/model"
)

// ReviewIncentiveRepository 评价激励仓储接口
type ReviewIncentiveRepository interface {
	// FindByListingAndProvider 不存在时返回 nil, nil
	FindByListingAndProvider(ctx context.Context, listingID int64, providerID string) (*model.ReviewIncentiveSettings, error)
	Create(ctx context.Context, settings *model.ReviewIncentiveSettings) error
	Update(ctx context.Context, settings *model.ReviewIncentiveSettings) error
	Delete(ctx context.Context, id int64) error
}

type reviewIncentiveRepo struct {
	db *gorm.DB
}

// NewReviewIncentiveRepository 创建评价激励仓储
func NewReviewIncentiveRepository(db *gorm.DB) ReviewIncentiveRepository {
	return &reviewIncentiveRepo{db: db}
}

func (r *reviewIncentiveRepo) FindByListingAndProvider(ctx context.Context, listingID int64, providerID string) (*model.ReviewIncentiveSettings, error) {
	var settings model.ReviewIncentiveSettings
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND provider_id = ?", listingID, providerID).
		First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreError("查询评价激励", err)
	}
	return &settings, nil
}

func (r *reviewIncentiveRepo) Create(ctx context.Context, settings *model.ReviewIncentiveSettings) error {
	return wrapStoreError("创建评价激励", r.db.WithContext(ctx).Create(settings).Error)
}

func (r *reviewIncentiveRepo) Update(ctx context.Context, settings *model.ReviewIncentiveSettings) error {
	return wrapStoreError("更新评价激励", r.db.WithContext(ctx).Save(settings).Error)
}

func (r *reviewIncentiveRepo) Delete(ctx context.Context, id int64) error {
	return wrapStoreError("删除评价激励", r.db.WithContext(ctx).Delete(&model.ReviewIncentiveSettings{}, id).Error)
}
