package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"listing_wizard_v1/internal/model"
)

// ServiceSettingsRepository 预约配置仓储接口
type ServiceSettingsRepository interface {
	// FindByListing 不存在时返回 nil, nil
	FindByListing(ctx context.Context, listingID int64) (*model.ServiceSettings, error)
	Create(ctx context.Context, settings *model.ServiceSettings) error
	Update(ctx context.Context, settings *model.ServiceSettings) error
}

type serviceSettingsRepo struct {
	db *gorm.DB
}

// NewServiceSettingsRepository 创建预约配置仓储
func NewServiceSettingsRepository(db *gorm.DB) ServiceSettingsRepository {
	return &serviceSettingsRepo{db: db}
}

func (r *serviceSettingsRepo) FindByListing(ctx context.Context, listingID int64) (*model.ServiceSettings, error) {
	var settings model.ServiceSettings
	err := r.db.WithContext(ctx).Where("listing_id = ?", listingID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreError("查询预约配置", err)
	}
	return &settings, nil
}

func (r *serviceSettingsRepo) Create(ctx context.Context, settings *model.ServiceSettings) error {
	return wrapStoreError("创建预约配置", r.db.WithContext(ctx).Create(settings).Error)
}

func (r *serviceSettingsRepo) Update(ctx context.Context, settings *model.ServiceSettings) error {
	return wrapStoreError("更新预约配置", r.db.WithContext(ctx).Save(settings).Error)
}
