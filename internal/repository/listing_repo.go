package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"listing_wizard_v1/internal/model"
)

// ==================== 仓储接口 ====================

// ListingRepository 刊登主记录仓储接口
type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	GetByID(ctx context.Context, id int64) (*model.Listing, error)
	GetOwned(ctx context.Context, id int64, userID string) (*model.Listing, error)
	// UpdateOwned 按 (id, user_id) 整行更新，不属于该用户时返回 ErrListingNotFound
	UpdateOwned(ctx context.Context, listing *model.Listing) error
	ListByUser(ctx context.Context, userID string, page, pageSize int) ([]model.Listing, int64, error)

	// 过期清理相关
	MarkExpired(ctx context.Context, before time.Time) (int64, error)
}

// ==================== 仓储实现 ====================

type listingRepo struct {
	db *gorm.DB
}

// NewListingRepository 创建刊登仓储
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepo{db: db}
}

func (r *listingRepo) Create(ctx context.Context, listing *model.Listing) error {
	return wrapStoreError("创建刊登", r.db.WithContext(ctx).Create(listing).Error)
}

func (r *listingRepo) GetByID(ctx context.Context, id int64) (*model.Listing, error) {
	var listing model.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, wrapStoreError("查询刊登", err)
	}
	return &listing, nil
}

func (r *listingRepo) GetOwned(ctx context.Context, id int64, userID string) (*model.Listing, error) {
	var listing model.Listing
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, wrapStoreError("查询刊登", err)
	}
	return &listing, nil
}

func (r *listingRepo) UpdateOwned(ctx context.Context, listing *model.Listing) error {
	result := r.db.WithContext(ctx).
		Model(listing).
		Where("user_id = ?", listing.UserID).
		Select("*").
		Omit("id", "user_id", "created_at", "deleted_at").
		Updates(listing)
	if result.Error != nil {
		return wrapStoreError("更新刊登", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}

func (r *listingRepo) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]model.Listing, int64, error) {
	var listings []model.Listing
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Listing{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapStoreError("统计刊登", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&listings).Error
	return listings, total, wrapStoreError("查询刊登列表", err)
}

// MarkExpired 把已过期的 active 刊登标记为 expired，返回影响行数
func (r *listingRepo) MarkExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Listing{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.ListingStatusActive, before).
		Update("status", model.ListingStatusExpired)
	return result.RowsAffected, wrapStoreError("标记过期刊登", result.Error)
}
