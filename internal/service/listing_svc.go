package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"listing_wizard_v1/internal/form"
	"listing_wizard_v1/internal/model"
	"listing_wizard_v1/internal/repository"
)

// DefaultSubmitTimeout 单次存储调用的超时
const DefaultSubmitTimeout = 15 * time.Second

// BookingWarningMessage 预约配置同步失败时给用户的提示
const BookingWarningMessage = "Listing saved but booking settings may be incomplete"

// ==================== 提交请求/结果 ====================

type SubmitMode string

const (
	SubmitCreate SubmitMode = "create"
	SubmitUpdate SubmitMode = "update"
)

// SubmitRequest 提交请求
// Mode 为空时按 ListingID 推断：非 0 为更新
type SubmitRequest struct {
	Draft     form.ListingDraft
	Mode      SubmitMode
	ListingID int64
	OnSuccess func(result *SubmissionResult)
}

// SubmissionResult 一次提交的汇总结果
// 主记录写入必定成功；两个从属记录各自的结果分别记录，失败不影响整体成功
type SubmissionResult struct {
	ListingID      int64      `json:"listing_id"`
	Mode           SubmitMode `json:"mode"`
	BookingWarning string     `json:"booking_warning,omitempty"`
	IncentiveError error      `json:"-"`
}

// ==================== 提交错误 ====================

type SubmissionErrorKind string

const (
	ErrKindValidation       SubmissionErrorKind = "validation_rejected"
	ErrKindNotAuthenticated SubmissionErrorKind = "not_authenticated"
	ErrKindPrimaryWrite     SubmissionErrorKind = "primary_write_failed"
)

// SubmissionError 提交失败，主记录未写入
type SubmissionError struct {
	Kind    SubmissionErrorKind `json:"kind"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
	Hint    string              `json:"hint,omitempty"`
	Code    string              `json:"code,omitempty"`
	Err     error               `json:"-"`
}

func (e *SubmissionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ==================== 服务 ====================

// ListingService 提交编排：主记录写入为必选步骤，预约配置与评价激励为尽力而为的后续步骤
// 三张表之间没有事务，步骤严格按顺序执行且不重试
type ListingService struct {
	listings  repository.ListingRepository
	booking   BookingSynchronizer
	incentive IncentiveSynchronizer
	auth      AuthProvider
	notifier  Notifier
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewListingService 创建提交服务，timeout <= 0 时使用默认值
func NewListingService(
	listings repository.ListingRepository,
	booking BookingSynchronizer,
	incentive IncentiveSynchronizer,
	auth AuthProvider,
	notifier Notifier,
	logger *zap.Logger,
	timeout time.Duration,
) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &ListingService{
		listings:  listings,
		booking:   booking,
		incentive: incentive,
		auth:      auth,
		notifier:  notifier,
		logger:    logger,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Submit 提交草稿
func (s *ListingService) Submit(ctx context.Context, req SubmitRequest) (*SubmissionResult, error) {
	// 1. 身份
	user, ok := s.auth.CurrentUser(ctx)
	if !ok || user == nil || user.ID == "" {
		return nil, s.fail(ctx, &SubmissionError{
			Kind:    ErrKindNotAuthenticated,
			Message: "Please sign in to publish a listing",
		})
	}

	// 2. 必填字段兜底校验
	if missing := form.MissingRequiredFields(req.Draft); len(missing) > 0 {
		return nil, s.fail(ctx, &SubmissionError{
			Kind:    ErrKindValidation,
			Message: "Please fill in: " + strings.Join(missing, ", "),
		})
	}

	mode := req.Mode
	if mode == "" {
		mode = SubmitCreate
		if req.ListingID > 0 {
			mode = SubmitUpdate
		}
	}
	if mode == SubmitUpdate && req.ListingID <= 0 {
		return nil, s.fail(ctx, &SubmissionError{
			Kind:    ErrKindValidation,
			Message: "Missing listing id for update",
		})
	}

	// 3. 构造主记录
	rec := BuildListingRecord(req.Draft, user.ID, s.now())

	// 4. 写入主记录
	listingID, err := s.writePrimary(ctx, mode, req.ListingID, rec)
	if err != nil {
		return nil, s.fail(ctx, primaryWriteError(err))
	}

	result := &SubmissionResult{ListingID: listingID, Mode: mode}
	log := s.logger.With(zap.Int64("listing_id", listingID), zap.String("user_id", user.ID))

	// 5. 预约配置（失败只提示）
	if req.Draft.Booking.Enabled && s.booking != nil {
		if err := s.withTimeout(ctx, func(c context.Context) error {
			return s.booking.Sync(c, listingID, user.ID, req.Draft)
		}); err != nil {
			log.Warn("预约配置同步失败", zap.Error(err))
			result.BookingWarning = BookingWarningMessage
			notify(ctx, s.notifier, Alert{Level: AlertWarning, Title: "Booking settings", Message: BookingWarningMessage})
		}
	}

	// 6. 评价激励（失败只记日志）
	if s.incentive != nil {
		if err := s.withTimeout(ctx, func(c context.Context) error {
			return s.incentive.Sync(c, listingID, user.ID, req.Draft.Incentive)
		}); err != nil {
			log.Error("评价激励同步失败", zap.Error(err))
			result.IncentiveError = err
		}
	}

	// 7. 完成
	title := "Listing published"
	if mode == SubmitUpdate {
		title = "Listing updated"
	}
	notify(ctx, s.notifier, Alert{Level: AlertSuccess, Title: title, Message: rec.Title})
	log.Info("刊登提交成功", zap.String("mode", string(mode)))

	if req.OnSuccess != nil {
		req.OnSuccess(result)
	}
	return result, nil
}

// GetOwnedListing 查询当前用户的刊登
func (s *ListingService) GetOwnedListing(ctx context.Context, id int64, userID string) (*model.Listing, error) {
	var listing *model.Listing
	err := s.withTimeout(ctx, func(c context.Context) error {
		var err error
		listing, err = s.listings.GetOwned(c, id, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.applyExpiry(listing)
	return listing, nil
}

// ListOwnedListings 分页查询当前用户的刊登，按 ID 倒序
func (s *ListingService) ListOwnedListings(ctx context.Context, userID string, page, pageSize int) ([]model.Listing, int64, error) {
	var (
		listings []model.Listing
		total    int64
	)
	err := s.withTimeout(ctx, func(c context.Context) error {
		var err error
		listings, total, err = s.listings.ListByUser(c, userID, page, pageSize)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	for i := range listings {
		s.applyExpiry(&listings[i])
	}
	return listings, total, nil
}

// applyExpiry 过期巡检两次执行之间，已到期的 active 刊登按 expired 返回
func (s *ListingService) applyExpiry(l *model.Listing) {
	if l.Status == model.ListingStatusActive && l.IsExpired(s.now()) {
		l.Status = model.ListingStatusExpired
	}
}

func (s *ListingService) writePrimary(ctx context.Context, mode SubmitMode, listingID int64, rec *model.Listing) (int64, error) {
	err := s.withTimeout(ctx, func(c context.Context) error {
		if mode == SubmitUpdate {
			rec.ID = listingID
			return s.listings.UpdateOwned(c, rec)
		}
		return s.listings.Create(c, rec)
	})
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

func (s *ListingService) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(c)
}

func (s *ListingService) fail(ctx context.Context, err *SubmissionError) error {
	s.logger.Warn("刊登提交失败",
		zap.String("kind", string(err.Kind)),
		zap.String("message", err.Message),
		zap.String("details", err.Details),
		zap.String("code", err.Code),
	)
	notify(ctx, s.notifier, Alert{Level: AlertError, Title: "Could not save listing", Message: err.Error()})
	return err
}

func primaryWriteError(err error) *SubmissionError {
	se := &SubmissionError{
		Kind:    ErrKindPrimaryWrite,
		Message: "Failed to save listing",
		Err:     err,
	}

	var storeErr *repository.StoreError
	switch {
	case errors.Is(err, repository.ErrListingNotFound):
		se.Details = "listing not found or not owned by current user"
	case errors.As(err, &storeErr):
		se.Details = storeErr.Details
		if se.Details == "" {
			se.Details = storeErr.Message
		}
		se.Hint = storeErr.Hint
		se.Code = storeErr.Code
	case errors.Is(err, context.DeadlineExceeded):
		se.Details = "request timed out"
	default:
		se.Details = err.Error()
	}
	return se
}
