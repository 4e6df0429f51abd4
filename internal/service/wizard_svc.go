package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"listing_wizard_v1/internal/api/dto"
	"listing_wizard_v1/internal/form"
	"listing_wizard_v1/internal/repository"
)

// DefaultSessionTTL 向导会话空闲多久后被回收
const DefaultSessionTTL = 2 * time.Hour

// photoBucket 刊登图片的存储目录
const photoBucket = "listings"

var (
	ErrSessionNotFound = errors.New("向导会话不存在或已过期")
	ErrNoUploader      = errors.New("未配置图片存储")
	ErrNoGeocoder      = errors.New("未配置地理编码服务")
)

// Submitter 提交编排接口
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmissionResult, error)
}

// ==================== 会话 ====================

// WizardSession 一个进行中的向导，独占一个表单
// mu 保证同一会话的操作串行执行
type WizardSession struct {
	ID        string
	UserID    string
	Store     *form.Store
	Step      form.Step
	UpdatedAt time.Time

	// uploaded 本会话上传、尚未提交的图片；从草稿移除或放弃会话时删除存储文件
	uploaded map[string]bool

	mu sync.Mutex
}

// WizardSnapshot 会话快照
type WizardSnapshot struct {
	SessionID string
	Step      form.Step
	Plan      []form.Step
	Editing   bool
	ListingID int64
	Draft     form.ListingDraft
}

// StepOutcome 前进一步的结果；最后一步时 Submission 非空
type StepOutcome struct {
	Snapshot   *WizardSnapshot
	Result     form.StepResult
	Submission *SubmissionResult
}

// ==================== 服务 ====================

// WizardService 管理内存中的向导会话，不做自动保存
type WizardService struct {
	mu       sync.Mutex
	sessions map[string]*WizardSession

	listings   repository.ListingRepository
	incentives repository.ReviewIncentiveRepository
	submitter  Submitter
	uploader   Uploader
	geocoder   Geocoder
	photos     form.PhotoNormalizer
	notifier   Notifier
	logger     *zap.Logger
	ttl        time.Duration
	now        func() time.Time
}

// WizardDeps 向导服务依赖
type WizardDeps struct {
	Listings   repository.ListingRepository
	Incentives repository.ReviewIncentiveRepository
	Submitter  Submitter
	Uploader   Uploader
	Geocoder   Geocoder
	Photos     form.PhotoNormalizer
	Notifier   Notifier
	Logger     *zap.Logger
	SessionTTL time.Duration
}

func NewWizardService(deps WizardDeps) *WizardService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = DefaultSessionTTL
	}
	return &WizardService{
		sessions:   make(map[string]*WizardSession),
		listings:   deps.Listings,
		incentives: deps.Incentives,
		submitter:  deps.Submitter,
		uploader:   deps.Uploader,
		geocoder:   deps.Geocoder,
		photos:     deps.Photos,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		ttl:        deps.SessionTTL,
		now:        time.Now,
	}
}

// ==================== 打开/关闭 ====================

// Open 新建模式
func (s *WizardService) Open(ctx context.Context, userID, listingType string) (*WizardSnapshot, error) {
	t, ok := form.ParseListingType(listingType)
	if !ok {
		if listingType != "" {
			return nil, fmt.Errorf("不支持的刊登类型: %s", listingType)
		}
		t = form.ListingTypeService
	}

	sess := s.register(userID, form.NewStore(t, s.photos))
	s.logger.Debug("向导已打开", zap.String("session_id", sess.ID), zap.String("listing_type", string(t)))
	return snapshot(sess), nil
}

// OpenEdit 编辑模式：加载刊登及其评价激励
func (s *WizardService) OpenEdit(ctx context.Context, userID string, listingID int64) (*WizardSnapshot, error) {
	listing, err := s.listings.GetOwned(ctx, listingID, userID)
	if err != nil {
		return nil, err
	}

	store := form.NewStore(form.ListingTypeService, s.photos)
	store.LoadFromExisting(listing)

	if s.incentives != nil {
		incentive, err := s.incentives.FindByListingAndProvider(ctx, listingID, userID)
		if err != nil {
			// 激励配置读取失败不阻止编辑，按默认值展示
			s.logger.Warn("读取评价激励失败", zap.Int64("listing_id", listingID), zap.Error(err))
		}
		store.LoadReviewIncentive(incentive)
	}

	sess := s.register(userID, store)
	return snapshot(sess), nil
}

// Get 当前状态
func (s *WizardService) Get(ctx context.Context, userID, sessionID string) (*WizardSnapshot, error) {
	var snap *WizardSnapshot
	err := s.withSession(userID, sessionID, func(sess *WizardSession) error {
		snap = snapshot(sess)
		return nil
	})
	return snap, err
}

// Abandon 放弃草稿，本会话上传过的图片一并删除
func (s *WizardService) Abandon(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	sess.mu.Lock()
	urls := make([]string, 0, len(sess.uploaded))
	for url := range sess.uploaded {
		urls = append(urls, url)
	}
	sess.uploaded = make(map[string]bool)
	sess.mu.Unlock()

	s.discardPhotos(ctx, urls)
	return nil
}

// ==================== 编辑 ====================

// Update 应用字段修改
func (s *WizardService) Update(ctx context.Context, userID, sessionID string, req *dto.UpdateWizardRequest) (*WizardSnapshot, error) {
	var (
		snap     *WizardSnapshot
		orphaned []string
	)
	err := s.withSession(userID, sessionID, func(sess *WizardSession) error {
		if err := applyUpdate(sess.Store, req); err != nil {
			return err
		}
		s.clampStep(sess)
		orphaned = orphanedUploads(sess)
		snap = snapshot(sess)
		return nil
	})
	s.discardPhotos(ctx, orphaned)
	return snap, err
}

// Reset 恢复默认值，编辑模式下不生效
func (s *WizardService) Reset(ctx context.Context, userID, sessionID string) (*WizardSnapshot, bool, error) {
	var (
		snap     *WizardSnapshot
		reset    bool
		orphaned []string
	)
	err := s.withSession(userID, sessionID, func(sess *WizardSession) error {
		if reset = sess.Store.Reset(); reset {
			sess.Step = form.StepBasicInfo
			orphaned = orphanedUploads(sess)
		}
		snap = snapshot(sess)
		return nil
	})
	s.discardPhotos(ctx, orphaned)
	return snap, reset, err
}

// ==================== 导航 ====================

// Next 校验当前步骤；通过则前进，最后一步则提交
func (s *WizardService) Next(ctx context.Context, userID, sessionID string) (*StepOutcome, error) {
	var outcome *StepOutcome
	err := s.withSession(userID, sessionID, func(sess *WizardSession) error {
		draft := sess.Store.Draft()
		result := form.ValidateStep(sess.Step, draft)
		outcome = &StepOutcome{Result: result}

		if !result.OK {
			notify(ctx, nil, Alert{Level: AlertWarning, Title: "Missing information", Message: result.Reason})
			outcome.Snapshot = snapshot(sess)
			return nil
		}

		if !result.Final {
			sess.Step = result.Next
			outcome.Snapshot = snapshot(sess)
			return nil
		}

		submission, err := s.submit(ctx, sess)
		if err != nil {
			outcome.Snapshot = snapshot(sess)
			return err
		}
		outcome.Submission = submission
		return nil
	})
	return outcome, err
}

// Back 回到上一步
func (s *WizardService) Back(ctx context.Context, userID, sessionID string) (*WizardSnapshot, error) {
	var snap *WizardSnapshot
	err := s.withSession(userID, sessionID, func(sess *WizardSession) error {
		if prev, ok := form.PrevStep(sess.Store.Draft().ListingType, sess.Step); ok {
			sess.Step = prev
		}
		snap = snapshot(sess)
		return nil
	})
	return snap, err
}

// Submit 直接提交（不经过步骤校验，必填字段由提交服务兜底）
func (s *WizardService) Submit(ctx context.Context, userID, sessionID string) (*SubmissionResult, error) {
	var result *SubmissionResult
	err := s.withSession(userID, sessionID, func(sess *WizardSession) error {
		var err error
		result, err = s.submit(ctx, sess)
		return err
	})
	return result, err
}

// AtFinalStep 会话是否停在最后一步，此时 Next 会触发提交
func (s *WizardService) AtFinalStep(userID, sessionID string) bool {
	final := false
	_ = s.withSession(userID, sessionID, func(sess *WizardSession) error {
		plan := form.StepPlan(sess.Store.Draft().ListingType)
		final = len(plan) > 0 && sess.Step == plan[len(plan)-1]
		return nil
	})
	return final
}

// submit 成功后会话结束；调用方已持有会话锁
func (s *WizardService) submit(ctx context.Context, sess *WizardSession) (*SubmissionResult, error) {
	store := sess.Store
	req := SubmitRequest{
		Draft:     store.Draft(),
		ListingID: store.ListingID(),
		OnSuccess: func(result *SubmissionResult) {
			store.MarkSaved(result.ListingID, sess.UserID)
			// 图片已随刊登保存
			sess.uploaded = make(map[string]bool)
			s.drop(sess.ID)
		},
	}
	if store.IsEditing() {
		req.Mode = SubmitUpdate
	}
	return s.submitter.Submit(ctx, req)
}

// ==================== 图片与位置 ====================

// UploadPhotos 上传图片并追加到草稿；部分失败时已成功的图片仍会追加
func (s *WizardService) UploadPhotos(ctx context.Context, userID, sessionID string, files []UploadFile) (*WizardSnapshot, []string, error) {
	if s.uploader == nil {
		return nil, nil, ErrNoUploader
	}

	var (
		snap      *WizardSnapshot
		uploaded  []string
		uploadErr error
	)
	err := s.withSession(userID, sessionID, func(sess *WizardSession) error {
		uploaded, uploadErr = s.uploader.UploadMany(ctx, files, photoBucket)
		for _, url := range uploaded {
			sess.Store.AddPhoto(url)
			sess.uploaded[url] = true
		}
		if uploadErr != nil {
			notify(ctx, s.notifier, Alert{
				Level:   AlertWarning,
				Title:   "Upload incomplete",
				Message: fmt.Sprintf("%d of %d photos uploaded", len(uploaded), len(files)),
			})
		}
		snap = snapshot(sess)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return snap, uploaded, uploadErr
}

// RemovePhoto 按序号移除图片，越界时草稿不变
// 本会话上传的图片同时从存储删除；编辑模式下已保存的图片只从草稿移除
func (s *WizardService) RemovePhoto(ctx context.Context, userID, sessionID string, index int) (*WizardSnapshot, error) {
	var (
		snap     *WizardSnapshot
		orphaned []string
	)
	err := s.withSession(userID, sessionID, func(sess *WizardSession) error {
		sess.Store.RemovePhoto(index)
		orphaned = orphanedUploads(sess)
		snap = snapshot(sess)
		return nil
	})
	s.discardPhotos(ctx, orphaned)
	return snap, err
}

// ReverseGeocode 坐标反查地址并写入位置信息
func (s *WizardService) ReverseGeocode(ctx context.Context, userID, sessionID string, lat, lng float64) (*WizardSnapshot, error) {
	if s.geocoder == nil {
		return nil, ErrNoGeocoder
	}

	// 先确认会话存在，避免无效会话触发外部请求
	if _, err := s.Get(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	addr, err := s.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	var snap *WizardSnapshot
	err = s.withSession(userID, sessionID, func(sess *WizardSession) error {
		sess.Store.SetLocation(addr.Formatted, &lat, &lng)
		sess.Store.SetAddress(addr.Address)
		snap = snapshot(sess)
		return nil
	})
	return snap, err
}

// ==================== 会话回收 ====================

// CleanupIdle 回收空闲超过 TTL 的会话，返回回收数量
func (s *WizardService) CleanupIdle(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			// 正在使用中
			continue
		}
		idle := now.Sub(sess.UpdatedAt) > s.ttl
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// SessionCount 当前会话数
func (s *WizardService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ==================== 内部方法 ====================

func (s *WizardService) register(userID string, store *form.Store) *WizardSession {
	sess := &WizardSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Store:     store,
		Step:      form.StepBasicInfo,
		UpdatedAt: s.now(),
		uploaded:  make(map[string]bool),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *WizardService) drop(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *WizardService) withSession(userID, sessionID string, fn func(sess *WizardSession) error) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok || sess.UserID != userID {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.UpdatedAt = s.now()
	return fn(sess)
}

// discardPhotos 删除失败只记日志，不影响向导操作
func (s *WizardService) discardPhotos(ctx context.Context, urls []string) {
	if s.uploader == nil {
		return
	}
	for _, url := range urls {
		if err := s.uploader.Delete(ctx, url); err != nil {
			s.logger.Warn("删除未提交图片失败", zap.String("url", url), zap.Error(err))
		}
	}
}

// orphanedUploads 取出已不在草稿中的本会话上传图片；调用方已持有会话锁
func orphanedUploads(sess *WizardSession) []string {
	if len(sess.uploaded) == 0 {
		return nil
	}
	kept := make(map[string]bool)
	for _, p := range sess.Store.Draft().Photos {
		kept[p] = true
	}
	var out []string
	for url := range sess.uploaded {
		if !kept[url] {
			out = append(out, url)
			delete(sess.uploaded, url)
		}
	}
	return out
}

// clampStep 切换刊登类型后当前步骤可能不在新计划中
func (s *WizardService) clampStep(sess *WizardSession) {
	plan := form.StepPlan(sess.Store.Draft().ListingType)
	for _, step := range plan {
		if step == sess.Step {
			return
		}
	}
	sess.Step = form.StepLocation
	for _, step := range plan {
		if step == sess.Step {
			return
		}
	}
	sess.Step = plan[0]
}

func snapshot(sess *WizardSession) *WizardSnapshot {
	d := sess.Store.Draft()
	return &WizardSnapshot{
		SessionID: sess.ID,
		Step:      sess.Step,
		Plan:      form.StepPlan(d.ListingType),
		Editing:   sess.Store.IsEditing(),
		ListingID: sess.Store.ListingID(),
		Draft:     d,
	}
}
