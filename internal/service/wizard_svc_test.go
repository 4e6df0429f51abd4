package service

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"listing_wizard_v1/internal/api/dto"
	"listing_wizard_v1/internal/form"
	"listing_wizard_v1/internal/repository"
)

func strPtr(s string) *string { return &s }

func numPtr(s string) *dto.NumericText {
	n := dto.NumericText(s)
	return &n
}

// ==================== Mock ====================

type mockSubmitter struct {
	submitFn func(ctx context.Context, req SubmitRequest) (*SubmissionResult, error)
	requests []SubmitRequest
}

func (m *mockSubmitter) Submit(ctx context.Context, req SubmitRequest) (*SubmissionResult, error) {
	m.requests = append(m.requests, req)
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	result := &SubmissionResult{ListingID: 99, Mode: req.Mode}
	if req.OnSuccess != nil {
		req.OnSuccess(result)
	}
	return result, nil
}

type mockUploader struct {
	uploadFn func(ctx context.Context, files []UploadFile, bucket string) ([]string, error)
	deleted  []string
}

func (m *mockUploader) UploadMany(ctx context.Context, files []UploadFile, bucket string) ([]string, error) {
	return m.uploadFn(ctx, files, bucket)
}

func (m *mockUploader) Delete(ctx context.Context, url string) error {
	m.deleted = append(m.deleted, url)
	return nil
}

type mockGeocoder struct {
	result *GeocodedAddress
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodedAddress, error) {
	m.calls++
	return m.result, m.err
}

func fixSinkUpdate() *dto.UpdateWizardRequest {
	return &dto.UpdateWizardRequest{
		Title:           strPtr("Fix sink"),
		Description:     strPtr("Leaky pipe"),
		Category:        strPtr("Plumbing"),
		BudgetType:      strPtr("fixed"),
		BudgetMin:       numPtr("50"),
		LocationAddress: strPtr("10 Downing St"),
	}
}

// ==================== 完整流程 ====================

func TestWizard_FullFlowCreatesListing(t *testing.T) {
	db := setupTestDB(t)
	listings := repository.NewListingRepository(db)
	submitter := NewListingService(
		listings,
		NewServiceSettingsSynchronizer(repository.NewServiceSettingsRepository(db), nil),
		NewReviewIncentiveSynchronizer(repository.NewReviewIncentiveRepository(db), nil),
		fixedUser("user-1"), nil, nil, 0,
	)
	svc := NewWizardService(WizardDeps{Listings: listings, Submitter: submitter})
	ctx := context.Background()

	snap, err := svc.Open(ctx, "user-1", "service")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if snap.Step != form.StepBasicInfo || len(snap.Plan) != 6 {
		t.Fatalf("snap = %+v", snap)
	}
	if _, err := svc.Update(ctx, "user-1", snap.SessionID, fixSinkUpdate()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	wantSteps := []form.Step{form.StepPricing, form.StepBooking, form.StepLocation, form.StepSettings, form.StepReview}
	for _, want := range wantSteps {
		outcome, err := svc.Next(ctx, "user-1", snap.SessionID)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !outcome.Result.OK || outcome.Snapshot.Step != want {
			t.Fatalf("step = %s, want %s (reason: %s)", outcome.Snapshot.Step, want, outcome.Result.Reason)
		}
	}

	outcome, err := svc.Next(ctx, "user-1", snap.SessionID)
	if err != nil {
		t.Fatalf("final Next() error = %v", err)
	}
	if !outcome.Result.Final || outcome.Submission == nil || outcome.Submission.ListingID == 0 {
		t.Fatalf("outcome = %+v", outcome)
	}

	if svc.SessionCount() != 0 {
		t.Error("提交成功后会话应结束")
	}
	if _, err := svc.Get(ctx, "user-1", snap.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}

	rec, err := listings.GetByID(ctx, outcome.Submission.ListingID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.Title != "Fix sink" || rec.BudgetMin == nil || *rec.BudgetMin != 50 {
		t.Errorf("rec = %+v", rec)
	}
}

func TestWizard_NextBlockedByValidation(t *testing.T) {
	svc := NewWizardService(WizardDeps{Submitter: &mockSubmitter{}})
	recorder := NewAlertRecorder()
	ctx := WithAlertRecorder(context.Background(), recorder)

	snap, _ := svc.Open(ctx, "user-1", "")
	outcome, err := svc.Next(ctx, "user-1", snap.SessionID)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if outcome.Result.OK || outcome.Snapshot.Step != form.StepBasicInfo {
		t.Errorf("outcome = %+v", outcome)
	}
	if outcome.Result.Reason != "Please fill in: title, description, category" {
		t.Errorf("reason = %q", outcome.Result.Reason)
	}

	alerts := recorder.Alerts()
	if len(alerts) != 1 || alerts[0].Level != AlertWarning {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestWizard_SubmitFailureKeepsSession(t *testing.T) {
	submitter := &mockSubmitter{submitFn: func(ctx context.Context, req SubmitRequest) (*SubmissionResult, error) {
		return nil, &SubmissionError{Kind: ErrKindPrimaryWrite, Message: "Failed to save listing"}
	}}
	svc := NewWizardService(WizardDeps{Submitter: submitter})
	ctx := context.Background()

	snap, _ := svc.Open(ctx, "user-1", "service")
	_, err := svc.Submit(ctx, "user-1", snap.SessionID)

	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want SubmissionError", err)
	}
	if _, err := svc.Get(ctx, "user-1", snap.SessionID); err != nil {
		t.Errorf("提交失败后草稿应保留: %v", err)
	}
}

// ==================== 会话归属 ====================

func TestWizard_SessionOwnership(t *testing.T) {
	svc := NewWizardService(WizardDeps{Submitter: &mockSubmitter{}})
	ctx := context.Background()

	snap, _ := svc.Open(ctx, "user-1", "goods")

	if _, err := svc.Get(ctx, "user-2", snap.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
	if err := svc.Abandon(ctx, "user-2", snap.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Abandon() error = %v, want ErrSessionNotFound", err)
	}
	if err := svc.Abandon(ctx, "user-1", snap.SessionID); err != nil {
		t.Errorf("Abandon() error = %v", err)
	}
	if svc.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d", svc.SessionCount())
	}
}

func TestWizard_OpenUnknownType(t *testing.T) {
	svc := NewWizardService(WizardDeps{})
	if _, err := svc.Open(context.Background(), "user-1", "spaceship"); err == nil {
		t.Error("未知刊登类型应返回错误")
	}
}

// ==================== 编辑模式 ====================

func TestWizard_OpenEdit(t *testing.T) {
	db := setupTestDB(t)
	listings := repository.NewListingRepository(db)
	ctx := context.Background()

	rec := BuildListingRecord(fixSinkDraft(), "user-1", time.Now())
	if err := listings.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	submitter := &mockSubmitter{}
	svc := NewWizardService(WizardDeps{
		Listings:   listings,
		Incentives: repository.NewReviewIncentiveRepository(db),
		Submitter:  submitter,
	})

	if _, err := svc.OpenEdit(ctx, "user-2", rec.ID); !errors.Is(err, repository.ErrListingNotFound) {
		t.Errorf("OpenEdit() 其他用户 error = %v", err)
	}

	snap, err := svc.OpenEdit(ctx, "user-1", rec.ID)
	if err != nil {
		t.Fatalf("OpenEdit() error = %v", err)
	}
	if !snap.Editing || snap.ListingID != rec.ID || snap.Draft.Title != "Fix sink" {
		t.Fatalf("snap = %+v", snap)
	}
	if snap.Draft.Incentive.Enabled {
		t.Error("没有激励记录时应使用默认值（关闭）")
	}

	_, reset, err := svc.Reset(ctx, "user-1", snap.SessionID)
	if err != nil || reset {
		t.Errorf("Reset() = %v, %v; 编辑模式下不应重置", reset, err)
	}

	if _, err := svc.Submit(ctx, "user-1", snap.SessionID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	req := submitter.requests[0]
	if req.Mode != SubmitUpdate || req.ListingID != rec.ID {
		t.Errorf("submit request mode = %s id = %d", req.Mode, req.ListingID)
	}
}

func TestWizard_ResetInCreateMode(t *testing.T) {
	svc := NewWizardService(WizardDeps{})
	ctx := context.Background()

	snap, _ := svc.Open(ctx, "user-1", "goods")
	svc.Update(ctx, "user-1", snap.SessionID, &dto.UpdateWizardRequest{Title: strPtr("Bike")})

	after, reset, err := svc.Reset(ctx, "user-1", snap.SessionID)
	if err != nil || !reset {
		t.Fatalf("Reset() = %v, %v", reset, err)
	}
	if after.Draft.Title != "" || after.Draft.ListingType != form.ListingTypeGoods {
		t.Errorf("draft = %+v", after.Draft)
	}
}

// ==================== 修改与导航 ====================

func TestWizard_UpdateSwitchesVariant(t *testing.T) {
	svc := NewWizardService(WizardDeps{})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "service")

	got, err := svc.Update(ctx, "user-1", snap.SessionID, &dto.UpdateWizardRequest{
		ListingType: strPtr("goods"),
		Variant:     json.RawMessage(`{"condition":"used"}`),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	v, ok := got.Draft.Variant.(form.GoodsDetails)
	if !ok {
		t.Fatalf("variant = %T, want GoodsDetails", got.Draft.Variant)
	}
	if v.Condition != "used" || v.Quantity != "1" {
		t.Errorf("variant = %+v", v)
	}
	if got.Draft.ListingType != form.ListingTypeGoods {
		t.Errorf("listing type = %s", got.Draft.ListingType)
	}
}

func TestWizard_UpdateRejectsBadInput(t *testing.T) {
	svc := NewWizardService(WizardDeps{})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "service")

	tests := []*dto.UpdateWizardRequest{
		{ListingType: strPtr("spaceship")},
		{ListingType: strPtr("goods"), Variant: json.RawMessage(`{"quantity":3}`)},
	}
	for i, req := range tests {
		if _, err := svc.Update(ctx, "user-1", snap.SessionID, req); !errors.Is(err, ErrInvalidUpdate) {
			t.Errorf("case %d: error = %v, want ErrInvalidUpdate", i, err)
		}
	}
}

func TestWizard_RejectedUpdateLeavesDraftUnchanged(t *testing.T) {
	svc := NewWizardService(WizardDeps{})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "service")
	if _, err := svc.Update(ctx, "user-1", snap.SessionID, &dto.UpdateWizardRequest{BudgetType: strPtr("per_hour")}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	before, _ := svc.Get(ctx, "user-1", snap.SessionID)

	_, err := svc.Update(ctx, "user-1", snap.SessionID, &dto.UpdateWizardRequest{
		ListingType: strPtr("goods"),
		Variant:     json.RawMessage(`{"quantity":5}`),
		Title:       strPtr("Sofa"),
	})
	if !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("Update() error = %v, want ErrInvalidUpdate", err)
	}

	after, _ := svc.Get(ctx, "user-1", snap.SessionID)
	if !reflect.DeepEqual(after.Draft, before.Draft) {
		t.Errorf("draft changed:\n got %+v\nwant %+v", after.Draft, before.Draft)
	}
	if after.Draft.ListingType != form.ListingTypeService || after.Draft.Pricing.BudgetType != form.BudgetPerHour {
		t.Errorf("type = %s budget = %s", after.Draft.ListingType, after.Draft.Pricing.BudgetType)
	}
}

func TestWizard_UpdateClampsStep(t *testing.T) {
	svc := NewWizardService(WizardDeps{})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "service")
	svc.Update(ctx, "user-1", snap.SessionID, fixSinkUpdate())

	svc.Next(ctx, "user-1", snap.SessionID)
	outcome, _ := svc.Next(ctx, "user-1", snap.SessionID)
	if outcome.Snapshot.Step != form.StepBooking {
		t.Fatalf("step = %s, want booking", outcome.Snapshot.Step)
	}

	// 商品类没有预约步骤
	got, err := svc.Update(ctx, "user-1", snap.SessionID, &dto.UpdateWizardRequest{ListingType: strPtr("goods")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Step != form.StepLocation {
		t.Errorf("step = %s, want location", got.Step)
	}
}

func TestWizard_Back(t *testing.T) {
	svc := NewWizardService(WizardDeps{})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "link")

	got, _ := svc.Back(ctx, "user-1", snap.SessionID)
	if got.Step != form.StepBasicInfo {
		t.Errorf("第一步后退应保持不变, got %s", got.Step)
	}

	svc.Update(ctx, "user-1", snap.SessionID, &dto.UpdateWizardRequest{
		Title:       strPtr("My site"),
		Description: strPtr("Portfolio"),
		Category:    strPtr("Design"),
		Variant:     json.RawMessage(`{"url":"https://example.com"}`),
	})
	svc.Next(ctx, "user-1", snap.SessionID)
	got, _ = svc.Back(ctx, "user-1", snap.SessionID)
	if got.Step != form.StepBasicInfo {
		t.Errorf("step = %s, want basic_info", got.Step)
	}
}

// ==================== 会话回收 ====================

func TestWizard_CleanupIdle(t *testing.T) {
	svc := NewWizardService(WizardDeps{SessionTTL: time.Hour})
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	ctx := context.Background()

	stale, _ := svc.Open(ctx, "user-1", "service")
	svc.now = func() time.Time { return start.Add(50 * time.Minute) }
	fresh, _ := svc.Open(ctx, "user-2", "service")

	removed := svc.CleanupIdle(start.Add(90 * time.Minute))
	if removed != 1 {
		t.Errorf("CleanupIdle() = %d, want 1", removed)
	}
	if _, err := svc.Get(ctx, "user-1", stale.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("空闲会话应被回收, err = %v", err)
	}
	if _, err := svc.Get(ctx, "user-2", fresh.SessionID); err != nil {
		t.Errorf("活跃会话不应被回收: %v", err)
	}
}

// ==================== 图片与位置 ====================

func TestWizard_UploadPhotosPartialFailure(t *testing.T) {
	uploader := &mockUploader{uploadFn: func(ctx context.Context, files []UploadFile, bucket string) ([]string, error) {
		if bucket != "listings" {
			t.Errorf("bucket = %s", bucket)
		}
		return []string{"https://cdn.test/a.jpg"}, errors.New("b.jpg: 上传失败")
	}}
	svc := NewWizardService(WizardDeps{Uploader: uploader})
	recorder := NewAlertRecorder()
	ctx := WithAlertRecorder(context.Background(), recorder)

	snap, _ := svc.Open(ctx, "user-1", "service")
	files := []UploadFile{{Filename: "a.jpg"}, {Filename: "b.jpg"}}
	got, uploaded, err := svc.UploadPhotos(ctx, "user-1", snap.SessionID, files)

	if err == nil {
		t.Error("部分失败应返回错误")
	}
	if len(uploaded) != 1 || len(got.Draft.Photos) != 1 || got.Draft.Photos[0] != "https://cdn.test/a.jpg" {
		t.Errorf("uploaded = %v photos = %v", uploaded, got.Draft.Photos)
	}
	if alerts := recorder.Alerts(); len(alerts) != 1 || alerts[0].Message != "1 of 2 photos uploaded" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestWizard_RemovePhotoDeletesSessionUploads(t *testing.T) {
	uploader := &mockUploader{uploadFn: func(ctx context.Context, files []UploadFile, bucket string) ([]string, error) {
		return []string{"https://cdn.test/a.jpg", "https://cdn.test/b.jpg"}, nil
	}}
	svc := NewWizardService(WizardDeps{Uploader: uploader})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "service")

	svc.Update(ctx, "user-1", snap.SessionID, &dto.UpdateWizardRequest{Photos: []string{"https://cdn.test/kept.jpg"}})
	if _, _, err := svc.UploadPhotos(ctx, "user-1", snap.SessionID, []UploadFile{{Filename: "a.jpg"}, {Filename: "b.jpg"}}); err != nil {
		t.Fatalf("UploadPhotos() error = %v", err)
	}

	// 非本会话上传的图片只从草稿移除
	got, err := svc.RemovePhoto(ctx, "user-1", snap.SessionID, 0)
	if err != nil {
		t.Fatalf("RemovePhoto() error = %v", err)
	}
	if len(uploader.deleted) != 0 || len(got.Draft.Photos) != 2 {
		t.Errorf("deleted = %v photos = %v", uploader.deleted, got.Draft.Photos)
	}

	got, _ = svc.RemovePhoto(ctx, "user-1", snap.SessionID, 0)
	if !reflect.DeepEqual(uploader.deleted, []string{"https://cdn.test/a.jpg"}) {
		t.Errorf("deleted = %v", uploader.deleted)
	}
	if !reflect.DeepEqual(got.Draft.Photos, []string{"https://cdn.test/b.jpg"}) {
		t.Errorf("photos = %v", got.Draft.Photos)
	}

	// 越界序号不改动草稿
	got, _ = svc.RemovePhoto(ctx, "user-1", snap.SessionID, 5)
	if len(got.Draft.Photos) != 1 || len(uploader.deleted) != 1 {
		t.Errorf("photos = %v deleted = %v", got.Draft.Photos, uploader.deleted)
	}

	// 放弃会话时清理剩余的上传
	if err := svc.Abandon(ctx, "user-1", snap.SessionID); err != nil {
		t.Fatalf("Abandon() error = %v", err)
	}
	if !reflect.DeepEqual(uploader.deleted, []string{"https://cdn.test/a.jpg", "https://cdn.test/b.jpg"}) {
		t.Errorf("deleted = %v", uploader.deleted)
	}
}

func TestWizard_SubmitKeepsUploadedPhotos(t *testing.T) {
	uploader := &mockUploader{uploadFn: func(ctx context.Context, files []UploadFile, bucket string) ([]string, error) {
		return []string{"https://cdn.test/a.jpg"}, nil
	}}
	svc := NewWizardService(WizardDeps{Uploader: uploader, Submitter: &mockSubmitter{}})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "service")
	svc.UploadPhotos(ctx, "user-1", snap.SessionID, []UploadFile{{Filename: "a.jpg"}})

	if _, err := svc.Submit(ctx, "user-1", snap.SessionID); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(uploader.deleted) != 0 {
		t.Errorf("提交后的图片不应删除: %v", uploader.deleted)
	}
}

func TestWizard_AtFinalStep(t *testing.T) {
	svc := NewWizardService(WizardDeps{Submitter: &mockSubmitter{}})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "service")
	svc.Update(ctx, "user-1", snap.SessionID, fixSinkUpdate())

	for i := 0; i < 5; i++ {
		if svc.AtFinalStep("user-1", snap.SessionID) {
			t.Fatalf("step %d 不应是最后一步", i)
		}
		svc.Next(ctx, "user-1", snap.SessionID)
	}
	if !svc.AtFinalStep("user-1", snap.SessionID) {
		t.Error("review 应是最后一步")
	}
	if svc.AtFinalStep("user-2", snap.SessionID) || svc.AtFinalStep("user-1", "nope") {
		t.Error("无效会话应返回 false")
	}
}

func TestWizard_UploadPhotosWithoutUploader(t *testing.T) {
	svc := NewWizardService(WizardDeps{})
	snap, _ := svc.Open(context.Background(), "user-1", "service")

	if _, _, err := svc.UploadPhotos(context.Background(), "user-1", snap.SessionID, nil); !errors.Is(err, ErrNoUploader) {
		t.Errorf("error = %v, want ErrNoUploader", err)
	}
}

func TestWizard_ReverseGeocode(t *testing.T) {
	geocoder := &mockGeocoder{result: &GeocodedAddress{
		Formatted: "10 Downing Street, London",
		Address:   form.Address{StreetAddress: "10 Downing Street", City: "London", PostalCode: "SW1A 2AA", Country: "United Kingdom"},
	}}
	svc := NewWizardService(WizardDeps{Geocoder: geocoder})
	ctx := context.Background()
	snap, _ := svc.Open(ctx, "user-1", "service")

	if _, err := svc.ReverseGeocode(ctx, "user-2", snap.SessionID, 51.5, -0.12); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
	if geocoder.calls != 0 {
		t.Error("无效会话不应发起外部请求")
	}

	got, err := svc.ReverseGeocode(ctx, "user-1", snap.SessionID, 51.5, -0.12)
	if err != nil {
		t.Fatalf("ReverseGeocode() error = %v", err)
	}
	loc := got.Draft.Location
	if loc.Address != "10 Downing Street, London" || loc.Lat == nil || *loc.Lat != 51.5 || *loc.Lng != -0.12 {
		t.Errorf("location = %+v", loc)
	}
	if got.Draft.Address.City != "London" {
		t.Errorf("address = %+v", got.Draft.Address)
	}
}
