package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"listing_wizard_v1/internal/api/dto"
	"listing_wizard_v1/internal/form"
	"listing_wizard_v1/internal/middleware"
	"listing_wizard_v1/internal/model"
	"listing_wizard_v1/internal/repository"
	"listing_wizard_v1/internal/service"
)

// maxPhotosPerUpload 单次上传的图片数量上限
const maxPhotosPerUpload = 10

// maxPhotoSize 单张图片大小上限
const maxPhotoSize = 10 << 20

// ==================== 控制器 ====================

// WizardController 刊登向导控制器
type WizardController struct {
	wizard   *service.WizardService
	listings *service.ListingService
	logger   *zap.Logger
}

func NewWizardController(wizard *service.WizardService, listings *service.ListingService, logger *zap.Logger) *WizardController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WizardController{wizard: wizard, listings: listings, logger: logger}
}

// ==================== 打开/关闭 ====================

// Open 打开新建向导
func (ctrl *WizardController) Open(c *gin.Context) {
	var req dto.OpenWizardRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "参数错误: "+err.Error())
		return
	}

	ctx, alerts := requestContext(c)
	snap, err := ctrl.wizard.Open(ctx, middleware.GetUserID(c), req.ListingType)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	success(c, http.StatusCreated, dto.WizardResponse{Wizard: toWizardVO(snap), Alerts: toAlertVOs(alerts)})
}

// OpenEdit 打开编辑向导
func (ctrl *WizardController) OpenEdit(c *gin.Context) {
	listingID, ok := parseID(c, "listing_id")
	if !ok {
		return
	}

	ctx, alerts := requestContext(c)
	snap, err := ctrl.wizard.OpenEdit(ctx, middleware.GetUserID(c), listingID)
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	success(c, http.StatusCreated, dto.WizardResponse{Wizard: toWizardVO(snap), Alerts: toAlertVOs(alerts)})
}

// Get 当前草稿
func (ctrl *WizardController) Get(c *gin.Context) {
	ctx, alerts := requestContext(c)
	snap, err := ctrl.wizard.Get(ctx, middleware.GetUserID(c), c.Param("session_id"))
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	success(c, http.StatusOK, dto.WizardResponse{Wizard: toWizardVO(snap), Alerts: toAlertVOs(alerts)})
}

// Abandon 放弃草稿
func (ctrl *WizardController) Abandon(c *gin.Context) {
	ctx, alerts := requestContext(c)
	if err := ctrl.wizard.Abandon(ctx, middleware.GetUserID(c), c.Param("session_id")); err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// ==================== 编辑 ====================

// Update 修改草稿字段
// 只修改请求中出现的字段；切换 listing_type 时 variant 按新类型解码，请求被拒绝时草稿不变
func (ctrl *WizardController) Update(c *gin.Context) {
	var req dto.UpdateWizardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误: "+err.Error())
		return
	}

	ctx, alerts := requestContext(c)
	snap, err := ctrl.wizard.Update(ctx, middleware.GetUserID(c), c.Param("session_id"), &req)
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	success(c, http.StatusOK, dto.WizardResponse{Wizard: toWizardVO(snap), Alerts: toAlertVOs(alerts)})
}

// Reset 恢复默认值
func (ctrl *WizardController) Reset(c *gin.Context) {
	ctx, alerts := requestContext(c)
	snap, reset, err := ctrl.wizard.Reset(ctx, middleware.GetUserID(c), c.Param("session_id"))
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	message := "success"
	if !reset {
		message = "编辑模式下不支持重置"
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": message,
		"data":    dto.WizardResponse{Wizard: toWizardVO(snap), Alerts: toAlertVOs(alerts)},
	})
}

// ==================== 导航与提交 ====================

// Next 下一步，最后一步时提交
func (ctrl *WizardController) Next(c *gin.Context) {
	ctx, alerts := requestContext(c)
	outcome, err := ctrl.wizard.Next(ctx, middleware.GetUserID(c), c.Param("session_id"))
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	resp := dto.StepResponse{
		Wizard:     toWizardVO(outcome.Snapshot),
		Result:     &outcome.Result,
		Submission: toSubmissionVO(outcome.Submission),
		Alerts:     toAlertVOs(alerts),
	}
	if !outcome.Result.OK {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    422,
			"message": outcome.Result.Reason,
			"data":    resp,
		})
		return
	}

	success(c, http.StatusOK, resp)
}

// Back 上一步
func (ctrl *WizardController) Back(c *gin.Context) {
	ctx, alerts := requestContext(c)
	snap, err := ctrl.wizard.Back(ctx, middleware.GetUserID(c), c.Param("session_id"))
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	success(c, http.StatusOK, dto.WizardResponse{Wizard: toWizardVO(snap), Alerts: toAlertVOs(alerts)})
}

// Submit 直接提交
func (ctrl *WizardController) Submit(c *gin.Context) {
	ctx, alerts := requestContext(c)
	result, err := ctrl.wizard.Submit(ctx, middleware.GetUserID(c), c.Param("session_id"))
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	success(c, http.StatusOK, dto.StepResponse{Submission: toSubmissionVO(result), Alerts: toAlertVOs(alerts)})
}

// ==================== 图片与位置 ====================

// UploadPhotos 上传图片
// multipart 表单字段 photos，可多张；部分失败时返回已成功的图片
func (ctrl *WizardController) UploadPhotos(c *gin.Context) {
	mf, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "参数错误: "+err.Error())
		return
	}
	headers := mf.File["photos"]
	if len(headers) == 0 {
		badRequest(c, "请选择要上传的图片")
		return
	}
	if len(headers) > maxPhotosPerUpload {
		badRequest(c, fmt.Sprintf("单次最多上传 %d 张图片", maxPhotosPerUpload))
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxPhotoSize {
			badRequest(c, fmt.Sprintf("%s 超过大小限制", fh.Filename))
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "读取文件失败: "+err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			badRequest(c, "读取文件失败: "+err.Error())
			return
		}
		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	ctx, alerts := requestContext(c)
	snap, uploaded, err := ctrl.wizard.UploadPhotos(ctx, middleware.GetUserID(c), c.Param("session_id"), files)
	if snap == nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	resp := dto.UploadPhotosResponse{Wizard: toWizardVO(snap), Uploaded: uploaded, Alerts: toAlertVOs(alerts)}
	if resp.Uploaded == nil {
		resp.Uploaded = []string{}
	}
	if err != nil {
		resp.Failed = err.Error()
	}
	success(c, http.StatusOK, resp)
}

// RemovePhoto 按序号移除图片
// DELETE /api/wizard/:session_id/photos/:index
func (ctrl *WizardController) RemovePhoto(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "无效的图片序号")
		return
	}

	ctx, alerts := requestContext(c)
	snap, err := ctrl.wizard.RemovePhoto(ctx, middleware.GetUserID(c), c.Param("session_id"), index)
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	success(c, http.StatusOK, dto.WizardResponse{Wizard: toWizardVO(snap), Alerts: toAlertVOs(alerts)})
}

// ReverseGeocode 坐标反查地址
func (ctrl *WizardController) ReverseGeocode(c *gin.Context) {
	var req dto.ReverseGeocodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误: "+err.Error())
		return
	}

	ctx, alerts := requestContext(c)
	snap, err := ctrl.wizard.ReverseGeocode(ctx, middleware.GetUserID(c), c.Param("session_id"), req.Lat, req.Lng)
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	success(c, http.StatusOK, dto.WizardResponse{Wizard: toWizardVO(snap), Alerts: toAlertVOs(alerts)})
}

// ==================== 刊登 ====================

// ListListings 分页查询自己的刊登
// GET /api/listings?page=1&page_size=20
func (ctrl *WizardController) ListListings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	ctx, alerts := requestContext(c)
	list, total, err := ctrl.listings.ListOwnedListings(ctx, middleware.GetUserID(c), page, pageSize)
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}
	if list == nil {
		list = []model.Listing{}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":      0,
		"message":   "success",
		"data":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetListing 查询自己的刊登
func (ctrl *WizardController) GetListing(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, alerts := requestContext(c)
	listing, err := ctrl.listings.GetOwnedListing(ctx, id, middleware.GetUserID(c))
	if err != nil {
		ctrl.writeError(c, err, alerts)
		return
	}

	success(c, http.StatusOK, listing)
}

// ==================== 辅助函数 ====================

// AtFinalStep 会话停在最后一步时 Next 会提交，供路由对其套用提交限流
func (ctrl *WizardController) AtFinalStep(c *gin.Context) bool {
	return ctrl.wizard.AtFinalStep(middleware.GetUserID(c), c.Param("session_id"))
}

// requestContext 为本次请求挂上提示收集器
func requestContext(c *gin.Context) (context.Context, *service.AlertRecorder) {
	recorder := service.NewAlertRecorder()
	return service.WithAlertRecorder(c.Request.Context(), recorder), recorder
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    400,
		"message": message,
	})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "无效的刊登ID")
		return 0, false
	}
	return id, true
}

// writeError 按错误类型映射 HTTP 状态码
func (ctrl *WizardController) writeError(c *gin.Context, err error, alerts *service.AlertRecorder) {
	var se *service.SubmissionError
	if errors.As(err, &se) {
		status := http.StatusBadGateway
		switch se.Kind {
		case service.ErrKindNotAuthenticated:
			status = http.StatusUnauthorized
		case service.ErrKindValidation:
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"code":    status,
			"message": se.Message,
			"data": gin.H{
				"kind":    se.Kind,
				"details": se.Details,
				"hint":    se.Hint,
				"code":    se.Code,
				"alerts":  toAlertVOs(alerts),
			},
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, repository.ErrListingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidUpdate):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNoUploader), errors.Is(err, service.ErrNoGeocoder):
		status = http.StatusServiceUnavailable
	default:
		ctrl.logger.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, gin.H{
		"code":    status,
		"message": err.Error(),
	})
}

func toWizardVO(snap *service.WizardSnapshot) *dto.WizardVO {
	if snap == nil {
		return nil
	}
	return &dto.WizardVO{
		SessionID:   snap.SessionID,
		Step:        snap.Step,
		Plan:        snap.Plan,
		Editing:     snap.Editing,
		ListingID:   snap.ListingID,
		Draft:       snap.Draft,
		BudgetTypes: form.LegalBudgetTypes(snap.Draft.ListingType),
	}
}

func toSubmissionVO(r *service.SubmissionResult) *dto.SubmissionVO {
	if r == nil {
		return nil
	}
	return &dto.SubmissionVO{
		ListingID:      r.ListingID,
		Mode:           string(r.Mode),
		BookingWarning: r.BookingWarning,
	}
}

func toAlertVOs(r *service.AlertRecorder) []dto.AlertVO {
	alerts := r.Alerts()
	out := make([]dto.AlertVO, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, dto.AlertVO{Level: string(a.Level), Title: a.Title, Message: a.Message})
	}
	return out
}
