package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"listing_wizard_v1/internal/controller"
	"listing_wizard_v1/internal/middleware"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, wizardCtl *controller.WizardController, limiter *middleware.CooldownLimiter) {
	// 1. 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "ok"})
	})

	// 2. API 路由组（全部需要登录）
	api := r.Group("/api", middleware.JWTAuth())
	{
		// wizard 刊登向导
		wizard := api.Group("/wizard")
		{
			// POST /api/wizard
			wizard.POST("", wizardCtl.Open)
			// POST /api/wizard/edit/:listing_id
			wizard.POST("/edit/:listing_id", wizardCtl.OpenEdit)

			wizard.GET("/:session_id", wizardCtl.Get)
			wizard.PATCH("/:session_id", wizardCtl.Update)
			wizard.DELETE("/:session_id", wizardCtl.Abandon)

			// 最后一步的 next 会提交，与 submit 共用冷却
			wizard.POST("/:session_id/next", middleware.UserRateLimitWhen(limiter, middleware.ActionSubmit, 0, wizardCtl.AtFinalStep), wizardCtl.Next)
			wizard.POST("/:session_id/back", wizardCtl.Back)
			wizard.POST("/:session_id/reset", wizardCtl.Reset)
			wizard.POST("/:session_id/submit", middleware.UserRateLimit(limiter, middleware.ActionSubmit, 0), wizardCtl.Submit)

			wizard.POST("/:session_id/photos", middleware.UserRateLimit(limiter, middleware.ActionUpload, 0), wizardCtl.UploadPhotos)
			wizard.DELETE("/:session_id/photos/:index", wizardCtl.RemovePhoto)
			wizard.POST("/:session_id/location/reverse", middleware.UserRateLimit(limiter, middleware.ActionGeocode, 0), wizardCtl.ReverseGeocode)
		}

		// listings 刊登
		listings := api.Group("/listings")
		{
			// GET /api/listings?page=1&page_size=20
			listings.GET("", wizardCtl.ListListings)
			// GET /api/listings/:id
			listings.GET("/:id", wizardCtl.GetListing)
		}
	}
}
