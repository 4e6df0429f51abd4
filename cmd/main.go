package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"listing_wizard_v1/internal/config"
	"listing_wizard_v1/internal/controller"
	"listing_wizard_v1/internal/middleware"
	"listing_wizard_v1/internal/model"
	"listing_wizard_v1/internal/repository"
	"listing_wizard_v1/internal/router"
	"listing_wizard_v1/internal/service"
	"listing_wizard_v1/internal/task"
	"listing_wizard_v1/pkg/database"
	"listing_wizard_v1/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径 (默认 ./config.yaml)")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化日志
	zl, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zl.Sync()

	// 3. 初始化数据库
	db, err := initDatabase(cfg, zl)
	if err != nil {
		zl.Fatal("初始化数据库失败", zap.Error(err))
	}

	// 4. 初始化依赖
	deps := initDependencies(cfg, db, zl)

	// 5. 启动定时任务
	if err := deps.Tasks.Start(); err != nil {
		zl.Fatal("定时任务启动失败", zap.Error(err))
	}
	defer deps.Tasks.Stop()

	// 6. 初始化路由
	r := setupEngine(cfg, deps)

	// 7. 启动服务
	startServer(cfg, r, zl)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Repos       *Repositories
	Services    *Services
	Controller  *controller.WizardController
	RateLimiter *middleware.CooldownLimiter
	Tasks       *task.TaskManager
}

// Repositories 仓库集合
type Repositories struct {
	Listing         repository.ListingRepository
	ServiceSettings repository.ServiceSettingsRepository
	ReviewIncentive repository.ReviewIncentiveRepository
}

// Services 服务集合
type Services struct {
	Listing  *service.ListingService
	Wizard   *service.WizardService
	Storage  *service.StorageService
	Geocoder service.Geocoder
	Notifier service.Notifier
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase(cfg *config.Config, zl *zap.Logger) (*gorm.DB, error) {
	return database.InitDB(database.Options{
		DSN:          cfg.Database.DSN,
		LogLevel:     cfg.Database.LogLevel,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, zl,
		&model.Listing{},
		&model.ServiceSettings{},
		&model.ReviewIncentiveSettings{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB, zl *zap.Logger) *Dependencies {
	// -------- 鉴权 --------
	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenTTL: cfg.JWT.TTL,
		Issuer:         cfg.JWT.Issuer,
	})

	// -------- Repo 层 --------
	repos := &Repositories{
		Listing:         repository.NewListingRepository(db),
		ServiceSettings: repository.NewServiceSettingsRepository(db),
		ReviewIncentive: repository.NewReviewIncentiveRepository(db),
	}

	// -------- 基础服务 --------
	notifier := service.NewLogNotifier(zl)
	storageSvc := initStorageService(cfg, zl)

	var geocoder service.Geocoder
	if cfg.Geocoder.Enabled {
		geocoder = service.NewNominatimGeocoder(service.GeocoderConfig{
			BaseURL:   cfg.Geocoder.BaseURL,
			UserAgent: cfg.Geocoder.UserAgent,
			Timeout:   cfg.Geocoder.Timeout,
		})
	}

	// -------- 业务服务 --------
	listingSvc := service.NewListingService(
		repos.Listing,
		service.NewServiceSettingsSynchronizer(repos.ServiceSettings, zl),
		service.NewReviewIncentiveSynchronizer(repos.ReviewIncentive, zl),
		middleware.ContextAuthProvider{},
		notifier,
		zl,
		cfg.Wizard.SubmitTimeout,
	)

	wizardDeps := service.WizardDeps{
		Listings:   repos.Listing,
		Incentives: repos.ReviewIncentive,
		Submitter:  listingSvc,
		Geocoder:   geocoder,
		Notifier:   notifier,
		Logger:     zl,
		SessionTTL: cfg.Wizard.SessionTTL,
	}
	// 存储不可用时上传接口返回 503，照片地址不做改写
	if storageSvc != nil {
		wizardDeps.Uploader = storageSvc
		wizardDeps.Photos = storageSvc
	}
	wizardSvc := service.NewWizardService(wizardDeps)

	services := &Services{
		Listing:  listingSvc,
		Wizard:   wizardSvc,
		Storage:  storageSvc,
		Geocoder: geocoder,
		Notifier: notifier,
	}

	// -------- 定时任务 --------
	tasks := task.NewTaskManager(&task.TaskManagerDeps{
		Listings: repos.Listing,
		Sessions: wizardSvc,
		Logger:   zl,
	}, &task.TaskManagerConfig{
		ExpiryEnabled:  cfg.Task.ExpiryEnabled,
		ExpirySpec:     cfg.Task.ExpirySpec,
		CleanupEnabled: cfg.Task.CleanupEnabled,
		CleanupSpec:    cfg.Task.CleanupSpec,
	})

	return &Dependencies{
		DB:          db,
		Repos:       repos,
		Services:    services,
		Controller:  controller.NewWizardController(wizardSvc, listingSvc, zl),
		RateLimiter: middleware.NewCooldownLimiter(),
		Tasks:       tasks,
	}
}

// initStorageService 初始化存储服务
func initStorageService(cfg *config.Config, zl *zap.Logger) *service.StorageService {
	storageSvc, err := service.NewStorageService(service.StorageConfig{
		Provider:    cfg.Storage.Provider,
		Bucket:      cfg.Storage.Bucket,
		Region:      cfg.Storage.Region,
		AccessKey:   cfg.Storage.AccessKey,
		SecretKey:   cfg.Storage.SecretKey,
		Endpoint:    cfg.Storage.Endpoint,
		CDNDomain:   cfg.Storage.CDNDomain,
		BasePath:    cfg.Storage.BasePath,
		Concurrency: cfg.Storage.Concurrency,
	}, zl)
	if err != nil {
		zl.Warn("存储服务初始化失败", zap.Error(err))
		return nil
	}
	return storageSvc
}

// setupEngine 创建 gin 引擎并注册路由
func setupEngine(cfg *config.Config, deps *Dependencies) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// 本地存储时直接托管上传目录
	if cfg.Storage.Provider == "local" && deps.Services.Storage != nil {
		r.Static("/uploads", cfg.Storage.BasePath)
	}

	router.InitRoutes(r, deps.Controller, deps.RateLimiter)
	return r
}

// ==================== 服务启动 ====================

// startServer 启动服务，收到退出信号后优雅关闭
func startServer(cfg *config.Config, r *gin.Engine, zl *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		zl.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("服务强制关闭", zap.Error(err))
		return
	}

	zl.Info("服务已退出")
}
