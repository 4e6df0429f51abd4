package task

import (
	"go.uber.org/zap"
)

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一管理后台定时任务
// 管理范围：刊登过期巡检、向导会话回收
type TaskManager struct {
	expiryTask  *ListingExpiryTask
	cleanupTask *SessionCleanupTask
	logger      *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Listings ListingExpirer
	Sessions SessionCleaner
	Logger   *zap.Logger
}

// TaskManagerConfig 任务管理器配置
type TaskManagerConfig struct {
	// 刊登过期巡检
	ExpiryEnabled bool
	ExpirySpec    string

	// 向导会话回收
	CleanupEnabled bool
	CleanupSpec    string
}

// DefaultConfig 默认配置
func DefaultConfig() *TaskManagerConfig {
	return &TaskManagerConfig{
		ExpiryEnabled:  true,
		ExpirySpec:     DefaultExpirySpec,
		CleanupEnabled: true,
		CleanupSpec:    DefaultCleanupSpec,
	}
}

// NewTaskManager 创建任务管理器
func NewTaskManager(deps *TaskManagerDeps, cfg *TaskManagerConfig) *TaskManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tm := &TaskManager{logger: logger}

	if cfg.ExpiryEnabled && deps.Listings != nil {
		tm.expiryTask = NewListingExpiryTask(deps.Listings, cfg.ExpirySpec, logger)
	}
	if cfg.CleanupEnabled && deps.Sessions != nil {
		tm.cleanupTask = NewSessionCleanupTask(deps.Sessions, cfg.CleanupSpec, logger)
	}
	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务，任一任务启动失败时停止已启动的任务
func (tm *TaskManager) Start() error {
	tm.logger.Info("[TaskManager] 正在启动定时任务...")

	if tm.expiryTask != nil {
		if err := tm.expiryTask.Start(); err != nil {
			return err
		}
	}
	if tm.cleanupTask != nil {
		if err := tm.cleanupTask.Start(); err != nil {
			if tm.expiryTask != nil {
				tm.expiryTask.Stop()
			}
			return err
		}
	}

	tm.logger.Info("[TaskManager] 定时任务已全部启动")
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	if tm.expiryTask != nil {
		tm.expiryTask.Stop()
	}
	if tm.cleanupTask != nil {
		tm.cleanupTask.Stop()
	}
	tm.logger.Info("[TaskManager] 定时任务已全部停止")
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"listing_expiry":  tm.expiryTask != nil,
		"session_cleanup": tm.cleanupTask != nil,
	}
}
