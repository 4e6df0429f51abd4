package task

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCleanupSpec 每 5 分钟回收一次
const DefaultCleanupSpec = "0 0/5 * * * *"

// SessionCleaner 回收空闲会话
type SessionCleaner interface {
	CleanupIdle(now time.Time) int
	SessionCount() int
}

// SessionCleanupTask 回收空闲的向导会话
type SessionCleanupTask struct {
	sessions SessionCleaner
	Cron     *cron.Cron
	spec     string
	logger   *zap.Logger
	now      func() time.Time
}

func NewSessionCleanupTask(sessions SessionCleaner, spec string, logger *zap.Logger) *SessionCleanupTask {
	if spec == "" {
		spec = DefaultCleanupSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionCleanupTask{
		sessions: sessions,
		Cron:     cron.New(cron.WithSeconds()),
		spec:     spec,
		logger:   logger.Named("session_cleanup"),
		now:      time.Now,
	}
}

// Start 启动定时任务
func (t *SessionCleanupTask) Start() error {
	if _, err := t.Cron.AddFunc(t.spec, func() { t.Execute() }); err != nil {
		return err
	}

	t.Cron.Start()
	t.logger.Info("向导会话回收已启动", zap.String("spec", t.spec))
	return nil
}

// Stop 停止定时任务
func (t *SessionCleanupTask) Stop() {
	<-t.Cron.Stop().Done()
}

// Execute 回收一次，返回回收数量
func (t *SessionCleanupTask) Execute() int {
	removed := t.sessions.CleanupIdle(t.now())
	if removed > 0 {
		t.logger.Info("空闲向导会话已回收",
			zap.Int("removed", removed),
			zap.Int("remaining", t.sessions.SessionCount()),
		)
	}
	return removed
}
