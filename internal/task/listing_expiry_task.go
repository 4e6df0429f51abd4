package task

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultExpirySpec 每 10 分钟扫描一次
const DefaultExpirySpec = "0 0/10 * * * *"

// ListingExpirer 标记过期刊登
type ListingExpirer interface {
	MarkExpired(ctx context.Context, before time.Time) (int64, error)
}

// ListingExpiryTask 刊登过期巡检：有效期已过的 active 刊登改为 expired
type ListingExpiryTask struct {
	listings ListingExpirer
	Cron     *cron.Cron
	spec     string
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewListingExpiryTask(listings ListingExpirer, spec string, logger *zap.Logger) *ListingExpiryTask {
	if spec == "" {
		spec = DefaultExpirySpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingExpiryTask{
		listings: listings,
		Cron:     cron.New(cron.WithSeconds()), // 支持秒级控制
		spec:     spec,
		timeout:  time.Minute,
		logger:   logger.Named("listing_expiry"),
		now:      time.Now,
	}
}

// Start 启动定时任务，启动时先执行一次
func (t *ListingExpiryTask) Start() error {
	if _, err := t.Cron.AddFunc(t.spec, t.run); err != nil {
		return err
	}

	go t.run()

	t.Cron.Start()
	t.logger.Info("刊登过期巡检已启动", zap.String("spec", t.spec))
	return nil
}

// Stop 停止定时任务，等待正在执行的任务结束
func (t *ListingExpiryTask) Stop() {
	<-t.Cron.Stop().Done()
}

func (t *ListingExpiryTask) run() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	t.Execute(ctx)
}

// Execute 执行一次巡检，返回本轮过期的刊登数
func (t *ListingExpiryTask) Execute(ctx context.Context) int64 {
	n, err := t.listings.MarkExpired(ctx, t.now())
	if err != nil {
		t.logger.Error("刊登过期巡检失败", zap.Error(err))
		return 0
	}
	if n > 0 {
		t.logger.Info("刊登已过期", zap.Int64("count", n))
	}
	return n
}
