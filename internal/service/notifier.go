package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ==================== 提示级别 ====================

type AlertLevel string

const (
	AlertSuccess AlertLevel = "success"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

// Alert 展示给用户的提示
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier 提示接收方，发出即忘，不关心是否送达
type Notifier interface {
	Notify(ctx context.Context, alert Alert)
}

// ==================== 日志实现 ====================

// LogNotifier 把提示写入日志
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, alert Alert) {
	fields := []zap.Field{zap.String("title", alert.Title), zap.String("message", alert.Message)}
	switch alert.Level {
	case AlertError:
		n.logger.Error("用户提示", fields...)
	case AlertWarning:
		n.logger.Warn("用户提示", fields...)
	default:
		n.logger.Info("用户提示", fields...)
	}
}

// ==================== 请求级收集 ====================

// AlertRecorder 收集单个请求产生的提示，随响应一起返回
type AlertRecorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func NewAlertRecorder() *AlertRecorder {
	return &AlertRecorder{alerts: []Alert{}}
}

func (r *AlertRecorder) Notify(_ context.Context, alert Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
}

// Alerts 已收集的提示副本
func (r *AlertRecorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert{}, r.alerts...)
}

type alertRecorderKey struct{}

// WithAlertRecorder 把收集器挂到 context 上
func WithAlertRecorder(ctx context.Context, r *AlertRecorder) context.Context {
	return context.WithValue(ctx, alertRecorderKey{}, r)
}

// AlertRecorderFrom 取出 context 上的收集器
func AlertRecorderFrom(ctx context.Context) (*AlertRecorder, bool) {
	r, ok := ctx.Value(alertRecorderKey{}).(*AlertRecorder)
	return r, ok
}

// notify 同时发给常驻接收方和请求级收集器
func notify(ctx context.Context, base Notifier, alert Alert) {
	if base != nil {
		base.Notify(ctx, alert)
	}
	if r, ok := AlertRecorderFrom(ctx); ok {
		r.Notify(ctx, alert)
	}
}
