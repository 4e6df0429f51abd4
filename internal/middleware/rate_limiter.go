package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ==================== CooldownLimiter 冷却限流器 ====================

// CooldownLimiter 按 key 限制两次操作的最小间隔
// 防止重复提交，以及超出逆地理编码服务的调用频率限制
type CooldownLimiter struct {
	locks sync.Map // key -> *lockEntry
	now   func() time.Time
}

// lockEntry 锁条目
type lockEntry struct {
	lastTime time.Time
	mu       sync.Mutex
}

func NewCooldownLimiter() *CooldownLimiter {
	return &CooldownLimiter{now: time.Now}
}

// CheckResult 检查结果
type CheckResult struct {
	Allowed    bool          // 是否允许
	RetryAfter time.Duration // 剩余冷却时间
}

// Check 检查是否允许执行，允许时记录本次执行时间
func (r *CooldownLimiter) Check(key string, interval time.Duration) CheckResult {
	actual, _ := r.locks.LoadOrStore(key, &lockEntry{})
	entry := actual.(*lockEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := r.now()
	elapsed := now.Sub(entry.lastTime)
	if elapsed < interval {
		return CheckResult{Allowed: false, RetryAfter: interval - elapsed}
	}

	entry.lastTime = now
	return CheckResult{Allowed: true}
}

// Reset 重置指定 key 的限流
func (r *CooldownLimiter) Reset(key string) {
	r.locks.Delete(key)
}

// ==================== 操作类型 ====================

// Action 受限流的操作
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionGeocode Action = "geocode"
	ActionUpload  Action = "upload"
)

// DefaultIntervals 默认冷却间隔
var DefaultIntervals = map[Action]time.Duration{
	ActionSubmit:  3 * time.Second,
	ActionGeocode: 1 * time.Second, // 公共 Nominatim 要求每秒不超过 1 次
	ActionUpload:  2 * time.Second,
}

// GetInterval 获取操作的默认间隔
func GetInterval(action Action) time.Duration {
	if interval, ok := DefaultIntervals[action]; ok {
		return interval
	}
	return time.Second
}

// UserActionKey 用户级限流 Key
func UserActionKey(userID string, action Action) string {
	return fmt.Sprintf("user:%s:%s", userID, action)
}

// ==================== Gin 中间件 ====================

// UserRateLimit 按当前用户 + 操作类型限流，需放在 JWTAuth 之后
// interval 为 0 表示使用默认值
func UserRateLimit(limiter *CooldownLimiter, action Action, interval time.Duration) gin.HandlerFunc {
	return UserRateLimitWhen(limiter, action, interval, nil)
}

// UserRateLimitWhen 仅在 when 返回 true 时计入限流，when 为 nil 时总是计入
// 用于同一路由只有部分请求属于受限操作的场景，如最后一步的 next 等同于提交
func UserRateLimitWhen(limiter *CooldownLimiter, action Action, interval time.Duration, when func(c *gin.Context) bool) gin.HandlerFunc {
	if interval == 0 {
		interval = GetInterval(action)
	}

	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" || (when != nil && !when(c)) {
			c.Next()
			return
		}

		result := limiter.Check(UserActionKey(userID, action), interval)
		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": formatRetryMessage(result.RetryAfter),
				"data": gin.H{
					"retry_after": int(result.RetryAfter.Seconds()),
					"action":      action,
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// formatRetryMessage 格式化重试提示信息
func formatRetryMessage(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		return "操作过于频繁，请稍后重试"
	}
	return fmt.Sprintf("操作过于频繁，请 %d 秒后重试", seconds)
}
