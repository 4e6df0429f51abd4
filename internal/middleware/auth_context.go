package middleware

import (
	"context"

	"listing_wizard_v1/internal/service"
)

// ==================== 用户上下文 ====================

type userContextKey struct{}

// WithUser 注入当前用户到 context
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, &service.CurrentUser{ID: userID})
}

// UserFromContext 从 context 获取当前用户
func UserFromContext(ctx context.Context) (*service.CurrentUser, bool) {
	user, ok := ctx.Value(userContextKey{}).(*service.CurrentUser)
	if !ok || user == nil || user.ID == "" {
		return nil, false
	}
	return user, true
}

// ContextAuthProvider 从 request context 取当前用户
// 与 JWTAuth 配合使用，提交服务在写入前以此确认登录状态
type ContextAuthProvider struct{}

func (ContextAuthProvider) CurrentUser(ctx context.Context) (*service.CurrentUser, bool) {
	return UserFromContext(ctx)
}

var _ service.AuthProvider = ContextAuthProvider{}
