package service

import "context"

// CurrentUser 当前登录用户
type CurrentUser struct {
	ID string
}

// AuthProvider 解析当前请求的用户身份，未登录返回 false
type AuthProvider interface {
	CurrentUser(ctx context.Context) (*CurrentUser, bool)
}

// AuthProviderFunc 函数适配器
type AuthProviderFunc func(ctx context.Context) (*CurrentUser, bool)

func (f AuthProviderFunc) CurrentUser(ctx context.Context) (*CurrentUser, bool) {
	return f(ctx)
}
