package model

import "context"

type bundleKey struct{}

// WithBundle 把 Bundle 固定在 ctx 上，同一次请求里的所有节点读同一份快照。
func WithBundle(ctx context.Context, b *Bundle) context.Context {
	return context.WithValue(ctx, bundleKey{}, b)
}

// BundleFromContext 返回 WithBundle 固定的快照。
func BundleFromContext(ctx context.Context) (*Bundle, bool) {
	if ctx == nil {
		return nil, false
	}
	b, ok := ctx.Value(bundleKey{}).(*Bundle)
	return b, ok && b != nil
}
