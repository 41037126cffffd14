package filter

import (
	"context"

	"github.com/rushteam/grocerec/core"
)

// UserBlockFilter 移除用户主动屏蔽的商品（过敏原、不再购买等）。
// 屏蔽列表存放在 {KeyPrefix}:{UserID}。
type UserBlockFilter struct {
	Store     ListStore
	KeyPrefix string // 默认 "user:block"
}

// NewUserBlockFilter 创建用户屏蔽过滤器。
func NewUserBlockFilter(store ListStore, keyPrefix string) *UserBlockFilter {
	return &UserBlockFilter{Store: store, KeyPrefix: keyPrefix}
}

func (f *UserBlockFilter) Name() string {
	return "filter.user_block"
}

func (f *UserBlockFilter) key(userID string) string {
	prefix := f.KeyPrefix
	if prefix == "" {
		prefix = "user:block"
	}
	return prefix + ":" + userID
}

// Prepare 读取当前用户的屏蔽列表；匿名请求或未配置 Store 时不过滤任何商品。
func (f *UserBlockFilter) Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	if f.Store == nil || rctx == nil || rctx.UserID == "" {
		return newSetFilter(f.Name()), nil
	}
	ids, err := f.Store.List(ctx, f.key(rctx.UserID))
	if err != nil {
		return nil, err
	}
	return newSetFilter(f.Name(), ids), nil
}

func (f *UserBlockFilter) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	prepared, err := f.Prepare(ctx, rctx)
	if err != nil {
		return false, err
	}
	return prepared.ShouldFilter(ctx, rctx, item)
}
