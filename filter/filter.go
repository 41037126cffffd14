package filter

import (
	"context"

	"github.com/rushteam/grocerec/core"
)

// Filter 判断一个 Item 是否应该被过滤掉。
// 返回 true 表示移除，false 表示保留。
type Filter interface {
	Name() string

	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 由需要按请求预取数据的过滤器实现（例如从 Store 读取列表）。
// FilterNode 每次 Process 调用一次 Prepare，返回的 Filter 只在本次请求内使用，
// 避免逐个商品访问存储。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// setFilter 按预取的 ID 集合过滤。
type setFilter struct {
	name string
	ids  map[string]struct{}
}

func newSetFilter(name string, lists ...[]string) *setFilter {
	f := &setFilter{name: name, ids: make(map[string]struct{})}
	for _, list := range lists {
		for _, id := range list {
			f.ids[id] = struct{}{}
		}
	}
	return f
}

func (f *setFilter) Name() string { return f.name }

func (f *setFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	_, ok := f.ids[item.ID]
	return ok, nil
}
