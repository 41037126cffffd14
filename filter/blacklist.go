package filter

import (
	"context"
	"strings"

	"github.com/rushteam/grocerec/core"
)

// BlacklistFilter 移除缺货或下架的商品。
// 内存列表 ItemIDs 与 Store 中 Key 对应的列表取并集。
//
// Key 可以引用请求参数，例如 "grocerec:out_of_stock:{store_id}" 会用
// rctx.Params["store_id"] 替换；参数缺失时占位符保持原样。
type BlacklistFilter struct {
	ItemIDs []string
	Store   ListStore
	Key     string
}

// NewBlacklistFilter 创建黑名单过滤器，store 可以为 nil。
func NewBlacklistFilter(itemIDs []string, store ListStore, key string) *BlacklistFilter {
	return &BlacklistFilter{ItemIDs: itemIDs, Store: store, Key: key}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

// Prepare 读取一次 Store 列表，与内存列表合并成本次请求使用的集合。
func (f *BlacklistFilter) Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	var stored []string
	if f.Store != nil && f.Key != "" {
		ids, err := f.Store.List(ctx, expandKey(f.Key, rctx))
		if err != nil {
			return nil, err
		}
		stored = ids
	}
	return newSetFilter(f.Name(), f.ItemIDs, stored), nil
}

// ShouldFilter 单独使用（不经过 FilterNode）时每次都读取 Store。
func (f *BlacklistFilter) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	prepared, err := f.Prepare(ctx, rctx)
	if err != nil {
		return false, err
	}
	return prepared.ShouldFilter(ctx, rctx, item)
}

// expandKey 从左到右扫描一次，把 {name} 替换为 rctx.Params[name]。
// 替换进来的值不会再被展开；参数缺失的占位符保持原样，继续处理后面的部分。
func expandKey(key string, rctx *core.RecommendContext) string {
	if strings.IndexByte(key, '{') < 0 {
		return key
	}
	var b strings.Builder
	b.Grow(len(key))
	rest := key
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		end += open
		b.WriteString(rest[:open])
		if v, ok := rctx.Param(rest[open+1 : end]); ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[open : end+1])
		}
		rest = rest[end+1:]
	}
	b.WriteString(rest)
	return b.String()
}
