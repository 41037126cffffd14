package filter

import (
	"context"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/model"
)

// BundleProvider 返回当前生效的数据包，由 *engine.Engine 实现。
type BundleProvider interface {
	Bundle() *model.Bundle
}

// PurchasedFilter 过滤掉用户已经购买过（购买次数 > 0）的商品。
// 优先使用 ctx 上固定的快照（model.WithBundle），与 recall.blend 打分用的数据保持一致。
// recall.blend 的输出已经排除了已购商品，该过滤器主要配合 recall.seasonal_hot 使用。
type PurchasedFilter struct {
	Bundles BundleProvider
}

func (f *PurchasedFilter) Name() string {
	return "filter.purchased"
}

func (f *PurchasedFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil {
		return false, nil
	}
	b, ok := model.BundleFromContext(ctx)
	if !ok && f.Bundles != nil {
		b = f.Bundles.Bundle()
	}
	if b == nil {
		return false, nil
	}
	row, ok := b.UserRow(rctx.UserID)
	if !ok {
		return false, nil
	}
	count, ok := row.Get(item.ID)
	return ok && count > 0, nil
}
