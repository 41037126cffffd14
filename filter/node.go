package filter

import (
	"context"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/utils"
)

// FilterNode 依次应用 Filters，任意一个返回 true 的商品被移除，
// 并在该商品上记录 filtered 标签（Source 为过滤器名）。保留的商品维持输入顺序。
type FilterNode struct {
	Filters []Filter

	// FailClosed 为 true 时过滤器报错会中断 Pipeline；
	// 默认跳过出错的过滤器，商品照常保留。
	FailClosed bool
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	active := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		p, ok := f.(Preparer)
		if !ok {
			active = append(active, f)
			continue
		}
		prepared, err := p.Prepare(ctx, rctx)
		if err != nil {
			if n.FailClosed {
				return nil, err
			}
			continue
		}
		active = append(active, prepared)
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		by, err := n.match(ctx, rctx, active, item)
		if err != nil {
			return nil, err
		}
		if by != "" {
			item.PutLabel("filtered", utils.Label{Value: "true", Source: by})
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// match 返回第一个命中的过滤器名，没有命中返回空字符串。
func (n *FilterNode) match(ctx context.Context, rctx *core.RecommendContext, filters []Filter, item *core.Item) (string, error) {
	for _, f := range filters {
		hit, err := f.ShouldFilter(ctx, rctx, item)
		if err != nil {
			if n.FailClosed {
				return "", err
			}
			continue
		}
		if hit {
			return f.Name(), nil
		}
	}
	return "", nil
}
