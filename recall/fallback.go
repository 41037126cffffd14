package recall

import (
	"context"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/utils"
)

// Fallback 按顺序尝试 Sources，返回第一个非空结果。
// 用户不存在（NOT_FOUND）视为该召回源为空，继续下一个；其他错误直接返回。
//
// 典型用法是新用户冷启动：recall.blend 之后接 recall.seasonal_hot。
type Fallback struct {
	Sources []Source
}

func (r *Fallback) Name() string        { return "recall.fallback" }
func (r *Fallback) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Fallback) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Fallback) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	var lastErr error
	for _, src := range r.Sources {
		items, err := src.Recall(ctx, rctx)
		if err != nil {
			if !core.IsNotFound(err) {
				return nil, err
			}
			lastErr = err
			continue
		}
		if len(items) == 0 {
			continue
		}
		for _, it := range items {
			it.PutLabel("fallback_source", utils.Label{Value: src.Name(), Source: r.Name()})
		}
		return items, nil
	}
	// 全部为空时，如果有召回源报告用户不存在，保留该错误
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}
