package recall

import (
	"context"

	"github.com/rushteam/grocerec/core"
)

// Source 是一个召回源。本包的召回源同时实现 pipeline.Node，
// 可以单独放进 Pipeline，也可以组合进 Fallback。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

var (
	_ Source = (*Blend)(nil)
	_ Source = (*SeasonalHot)(nil)
	_ Source = (*Fallback)(nil)
)
