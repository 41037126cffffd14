// Package rerank 提供重排阶段的 Node。
package rerank

import (
	"context"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，保留前 N 个商品。
// 通常放在 Pipeline 最后，召回输出已按分数降序排列。
//
// N 的取值顺序：节点配置的 N > RecommendContext.TopN > engine.DefaultTopN。
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.Blend{Engine: eng},
//	        &filter.FilterNode{...},
//	        &rerank.TopNNode{},
//	    },
//	}
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 && rctx != nil {
		if rctx.TopN < 0 {
			return nil, core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidInput,
				"rerank.topn: top_n must be positive, got %d", rctx.TopN)
		}
		limit = rctx.TopN
	}
	if limit <= 0 {
		limit = engine.DefaultTopN
	}

	if len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
