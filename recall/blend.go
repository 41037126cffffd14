package recall

import (
	"context"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/utils"
)

// Scorer 是 Blend 依赖的打分接口，由 *engine.Engine 实现。
// 打分使用 ctx 上固定的快照（engine.(*Engine).Pin），没有固定时使用当前快照。
type Scorer interface {
	ScoreContext(ctx context.Context, userID, season string) ([]engine.Scored, error)
}

// Blend 是混合打分召回：把引擎给出的全部候选（已按分数排序）转成 Item。
//
// 每个 Item 写入：
//   - Score：总分
//   - Features：item_sim / tag_sim / seasonal 三个分量
//   - Label：recall_source=blend
//
// 用户不存在时返回 NOT_FOUND 错误，不做降级。
type Blend struct {
	Engine Scorer

	// Limit 限制输出候选数，0 表示不限制（通常交给 rerank.TopNNode 截断）
	Limit int
}

func (r *Blend) Name() string        { return "recall.blend" }
func (r *Blend) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Blend) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Blend) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if rctx == nil {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "recall.blend: nil context")
	}

	scored, err := r.Engine.ScoreContext(ctx, rctx.UserID, rctx.Season)
	if err != nil {
		return nil, err
	}
	if r.Limit > 0 && len(scored) > r.Limit {
		scored = scored[:r.Limit]
	}

	out := make([]*core.Item, 0, len(scored))
	for _, s := range scored {
		it := core.NewItem(s.ItemID)
		it.Score = s.Total
		it.Features["item_sim"] = s.ItemSimilarity
		it.Features["tag_sim"] = s.TagSimilarity
		it.Features["seasonal"] = s.Seasonal
		it.PutLabel("recall_source", utils.Label{Value: "blend", Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}
