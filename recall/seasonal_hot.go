package recall

import (
	"context"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/model"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/logging"
	"github.com/rushteam/grocerec/pkg/utils"
)

// SeasonalHot 是季节热门召回源，从 KeyValueStore 的有序集合读取当季热销商品。
// 有序集合由 model.Publish 写入，key 为 {KeyPrefix}:hot:{season}，分数为购买次数。
//
// 与 Blend 不同，它不要求用户存在，适合首页冷启动榜单。
// Store 读取失败或为空时使用内存中的 IDs 作为 fallback，并用 fallback_reason 标签
// 区分两种情况：store_error（Source 为错误信息，同时打 warn 日志）和 empty。
type SeasonalHot struct {
	Store     core.KeyValueStore
	KeyPrefix string
	Limit     int      // 默认 100
	IDs       []string // fallback 内存列表
}

func (r *SeasonalHot) Name() string        { return "recall.seasonal_hot" }
func (r *SeasonalHot) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *SeasonalHot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *SeasonalHot) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = 100
	}

	var (
		members []core.ScoredMember
		err     error
	)
	if r.Store != nil && rctx != nil && rctx.Season != "" {
		key := model.HotKey(r.KeyPrefix, rctx.Season)
		members, err = r.Store.ZRevRangeWithScores(ctx, key, 0, int64(limit-1))
		if err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("seasonal hot read failed, using fallback")
		}
	}

	if err != nil {
		return r.fallback(limit, utils.Label{Value: "store_error", Source: err.Error()}), nil
	}
	if len(members) == 0 {
		return r.fallback(limit, utils.Label{Value: "empty", Source: r.Name()}), nil
	}

	out := make([]*core.Item, 0, len(members))
	for _, m := range members {
		it := core.NewItem(m.Member)
		it.Score = m.Score
		it.Features["seasonal_count"] = m.Score
		it.PutLabel("recall_source", utils.Label{Value: "seasonal_hot", Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}

// fallback 在榜单不可用时返回内存列表，分数为 0。
func (r *SeasonalHot) fallback(limit int, reason utils.Label) []*core.Item {
	ids := r.IDs
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		it := core.NewItem(id)
		it.PutLabel("recall_source", utils.Label{Value: "seasonal_hot", Source: "fallback"})
		it.PutLabel("fallback_reason", reason)
		out = append(out, it)
	}
	return out
}
