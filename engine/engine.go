// Package engine 实现混合打分推荐：协同购买相似度 + 标签相似度 + 季节热度。
//
// 打分规则（对用户已购集合 P，p ∈ P）：
//
//	score(s) += Weights.ItemSimilarity × itemSim(p, s)   s ∉ P, s ≠ p
//	score(t) += Weights.TagSimilarity  × tagSim(p, t)    t ∉ P, t ≠ p
//	score(e) += Weights.Seasonal       × purchase_count  e ∉ P，记录季节与请求一致
//
// 按总分降序返回前 topN 个商品 ID。同分时按商品第一次进入累加器的顺序排列：
// 先按已购商品在用户行中的顺序，行内按相似度降序，最后是季节记录顺序。
// 这是一个显式约定的任意规则，只为保证结果确定。
package engine

import (
	"context"
	"math"
	"sort"
	"sync/atomic"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/model"
)

// DefaultTopN 是未指定 topN 时的返回数量。
const DefaultTopN = 5

// Weights 是三种信号的线性权重。
type Weights struct {
	ItemSimilarity float64 `yaml:"item_similarity" json:"item_similarity" koanf:"item_similarity"`
	TagSimilarity  float64 `yaml:"tag_similarity" json:"tag_similarity" koanf:"tag_similarity"`
	Seasonal       float64 `yaml:"seasonal" json:"seasonal" koanf:"seasonal"`
}

// DefaultWeights 返回默认权重（0.5 / 0.3 / 0.01）。
func DefaultWeights() Weights {
	return WeightsFrom(&core.DefaultEngineConfig{})
}

// WeightsFrom 从 core.EngineConfig 读取权重。
func WeightsFrom(cfg core.EngineConfig) Weights {
	return Weights{
		ItemSimilarity: cfg.DefaultItemSimilarityWeight(),
		TagSimilarity:  cfg.DefaultTagSimilarityWeight(),
		Seasonal:       cfg.DefaultSeasonalWeight(),
	}
}

// Validate 拒绝负权重与 NaN/Inf：负权重会让"相似度升高、排名不降"不再成立。
func (w Weights) Validate() error {
	for _, v := range []float64{w.ItemSimilarity, w.TagSimilarity, w.Seasonal} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return core.Errorf(core.ModuleEngine, core.ErrorCodeInvalidInput,
				"engine: weights must be finite and non-negative, got %+v", w)
		}
	}
	return nil
}

// Scored 是一个候选商品的得分明细。
type Scored struct {
	ItemID         string  `json:"item"`
	ItemSimilarity float64 `json:"item_similarity"`
	TagSimilarity  float64 `json:"tag_similarity"`
	Seasonal       float64 `json:"seasonal"`
	Total          float64 `json:"score"`
}

// Engine 持有当前 Bundle 与权重，可被多个 goroutine 并发调用。
// Bundle 通过原子指针整体替换，进行中的请求始终使用开始时拿到的快照。
type Engine struct {
	bundle  atomic.Pointer[model.Bundle]
	weights Weights
}

// New 创建引擎。bundle 不能为空。
func New(bundle *model.Bundle, weights Weights) (*Engine, error) {
	if bundle == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: nil bundle")
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{weights: weights}
	e.bundle.Store(bundle)
	return e, nil
}

// Weights 返回引擎使用的权重。
func (e *Engine) Weights() Weights {
	return e.weights
}

// Bundle 返回当前快照。
func (e *Engine) Bundle() *model.Bundle {
	return e.bundle.Load()
}

// Pin 把当前快照固定到 ctx 上；ctx 已经固定过时原样返回。
// 请求入口调用一次，之后 Reload 不会影响这次请求里的任何节点。
func (e *Engine) Pin(ctx context.Context) context.Context {
	if _, ok := model.BundleFromContext(ctx); ok {
		return ctx
	}
	return model.WithBundle(ctx, e.bundle.Load())
}

// Snapshot 优先返回 ctx 上固定的快照，否则返回当前快照。
func (e *Engine) Snapshot(ctx context.Context) *model.Bundle {
	if b, ok := model.BundleFromContext(ctx); ok {
		return b
	}
	return e.bundle.Load()
}

// Reload 原子替换 Bundle，返回被替换的旧 Bundle。
func (e *Engine) Reload(bundle *model.Bundle) (*model.Bundle, error) {
	if bundle == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: nil bundle")
	}
	return e.bundle.Swap(bundle), nil
}

// Users 返回所有已知用户 ID（供调用方做输入选择）。
func (e *Engine) Users() []string {
	return e.bundle.Load().Users()
}

// Recommend 返回用户在指定季节下得分最高的 topN 个商品 ID。
//
// 错误：
//   - 用户不存在：NOT_FOUND（LookupError）
//   - topN <= 0：INVALID_INPUT
//
// 候选不足 topN 时返回全部候选，不做填充。
func (e *Engine) Recommend(userID, season string, topN int) ([]string, error) {
	if topN <= 0 {
		return nil, core.Errorf(core.ModuleEngine, core.ErrorCodeInvalidInput,
			"engine: topN must be positive, got %d", topN)
	}
	scored, err := Score(e.bundle.Load(), e.weights, userID, season)
	if err != nil {
		return nil, err
	}
	if len(scored) > topN {
		scored = scored[:topN]
	}
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.ItemID
	}
	return ids, nil
}

// Score 返回用户在指定季节下全部候选的得分明细（已排序）。
func (e *Engine) Score(userID, season string) ([]Scored, error) {
	return Score(e.bundle.Load(), e.weights, userID, season)
}

// ScoreContext 与 Score 相同，但使用 ctx 上固定的快照（见 Pin）。
func (e *Engine) ScoreContext(ctx context.Context, userID, season string) ([]Scored, error) {
	return Score(e.Snapshot(ctx), e.weights, userID, season)
}

// Score 是纯函数版本：只读 bundle，不保留任何状态。
func Score(b *model.Bundle, w Weights, userID, season string) ([]Scored, error) {
	userRow, ok := b.UserRow(userID)
	if !ok {
		return nil, core.Errorf(core.ModuleEngine, core.ErrorCodeNotFound,
			"engine: user not found: %q", userID)
	}

	purchased := make(map[string]struct{}, len(userRow))
	order := make([]string, 0, len(userRow))
	for _, e := range userRow {
		if e.Score > 0 {
			purchased[e.ItemID] = struct{}{}
			order = append(order, e.ItemID)
		}
	}

	acc := newAccumulator()
	for _, p := range order {
		if row, ok := b.ItemSimilarity(p); ok {
			for _, s := range row {
				if s.ItemID == p {
					continue
				}
				if _, bought := purchased[s.ItemID]; bought {
					continue
				}
				acc.get(s.ItemID).ItemSimilarity += w.ItemSimilarity * s.Score
			}
		}
		if row, ok := b.TagSimilarity(p); ok {
			for _, t := range row {
				if t.ItemID == p {
					continue
				}
				if _, bought := purchased[t.ItemID]; bought {
					continue
				}
				acc.get(t.ItemID).TagSimilarity += w.TagSimilarity * t.Score
			}
		}
	}

	for _, rec := range b.Seasonal(season) {
		if _, bought := purchased[rec.ItemID]; bought {
			continue
		}
		acc.get(rec.ItemID).Seasonal += w.Seasonal * float64(rec.PurchaseCount)
	}

	return acc.ranked(), nil
}

// accumulator 记录候选第一次出现的顺序，作为同分时的次序。
type accumulator struct {
	index map[string]int
	items []Scored
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[string]int)}
}

func (a *accumulator) get(itemID string) *Scored {
	i, ok := a.index[itemID]
	if !ok {
		i = len(a.items)
		a.index[itemID] = i
		a.items = append(a.items, Scored{ItemID: itemID})
	}
	return &a.items[i]
}

func (a *accumulator) ranked() []Scored {
	out := a.items
	for i := range out {
		out[i].Total = out[i].ItemSimilarity + out[i].TagSimilarity + out[i].Seasonal
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}
