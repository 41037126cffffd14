// Package model 定义推荐引擎依赖的四份离线产出数据，并负责从文件或 Store 加载它们。
//
// 四份数据：
//   - 用户-商品交互矩阵：user -> item -> 交互次数（非负）
//   - 商品相似度：item -> item -> 协同购买相似度
//   - 标签相似度：item -> item -> 标签重合相似度（商品可以没有行）
//   - 季节热度：{item, season, purchase_count} 有序记录
//
// Bundle 在构建后只读，可被任意多个 goroutine 共享；热更新通过整体替换 Bundle 完成。
package model

import (
	"math"
	"sort"

	"github.com/rushteam/grocerec/core"
)

// SeasonalRecord 是一条季节热度记录。
type SeasonalRecord struct {
	ItemID        string `json:"item" yaml:"item"`
	Season        string `json:"season" yaml:"season"`
	PurchaseCount int64  `json:"purchase_count" yaml:"purchase_count"`
}

// Bundle 是四份数据的不可变快照。
type Bundle struct {
	userItems *Matrix
	itemSim   *Matrix
	tagSim    *Matrix
	seasonal  []SeasonalRecord
	bySeason  map[string][]SeasonalRecord
}

// Stats 描述 Bundle 的规模，用于日志与监控。
type Stats struct {
	Users           int `json:"users"`
	ItemSimRows     int `json:"item_similarity_rows"`
	TagSimRows      int `json:"tag_similarity_rows"`
	SeasonalRecords int `json:"seasonal_records"`
}

// NewBundle 校验并构建 Bundle。输入会被深拷贝，调用方之后修改输入不影响 Bundle。
// 相似度行按分数降序（稳定）保存，评分时按此顺序遍历。
// tagSim 可以为 nil；userItems 与 itemSim 为 nil 时视为空矩阵。
func NewBundle(userItems, itemSim, tagSim *Matrix, seasonal []SeasonalRecord) (*Bundle, error) {
	if err := validateMatrix("user_item_matrix", userItems, true); err != nil {
		return nil, err
	}
	if err := validateMatrix("item_similarity", itemSim, false); err != nil {
		return nil, err
	}
	if err := validateMatrix("tag_similarity", tagSim, false); err != nil {
		return nil, err
	}

	b := &Bundle{
		userItems: userItems.clone(nil),
		itemSim:   itemSim.clone(sortDesc),
		tagSim:    tagSim.clone(sortDesc),
		seasonal:  make([]SeasonalRecord, 0, len(seasonal)),
		bySeason:  make(map[string][]SeasonalRecord),
	}
	for i, rec := range seasonal {
		if rec.ItemID == "" {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
				"model: seasonal_popularity[%d]: empty item", i)
		}
		if rec.PurchaseCount < 0 {
			return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
				"model: seasonal_popularity[%d]: negative purchase_count %d", i, rec.PurchaseCount)
		}
		b.seasonal = append(b.seasonal, rec)
		b.bySeason[rec.Season] = append(b.bySeason[rec.Season], rec)
	}
	return b, nil
}

func validateMatrix(name string, m *Matrix, counts bool) error {
	if m == nil {
		return nil
	}
	for _, key := range m.keys {
		if key == "" {
			return core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput, "model: %s: empty key", name)
		}
		seen := make(map[string]struct{}, len(m.rows[key]))
		for _, e := range m.rows[key] {
			if e.ItemID == "" {
				return core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
					"model: %s[%s]: empty item", name, key)
			}
			if _, dup := seen[e.ItemID]; dup {
				return core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
					"model: %s[%s]: duplicate item %q", name, key, e.ItemID)
			}
			seen[e.ItemID] = struct{}{}
			if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) {
				return core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
					"model: %s[%s][%s]: non-finite value", name, key, e.ItemID)
			}
			if counts && e.Score < 0 {
				return core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
					"model: %s[%s][%s]: negative count %v", name, key, e.ItemID, e.Score)
			}
		}
	}
	return nil
}

func sortDesc(row Row) Row {
	sort.SliceStable(row, func(i, j int) bool {
		return row[i].Score > row[j].Score
	})
	return row
}

// UserRow 返回用户的交互行（保留原始顺序）。调用方不得修改返回值。
func (b *Bundle) UserRow(userID string) (Row, bool) {
	return b.userItems.Row(userID)
}

// Users 返回所有用户 ID（按加载顺序）。
func (b *Bundle) Users() []string {
	return b.userItems.Keys()
}

// ItemSimilarity 返回商品的相似度行（分数降序）。
func (b *Bundle) ItemSimilarity(itemID string) (Row, bool) {
	return b.itemSim.Row(itemID)
}

// TagSimilarity 返回商品的标签相似度行（分数降序），没有标签数据时 ok 为 false。
func (b *Bundle) TagSimilarity(itemID string) (Row, bool) {
	return b.tagSim.Row(itemID)
}

// Seasonal 返回指定季节的记录（按加载顺序），季节不存在时返回 nil。
func (b *Bundle) Seasonal(season string) []SeasonalRecord {
	return b.bySeason[season]
}

// Seasons 返回出现过的季节标签（排序后）。
func (b *Bundle) Seasons() []string {
	out := make([]string, 0, len(b.bySeason))
	for s := range b.bySeason {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Stats 返回规模统计。
func (b *Bundle) Stats() Stats {
	return Stats{
		Users:           b.userItems.Len(),
		ItemSimRows:     b.itemSim.Len(),
		TagSimRows:      b.tagSim.Len(),
		SeasonalRecords: len(b.seasonal),
	}
}
