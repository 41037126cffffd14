package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/grocerec/core"
)

// StoreLoader 从 core.Store（Redis/内存）加载 Bundle，实现 Source 接口。
//
// Key 布局（KeyPrefix 默认 "grocerec"）：
//   - {KeyPrefix}:index:users        用户 ID 列表（JSON 数组）
//   - {KeyPrefix}:ui:{userID}        用户交互行（JSON [{item, score}]，保留顺序）
//   - {KeyPrefix}:index:isim         有商品相似度行的商品列表
//   - {KeyPrefix}:isim:{itemID}      商品相似度行
//   - {KeyPrefix}:index:tsim         有标签相似度行的商品列表
//   - {KeyPrefix}:tsim:{itemID}      标签相似度行
//   - {KeyPrefix}:seasonal           季节热度记录（JSON 数组）
//   - {KeyPrefix}:hot:{season}       季节热门有序集合（仅 KeyValueStore，供 recall.SeasonalHot 使用）
//   - {KeyPrefix}:index:seasons      已发布热门集合的季节列表，用于清理不再出现的季节
type StoreLoader struct {
	Store     core.Store
	KeyPrefix string

	// BatchSize 是单次 BatchGet 的 key 数量上限，<=0 时使用 500
	BatchSize int
}

// NewStoreLoader 创建一个 Store 加载器。
func NewStoreLoader(s core.Store, keyPrefix string) *StoreLoader {
	return &StoreLoader{Store: s, KeyPrefix: keyPrefix}
}

func (l *StoreLoader) prefix() string {
	if l.KeyPrefix == "" {
		return "grocerec"
	}
	return l.KeyPrefix
}

func (l *StoreLoader) Name() string {
	return l.Store.Name() + ":" + l.prefix()
}

// HotKey 返回季节热门有序集合的 key。
func HotKey(keyPrefix, season string) string {
	if keyPrefix == "" {
		keyPrefix = "grocerec"
	}
	return keyPrefix + ":hot:" + season
}

// Load 读取索引后并发拉取三张矩阵的行。
func (l *StoreLoader) Load(ctx context.Context) (*Bundle, error) {
	p := l.prefix()

	var (
		users, isimIdx, tsimIdx []string
		seasonal                []SeasonalRecord
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		found, err := l.getJSON(egCtx, p+":index:users", &users)
		if err != nil {
			return err
		}
		if !found {
			return core.Errorf(core.ModuleModel, core.ErrorCodeNotFound,
				"model: no bundle published under %q", p)
		}
		return nil
	})
	eg.Go(func() error {
		_, err := l.getJSON(egCtx, p+":index:isim", &isimIdx)
		return err
	})
	eg.Go(func() error {
		_, err := l.getJSON(egCtx, p+":index:tsim", &tsimIdx)
		return err
	})
	eg.Go(func() error {
		_, err := l.getJSON(egCtx, p+":seasonal", &seasonal)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var userItems, itemSim, tagSim *Matrix
	eg, egCtx = errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		userItems, err = l.loadMatrix(egCtx, p+":ui:", users)
		return err
	})
	eg.Go(func() (err error) {
		itemSim, err = l.loadMatrix(egCtx, p+":isim:", isimIdx)
		return err
	})
	eg.Go(func() (err error) {
		tagSim, err = l.loadMatrix(egCtx, p+":tsim:", tsimIdx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return NewBundle(userItems, itemSim, tagSim, seasonal)
}

func (l *StoreLoader) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := l.Store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput, "model: decode %s: %v", key, err)
	}
	return true, nil
}

func (l *StoreLoader) loadMatrix(ctx context.Context, keyPrefix string, keys []string) (*Matrix, error) {
	m := NewMatrix()
	batch := l.BatchSize
	if batch <= 0 {
		batch = 500
	}
	for start := 0; start < len(keys); start += batch {
		end := min(start+batch, len(keys))
		storeKeys := make([]string, 0, end-start)
		for _, k := range keys[start:end] {
			storeKeys = append(storeKeys, keyPrefix+k)
		}
		vals, err := l.Store.BatchGet(ctx, storeKeys)
		if err != nil {
			return nil, fmt.Errorf("batch get %s*: %w", keyPrefix, err)
		}
		for i, k := range keys[start:end] {
			data, ok := vals[storeKeys[i]]
			if !ok {
				// 索引里有而行不存在，说明发布的数据不一致，不是"尚未发布"
				return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
					"model: missing row %s", storeKeys[i])
			}
			var row Row
			if err := json.Unmarshal(data, &row); err != nil {
				return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
					"model: decode %s: %v", storeKeys[i], err)
			}
			m.Set(k, row)
		}
	}
	return m, nil
}

// Publish 把 Bundle 写入 Store，布局与 StoreLoader 一致。
// 行数据先写，索引后写；如果 Store 实现了 KeyValueStore，同时写入季节热门有序集合。
func Publish(ctx context.Context, s core.Store, keyPrefix string, b *Bundle) error {
	if keyPrefix == "" {
		keyPrefix = "grocerec"
	}

	rows := make(map[string][]byte)
	addRows := func(prefix string, m *Matrix) error {
		for _, k := range m.keys {
			data, err := json.Marshal(m.rows[k])
			if err != nil {
				return err
			}
			rows[prefix+k] = data
		}
		return nil
	}
	if err := addRows(keyPrefix+":ui:", b.userItems); err != nil {
		return err
	}
	if err := addRows(keyPrefix+":isim:", b.itemSim); err != nil {
		return err
	}
	if err := addRows(keyPrefix+":tsim:", b.tagSim); err != nil {
		return err
	}
	if len(rows) > 0 {
		if err := s.BatchSet(ctx, rows); err != nil {
			return fmt.Errorf("publish rows: %w", err)
		}
	}

	var seasons []string
	if kv, ok := s.(core.KeyValueStore); ok {
		var err error
		if seasons, err = publishHot(ctx, kv, keyPrefix, b.seasonal); err != nil {
			return err
		}
	}

	index := make(map[string][]byte, 5)
	values := map[string]any{
		keyPrefix + ":index:users": b.userItems.keys,
		keyPrefix + ":index:isim":  b.itemSim.keys,
		keyPrefix + ":index:tsim":  b.tagSim.keys,
		keyPrefix + ":seasonal":    b.seasonal,
	}
	if seasons != nil {
		values[keyPrefix+":index:seasons"] = seasons
	}
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		index[key] = data
	}
	if err := s.BatchSet(ctx, index); err != nil {
		return fmt.Errorf("publish index: %w", err)
	}
	return nil
}

// publishHot 逐个季节原子替换热门集合，再删除上次发布过、本次已不存在的季节。
// 返回本次发布的季节列表（已排序）。
func publishHot(ctx context.Context, kv core.KeyValueStore, keyPrefix string, records []SeasonalRecord) ([]string, error) {
	var previous []string
	data, err := kv.Get(ctx, keyPrefix+":index:seasons")
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &previous); err != nil {
			return nil, fmt.Errorf("decode %s:index:seasons: %w", keyPrefix, err)
		}
	case !core.IsNotFound(err):
		return nil, fmt.Errorf("read %s:index:seasons: %w", keyPrefix, err)
	}

	totals := make(map[string]map[string]int64)
	for _, rec := range records {
		if totals[rec.Season] == nil {
			totals[rec.Season] = make(map[string]int64)
		}
		totals[rec.Season][rec.ItemID] += rec.PurchaseCount
	}

	seasons := make([]string, 0, len(totals))
	for season, items := range totals {
		seasons = append(seasons, season)
		members := make([]core.ScoredMember, 0, len(items))
		for item, count := range items {
			members = append(members, core.ScoredMember{Member: item, Score: float64(count)})
		}
		key := HotKey(keyPrefix, season)
		if err := kv.ZReplace(ctx, key, members); err != nil {
			return nil, fmt.Errorf("replace %s: %w", key, err)
		}
	}
	sort.Strings(seasons)

	for _, season := range previous {
		if _, ok := totals[season]; ok {
			continue
		}
		key := HotKey(keyPrefix, season)
		if err := kv.ZReplace(ctx, key, nil); err != nil {
			return nil, fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return seasons, nil
}
