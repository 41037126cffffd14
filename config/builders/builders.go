// Package builders 把内置 Node 注册到 config.Registry，使其可以由 pipeline YAML 驱动。
//
//	reg := config.NewRegistry()
//	if err := builders.Install(reg, builders.Deps{Engine: eng, Store: rdb}); err != nil { ... }
//	p, err := reg.Build(cfg)
package builders

import (
	"fmt"

	"github.com/rushteam/grocerec/config"
	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/filter"
	"github.com/rushteam/grocerec/pipeline"
	"github.com/rushteam/grocerec/pkg/conv"
	"github.com/rushteam/grocerec/recall"
	"github.com/rushteam/grocerec/rerank"
)

// Deps 是内置 Node 需要的运行时依赖。
type Deps struct {
	// Engine 为 recall.blend 与 filter.purchased 提供打分与数据包，必填
	Engine *engine.Engine

	// Store 可选；为 nil 时 blacklist/user_block 只使用内存列表，
	// seasonal_hot 只使用 ids fallback
	Store core.Store

	// KeyPrefix 是 model.Publish 使用的 key 前缀，seasonal_hot 默认沿用
	KeyPrefix string
}

// Install 向 reg 注册 recall.blend / recall.seasonal_hot / recall.fallback / filter / rerank.topn。
func Install(reg *config.Registry, deps Deps) error {
	if reg == nil {
		return fmt.Errorf("builders: nil registry")
	}
	if deps.Engine == nil {
		return fmt.Errorf("builders: engine is required")
	}
	reg.Register("recall.blend", deps.buildBlend)
	reg.Register("recall.seasonal_hot", deps.buildSeasonalHot)
	reg.Register("recall.fallback", func(cfg map[string]any) (pipeline.Node, error) {
		return buildFallback(reg, cfg)
	})
	reg.Register("filter", deps.buildFilter)
	reg.Register("rerank.topn", buildTopN)
	return nil
}

func (d Deps) buildBlend(cfg map[string]any) (pipeline.Node, error) {
	limit, err := nonNegative(cfg, "limit")
	if err != nil {
		return nil, err
	}
	return &recall.Blend{Engine: d.Engine, Limit: limit}, nil
}

func (d Deps) buildSeasonalHot(cfg map[string]any) (pipeline.Node, error) {
	prefix, err := conv.String(cfg, "key_prefix", d.KeyPrefix)
	if err != nil {
		return nil, err
	}
	limit, err := nonNegative(cfg, "limit")
	if err != nil {
		return nil, err
	}
	ids, err := conv.Strings(cfg, "ids")
	if err != nil {
		return nil, err
	}
	node := &recall.SeasonalHot{KeyPrefix: prefix, Limit: limit, IDs: ids}
	if kv, ok := d.Store.(core.KeyValueStore); ok {
		node.Store = kv
	}
	return node, nil
}

// buildFallback 用同一个注册表构建 sources 中的每个召回源：
//
//	- type: recall.fallback
//	  config:
//	    sources:
//	      - {type: recall.blend}
//	      - {type: recall.seasonal_hot, config: {limit: 20}}
func buildFallback(reg *config.Registry, cfg map[string]any) (pipeline.Node, error) {
	raw, ok := cfg["sources"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("sources not found or empty")
	}
	factory := reg.Factory()
	sources := make([]recall.Source, 0, len(raw))
	for i, sc := range raw {
		m, ok := sc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sources[%d]: expected mapping", i)
		}
		typ, err := conv.String(m, "type", "")
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		var nodeCfg map[string]any
		if c, ok := m["config"]; ok && c != nil {
			if nodeCfg, ok = c.(map[string]any); !ok {
				return nil, fmt.Errorf("sources[%d]: config: expected mapping", i)
			}
		}
		node, err := factory.Build(typ, nodeCfg)
		if err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		src, ok := node.(recall.Source)
		if !ok {
			return nil, fmt.Errorf("sources[%d]: %s is not a recall source", i, typ)
		}
		sources = append(sources, src)
	}
	return &recall.Fallback{Sources: sources}, nil
}

func (d Deps) buildFilter(cfg map[string]any) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	failClosed, err := conv.Bool(cfg, "fail_closed", false)
	if err != nil {
		return nil, err
	}

	var lists filter.ListStore
	if d.Store != nil {
		lists = filter.NewStoreAdapter(d.Store)
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for i, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filters[%d]: expected mapping", i)
		}
		f, err := d.buildOneFilter(filterMap, lists)
		if err != nil {
			return nil, fmt.Errorf("filters[%d]: %w", i, err)
		}
		filters = append(filters, f)
	}

	return &filter.FilterNode{Filters: filters, FailClosed: failClosed}, nil
}

func (d Deps) buildOneFilter(m map[string]any, lists filter.ListStore) (filter.Filter, error) {
	filterType, err := conv.String(m, "type", "")
	if err != nil {
		return nil, err
	}
	switch filterType {
	case "blacklist":
		ids, err := conv.Strings(m, "item_ids")
		if err != nil {
			return nil, err
		}
		key, err := conv.String(m, "key", "")
		if err != nil {
			return nil, err
		}
		return filter.NewBlacklistFilter(ids, lists, key), nil

	case "user_block":
		keyPrefix, err := conv.String(m, "key_prefix", "")
		if err != nil {
			return nil, err
		}
		return filter.NewUserBlockFilter(lists, keyPrefix), nil

	case "expr":
		expr, err := conv.String(m, "expr", "")
		if err != nil {
			return nil, err
		}
		if expr == "" {
			return nil, fmt.Errorf("expr is required")
		}
		return filter.NewExprFilter(expr)

	case "purchased":
		return &filter.PurchasedFilter{Bundles: d.Engine}, nil

	default:
		return nil, fmt.Errorf("unknown filter type %q", filterType)
	}
}

func buildTopN(cfg map[string]any) (pipeline.Node, error) {
	n, err := nonNegative(cfg, "n")
	if err != nil {
		return nil, err
	}
	return &rerank.TopNNode{N: n}, nil
}

func nonNegative(cfg map[string]any, key string) (int, error) {
	v, err := conv.Int(cfg, key, 0)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must be >= 0, got %d", key, v)
	}
	return v, nil
}
