// Package grocerec 是一个生鲜杂货推荐引擎。
//
// 推荐分数由三种信号线性叠加：
// - 协同购买相似度：与用户已购商品一起被购买的商品
// - 标签相似度：与已购商品共享标签的商品
// - 季节热度：当季购买次数
//
// 已购商品不会出现在结果中，结果按分数降序，同分时按候选首次出现的顺序。
// 核心逻辑在 engine 包；pipeline / recall / filter / rerank 提供可配置的编排，
// server 与 cmd/grocerec 提供 HTTP 服务。
package grocerec

import (
	"github.com/rushteam/grocerec/engine"
	"github.com/rushteam/grocerec/model"
	"github.com/rushteam/grocerec/pipeline"
)

// 轻量 facade：便于直接 import "grocerec" 使用核心抽象。
type (
	Engine   = engine.Engine
	Weights  = engine.Weights
	Scored   = engine.Scored
	Bundle   = model.Bundle
	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
)

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// Open 从 YAML/JSON 文件加载数据包，并用默认权重创建引擎。
func Open(path string) (*Engine, error) {
	b, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	return engine.New(b, engine.DefaultWeights())
}
