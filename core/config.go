package core

import "time"

// EngineConfig 是推荐引擎相关的配置接口，用于提供默认值。
type EngineConfig interface {
	// DefaultTopN 返回默认返回数量
	DefaultTopN() int

	// DefaultItemSimilarityWeight 返回协同购买相似度权重
	DefaultItemSimilarityWeight() float64

	// DefaultTagSimilarityWeight 返回标签相似度权重
	DefaultTagSimilarityWeight() float64

	// DefaultSeasonalWeight 返回季节热度权重（按购买次数线性累加）
	DefaultSeasonalWeight() float64

	// DefaultLoadTimeout 返回模型加载的默认超时时间
	DefaultLoadTimeout() time.Duration
}

// DefaultEngineConfig 是默认的引擎配置实现。
// 三个权重沿用离线模型给出的取值，调整前需确认相对量级。
type DefaultEngineConfig struct{}

func (c *DefaultEngineConfig) DefaultTopN() int {
	return 5
}

func (c *DefaultEngineConfig) DefaultItemSimilarityWeight() float64 {
	return 0.5
}

func (c *DefaultEngineConfig) DefaultTagSimilarityWeight() float64 {
	return 0.3
}

func (c *DefaultEngineConfig) DefaultSeasonalWeight() float64 {
	return 0.01
}

func (c *DefaultEngineConfig) DefaultLoadTimeout() time.Duration {
	return 30 * time.Second
}
