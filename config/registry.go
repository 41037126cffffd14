package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/grocerec/pipeline"
)

// NodeBuilder 与 pipeline.NodeBuilder 一致：根据 config 构建 Node。
type NodeBuilder = pipeline.NodeBuilder

// Registry 保存 Node 类型到构建器的映射，并发安全。
// 内置 Node 依赖运行时对象（引擎、存储），由 builders.Install 在启动时注册。
type Registry struct {
	mu       sync.RWMutex
	builders map[string]NodeBuilder
}

// NewRegistry 创建一个空的注册表。
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]NodeBuilder)}
}

// Default 是进程级默认注册表，Register / SupportedTypes / DefaultFactory 均作用于它。
var Default = NewRegistry()

// Register 注册一种 Node 的构建逻辑；同名类型后注册的覆盖先注册的。
func (r *Registry) Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[typeName] = builder
}

// Types 返回已注册的 Node 类型（排序）。
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Factory 基于当前注册表快照构建 NodeFactory。
func (r *Registry) Factory() *pipeline.NodeFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range r.builders {
		f.Register(typeName, builder)
	}
	return f
}

// Validate 校验 pipeline 配置：所有 node 类型均已注册，且 type 不为空。
func (r *Registry) Validate(cfg *pipeline.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil pipeline config")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, nc := range cfg.Pipeline.Nodes {
		if nc.Type == "" {
			return fmt.Errorf("node #%d: missing type", i)
		}
		if _, ok := r.builders[nc.Type]; !ok {
			types := make([]string, 0, len(r.builders))
			for t := range r.builders {
				types = append(types, t)
			}
			sort.Strings(types)
			return fmt.Errorf("node #%d: unsupported type %q (supported: %v)", i, nc.Type, types)
		}
	}
	return nil
}

// Build 校验并构建 Pipeline。
func (r *Registry) Build(cfg *pipeline.Config) (*pipeline.Pipeline, error) {
	if err := r.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg.BuildPipeline(r.Factory())
}

// Register 向 Default 注册。
func Register(typeName string, builder NodeBuilder) { Default.Register(typeName, builder) }

// SupportedTypes 返回 Default 中已注册的类型。
func SupportedTypes() []string { return Default.Types() }

// DefaultFactory 返回基于 Default 的 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory { return Default.Factory() }

// ValidatePipelineConfig 使用 Default 校验配置。
func ValidatePipelineConfig(cfg *pipeline.Config) error { return Default.Validate(cfg) }
