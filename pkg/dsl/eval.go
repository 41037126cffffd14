// Package dsl 提供基于 CEL (Common Expression Language) 的商品规则表达式。
//
// 表达式可访问三个变量：
//   - item：{id, score, features, meta}
//   - label：商品 Label 的 key -> value
//   - rctx：{user_id, season, params}
//
// 示例：
//   - `item.score < 0.05`                              → 分数过低
//   - `item.features.seasonal > 0.0 && rctx.season == "winter"`
//   - `has(label.filtered)`                            → 存在某个 label
//   - `item.id.startsWith("alcohol:")`
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/grocerec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的表达式，可被多个 goroutine 并发求值。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，表达式必须返回布尔值。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if t := ast.OutputType(); t != cel.BoolType && t != cel.DynType {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %s", expr, t)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Evaluate 对单个商品求值。访问不存在的 key 会返回错误，请用 has() 判断存在性。
func (p *Program) Evaluate(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	features := make(map[string]any, len(item.Features))
	for k, v := range item.Features {
		features[k] = v
	}
	meta := item.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	labels := make(map[string]any, len(item.Labels))
	for k, v := range item.Labels {
		labels[k] = v.Value
	}

	ctx := map[string]any{
		"user_id": "",
		"season":  "",
		"params":  map[string]any{},
	}
	if rctx != nil {
		ctx["user_id"] = rctx.UserID
		ctx["season"] = rctx.Season
		if rctx.Params != nil {
			ctx["params"] = rctx.Params
		}
	}

	return map[string]any{
		"item": map[string]any{
			"id":       item.ID,
			"score":    item.Score,
			"features": features,
			"meta":     meta,
		},
		"label": labels,
		"rctx":  ctx,
	}
}
