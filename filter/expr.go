package filter

import (
	"context"

	"github.com/rushteam/grocerec/core"
	"github.com/rushteam/grocerec/pkg/dsl"
)

// ExprFilter 使用 CEL 表达式过滤商品，表达式为 true 时移除。
//
// 示例：
//   - `item.score < 0.05`
//   - `item.id.startsWith("alcohol:") && rctx.params.minor == true`
type ExprFilter struct {
	Expr string

	program *dsl.Program
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.Errorf(core.ModulePipeline, core.ErrorCodeInvalidInput, "filter.expr: %v", err)
	}
	return &ExprFilter{Expr: expr, program: p}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.program == nil {
		return false, core.Errorf(core.ModulePipeline, core.ErrorCodeInternalError, "filter.expr: %q not compiled, use NewExprFilter", f.Expr)
	}
	return f.program.Evaluate(item, rctx)
}
