package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/grocerec/core"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链：Recall → Filter → ReRank。
type Pipeline struct {
	Name  string
	Nodes []Node
}

// Run 依次执行各 Node。Node 返回的领域错误原样透传（例如用户不存在），
// 其他错误附带 Node 名称。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			if core.IsDomainError(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
