package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/logging"
)

// Pipeline 把推荐请求拆成可组合的 Node 链：召回 → 过滤 → 截断 → 补充展示信息。
type Pipeline struct {
	Name  string
	Nodes []Node
}

// Run 依次执行各节点，任一节点出错即中止；错误带上节点名。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	log := logging.Ctx(ctx)
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		if ev := log.Trace(); ev.Enabled() {
			ev.Str("pipeline", p.Name).
				Str("node", node.Name()).
				Str("kind", string(node.Kind())).
				Int("in", len(cur)).
				Int("out", len(next)).
				Dur("elapsed", time.Since(start)).
				Msg("pipeline node done")
		}
		cur = next
	}
	return cur, nil
}
