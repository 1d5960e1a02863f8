// Package recall 生成候选物品。
//
// CartRecall 基于购物车的物品相似度打分，是默认链路的召回节点；
// PopularRecall 按训练数据中的购买量召回，只用于显式配置的兜底链路。
package recall

import (
	"context"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/itemcf"
	"github.com/rushteam/basketrec/pkg/utils"
)

// Source 表示一个可复用的召回源，可被 Fanout 并发执行。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// Recommender 是召回依赖的模型服务，由 engine.Engine 实现。
type Recommender interface {
	Recommend(ctx context.Context, q itemcf.Query) ([]core.ScoredItem, error)
	Popular(n int, exclude map[string]struct{}) ([]core.ScoredItem, error)
}

func toItems(scored []core.ScoredItem, source string) []*core.Item {
	out := make([]*core.Item, 0, len(scored))
	for _, s := range scored {
		it := core.NewItem(s.ItemID)
		it.Score = s.Score
		it.PutLabel(utils.LabelRecallSource, utils.Label{Value: source, Source: "recall"})
		out = append(out, it)
	}
	return out
}
