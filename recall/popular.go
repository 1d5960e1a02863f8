package recall

import (
	"context"

	"github.com/rushteam/basketrec/core"
)

// PopularScoreCeiling 是热门召回的最高分。
// 购买量按最大值缩放到 (0, PopularScoreCeiling]，与相似度分数混排时排在购物车召回之后。
const PopularScoreCeiling = 1e-6

// PopularRecall 按训练数据中的购买量召回，排除购物车中的物品，只适合作为冷启动兜底。
type PopularRecall struct {
	Model Recommender
	N     int // <= 0 时使用请求的 TopK
}

func (r *PopularRecall) Name() string { return "recall.popular" }

func (r *PopularRecall) Recall(_ context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	n := r.N
	if n <= 0 {
		n = rctx.TopK
	}
	exclude := make(map[string]struct{}, len(rctx.Cart))
	for _, id := range rctx.Cart {
		exclude[id] = struct{}{}
	}
	scored, err := r.Model.Popular(n, exclude)
	if err != nil {
		return nil, err
	}
	return toItems(scalePopularity(scored), "popular"), nil
}

// scalePopularity 保持顺序，把分数缩放到 (0, PopularScoreCeiling]。
func scalePopularity(scored []core.ScoredItem) []core.ScoredItem {
	top := 0.0
	for _, s := range scored {
		top = max(top, s.Score)
	}
	if top <= 0 {
		return scored
	}
	out := make([]core.ScoredItem, 0, len(scored))
	for _, s := range scored {
		if s.Score <= 0 {
			continue
		}
		out = append(out, core.ScoredItem{ItemID: s.ItemID, Score: s.Score / top * PopularScoreCeiling})
	}
	return out
}
