package recall

import (
	"context"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/itemcf"
	"github.com/rushteam/basketrec/pipeline"
)

// CartRecall 用购物车作为种子物品调用模型打分。
// 作为 Node 使用时模型错误（未训练、top_k 非法）直接返回给调用方；
// 作为 Fanout 的 Source 时由 Fanout 决定是否吞掉错误。
type CartRecall struct {
	Model Recommender
	// Limit 覆盖请求的 TopK，便于后续过滤后仍有足够候选；<= 0 时使用请求值
	Limit int
	// Propagate 使用行归一化后的相似度打分
	Propagate bool
}

func (r *CartRecall) Name() string        { return "recall.cart" }
func (r *CartRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *CartRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	topK := rctx.TopK
	if r.Limit > 0 && topK > 0 {
		topK = max(topK, r.Limit)
	}
	scored, err := r.Model.Recommend(ctx, itemcf.Query{
		Seeds:     rctx.Cart,
		TopK:      topK,
		UserID:    rctx.UserID,
		Propagate: r.Propagate,
	})
	if err != nil {
		return nil, err
	}
	return toItems(scored, "cart"), nil
}

func (r *CartRecall) Process(ctx context.Context, rctx *core.RecommendContext, _ []*core.Item) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}
