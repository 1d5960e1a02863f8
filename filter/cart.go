package filter

import (
	"context"

	"github.com/rushteam/basketrec/core"
)

// CartFilter 移除购物车中已有的物品。
type CartFilter struct{}

func (CartFilter) Name() string { return "filter.cart" }

func (CartFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return rctx.InCart(item.ID), nil
}

// ScoreFilter 移除分数不大于 Min 的物品。Min 为 0 时只保留正分候选。
type ScoreFilter struct {
	Min float64
}

func (f ScoreFilter) Name() string { return "filter.score" }

func (f ScoreFilter) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	return item.Score <= f.Min, nil
}
