package core

import "github.com/rushteam/basketrec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户/购物车/请求参数，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	// UserID 可选；训练时见过的用户会走"历史感知"打分，否则按冷启动处理
	UserID string

	// Cart 是当前购物车中的物品（种子物品），推荐结果永远不包含这些物品
	Cart []string

	// TopK 本次请求期望返回的物品数量
	TopK int

	// Labels 是请求级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数（例如 scene、channel 等），供 DSL 过滤使用
	Params map[string]any
}

// InCart 判断物品是否在购物车中。
func (rctx *RecommendContext) InCart(itemID string) bool {
	if rctx == nil {
		return false
	}
	for _, id := range rctx.Cart {
		if id == itemID {
			return true
		}
	}
	return false
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
