// Package basketrec 是"经常一起购买"的商品推荐服务。
//
// 基于交易流水训练物品相似度（item-based CF），对购物车给出 Top-K 推荐：
//   - itemcf: 共现统计、相似度度量与多物品打分
//   - engine: 模型快照的原子发布、单飞训练与定时重训
//   - pipeline: 推荐链路（Recall → Filter → ReRank → PostProcess）
//   - server: HTTP 接口 /recommend、/health、/admin/train
package basketrec

import "github.com/rushteam/basketrec/pipeline"

// 便于直接 import 根包使用链路抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
