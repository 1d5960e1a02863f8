// Package itemcf 实现"经常一起购买"的物品协同过滤模型。
//
// 训练流程：
//
//	TransactionEvent --Aggregate--> Affinity --BuildCooccurrence--> Cooccurrence --BuildSimilarity--> Similarity
//
// Build 把以上步骤串起来，产出不可变的 Model；Model.Recommend 按购物车（种子物品）打分排序。
// 所有步骤对相同输入产出逐位一致的结果。
package itemcf
