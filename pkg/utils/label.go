package utils

// Label 是推荐链路中的一等公民：可追踪、可透传。
// Value 与 Source 的语义由业务自定义；这里只提供标准化的合并规则。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / filter / rerank / postprocess ...
}

// 链路中使用的标准 Label key。
const (
	LabelRecallSource = "recall_source" // 召回来源：cart / popular
	LabelScoreMode    = "score_mode"    // 打分模式：cold_start / history
	LabelMetric       = "metric"        // 相似度度量：jaccard / cosine / lift
	LabelFiltered     = "filtered"      // 被过滤时记录过滤器名称
	LabelCatalog      = "catalog"       // 目录命中情况：hit / miss
)

// MergeLabel 用于合并同名 Label，遵循"保留历史、可追踪"的默认策略。
//   - Value: 以 '|' 累积
//   - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
