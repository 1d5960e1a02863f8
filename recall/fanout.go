package recall

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/logging"
	"github.com/rushteam/basketrec/pipeline"
)

// 合并策略。
const (
	MergeFirst    = "first"     // 按 ID 去重，保留首个（按 Sources 顺序）
	MergeUnion    = "union"     // 不去重
	MergeMaxScore = "max_score" // 按 ID 去重，保留分数最高的
	MergeFallback = "fallback"  // 按 Sources 顺序取第一个非空结果，后面的召回源只做兜底
)

// Fanout 是一个 Recall Node：并发执行多个召回源并合并结果。
// 单个召回源失败或超时不影响其它召回源，只有 Strict 召回源的错误会中止请求。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy string
	// Strict 中列出的召回源出错时返回错误，例如 recall.cart 未训练时应返回 503
	Strict map[string]bool
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	log := logging.Ctx(ctx)
	var (
		mu      sync.Mutex
		results = make([][]*core.Item, len(n.Sources))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err != nil {
				if n.Strict[src.Name()] {
					return err
				}
				log.Warn().Err(err).Str("source", src.Name()).Msg("recall source failed, skipped")
				return nil
			}
			mu.Lock()
			results[i] = items
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	switch n.MergeStrategy {
	case MergeUnion:
		return mergeUnion(results), nil
	case MergeMaxScore:
		return mergeMaxScore(results), nil
	case MergeFallback:
		return mergeFallback(results), nil
	default:
		return mergeFirst(results), nil
	}
}

func mergeUnion(results [][]*core.Item) []*core.Item {
	var out []*core.Item
	for _, items := range results {
		out = append(out, items...)
	}
	return out
}

func mergeFallback(results [][]*core.Item) []*core.Item {
	for _, items := range results {
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// mergeFirst 按 Sources 顺序去重，重复物品的 Label 合并到首个。
func mergeFirst(results [][]*core.Item) []*core.Item {
	seen := make(map[string]*core.Item)
	var out []*core.Item
	for _, items := range results {
		for _, it := range items {
			if it == nil {
				continue
			}
			if old, ok := seen[it.ID]; ok {
				for k, v := range it.Labels {
					old.PutLabel(k, v)
				}
				continue
			}
			seen[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}

// mergeMaxScore 去重后保留分数最高者，结果按分数降序、ID 升序。
func mergeMaxScore(results [][]*core.Item) []*core.Item {
	best := make(map[string]*core.Item)
	for _, items := range results {
		for _, it := range items {
			if it == nil {
				continue
			}
			old, ok := best[it.ID]
			switch {
			case !ok:
				best[it.ID] = it
			case it.Score > old.Score:
				for k, v := range old.Labels {
					it.PutLabel(k, v)
				}
				best[it.ID] = it
			default:
				for k, v := range it.Labels {
					old.PutLabel(k, v)
				}
			}
		}
	}
	out := make([]*core.Item, 0, len(best))
	for _, it := range best {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
