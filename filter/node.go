package filter

import (
	"context"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/logging"
	"github.com/rushteam/basketrec/pipeline"
	"github.com/rushteam/basketrec/pkg/utils"
)

// FilterNode 组合多个过滤器，任何一个过滤器返回 true，该物品就会被移除。
// 过滤器出错时跳过该过滤器，不中断请求。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	log := logging.Ctx(ctx)
	out := make([]*core.Item, 0, len(items))
	removed := make(map[string]int)

	for _, item := range items {
		if item == nil {
			continue
		}

		reason := ""
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				log.Warn().Err(err).Str("filter", f.Name()).Str("item_id", item.ID).Msg("filter failed, skipped")
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}

		if reason != "" {
			removed[reason]++
			item.PutLabel(utils.LabelFiltered, utils.Label{Value: reason, Source: "filter"})
			continue
		}
		out = append(out, item)
	}

	if len(removed) > 0 {
		ev := log.Debug()
		for name, cnt := range removed {
			ev = ev.Int(name, cnt)
		}
		ev.Int("kept", len(out)).Msg("filtered candidates")
	}
	return out, nil
}
