// Package builders 注册内置 Node 的配置构建逻辑，使用时匿名导入即可。
package builders

import (
	"errors"
	"fmt"

	"github.com/rushteam/basketrec/catalog"
	"github.com/rushteam/basketrec/config"
	"github.com/rushteam/basketrec/filter"
	"github.com/rushteam/basketrec/pipeline"
	"github.com/rushteam/basketrec/pkg/conv"
	"github.com/rushteam/basketrec/recall"
	"github.com/rushteam/basketrec/rerank"
)

func init() {
	config.Register("recall.cart", BuildCartNode)
	config.Register("recall.popular", BuildPopularNode)
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("filter", BuildFilterNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("postprocess.catalog", BuildCatalogNode)
}

var errNoModel = errors.New("model dependency is required")

func cartRecall(cfg map[string]interface{}, deps config.Deps) (*recall.CartRecall, error) {
	if deps.Model == nil {
		return nil, errNoModel
	}
	return &recall.CartRecall{
		Model:     deps.Model,
		Limit:     conv.ConfigGetInt(cfg, "limit", 0),
		Propagate: conv.ConfigGetBool(cfg, "propagate", false),
	}, nil
}

func popularRecall(cfg map[string]interface{}, deps config.Deps) (*recall.PopularRecall, error) {
	if deps.Model == nil {
		return nil, errNoModel
	}
	return &recall.PopularRecall{Model: deps.Model, N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func BuildCartNode(cfg map[string]interface{}, deps config.Deps) (pipeline.Node, error) {
	return cartRecall(cfg, deps)
}

// BuildPopularNode 单独使用热门召回时包一层 Fanout，严格模式下未训练仍返回错误。
func BuildPopularNode(cfg map[string]interface{}, deps config.Deps) (pipeline.Node, error) {
	src, err := popularRecall(cfg, deps)
	if err != nil {
		return nil, err
	}
	return &recall.Fanout{
		Sources: []recall.Source{src},
		Strict:  map[string]bool{src.Name(): true},
	}, nil
}

func BuildFanoutNode(cfg map[string]interface{}, deps config.Deps) (pipeline.Node, error) {
	sourcesConfig := conv.ConfigGetMaps(cfg, "sources")
	if len(sourcesConfig) == 0 {
		return nil, fmt.Errorf("sources not found or invalid")
	}
	sources := make([]recall.Source, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		var (
			src recall.Source
			err error
		)
		switch t := conv.ConfigGet(sc, "type", ""); t {
		case "cart":
			src, err = cartRecall(sc, deps)
		case "popular":
			src, err = popularRecall(sc, deps)
		default:
			return nil, fmt.Errorf("unknown source type: %s", t)
		}
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	fanout := &recall.Fanout{
		Sources:       sources,
		Timeout:       conv.ConfigGetDuration(cfg, "timeout", 0),
		MaxConcurrent: conv.ConfigGetInt(cfg, "max_concurrent", 0),
		MergeStrategy: conv.ConfigGet(cfg, "merge_strategy", recall.MergeFallback),
		Strict:        map[string]bool{"recall.cart": true},
	}
	if names, ok := cfg["strict"]; ok {
		fanout.Strict = map[string]bool{}
		for _, name := range conv.ToStringSlice(names) {
			fanout.Strict[name] = true
		}
	}
	switch fanout.MergeStrategy {
	case recall.MergeFirst, recall.MergeUnion, recall.MergeMaxScore, recall.MergeFallback:
	default:
		return nil, fmt.Errorf("unknown merge strategy: %s", fanout.MergeStrategy)
	}
	return fanout, nil
}

func BuildFilterNode(cfg map[string]interface{}, deps config.Deps) (pipeline.Node, error) {
	filtersConfig := conv.ConfigGetMaps(cfg, "filters")
	if len(filtersConfig) == 0 {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		switch t := conv.ConfigGet(fc, "type", ""); t {
		case "cart":
			filters = append(filters, filter.CartFilter{})
		case "score":
			filters = append(filters, filter.ScoreFilter{Min: conv.ConfigGetFloat64(fc, "min", 0)})
		case "blacklist":
			key := conv.ConfigGet(fc, "key", "")
			if key != "" && deps.Store == nil {
				return nil, fmt.Errorf("blacklist key %q requires a store", key)
			}
			filters = append(filters, filter.NewBlacklistFilter(conv.ToStringSlice(fc["item_ids"]), deps.Store, key))
		case "user_block":
			if deps.Store == nil {
				return nil, fmt.Errorf("user_block filter requires a store")
			}
			filters = append(filters, filter.NewUserBlockFilter(deps.Store, conv.ConfigGet(fc, "key_prefix", "")))
		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(fc, "expr", ""))
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		default:
			return nil, fmt.Errorf("unknown filter type: %s", t)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}

func BuildTopNNode(cfg map[string]interface{}, _ config.Deps) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func BuildCatalogNode(_ map[string]interface{}, deps config.Deps) (pipeline.Node, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog dependency is required")
	}
	return &catalog.EnrichNode{Catalog: deps.Catalog}, nil
}
