package catalog

import (
	"context"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/pipeline"
)

// 写入 Item.Meta 的展示字段。
const (
	MetaName  = "name"
	MetaImage = "image"
	MetaPrice = "price"
)

// EnrichNode 是后处理节点：批量查询目录，把展示信息写入每个物品的 Meta。
// 不改变物品顺序与分数。
type EnrichNode struct {
	Catalog core.Catalog
}

func (n *EnrichNode) Name() string        { return "postprocess.catalog" }
func (n *EnrichNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *EnrichNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Catalog == nil || len(items) == 0 {
		return items, nil
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			ids = append(ids, it.ID)
		}
	}
	products := n.Catalog.Lookup(ctx, ids)
	for _, it := range items {
		if it == nil {
			continue
		}
		p, ok := products[it.ID]
		if !ok {
			p = core.PlaceholderProduct(it.ID)
		}
		it.PutMeta(MetaName, p.Name)
		it.PutMeta(MetaImage, p.ImageURL)
		it.PutMeta(MetaPrice, p.Price)
	}
	return items, nil
}

// ProductOf 从 Meta 中还原展示信息；未经 EnrichNode 处理的物品返回占位值。
func ProductOf(it *core.Item) core.Product {
	p := core.PlaceholderProduct(it.ID)
	if v, ok := it.Meta[MetaName].(string); ok {
		p.Name = v
	}
	if v, ok := it.Meta[MetaImage].(string); ok {
		p.ImageURL = v
	}
	if v, ok := it.Meta[MetaPrice].(string); ok {
		p.Price = v
	}
	return p
}
