package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/basketrec/core"
)

// BlacklistFilter 移除运营下架的物品。
// 黑名单来自 ItemIDs 与 Store 中 Key 对应的集合（两者取并集）。
type BlacklistFilter struct {
	ItemIDs []string
	Store   core.KeyValueStore
	Key     string
}

func NewBlacklistFilter(itemIDs []string, store core.KeyValueStore, key string) *BlacklistFilter {
	return &BlacklistFilter{ItemIDs: itemIDs, Store: store, Key: key}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	for _, id := range f.ItemIDs {
		if item.ID == id {
			return true, nil
		}
	}

	if f.Store == nil || f.Key == "" {
		return false, nil
	}
	members, err := f.Store.SMembers(ctx, f.Key)
	if err != nil {
		return false, fmt.Errorf("read blacklist %s: %w", f.Key, err)
	}
	for _, id := range members {
		if item.ID == id {
			return true, nil
		}
	}
	return false, nil
}
