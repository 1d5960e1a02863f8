package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/basketrec/core"
)

// UserBlockFilter 移除用户自己屏蔽的物品，集合 key 为 {KeyPrefix}:{UserID}。
// 匿名请求不过滤。
type UserBlockFilter struct {
	Store     core.KeyValueStore
	KeyPrefix string
}

func NewUserBlockFilter(store core.KeyValueStore, keyPrefix string) *UserBlockFilter {
	return &UserBlockFilter{Store: store, KeyPrefix: keyPrefix}
}

func (f *UserBlockFilter) Name() string {
	return "filter.user_block"
}

func (f *UserBlockFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if rctx == nil || rctx.UserID == "" || f.Store == nil {
		return false, nil
	}

	keyPrefix := f.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "basketrec:block"
	}
	key := keyPrefix + ":" + rctx.UserID
	blocked, err := f.Store.SMembers(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read user blocks %s: %w", key, err)
	}
	for _, id := range blocked {
		if item.ID == id {
			return true, nil
		}
	}
	return false, nil
}
