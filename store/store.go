// Package store 提供 core.KeyValueStore 的内存与 Redis 实现。
// 接口定义在 core 包，这里只有实现和按配置选择后端的 Open。
package store

import (
	"context"
	"fmt"

	"github.com/rushteam/basketrec/core"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config 选择商品目录等辅助数据的存储后端。
type Config struct {
	Backend string      `koanf:"backend" validate:"omitempty,oneof=memory redis"`
	Redis   RedisConfig `koanf:"redis"`
}

// Open 按 Backend 创建存储，空值视为 memory。
func Open(ctx context.Context, cfg Config) (core.KeyValueStore, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
