package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/logging"
	"github.com/rushteam/basketrec/metrics"
)

// 商品哈希中的字段名。
const (
	FieldName  = "name"
	FieldImage = "image_url"
	FieldPrice = "price"
)

// StoreConfig 配置 KV 存储中的商品目录。
type StoreConfig struct {
	// KeyPrefix 商品 key 前缀，完整 key 为 KeyPrefix + item_id
	KeyPrefix string `koanf:"key_prefix"`
	// FailureThreshold 连续失败多少次后打开熔断器
	FailureThreshold uint32 `koanf:"failure_threshold"`
	// OpenTimeout 熔断器打开后多久进入半开状态
	OpenTimeout time.Duration `koanf:"open_timeout"`
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		KeyPrefix:        "basketrec:product:",
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// StoreCatalog 把商品存成 core.KeyValueStore 中的哈希，每个商品一个 key。
// 后端调用经过熔断器；熔断打开或读取失败时直接返回占位商品。
type StoreCatalog struct {
	store  core.KeyValueStore
	prefix string
	cb     *gobreaker.CircuitBreaker[map[string][]byte]
	log    zerolog.Logger
}

var _ core.Catalog = (*StoreCatalog)(nil)

func NewStoreCatalog(store core.KeyValueStore, cfg StoreConfig) *StoreCatalog {
	def := DefaultStoreConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	log := logging.Component("catalog")
	name := "catalog-" + store.Name()
	metrics.RecordBreakerState(name, 0)

	threshold := cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[map[string][]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("catalog circuit breaker state changed")
			metrics.RecordBreakerState(name, breakerStateValue(to))
		},
	})

	return &StoreCatalog{
		store:  store,
		prefix: cfg.KeyPrefix,
		cb:     cb,
		log:    log,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (c *StoreCatalog) Name() string { return "store" }

func (c *StoreCatalog) key(itemID string) string { return c.prefix + itemID }

// Lookup 逐个读取商品哈希。单个商品读失败不影响其它商品。
func (c *StoreCatalog) Lookup(ctx context.Context, itemIDs []string) map[string]core.Product {
	result := make(map[string]core.Product, len(itemIDs))
	var (
		misses   int
		failures int
		lastErr  error
	)
	for _, id := range itemIDs {
		if _, ok := result[id]; ok {
			continue
		}
		fields, err := c.cb.Execute(func() (map[string][]byte, error) {
			return c.store.HGetAll(ctx, c.key(id))
		})
		if err != nil {
			failures++
			lastErr = err
			result[id] = core.PlaceholderProduct(id)
			continue
		}
		if len(fields) == 0 {
			misses++
			result[id] = core.PlaceholderProduct(id)
			continue
		}
		result[id] = productFromFields(id, fields)
	}

	if failures > 0 {
		ev := logging.Ctx(ctx).Warn().Err(lastErr).Int("failures", failures).Int("items", len(itemIDs))
		if errors.Is(lastErr, gobreaker.ErrOpenState) || errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			ev = ev.Bool("breaker_open", true)
		}
		ev.Msg("catalog lookup failed, using placeholders")
	}
	metrics.RecordCatalogMiss(misses + failures)
	return result
}

// productFromFields 缺失的字段按占位值补齐。
func productFromFields(id string, fields map[string][]byte) core.Product {
	p := core.PlaceholderProduct(id)
	if v, ok := fields[FieldName]; ok && len(v) > 0 {
		p.Name = string(v)
	}
	if v, ok := fields[FieldImage]; ok {
		p.ImageURL = string(v)
	}
	if v, ok := fields[FieldPrice]; ok && len(v) > 0 {
		p.Price = string(v)
	}
	return p
}

// Seed 把商品写入存储，供演示环境或初始化脚本使用。
func Seed(ctx context.Context, store core.KeyValueStore, keyPrefix string, products []core.Product) error {
	for _, p := range products {
		key := keyPrefix + p.ItemID
		for field, v := range map[string]string{FieldName: p.Name, FieldImage: p.ImageURL, FieldPrice: p.Price} {
			if err := store.HSet(ctx, key, field, []byte(v)); err != nil {
				return fmt.Errorf("seed product %s: %w", p.ItemID, err)
			}
		}
	}
	return nil
}
