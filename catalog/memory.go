// Package catalog 把物品 ID 映射为展示信息（名称、图片、价格）。
//
// 所有实现都遵守 core.Catalog 的约定：未命中或后端故障时返回占位商品，不返回错误。
package catalog

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/metrics"
)

// MockImageURL 是演示目录统一使用的图片。
const MockImageURL = "https://media-cdn.seeedstudio.com/media/catalog/product/cache/bb49d3b4e0ec60fa2e4f44a36d699452/w/i/wio-e5_mini_1.jpg"

var mockNames = []struct{ sku, name string }{
	{"102010469", "Seeed Studio XIAO nRF52840 Sense"},
	{"104030087", "Round Display for XIAO"},
	{"110010004", "Seeed Studio XIAO SAMD21 (3PCS)"},
	{"114992825", "Grove - Vision AI Module V2"},
	{"101020083", "Grove - Wio-E5 LoRaWAN"},
	{"103030276", "SenseCAP M1 LoRaWAN Indoor Gateway"},
}

// MockProducts 生成演示目录，价格在 [5, 50) 之间随机，相同 seed 结果相同。
func MockProducts(seed int64) []core.Product {
	r := rand.New(rand.NewSource(seed))
	out := make([]core.Product, 0, len(mockNames))
	for _, p := range mockNames {
		price := decimal.NewFromFloat(5 + r.Float64()*45)
		out = append(out, core.Product{
			ItemID:   p.sku,
			Name:     p.name,
			ImageURL: MockImageURL,
			Price:    FormatPrice(price),
		})
	}
	return out
}

// FormatPrice 按 "$12.90" 的形式格式化美元价格。
func FormatPrice(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Memory 是进程内商品目录。
type Memory struct {
	mu       sync.RWMutex
	products map[string]core.Product
}

var _ core.Catalog = (*Memory)(nil)

func NewMemory(products ...core.Product) *Memory {
	m := &Memory{products: make(map[string]core.Product, len(products))}
	m.Put(products...)
	return m
}

func (m *Memory) Name() string { return "memory" }

// Put 新增或覆盖商品。
func (m *Memory) Put(products ...core.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range products {
		m.products[p.ItemID] = p
	}
}

// Products 按 ItemID 升序返回全部商品。
func (m *Memory) Products() []core.Product {
	m.mu.RLock()
	out := make([]core.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

func (m *Memory) Lookup(_ context.Context, itemIDs []string) map[string]core.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]core.Product, len(itemIDs))
	misses := 0
	for _, id := range itemIDs {
		if p, ok := m.products[id]; ok {
			result[id] = p
			continue
		}
		result[id] = core.PlaceholderProduct(id)
		misses++
	}
	metrics.RecordCatalogMiss(misses)
	return result
}
