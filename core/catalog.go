package core

import "context"

// Product 是物品的展示信息。
type Product struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Price    string `json:"price"` // 已格式化的价格，例如 "$12.90"
}

// 目录未命中时的占位值。
const (
	UnknownProductName  = "Unknown Product"
	UnknownProductImage = ""
	UnknownProductPrice = "N/A"
)

// PlaceholderProduct 返回目录未命中时的占位商品。
func PlaceholderProduct(itemID string) Product {
	return Product{
		ItemID:   itemID,
		Name:     UnknownProductName,
		ImageURL: UnknownProductImage,
		Price:    UnknownProductPrice,
	}
}

// Catalog 是商品目录服务的领域接口，把物品 ID 映射为展示信息。
//
// 约定：未命中或后端故障时返回 PlaceholderProduct，永远不返回错误；
// 返回的 map 对每个请求的 ID 都有值。
type Catalog interface {
	Name() string
	Lookup(ctx context.Context, itemIDs []string) map[string]Product
}
