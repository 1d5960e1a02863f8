package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/store"
)

func TestMockProducts(t *testing.T) {
	a := MockProducts(1)
	b := MockProducts(1)
	if len(a) != 6 {
		t.Fatalf("MockProducts() = %d products, want 6", len(a))
	}
	for i, p := range a {
		if p != b[i] {
			t.Errorf("same seed differs at %d: %+v vs %+v", i, p, b[i])
		}
		if !strings.HasPrefix(p.Price, "$") {
			t.Fatalf("price %q should start with $", p.Price)
		}
		d, err := decimal.NewFromString(strings.TrimPrefix(p.Price, "$"))
		if err != nil || d.LessThan(decimal.NewFromInt(5)) || d.GreaterThan(decimal.NewFromInt(50)) {
			t.Errorf("price %q out of [5, 50]: %v", p.Price, err)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := map[string]string{"12.9": "$12.90", "5": "$5.00", "49.999": "$50.00"}
	for in, want := range tests {
		if got := FormatPrice(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatPrice(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestMemory_Lookup(t *testing.T) {
	c := NewMemory(core.Product{ItemID: "A", Name: "Alpha", ImageURL: "a.jpg", Price: "$1.00"})
	got := c.Lookup(context.Background(), []string{"A", "Z"})
	if len(got) != 2 {
		t.Fatalf("Lookup() = %v", got)
	}
	if got["A"].Name != "Alpha" {
		t.Errorf("A = %+v", got["A"])
	}
	if got["Z"] != core.PlaceholderProduct("Z") {
		t.Errorf("Z = %+v, want placeholder", got["Z"])
	}
	if ps := c.Products(); len(ps) != 1 || ps[0].ItemID != "A" {
		t.Errorf("Products() = %v", ps)
	}
}

func TestStoreCatalog_Lookup(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	cfg := DefaultStoreConfig()
	products := MockProducts(3)
	if err := Seed(ctx, kv, cfg.KeyPrefix, products); err != nil {
		t.Fatal(err)
	}
	// 只有名称的商品，其余字段使用占位值
	_ = kv.HSet(ctx, cfg.KeyPrefix+"partial", FieldName, []byte("Partial"))

	c := NewStoreCatalog(kv, cfg)
	got := c.Lookup(ctx, []string{products[0].ItemID, "partial", "missing", products[0].ItemID})
	if len(got) != 3 {
		t.Fatalf("Lookup() = %v", got)
	}
	if got[products[0].ItemID] != products[0] {
		t.Errorf("seeded product = %+v, want %+v", got[products[0].ItemID], products[0])
	}
	if p := got["partial"]; p.Name != "Partial" || p.Price != core.UnknownProductPrice || p.ImageURL != "" {
		t.Errorf("partial = %+v", p)
	}
	if got["missing"] != core.PlaceholderProduct("missing") {
		t.Errorf("missing = %+v", got["missing"])
	}
}

// failingStore 模拟不可用的后端。
type failingStore struct {
	*store.MemoryStore
	calls int
}

func (f *failingStore) HGetAll(context.Context, string) (map[string][]byte, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestStoreCatalog_BreakerOpens(t *testing.T) {
	kv := &failingStore{MemoryStore: store.NewMemoryStore()}
	defer kv.Close()

	c := NewStoreCatalog(kv, StoreConfig{FailureThreshold: 2, OpenTimeout: time.Hour})
	ids := []string{"A", "B", "C", "D"}
	got := c.Lookup(context.Background(), ids)
	for _, id := range ids {
		if got[id] != core.PlaceholderProduct(id) {
			t.Errorf("%s = %+v, want placeholder", id, got[id])
		}
	}
	// 两次失败后熔断打开，后续请求不再访问后端
	if kv.calls != 2 {
		t.Errorf("backend calls = %d, want 2", kv.calls)
	}
}

func TestEnrichNode(t *testing.T) {
	node := &EnrichNode{Catalog: NewMemory(core.Product{ItemID: "A", Name: "Alpha", ImageURL: "a.jpg", Price: "$1.00"})}
	items := []*core.Item{core.NewItem("A"), core.NewItem("B")}
	items[0].Score = 0.9

	out, err := node.Process(context.Background(), &core.RecommendContext{}, items)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].ID != "A" || out[0].Score != 0.9 {
		t.Fatalf("Process() changed items: %+v", out)
	}
	if p := ProductOf(out[0]); p.Name != "Alpha" || p.ImageURL != "a.jpg" || p.Price != "$1.00" {
		t.Errorf("ProductOf(A) = %+v", p)
	}
	if p := ProductOf(out[1]); p != core.PlaceholderProduct("B") {
		t.Errorf("ProductOf(B) = %+v", p)
	}
}
