package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/pkg/utils"
	"github.com/rushteam/basketrec/store"
)

func items(scores map[string]float64, order ...string) []*core.Item {
	out := make([]*core.Item, 0, len(order))
	for _, id := range order {
		it := core.NewItem(id)
		it.Score = scores[id]
		out = append(out, it)
	}
	return out
}

func ids(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

type errFilter struct{}

func (errFilter) Name() string { return "filter.err" }
func (errFilter) ShouldFilter(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
	return false, errors.New("boom")
}

func TestFilterNode(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	_ = kv.SAdd(ctx, "blacklist", "D")
	_ = kv.SAdd(ctx, "basketrec:block:u1", "E")

	expr, err := NewExprFilter(`item.id == "F"`)
	if err != nil {
		t.Fatal(err)
	}
	scores := map[string]float64{"A": 0.9, "B": 0.8, "C": 0, "D": 0.5, "E": 0.4, "F": 0.3, "G": 0.2}

	tests := []struct {
		name    string
		filters []Filter
		rctx    *core.RecommendContext
		want    []string
	}{
		{
			name: "no filters",
			rctx: &core.RecommendContext{},
			want: []string{"A", "B", "C", "D", "E", "F", "G"},
		},
		{
			name:    "cart and score",
			filters: []Filter{CartFilter{}, ScoreFilter{}},
			rctx:    &core.RecommendContext{Cart: []string{"A"}},
			want:    []string{"B", "D", "E", "F", "G"},
		},
		{
			name:    "blacklist from list and store",
			filters: []Filter{NewBlacklistFilter([]string{"B"}, kv, "blacklist")},
			rctx:    &core.RecommendContext{},
			want:    []string{"A", "C", "E", "F", "G"},
		},
		{
			name:    "user block only for known user",
			filters: []Filter{NewUserBlockFilter(kv, "")},
			rctx:    &core.RecommendContext{UserID: "u1"},
			want:    []string{"A", "B", "C", "D", "F", "G"},
		},
		{
			name:    "user block anonymous",
			filters: []Filter{NewUserBlockFilter(kv, "")},
			rctx:    &core.RecommendContext{},
			want:    []string{"A", "B", "C", "D", "E", "F", "G"},
		},
		{
			name:    "expression",
			filters: []Filter{expr},
			rctx:    &core.RecommendContext{},
			want:    []string{"A", "B", "C", "D", "E", "G"},
		},
		{
			name:    "failing filter is skipped",
			filters: []Filter{errFilter{}, ScoreFilter{Min: 0.45}},
			rctx:    &core.RecommendContext{},
			want:    []string{"A", "B", "D"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := items(scores, "A", "B", "C", "D", "E", "F", "G")
			node := &FilterNode{Filters: tt.filters}
			out, err := node.Process(ctx, tt.rctx, in)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			got := ids(out)
			if len(got) != len(tt.want) {
				t.Fatalf("Process() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Process() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFilterNode_LabelsRemoved(t *testing.T) {
	in := items(map[string]float64{"A": 0}, "A")
	node := &FilterNode{Filters: []Filter{ScoreFilter{}}}
	if _, err := node.Process(context.Background(), &core.RecommendContext{}, in); err != nil {
		t.Fatal(err)
	}
	lbl, ok := in[0].Labels[utils.LabelFiltered]
	if !ok || lbl.Value != "filter.score" {
		t.Errorf("filtered label = %+v, %v", lbl, ok)
	}
}

func TestNewExprFilter_Invalid(t *testing.T) {
	if _, err := NewExprFilter(`item.id ==`); err == nil {
		t.Error("NewExprFilter() with syntax error should fail")
	}
}
