package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/basketrec/core"
)

func TestTopNNode(t *testing.T) {
	build := func() []*core.Item {
		var out []*core.Item
		for _, s := range []struct {
			id    string
			score float64
		}{{"C", 0.5}, {"A", 0.2}, {"B", 0.5}, {"D", 0.9}} {
			it := core.NewItem(s.id)
			it.Score = s.score
			out = append(out, it)
		}
		return out
	}

	tests := []struct {
		name string
		n    int
		topK int
		want []string
	}{
		{name: "node limit", n: 2, topK: 10, want: []string{"D", "B"}},
		{name: "request limit", topK: 3, want: []string{"D", "B", "C"}},
		{name: "no limit", want: []string{"D", "B", "C", "A"}},
		{name: "limit above length", n: 10, want: []string{"D", "B", "C", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &TopNNode{N: tt.n}
			got, err := node.Process(context.Background(), &core.RecommendContext{TopK: tt.topK}, build())
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Process() = %d items, want %v", len(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}
