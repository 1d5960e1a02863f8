package dsl

import (
	"testing"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/pkg/utils"
)

func TestProgram_Eval(t *testing.T) {
	item := core.NewItem("114992825")
	item.Score = 0.42
	item.PutLabel(utils.LabelRecallSource, utils.Label{Value: "cart", Source: "recall"})
	item.PutMeta("price", "$12.90")
	rctx := &core.RecommendContext{
		UserID: "user1@example.com",
		Cart:   []string{"102010469"},
		TopK:   5,
		Params: map[string]any{"hidden": []any{"114992825"}},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{expr: `item.id.startsWith("114")`, want: true},
		{expr: `item.score > 0.5`, want: false},
		{expr: `label.recall_source == "cart" && item.score > 0.2`, want: true},
		{expr: `"recall_source" in label`, want: true},
		{expr: `"score_mode" in label`, want: false},
		{expr: `item.id in rctx.params.hidden`, want: true},
		{expr: `"102010469" in rctx.cart`, want: true},
		{expr: `rctx.top_k == 5 && rctx.user_id.endsWith("@example.com")`, want: true},
		{expr: `item.meta.price == "$12.90"`, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			p, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}
			got, err := p.Eval(item, rctx)
			if err != nil {
				t.Fatalf("Eval() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	for _, expr := range []string{`item.score >`, `"abc"`, `1 + 2`} {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) should fail", expr)
		}
	}
}

func TestEvaluate_NilContext(t *testing.T) {
	got, err := Evaluate(`size(rctx.cart) == 0 && rctx.user_id == ""`, core.NewItem("A"), nil)
	if err != nil || !got {
		t.Errorf("Evaluate() = %v, %v", got, err)
	}
	if ok, err := Evaluate("", core.NewItem("A"), nil); !ok || err != nil {
		t.Errorf("Evaluate(empty) = %v, %v", ok, err)
	}
}
