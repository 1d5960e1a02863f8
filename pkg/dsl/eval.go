// Package dsl 用 CEL (Common Expression Language) 在候选物品上执行业务规则。
//
// 可用变量：
//   - item.id / item.score / item.meta / item.labels
//   - label.<key>：Label 的 Value，等价于 item.labels.<key>.value
//   - rctx.user_id / rctx.cart / rctx.top_k / rctx.params
//
// 示例：
//   - `item.id.startsWith("114")`
//   - `label.recall_source == "cart" && item.score > 0.2`
//   - `item.id in rctx.params.hidden`
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/basketrec/core"
)

var (
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func env() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("label", cel.MapType(cel.StringType, cel.StringType)),
			cel.Variable("rctx", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的布尔表达式，并发安全，可复用。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式并检查返回类型必须为 bool。
func Compile(expr string) (*Program, error) {
	e, err := env()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := e.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile %q: expression must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string { return p.expr }

// Eval 在单个物品上执行表达式。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Evaluate 编译并执行一次，适合只用一次的表达式。
func Evaluate(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Eval(item, rctx)
}

func buildInput(it *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(it.Labels))
	values := make(map[string]string, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = map[string]any{"value": v.Value, "source": v.Source}
		values[k] = v.Value
	}
	meta := it.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	req := map[string]any{
		"user_id": "",
		"cart":    []string{},
		"top_k":   0,
		"params":  map[string]any{},
	}
	if rctx != nil {
		req["user_id"] = rctx.UserID
		if rctx.Cart != nil {
			req["cart"] = rctx.Cart
		}
		req["top_k"] = rctx.TopK
		if rctx.Params != nil {
			req["params"] = rctx.Params
		}
	}

	return map[string]any{
		"item": map[string]any{
			"id":     it.ID,
			"score":  it.Score,
			"meta":   meta,
			"labels": labels,
		},
		"label": values,
		"rctx":  req,
	}
}
