package source

import (
	"context"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/logging"
)

// Static 是内存数据源，用于测试和嵌入式场景。
// 行数据在每次 Load 时清洗；事件数据原样返回（副本）。
type Static struct {
	rows   []Row
	events []core.TransactionEvent
}

// NewStatic 用已清洗的交易事件构造数据源。
func NewStatic(events ...core.TransactionEvent) *Static {
	return &Static{events: events}
}

// NewStaticRows 用原始明细构造数据源。
func NewStaticRows(rows []Row) *Static {
	return &Static{rows: rows}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Load(ctx context.Context) ([]core.TransactionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]core.TransactionEvent, 0, len(s.events)+len(s.rows))
	out = append(out, s.events...)
	if len(s.rows) > 0 {
		events, _ := Normalize(s.rows, logging.Component("source").With().Str("source", s.Name()).Logger())
		out = append(out, events...)
	}
	return out, nil
}
