// Package source 提供交易数据源（core.TransactionSource 的实现）以及原始明细的清洗。
package source

import (
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/metrics"
)

// Row 是一条未经清洗的交易明细，字段保持数据库/生成器里的原始字符串形式。
type Row struct {
	UserID    string  `json:"user_id" gorm:"column:user_id" validate:"required"`
	ItemID    string  `json:"item_id" gorm:"column:item_id" validate:"required"`
	Quantity  *string `json:"quantity" gorm:"column:quantity"` // nil 表示缺失，按 1 处理
	Timestamp string  `json:"timestamp" gorm:"column:ts" validate:"required"`
}

// 丢弃原因，同时作为 basketrec_ingest_rows_dropped_total 的 reason 标签。
const (
	DropMissingUser   = "missing_user_id"
	DropMissingItem   = "missing_item_id"
	DropMissingTime   = "missing_timestamp"
	DropBadQuantity   = "bad_quantity"
	DropBadTimestamp  = "bad_timestamp"
	DropInvalidRecord = "invalid_row"
)

// maxFutureSkew 是时间戳允许超出加载时刻的范围，用于容忍时区与时钟偏差。
// 更晚的行会成为衰减基准，把其它所有事件压到下溢，按 bad_timestamp 丢弃。
const maxFutureSkew = 24 * time.Hour

// NormalizeStats 是一批明细的清洗结果。
type NormalizeStats struct {
	Rows    int
	Kept    int
	Dropped map[string]int
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize 把原始明细转换为交易事件。格式错误的行被丢弃、计数并记录日志，不会让整批失败。
//
//   - user_id / item_id / timestamp 必填（去掉首尾空白后）
//   - quantity 缺失或为空时按 1；必须是有限且 >= 0 的数字
//   - timestamp 支持 RFC3339、"2006-01-02 15:04:05"、"2006-01-02" 等常见格式以及 unix 秒，无时区时按 UTC
//   - timestamp 晚于加载时刻超过 maxFutureSkew 的行丢弃
func Normalize(rows []Row, log zerolog.Logger) ([]core.TransactionEvent, NormalizeStats) {
	stats := NormalizeStats{Rows: len(rows), Dropped: make(map[string]int)}
	out := make([]core.TransactionEvent, 0, len(rows))
	latest := time.Now().Add(maxFutureSkew)

	for i := range rows {
		ev, reason := normalizeRow(rows[i], latest)
		if reason != "" {
			stats.Dropped[reason]++
			metrics.RecordDroppedRow(reason)
			log.Debug().Int("row", i).Str("reason", reason).
				Str("user_id", rows[i].UserID).Str("item_id", rows[i].ItemID).
				Msg("dropping malformed transaction row")
			continue
		}
		out = append(out, ev)
	}
	stats.Kept = len(out)

	if dropped := stats.Rows - stats.Kept; dropped > 0 {
		d := zerolog.Dict()
		for reason, n := range stats.Dropped {
			d = d.Int(reason, n)
		}
		log.Warn().Int("rows", stats.Rows).Int("dropped", dropped).Dict("reasons", d).
			Msg("malformed transaction rows dropped")
	}
	return out, stats
}

func normalizeRow(r Row, latest time.Time) (core.TransactionEvent, string) {
	r.UserID = strings.TrimSpace(r.UserID)
	r.ItemID = strings.TrimSpace(r.ItemID)
	r.Timestamp = strings.TrimSpace(r.Timestamp)

	if err := validate.Struct(r); err != nil {
		return core.TransactionEvent{}, dropReason(err)
	}

	qty := 1.0
	if r.Quantity != nil && strings.TrimSpace(*r.Quantity) != "" {
		q, err := cast.ToFloat64E(strings.TrimSpace(*r.Quantity))
		if err != nil || math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
			return core.TransactionEvent{}, DropBadQuantity
		}
		qty = q
	}

	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil || ts.After(latest) {
		return core.TransactionEvent{}, DropBadTimestamp
	}

	return core.TransactionEvent{UserID: r.UserID, ItemID: r.ItemID, Quantity: qty, Timestamp: ts}, ""
}

func dropReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return DropInvalidRecord
	}
	switch verrs[0].Field() {
	case "user_id":
		return DropMissingUser
	case "item_id":
		return DropMissingItem
	case "timestamp":
		return DropMissingTime
	default:
		return DropInvalidRecord
	}
}

// ParseTimestamp 解析交易时间。纯数字按 unix 秒处理。
func ParseTimestamp(s string) (time.Time, error) {
	if isDigits(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(sec, 0).UTC(), nil
	}
	ts, err := cast.ToTimeInDefaultLocationE(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
