package core

import (
	"context"
	"time"
)

// TransactionEvent 是一条交易明细：谁（UserID）在什么时候（Timestamp）买了多少（Quantity）什么（ItemID）。
// 由外部数据源提供，进入训练后不可变。
type TransactionEvent struct {
	UserID    string
	ItemID    string
	Quantity  float64
	Timestamp time.Time
}

// TransactionSource 是交易数据源的领域接口。
//
// 实现：
//   - source.Static 内存数据（测试/嵌入式使用）
//   - source.Synthetic 带"组合购买"规律的模拟数据
//   - source.SQL 通过 gorm 从 MySQL 读取（可选 SSH 隧道）
//
// 约定：格式错误的行在数据源内部丢弃并计数，不应让整个批次失败。
type TransactionSource interface {
	// Name 返回数据源名称（用于日志/监控）
	Name() string

	// Load 读取全部交易记录
	Load(ctx context.Context) ([]TransactionEvent, error)
}
