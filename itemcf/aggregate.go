package itemcf

import (
	"math"
	"sort"
	"time"

	"github.com/rushteam/basketrec/core"
)

// Affinity 是聚合后的用户-物品隐式反馈权重，每个 (UserID, ItemID) 只有一行。
type Affinity struct {
	UserID string
	ItemID string
	Weight float64
}

// AggregateStats 记录一次聚合的规模，用于训练日志。
type AggregateStats struct {
	Events       int       // 输入事件数
	UniqueEvents int       // 按 (user, item, timestamp) 合并后的事件数
	Pairs        int       // 输出的 (user, item) 数
	Clamped      int       // 数量为负数或 NaN、被按 0 处理的事件数
	Now          time.Time // 衰减参考时间：数据中最大的时间戳
}

type eventKey struct {
	user string
	item string
	ts   int64
}

type pairKey struct {
	user string
	item string
}

// Aggregate 把交易事件折叠为每个 (user, item) 一个权重，并按半衰期做时间衰减。
//
// 算法：
//  1. 按 (user, item, timestamp) 分组求和 quantity，去掉完全重复的明细行
//  2. 以数据中最大时间戳为 now，每个事件贡献 quantity * 2^(-age_days / halfLifeDays)
//  3. 按 (user, item) 累加
//
// halfLifeDays <= 0 时不衰减，权重即数量之和。输出按 (user, item) 升序，结果与输入顺序无关。
func Aggregate(events []core.TransactionEvent, halfLifeDays float64) ([]Affinity, AggregateStats) {
	stats := AggregateStats{Events: len(events)}
	if len(events) == 0 {
		return nil, stats
	}

	merged := make(map[eventKey]float64, len(events))
	for _, ev := range events {
		qty := ev.Quantity
		if qty < 0 || math.IsNaN(qty) {
			stats.Clamped++
			qty = 0
		}
		k := eventKey{user: ev.UserID, item: ev.ItemID, ts: ev.Timestamp.UnixNano()}
		merged[k] += qty
		if ts := ev.Timestamp; ts.After(stats.Now) {
			stats.Now = ts
		}
	}
	stats.UniqueEvents = len(merged)

	// 浮点累加依赖顺序，先排序保证重复训练的结果逐位一致
	keys := make([]eventKey, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.user != b.user {
			return a.user < b.user
		}
		if a.item != b.item {
			return a.item < b.item
		}
		return a.ts < b.ts
	})

	nowNano := stats.Now.UnixNano()
	out := make([]Affinity, 0, len(keys))
	index := make(map[pairKey]int, len(keys))
	for _, k := range keys {
		ageDays := float64(nowNano-k.ts) / float64(24*time.Hour)
		w := decayedWeight(merged[k], ageDays, halfLifeDays)

		pk := pairKey{user: k.user, item: k.item}
		if i, ok := index[pk]; ok {
			out[i].Weight += w
			continue
		}
		index[pk] = len(out)
		out = append(out, Affinity{UserID: k.user, ItemID: k.item, Weight: w})
	}
	stats.Pairs = len(out)
	return out, stats
}

// DecayFactor 返回 age_days 天前事件的衰减系数 2^(-age/halfLife)，halfLifeDays <= 0 时恒为 1。
func DecayFactor(ageDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 || ageDays <= 0 {
		return 1
	}
	return math.Exp2(-ageDays / halfLifeDays)
}

// decayedWeight 对正数量永不返回 0：极老的事件下溢时取最小正浮点数。
func decayedWeight(qty, ageDays, halfLifeDays float64) float64 {
	if qty <= 0 {
		return 0
	}
	w := qty * DecayFactor(ageDays, halfLifeDays)
	if w <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return w
}
