package itemcf

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rushteam/basketrec/core"
)

// Options 是一次训练的超参数。
type Options struct {
	// HalfLifeDays 时间衰减半衰期（天），<= 0 关闭衰减
	HalfLifeDays float64
	// Metric 相似度度量
	Metric Metric
	// Combine 共现合成规则
	Combine CombineRule
	// MinCooccurrence 共现阈值，低于该值的物品对不参与相似度
	MinCooccurrence float64
	// Normalize 额外构建行随机化相似度，供 Query.Propagate 使用
	Normalize bool
	// Workers 相似度计算并发数，<= 0 取 GOMAXPROCS
	Workers int
}

// DefaultOptions 返回默认超参数：半衰期 30 天、jaccard、min 合成。
func DefaultOptions() Options {
	return Options{
		HalfLifeDays: 30,
		Metric:       DefaultMetric,
		Combine:      DefaultCombineRule,
	}
}

// Validate 检查超参数。
func (o Options) Validate() error {
	if math.IsNaN(o.HalfLifeDays) || math.IsInf(o.HalfLifeDays, 0) {
		return fmt.Errorf("half_life_days must be finite, got %v", o.HalfLifeDays)
	}
	if o.MinCooccurrence < 0 || math.IsNaN(o.MinCooccurrence) {
		return fmt.Errorf("min_cooccurrence must be >= 0, got %v", o.MinCooccurrence)
	}
	if _, err := ParseMetric(string(o.Metric)); err != nil {
		return err
	}
	if _, err := ParseCombineRule(string(o.Combine)); err != nil {
		return err
	}
	return nil
}

// Stats 是训练过程的统计信息。
type Stats struct {
	Events       int
	UniqueEvents int
	Clamped      int
	Users        int
	Items        int
	Pairs        int       // 相似度 > 0 的无序物品对
	DataUntil    time.Time // 数据中最新的交易时间
	Duration     time.Duration
}

// Model 是一次训练的不可变产物。发布后只读，可被任意数量的请求并发使用。
type Model struct {
	opts       Options
	index      *ItemIndex
	similarity *Similarity
	normalized [][]Neighbor
	popularity []float64
	users      map[string][]weighted // 按 pos 升序
	stats      Stats
}

// Build 执行完整训练：聚合 → 共现 → 相似度。
// 没有任何事件，或所有数量都为 0 时返回 core.ErrNoTrainingData。
func Build(ctx context.Context, events []core.TransactionEvent, opts Options) (*Model, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("itemcf options: %w", err)
	}
	if len(events) == 0 {
		return nil, core.ErrNoTrainingData
	}
	start := time.Now()

	affinities, agg := Aggregate(events, opts.HalfLifeDays)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !hasPositive(affinities) {
		return nil, core.ErrNoTrainingData
	}

	co := BuildCooccurrence(affinities, CooccurrenceOptions{
		Combine:         opts.Combine,
		MinCooccurrence: opts.MinCooccurrence,
	})
	sim, err := BuildSimilarity(ctx, co, opts.Metric, opts.Workers)
	if err != nil {
		return nil, err
	}

	m := &Model{
		opts:       opts,
		index:      co.Index(),
		similarity: sim,
		popularity: co.Popularity(),
		users:      make(map[string][]weighted),
	}
	if opts.Normalize {
		m.normalized = sim.RowNormalized()
	}
	for _, a := range affinities {
		p, _ := m.index.Position(a.ItemID)
		m.users[a.UserID] = append(m.users[a.UserID], weighted{pos: p, weight: a.Weight})
	}

	pairs := 0
	for i := 0; i < sim.Len(); i++ {
		for _, nb := range sim.Row(i) {
			if nb.Pos > i {
				pairs++
			}
		}
	}
	m.stats = Stats{
		Events:       agg.Events,
		UniqueEvents: agg.UniqueEvents,
		Clamped:      agg.Clamped,
		Users:        len(m.users),
		Items:        m.index.Len(),
		Pairs:        pairs,
		DataUntil:    agg.Now,
		Duration:     time.Since(start),
	}
	return m, nil
}

// Options 返回训练时使用的超参数。
func (m *Model) Options() Options { return m.opts }

// Stats 返回训练统计。
func (m *Model) Stats() Stats { return m.stats }

// Index 返回物品索引。
func (m *Model) Index() *ItemIndex { return m.index }

// Similarity 返回相似度矩阵。
func (m *Model) Similarity() *Similarity { return m.similarity }

// HasUser 判断用户是否出现在训练数据中。
func (m *Model) HasUser(userID string) bool {
	if userID == "" {
		return false
	}
	_, ok := m.users[userID]
	return ok
}

// Similar 返回两个物品的相似度；任一物品未知时为 0。
func (m *Model) Similar(a, b string) float64 {
	i, ok := m.index.Position(a)
	if !ok {
		return 0
	}
	j, ok := m.index.Position(b)
	if !ok {
		return 0
	}
	return m.similarity.Get(i, j)
}

// Popularity 返回物品的加权流行度（共现矩阵对角线）。
func (m *Model) Popularity(id string) float64 {
	p, ok := m.index.Position(id)
	if !ok {
		return 0
	}
	return m.popularity[p]
}

// Popular 返回按加权流行度降序的前 n 个物品（同分按 item_id 升序），跳过 exclude 中的物品。
func (m *Model) Popular(n int, exclude map[string]struct{}) []core.ScoredItem {
	if n <= 0 {
		return nil
	}
	order := make([]int, 0, len(m.popularity))
	for p, v := range m.popularity {
		if v <= 0 {
			continue
		}
		if _, skip := exclude[m.index.ID(p)]; skip {
			continue
		}
		order = append(order, p)
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := m.popularity[order[a]], m.popularity[order[b]]
		if pa != pb {
			return pa > pb
		}
		return order[a] < order[b]
	})
	if len(order) > n {
		order = order[:n]
	}
	out := make([]core.ScoredItem, 0, len(order))
	for _, p := range order {
		out = append(out, core.ScoredItem{ItemID: m.index.ID(p), Score: m.popularity[p]})
	}
	return out
}

func hasPositive(affinities []Affinity) bool {
	for _, a := range affinities {
		if a.Weight > 0 {
			return true
		}
	}
	return false
}
