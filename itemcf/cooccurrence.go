package itemcf

import (
	"fmt"
	"math"
)

// CombineRule 决定同一用户的两个物品权重如何合成一次共现贡献。
type CombineRule string

const (
	// CombineMin 取两者较小值：共现不会超过任一物品自身的流行度，
	// 因此 Jaccard/Cosine 天然落在 [0,1]。
	CombineMin CombineRule = "min"
	// CombineBinary 每个同时拥有两者的用户计 1（经典 SAR 共现计数）。
	CombineBinary CombineRule = "binary"
	// CombineGeometric 取 sqrt(w_i * w_j)。
	CombineGeometric CombineRule = "geometric"
)

// DefaultCombineRule 是共现合成规则的默认值。
const DefaultCombineRule = CombineMin

// ParseCombineRule 解析配置中的合成规则，空字符串返回默认值。
func ParseCombineRule(s string) (CombineRule, error) {
	switch CombineRule(s) {
	case "":
		return DefaultCombineRule, nil
	case CombineMin, CombineBinary, CombineGeometric:
		return CombineRule(s), nil
	default:
		return "", fmt.Errorf("unknown combine rule %q (supported: min, binary, geometric)", s)
	}
}

func (r CombineRule) combine(wi, wj float64) float64 {
	switch r {
	case CombineBinary:
		return 1
	case CombineGeometric:
		return math.Sqrt(wi * wj)
	default:
		return math.Min(wi, wj)
	}
}

// Cooccurrence 是稀疏的物品共现矩阵：rows[i][j] 为 i、j 在同一用户下的累计共现权重。
// 对称；对角线 rows[i][i] 为物品 i 的加权流行度。
type Cooccurrence struct {
	index *ItemIndex
	rows  []map[int]float64
}

// CooccurrenceOptions 控制共现矩阵的构建。
type CooccurrenceOptions struct {
	Combine CombineRule
	// MinCooccurrence 非对角线元素低于该阈值时丢弃；0 表示保留所有正值
	MinCooccurrence float64
}

type weighted struct {
	pos    int
	weight float64
}

// BuildCooccurrence 从聚合后的用户-物品权重构建共现矩阵。
// 对每个用户，取权重大于 0 的物品集合 S，对 S 中每个无序对 (i, j)（含 i = j）累加 combine(w_i, w_j)。
// 复杂度 O(U · 平均篮子大小²)，内存与实际出现的共现对数量成正比。
func BuildCooccurrence(affinities []Affinity, opts CooccurrenceOptions) *Cooccurrence {
	ids := make([]string, 0, len(affinities))
	for _, a := range affinities {
		ids = append(ids, a.ItemID)
	}
	index := NewItemIndex(ids)

	rule := opts.Combine
	if rule == "" {
		rule = DefaultCombineRule
	}

	rows := make([]map[int]float64, index.Len())
	for i := range rows {
		rows[i] = make(map[int]float64)
	}

	for _, basket := range groupByUser(affinities, index) {
		for a := 0; a < len(basket); a++ {
			pa, wa := basket[a].pos, basket[a].weight
			rows[pa][pa] += rule.combine(wa, wa)
			for b := a + 1; b < len(basket); b++ {
				pb, wb := basket[b].pos, basket[b].weight
				v := rule.combine(wa, wb)
				rows[pa][pb] += v
				rows[pb][pa] += v
			}
		}
	}

	if opts.MinCooccurrence > 0 {
		for i, row := range rows {
			for j, v := range row {
				if i != j && v < opts.MinCooccurrence {
					delete(row, j)
				}
			}
		}
	}

	return &Cooccurrence{index: index, rows: rows}
}

// groupByUser 把 affinities 按用户切分为篮子，只保留权重大于 0 的物品。
// 依赖 Aggregate 的 (user, item) 升序输出；乱序输入也能正确分组，只是篮子会按用户首次出现的顺序排列。
func groupByUser(affinities []Affinity, index *ItemIndex) [][]weighted {
	order := make([]string, 0)
	baskets := make(map[string][]weighted)
	for _, a := range affinities {
		if a.Weight <= 0 {
			continue
		}
		p, ok := index.Position(a.ItemID)
		if !ok {
			continue
		}
		if _, seen := baskets[a.UserID]; !seen {
			order = append(order, a.UserID)
		}
		baskets[a.UserID] = append(baskets[a.UserID], weighted{pos: p, weight: a.Weight})
	}

	out := make([][]weighted, 0, len(order))
	for _, u := range order {
		out = append(out, baskets[u])
	}
	return out
}

// Index 返回共现矩阵使用的物品索引。
func (c *Cooccurrence) Index() *ItemIndex {
	return c.index
}

// Get 返回 C[i][j]。
func (c *Cooccurrence) Get(i, j int) float64 {
	return c.rows[i][j]
}

// Popularity 返回对角线，即每个物品的加权流行度。
func (c *Cooccurrence) Popularity() []float64 {
	out := make([]float64, len(c.rows))
	for i, row := range c.rows {
		out[i] = row[i]
	}
	return out
}

// Pairs 返回非零的非对角线无序对数量。
func (c *Cooccurrence) Pairs() int {
	n := 0
	for i, row := range c.rows {
		for j, v := range row {
			if j > i && v > 0 {
				n++
			}
		}
	}
	return n
}
