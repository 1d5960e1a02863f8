package itemcf

import (
	"math"
	"sort"

	"github.com/rushteam/basketrec/core"
)

// Mode 是打分模式。
type Mode string

const (
	// ModeColdStart 只用购物车中的物品作为种子，每个种子权重 1
	ModeColdStart Mode = "cold_start"
	// ModeHistory 用户出现在训练数据中：历史物品按 affinity 加权，并排除已购物品
	ModeHistory Mode = "history"
)

// ErrNonFiniteScore 表示打分过程出现 NaN/Inf，属于内部数值故障。
var ErrNonFiniteScore = core.NewDomainError(core.ModuleModel, core.ErrorCodeInternalError, "model: non-finite score")

// Query 是一次推荐请求。
type Query struct {
	Seeds  []string // 购物车物品，顺序与重复无关
	TopK   int
	UserID string // 可选；训练数据中出现过时启用 history 模式
	// Propagate 使用行随机化相似度打分（需要训练时 Options.Normalize=true，否则退化为原始相似度）
	Propagate bool
}

// ModeFor 返回该用户对应的打分模式。
func (m *Model) ModeFor(userID string) Mode {
	if m.HasUser(userID) {
		return ModeHistory
	}
	return ModeColdStart
}

// Partition 把物品分为训练中出现过的和未知的两组，保持输入顺序并去重。
func (m *Model) Partition(ids []string) (known, unknown []string) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := m.index.Position(id); ok {
			known = append(known, id)
		} else {
			unknown = append(unknown, id)
		}
	}
	return known, unknown
}

// Recommend 返回与种子物品最可能一起购买的物品。
//
// 打分：score[c] = Σ_i w_i · sim[i][c]。
//   - cold_start：种子 w_i = 1
//   - history：用户历史物品 w_i = affinity[u][i]，未购买过的种子 w_i = 1；已购物品从候选中移除
//
// 结果：不含种子，只保留 score > 0 的候选，按 score 降序、item_id 升序，最多 TopK 个。
// 未知种子直接忽略；没有候选时返回空切片。
func (m *Model) Recommend(q Query) ([]core.ScoredItem, error) {
	if q.TopK <= 0 {
		return nil, core.ErrInvalidTopK
	}

	weights := make(map[int]float64)
	exclude := make(map[int]struct{})

	if owned, ok := m.users[q.UserID]; ok && q.UserID != "" {
		for _, w := range owned {
			weights[w.pos] = w.weight
			exclude[w.pos] = struct{}{}
		}
	}
	for _, id := range q.Seeds {
		p, ok := m.index.Position(id)
		if !ok {
			continue
		}
		exclude[p] = struct{}{}
		if _, owned := weights[p]; !owned {
			weights[p] = 1
		}
	}
	if len(weights) == 0 {
		return []core.ScoredItem{}, nil
	}

	// 按种子下标顺序累加，保证同一输入的浮点结果逐位一致
	sources := make([]int, 0, len(weights))
	for p := range weights {
		sources = append(sources, p)
	}
	sort.Ints(sources)

	rows := m.similarity.rows
	if q.Propagate && m.normalized != nil {
		rows = m.normalized
	}

	scores := make(map[int]float64)
	for _, p := range sources {
		w := weights[p]
		if w == 0 {
			continue
		}
		for _, nb := range rows[p] {
			if _, skip := exclude[nb.Pos]; skip {
				continue
			}
			scores[nb.Pos] += w * nb.Score
		}
	}

	candidates := make([]int, 0, len(scores))
	for c, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, ErrNonFiniteScore
		}
		if s > 0 {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		sa, sb := scores[candidates[a]], scores[candidates[b]]
		if sa != sb {
			return sa > sb
		}
		return candidates[a] < candidates[b]
	})
	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}

	out := make([]core.ScoredItem, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, core.ScoredItem{ItemID: m.index.ID(c), Score: scores[c]})
	}
	return out, nil
}
