package itemcf

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Metric 是物品相似度的度量方式。
type Metric string

const (
	// MetricJaccard C_ij / (C_ii + C_jj - C_ij)
	MetricJaccard Metric = "jaccard"
	// MetricCosine C_ij / sqrt(C_ii * C_jj)
	MetricCosine Metric = "cosine"
	// MetricLift C_ij / (C_ii * C_jj)，再除以全局最大非对角 lift 缩放到 [0,1]
	MetricLift Metric = "lift"
)

// DefaultMetric 是默认的相似度度量。
const DefaultMetric = MetricJaccard

// ParseMetric 解析配置中的度量名称，空字符串返回默认值。
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "":
		return DefaultMetric, nil
	case MetricJaccard, MetricCosine, MetricLift:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q (supported: jaccard, cosine, lift)", s)
	}
}

// Neighbor 是相似度矩阵一行中的一个非零元素。
type Neighbor struct {
	Pos   int
	Score float64
}

// Similarity 是稀疏对称的物品相似度矩阵。
// 每行只存非对角线上 score > 0 的元素，按 Pos 升序；对角线隐式为 1。
type Similarity struct {
	metric Metric
	rows   [][]Neighbor
}

// BuildSimilarity 从共现矩阵计算相似度，按行并发，每个 worker 只写自己的行，结果与 workers 无关。
// workers <= 0 时取 GOMAXPROCS。
func BuildSimilarity(ctx context.Context, c *Cooccurrence, metric Metric, workers int) (*Similarity, error) {
	if metric == "" {
		metric = DefaultMetric
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	n := c.index.Len()
	diag := c.Popularity()
	rows := make([][]Neighbor, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = similarityRow(c.rows[i], i, diag, metric)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build similarity: %w", err)
	}

	if metric == MetricLift {
		rescale(rows)
	}
	return &Similarity{metric: metric, rows: rows}, nil
}

func similarityRow(row map[int]float64, i int, diag []float64, metric Metric) []Neighbor {
	out := make([]Neighbor, 0, len(row))
	for j, cij := range row {
		if j == i || cij <= 0 {
			continue
		}
		s := score(metric, cij, diag[i], diag[j])
		if metric != MetricLift {
			s = clamp01(s)
		} else if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			s = 0
		}
		if s > 0 {
			out = append(out, Neighbor{Pos: j, Score: s})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Pos < out[b].Pos })
	return out
}

func score(metric Metric, cij, cii, cjj float64) float64 {
	var denom float64
	switch metric {
	case MetricCosine:
		denom = math.Sqrt(cii * cjj)
	case MetricLift:
		denom = cii * cjj
	default:
		denom = cii + cjj - cij
	}
	if denom <= 0 || math.IsNaN(denom) {
		return 0
	}
	return cij / denom
}

// rescale 把 lift 除以全局最大值，使其落在 [0,1]。
func rescale(rows [][]Neighbor) {
	var max float64
	for _, row := range rows {
		for _, nb := range row {
			if nb.Score > max {
				max = nb.Score
			}
		}
	}
	if max <= 0 {
		return
	}
	for _, row := range rows {
		for k := range row {
			row[k].Score = clamp01(row[k].Score / max)
		}
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 1:
		return 1
	default:
		return v
	}
}

// Metric 返回构建时使用的度量。
func (s *Similarity) Metric() Metric {
	return s.metric
}

// Len 返回物品数量。
func (s *Similarity) Len() int {
	return len(s.rows)
}

// Row 返回第 i 行的非零邻居（只读，按 Pos 升序）。
func (s *Similarity) Row(i int) []Neighbor {
	return s.rows[i]
}

// Get 返回 S[i][j]。
func (s *Similarity) Get(i, j int) float64 {
	if i == j {
		return 1
	}
	row := s.rows[i]
	k := sort.Search(len(row), func(k int) bool { return row[k].Pos >= j })
	if k < len(row) && row[k].Pos == j {
		return row[k].Score
	}
	return 0
}

// RowNormalized 返回行随机化的副本（分母含对角线 1），只包含非对角线元素，用于传播打分。
func (s *Similarity) RowNormalized() [][]Neighbor {
	out := make([][]Neighbor, len(s.rows))
	for i, row := range s.rows {
		sum := 1.0
		for _, nb := range row {
			sum += nb.Score
		}
		norm := make([]Neighbor, 0, len(row))
		for _, nb := range row {
			norm = append(norm, Neighbor{Pos: nb.Pos, Score: nb.Score / sum})
		}
		out[i] = norm
	}
	return out
}
