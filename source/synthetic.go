package source

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/logging"
)

// 演示目录中的 SKU。XIAO 主板与圆形屏幕是一组强关联的组合购买。
const (
	SKUXiaoSense      = "102010469"
	SKURoundDisplay   = "104030087"
	SKUXiaoSAMD21     = "110010004"
	SKUVisionAI       = "114992825"
	SKUWioE5          = "101020083"
	SKUSenseCAPM1     = "103030276"
	BundleProbability = 0.7
)

// DemoSKUs 按固定顺序列出演示目录中的 SKU。
var DemoSKUs = []string{SKUXiaoSense, SKURoundDisplay, SKUXiaoSAMD21, SKUVisionAI, SKUWioE5, SKUSenseCAPM1}

// SyntheticConfig 是模拟数据生成参数。
type SyntheticConfig struct {
	Rows  int   `koanf:"rows"`  // 主商品行数，默认 1000
	Users int   `koanf:"users"` // 用户数，默认 50
	Days  int   `koanf:"days"`  // 时间跨度（天），默认 300
	Seed  int64 `koanf:"seed"`  // 随机种子，相同种子产生相同数据
	// Start 起始日期，默认 2024-01-01
	Start time.Time `koanf:"-"`
}

// Synthetic 生成带组合购买规律的模拟交易：
// 每行随机用户、随机 SKU、数量 1~5、日期在 [Start, Start+Days]；
// 主商品为 XIAO 主板时以 70% 概率追加一行圆形屏幕（数量 8，同一用户、另一随机日期）。
type Synthetic struct {
	cfg SyntheticConfig
}

// NewSynthetic 创建模拟数据源，零值字段取默认值。
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.Rows <= 0 {
		cfg.Rows = 1000
	}
	if cfg.Users <= 0 {
		cfg.Users = 50
	}
	if cfg.Days <= 0 {
		cfg.Days = 300
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Synthetic{cfg: cfg}
}

func (s *Synthetic) Name() string { return "synthetic" }

// Rows 生成原始明细（与数据库中的字符串格式一致）。
func (s *Synthetic) Rows() []Row {
	r := rand.New(rand.NewSource(s.cfg.Seed)) //nolint:gosec // 模拟数据不需要加密随机数
	users := make([]string, s.cfg.Users)
	for i := range users {
		users[i] = fmt.Sprintf("user%d@example.com", i)
	}

	day := func() string {
		return s.cfg.Start.AddDate(0, 0, r.Intn(s.cfg.Days+1)).Format("2006-01-02")
	}

	rows := make([]Row, 0, s.cfg.Rows+s.cfg.Rows/4)
	for i := 0; i < s.cfg.Rows; i++ {
		user := users[r.Intn(len(users))]
		date := day()
		sku := DemoSKUs[r.Intn(len(DemoSKUs))]
		qty := strconv.Itoa(1 + r.Intn(5))
		rows = append(rows, Row{UserID: user, ItemID: sku, Quantity: &qty, Timestamp: date})

		if sku == SKUXiaoSense && r.Float64() < BundleProbability {
			bundleQty := "8"
			rows = append(rows, Row{UserID: user, ItemID: SKURoundDisplay, Quantity: &bundleQty, Timestamp: day()})
		}
	}
	return rows
}

func (s *Synthetic) Load(ctx context.Context) ([]core.TransactionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logging.Component("source").With().Str("source", s.Name()).Logger()
	events, stats := Normalize(s.Rows(), log)
	log.Info().Int("rows", stats.Rows).Int("events", len(events)).Int64("seed", s.cfg.Seed).
		Msg("generated synthetic transactions")
	return events, nil
}
