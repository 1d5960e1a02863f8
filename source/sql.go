package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/logging"
)

// SQLColumns 把交易明细表的列映射到 Row 字段。
type SQLColumns struct {
	User      string `koanf:"user"`
	Item      string `koanf:"item"`
	Quantity  string `koanf:"quantity"` // 为空表示表中没有数量列，按 1 处理
	Timestamp string `koanf:"timestamp"`
}

// SQLConfig 是 SQL 数据源配置。
type SQLConfig struct {
	Driver  string     `koanf:"driver"` // mysql / sqlite
	DSN     string     `koanf:"dsn"`
	Table   string     `koanf:"table"`
	Columns SQLColumns `koanf:"columns"`
	SSH     SSHConfig  `koanf:"ssh"`
	// SlowThreshold 超过该耗时的查询以 warn 级别记录
	SlowThreshold time.Duration `koanf:"slow_threshold"`
}

// DefaultSQLConfig 返回订单明细表 order_items 的默认映射。
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		Driver: "mysql",
		Table:  "order_items",
		Columns: SQLColumns{
			User:      "Email",
			Item:      "MaterialNumber",
			Quantity:  "QTY",
			Timestamp: "BillDate",
		},
		SlowThreshold: 5 * time.Second,
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate 检查表名/列名，只允许标识符，避免拼接 SQL 时注入。
func (c SQLConfig) Validate() error {
	if c.DSN == "" {
		return errors.New("sql source: dsn is required")
	}
	switch c.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("sql source: unsupported driver %q", c.Driver)
	}
	if c.SSH.Enabled() && c.Driver != "mysql" {
		return errors.New("sql source: ssh tunnel is only supported for mysql")
	}
	for name, ident := range map[string]string{
		"table":             c.Table,
		"columns.user":      c.Columns.User,
		"columns.item":      c.Columns.Item,
		"columns.timestamp": c.Columns.Timestamp,
	} {
		if !identRe.MatchString(ident) {
			return fmt.Errorf("sql source: invalid %s %q", name, ident)
		}
	}
	if c.Columns.Quantity != "" && !identRe.MatchString(c.Columns.Quantity) {
		return fmt.Errorf("sql source: invalid columns.quantity %q", c.Columns.Quantity)
	}
	return nil
}

// SQL 从关系库的交易明细表加载数据，可选经 SSH 隧道连接 MySQL。
type SQL struct {
	db     *gorm.DB
	cfg    SQLConfig
	tunnel *sshTunnel
	logger zerolog.Logger
}

// OpenSQL 按配置建立连接（必要时先建立 SSH 隧道）。
func OpenSQL(cfg SQLConfig) (*SQL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.Component("source").With().Str("source", "sql").Logger()

	var (
		tunnel *sshTunnel
		dialer gorm.Dialector
	)
	switch cfg.Driver {
	case "mysql":
		dsn := cfg.DSN
		if cfg.SSH.Enabled() {
			t, err := openSSHTunnel(cfg.SSH)
			if err != nil {
				return nil, err
			}
			if dsn, err = t.rewriteDSN(dsn); err != nil {
				_ = t.Close()
				return nil, err
			}
			tunnel = t
			log.Info().Str("ssh_host", cfg.SSH.Host).Msg("mysql connection tunneled through ssh")
		}
		dialer = mysql.Open(dsn)
	case "sqlite":
		dialer = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialer, &gorm.Config{
		Logger:                 logging.NewGormLogger(log, cfg.SlowThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		if tunnel != nil {
			_ = tunnel.Close()
		}
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	s := NewSQL(db, cfg)
	s.tunnel = tunnel
	return s, nil
}

// NewSQL 使用已有的 gorm 连接。
func NewSQL(db *gorm.DB, cfg SQLConfig) *SQL {
	return &SQL{
		db:     db,
		cfg:    cfg,
		logger: logging.Component("source").With().Str("source", "sql").Logger(),
	}
}

func (s *SQL) Name() string { return "sql" }

// Load 读取整张明细表并清洗。
func (s *SQL) Load(ctx context.Context) ([]core.TransactionEvent, error) {
	c := s.cfg.Columns
	quantity := "NULL"
	if c.Quantity != "" {
		quantity = c.Quantity
	}
	sel := fmt.Sprintf("COALESCE(%s, '') AS user_id, COALESCE(%s, '') AS item_id, %s AS quantity, COALESCE(%s, '') AS ts",
		c.User, c.Item, quantity, c.Timestamp)

	var rows []Row
	start := time.Now()
	if err := s.db.WithContext(ctx).Table(s.cfg.Table).Select(sel).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", s.cfg.Table, err)
	}
	s.logger.Info().Str("table", s.cfg.Table).Int("rows", len(rows)).Dur("elapsed", time.Since(start)).
		Msg("loaded transaction rows")

	events, _ := Normalize(rows, s.logger)
	return events, nil
}

// Close 关闭数据库连接和 SSH 隧道。
func (s *SQL) Close() error {
	var errs []error
	if sqlDB, err := s.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	if s.tunnel != nil {
		errs = append(errs, s.tunnel.Close())
	}
	return errors.Join(errs...)
}
