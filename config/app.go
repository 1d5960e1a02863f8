package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"

	"github.com/rushteam/basketrec/catalog"
	"github.com/rushteam/basketrec/engine"
	"github.com/rushteam/basketrec/itemcf"
	"github.com/rushteam/basketrec/logging"
	"github.com/rushteam/basketrec/source"
	"github.com/rushteam/basketrec/store"
)

const (
	// EnvPrefix 环境变量前缀，BASKETREC_SOURCE__SQL__DSN 对应 source.sql.dsn
	EnvPrefix = "BASKETREC_"
	// ConfigPathEnvVar 指定配置文件路径
	ConfigPathEnvVar = "BASKETREC_CONFIG"
)

// DefaultConfigPaths 未指定路径时按顺序查找，第一个存在的文件生效。
var DefaultConfigPaths = []string{"config.yaml", "config.yml", "/etc/basketrec/config.yaml"}

// App 是服务的完整配置。
type App struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	Model     ModelConfig     `koanf:"model"`
	Engine    EngineConfig    `koanf:"engine"`
	Source    SourceConfig    `koanf:"source"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Recommend RecommendConfig `koanf:"recommend"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	// AdminEnabled 是否暴露 /admin/train
	AdminEnabled bool `koanf:"admin_enabled"`
}

type ModelConfig struct {
	HalfLifeDays    float64 `koanf:"half_life_days" validate:"gte=0"`
	Similarity      string  `koanf:"similarity" validate:"omitempty,oneof=jaccard cosine lift"`
	Combine         string  `koanf:"combine" validate:"omitempty,oneof=min binary geometric"`
	MinCooccurrence float64 `koanf:"min_cooccurrence" validate:"gte=0"`
	Normalize       bool    `koanf:"normalize"`
	Workers         int     `koanf:"workers" validate:"gte=0"`
}

type EngineConfig struct {
	TrainOnStartup bool          `koanf:"train_on_startup"`
	TrainSchedule  string        `koanf:"train_schedule"`
	TrainTimeout   time.Duration `koanf:"train_timeout" validate:"gte=0"`
}

type SourceConfig struct {
	Kind      string                 `koanf:"kind" validate:"oneof=synthetic sql"`
	Synthetic source.SyntheticConfig `koanf:"synthetic"`
	SQL       source.SQLConfig       `koanf:"sql"`
}

type CatalogConfig struct {
	Kind  string            `koanf:"kind" validate:"oneof=memory redis"`
	Redis store.RedisConfig `koanf:"redis"`
	// KeyPrefix 商品哈希的 key 前缀
	KeyPrefix        string        `koanf:"key_prefix"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
	// SeedMock 启动时写入演示商品
	SeedMock bool  `koanf:"seed_mock"`
	MockSeed int64 `koanf:"mock_seed"`
}

type PipelineConfig struct {
	// Path 为空时使用内置链路
	Path string `koanf:"path"`
}

// RecommendConfig 实现 core.RecommendConfig。
type RecommendConfig struct {
	DefaultK int           `koanf:"default_top_k" validate:"gt=0"`
	MaxK     int           `koanf:"max_top_k" validate:"gtefield=DefaultK"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

func (c RecommendConfig) DefaultTopK() int              { return c.DefaultK }
func (c RecommendConfig) MaxTopK() int                  { return c.MaxK }
func (c RecommendConfig) DefaultTimeout() time.Duration { return c.Timeout }

// Default 返回全部默认值。
func Default() *App {
	opts := itemcf.DefaultOptions()
	eng := engine.DefaultConfig()
	storeCfg := catalog.DefaultStoreConfig()
	return &App{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			AdminEnabled:    true,
		},
		Logging: logging.Config{Level: "info", Format: "json"},
		Model: ModelConfig{
			HalfLifeDays:    opts.HalfLifeDays,
			Similarity:      string(opts.Metric),
			Combine:         string(opts.Combine),
			MinCooccurrence: opts.MinCooccurrence,
			Normalize:       opts.Normalize,
		},
		Engine: EngineConfig{
			TrainOnStartup: eng.TrainOnStartup,
			TrainSchedule:  eng.TrainSchedule,
			TrainTimeout:   eng.TrainTimeout,
		},
		Source: SourceConfig{
			Kind:      "synthetic",
			Synthetic: source.SyntheticConfig{Rows: 1000, Users: 50, Days: 300, Seed: 42},
			SQL:       source.DefaultSQLConfig(),
		},
		Catalog: CatalogConfig{
			Kind:             "memory",
			Redis:            store.RedisConfig{Addr: "127.0.0.1:6379"},
			KeyPrefix:        storeCfg.KeyPrefix,
			FailureThreshold: storeCfg.FailureThreshold,
			OpenTimeout:      storeCfg.OpenTimeout,
			SeedMock:         true,
			MockSeed:         42,
		},
		Recommend: RecommendConfig{DefaultK: 5, MaxK: 100, Timeout: 2 * time.Second},
	}
}

// Load 依次叠加：结构体默认值 → YAML 文件 → BASKETREC_ 环境变量。
// path 为空时读取 BASKETREC_CONFIG，再按 DefaultConfigPaths 查找；都没有时只用默认值与环境变量。
func Load(path string) (*App, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &App{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey 把 BASKETREC_SOURCE__SQL__DSN 转为 source.sql.dsn。
func envKey(s string) string {
	if s == ConfigPathEnvVar {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验取值范围以及各数据源自身的约束。
func (c *App) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		errs = append(errs, err)
	}
	if err := c.ModelOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if c.Engine.TrainSchedule != "" {
		if _, err := cron.ParseStandard(c.Engine.TrainSchedule); err != nil {
			errs = append(errs, fmt.Errorf("engine.train_schedule: %w", err))
		}
	}
	if c.Source.Kind == "sql" {
		if err := c.Source.SQL.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Catalog.Kind == "redis" && c.Catalog.Redis.Addr == "" {
		errs = append(errs, errors.New("catalog.redis.addr is required"))
	}
	return errors.Join(errs...)
}

// ModelOptions 转换为训练参数。
func (c *App) ModelOptions() itemcf.Options {
	return itemcf.Options{
		HalfLifeDays:    c.Model.HalfLifeDays,
		Metric:          itemcf.Metric(c.Model.Similarity),
		Combine:         itemcf.CombineRule(c.Model.Combine),
		MinCooccurrence: c.Model.MinCooccurrence,
		Normalize:       c.Model.Normalize,
		Workers:         c.Model.Workers,
	}
}

// EngineConfig 转换为 engine.Config。
func (c *App) EngineConfig() engine.Config {
	return engine.Config{
		Model:          c.ModelOptions(),
		TrainTimeout:   c.Engine.TrainTimeout,
		TrainSchedule:  c.Engine.TrainSchedule,
		TrainOnStartup: c.Engine.TrainOnStartup,
	}
}

// StoreConfig 转换为目录存储配置。
func (c *App) StoreConfig() (store.Config, catalog.StoreConfig) {
	return store.Config{Backend: c.Catalog.Kind, Redis: c.Catalog.Redis},
		catalog.StoreConfig{
			KeyPrefix:        c.Catalog.KeyPrefix,
			FailureThreshold: c.Catalog.FailureThreshold,
			OpenTimeout:      c.Catalog.OpenTimeout,
		}
}
