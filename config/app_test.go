package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rushteam/basketrec/itemcf"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	opts := cfg.ModelOptions()
	if opts.Metric != itemcf.MetricJaccard || opts.Combine != itemcf.CombineMin || opts.HalfLifeDays != 30 {
		t.Errorf("ModelOptions() = %+v", opts)
	}
	if cfg.Recommend.DefaultTopK() != 5 || cfg.Recommend.MaxTopK() != 100 {
		t.Errorf("Recommend = %+v", cfg.Recommend)
	}
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "basketrec.yaml")
	yml := `
server:
  addr: ":9000"
model:
  similarity: cosine
  half_life_days: 7
source:
  kind: sql
  sql:
    driver: mysql
    dsn: "u:p@tcp(db:3306)/orders_db"
    table: order_items
recommend:
  default_top_k: 10
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BASKETREC_MODEL__SIMILARITY", "lift")
	t.Setenv("BASKETREC_ENGINE__TRAIN_TIMEOUT", "90s")
	t.Setenv("BASKETREC_SERVER__CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Model.Similarity != "lift" {
		t.Errorf("model.similarity = %q, want env override", cfg.Model.Similarity)
	}
	if cfg.Model.HalfLifeDays != 7 || cfg.Model.Combine != "min" {
		t.Errorf("model = %+v", cfg.Model)
	}
	if cfg.Engine.TrainTimeout != 90*time.Second {
		t.Errorf("engine.train_timeout = %v", cfg.Engine.TrainTimeout)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("server.cors_origins = %v", cfg.Server.CORSOrigins)
	}
	// 文件未覆盖的字段保留默认值
	if cfg.Source.SQL.Columns.User != "Email" || cfg.Recommend.MaxK != 100 || cfg.Recommend.DefaultK != 10 {
		t.Errorf("defaults lost: columns=%+v recommend=%+v", cfg.Source.SQL.Columns, cfg.Recommend)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() with missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*App)
	}{
		{name: "unknown similarity", mutate: func(c *App) { c.Model.Similarity = "pearson" }},
		{name: "negative half life", mutate: func(c *App) { c.Model.HalfLifeDays = -1 }},
		{name: "bad schedule", mutate: func(c *App) { c.Engine.TrainSchedule = "every day" }},
		{name: "sql without dsn", mutate: func(c *App) { c.Source.Kind = "sql" }},
		{name: "unknown source", mutate: func(c *App) { c.Source.Kind = "csv" }},
		{name: "max below default", mutate: func(c *App) { c.Recommend.MaxK = 1 }},
		{name: "redis without addr", mutate: func(c *App) { c.Catalog.Kind = "redis"; c.Catalog.Redis.Addr = "" }},
		{name: "empty addr", mutate: func(c *App) { c.Server.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"BASKETREC_SOURCE__SQL__DSN":      "source.sql.dsn",
		"BASKETREC_LOGGING__LEVEL":        "logging.level",
		"BASKETREC_MODEL__HALF_LIFE_DAYS": "model.half_life_days",
		"BASKETREC_CONFIG":                "",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
