// basketrec 启动"经常一起购买"推荐服务。
//
//	basketrec -config config.yaml
//
// 配置可由 BASKETREC_ 前缀的环境变量覆盖，见 config.Load。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rushteam/basketrec/catalog"
	"github.com/rushteam/basketrec/config"
	_ "github.com/rushteam/basketrec/config/builders"
	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/engine"
	"github.com/rushteam/basketrec/logging"
	"github.com/rushteam/basketrec/pipeline"
	"github.com/rushteam/basketrec/server"
	"github.com/rushteam/basketrec/source"
	"github.com/rushteam/basketrec/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: $BASKETREC_CONFIG or ./config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		l := logging.Logger()
		l.Error().Err(err).Msg("basketrec exited")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Logging)
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := openSource(cfg.Source)
	if err != nil {
		return err
	}
	defer closeSrc()

	eng, err := engine.New(src, cfg.EngineConfig())
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	kv, cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	pcfg := pipeline.Default()
	if cfg.Pipeline.Path != "" {
		if pcfg, err = pipeline.Load(cfg.Pipeline.Path); err != nil {
			return fmt.Errorf("load pipeline: %w", err)
		}
	}
	p, err := config.BuildPipeline(pcfg, config.Deps{Model: eng, Catalog: cat, Store: kv})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	srv := server.New(p, eng, cfg.Recommend, server.Options{
		CORSOrigins:  cfg.Server.CORSOrigins,
		AdminEnabled: cfg.Server.AdminEnabled,
	})
	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 训练在后台进行，未完成前 /recommend 返回 503
	eng.Start(context.Background())

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("source", src.Name()).
			Str("catalog", cat.Name()).
			Str("pipeline", p.Name).
			Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	eng.Stop(shutdownCtx)
	return nil
}

func openSource(cfg config.SourceConfig) (core.TransactionSource, func(), error) {
	switch cfg.Kind {
	case "sql":
		s, err := source.OpenSQL(cfg.SQL)
		if err != nil {
			return nil, nil, fmt.Errorf("open sql source: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return source.NewSynthetic(cfg.Synthetic), func() {}, nil
	}
}

// openCatalog 打开存储并构建商品目录；memory 模式直接使用进程内目录，redis 模式经熔断读取。
func openCatalog(ctx context.Context, cfg *config.App) (core.KeyValueStore, core.Catalog, error) {
	storeCfg, catCfg := cfg.StoreConfig()
	kv, err := store.Open(ctx, storeCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	var mock []core.Product
	if cfg.Catalog.SeedMock {
		mock = catalog.MockProducts(cfg.Catalog.MockSeed)
	}

	if cfg.Catalog.Kind != store.BackendRedis {
		return kv, catalog.NewMemory(mock...), nil
	}
	if len(mock) > 0 {
		if err := catalog.Seed(ctx, kv, catCfg.KeyPrefix, mock); err != nil {
			_ = kv.Close()
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
	}
	return kv, catalog.NewStoreCatalog(kv, catCfg), nil
}
