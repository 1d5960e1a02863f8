// Package server 暴露推荐服务的 HTTP 接口。
//
//	POST /recommend     购物车 → 推荐列表
//	GET  /health        模型状态，始终 200
//	POST /admin/train   触发后台重训
//	GET  /metrics       Prometheus 指标
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/engine"
	"github.com/rushteam/basketrec/logging"
	"github.com/rushteam/basketrec/pipeline"
)

// Model 是服务端依赖的模型生命周期接口，由 engine.Engine 实现。
type Model interface {
	Status() engine.Status
	TrainAsync(ctx context.Context) error
}

// Options 是 HTTP 层的可选项。
type Options struct {
	CORSOrigins []string
	// AdminEnabled 为 false 时不注册 /admin 路由
	AdminEnabled bool
}

type Server struct {
	pipeline *pipeline.Pipeline
	model    Model
	rcfg     core.RecommendConfig
	opts     Options
	validate *validator.Validate
	log      zerolog.Logger
}

func New(p *pipeline.Pipeline, model Model, rcfg core.RecommendConfig, opts Options) *Server {
	if rcfg == nil {
		rcfg = &core.DefaultRecommendConfig{}
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		pipeline: p,
		model:    model,
		rcfg:     rcfg,
		opts:     opts,
		validate: newValidator(),
		log:      logging.Component("server"),
	}
}

// Routes 返回挂好中间件与路由的 http.Handler。
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/recommend", s.handleRecommend)
	if s.opts.AdminEnabled {
		r.Post("/admin/train", s.handleTrain)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})
	return r
}
