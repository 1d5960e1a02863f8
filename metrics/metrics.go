// Package metrics 定义服务的 Prometheus 指标，通过 /metrics 暴露。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 训练
	TrainingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketrec_training_runs_total",
			Help: "Total number of training runs by result",
		},
		[]string{"result"}, // success / error / rejected
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basketrec_training_duration_seconds",
			Help:    "Duration of successful training runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	ModelItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "basketrec_model_items",
			Help: "Number of items in the published model",
		},
	)

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "basketrec_model_version",
			Help: "Version of the published model, 0 while untrained",
		},
	)

	// 数据接入
	IngestRowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketrec_ingest_rows_dropped_total",
			Help: "Total number of malformed transaction rows dropped during ingestion",
		},
		[]string{"reason"},
	)

	// 在线推荐
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketrec_recommend_requests_total",
			Help: "Total number of recommendation requests by result",
		},
		[]string{"result"}, // ok / empty / invalid / not_ready / error
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basketrec_recommend_duration_seconds",
			Help:    "Latency of recommendation scoring in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	CatalogMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basketrec_catalog_misses_total",
			Help: "Total number of catalog lookups answered with the placeholder product",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "basketrec_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordTraining 记录一次训练的结果。
func RecordTraining(duration time.Duration, items int, version int64, err error) {
	if err != nil {
		TrainingRuns.WithLabelValues("error").Inc()
		return
	}
	TrainingRuns.WithLabelValues("success").Inc()
	TrainingDuration.Observe(duration.Seconds())
	ModelItems.Set(float64(items))
	ModelVersion.Set(float64(version))
}

// RecordTrainingRejected 记录因已有训练在执行而被拒绝的训练请求。
func RecordTrainingRejected() {
	TrainingRuns.WithLabelValues("rejected").Inc()
}

// RecordDroppedRow 记录一条被丢弃的交易明细。
func RecordDroppedRow(reason string) {
	IngestRowsDropped.WithLabelValues(reason).Inc()
}

// RecordRecommend 记录一次推荐请求。
func RecordRecommend(result string, duration time.Duration) {
	RecommendRequests.WithLabelValues(result).Inc()
	if duration > 0 {
		RecommendDuration.Observe(duration.Seconds())
	}
}

// RecordCatalogMiss 记录 n 次目录未命中。
func RecordCatalogMiss(n int) {
	if n > 0 {
		CatalogMisses.Add(float64(n))
	}
}

// RecordBreakerState 记录熔断器状态：0 关闭，1 半开，2 打开。
func RecordBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}
