// Package engine 管理相似度模型的生命周期：训练、原子发布、并发读取。
//
// 状态只有 UNTRAINED → TRAINED 一个方向。训练在后台单飞执行，成功后整体替换模型指针；
// 失败时保留旧模型。读请求只加载一次指针，不加锁，也不会等待训练。
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/itemcf"
	"github.com/rushteam/basketrec/logging"
	"github.com/rushteam/basketrec/metrics"
)

// State 是模型生命周期状态。
type State string

const (
	StateUntrained State = "UNTRAINED"
	StateTrained   State = "TRAINED"
)

// Config 是生命周期控制器的配置。
type Config struct {
	Model itemcf.Options
	// TrainTimeout 单次训练（含数据加载）的超时，0 表示不限
	TrainTimeout time.Duration
	// TrainSchedule 定时重训的 cron 表达式（5 段），空表示关闭
	TrainSchedule string
	// TrainOnStartup Start 时是否立即在后台训练
	TrainOnStartup bool
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		Model:          itemcf.DefaultOptions(),
		TrainTimeout:   10 * time.Minute,
		TrainOnStartup: true,
	}
}

// Snapshot 是一次发布的模型及其版本信息，发布后不可变。
type Snapshot struct {
	Model     *itemcf.Model
	Version   int64
	TrainedAt time.Time
}

// Status 是对外暴露的训练状态。
type Status struct {
	State        State         `json:"state"`
	Training     bool          `json:"training"`
	Version      int64         `json:"model_version"`
	TrainedAt    time.Time     `json:"trained_at,omitempty"`
	Items        int           `json:"items"`
	Users        int           `json:"users"`
	Pairs        int           `json:"pairs"`
	LastError    string        `json:"last_error,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	Source       string        `json:"source"`
}

// Engine 是模型生命周期控制器，可并发使用。
type Engine struct {
	source core.TransactionSource
	cfg    Config
	logger zerolog.Logger

	current atomic.Pointer[Snapshot]
	version atomic.Int64

	trainMu sync.Mutex // 单飞
	bg      sync.WaitGroup

	statusMu     sync.RWMutex
	training     bool
	lastError    string
	lastDuration time.Duration

	cron *cron.Cron
}

// New 创建 Engine，模型处于 UNTRAINED。
func New(source core.TransactionSource, cfg Config) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("engine: transaction source is required")
	}
	if err := cfg.Model.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &Engine{
		source: source,
		cfg:    cfg,
		logger: logging.Component("engine"),
	}
	if cfg.TrainSchedule != "" {
		e.cron = cron.New()
		if _, err := e.cron.AddFunc(cfg.TrainSchedule, e.scheduledTrain); err != nil {
			return nil, fmt.Errorf("engine: invalid train_schedule %q: %w", cfg.TrainSchedule, err)
		}
	}
	return e, nil
}

// Start 按配置启动后台训练与定时重训，立即返回。
func (e *Engine) Start(ctx context.Context) {
	if e.cfg.TrainOnStartup {
		if err := e.TrainAsync(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("startup training not started")
		}
	}
	if e.cron != nil {
		e.cron.Start()
		e.logger.Info().Str("schedule", e.cfg.TrainSchedule).Msg("scheduled retraining enabled")
	}
}

// Stop 停止定时重训，并等待后台训练结束或 ctx 到期。
func (e *Engine) Stop(ctx context.Context) {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	done := make(chan struct{})
	go func() {
		e.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (e *Engine) scheduledTrain() {
	if err := e.Train(context.Background()); core.IsConflict(err) {
		e.logger.Warn().Msg("scheduled training skipped: previous run still in progress")
	}
}

// Train 同步训练并发布新模型。
// 已有训练在执行时立即返回 core.ErrTrainingInProgress；失败时旧模型保持不变。
func (e *Engine) Train(ctx context.Context) error {
	if !e.trainMu.TryLock() {
		metrics.RecordTrainingRejected()
		return core.ErrTrainingInProgress
	}
	defer e.trainMu.Unlock()
	return e.train(ctx)
}

// TrainAsync 在后台训练；已有训练在执行时返回 core.ErrTrainingInProgress。
// 后台训练不受调用方 ctx 取消的影响，只受 TrainTimeout 约束。
func (e *Engine) TrainAsync(ctx context.Context) error {
	if !e.trainMu.TryLock() {
		metrics.RecordTrainingRejected()
		return core.ErrTrainingInProgress
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		defer e.trainMu.Unlock()
		_ = e.train(context.WithoutCancel(ctx)) // 失败已在 finishTraining 中记录
	}()
	return nil
}

// train 要求调用方已持有 trainMu。
func (e *Engine) train(ctx context.Context) (err error) {
	start := time.Now()
	e.setTraining(true)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: training panic: %v", r)
			e.logger.Error().Str("stack", string(debug.Stack())).Msg("training panicked")
		}
		e.finishTraining(time.Since(start), err)
	}()

	if e.cfg.TrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TrainTimeout)
		defer cancel()
	}

	e.logger.Info().Str("source", e.source.Name()).Msg("starting model training")

	events, err := e.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load transactions from %s: %w", e.source.Name(), err)
	}
	model, err := itemcf.Build(ctx, events, e.cfg.Model)
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}

	snap := &Snapshot{
		Model:     model,
		Version:   e.version.Add(1),
		TrainedAt: time.Now(),
	}
	e.current.Store(snap)

	st := model.Stats()
	metrics.RecordTraining(time.Since(start), st.Items, snap.Version, nil)
	e.logger.Info().
		Int64("version", snap.Version).
		Int("events", st.Events).
		Int("unique_events", st.UniqueEvents).
		Int("users", st.Users).
		Int("items", st.Items).
		Int("pairs", st.Pairs).
		Str("metric", string(model.Similarity().Metric())).
		Dur("duration", time.Since(start)).
		Msg("model training complete")
	return nil
}

func (e *Engine) setTraining(v bool) {
	e.statusMu.Lock()
	e.training = v
	e.statusMu.Unlock()
}

func (e *Engine) finishTraining(d time.Duration, err error) {
	e.statusMu.Lock()
	e.training = false
	e.lastDuration = d
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
	}
	e.statusMu.Unlock()

	if err != nil {
		metrics.RecordTraining(d, 0, 0, err)
		e.logger.Error().Err(err).Dur("duration", d).Msg("model training failed")
	}
}

// Snapshot 返回当前发布的模型，未训练时为 nil。
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Ready 表示是否已有可用模型。
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// Status 返回当前状态。
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	st := Status{
		State:        StateUntrained,
		Training:     e.training,
		LastError:    e.lastError,
		LastDuration: e.lastDuration,
		Source:       e.source.Name(),
	}
	e.statusMu.RUnlock()

	if snap := e.current.Load(); snap != nil {
		ms := snap.Model.Stats()
		st.State = StateTrained
		st.Version = snap.Version
		st.TrainedAt = snap.TrainedAt
		st.Items = ms.Items
		st.Users = ms.Users
		st.Pairs = ms.Pairs
	}
	return st
}
