package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rushteam/basketrec/core"
	"github.com/rushteam/basketrec/itemcf"
	"github.com/rushteam/basketrec/logging"
	"github.com/rushteam/basketrec/metrics"
)

// Recommend 使用当前模型为购物车打分。
//
//   - 未训练：core.ErrModelNotReady
//   - top_k <= 0：core.ErrInvalidTopK
//   - 打分过程中的数值故障或 panic：记录日志，返回空结果
func (e *Engine) Recommend(ctx context.Context, q itemcf.Query) (items []core.ScoredItem, err error) {
	start := time.Now()
	snap := e.current.Load()
	if snap == nil {
		metrics.RecordRecommend("not_ready", 0)
		return nil, core.ErrModelNotReady
	}

	log := logging.Ctx(ctx).With().
		Str("component", "engine").
		Int64("model_version", snap.Version).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Strs("cart", q.Seeds).
				Msg("recommend panicked, returning empty result")
			items, err = []core.ScoredItem{}, nil
			metrics.RecordRecommend("error", time.Since(start))
		}
	}()

	items, err = snap.Model.Recommend(q)
	switch {
	case errors.Is(err, itemcf.ErrNonFiniteScore):
		log.Error().Err(err).Strs("cart", q.Seeds).Msg("numeric fault while scoring, returning empty result")
		metrics.RecordRecommend("error", time.Since(start))
		return []core.ScoredItem{}, nil
	case err != nil:
		metrics.RecordRecommend("invalid", 0)
		return nil, err
	}

	result := "ok"
	if len(items) == 0 {
		result = "empty"
	}
	metrics.RecordRecommend(result, time.Since(start))

	if ev := log.Debug(); ev.Enabled() {
		_, unknown := snap.Model.Partition(q.Seeds)
		ev.Str("mode", string(snap.Model.ModeFor(q.UserID))).
			Strs("unknown_items", unknown).
			Int("returned", len(items)).
			Msg("recommend")
	}
	return items, nil
}

// Popular 返回当前模型中最流行的物品，未训练时返回 core.ErrModelNotReady。
func (e *Engine) Popular(n int, exclude map[string]struct{}) ([]core.ScoredItem, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, core.ErrModelNotReady
	}
	return snap.Model.Popular(n, exclude), nil
}
