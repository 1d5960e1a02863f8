package logging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger 把 gorm 的日志输出到 zerolog：错误为 error，慢查询为 warn，其余为 debug。
type GormLogger struct {
	logger        zerolog.Logger
	SlowThreshold time.Duration
}

// NewGormLogger 创建 gorm 日志适配器。
func NewGormLogger(l zerolog.Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{logger: l, SlowThreshold: slowThreshold}
}

// LogMode 沿用 zerolog 的级别配置。
func (l *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	l.logger.Info().Msg(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	l.logger.Warn().Msg(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	l.logger.Error().Msg(fmt.Sprintf(msg, data...))
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	var ev *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		ev = l.logger.Error().Err(err)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold:
		ev = l.logger.Warn().Str("type", "slow_query")
	default:
		ev = l.logger.Debug()
	}
	if rows >= 0 {
		ev = ev.Int64("rows", rows)
	}
	ev.Str("sql", sql).Dur("elapsed", elapsed).Msg("gorm trace")
}
