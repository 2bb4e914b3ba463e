// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 根据服务名初始化全局 Logger。
// 本地开发时（LOG_PRETTY=true）使用人类可读的控制台输出，生产环境输出 JSON。
func Init(serviceName string) {
	var w = zerolog.LevelWriter(zerolog.MultiLevelWriter(os.Stdout))
	if os.Getenv("LOG_PRETTY") == "true" {
		w = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly})
	}
	base = zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// Logger 返回全局的基础 Logger。
func Logger() *zerolog.Logger {
	return &base
}

// Ctx 返回一个绑定了追踪上下文的 Logger。
// 如果 ctx 中存在有效的 Span，日志会自动带上 trace_id / span_id，
// 便于在 Jaeger 和日志系统之间互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return &base
	}
	l := base.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &l
}
