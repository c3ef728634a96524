package logging

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// SpanLogger is a span processor that logs every finished span at debug
// level. It lets --trace show per-request timings without an exporter.
type SpanLogger struct {
	logger *zap.SugaredLogger
}

var _ sdktrace.SpanProcessor = (*SpanLogger)(nil)

// NewTracerProvider returns a provider whose spans are logged to logger.
func NewTracerProvider(logger *zap.SugaredLogger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&SpanLogger{logger: logger}))
}

func (p *SpanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *SpanLogger) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []any{
		"span", s.Name(),
		"duration", s.EndTime().Sub(s.StartTime()),
	}
	for _, kv := range s.Attributes() {
		fields = append(fields, string(kv.Key), kv.Value.Emit())
	}
	if st := s.Status(); st.Description != "" {
		fields = append(fields, "status", st.Code.String(), "error", st.Description)
	}
	p.logger.Debugw("span finished", fields...)
}

func (p *SpanLogger) Shutdown(context.Context) error   { return nil }
func (p *SpanLogger) ForceFlush(context.Context) error { return nil }
