package playground

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// logSpanProcessor writes every finished client span to the logger at
// debug level, standing in for an exporter.
type logSpanProcessor struct {
	logger zerolog.Logger
}

var _ sdktrace.SpanProcessor = logSpanProcessor{}

func (p logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	event := p.logger.Debug()
	if s.Status().Code == codes.Error {
		event = p.logger.Warn().Str("error", s.Status().Description)
	}

	attrs := zerolog.Dict()
	for _, kv := range s.Attributes() {
		attrs.Str(string(kv.Key), kv.Value.Emit())
	}

	event.
		Str("span", s.Name()).
		Str("trace_id", s.SpanContext().TraceID().String()).
		Dur("duration", s.EndTime().Sub(s.StartTime())).
		Int("events", len(s.Events())).
		Dict("attributes", attrs).
		Msg("span ended")
}

func (p logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p logSpanProcessor) ForceFlush(context.Context) error { return nil }

// newTracerProvider returns an always-sampling provider that logs spans.
func newTracerProvider(logger zerolog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(logSpanProcessor{logger: logger.With().Str("component", "tracing").Logger()}),
	)
}
