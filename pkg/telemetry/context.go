package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing,
// metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return t.Metrics.Shutdown()
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// evalSpanKey is the context key for evaluation spans.
type evalSpanKey struct{}

// evalStartKey is the context key for evaluation start times.
type evalStartKey struct{}

// WithEvalContext creates a context enriched with evaluation-specific telemetry:
// a trace span, an eval-scoped logger, and an eval.started event.
func WithEvalContext(ctx context.Context, evalID, pkg string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartEvalSpan(ctx, evalID, pkg)

	logger := tel.Logger.WithEvalID(evalID).WithPackage(pkg)
	spanCtx = logger.WithContext(spanCtx)

	tel.Metrics.RecordEvalStarted()
	_ = tel.Events.PublishEvalStarted(evalID, pkg)

	spanCtx = context.WithValue(spanCtx, evalSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, evalStartKey{}, time.Now())

	return spanCtx
}

// EndEvalContext completes the evaluation context, recording metrics and events.
func EndEvalContext(ctx context.Context, evalID, pkg string, ruleCount int, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(evalSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if start, ok := ctx.Value(evalStartKey{}).(time.Time); ok {
		duration = time.Since(start)
	}

	if err != nil {
		tel.Metrics.RecordEvalCompleted("failed", duration)
		_ = tel.Events.PublishEvalFailed(evalID, pkg, err.Error())
	} else {
		tel.Metrics.RecordEvalCompleted("succeeded", duration)
		_ = tel.Events.PublishEvalCompleted(evalID, pkg, ruleCount, duration)
	}
}
