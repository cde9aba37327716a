// Package telemetry provides observability instrumentation for StarForge.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), Prometheus metrics, and an async event system into a
// single Telemetry aggregate that travels on the context.
//
// Initialize at startup:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//	ctx = tel.WithContext(ctx)
//
// Evaluation lifecycle instrumentation:
//
//	ctx = telemetry.WithEvalContext(ctx, evalID, pkg)
//	defer telemetry.EndEvalContext(ctx, evalID, pkg, ruleCount, err)
//
// Tracing exporters: "stdout" (development), "otlp" (production via
// OTLP/gRPC), "none" (generate but do not export).
package telemetry
