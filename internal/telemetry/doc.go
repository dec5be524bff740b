// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// shared by the build, the dev server and the app server.
//
// Metrics are registered through promauto on a configurable registerer:
//
//	m := telemetry.NewMetrics(telemetry.WithNamespace("ffyyc"))
//	r.Use(m.Middleware)
//	r.Handle("/metrics", m.Handler())
//
// Tracing uses the global tracer provider. Nothing here installs an
// exporter; configure one with otel.SetTracerProvider before starting a
// server if spans should leave the process.
package telemetry
