// Package instrumentation provides OpenTelemetry-based observability for
// the triage service.
//
// It wires a meter provider (Prometheus, OTLP, or stdout exporters) and an
// optional tracer provider (OTLP, stdout, or none), and exposes a Metrics
// recorder for the domain: inbox passes, per-message outcomes, adapter
// calls, review decisions, and MCP tool invocations. All recording methods
// are nil-safe so components never need to care whether instrumentation is
// enabled.
package instrumentation
