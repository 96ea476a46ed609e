package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrStatus    = "status"
	attrIntent    = "intent"
	attrAdapter   = "adapter"
	attrOperation = "operation"
	attrAction    = "action"
	attrTool      = "tool"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// Inbox pass metrics
	passesTotal  metric.Int64Counter
	passDuration metric.Float64Histogram
	passMessages metric.Int64Histogram

	// Per-message outcome metrics
	messagesTotal metric.Int64Counter

	// Adapter call metrics (mailbox, calendar, classifier)
	adapterOperationsTotal   metric.Int64Counter
	adapterOperationDuration metric.Float64Histogram

	// Human review metrics
	reviewDecisionsTotal metric.Int64Counter

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.passesTotal, err = meter.Int64Counter(
		"inbox_passes_total",
		metric.WithDescription("Total number of inbox processing passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inbox_passes_total counter: %w", err)
	}

	m.passDuration, err = meter.Float64Histogram(
		"inbox_pass_duration_seconds",
		metric.WithDescription("Inbox pass duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inbox_pass_duration_seconds histogram: %w", err)
	}

	m.passMessages, err = meter.Int64Histogram(
		"inbox_pass_messages",
		metric.WithDescription("Number of messages handled per inbox pass"),
		metric.WithUnit("{message}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inbox_pass_messages histogram: %w", err)
	}

	m.messagesTotal, err = meter.Int64Counter(
		"messages_processed_total",
		metric.WithDescription("Total number of processed messages by intent and outcome status"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_processed_total counter: %w", err)
	}

	m.adapterOperationsTotal, err = meter.Int64Counter(
		"adapter_operations_total",
		metric.WithDescription("Total number of adapter operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter_operations_total counter: %w", err)
	}

	m.adapterOperationDuration, err = meter.Float64Histogram(
		"adapter_operation_duration_seconds",
		metric.WithDescription("Adapter operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter_operation_duration_seconds histogram: %w", err)
	}

	m.reviewDecisionsTotal, err = meter.Int64Counter(
		"review_decisions_total",
		metric.WithDescription("Total number of human review decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create review_decisions_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordInboxPass records one completed inbox pass with its result status,
// the number of messages handled, and the pass duration.
func (m *Metrics) RecordInboxPass(ctx context.Context, status string, messages int, duration time.Duration) {
	if m.passesTotal == nil || m.passDuration == nil || m.passMessages == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.passesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.passDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.passMessages.Record(ctx, int64(messages), metric.WithAttributes(attrs...))
}

// RecordMessageOutcome records one processed message by classified intent
// and outcome status. Status values come from the engine's fixed enum, so
// cardinality stays bounded.
func (m *Metrics) RecordMessageOutcome(ctx context.Context, intent, status string) {
	if m.messagesTotal == nil {
		return // Instrumentation not initialized
	}

	m.messagesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrIntent, intent),
		attribute.String(attrStatus, status),
	))
}

// RecordAdapterOperation records one adapter call with its duration.
//
// Parameters:
//   - adapter: one of "mailbox", "calendar", "classifier"
//   - operation: operation name (fetch, reply, check_availability, classify, ...)
//   - status: "success" or "error"
func (m *Metrics) RecordAdapterOperation(ctx context.Context, adapter, operation, status string, duration time.Duration) {
	if m.adapterOperationsTotal == nil || m.adapterOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrAdapter, adapter),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.adapterOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.adapterOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordReviewDecision records one human review decision ("send" or "skip").
func (m *Metrics) RecordReviewDecision(ctx context.Context, action string) {
	if m.reviewDecisionsTotal == nil {
		return // Instrumentation not initialized
	}

	m.reviewDecisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAction, action),
	))
}

// RecordToolInvocation records an MCP tool invocation with tool name,
// status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
