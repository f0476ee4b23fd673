package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/taskchat/taskchat/engine/infra/monitoring/metrics"
	"github.com/taskchat/taskchat/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AgentMetrics records chat turn measurements. It satisfies the dispatcher's observer.
type AgentMetrics struct {
	turns              metric.Int64Counter
	turnDuration       metric.Float64Histogram
	turnRounds         metric.Int64Histogram
	toolCalls          metric.Int64Counter
	completionDuration metric.Float64Histogram
	authAttempts       metric.Int64Counter
}

func NewAgentMetrics(ctx context.Context, meter metric.Meter) *AgentMetrics {
	log := logger.FromContext(ctx)
	m := &AgentMetrics{}
	var err error
	if m.turns, err = meter.Int64Counter(
		"taskchat_turns_total",
		metric.WithDescription("Chat turns by outcome"),
	); err != nil {
		log.Error("Failed to create turns counter", "error", err)
	}
	if m.turnDuration, err = meter.Float64Histogram(
		"taskchat_turn_duration_seconds",
		metric.WithDescription("End to end chat turn latency"),
		metric.WithExplicitBucketBoundaries(metrics.CompletionDurationBuckets...),
	); err != nil {
		log.Error("Failed to create turn duration histogram", "error", err)
	}
	if m.turnRounds, err = meter.Int64Histogram(
		"taskchat_turn_rounds",
		metric.WithDescription("Completion rounds per chat turn"),
		metric.WithExplicitBucketBoundaries(metrics.ToolRoundBuckets...),
	); err != nil {
		log.Error("Failed to create turn rounds histogram", "error", err)
	}
	if m.toolCalls, err = meter.Int64Counter(
		"taskchat_tool_calls_total",
		metric.WithDescription("Tool invocations by tool and result"),
	); err != nil {
		log.Error("Failed to create tool calls counter", "error", err)
	}
	if m.completionDuration, err = meter.Float64Histogram(
		"taskchat_completion_duration_seconds",
		metric.WithDescription("Completion service call latency"),
		metric.WithExplicitBucketBoundaries(metrics.CompletionDurationBuckets...),
	); err != nil {
		log.Error("Failed to create completion duration histogram", "error", err)
	}
	if m.authAttempts, err = meter.Int64Counter(
		"taskchat_auth_attempts_total",
		metric.WithDescription("Bearer token verifications by result"),
	); err != nil {
		log.Error("Failed to create auth attempts counter", "error", err)
	}
	return m
}

func (m *AgentMetrics) TurnCompleted(outcome string, rounds int, elapsed time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.turns != nil {
		m.turns.Add(ctx, 1, attrs)
	}
	if m.turnDuration != nil {
		m.turnDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
	if m.turnRounds != nil {
		m.turnRounds.Record(ctx, int64(rounds), attrs)
	}
}

func (m *AgentMetrics) ToolCalled(name string, success bool) {
	if m.toolCalls == nil {
		return
	}
	m.toolCalls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tool", name),
		attribute.String("success", strconv.FormatBool(success)),
	))
}

func (m *AgentMetrics) CompletionCalled(outcome string, elapsed time.Duration) {
	if m.completionDuration == nil {
		return
	}
	m.completionDuration.Record(
		context.Background(),
		elapsed.Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// AuthAttempt counts a bearer token verification result such as "success" or "invalid_token".
func (m *AgentMetrics) AuthAttempt(ctx context.Context, result string) {
	if m.authAttempts == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
