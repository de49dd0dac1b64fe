package observer

import (
	"context"
	"time"

	codex "github.com/samooth/open-codex-sub001"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedAssistant wraps an Assistant to emit an OTEL span and metrics for
// every turn, covering the full Requesting/Streaming/Dispatching cycle the
// wrapped Run call drives internally.
type ObservedAssistant struct {
	inner *codex.Assistant
	inst  *Instruments
}

// WrapAssistant returns an instrumented Assistant that emits per-turn
// lifecycle telemetry.
func WrapAssistant(inner *codex.Assistant, inst *Instruments) *ObservedAssistant {
	return &ObservedAssistant{inner: inner, inst: inst}
}

// Run wraps the inner Assistant's Run, emitting an agent.turn span that
// serves as the parent for every LLM call and tool execution the turn makes.
func (o *ObservedAssistant) Run(ctx context.Context, task codex.AgentTask) (codex.ChatMessage, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		AttrAgentSession.String(o.inner.SessionID()),
	))
	defer span.End()
	start := time.Now()

	msg, err := o.inner.Run(ctx, task)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if ctx.Err() != nil && err != nil {
		status = "cancelled"
		span.SetStatus(codes.Error, "cancelled")
	} else if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(AttrAgentStatus.String(status))

	attrs := metric.WithAttributes(
		AttrAgentSession.String(o.inner.SessionID()),
		AttrAgentStatus.String(status),
	)
	o.inst.AgentExecutions.Add(ctx, 1, attrs)
	o.inst.AgentDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrAgentSession.String(o.inner.SessionID()),
	))

	return msg, err
}

// Cancel aborts the in-flight turn, if any.
func (o *ObservedAssistant) Cancel() { o.inner.Cancel() }

// SessionID returns the identifier used for rollout persistence.
func (o *ObservedAssistant) SessionID() string { return o.inner.SessionID() }
