// Package interceptor composes the validation engine, the cloud client's
// approval loop, and the history tracker into the single call a wrapped tool
// makes before it runs.
package interceptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/palisade-dev/palisade-go/internal/cloudclient"
	"github.com/palisade-dev/palisade-go/internal/engine"
	"github.com/palisade-dev/palisade-go/internal/history"
	"github.com/palisade-dev/palisade-go/internal/telemetry"
)

// Mode controls what happens when the final decision is deny.
type Mode string

const (
	// ModeStrict blocks denied calls. The default.
	ModeStrict Mode = "strict"
	// ModeLog rewrites a deny into an allow, recording that it would have
	// been blocked in strict mode via ValidationResult.Metadata.
	ModeLog Mode = "log"
)

// ApprovalRequiredFunc is called once, synchronously, the moment a call is
// about to block on human approval. It never affects the outcome; it exists
// so a caller can surface the wait to a user.
type ApprovalRequiredFunc func(call engine.ToolCall, approvalID string)

// Interceptor runs one ToolCall through the full validate -> approve ->
// record pipeline.
type Interceptor struct {
	engine      *engine.Engine
	cloud       *cloudclient.Client
	history     *history.Tracker
	mode        Mode
	pollOptions cloudclient.PollOptions
	onApproval  ApprovalRequiredFunc
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	tracer      *telemetry.Provider
}

// Option configures an Interceptor at construction time.
type Option func(*Interceptor)

// WithMode sets strict or log mode. Default ModeStrict.
func WithMode(mode Mode) Option {
	return func(i *Interceptor) { i.mode = mode }
}

// WithPollOptions overrides the approval-poll interval/timeout.
func WithPollOptions(opts cloudclient.PollOptions) Option {
	return func(i *Interceptor) { i.pollOptions = opts }
}

// WithApprovalRequiredHook registers a callback fired when a call starts
// waiting on human approval.
func WithApprovalRequiredHook(fn ApprovalRequiredFunc) Option {
	return func(i *Interceptor) { i.onApproval = fn }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) { i.logger = logger }
}

// WithMetrics enables Prometheus recording of validator decisions/duration,
// intercept duration, approval outcomes/wait time, and history size. Without
// this option the interceptor records nothing.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(i *Interceptor) { i.metrics = m }
}

// WithTracingProvider wraps every Intercept call in a span started from the
// given Provider, tagged with the tool name. Without this option Intercept
// creates no spans.
func WithTracingProvider(p *telemetry.Provider) Option {
	return func(i *Interceptor) { i.tracer = p }
}

// New creates an Interceptor. eng, cloud, and hist must be non-nil.
func New(eng *engine.Engine, cloud *cloudclient.Client, hist *history.Tracker, opts ...Option) *Interceptor {
	i := &Interceptor{
		engine:      eng,
		cloud:       cloud,
		history:     hist,
		mode:        ModeStrict,
		pollOptions: cloudclient.DefaultPollOptions(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Result is the outcome of one Intercept call.
type Result struct {
	Allowed          bool
	OriginalCall     engine.ToolCall
	FinalArguments   map[string]any
	ValidationResult engine.ValidationResult
}

// Intercept runs call through the engine, resolves any require_approval
// decision via the cloud client's poll loop, rewrites a deny to an allow in
// log mode, records the outcome in history, and returns the verdict a caller
// should act on.
func (i *Interceptor) Intercept(ctx context.Context, call engine.ToolCall, recent []history.Entry) (Result, error) {
	start := time.Now()

	if i.tracer != nil {
		var span trace.Span
		ctx, span = i.tracer.StartSpan(ctx, call.Name)
		defer span.End()
	}

	vctx := engine.ValidationContext{
		ToolName:    call.Name,
		Arguments:   call.Arguments,
		CallID:      call.ID,
		Timestamp:   start.UnixNano(),
		CallHistory: recent,
	}

	agg := i.engine.Validate(ctx, vctx)
	final := agg.FinalResult
	i.recordValidatorMetrics(agg)

	if final.Decision == engine.DecisionRequireApproval {
		approvalID, _ := final.Metadata["approval_id"].(string)
		if approvalID != "" {
			if i.onApproval != nil {
				i.onApproval(call, approvalID)
			}
			final = i.resolveApproval(ctx, call, approvalID, final)
			agg.FinalResult = final
		} else {
			// No approval_id to poll: a require_approval with nothing to
			// resolve against is treated as a deny.
			final = engine.ValidationResult{
				Decision: engine.DecisionDeny,
				Reason:   "require_approval decision carried no approval_id",
			}
			agg.FinalResult = final
		}
	}

	allowed := final.Decision == engine.DecisionAllow
	finalArgs := call.Arguments

	if !allowed && i.mode == ModeLog {
		meta := map[string]any{"blocked_in_strict_mode": true}
		for k, v := range final.Metadata {
			meta[k] = v
		}
		final = engine.ValidationResult{
			Decision: engine.DecisionAllow,
			Reason:   "[LOG MODE] Would block: " + final.Reason,
			Metadata: meta,
		}
		agg.FinalResult = final
		allowed = true
	}

	i.history.Record(history.Entry{
		Call:      call,
		Result:    agg,
		Timestamp: start.UnixNano(),
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	})

	if i.metrics != nil {
		i.metrics.InterceptDuration.Observe(time.Since(start).Seconds())
		i.metrics.HistorySize.Set(float64(len(i.history.Recent())))
	}

	i.logger.Info("tool call intercepted",
		"tool", call.Name, "call_id", call.ID, "decision", final.Decision, "allowed", allowed)

	return Result{
		Allowed:          allowed,
		OriginalCall:     call,
		FinalArguments:   finalArgs,
		ValidationResult: final,
	}, nil
}

// recordValidatorMetrics reports each validator's decision and duration from
// one Validate pass. A validator that errored is recorded under the
// synthetic decision "error" rather than skipped, so the isolated-error path
// stays visible in the same counter as every other outcome.
func (i *Interceptor) recordValidatorMetrics(agg engine.AggregatedResult) {
	if i.metrics == nil {
		return
	}
	for _, outcome := range agg.ValidatorResults {
		decision := string(outcome.Result.Decision)
		if outcome.Err != nil {
			decision = "error"
		}
		i.metrics.ValidatorDecisions.WithLabelValues(outcome.ValidatorName, decision).Inc()
		i.metrics.ValidatorDuration.WithLabelValues(outcome.ValidatorName).Observe(outcome.DurationMs / 1000)
	}
}

// resolveApproval blocks on the cloud client's poll loop. A timeout or any
// other polling error resolves to a deny rather than propagating, since an
// unresolved approval must never silently allow a call.
func (i *Interceptor) resolveApproval(ctx context.Context, call engine.ToolCall, approvalID string, pending engine.ValidationResult) engine.ValidationResult {
	pollStart := time.Now()
	data, err := i.cloud.PollApproval(ctx, approvalID, i.pollOptions)
	if i.metrics != nil {
		i.metrics.ApprovalWaitTime.Observe(time.Since(pollStart).Seconds())
	}
	if err != nil {
		i.logger.Warn("approval did not resolve", "tool", call.Name, "approval_id", approvalID, "error", err)
		reason := "approval did not resolve: " + err.Error()
		outcome := "error"
		var timeoutErr *cloudclient.ApprovalTimeoutError
		if errors.As(err, &timeoutErr) {
			reason = "Approval timed out waiting for human review"
			outcome = "timeout"
		}
		if i.metrics != nil {
			i.metrics.ApprovalOutcomes.WithLabelValues(outcome).Inc()
		}
		return engine.ValidationResult{
			Decision: engine.DecisionDeny,
			Reason:   reason,
			Metadata: map[string]any{"approval_id": approvalID},
		}
	}

	if i.metrics != nil {
		i.metrics.ApprovalOutcomes.WithLabelValues(string(data.Status)).Inc()
	}

	if data.Status == cloudclient.ApprovalApproved {
		reason := "approved by human review"
		if data.ResolvedBy != "" {
			reason = fmt.Sprintf("approved by %s", data.ResolvedBy)
		}
		return engine.ValidationResult{
			Decision: engine.DecisionAllow,
			Reason:   reason,
			Metadata: map[string]any{"approval_id": approvalID, "resolved_by": data.ResolvedBy},
		}
	}

	reason := fmt.Sprintf("approval %s", data.Status)
	return engine.ValidationResult{
		Decision: engine.DecisionDeny,
		Reason:   reason,
		Metadata: map[string]any{"approval_id": approvalID, "resolved_by": data.ResolvedBy},
	}
}
