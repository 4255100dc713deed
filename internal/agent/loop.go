package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/medspa-concierge/internal/llm"
	"github.com/wolfman30/medspa-concierge/internal/observability/metrics"
	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/internal/timemath"
	"github.com/wolfman30/medspa-concierge/internal/tools"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

const (
	DefaultMaxIterations = 6
	DefaultCallTimeout   = 4 * time.Second
	defaultMaxTokens     = 512
	defaultTemperature   = 0.2
)

var agentTracer = otel.Tracer("medspa.internal.agent")

// Outcome describes how a turn ended.
type Outcome struct {
	Reply      string
	State      State
	Iterations int
	ToolCalls  int
	Err        error
}

// Loop drives one patient message through the model and the scheduling tools.
type Loop struct {
	client        llm.Client
	dispatcher    *tools.Dispatcher
	policies      policy.Source
	now           timemath.Clock
	maxIterations int
	callTimeout   time.Duration
	maxTokens     int32
	temperature   float32
	metrics       *metrics.AgentMetrics
	logger        *logging.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations bounds the number of tool round trips per turn.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithCallTimeout bounds each reasoning service call.
func WithCallTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.callTimeout = d
		}
	}
}

// WithMaxTokens caps model output per call.
func WithMaxTokens(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxTokens = int32(n)
		}
	}
}

// WithClock overrides the time shown to the model.
func WithClock(clock timemath.Clock) Option {
	return func(l *Loop) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithMetrics records turn metrics.
func WithMetrics(m *metrics.AgentMetrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// NewLoop wires the orchestration loop.
func NewLoop(client llm.Client, dispatcher *tools.Dispatcher, policies policy.Source, logger *logging.Logger, opts ...Option) *Loop {
	if client == nil {
		panic("agent: llm client cannot be nil")
	}
	if dispatcher == nil {
		panic("agent: dispatcher cannot be nil")
	}
	if policies == nil {
		policies = policy.Static{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	l := &Loop{
		client:        client,
		dispatcher:    dispatcher,
		policies:      policies,
		now:           timemath.SystemClock,
		maxIterations: DefaultMaxIterations,
		callTimeout:   DefaultCallTimeout,
		maxTokens:     defaultMaxTokens,
		temperature:   defaultTemperature,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// HandleMessage runs a turn and returns the text to send back. It never returns
// an empty string.
func (l *Loop) HandleMessage(ctx context.Context, text, callerContact string) string {
	return l.Run(ctx, text, callerContact).Reply
}

// Run executes one turn: compose, call the model, dispatch requested tools,
// and repeat until the model answers in text or the turn aborts.
func (l *Loop) Run(ctx context.Context, text, callerContact string) Outcome {
	ctx, span := agentTracer.Start(ctx, "agent.turn")
	defer span.End()

	started := time.Now()
	cfg := l.policies.Load(ctx)
	req := llm.Request{
		System:      []string{BuildSystemPrompt(cfg, l.now(), callerContact)},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: strings.TrimSpace(text)}},
		Tools:       tools.Definitions(),
		MaxTokens:   l.maxTokens,
		Temperature: l.temperature,
	}

	out := Outcome{State: StateComposing}
	for {
		if err := ctx.Err(); err != nil {
			out = l.abort(out, fmt.Errorf("agent: turn cancelled: %w", err))
			break
		}

		out.State = StateAwaitingModel
		resp, err := l.complete(ctx, req)
		if err != nil {
			out = l.abort(out, err)
			break
		}

		if len(resp.ToolCalls) == 0 {
			reply := strings.TrimSpace(resp.Text)
			if reply == "" {
				out = l.abort(out, ErrEmptyReply)
				break
			}
			out.Reply = reply
			out.State = StateDone
			break
		}

		if out.Iterations >= l.maxIterations {
			out = l.abort(out, ErrBudgetExhausted)
			break
		}
		out.Iterations++
		out.State = StateDispatching
		req.Messages = append(req.Messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Text, ToolCalls: resp.ToolCalls})
		req.Messages = append(req.Messages, l.dispatch(ctx, cfg, resp.ToolCalls)...)
		out.ToolCalls += len(resp.ToolCalls)
		out.State = StateComposing
	}

	span.SetAttributes(
		attribute.String("medspa.agent.state", out.State.String()),
		attribute.Int("medspa.agent.round_trips", out.Iterations),
		attribute.Int("medspa.agent.tool_calls", out.ToolCalls),
	)
	if out.Err != nil {
		span.RecordError(out.Err)
	}
	l.metrics.ObserveTurn(out.State.String(), out.Iterations)

	fields := []any{
		"state", out.State.String(),
		"round_trips", out.Iterations,
		"tool_calls", out.ToolCalls,
		"latency_ms", time.Since(started).Milliseconds(),
	}
	if out.Err != nil {
		l.logger.Warn("turn aborted", append(fields, "error", out.Err)...)
	} else {
		l.logger.Info("turn finished", fields...)
	}
	return out
}

func (l *Loop) abort(out Outcome, err error) Outcome {
	out.State = StateAborted
	out.Err = err
	out.Reply = FallbackReply
	return out
}

// dispatch runs every requested call in order. Mutations must finish even if
// the caller goes away, so the caller's cancellation is detached here.
func (l *Loop) dispatch(ctx context.Context, cfg *policy.Config, calls []llm.ToolCall) []llm.Message {
	dctx := context.WithoutCancel(ctx)
	msgs := make([]llm.Message, 0, len(calls))
	for _, call := range calls {
		result := l.dispatcher.Dispatch(dctx, cfg, call)
		l.metrics.ObserveToolCall(call.Name, result.Status())
		msgs = append(msgs, llm.Message{
			Role:       llm.RoleTool,
			Content:    result.JSON(),
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}
	return msgs
}

// complete calls the model under callTimeout, retrying a timeout once.
func (l *Loop) complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, l.callTimeout)
		start := time.Now()
		resp, err := l.client.Complete(callCtx, req)
		timedOut := errors.Is(err, context.DeadlineExceeded) || (err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded))
		cancel()

		switch {
		case err == nil:
			l.metrics.ObserveModelCall("ok", time.Since(start).Seconds())
			return resp, nil
		case ctx.Err() != nil:
			l.metrics.ObserveModelCall("cancelled", time.Since(start).Seconds())
			return llm.Response{}, fmt.Errorf("agent: turn cancelled: %w", ctx.Err())
		case timedOut:
			l.metrics.ObserveModelCall("timeout", time.Since(start).Seconds())
			if attempt < 2 {
				l.logger.Warn("reasoning service timed out, retrying", "timeout", l.callTimeout)
				continue
			}
			return llm.Response{}, ErrUpstreamTimeout
		default:
			l.metrics.ObserveModelCall("error", time.Since(start).Seconds())
			return llm.Response{}, fmt.Errorf("%w: %w", ErrUpstream, err)
		}
	}
}
