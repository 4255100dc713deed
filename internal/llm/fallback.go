package llm

import (
	"context"
	"errors"

	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

// FallbackClient pairs two providers behind the Client interface so a Bedrock
// outage can be served by Gemini and the other way round.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
}

// NewFallbackClient creates a fallback-enabled client. A nil fallback means primary only.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("llm: primary client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

var _ Client = (*FallbackClient)(nil)

// Complete sends req to the primary client. When that fails and a fallback is
// configured, the same request goes to the fallback once. A cancelled or
// expired caller context is returned as is. When both providers fail the
// returned error wraps both.
func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, primaryErr := c.primary.Complete(ctx, req)
	if primaryErr == nil {
		return resp, nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		c.logger.Warn("llm completion failed", "error", primaryErr, "fallback_available", c.fallback != nil)
		return Response{}, primaryErr
	}

	c.logger.Warn("primary llm failed, trying fallback", "error", primaryErr)
	resp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback llm failed", "primary_error", primaryErr, "fallback_error", fallbackErr)
		return Response{}, errors.Join(primaryErr, fallbackErr)
	}
	c.logger.Info("fallback llm succeeded", "stop_reason", resp.StopReason)
	return resp, nil
}
