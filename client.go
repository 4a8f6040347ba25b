// Package palisade is the guardrail SDK façade: construct a Client, wrap
// the tools an agent calls, and every call is validated, possibly held for
// human approval, and recorded before the underlying tool ever runs.
package palisade

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-dev/palisade-go/internal/cloudclient"
	"github.com/palisade-dev/palisade-go/internal/engine"
	"github.com/palisade-dev/palisade-go/internal/history"
	"github.com/palisade-dev/palisade-go/internal/interceptor"
	"github.com/palisade-dev/palisade-go/internal/policycache"
	"github.com/palisade-dev/palisade-go/internal/telemetry"
	"github.com/palisade-dev/palisade-go/internal/toolwrap"
)

// Client is the guardrail SDK entry point. Build one with New or Init, then
// call Wrap for every tool an agent may invoke.
type Client struct {
	engine      *engine.Engine
	cloud       *cloudclient.Client
	cache       *policycache.Cache
	history     *history.Tracker
	interceptor *interceptor.Interceptor
	wrapper     *toolwrap.Wrapper
	metrics     *telemetry.Metrics
	logger      *slog.Logger

	sessionID string
	agentID   string
}

// New resolves PALISADE_* environment variables and opts into an Options
// value, validates it, and wires the engine, cloud client, policy cache,
// history tracker, and interceptor it names.
func New(opts ...Option) (*Client, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	if err := s.Options.Validate(); err != nil {
		return nil, fmt.Errorf("palisade: invalid configuration: %w", err)
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(s.LogLevel),
		}))
	}

	cloud := cloudclient.New(cloudclient.Config{
		APIKey:               s.APIKey,
		BaseURL:              s.BaseURL,
		Timeout:              30 * time.Second,
		Retries:              s.Retries,
		RetryDelay:           durationSeconds(s.RetryDelaySeconds),
		FailMode:             cloudclient.FailMode(s.FailMode),
		ResponseCacheTTL:     durationSeconds(s.ResponseCacheTTLSeconds),
		ResponseCacheMaxSize: s.ResponseCacheMaxSize,
	}, logger)

	var metrics *telemetry.Metrics
	if s.MetricsRegisterer != nil {
		metrics = telemetry.NewMetrics(s.MetricsRegisterer)
	}

	cache := policycache.New(cloud, durationSeconds(s.FreshSeconds), durationSeconds(s.MaxSeconds), logger)
	cache.SetMetrics(metrics)

	eng := engine.New(engine.DecisionAllow, logger)
	eng.AddValidator(newCloudValidator(cache, cloud, logger))
	eng.AddValidators(s.Validators...)

	hist := history.New(s.HistoryCapacity)

	ic := interceptor.New(eng, cloud, hist,
		interceptor.WithMode(interceptor.Mode(s.Mode)),
		interceptor.WithPollOptions(cloudclient.PollOptions{
			PollInterval: s.PollIntervalSeconds,
			Timeout:      s.PollTimeoutSeconds,
		}),
		interceptor.WithLogger(logger),
		interceptor.WithMetrics(metrics),
		interceptor.WithTracingProvider(s.TracingProvider),
	)

	c := &Client{
		engine:      eng,
		cloud:       cloud,
		cache:       cache,
		history:     hist,
		interceptor: ic,
		metrics:     metrics,
		logger:      logger,
		sessionID:   s.SessionID,
		agentID:     s.AgentID,
	}
	c.wrapper = toolwrap.NewWrapper(ic, hist, c.nextCallID)

	logger.Info("palisade client initialized",
		"session_id", c.sessionID, "mode", s.Mode, "fail_mode", s.FailMode)

	return c, nil
}

// Init is an alias for New, matching the reference SDKs' constructor name.
func Init(opts ...Option) (*Client, error) {
	return New(opts...)
}

// nextCallID generates the ID attached to every ToolCall this client's
// wrapped tools and Check produce.
func (c *Client) nextCallID() string {
	return uuid.NewString()
}

// AddValidator registers an additional validator after construction. It
// runs in (priority, insertion) order alongside the built-in cloud
// validator and anything passed via WithValidators.
func (c *Client) AddValidator(v engine.NamedValidator) {
	c.engine.AddValidator(v)
}

// Check evaluates a hypothetical tool call without invoking anything,
// returning true iff the call would be allowed. It runs the exact same
// validate/approve/record pipeline a wrapped tool's Call does, including
// history recording, so repeated Check calls influence subsequent
// decisions the same way real calls would.
func (c *Client) Check(ctx context.Context, toolName string, args map[string]any) (bool, error) {
	call := engine.ToolCall{ID: c.nextCallID(), Name: toolName, Arguments: args}
	result, err := c.interceptor.Intercept(ctx, call, c.history.Recent())
	if err != nil {
		return false, err
	}
	return result.Allowed, nil
}

// GetHistoryStats returns aggregates over the calls currently held in the
// bounded history (the most recent HistoryCapacity calls); calls evicted
// from it no longer count.
func (c *Client) GetHistoryStats() history.Stats {
	return c.history.GetStats()
}

// ClearHistory discards every recorded call, so GetHistoryStats reports
// zero until new calls are intercepted.
func (c *Client) ClearHistory() {
	c.history.Clear()
}

// InvalidatePolicyCache discards any cached deterministic policy for
// toolName, forcing the next call to that tool to refetch it.
func (c *Client) InvalidatePolicyCache(toolName string) {
	c.cache.Invalidate(toolName)
}
