package cloudclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "https://api.palisade.dev"

// FailMode controls what Validate returns when the server cannot be reached
// at all (DNS failure, connection refused, dial timeout). It never affects
// an HTTP-level error from a server that did respond — that path is always
// fail-closed.
type FailMode string

const (
	// FailClosed denies on transport unreachability. The default.
	FailClosed FailMode = "closed"
	// FailOpen allows on transport unreachability, logging a warning. Never
	// applies to a non-2xx response from a reachable server.
	FailOpen FailMode = "open"
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	// FailMode governs behavior on connection-class unreachability only.
	// Empty defaults to FailClosed.
	FailMode FailMode

	// ResponseCacheTTL and ResponseCacheMaxSize bound the best-effort dedup
	// cache for identical Validate calls. Zero TTL disables the cache.
	ResponseCacheTTL     time.Duration
	ResponseCacheMaxSize int
}

// DefaultConfig mirrors the reference client's defaults: 30s timeout, 2
// retries, 1s retry delay.
func DefaultConfig() Config {
	return Config{
		BaseURL:              DefaultBaseURL,
		Timeout:              30 * time.Second,
		Retries:              2,
		RetryDelay:           time.Second,
		FailMode:             FailClosed,
		ResponseCacheTTL:     5 * time.Second,
		ResponseCacheMaxSize: 1000,
	}
}

// Client is the stateless HTTP adapter over the Palisade Policy API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger

	registeredMu sync.Mutex
	registered   map[string]struct{}

	cacheMu    sync.Mutex
	cache      map[string]*responseCacheEntry
	cacheOrder []string
}

type responseCacheEntry struct {
	response  ValidationResponse
	expiresAt time.Time
}

// New creates a Client. A nil logger defaults to slog.Default().
func New(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.FailMode == "" {
		config.FailMode = FailClosed
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
		registered: make(map[string]struct{}),
		cache:      make(map[string]*responseCacheEntry),
	}
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.config.BaseURL, "/")
}

func (c *Client) headers(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("X-Veto-API-Key", c.config.APIKey)
	}
}

// RegisterTools registers tools not already registered with this client
// instance. Best-effort: on exhausted retries it returns success=false
// without an error.
func (c *Client) RegisterTools(ctx context.Context, tools []ToolRegistration) (RegistrationResponse, error) {
	newTools := c.filterUnregistered(tools)
	if len(newTools) == 0 {
		return RegistrationResponse{Success: true, Message: "All tools already registered"}, nil
	}

	payload := map[string]any{"tools": newTools}
	url := c.baseURL() + "/v1/tools/register"

	var decoded struct {
		Message string `json:"message"`
	}
	lastErr := c.postWithRetry(ctx, url, payload, &decoded)
	if lastErr != nil {
		c.logger.Error("tool registration failed", "error", lastErr)
		return RegistrationResponse{
			Success: false,
			Message: fmt.Sprintf("Registration failed: %v", lastErr),
		}, nil
	}

	names := make([]string, 0, len(newTools))
	c.registeredMu.Lock()
	for _, t := range newTools {
		c.registered[t.Name] = struct{}{}
		names = append(names, t.Name)
	}
	c.registeredMu.Unlock()

	c.logger.Info("tools registered successfully", "tools", names)
	return RegistrationResponse{Success: true, RegisteredTools: names, Message: decoded.Message}, nil
}

func (c *Client) filterUnregistered(tools []ToolRegistration) []ToolRegistration {
	c.registeredMu.Lock()
	defer c.registeredMu.Unlock()

	out := make([]ToolRegistration, 0, len(tools))
	for _, t := range tools {
		if _, ok := c.registered[t.Name]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// IsToolRegistered reports whether name has been registered by this client.
func (c *Client) IsToolRegistered(name string) bool {
	c.registeredMu.Lock()
	defer c.registeredMu.Unlock()
	_, ok := c.registered[name]
	return ok
}

// ClearRegistrationCache forgets every tool this client believes is
// registered.
func (c *Client) ClearRegistrationCache() {
	c.registeredMu.Lock()
	defer c.registeredMu.Unlock()
	c.registered = make(map[string]struct{})
}

// Validate checks one tool call against cloud-managed policies. On
// failure after retries it fails closed: a synthetic
// ValidationResponse{Decision: deny, Metadata: {"api_error": true}}. The one
// exception is FailMode FailOpen with a connection-class failure, which
// returns an allow with Metadata {"api_error": true, "fail_open": true}.
func (c *Client) Validate(ctx context.Context, toolName string, arguments map[string]any, callCtx map[string]any) (ValidationResponse, error) {
	cacheKey := c.responseCacheKey(toolName, arguments)
	if resp, ok := c.getCachedResponse(cacheKey); ok {
		return resp, nil
	}

	payload := map[string]any{
		"tool_name": toolName,
		"arguments": arguments,
	}
	if callCtx != nil {
		payload["context"] = callCtx
	}

	var decoded struct {
		Decision          string             `json:"decision"`
		Reason            string             `json:"reason"`
		FailedConstraints []FailedConstraint `json:"failed_constraints"`
		Metadata          map[string]any     `json:"metadata"`
		ApprovalID        string             `json:"approval_id"`
	}

	endpoint := c.baseURL() + "/v1/tools/validate"
	lastErr := c.postWithRetry(ctx, endpoint, payload, &decoded)
	if lastErr != nil {
		if c.config.FailMode == FailOpen && isConnectionError(lastErr) {
			c.logger.Warn("cloud unreachable, failing open", "tool", toolName, "error", lastErr)
			return ValidationResponse{
				Decision: DecisionAllow,
				Reason:   "cloud unreachable, fail-open",
				Metadata: map[string]any{"api_error": true, "fail_open": true},
			}, nil
		}
		c.logger.Error("validation request failed", "tool", toolName, "error", lastErr)
		return ValidationResponse{
			Decision: DecisionDeny,
			Reason:   fmt.Sprintf("Validation failed: %v", lastErr),
			Metadata: map[string]any{"api_error": true},
		}, nil
	}

	decision := Decision(decoded.Decision)
	if decision == "" {
		decision = DecisionDeny
	}

	resp := ValidationResponse{
		Decision:          decision,
		Reason:            decoded.Reason,
		FailedConstraints: decoded.FailedConstraints,
		Metadata:          decoded.Metadata,
		ApprovalID:        decoded.ApprovalID,
	}

	if decision == DecisionAllow {
		c.putCachedResponse(cacheKey, resp)
	}

	return resp, nil
}

// PollApproval polls the approval endpoint until it resolves to a non-pending
// status or opts.Timeout elapses, in which case it returns
// *ApprovalTimeoutError. HTTP and transport errors during polling are
// logged and retried, never short-circuiting the loop.
func (c *Client) PollApproval(ctx context.Context, approvalID string, opts PollOptions) (ApprovalData, error) {
	if opts.PollInterval <= 0 && opts.Timeout <= 0 {
		opts = DefaultPollOptions()
	}

	deadline := time.Now().Add(time.Duration(opts.Timeout * float64(time.Second)))
	endpoint := c.baseURL() + "/v1/approvals/" + url.PathEscape(approvalID)

	c.logger.Info("polling for approval resolution", "approval_id", approvalID, "timeout", opts.Timeout)

	for {
		data, status, err := c.getApproval(ctx, endpoint, approvalID)
		if err != nil {
			c.logger.Warn("approval poll error", "approval_id", approvalID, "error", err)
		} else if status != ApprovalPending {
			c.logger.Info("approval resolved", "approval_id", approvalID, "status", status)
			return data, nil
		}

		if time.Now().After(deadline) {
			return ApprovalData{}, &ApprovalTimeoutError{ApprovalID: approvalID, Timeout: opts.Timeout}
		}

		select {
		case <-ctx.Done():
			return ApprovalData{}, ctx.Err()
		case <-time.After(time.Duration(opts.PollInterval * float64(time.Second))):
		}
	}
}

func (c *Client) getApproval(ctx context.Context, endpoint, approvalID string) (ApprovalData, ApprovalStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ApprovalData{}, "", err
	}
	c.headers(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ApprovalData{}, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ApprovalData{}, "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ApprovalData{}, "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		ToolName   string `json:"toolName"`
		ResolvedBy string `json:"resolvedBy"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ApprovalData{}, "", err
	}

	status := ApprovalStatus(decoded.Status)
	if status == "" {
		status = ApprovalPending
	}
	if decoded.ID == "" {
		decoded.ID = approvalID
	}

	return ApprovalData{
		ID:         decoded.ID,
		Status:     status,
		ToolName:   decoded.ToolName,
		ResolvedBy: decoded.ResolvedBy,
	}, status, nil
}

// FetchPolicy fetches the deterministic policy document for a tool. It
// returns (nil, nil) on 404 or any transport error — the caller (the policy
// cache) leaves its existing entry intact in that case.
func (c *Client) FetchPolicy(ctx context.Context, toolName string) (map[string]any, error) {
	endpoint := c.baseURL() + "/v1/policies/" + url.PathEscape(toolName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil
	}
	c.headers(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil
	}
	return doc, nil
}

// LogDecision fire-and-forgets a client-side decision record to the cloud.
// Errors are swallowed; this never blocks the caller beyond spawning the
// goroutine.
func (c *Client) LogDecision(request map[string]any) {
	go func() {
		endpoint := c.baseURL() + "/v1/decisions"
		body, err := json.Marshal(request)
		if err != nil {
			return
		}
		req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return
		}
		c.headers(req)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return
		}
		resp.Body.Close()
	}()
}

// postWithRetry POSTs payload to endpoint, retrying up to config.Retries
// times with config.RetryDelay between attempts. It decodes a successful
// response body into out (when out is non-nil) and returns the last error
// once retries are exhausted.
func (c *Client) postWithRetry(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		c.headers(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = readErr
			} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				lastErr = &httpStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
			} else {
				if out != nil && len(respBody) > 0 {
					if err := json.Unmarshal(respBody, out); err != nil {
						return fmt.Errorf("decoding response: %w", err)
					}
				}
				return nil
			}
		}

		if attempt < c.config.Retries {
			c.logger.Warn("request failed, retrying", "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	return lastErr
}

// httpStatusError is a reachable-server, non-2xx response. It is never a
// connection-class failure, so isConnectionError rejects it even when
// FailMode is FailOpen.
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// isConnectionError reports whether err represents transport-level
// unreachability (DNS, connect, TLS handshake, timeout) rather than an
// HTTP-level error from a server that did respond.
func isConnectionError(err error) bool {
	var statusErr *httpStatusError
	return err != nil && !errors.As(err, &statusErr)
}

func (c *Client) responseCacheKey(toolName string, arguments map[string]any) string {
	argsJSON, _ := json.Marshal(arguments)
	h := xxhash.Sum64(argsJSON)
	return toolName + ":" + strconv.FormatUint(h, 16)
}

func (c *Client) getCachedResponse(key string) (ValidationResponse, bool) {
	if c.config.ResponseCacheTTL <= 0 {
		return ValidationResponse{}, false
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return ValidationResponse{}, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.cache, key)
		return ValidationResponse{}, false
	}
	return entry.response, true
}

func (c *Client) putCachedResponse(key string, resp ValidationResponse) {
	if c.config.ResponseCacheTTL <= 0 {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	maxSize := c.config.ResponseCacheMaxSize
	if maxSize <= 0 {
		maxSize = 1000
	}
	if _, exists := c.cache[key]; !exists && len(c.cacheOrder) >= maxSize {
		oldest := c.cacheOrder[0]
		c.cacheOrder = c.cacheOrder[1:]
		delete(c.cache, oldest)
	}
	if _, exists := c.cache[key]; !exists {
		c.cacheOrder = append(c.cacheOrder, key)
	}
	c.cache[key] = &responseCacheEntry{
		response:  resp,
		expiresAt: time.Now().Add(c.config.ResponseCacheTTL),
	}
}
