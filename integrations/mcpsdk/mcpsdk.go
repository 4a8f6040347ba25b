// Package mcpsdk adapts the palisade guardrail to the Model Context
// Protocol Go SDK, at two levels:
//
//   - GuardedSession wraps an *mcpsdk.ClientSession so every outbound
//     CallTool goes through a palisade.Client first, the way a caller
//     would wrap any other tool with toolwrap.
//   - ExtractToolCall inspects a decoded JSON-RPC request for a proxy
//     sitting in front of an MCP server, the way a message-level
//     interceptor would pull a tool name and arguments out of a
//     tools/call request before it reaches the upstream.
package mcpsdk

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/jsonrpc"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/palisade-dev/palisade-go"
)

// toolCallMethod is the JSON-RPC method name MCP uses for tool invocations.
const toolCallMethod = "tools/call"

// GuardedSession wraps an MCP client session so CallTool is checked against
// a palisade.Client before being forwarded to the upstream server.
type GuardedSession struct {
	session *mcp.ClientSession
	client  *palisade.Client
}

// Guard returns a GuardedSession that checks every CallTool against client
// before delegating to session.
func Guard(session *mcp.ClientSession, client *palisade.Client) *GuardedSession {
	return &GuardedSession{session: session, client: client}
}

// CallTool checks params.Arguments against the guardrail and, if allowed,
// forwards the call to the underlying session. A denial surfaces as the
// same *palisade.ToolCallDeniedError a wrapped tool would return, so
// callers can use errors.Is(err, palisade.ErrToolCallDenied) either way.
func (g *GuardedSession) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	allowed, err := g.client.Check(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, fmt.Errorf("mcpsdk: checking %q: %w", params.Name, err)
	}
	if !allowed {
		return nil, &palisade.ToolCallDeniedError{ToolName: params.Name}
	}
	return g.session.CallTool(ctx, params)
}

// ListTools delegates to the underlying session unchanged; guarding only
// applies to invocation, not discovery.
func (g *GuardedSession) ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error) {
	return g.session.ListTools(ctx, params)
}

// ExtractToolCall reports whether req is a tools/call request and, if so,
// returns the tool name and arguments found in its params.
//
// req.Params is inspected directly rather than through the SDK's typed
// CallToolParams so a proxy can make the allow/deny decision before it has
// committed to fully unmarshaling and forwarding the request.
func ExtractToolCall(req *mcpsdk.Request) (toolName string, arguments map[string]any, ok bool) {
	if req == nil || req.Method != toolCallMethod || req.Params == nil {
		return "", nil, false
	}

	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return "", nil, false
	}
	if params.Name == "" {
		return "", nil, false
	}
	return params.Name, params.Arguments, true
}

// DenialResult builds a tools/call result carrying the guardrail's denial
// reason as error content, the shape an MCP client expects for a tool-level
// failure rather than a transport-level one.
func DenialResult(reason string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("denied by palisade: %s", reason)}},
	}
}
