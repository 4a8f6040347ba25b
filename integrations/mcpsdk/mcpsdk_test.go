package mcpsdk

import (
	"encoding/json"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/jsonrpc"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestExtractToolCallParsesToolsCallRequest(t *testing.T) {
	params, _ := json.Marshal(map[string]any{
		"name":      "read_file",
		"arguments": map[string]any{"path": "/tmp/x"},
	})
	req := &mcpsdk.Request{Method: toolCallMethod, Params: params}

	name, args, ok := ExtractToolCall(req)
	if !ok {
		t.Fatal("ExtractToolCall() ok = false, want true")
	}
	if name != "read_file" {
		t.Fatalf("name = %q, want read_file", name)
	}
	if args["path"] != "/tmp/x" {
		t.Fatalf("args[path] = %v, want /tmp/x", args["path"])
	}
}

func TestExtractToolCallIgnoresOtherMethods(t *testing.T) {
	req := &mcpsdk.Request{Method: "tools/list"}
	if _, _, ok := ExtractToolCall(req); ok {
		t.Fatal("ExtractToolCall() ok = true for a non-tools/call method")
	}
}

func TestExtractToolCallRejectsMissingName(t *testing.T) {
	params, _ := json.Marshal(map[string]any{"arguments": map[string]any{}})
	req := &mcpsdk.Request{Method: toolCallMethod, Params: params}
	if _, _, ok := ExtractToolCall(req); ok {
		t.Fatal("ExtractToolCall() ok = true for a request with no tool name")
	}
}

func TestDenialResultCarriesReasonAsText(t *testing.T) {
	result := DenialResult("rate limit exceeded")
	if !result.IsError {
		t.Fatal("DenialResult().IsError = false, want true")
	}
	if len(result.Content) != 1 {
		t.Fatalf("len(Content) = %d, want 1", len(result.Content))
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok || !strings.Contains(text.Text, "rate limit exceeded") {
		t.Fatalf("Content[0] = %#v, want text content carrying the reason", result.Content[0])
	}
}
