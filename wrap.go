package palisade

import (
	"context"
	"fmt"

	"github.com/palisade-dev/palisade-go/internal/cloudclient"
	"github.com/palisade-dev/palisade-go/internal/toolwrap"
)

// WrappedTool is a tool whose calls run through a Client's full
// validate/approve/record pipeline before the original tool ever executes.
type WrappedTool struct {
	// Name is the identifier this tool was registered under.
	Name string
	// Signature is the best-effort {description, parameters} extracted from
	// the wrapped tool at Wrap time.
	Signature toolwrap.Signature

	invoke toolwrap.Invoker
}

// Call runs args through validation (and, if required, human approval)
// before invoking the underlying tool. A deny returns *ToolCallDeniedError;
// use errors.Is(err, ErrToolCallDenied) to detect it without a type
// assertion.
func (t *WrappedTool) Call(ctx context.Context, args map[string]any) (any, error) {
	return t.invoke(ctx, args)
}

// Wrap detects tool's callable shape once (a Func/Invoke/Handler/Run/
// Execute/Call method or field, or tool itself if already callable) and
// returns a WrappedTool whose Call is intercepted by this Client's engine,
// cloud validator, and history tracker.
func (c *Client) Wrap(name string, tool any) (*WrappedTool, error) {
	t, err := c.wrapper.Wrap(name, tool)
	if err != nil {
		return nil, fmt.Errorf("palisade: %w", err)
	}
	go c.registerToolWithCloud(t.Name, t.Signature)
	return &WrappedTool{
		Name:      t.Name,
		Signature: t.Signature,
		invoke:    c.wrapper.Wrapped(t),
	}, nil
}

// registerToolWithCloud sends the wrapped tool's signature to Cloud for
// policy generation. It runs on its own goroutine and never affects Wrap's
// result: a caller can start validating calls immediately, the same way the
// reference SDK fires registration as a background task rather than
// awaiting it before wrap() returns.
func (c *Client) registerToolWithCloud(name string, sig toolwrap.Signature) {
	params := make([]cloudclient.ToolParameter, 0, len(sig.Parameters))
	for _, p := range sig.Parameters {
		params = append(params, cloudclient.ToolParameter{Name: p})
	}
	registration := cloudclient.ToolRegistration{
		Name:        name,
		Description: sig.Description,
		Parameters:  params,
	}

	result, err := c.cloud.RegisterTools(context.Background(), []cloudclient.ToolRegistration{registration})
	if err != nil {
		c.logger.Warn("tool registration with cloud failed", "tool", name, "error", err)
		return
	}
	if !result.Success {
		c.logger.Warn("tool registration with cloud rejected", "tool", name, "message", result.Message)
		return
	}
	c.logger.Debug("tool registered with cloud", "tool", name)
}
