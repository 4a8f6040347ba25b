package palisade

import (
	"github.com/palisade-dev/palisade-go/internal/cloudclient"
	"github.com/palisade-dev/palisade-go/internal/toolwrap"
)

// Sentinel errors for use with errors.Is. The concrete error types they
// match (ToolCallDeniedError, ApprovalTimeoutError) carry the structured
// detail and live in the packages that produce them; these aliases let a
// caller depend on only the root package.
var (
	// ErrToolCallDenied is matched by a *ToolCallDeniedError returned from a
	// wrapped tool's Call.
	ErrToolCallDenied = toolwrap.ErrToolCallDenied

	// ErrApprovalTimeout is matched by a *ApprovalTimeoutError returned when
	// a require_approval call's poll deadline passes unresolved.
	ErrApprovalTimeout = cloudclient.ErrApprovalTimeout
)

// ToolCallDeniedError is returned by a wrapped tool's Call when the
// interceptor denies the call in strict mode.
type ToolCallDeniedError = toolwrap.ToolCallDeniedError

// ApprovalTimeoutError is returned when a require_approval call's poll
// deadline passes before a human resolves it.
type ApprovalTimeoutError = cloudclient.ApprovalTimeoutError
