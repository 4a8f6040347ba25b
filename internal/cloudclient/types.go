// Package cloudclient is the stateless HTTPS adapter over the Palisade
// Policy API: tool registration, call validation, approval polling, policy
// fetch, and best-effort decision logging.
package cloudclient

// ToolParameter describes one parameter of a tool being registered.
type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Enum        []any    `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
}

// ToolRegistration is the payload sent to /v1/tools/register for one tool.
type ToolRegistration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

// RegistrationResponse is the result of RegisterTools.
type RegistrationResponse struct {
	Success         bool
	RegisteredTools []string
	Message         string
}

// FailedConstraint describes one constraint that a validate() call failed.
type FailedConstraint struct {
	Parameter      string `json:"parameter"`
	ConstraintType string `json:"constraint_type"`
	Expected       any    `json:"expected"`
	Actual         any    `json:"actual"`
	Message        string `json:"message"`
}

// Decision is the tagged outcome returned by Validate.
type Decision string

const (
	DecisionAllow           Decision = "allow"
	DecisionDeny            Decision = "deny"
	DecisionRequireApproval Decision = "require_approval"
)

// ValidationResponse is the result of Validate.
type ValidationResponse struct {
	Decision          Decision
	Reason            string
	FailedConstraints []FailedConstraint
	Metadata          map[string]any
	ApprovalID        string
}

// ApprovalStatus is the tagged terminal (or pending) state of an approval.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalData is the resolved (or still-pending) state of a human approval.
type ApprovalData struct {
	ID         string
	Status     ApprovalStatus
	ToolName   string
	ResolvedBy string
}

// PollOptions configures PollApproval's polling cadence and deadline.
type PollOptions struct {
	PollInterval float64 // seconds between polls
	Timeout      float64 // max seconds to wait
}

// DefaultPollOptions mirrors the reference poll_interval=2s/timeout=300s.
func DefaultPollOptions() PollOptions {
	return PollOptions{PollInterval: 2.0, Timeout: 300.0}
}
