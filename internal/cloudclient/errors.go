package cloudclient

import (
	"errors"
	"fmt"
)

// ErrApprovalTimeout is the sentinel ApprovalTimeoutError matches against,
// for use with errors.Is.
var ErrApprovalTimeout = errors.New("approval timeout")

// ApprovalTimeoutError is returned when PollApproval's monotonic deadline
// passes before the approval resolves.
type ApprovalTimeoutError struct {
	ApprovalID string
	Timeout    float64
}

func (e *ApprovalTimeoutError) Error() string {
	return fmt.Sprintf("approval %s was not resolved within %.0fs", e.ApprovalID, e.Timeout)
}

// Is reports whether target is ErrApprovalTimeout, so callers can write
// errors.Is(err, cloudclient.ErrApprovalTimeout) instead of a type assertion.
func (e *ApprovalTimeoutError) Is(target error) bool {
	return target == ErrApprovalTimeout
}
