// Package config holds the façade's resolved, validated configuration: the
// product of functional options, environment variables, and static defaults,
// checked with struct tags plus a handful of cross-field rules before any
// client component is built from it.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Mode mirrors interceptor.Mode without importing it, so this package stays
// a leaf the façade depends on rather than the other way around.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeLog    Mode = "log"
)

// FailMode controls how the cloud client behaves when it cannot reach the
// server at all (DNS/connect/timeout). HTTP-level errors from a reachable
// server are always fail-closed, regardless of FailMode.
type FailMode string

const (
	FailClosed FailMode = "closed"
	FailOpen   FailMode = "open"
)

// Options is the fully-resolved configuration for a palisade.Client, after
// functional options and environment variables have been applied and
// defaults filled in. Validate() mirrors OSSConfig.Validate()'s pattern:
// struct-tag validation via validator/v10, followed by hand-written
// cross-field checks tags alone cannot express.
type Options struct {
	APIKey    string
	BaseURL   string `validate:"required,url"`
	LogLevel  string `validate:"omitempty,oneof=debug info warn error silent"`
	SessionID string
	AgentID   string

	Mode Mode `validate:"required,oneof=strict log"`

	HistoryCapacity int `validate:"required,min=1"`

	FreshSeconds float64 `validate:"required,gt=0"`
	MaxSeconds   float64 `validate:"required,gt=0"`

	PollIntervalSeconds float64 `validate:"required,gt=0"`
	PollTimeoutSeconds  float64 `validate:"required,gt=0"`

	Retries           int     `validate:"min=0"`
	RetryDelaySeconds float64 `validate:"min=0"`

	ResponseCacheTTLSeconds float64 `validate:"min=0"`
	ResponseCacheMaxSize    int     `validate:"min=0"`

	FailMode FailMode `validate:"required,oneof=open closed"`
}

// Validate runs struct-tag validation followed by cross-field checks the
// tags alone cannot express (fresh_seconds < max_seconds, as spec.md's
// PolicyCacheEntry invariant requires of every cache entry this produces).
func (o *Options) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(o); err != nil {
		return formatValidationErrors(err)
	}
	if o.FreshSeconds >= o.MaxSeconds {
		return fmt.Errorf("fresh_seconds (%v) must be less than max_seconds (%v)", o.FreshSeconds, o.MaxSeconds)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
