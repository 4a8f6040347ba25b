package palisade

import (
	"context"
	"log/slog"

	"github.com/palisade-dev/palisade-go/internal/cloudclient"
	"github.com/palisade-dev/palisade-go/internal/constraint"
	"github.com/palisade-dev/palisade-go/internal/engine"
	"github.com/palisade-dev/palisade-go/internal/policycache"
)

// cloudValidatorName identifies the validator New pre-seeds into every
// client's engine.
const cloudValidatorName = "palisade-cloud-validator"

// cloudValidatorPriority runs the built-in validator ahead of most
// caller-supplied custom validators (engine.DefaultPriority is 100), so a
// deterministic policy's deny short-circuits before cheaper bespoke checks
// run, while still letting a caller register something at an even lower
// priority to run first.
const cloudValidatorPriority = 50

// newCloudValidator builds the NamedValidator every Client pre-seeds: a
// cached deterministic policy is checked locally via constraint.Validate;
// a tool with no deterministic policy, or one explicitly in "llm" mode,
// falls through to the cloud client's own Validate call.
func newCloudValidator(cache *policycache.Cache, cloud *cloudclient.Client, logger *slog.Logger) engine.NamedValidator {
	return engine.NamedValidator{
		Name:        cloudValidatorName,
		Description: "Deterministic policy cache lookup, falling back to cloud validation",
		Priority:    cloudValidatorPriority,
		Validate: func(ctx context.Context, vctx engine.ValidationContext) (engine.ValidationResult, error) {
			if policy, ok := cache.Get(vctx.ToolName); ok && policy.Mode != "llm" {
				return evaluateDeterministicPolicy(policy, vctx), nil
			}
			return validateAgainstCloud(ctx, cloud, vctx)
		},
	}
}

func evaluateDeterministicPolicy(policy constraint.Policy, vctx engine.ValidationContext) engine.ValidationResult {
	result := constraint.Validate(vctx.Arguments, policy.Constraints)
	if result.Decision == constraint.DecisionDeny {
		return engine.ValidationResult{
			Decision: engine.DecisionDeny,
			Reason:   result.Reason,
			Metadata: map[string]any{
				"failed_argument": result.FailedArgument,
				"policy_version":  policy.Version,
			},
		}
	}
	return engine.ValidationResult{Decision: engine.DecisionAllow, Reason: "deterministic policy satisfied"}
}

func validateAgainstCloud(ctx context.Context, cloud *cloudclient.Client, vctx engine.ValidationContext) (engine.ValidationResult, error) {
	resp, err := cloud.Validate(ctx, vctx.ToolName, vctx.Arguments, vctx.Custom)
	if err != nil {
		return engine.ValidationResult{}, err
	}

	meta := map[string]any{}
	for k, v := range resp.Metadata {
		meta[k] = v
	}
	if resp.ApprovalID != "" {
		meta["approval_id"] = resp.ApprovalID
	}
	if len(resp.FailedConstraints) > 0 {
		meta["failed_constraints"] = resp.FailedConstraints
	}

	return engine.ValidationResult{
		Decision: engine.Decision(resp.Decision),
		Reason:   resp.Reason,
		Metadata: meta,
	}, nil
}
