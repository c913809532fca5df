// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionNotFound       Code = "SESSION_NOT_FOUND"
	CodeSessionInvalidID      Code = "SESSION_INVALID_ID"
	CodeSessionMalformedState Code = "SESSION_MALFORMED_STATE"
	CodeSessionInvalidBudget  Code = "SESSION_INVALID_ROUND_BUDGET"
	CodeSessionInvalidVerdict Code = "SESSION_INVALID_VERDICT"
	CodeSessionEnded          Code = "SESSION_ENDED"

	// Round errors
	CodeRoundInvalidRole    Code = "ROUND_INVALID_ROLE"
	CodeRoundEmptyOutput    Code = "ROUND_EMPTY_OUTPUT"
	CodeRoundBudgetExceeded Code = "ROUND_BUDGET_EXCEEDED"

	// Issue errors
	CodeIssueInvalidCategory Code = "ISSUE_INVALID_CATEGORY"
	CodeIssueInvalidSeverity Code = "ISSUE_INVALID_SEVERITY"
	CodeIssueEmptyID         Code = "ISSUE_EMPTY_ID"
	CodeIssueUnknownID       Code = "ISSUE_UNKNOWN_ID"
	CodeIssueInvalidFilter   Code = "ISSUE_INVALID_FILTER"

	// Checkpoint errors
	CodeCheckpointNotFound Code = "CHECKPOINT_NOT_FOUND"

	// Graph errors
	CodeGraphUnknownFile Code = "GRAPH_UNKNOWN_FILE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "CONFLICT"

	// Generic failures
	CodeValidation Code = "VALIDATION_ERROR"
	CodeInternal   Code = "INTERNAL_ERROR"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeSessionInvalidID,
		CodeSessionInvalidBudget,
		CodeSessionInvalidVerdict,
		CodeRoundInvalidRole,
		CodeRoundEmptyOutput,
		CodeIssueInvalidCategory,
		CodeIssueInvalidSeverity,
		CodeIssueEmptyID,
		CodeIssueInvalidFilter,
		CodeValidation:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow the operation
	case CodeSessionEnded,
		CodeRoundBudgetExceeded:
		return codes.FailedPrecondition

	// NotFound - missing records or references
	case CodeSessionNotFound,
		CodeSessionMalformedState,
		CodeIssueUnknownID,
		CodeCheckpointNotFound,
		CodeGraphUnknownFile,
		CodeNotFound:
		return codes.NotFound

	// AlreadyExists - uniqueness conflicts
	case CodeConflict:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
