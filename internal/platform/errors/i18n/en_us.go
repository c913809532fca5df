package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeSessionInvalidID      = "SESSION_INVALID_ID"
	CodeSessionMalformedState = "SESSION_MALFORMED_STATE"
	CodeSessionInvalidBudget  = "SESSION_INVALID_ROUND_BUDGET"
	CodeSessionInvalidVerdict = "SESSION_INVALID_VERDICT"
	CodeSessionEnded          = "SESSION_ENDED"
	CodeRoundInvalidRole      = "ROUND_INVALID_ROLE"
	CodeRoundEmptyOutput      = "ROUND_EMPTY_OUTPUT"
	CodeRoundBudgetExceeded   = "ROUND_BUDGET_EXCEEDED"
	CodeIssueInvalidCategory  = "ISSUE_INVALID_CATEGORY"
	CodeIssueInvalidSeverity  = "ISSUE_INVALID_SEVERITY"
	CodeIssueEmptyID          = "ISSUE_EMPTY_ID"
	CodeIssueUnknownID        = "ISSUE_UNKNOWN_ID"
	CodeIssueInvalidFilter    = "ISSUE_INVALID_FILTER"
	CodeCheckpointNotFound    = "CHECKPOINT_NOT_FOUND"
	CodeGraphUnknownFile      = "GRAPH_UNKNOWN_FILE"
	CodeNotFound              = "NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeValidation            = "VALIDATION_ERROR"
	CodeInternal              = "INTERNAL_ERROR"
)

// enUSMessages holds the en-US message templates, keyed by error code.
var enUSMessages = map[Code]string{
	CodeSessionNotFound:       "Review session {{.session_id}} was not found.",
	CodeSessionInvalidID:      "Session identifier is not valid.",
	CodeSessionMalformedState: "Stored state for session {{.session_id}} could not be read.",
	CodeSessionInvalidBudget:  "Round budget must be at least 1.",
	CodeSessionInvalidVerdict: "Verdict must be PASS, FAIL, or CONDITIONAL.",
	CodeSessionEnded:          "Session {{.session_id}} has already ended.",
	CodeRoundInvalidRole:      "Role must be verifier or critic.",
	CodeRoundEmptyOutput:      "Round output must not be empty.",
	CodeRoundBudgetExceeded:   "Session {{.session_id}} has used its round budget of {{.budget}}.",
	CodeIssueInvalidCategory:  "Issue category {{.category}} is not recognized.",
	CodeIssueInvalidSeverity:  "Issue severity {{.severity}} is not recognized.",
	CodeIssueEmptyID:          "Issue identifier must not be empty.",
	CodeIssueUnknownID:        "Issue {{.issue_id}} does not exist in this session.",
	CodeIssueInvalidFilter:    "Issue filter expression could not be parsed.",
	CodeCheckpointNotFound:    "No checkpoint is available at round {{.round}}.",
	CodeGraphUnknownFile:      "File {{.file}} is not part of the session context.",
	CodeNotFound:              "The requested record was not found.",
	CodeConflict:              "The write conflicts with an existing record.",
	CodeValidation:            "The request failed validation.",
	CodeInternal:              "An internal error occurred.",
}

func init() {
	RegisterCatalog(BaseLocale, NewCatalog(BaseLocale, enUSMessages))
}
