package moderation

// ResultCode classifies expected business-rule outcomes. Engine and lifecycle
// operations report these as values rather than errors so callers can render
// inline messaging without try/catch scaffolding; Go errors are reserved for
// genuinely unexpected failures.
type ResultCode string

const (
	CodeOK           ResultCode = "ok"
	CodeNotFound     ResultCode = "not_found"
	CodeUnauthorized ResultCode = "unauthorized"
	CodeInvalid      ResultCode = "invalid"
	CodeConflict     ResultCode = "conflict"
	CodeStoreError   ResultCode = "store_error"
)

// Result is the outcome of a lifecycle or engine operation.
type Result struct {
	OK      bool       `json:"success"`
	Code    ResultCode `json:"code"`
	Message string     `json:"error,omitempty"`
}

func ok() Result {
	return Result{OK: true, Code: CodeOK}
}

func failed(code ResultCode, msg string) Result {
	return Result{Code: code, Message: msg}
}

// ActionResult is the outcome of a moderation action. When OK, ContentStatus
// holds the resulting visibility state and ActionID the appended audit record.
// Warnings surface partial failures that did not fail the action overall,
// such as a best-effort report status update that could not be applied.
type ActionResult struct {
	Result
	ContentStatus  ContentStatus `json:"content_status,omitempty"`
	ActionID       string        `json:"action_id,omitempty"`
	ReportResolved bool          `json:"report_resolved,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
}
