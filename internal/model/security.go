package model

type Decision string

const (
	// DecisionPending is the idle state of reviews whose check is started by the user.
	DecisionPending   Decision = "pending"
	DecisionLoading   Decision = "loading"
	DecisionPass      Decision = "pass"
	DecisionWarn      Decision = "warning"
	DecisionDanger    Decision = "danger"
	DecisionForbidden Decision = "forbidden"
)

// Resolved reports whether the check has produced a verdict.
func (d Decision) Resolved() bool {
	switch d {
	case DecisionPass, DecisionWarn, DecisionDanger, DecisionForbidden:
		return true
	}
	return false
}

type SecurityRule struct {
	ID    int    `json:"id"`
	Alert string `json:"alert"`
}

type SecurityError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// SecurityCheckResult mirrors the security engine response.
type SecurityCheckResult struct {
	Decision      Decision       `json:"decision"`
	Alert         string         `json:"alert"`
	TraceID       string         `json:"trace_id"`
	DangerList    []SecurityRule `json:"danger_list"`
	WarningList   []SecurityRule `json:"warning_list"`
	ForbiddenList []SecurityRule `json:"forbidden_list"`
	Error         *SecurityError `json:"error,omitempty"`
}
