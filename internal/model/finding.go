package model

type Severity string

const (
	// SeverityNone marks findings without a level. They still block submission.
	SeverityNone      Severity = ""
	SeverityWarn      Severity = "warn"
	SeverityDanger    Severity = "danger"
	SeverityForbidden Severity = "forbidden"
)

// Finding is one rule hit from the risk gate.
type Finding struct {
	Code     int      `json:"code"`
	Message  string   `json:"msg"`
	Severity Severity `json:"level,omitempty"`
}

// Blocking reports whether the finding cannot be overridden by the user.
func (f Finding) Blocking() bool {
	return f.Severity == SeverityForbidden || f.Severity == SeverityNone
}
