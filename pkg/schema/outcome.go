package schema

import "time"

// CheckStatus is the terminal state of one check within a validation run.
type CheckStatus string

const (
	StatusPassed      CheckStatus = "PASSED"
	StatusFailed      CheckStatus = "FAILED"
	StatusNeedsReview CheckStatus = "NEEDS_REVIEW"
	StatusError       CheckStatus = "ERROR"
	StatusTimeout     CheckStatus = "TIMEOUT"
	StatusSkipped     CheckStatus = "SKIPPED"
)

// Executed reports whether the check actually ran (entered RUNNING),
// as opposed to being skipped before launch.
func (s CheckStatus) Executed() bool {
	return s != StatusSkipped
}

// Outcome is the immutable result of one check for one validation run.
// Reason is required whenever Status is not PASSED.
type Outcome struct {
	Check    string         `json:"check"`
	Status   CheckStatus    `json:"status"`
	Reason   string         `json:"reason,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// VerdictStatus is the final reduction of a validation run.
type VerdictStatus string

const (
	VerdictApproved     VerdictStatus = "APPROVED"
	VerdictRejected     VerdictStatus = "REJECTED"
	VerdictManualReview VerdictStatus = "MANUAL_REVIEW"

	// VerdictFailed is the infrastructure-error verdict: the run itself could
	// not produce evidence (e.g. zero checks executed). Never APPROVED by default.
	VerdictFailed VerdictStatus = "FAILED"
)

// Verdict is the final result of validating one image.
// CheckResults are ordered by the configured check_order regardless of
// completion order.
type Verdict struct {
	RequestID      string        `json:"request_id"`
	Status         VerdictStatus `json:"status"`
	CheckResults   []Outcome     `json:"check_results"`
	ChecksPassed   int           `json:"checks_passed"`
	TotalChecks    int           `json:"total_checks"`
	Issues         []string      `json:"issues,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
	CompletedAt    time.Time     `json:"completed_at"`
}
