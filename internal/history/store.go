package history

import (
	"context"
	"time"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// Record is one persisted validation result.
type Record struct {
	ID             int64                `json:"id"`
	RequestID      string               `json:"request_id"`
	Status         schema.VerdictStatus `json:"status"`
	ChecksPassed   int                  `json:"checks_passed"`
	TotalChecks    int                  `json:"total_checks"`
	Issues         []string             `json:"issues,omitempty"`
	Summary        map[string]any       `json:"summary,omitempty"`
	ProcessingTime time.Duration        `json:"processing_time"`
	CompletedAt    time.Time            `json:"completed_at"`
}

// Filter restricts List results. Zero value lists everything, newest first.
type Filter struct {
	Status schema.VerdictStatus
	Since  *time.Time
	Limit  int
	Offset int
}

// Store persists validation records.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, requestID string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// Prune deletes records completed before the cutoff and returns the
	// number removed.
	Prune(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
