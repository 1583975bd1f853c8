package model

import "time"

// JobStatus represents the current state of an ingestion job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is a final state. Terminal jobs are
// read-only except for eviction.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobCategory is a logical grouping of supplier domains scanned together.
// Each category carries its own lookback window, keyword policy, and retry
// backoff base.
type JobCategory string

const (
	// CategoryMarketplace scans the primary marketplace's order
	// confirmation emails.
	CategoryMarketplace JobCategory = "marketplace"

	// CategoryPrioritySuppliers scans the known important supplier domains.
	CategoryPrioritySuppliers JobCategory = "priority_suppliers"

	// CategoryOtherSuppliers scans user-selected discovered suppliers.
	CategoryOtherSuppliers JobCategory = "other_suppliers"
)

// Priority reports whether the category gets the extended lookback window
// and the broader subject keyword set.
func (c JobCategory) Priority() bool {
	return c == CategoryMarketplace || c == CategoryPrioritySuppliers
}

// Progress tracks per-email advancement within a running job. Processed is
// monotonically non-decreasing within a run.
type Progress struct {
	Total       int    `json:"total"`
	Processed   int    `json:"processed"`
	Success     int    `json:"success"`
	Failed      int    `json:"failed"`
	CurrentTask string `json:"current_task"`
}

// Job represents one fetch-and-extract ingestion run for a bounded email
// candidate set.
type Job struct {
	ID        string           `json:"id"`
	OwnerKey  string           `json:"owner_key"`
	Category  JobCategory      `json:"category"`
	Status    JobStatus        `json:"status"`
	Progress  Progress         `json:"progress"`
	Orders    []ExtractedOrder `json:"orders"`
	Logs      []string         `json:"logs"` // newest first, bounded
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
