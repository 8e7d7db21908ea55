package history

import "time"

// Status is the final outcome of a run.
type Status string

const (
	StatusPublished       Status = "published"
	StatusNothingToUpdate Status = "nothing_to_update"
	StatusDryRun          Status = "dry_run"
	StatusConflict        Status = "conflict"
	StatusConfigError     Status = "config_error"
	StatusAborted         Status = "aborted"
)

// FailureScope tells whether a contained failure hit a whole provider or one item.
type FailureScope string

const (
	ScopeProvider FailureScope = "provider"
	ScopeItem     FailureScope = "item"
)

// Failure is one contained failure recorded during a run.
type Failure struct {
	Scope    FailureScope
	Provider string
	Item     string
	Reason   string
}

// Run summarizes one invocation of the update pipeline.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           Status
	Entries          int
	ProviderFailures int
	ItemFailures     int
	// SHA is the document version token after a successful publish.
	SHA     string
	Message string
	// Failures is populated by Get; List leaves it empty.
	Failures []Failure
}

// Duration reports how long the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
