package model

import "time"

// RunKind names the unit operation a pipeline run executed.
type RunKind string

const (
	RunKindIngest   RunKind = "ingest"
	RunKindNews     RunKind = "news"
	RunKindClassify RunKind = "classify"
	RunKindEmbed    RunKind = "embed"
	RunKindBriefing RunKind = "briefing"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusSuccess          RunStatus = "success"
	RunStatusError            RunStatus = "error"
	RunStatusNoRecentActivity RunStatus = "no_recent_activity"
)

// Terminal reports whether s is one of the recorded end states.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusError, RunStatusNoRecentActivity:
		return true
	}
	return false
}

// AllAccounts is the account slug recorded for portfolio-wide runs.
const AllAccounts = "all"

// PipelineRun is the append-only audit record of one unit-operation
// invocation.
type PipelineRun struct {
	ID          string         `json:"id"`
	Kind        RunKind        `json:"kind"`
	AccountSlug string         `json:"account_slug"`
	Status      RunStatus      `json:"status"`
	Processed   int            `json:"processed"`
	Counts      map[string]int `json:"counts,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorType   string         `json:"error_type,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RunFilter specifies criteria for listing pipeline runs.
type RunFilter struct {
	Kind         RunKind   `json:"kind,omitempty"`
	AccountSlug  string    `json:"account_slug,omitempty"`
	Status       RunStatus `json:"status,omitempty"`
	CreatedAfter time.Time `json:"created_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}
