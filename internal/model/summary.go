package model

import "time"

// RunStatus is the terminal state of a sync run.
type RunStatus string

const (
	RunSkipped   RunStatus = "Skipped"
	RunCompleted RunStatus = "Completed"
	RunFailed    RunStatus = "Failed"
)

// RunSummary is returned to the caller of a sync run. Error is only set
// when Status is RunFailed; Reason explains a RunSkipped.
type RunSummary struct {
	Status         RunStatus `json:"status"`
	ProcessedCount int       `json:"processedCount"`
	Error          string    `json:"error,omitempty"`
	Reason         string    `json:"reason,omitempty"`

	// Fetched is the number of messages materialized during the fetch
	// phase, Acknowledged how many of them were flagged as seen.
	Fetched      int `json:"fetched"`
	Acknowledged int `json:"acknowledged"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// RunRecord is a persisted RunSummary.
type RunRecord struct {
	ID             string    `json:"id" db:"id"`
	Status         string    `json:"status" db:"status"`
	ProcessedCount int       `json:"processedCount" db:"processed_count"`
	Fetched        int       `json:"fetched" db:"fetched"`
	Acknowledged   int       `json:"acknowledged" db:"acknowledged"`
	Error          string    `json:"error,omitempty" db:"error"`
	StartedAt      time.Time `json:"startedAt" db:"started_at"`
	FinishedAt     time.Time `json:"finishedAt" db:"finished_at"`
}
