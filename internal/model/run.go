package model

import "time"

// RunStatus is the terminal state of a harvest run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// Run is one harvest as recorded in the run log.
type Run struct {
	ID           string        `json:"id"`
	Status       RunStatus     `json:"status"`
	Companies    int           `json:"companies"`
	TasksTotal   int           `json:"tasks_total"`
	Submitted    int           `json:"submitted"`
	Succeeded    int           `json:"succeeded"`
	Empty        int           `json:"empty"`
	Failed       int           `json:"failed"`
	RecordsNew   int           `json:"records_new"`
	RecordsTotal int           `json:"records_total"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Failures     []TaskFailure `json:"failures,omitempty"`
}

// TaskFailure records why a task contributed nothing.
type TaskFailure struct {
	Task       Task   `json:"task"`
	StatusCode int    `json:"status_code,omitempty"`
	ErrorType  string `json:"error_type"` // "transient" or "permanent"
	Reason     string `json:"reason"`
}
