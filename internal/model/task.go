package model

import (
	"fmt"
	"strconv"
)

// Period is a leaderboard time window label.
type Period string

const (
	Period30d    Period = "30d"
	Period7d     Period = "7d"
	PeriodEpoch1 Period = "epoch-1"
	PeriodEpoch2 Period = "epoch-2"
)

// DefaultPeriods lists every period the leaderboard exposes.
var DefaultPeriods = []Period{Period30d, Period7d, PeriodEpoch1, PeriodEpoch2}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case Period30d, Period7d, PeriodEpoch1, PeriodEpoch2:
		return true
	}
	return false
}

// Task is one fully specified leaderboard page request.
type Task struct {
	Company   string `json:"company"`
	Period    Period `json:"period"`
	Page      int    `json:"page"`
	Ascending bool   `json:"ascending"`
}

// AscendingParam is the query value the API expects for the sort direction.
func (t Task) AscendingParam() string {
	return strconv.FormatBool(t.Ascending)
}

func (t Task) String() string {
	return fmt.Sprintf("%s|%s|%d|%s", t.Company, t.Period, t.Page, t.AscendingParam())
}

// TaskStatus classifies how a task finished.
type TaskStatus string

const (
	TaskSucceeded TaskStatus = "succeeded"
	TaskEmpty     TaskStatus = "empty"
	TaskFailed    TaskStatus = "failed"
)

// TaskResult is the outcome of one task. Records is only set for
// TaskSucceeded and may be empty when every entry was already stored.
type TaskResult struct {
	Task       Task
	Status     TaskStatus
	Records    []Record
	Dropped    int // entries filtered by the snapshot
	StatusCode int
	Err        error
}

// Succeeded builds a success result.
func Succeeded(task Task, records []Record, dropped int) TaskResult {
	return TaskResult{Task: task, Status: TaskSucceeded, Records: records, Dropped: dropped}
}

// Empty builds a result for a page with no entries.
func Empty(task Task) TaskResult {
	return TaskResult{Task: task, Status: TaskEmpty}
}

// Failed builds a failure result carrying the reason.
func Failed(task Task, statusCode int, err error) TaskResult {
	return TaskResult{Task: task, Status: TaskFailed, StatusCode: statusCode, Err: err}
}

// Reason is the failure message, or "" for non-failed results.
func (r TaskResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
