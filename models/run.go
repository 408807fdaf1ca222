package models

import "time"

// RowAction is the outcome the reconciler chose for one listing row
type RowAction string

const (
	ActionSkip          RowAction = "skip"
	ActionDelete        RowAction = "delete"
	ActionPatchDeadline RowAction = "patch_deadline"
	ActionCollect       RowAction = "collect"
)

// RunReport summarizes one crawl run
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	Pages     int `json:"pages"`
	Rows      int `json:"rows"`
	Collected int `json:"collected"`
	Deleted   int `json:"deleted"`
	Patched   int `json:"patched"`
	Skipped   int `json:"skipped"`
	RowErrors int `json:"row_errors"`
	Purged    int `json:"purged"`

	// Stalled is set when a numbered page was clicked but the listing never changed
	Stalled bool   `json:"stalled"`
	Error   string `json:"error,omitempty"`
}

// Count bumps the counter that matches action
func (r *RunReport) Count(action RowAction) {
	switch action {
	case ActionSkip:
		r.Skipped++
	case ActionDelete:
		r.Deleted++
	case ActionPatchDeadline:
		r.Patched++
	case ActionCollect:
		r.Collected++
	}
}

// Succeeded reports whether the run finished without a terminal error
func (r *RunReport) Succeeded() bool {
	return r.Error == ""
}
