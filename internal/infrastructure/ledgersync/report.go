package ledgersync

import (
	"time"
)

// Escalation is a sync problem that needs an operator: a row the remote
// rejected or a remote table whose shape no longer matches the local one.
type Escalation struct {
	Code    string `json:"code"`
	Table   string `json:"table"`
	RowID   string `json:"row_id,omitempty"`
	Message string `json:"message"`
}

// TableReport counts what a cycle did to one table
type TableReport struct {
	Table string `json:"table"`
	// Pushed rows were accepted by the remote and marked synced.
	Pushed int `json:"pushed"`
	// Requeued rows were accepted but edited during the push; they stay pending.
	Requeued int `json:"requeued"`
	Deleted  int `json:"deleted"`
	// Rejected rows moved to the conflict state.
	Rejected int `json:"rejected"`
	Pulled   int `json:"pulled"`
	// Unchanged remote rows already matched the local values.
	Unchanged int `json:"unchanged"`
	// KeptLocal counts remote versions that lost to a newer local edit.
	KeptLocal int `json:"kept_local"`
	// Attached counts remote versions stored on open conflicts.
	Attached int `json:"attached"`
	// Deferred rows changed locally while being pulled and are retried.
	Deferred          int  `json:"deferred"`
	WatermarkAdvanced bool `json:"watermark_advanced"`
}

// CycleReport summarizes one sync cycle
type CycleReport struct {
	ID          string         `json:"id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Tables      []*TableReport `json:"tables"`
	Escalations []Escalation   `json:"escalations"`
	// PullSkipped is set when a push failure ended the cycle early.
	PullSkipped bool  `json:"pull_skipped"`
	Err         error `json:"-"`
}

// Duration returns how long the cycle took
func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Table returns the report for a table, creating it on first use
func (r *CycleReport) Table(name string) *TableReport {
	for _, t := range r.Tables {
		if t.Table == name {
			return t
		}
	}
	t := &TableReport{Table: name}
	r.Tables = append(r.Tables, t)
	return t
}

// Pulled reports how many rows were pulled into any of tables
func (r *CycleReport) Pulled(tables ...string) int {
	n := 0
	for _, t := range r.Tables {
		for _, name := range tables {
			if t.Table == name {
				n += t.Pulled
			}
		}
	}
	return n
}

// Totals sums the per-table counters
func (r *CycleReport) Totals() TableReport {
	var sum TableReport
	for _, t := range r.Tables {
		sum.Pushed += t.Pushed
		sum.Requeued += t.Requeued
		sum.Deleted += t.Deleted
		sum.Rejected += t.Rejected
		sum.Pulled += t.Pulled
		sum.Unchanged += t.Unchanged
		sum.KeptLocal += t.KeptLocal
		sum.Attached += t.Attached
		sum.Deferred += t.Deferred
	}
	return sum
}
