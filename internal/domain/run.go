package domain

import (
	"time"
)

// RunID is a unique identifier for a download run.
type RunID string

// String returns the string representation of the RunID.
func (id RunID) String() string {
	return string(id)
}

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// IsFinished returns true once the run can no longer change.
func (s RunStatus) IsFinished() bool {
	return s == RunStatusCompleted || s == RunStatusCancelled || s == RunStatusFailed
}

// Run is the history record of one pipeline invocation.
type Run struct {
	ID          RunID
	Source      string
	Destination string
	Stem        string
	URLColumn   string
	Status      RunStatus
	Progress    ProgressState
	Outcomes    []Outcome
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// NewRun creates a run record in the running state.
func NewRun(id RunID, source, destination string) *Run {
	return &Run{
		ID:          id,
		Source:      source,
		Destination: destination,
		Stem:        FileStem(source),
		Status:      RunStatusRunning,
		StartedAt:   time.Now(),
	}
}

// SavedCount returns the number of saved outcomes.
func (r *Run) SavedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.IsSaved() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of failed outcomes.
func (r *Run) FailedCount() int {
	return len(r.Outcomes) - r.SavedCount()
}

// MarkCompleted finishes the run with its outcomes.
func (r *Run) MarkCompleted(outcomes []Outcome) {
	r.Outcomes = outcomes
	r.finish(RunStatusCompleted)
}

// MarkCancelled finishes the run early, keeping the outcomes produced so far.
func (r *Run) MarkCancelled(outcomes []Outcome) {
	r.Outcomes = outcomes
	r.finish(RunStatusCancelled)
}

// MarkFailed finishes the run with a fatal error.
func (r *Run) MarkFailed(err string) {
	r.Error = err
	r.finish(RunStatusFailed)
}

func (r *Run) finish(status RunStatus) {
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
}

// Clone returns a copy safe to hand out while the run keeps changing.
func (r *Run) Clone() *Run {
	c := *r
	c.Outcomes = append([]Outcome(nil), r.Outcomes...)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
