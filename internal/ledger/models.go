package ledger

import "time"

// Status is the last stage a chapter completed.
type Status string

const (
	StatusSplit      Status = "split"
	StatusScripted   Status = "scripted"
	StatusRegistered Status = "registered"
	StatusVoiced     Status = "voiced"
	StatusAssembled  Status = "assembled"
)

var statusOrder = []Status{
	StatusSplit,
	StatusScripted,
	StatusRegistered,
	StatusVoiced,
	StatusAssembled,
}

// Rank orders statuses along the pipeline; unknown values rank lowest.
func (s Status) Rank() int {
	for i, candidate := range statusOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Outcome classifies a stage event.
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Event is one stage execution.
type Event struct {
	ID           int64
	RunID        string
	Work         string
	Chapter      int
	Stage        string
	Outcome      Outcome
	ErrorKind    string
	ErrorMessage string
	Artifact     string
	StartedAt    time.Time
	FinishedAt   time.Time
	// Reached is the chapter status a successful stage establishes.
	Reached Status
}

// ChapterState is the latest known state of one chapter.
type ChapterState struct {
	Work         string
	Chapter      int
	Status       Status
	FailedStage  string
	ErrorKind    string
	ErrorMessage string
	Artifact     string
	RunID        string
	UpdatedAt    time.Time
}

// Failed reports whether the most recent run of the chapter stopped on an
// error.
func (c ChapterState) Failed() bool {
	return c.FailedStage != ""
}
