package pipeline

import (
	"fmt"

	"github.com/hyperifyio/goexcerpt/internal/jobs"
)

// State is the position of a job in its per-run lifecycle.
type State string

const (
	StatePending            State = "PENDING"
	StateFetchingCandidates State = "FETCHING_CANDIDATES"
	StateProcessing         State = "PROCESSING_CANDIDATE"
	StateSatisfied          State = "SATISFIED"
	// StateExhausted means candidates ran out before the quota was met. The
	// job is tried again on the next run.
	StateExhausted State = "EXHAUSTED"
	// StateCanceled means the run stopped before the job reached a terminal
	// state. Everything already written stays.
	StateCanceled State = "CANCELED"
)

// Summary reports what one run did for one job.
type Summary struct {
	Job   jobs.Job
	State State
	// Found counts results recorded in this run.
	Found       int
	Rounds      int
	Candidates  int
	FetchFailed int
	Empty       int
	Duplicates  int
	SinkErrors  int
	// Stored is the number of rows the result table holds for the query,
	// filled in by callers that can count them. -1 means unknown.
	Stored int
}

func (s Summary) String() string {
	line := fmt.Sprintf("%s: %d/%d (%s, +%d this run)", s.Job.Query, s.Job.Progress, s.Job.Quota, s.State, s.Found)
	if s.Stored >= 0 {
		line += fmt.Sprintf(", %d stored", s.Stored)
	}
	return line
}
