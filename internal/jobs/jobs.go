// Package jobs loads the work list and records progress against it.
package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrSource means the job list cannot be read at all. It is the only
// run-fatal error.
var ErrSource = errors.New("jobs: source unavailable")

// Job is one topic query with a quota of results to collect.
type Job struct {
	ID           string    `yaml:"id" json:"id"`
	Query        string    `yaml:"query" json:"query"`
	Instructions string    `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Start        time.Time `yaml:"start,omitempty" json:"start,omitempty"`
	End          time.Time `yaml:"end,omitempty" json:"end,omitempty"`
	Quota        int       `yaml:"quota" json:"quota"`
	Progress     int       `yaml:"progress" json:"progress"`
	Satisfied    bool      `yaml:"satisfied,omitempty" json:"satisfied,omitempty"`
}

// Remaining is the number of results still wanted, never negative.
func (j Job) Remaining() int {
	if r := j.Quota - j.Progress; r > 0 {
		return r
	}
	return 0
}

// Done reports whether the quota is met.
func (j Job) Done() bool {
	return j.Satisfied || j.Progress >= j.Quota
}

// Key identifies the job in updates: the ID when set, else the query.
func (j Job) Key() string {
	if j.ID != "" {
		return j.ID
	}
	return j.Query
}

// Source supplies jobs and stores their progress.
type Source interface {
	Jobs(ctx context.Context) ([]Job, error)
	Update(ctx context.Context, job Job) error
}
