// Package pipeline drives jobs through search, fetch, extraction and the
// result sink.
package pipeline

import (
	"context"
	"io"

	"github.com/hyperifyio/goexcerpt/internal/dedup"
	"github.com/hyperifyio/goexcerpt/internal/jobs"
	"github.com/hyperifyio/goexcerpt/internal/oracle"
	"github.com/hyperifyio/goexcerpt/internal/search"
	"github.com/hyperifyio/goexcerpt/internal/sink"
)

// Searcher returns candidate identifiers. search.Chain implements it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) []string
}

// Fetcher returns normalized text for an identifier. *fetch.Fetcher
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (string, error)
}

// Extractor turns text into a record. *oracle.Client implements it.
type Extractor interface {
	Extract(ctx context.Context, in oracle.Input) oracle.Outcome
}

// Options are the policy knobs of a run.
type Options struct {
	// MaxPages bounds pagination per search round.
	MaxPages int
	// MaxRounds bounds how often a job goes back for more candidates.
	MaxRounds int
	// CandidateFactor multiplies the remaining quota to size each search.
	CandidateFactor int
	// Concurrency is the number of jobs processed at once.
	Concurrency int
	// RetryFetchFailures leaves transient fetch failures out of the dedup
	// store so the next run tries them again.
	RetryFetchFailures bool
	// Out receives one line per accepted excerpt when set.
	Out io.Writer
	// OutWidth bounds the printed excerpt by display width when positive.
	OutWidth int
}

func (o Options) maxRounds() int {
	if o.MaxRounds > 0 {
		return o.MaxRounds
	}
	return 3
}

func (o Options) factor() int {
	if o.CandidateFactor > 0 {
		return o.CandidateFactor
	}
	return 1
}

func (o Options) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return 1
}

// Context holds every collaborator a run needs. It is passed explicitly so
// that no package keeps global handles.
type Context struct {
	Dedup   dedup.Store
	Sink    sink.Sink
	Search  Searcher
	Fetch   Fetcher
	Extract Extractor
	Jobs    jobs.Source
	Options Options
	// RunID tags every log line of a run.
	RunID string
}
