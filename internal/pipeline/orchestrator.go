package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/goexcerpt/internal/fetch"
	"github.com/hyperifyio/goexcerpt/internal/jobs"
	"github.com/hyperifyio/goexcerpt/internal/oracle"
	"github.com/hyperifyio/goexcerpt/internal/search"
	"github.com/hyperifyio/goexcerpt/internal/sink"
)

// Orchestrator runs jobs against a pipeline Context.
type Orchestrator struct {
	pc    *Context
	outMu sync.Mutex
}

// New returns an orchestrator for pc. A missing RunID is generated.
func New(pc *Context) *Orchestrator {
	if pc.RunID == "" {
		pc.RunID = uuid.NewString()
	}
	return &Orchestrator{pc: pc}
}

// Run loads the job list and processes every unsatisfied job. Failing to
// read the job list is the only error returned; everything else is local to
// a candidate or a job and shows up in the summaries.
func (o *Orchestrator) Run(ctx context.Context) ([]Summary, error) {
	lg := log.With().Str("run_id", o.pc.RunID).Logger()
	list, err := o.pc.Jobs.Jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	lg.Info().Int("jobs", len(list)).Int("concurrency", o.pc.Options.concurrency()).Msg("run started")

	summaries := make([]Summary, len(list))
	g := new(errgroup.Group)
	g.SetLimit(o.pc.Options.concurrency())
	for i, j := range list {
		if j.Done() {
			summaries[i] = Summary{Job: j, State: StateSatisfied, Stored: -1}
			continue
		}
		i, j := i, j
		g.Go(func() error {
			summaries[i] = o.RunJob(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range summaries {
		lg.Info().Str("query", s.Job.Query).Str("state", string(s.State)).
			Int("progress", s.Job.Progress).Int("quota", s.Job.Quota).Int("found", s.Found).
			Msg("job summary")
	}
	return summaries, nil
}

// RunJob drives one job until it is satisfied, runs out of candidates or
// the context ends.
func (o *Orchestrator) RunJob(ctx context.Context, job jobs.Job) Summary {
	r := &jobRun{
		pc:    o.pc,
		outMu: &o.outMu,
		job:   job,
		tried: make(map[string]struct{}),
		log:   log.With().Str("run_id", o.pc.RunID).Str("query", job.Query).Logger(),
	}
	r.sum.Job = job
	r.sum.Stored = -1
	r.transition(StatePending)
	r.run(ctx)
	r.sum.Job = r.job
	return r.sum
}

type jobRun struct {
	pc    *Context
	outMu *sync.Mutex
	job   jobs.Job
	tried map[string]struct{}
	sum   Summary
	log   zerolog.Logger
}

func (r *jobRun) transition(s State) {
	r.sum.State = s
	r.log.Debug().Str("state", string(s)).Int("progress", r.job.Progress).Int("quota", r.job.Quota).Msg("job state")
}

// Contains excludes identifiers already deduplicated and those tried in this
// run but deliberately left out of the dedup store.
func (r *jobRun) Contains(id string) bool {
	if _, ok := r.tried[id]; ok {
		return true
	}
	return r.pc.Dedup.Contains(id)
}

func (r *jobRun) run(ctx context.Context) {
	if r.job.Done() {
		r.finish(ctx, StateSatisfied)
		return
	}
	for round := 0; round < r.pc.Options.maxRounds(); round++ {
		if ctx.Err() != nil {
			r.transition(StateCanceled)
			return
		}
		r.transition(StateFetchingCandidates)
		r.sum.Rounds++
		ids := r.pc.Search.Search(ctx, search.Request{
			Query:    search.Query{Text: r.job.Query, Start: r.job.Start, End: r.job.End},
			Wanted:   r.job.Remaining() * r.pc.Options.factor(),
			Excluded: r,
			MaxPages: r.pc.Options.MaxPages,
		})
		if len(ids) == 0 {
			break
		}
		r.transition(StateProcessing)
		for _, id := range ids {
			if ctx.Err() != nil {
				r.transition(StateCanceled)
				return
			}
			// another job may have claimed it since the search
			if r.Contains(id) {
				continue
			}
			r.tried[id] = struct{}{}
			r.sum.Candidates++
			r.candidate(ctx, id)
			if r.job.Remaining() == 0 {
				r.finish(ctx, StateSatisfied)
				return
			}
		}
	}
	if ctx.Err() != nil {
		r.transition(StateCanceled)
		return
	}
	r.log.Info().Int("progress", r.job.Progress).Int("quota", r.job.Quota).Msg("candidates exhausted before quota")
	r.finish(ctx, StateExhausted)
}

// candidate runs fetch, extract and emit for one identifier.
func (r *jobRun) candidate(ctx context.Context, id string) {
	lg := r.log.With().Str("url", id).Logger()
	text, err := r.pc.Fetch.Fetch(ctx, id)
	if err != nil {
		r.sum.FetchFailed++
		if errors.Is(err, context.Canceled) {
			return
		}
		if r.pc.Options.RetryFetchFailures && fetch.IsTransient(err) {
			lg.Info().Err(err).Msg("transient fetch failure; will retry next run")
			return
		}
		lg.Info().Err(err).Msg("fetch failed; skipping")
		r.markSeen(ctx, id)
		return
	}

	out := r.pc.Extract.Extract(ctx, oracle.Input{Text: text, Query: r.job.Query, Instructions: r.job.Instructions})
	if ctx.Err() != nil {
		return
	}
	if out.Record == nil {
		r.sum.Empty++
		ev := lg.Info()
		if out.Err != nil {
			ev = ev.Err(out.Err)
		}
		ev.Bool("retried", out.Retried).Msg("no relevant content")
		r.markSeen(ctx, id)
		return
	}

	row := sink.NewRow(r.job.Query, id, out.Record)
	added, err := r.pc.Sink.Append(ctx, row)
	if err != nil {
		// left out of dedup so the next run can write it
		r.sum.SinkErrors++
		lg.Error().Err(err).Msg("sink append failed")
		return
	}
	if !added {
		r.sum.Duplicates++
		lg.Debug().Msg("row already in sink")
	}
	r.markSeen(ctx, id)
	r.job.Progress++
	r.sum.Found++
	lg.Info().Int("progress", r.job.Progress).Int("quota", r.job.Quota).Msg("excerpt recorded")
	if w := r.pc.Options.Out; w != nil {
		r.outMu.Lock()
		fmt.Fprintf(w, "[%s] %s\n  %s\n", r.job.Query, id, clip(out.Record.Excerpt, r.pc.Options.OutWidth))
		r.outMu.Unlock()
	}
	r.save(ctx)
}

// markSeen records id in the dedup store. Like save, it ignores cancellation
// so a row written to the sink is never left undeduplicated.
func (r *jobRun) markSeen(ctx context.Context, id string) {
	if err := r.pc.Dedup.Add(context.WithoutCancel(ctx), id); err != nil {
		r.log.Warn().Err(err).Str("url", id).Msg("dedup persist failed")
	}
}

func (r *jobRun) finish(ctx context.Context, s State) {
	r.transition(s)
	if s == StateSatisfied && !r.job.Satisfied {
		r.job.Satisfied = true
		r.save(ctx)
	}
}

// save writes progress back to the job source. The write uses a detached
// context so progress made before a cancel is still recorded.
func (r *jobRun) save(ctx context.Context) {
	if r.pc.Jobs == nil {
		return
	}
	if err := r.pc.Jobs.Update(context.WithoutCancel(ctx), r.job); err != nil {
		r.log.Warn().Err(err).Msg("job progress not saved")
	}
}

// clip flattens s to one line and, when width is positive, cuts it to that
// many terminal cells.
func clip(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width > 0 {
		s = runewidth.Truncate(s, width, "...")
	}
	return s
}
