package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperifyio/goexcerpt/internal/jobs"
	"github.com/hyperifyio/goexcerpt/internal/oracle"
	"github.com/hyperifyio/goexcerpt/internal/search"
	"github.com/hyperifyio/goexcerpt/internal/sink"
)

// fakeSearch returns its fixed candidate list, minus excluded ids, capped
// at Wanted.
type fakeSearch struct {
	mu       sync.Mutex
	ids      []string
	requests []search.Request
}

func (f *fakeSearch) Search(_ context.Context, req search.Request) []string {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	var out []string
	for _, id := range f.ids {
		if req.Excluded != nil && req.Excluded.Contains(id) {
			continue
		}
		out = append(out, id)
		if len(out) >= req.Wanted {
			break
		}
	}
	return out
}

type fakeFetch struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetch) Fetch(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return "", err
	}
	if t, ok := f.pages[id]; ok {
		return t, nil
	}
	return "", errors.New("not found")
}

// fakeExtract answers with a record whose excerpt is the text itself, or
// empty when the text contains "nothing".
type fakeExtract struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeExtract) Extract(_ context.Context, in oracle.Input) oracle.Outcome {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if in.Text == "nothing" {
		return oracle.Outcome{Calls: 1}
	}
	return oracle.Outcome{Calls: 1, Record: &oracle.Record{Excerpt: in.Text, Title: "t"}}
}

type memJobs struct {
	mu      sync.Mutex
	list    []jobs.Job
	err     error
	updates []jobs.Job
}

func (m *memJobs) Jobs(context.Context) ([]jobs.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]jobs.Job(nil), m.list...), nil
}

func (m *memJobs) Update(_ context.Context, j jobs.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, j)
	for i := range m.list {
		if m.list[i].Key() == j.Key() {
			m.list[i] = j
			return nil
		}
	}
	return fmt.Errorf("unknown job %s", j.Key())
}

type memDedup struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func newMemDedup(ids ...string) *memDedup {
	d := &memDedup{set: map[string]struct{}{}}
	for _, id := range ids {
		d.set[id] = struct{}{}
	}
	return d
}

func (d *memDedup) Contains(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.set[id]
	return ok
}

func (d *memDedup) Add(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.set[id] = struct{}{}
	return nil
}

func (d *memDedup) Snapshot() map[string]struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[string]struct{}{}
	for k := range d.set {
		out[k] = struct{}{}
	}
	return out
}

func (d *memDedup) Close() error { return nil }

type memSink struct {
	mu   sync.Mutex
	rows []sink.Row
	err  error
}

func (m *memSink) Append(_ context.Context, r sink.Row) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, have := range m.rows {
		if have == r {
			return false, nil
		}
	}
	m.rows = append(m.rows, r)
	return true, nil
}

func (m *memSink) Close() error { return nil }
