package search

import (
	"context"
	"fmt"
	"sync"
)

// fakeProvider serves canned pages and records every call.
type fakeProvider struct {
	name  string
	pages [][]string
	err   error

	mu    sync.Mutex
	calls []fakeCall
}

type fakeCall struct {
	Query Query
	Page  int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Page(_ context.Context, q Query, page int) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Query: q, Page: page})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if page >= len(f.pages) {
		return nil, nil
	}
	return f.pages[page], nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func urls(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://%s.example.com/%d", prefix, i)
	}
	return out
}
