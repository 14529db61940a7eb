package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `jobs:
  - id: eu
    query: cannabis sales Europe
    start: 2023-01-01
    end: 2023-12-31
    quota: 2
  - query: hemp exports
    quota: 1
    progress: 1
`

func writeJobs(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFileSourceLoads(t *testing.T) {
	src := &FileSource{Path: writeJobs(t, sample)}
	js, err := src.Jobs(context.Background())
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(js) != 2 {
		t.Fatalf("want 2 jobs, got %d", len(js))
	}
	if !js[0].Start.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) || js[0].Remaining() != 2 || js[0].Done() {
		t.Fatalf("job 0: %+v", js[0])
	}
	if js[1].Key() != "hemp exports" || !js[1].Done() || js[1].Remaining() != 0 {
		t.Fatalf("job 1: %+v", js[1])
	}
}

func TestFileSourceUpdatePersists(t *testing.T) {
	p := writeJobs(t, sample)
	src := &FileSource{Path: p}
	js, _ := src.Jobs(context.Background())
	j := js[0]
	j.Progress = 2
	j.Satisfied = true
	if err := src.Update(context.Background(), j); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, err := (&FileSource{Path: p}).Jobs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if again[0].Progress != 2 || !again[0].Satisfied || again[0].End.IsZero() {
		t.Fatalf("not persisted: %+v", again[0])
	}
	if again[1].Query != "hemp exports" {
		t.Fatal("other jobs must be preserved")
	}
}

func TestFileSourceUpdateKeepsTimestamps(t *testing.T) {
	p := writeJobs(t, "jobs:\n  - id: a\n    query: q\n    start: 2024-03-01T12:30:00+02:00\n    end: 06/30/2024\n    quota: 2\n")
	src := &FileSource{Path: p}
	js, err := src.Jobs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	j := js[0]
	j.Progress = 1
	if err := src.Update(context.Background(), j); err != nil {
		t.Fatalf("Update: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "2024-03-01T12:30:00+02:00") || !strings.Contains(string(b), "06/30/2024") {
		t.Fatalf("dates rewritten:\n%s", b)
	}

	// changed dates are written in full precision
	j.Start = time.Date(2024, 4, 1, 8, 15, 0, 0, time.UTC)
	if err := src.Update(context.Background(), j); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ := src.Jobs(context.Background())
	if !again[0].Start.Equal(j.Start) {
		t.Fatalf("start lost precision: %v", again[0].Start)
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)); got != "2024-01-02" {
		t.Fatalf("midnight: %q", got)
	}
	if got := formatDate(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)); got != "2024-01-02T09:00:00Z" {
		t.Fatalf("timestamp: %q", got)
	}
	if formatDate(time.Time{}) != "" {
		t.Fatal("zero time must be empty")
	}
}

func TestFileSourceUpdateUnknownJob(t *testing.T) {
	src := &FileSource{Path: writeJobs(t, sample)}
	if err := src.Update(context.Background(), Job{ID: "nope", Query: "x"}); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestFileSourceErrors(t *testing.T) {
	cases := map[string]string{
		"missing":  "",
		"bad yaml": "jobs: [",
		"bad date": "jobs:\n  - query: q\n    start: yesterday\n    quota: 1\n",
		"no query": "jobs:\n  - quota: 1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "absent.yaml")
			if content != "" {
				p = writeJobs(t, content)
			}
			_, err := (&FileSource{Path: p}).Jobs(context.Background())
			if !errors.Is(err, ErrSource) {
				t.Fatalf("want ErrSource, got %v", err)
			}
		})
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	if r := (Job{Quota: 1, Progress: 3}).Remaining(); r != 0 {
		t.Fatalf("Remaining = %d", r)
	}
}
