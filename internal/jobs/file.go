package jobs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/goexcerpt/internal/cache"
)

// FileSource reads a YAML document of the form:
//
//	jobs:
//	  - id: eu-sales
//	    query: cannabis sales Europe
//	    start: 2023-01-01
//	    end: 2023-12-31
//	    quota: 5
//
// Update rewrites the file in place, so the next run resumes from the
// recorded progress.
type FileSource struct {
	Path string

	mu sync.Mutex
}

type fileDoc struct {
	Jobs []fileJob `yaml:"jobs"`
}

// fileJob accepts plain dates as well as RFC3339 timestamps.
type fileJob struct {
	ID           string `yaml:"id,omitempty"`
	Query        string `yaml:"query"`
	Instructions string `yaml:"instructions,omitempty"`
	Start        string `yaml:"start,omitempty"`
	End          string `yaml:"end,omitempty"`
	Quota        int    `yaml:"quota"`
	Progress     int    `yaml:"progress"`
	Satisfied    bool   `yaml:"satisfied,omitempty"`
}

func (s *FileSource) Jobs(_ context.Context) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(doc.Jobs))
	for i, fj := range doc.Jobs {
		j, err := fj.job()
		if err != nil {
			return nil, fmt.Errorf("%w: job %d: %v", ErrSource, i+1, err)
		}
		out = append(out, j)
	}
	return out, nil
}

// Update replaces the stored job with the same Key.
func (s *FileSource) Update(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	found := false
	for i := range doc.Jobs {
		j, err := doc.Jobs[i].job()
		if err != nil || j.Key() != job.Key() {
			continue
		}
		nf := toFile(job)
		// keep the author's spelling of unchanged dates
		if j.Start.Equal(job.Start) {
			nf.Start = doc.Jobs[i].Start
		}
		if j.End.Equal(job.End) {
			nf.End = doc.Jobs[i].End
		}
		doc.Jobs[i] = nf
		found = true
		break
	}
	if !found {
		return fmt.Errorf("job %q not found in %s", job.Key(), s.Path)
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return cache.WriteFileAtomic(s.Path, b, false)
}

func (s *FileSource) read() (fileDoc, error) {
	var doc fileDoc
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return doc, fmt.Errorf("%w: %v", ErrSource, err)
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("%w: parse %s: %v", ErrSource, s.Path, err)
	}
	return doc, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "01/02/2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func (f fileJob) job() (Job, error) {
	if strings.TrimSpace(f.Query) == "" {
		return Job{}, fmt.Errorf("empty query")
	}
	if f.Quota < 0 || f.Progress < 0 {
		return Job{}, fmt.Errorf("negative quota or progress")
	}
	start, err := parseDate(f.Start)
	if err != nil {
		return Job{}, err
	}
	end, err := parseDate(f.End)
	if err != nil {
		return Job{}, err
	}
	return Job{
		ID: f.ID, Query: strings.TrimSpace(f.Query), Instructions: f.Instructions,
		Start: start, End: end, Quota: f.Quota, Progress: f.Progress, Satisfied: f.Satisfied,
	}, nil
}

func toFile(j Job) fileJob {
	f := fileJob{
		ID: j.ID, Query: j.Query, Instructions: j.Instructions,
		Quota: j.Quota, Progress: j.Progress, Satisfied: j.Satisfied,
	}
	f.Start = formatDate(j.Start)
	f.End = formatDate(j.End)
	return f
}

// formatDate writes midnight UTC as a plain date and anything else as RFC3339.
func formatDate(t time.Time) string {
	switch {
	case t.IsZero():
		return ""
	case t.Location() == time.UTC && t.Equal(t.Truncate(24*time.Hour)):
		return t.Format("2006-01-02")
	default:
		return t.Format(time.RFC3339)
	}
}
