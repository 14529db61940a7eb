package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"
)

// FileProvider loads search results from a local JSON file for offline/testing use.
// The JSON file format is an array of objects:
// {"title": "...", "url": "...", "snippet": "...", "date": "2024-03-15"}.
// Entries with a date outside the query window are skipped; undated entries
// always match.
type FileProvider struct {
	Path     string
	PageSize int
}

type fileResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Page(_ context.Context, q Query, page int) ([]string, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file provider path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []fileResult
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Join(ErrParse, err)
	}
	terms := strings.Fields(strings.ToLower(strings.Trim(q.Text, `" `)))
	matched := make([]string, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" {
			continue
		}
		if !inWindow(r.Date, q) {
			continue
		}
		if matchesAny(strings.ToLower(r.Title+" "+r.Snippet), terms) {
			matched = append(matched, r.URL)
		}
	}
	size := pageSize(f.PageSize)
	from := page * size
	if from >= len(matched) {
		return nil, nil
	}
	to := from + size
	if to > len(matched) {
		to = len(matched)
	}
	return matched[from:to], nil
}

func matchesAny(text string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, t := range terms {
		if strings.Contains(text, strings.Trim(t, `"`)) {
			return true
		}
	}
	return false
}

func inWindow(date string, q Query) bool {
	if date == "" || !q.HasWindow() {
		return true
	}
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return true
	}
	if !q.Start.IsZero() && d.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && d.After(q.End) {
		return false
	}
	return true
}
