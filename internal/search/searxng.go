package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SearxNG implements Provider against a SearxNG instance's /search endpoint.
type SearxNG struct {
	BaseURL    string
	APIKey     string // optional
	HTTPClient *http.Client
	UserAgent  string // optional custom UA
}

func (s *SearxNG) Name() string { return "searxng" }

// Page requests pageno=page+1. The date window is expressed with after:/before:
// operators, which SearxNG passes through to engines that understand them.
func (s *SearxNG) Page(ctx context.Context, q Query, page int) ([]string, error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("missing searxng base url")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, err
	}
	// Ensure path
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	text := q.Text
	if !q.Start.IsZero() {
		text += " after:" + q.Start.Format("2006-01-02")
	}
	if !q.End.IsZero() {
		text += " before:" + q.End.Format("2006-01-02")
	}
	v := u.Query()
	v.Set("q", text)
	v.Set("format", "json")
	v.Set("language", "auto")
	v.Set("safesearch", "1")
	v.Set("categories", "general")
	v.Set("pageno", strconv.Itoa(page+1))
	if s.APIKey != "" {
		v.Set("apikey", s.APIKey)
	}
	u.RawQuery = v.Encode()

	body, err := getPage(ctx, s.HTTPClient, s.Name(), u.String(), s.UserAgent)
	if err != nil {
		return nil, err
	}
	var sr searxResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	out := make([]string, 0, len(sr.Results))
	for _, r := range sr.Results {
		if u := strings.TrimSpace(r.URL); u != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}
