package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperifyio/goexcerpt/internal/jobs"
	"github.com/hyperifyio/goexcerpt/internal/pipeline"
	"github.com/hyperifyio/goexcerpt/internal/search"
)

const excerpt = "Cannabis sales in Europe reached 2.5 billion euros in 2023."

// newContentServer serves one page with a quantitative paragraph and one
// without anything relevant.
func newContentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><p>Weather is nice today.</p></body></html>")
	})
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><head><title>Report</title><script>var x=1;</script></head><body><p>Intro.</p><p>%s</p></body></html>", excerpt)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newModelServer answers chat completions with a record when the page
// mentions billions and with the sentinel otherwise.
func newModelServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []map[string]any{{"id": "stub", "object": "model"}}})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		user := req.Messages[len(req.Messages)-1].Content
		ex := "NO_RELEVANT_CONTENT"
		if strings.Contains(user, "billion") {
			ex = excerpt
		}
		content, _ := json.Marshal(map[string]any{
			"excerpt": ex, "title": "Report", "category": "market", "date": "2023-06-01",
			"source_authority": nil, "numeric_value": 2.5, "unit": "billion", "value_type": "sales",
			"country": "--", "location": nil, "author": nil, "keywords": []string{"cannabis", "sales"},
			"relevancy_score": 90, "references": nil,
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "x", "object": "chat.completion", "model": "stub",
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": string(content)}}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, content, model *httptest.Server) Config {
	t.Helper()
	dir := t.TempDir()
	results := []map[string]string{
		{"title": "Cannabis weather", "url": content.URL + "/empty"},
		{"title": "Cannabis sales report", "url": content.URL + "/report#top"},
		{"title": "Unrelated", "url": content.URL + "/other"},
	}
	b, _ := json.Marshal(results)
	searchFile := filepath.Join(dir, "results.json")
	if err := os.WriteFile(searchFile, b, 0o644); err != nil {
		t.Fatal(err)
	}
	jobsFile := filepath.Join(dir, "jobs.yaml")
	if err := os.WriteFile(jobsFile, []byte("jobs:\n  - id: eu\n    query: cannabis sales\n    quota: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	cfg.JobsPath = jobsFile
	cfg.DedupPath = filepath.Join(dir, "dedup.json")
	cfg.SinkPath = filepath.Join(dir, "results.db")
	cfg.Providers = []string{"file"}
	cfg.SearchFile = searchFile
	cfg.SearchInterval = 0
	cfg.CacheDir = ""
	cfg.LLMBaseURL = model.URL + "/v1"
	cfg.LLMModel = "stub"
	cfg.Corroborator = CorroborateOff
	cfg.CandidateFactor = 3
	return cfg
}

func TestAppRunEndToEnd(t *testing.T) {
	var calls int32
	content := newContentServer(t)
	model := newModelServer(t, &calls)
	cfg := testConfig(t, content, model)
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("config: %v", err)
	}

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var out bytes.Buffer
	a.SetOutput(&out)
	sums, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sums) != 1 || sums[0].State != pipeline.StateSatisfied || sums[0].Job.Progress != 1 {
		t.Fatalf("summaries %+v", sums)
	}
	if sums[0].Stored != 1 || !strings.HasSuffix(sums[0].String(), ", 1 stored") {
		t.Fatalf("stored count %d in %q", sums[0].Stored, sums[0].String())
	}
	if !strings.Contains(out.String(), excerpt) {
		t.Fatalf("excerpt not printed: %q", out.String())
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("want 2 model calls (empty page, report page), got %d", calls)
	}

	seen := a.Dedup(context.Background())
	if !seen.Contains(content.URL+"/empty") || !seen.Contains(content.URL+"/report") {
		t.Fatalf("dedup missing entries: %v", seen.Snapshot())
	}

	var csvOut bytes.Buffer
	if err := a.Export(context.Background(), &csvOut, "cannabis sales"); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(csvOut.String(), excerpt) || strings.Count(csvOut.String(), "\n") != 2 {
		t.Fatalf("csv %q", csvOut.String())
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	js, err := (&jobs.FileSource{Path: cfg.JobsPath}).Jobs(context.Background())
	if err != nil || !js[0].Satisfied || js[0].Progress != 1 {
		t.Fatalf("job file not updated: %+v %v", js, err)
	}

	// a second run finds the job satisfied and calls nothing
	a2, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a2.Close()
	a2.SetOutput(nil)
	if _, err := a2.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("second run called the model, calls=%d", calls)
	}
}

func TestAppRunMissingJobsIsFatal(t *testing.T) {
	var calls int32
	cfg := testConfig(t, newContentServer(t), newModelServer(t, &calls))
	cfg.JobsPath = filepath.Join(t.TempDir(), "missing.yaml")
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if _, err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error for unreadable job list")
	}
}

func TestAppDryRunListsCandidates(t *testing.T) {
	var calls int32
	content := newContentServer(t)
	cfg := testConfig(t, content, newModelServer(t, &calls))
	cfg.DryRun = true
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	var out bytes.Buffer
	a.SetOutput(&out)
	if _, err := a.Run(context.Background()); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("dry run must not call the model")
	}
	if !strings.Contains(out.String(), content.URL+"/report") {
		t.Fatalf("candidates not listed: %q", out.String())
	}
	if _, err := os.Stat(cfg.SinkPath); !os.IsNotExist(err) {
		t.Fatal("dry run must not create the results database")
	}
}

func TestAppSearchAndFetchOnce(t *testing.T) {
	var calls int32
	content := newContentServer(t)
	a, err := New(context.Background(), testConfig(t, content, newModelServer(t, &calls)))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	ids := a.SearchOnce(context.Background(), search.Query{Text: "sales"}, 5)
	if len(ids) != 1 || ids[0] != content.URL+"/report" {
		t.Fatalf("search ids %v", ids)
	}
	text, err := a.FetchOnce(context.Background(), content.URL+"/report")
	if err != nil {
		t.Fatalf("FetchOnce: %v", err)
	}
	if !strings.Contains(text, excerpt) || strings.Contains(text, "var x") {
		t.Fatalf("text %q", text)
	}
	if _, err := a.FetchOnce(context.Background(), "ftp://example.com/x"); err == nil {
		t.Fatal("expected error for non-http identifier")
	}
}

func TestBuildChainUnknownProvider(t *testing.T) {
	cfg := Defaults()
	cfg.Providers = []string{"nope"}
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error")
	}
}
