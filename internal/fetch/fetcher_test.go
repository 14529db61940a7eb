package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestFetch_HTMLVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><script>x()</script></head><body><p>Germany imported 31,398 kilograms</p></body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(&Client{MaxAttempts: 1}, nil)
	text, err := f.Fetch(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if text != "Germany imported 31,398 kilograms" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestFetch_LogsDocumentTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>Market report 2024</title></head><body><p>Sales rose 5%</p></body></html>`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&logs)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	f := NewFetcher(&Client{MaxAttempts: 1}, nil)
	if _, err := f.Fetch(context.Background(), srv.URL+"/report"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(logs.String(), `"title":"Market report 2024"`) {
		t.Fatalf("title not logged: %s", logs.String())
	}
}

func TestFetch_PDFSuffixRoutesToPDFEvenForHTMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(&Client{MaxAttempts: 1}, nil)
	text, err := f.Fetch(context.Background(), srv.URL+"/report.PDF?download=1")
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected pdf parse error, got text=%q err=%v", text, err)
	}
	if strings.Contains(text, "Access denied") {
		t.Fatal("html error page must not be parsed as markup")
	}
}

func TestFetch_EmptyTextIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><script>only()</script></body></html>`))
	}))
	defer srv.Close()

	f := NewFetcher(&Client{MaxAttempts: 1}, nil)
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestFetch_FallsBackToProxy(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()

	var gotURL, gotUser string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotURL, _ = req["url"].(string)
		gotUser, _, _ = r.BasicAuth()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"url":              gotURL,
			"statusCode":       200,
			"httpResponseBody": base64.StdEncoding.EncodeToString([]byte("<p>Proxy body 4.7 billion</p>")),
			"httpResponseHeaders": []map[string]string{
				{"name": "content-type", "value": "text/html; charset=utf-8"},
			},
		})
	}))
	defer proxy.Close()

	f := NewFetcher(&Client{MaxAttempts: 1}, &Proxy{Endpoint: proxy.URL, APIKey: "secret", Timeout: 2 * time.Second})
	text, err := f.Fetch(context.Background(), origin.URL+"/blocked")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if text != "Proxy body 4.7 billion" {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotURL != origin.URL+"/blocked" || gotUser != "secret" {
		t.Fatalf("proxy got url=%q user=%q", gotURL, gotUser)
	}
}

func TestFetch_BothPathsFail(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer origin.Close()
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"statusCode": 404, "httpResponseBody": ""})
	}))
	defer proxy.Close()

	f := NewFetcher(&Client{MaxAttempts: 1}, &Proxy{Endpoint: proxy.URL})
	_, err := f.Fetch(context.Background(), origin.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 404 {
		t.Fatalf("expected 404 from both paths, got %v", err)
	}
	if IsTransient(err) {
		t.Fatal("404 on both paths is permanent")
	}
}

func TestProxy_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"statusCode":       200,
			"httpResponseBody": base64.StdEncoding.EncodeToString([]byte("ok")),
		})
	}))
	defer proxy.Close()

	p := &Proxy{Endpoint: proxy.URL, MaxAttempts: 2, Backoff: time.Millisecond}
	res, err := p.Get(context.Background(), "https://example.com/a")
	if err != nil || string(res.Body) != "ok" {
		t.Fatalf("expected body after retry, got %q %v", res.Body, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 proxy calls, got %d", calls.Load())
	}
}

func TestProxy_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer proxy.Close()

	p := &Proxy{Endpoint: proxy.URL, MaxAttempts: 3, Backoff: time.Millisecond}
	if _, err := p.Get(context.Background(), "https://example.com/a"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("403 must not be retried, got %d calls", calls.Load())
	}
}

func TestIsPDF(t *testing.T) {
	cases := map[string]bool{
		"https://x.example.com/a.pdf":          true,
		"https://x.example.com/a.PDF?x=1#frag": true,
		"https://x.example.com/pdf/page":       false,
		"https://x.example.com/a.html?f=b.pdf": false,
	}
	for in, want := range cases {
		if got := IsPDF(in); got != want {
			t.Errorf("IsPDF(%q) = %v, want %v", in, got, want)
		}
	}
}
