package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nBAR=\"beta\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta" {
		t.Fatalf("BAR=%q, want beta", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvOverrides_FromEnv(t *testing.T) {
	t.Setenv("SEARX_URL", "")
	t.Setenv("SEARXNG_URL", "http://searxng.example")
	t.Setenv("CACHE_DIR", "/tmp/goexcerpt-cache")
	t.Setenv("SEARCH_PROVIDERS", "searxng, file")
	t.Setenv("SEARCH_INTERVAL", "3s")
	t.Setenv("LLM_MIN_GROUNDING", "0.8")
	t.Setenv("RETRY_FETCH_FAILURES", "yes")
	t.Setenv("DRY_RUN", "false")

	cfg := Defaults()
	cfg.DryRun = true
	ApplyEnvOverrides(&cfg)
	if cfg.SearxURL != "http://searxng.example" {
		t.Fatalf("SearxURL=%q, want fallback from SEARXNG_URL", cfg.SearxURL)
	}
	if cfg.CacheDir != "/tmp/goexcerpt-cache" {
		t.Fatalf("CacheDir=%q", cfg.CacheDir)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0] != "searxng" || cfg.Providers[1] != "file" {
		t.Fatalf("Providers=%v", cfg.Providers)
	}
	if cfg.SearchInterval != 3*time.Second || cfg.MinGrounding != 0.8 {
		t.Fatalf("interval=%v grounding=%v", cfg.SearchInterval, cfg.MinGrounding)
	}
	if !cfg.RetryFetchFailures || cfg.DryRun {
		t.Fatalf("booleans not applied: %+v", cfg)
	}
	if cfg.JobsPath != "jobs.yaml" {
		t.Fatalf("unset env must keep defaults, JobsPath=%q", cfg.JobsPath)
	}
}
