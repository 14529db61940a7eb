package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags and env.
type FileConfig struct {
	Jobs string `yaml:"jobs" json:"jobs"`

	Dedup struct {
		File     string `yaml:"file" json:"file"`
		Redis    string `yaml:"redis" json:"redis"`
		RedisKey string `yaml:"redisKey" json:"redisKey"`
	} `yaml:"dedup" json:"dedup"`

	Sink struct {
		SQLite     string `yaml:"sqlite" json:"sqlite"`
		Kafka      string `yaml:"kafka" json:"kafka"`
		KafkaTopic string `yaml:"kafkaTopic" json:"kafkaTopic"`
	} `yaml:"sink" json:"sink"`

	Search struct {
		Providers []string `yaml:"providers" json:"providers"`
		GoogleURL string   `yaml:"googleURL" json:"googleURL"`
		BingURL   string   `yaml:"bingURL" json:"bingURL"`
		File      string   `yaml:"file" json:"file"`
		PageSize  int      `yaml:"pageSize" json:"pageSize"`
		MaxPages  int      `yaml:"maxPages" json:"maxPages"`
		Interval  duration `yaml:"interval" json:"interval"`
		Timeout   duration `yaml:"timeout" json:"timeout"`
		Attempts  int      `yaml:"attempts" json:"attempts"`
	} `yaml:"search" json:"search"`

	Searx struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"searx" json:"searx"`

	UserAgent string `yaml:"ua" json:"ua"`

	Domains struct {
		Allow []string `yaml:"allow" json:"allow"`
		Deny  []string `yaml:"deny" json:"deny"`
	} `yaml:"domains" json:"domains"`

	Fetch struct {
		Timeout      duration `yaml:"timeout" json:"timeout"`
		Attempts     int      `yaml:"attempts" json:"attempts"`
		Concurrency  int      `yaml:"concurrency" json:"concurrency"`
		MaxRedirects int      `yaml:"maxRedirects" json:"maxRedirects"`
	} `yaml:"fetch" json:"fetch"`

	Proxy struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"proxy" json:"proxy"`

	LLM struct {
		BaseURL          string   `yaml:"base" json:"base"`
		Model            string   `yaml:"model" json:"model"`
		APIKey           string   `yaml:"key" json:"key"`
		Timeout          duration `yaml:"timeout" json:"timeout"`
		Attempts         int      `yaml:"attempts" json:"attempts"`
		MaxChars         int      `yaml:"maxChars" json:"maxChars"`
		Corroborate      string   `yaml:"corroborate" json:"corroborate"`
		MinGrounding     *float64 `yaml:"minGrounding" json:"minGrounding"`
		SystemPrompt     string   `yaml:"systemPrompt" json:"systemPrompt"`
		SystemPromptFile string   `yaml:"systemPromptFile" json:"systemPromptFile"`
	} `yaml:"llm" json:"llm"`

	Run struct {
		MaxRounds          int   `yaml:"maxRounds" json:"maxRounds"`
		CandidateFactor    int   `yaml:"candidateFactor" json:"candidateFactor"`
		Concurrency        int   `yaml:"concurrency" json:"concurrency"`
		RetryFetchFailures *bool `yaml:"retryFetchFailures" json:"retryFetchFailures"`
		OutWidth           int   `yaml:"outWidth" json:"outWidth"`
	} `yaml:"run" json:"run"`

	Cache struct {
		Dir         string   `yaml:"dir" json:"dir"`
		MaxAge      duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool     `yaml:"clear" json:"clear"`
		StrictPerms bool     `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	DryRun  bool `yaml:"dryRun" json:"dryRun"`
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// duration accepts "90s" style strings in both YAML and JSON.
type duration time.Duration

func (d *duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(s)
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value the file sets onto cfg. It runs on
// top of Defaults and below env and flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v duration) {
		if v > 0 {
			*dst = time.Duration(v)
		}
	}
	list := func(dst *[]string, v []string) {
		if len(v) > 0 {
			*dst = append([]string{}, v...)
		}
	}

	str(&cfg.JobsPath, fc.Jobs)
	str(&cfg.DedupPath, fc.Dedup.File)
	str(&cfg.RedisAddr, fc.Dedup.Redis)
	str(&cfg.RedisKey, fc.Dedup.RedisKey)
	str(&cfg.SinkPath, fc.Sink.SQLite)
	str(&cfg.KafkaBroker, fc.Sink.Kafka)
	str(&cfg.KafkaTopic, fc.Sink.KafkaTopic)

	list(&cfg.Providers, fc.Search.Providers)
	str(&cfg.GoogleURL, fc.Search.GoogleURL)
	str(&cfg.BingURL, fc.Search.BingURL)
	str(&cfg.SearchFile, fc.Search.File)
	num(&cfg.PageSize, fc.Search.PageSize)
	num(&cfg.MaxPages, fc.Search.MaxPages)
	dur(&cfg.SearchInterval, fc.Search.Interval)
	dur(&cfg.SearchTimeout, fc.Search.Timeout)
	num(&cfg.SearchAttempts, fc.Search.Attempts)
	str(&cfg.SearxURL, fc.Searx.URL)
	str(&cfg.SearxKey, fc.Searx.Key)
	str(&cfg.UserAgent, fc.UserAgent)
	list(&cfg.DomainAllowlist, fc.Domains.Allow)
	list(&cfg.DomainDenylist, fc.Domains.Deny)

	dur(&cfg.FetchTimeout, fc.Fetch.Timeout)
	num(&cfg.FetchAttempts, fc.Fetch.Attempts)
	num(&cfg.FetchConcurrency, fc.Fetch.Concurrency)
	num(&cfg.MaxRedirects, fc.Fetch.MaxRedirects)
	str(&cfg.ProxyURL, fc.Proxy.URL)
	str(&cfg.ProxyKey, fc.Proxy.Key)

	str(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	str(&cfg.LLMModel, fc.LLM.Model)
	str(&cfg.LLMAPIKey, fc.LLM.APIKey)
	dur(&cfg.LLMTimeout, fc.LLM.Timeout)
	num(&cfg.LLMAttempts, fc.LLM.Attempts)
	num(&cfg.MaxChars, fc.LLM.MaxChars)
	str(&cfg.Corroborator, fc.LLM.Corroborate)
	if fc.LLM.MinGrounding != nil {
		cfg.MinGrounding = *fc.LLM.MinGrounding
	}
	str(&cfg.SystemPrompt, fc.LLM.SystemPrompt)
	str(&cfg.SystemPromptFile, fc.LLM.SystemPromptFile)

	num(&cfg.MaxRounds, fc.Run.MaxRounds)
	num(&cfg.CandidateFactor, fc.Run.CandidateFactor)
	num(&cfg.Concurrency, fc.Run.Concurrency)
	num(&cfg.OutWidth, fc.Run.OutWidth)
	if fc.Run.RetryFetchFailures != nil {
		cfg.RetryFetchFailures = *fc.Run.RetryFetchFailures
	}

	str(&cfg.CacheDir, fc.Cache.Dir)
	dur(&cfg.CacheMaxAge, fc.Cache.MaxAge)
	cfg.CacheClear = cfg.CacheClear || fc.Cache.Clear
	cfg.CacheStrictPerms = cfg.CacheStrictPerms || fc.Cache.StrictPerms
	cfg.DryRun = cfg.DryRun || fc.DryRun
	cfg.Verbose = cfg.Verbose || fc.Verbose
}

var knownProviders = map[string]bool{"google": true, "bing": true, "searxng": true, "file": true}

// ValidateConfig performs minimal schema validation for required settings.
// For dry-run, LLM settings may be omitted.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.JobsPath) == "" {
		return errors.New("config: jobs file is required")
	}
	if _, err := os.Stat(cfg.JobsPath); err != nil {
		return fmt.Errorf("config: jobs file: %w", err)
	}
	if !cfg.DryRun && strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: llm.model is required (or set LLM_MODEL)")
	}
	if err := validateLimits(cfg); err != nil {
		return err
	}
	return validateSearch(cfg)
}

func validateLimits(cfg Config) error {
	for _, n := range []int{cfg.PageSize, cfg.MaxPages, cfg.SearchAttempts, cfg.FetchAttempts,
		cfg.FetchConcurrency, cfg.MaxRedirects, cfg.LLMAttempts, cfg.MaxChars, cfg.MaxRounds,
		cfg.CandidateFactor, cfg.Concurrency, cfg.OutWidth} {
		if n < 0 {
			return errors.New("config: negative limits are not allowed")
		}
	}
	for _, d := range []time.Duration{cfg.SearchInterval, cfg.SearchTimeout, cfg.FetchTimeout, cfg.LLMTimeout, cfg.CacheMaxAge} {
		if d < 0 {
			return errors.New("config: negative durations are not allowed")
		}
	}
	if cfg.MinGrounding < 0 || cfg.MinGrounding > 1 {
		return errors.New("config: llm.minGrounding must be between 0 and 1")
	}
	switch cfg.Corroborator {
	case "", CorroborateHeuristic, CorroborateModel, CorroborateOff:
	default:
		return fmt.Errorf("config: unknown corroborator %q", cfg.Corroborator)
	}
	return nil
}

// validateSearch checks the provider list without touching the network.
func validateSearch(cfg Config) error {
	if len(cfg.Providers) == 0 {
		return errors.New("config: at least one search provider is required")
	}
	for _, p := range cfg.Providers {
		if !knownProviders[p] {
			return fmt.Errorf("config: unknown search provider %q", p)
		}
		if p == "searxng" && strings.TrimSpace(cfg.SearxURL) == "" {
			return errors.New("config: searxng provider needs searx.url")
		}
		if p == "file" && strings.TrimSpace(cfg.SearchFile) == "" {
			return errors.New("config: file provider needs search.file")
		}
	}
	return nil
}
