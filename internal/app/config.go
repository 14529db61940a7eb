package app

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config holds runtime configuration for the application.
type Config struct {
	// State
	JobsPath    string
	DedupPath   string
	RedisAddr   string
	RedisKey    string
	SinkPath    string
	KafkaBroker string
	KafkaTopic  string

	// Search
	Providers       []string
	GoogleURL       string
	BingURL         string
	SearxURL        string
	SearxKey        string
	SearchFile      string
	UserAgent       string
	PageSize        int
	MaxPages        int
	SearchInterval  time.Duration
	SearchTimeout   time.Duration
	SearchAttempts  int
	DomainAllowlist []string
	DomainDenylist  []string

	// Fetch
	FetchTimeout     time.Duration
	FetchAttempts    int
	FetchConcurrency int
	MaxRedirects     int
	ProxyURL         string
	ProxyKey         string

	// LLM
	LLMBaseURL       string
	LLMModel         string
	LLMAPIKey        string
	LLMTimeout       time.Duration
	LLMAttempts      int
	MaxChars         int
	Corroborator     string
	MinGrounding     float64
	SystemPrompt     string
	SystemPromptFile string

	// Orchestration
	MaxRounds          int
	CandidateFactor    int
	Concurrency        int
	RetryFetchFailures bool
	// OutWidth bounds the excerpt column of console lines; 0 prints it whole.
	OutWidth int

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	DryRun  bool
	Verbose bool
}

// Corroborator modes.
const (
	CorroborateHeuristic = "heuristic"
	CorroborateModel     = "model"
	CorroborateOff       = "off"
)

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		JobsPath:         "jobs.yaml",
		DedupPath:        "dedup.json",
		SinkPath:         "results.db",
		KafkaTopic:       "goexcerpt.results",
		Providers:        []string{"google", "bing"},
		UserAgent:        "Mozilla/5.0",
		PageSize:         10,
		MaxPages:         5,
		SearchInterval:   2 * time.Second,
		SearchTimeout:    15 * time.Second,
		SearchAttempts:   2,
		FetchTimeout:     20 * time.Second,
		FetchAttempts:    2,
		FetchConcurrency: 8,
		MaxRedirects:     5,
		LLMTimeout:       120 * time.Second,
		LLMAttempts:      2,
		MaxChars:         25000,
		Corroborator:     CorroborateHeuristic,
		MinGrounding:     0.6,
		MaxRounds:        3,
		CandidateFactor:  2,
		Concurrency:      1,
		OutWidth:         160,
		CacheDir:         ".goexcerpt-cache",
	}
}

// BindFlags registers one flag per setting on fs, using the current values
// in cfg as defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.JobsPath, "jobs", cfg.JobsPath, "Path to the YAML job list")
	fs.StringVar(&cfg.DedupPath, "dedup.file", cfg.DedupPath, "Path to the dedup JSON file")
	fs.StringVar(&cfg.RedisAddr, "dedup.redis", cfg.RedisAddr, "Redis address; when set the dedup set lives in Redis")
	fs.StringVar(&cfg.RedisKey, "dedup.redisKey", cfg.RedisKey, "Redis key of the dedup set")
	fs.StringVar(&cfg.SinkPath, "sink.sqlite", cfg.SinkPath, "Path to the SQLite results database")
	fs.StringVar(&cfg.KafkaBroker, "sink.kafka", cfg.KafkaBroker, "Kafka broker address for live result publishing (optional)")
	fs.StringVar(&cfg.KafkaTopic, "sink.kafkaTopic", cfg.KafkaTopic, "Kafka topic for live results")

	fs.Var(newListValue(&cfg.Providers), "search.providers", "Comma-separated provider order: google, bing, searxng, file")
	fs.StringVar(&cfg.GoogleURL, "search.googleURL", cfg.GoogleURL, "Override Google search endpoint")
	fs.StringVar(&cfg.BingURL, "search.bingURL", cfg.BingURL, "Override Bing search endpoint")
	fs.StringVar(&cfg.SearxURL, "searx.url", cfg.SearxURL, "SearxNG base URL")
	fs.StringVar(&cfg.SearxKey, "searx.key", cfg.SearxKey, "SearxNG API key (optional)")
	fs.StringVar(&cfg.SearchFile, "search.file", cfg.SearchFile, "Path to JSON file for the offline file-based provider")
	fs.StringVar(&cfg.UserAgent, "ua", cfg.UserAgent, "User-Agent for search and fetch requests")
	fs.IntVar(&cfg.PageSize, "search.pageSize", cfg.PageSize, "Results requested per search page")
	fs.IntVar(&cfg.MaxPages, "search.maxPages", cfg.MaxPages, "Maximum result pages per search round")
	fs.DurationVar(&cfg.SearchInterval, "search.interval", cfg.SearchInterval, "Minimum spacing between requests to one provider")
	fs.DurationVar(&cfg.SearchTimeout, "search.timeout", cfg.SearchTimeout, "Timeout per search page request")
	fs.IntVar(&cfg.SearchAttempts, "search.attempts", cfg.SearchAttempts, "Attempts per search page on transient errors")
	fs.Var(newListValue(&cfg.DomainAllowlist), "domains.allow", "Comma-separated allowlist of hosts/domains (subdomains included)")
	fs.Var(newListValue(&cfg.DomainDenylist), "domains.deny", "Comma-separated denylist of hosts/domains; takes precedence over allow")

	fs.DurationVar(&cfg.FetchTimeout, "fetch.timeout", cfg.FetchTimeout, "Timeout per fetch request")
	fs.IntVar(&cfg.FetchAttempts, "fetch.attempts", cfg.FetchAttempts, "Attempts per fetch on transient errors")
	fs.IntVar(&cfg.FetchConcurrency, "fetch.concurrency", cfg.FetchConcurrency, "Maximum concurrent fetches")
	fs.IntVar(&cfg.MaxRedirects, "fetch.maxRedirects", cfg.MaxRedirects, "Maximum redirects followed per fetch")
	fs.StringVar(&cfg.ProxyURL, "proxy.url", cfg.ProxyURL, "Extraction proxy endpoint used when a direct fetch fails")
	fs.StringVar(&cfg.ProxyKey, "proxy.key", cfg.ProxyKey, "Extraction proxy API key")

	fs.StringVar(&cfg.LLMBaseURL, "llm.base", cfg.LLMBaseURL, "OpenAI-compatible base URL")
	fs.StringVar(&cfg.LLMModel, "llm.model", cfg.LLMModel, "Model name")
	fs.StringVar(&cfg.LLMAPIKey, "llm.key", cfg.LLMAPIKey, "API key for the OpenAI-compatible server")
	fs.DurationVar(&cfg.LLMTimeout, "llm.timeout", cfg.LLMTimeout, "Timeout per model call")
	fs.IntVar(&cfg.LLMAttempts, "llm.attempts", cfg.LLMAttempts, "Attempts per model call on transient errors")
	fs.IntVar(&cfg.MaxChars, "llm.maxChars", cfg.MaxChars, "Characters of page text submitted per call")
	fs.StringVar(&cfg.Corroborator, "llm.corroborate", cfg.Corroborator, "Second opinion before re-asking after an empty answer: heuristic, model or off")
	fs.Float64Var(&cfg.MinGrounding, "llm.minGrounding", cfg.MinGrounding, "Share of excerpt words that must occur in the page (0 disables)")
	fs.StringVar(&cfg.SystemPrompt, "llm.systemPrompt", cfg.SystemPrompt, "Override the extraction system prompt (inline string)")
	fs.StringVar(&cfg.SystemPromptFile, "llm.systemPromptFile", cfg.SystemPromptFile, "Path to a file containing the extraction system prompt")

	fs.IntVar(&cfg.MaxRounds, "run.maxRounds", cfg.MaxRounds, "Search rounds per job before giving up for this run")
	fs.IntVar(&cfg.CandidateFactor, "run.candidateFactor", cfg.CandidateFactor, "Candidates requested per missing result")
	fs.IntVar(&cfg.Concurrency, "run.concurrency", cfg.Concurrency, "Jobs processed concurrently")
	fs.IntVar(&cfg.OutWidth, "run.outWidth", cfg.OutWidth, "Display width of printed excerpts (0 = unbounded)")
	fs.BoolVar(&cfg.RetryFetchFailures, "run.retryFetchFailures", cfg.RetryFetchFailures, "Leave transient fetch failures eligible for the next run")

	fs.StringVar(&cfg.CacheDir, "cache.dir", cfg.CacheDir, "Cache directory path")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", cfg.CacheMaxAge, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", cfg.CacheClear, "Clear cache directory before run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", cfg.CacheStrictPerms, "Restrict cache permissions (0700 dirs, 0600 files)")

	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "List candidates without fetching or calling the model")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose logging")
}

// Layer returns base with every flag the user set on fs applied on top.
// base should already carry defaults, file and environment values.
func Layer(base Config, fs *pflag.FlagSet) (Config, error) {
	cfg := base
	shadow := pflag.NewFlagSet("layer", pflag.ContinueOnError)
	BindFlags(shadow, &cfg)
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || shadow.Lookup(f.Name) == nil {
			return
		}
		err = shadow.Set(f.Name, f.Value.String())
	})
	return cfg, err
}

// listValue is a comma-separated list flag whose String form round-trips
// through Set.
type listValue struct{ p *[]string }

func newListValue(p *[]string) *listValue { return &listValue{p: p} }

func (l *listValue) String() string {
	if l.p == nil {
		return ""
	}
	return strings.Join(*l.p, ",")
}

func (l *listValue) Set(s string) error {
	*l.p = splitList(s)
	return nil
}

func (l *listValue) Type() string { return "list" }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
