package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides overrides cfg fields with environment variables that are
// set. Env sits above the config file and below explicit flags.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
			}
		}
	}
	setString(&cfg.JobsPath, "JOBS_FILE")
	setString(&cfg.DedupPath, "DEDUP_FILE")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisKey, "REDIS_DEDUP_KEY")
	setString(&cfg.SinkPath, "SINK_SQLITE")
	setString(&cfg.KafkaBroker, "KAFKA_BROKER")
	setString(&cfg.KafkaTopic, "KAFKA_TOPIC")

	setString(&cfg.SearxURL, "SEARX_URL", "SEARXNG_URL")
	setString(&cfg.SearxKey, "SEARX_KEY", "SEARXNG_KEY")
	setString(&cfg.SearchFile, "SEARCH_FILE")
	setString(&cfg.UserAgent, "USER_AGENT")
	setString(&cfg.ProxyURL, "PROXY_URL")
	setString(&cfg.ProxyKey, "PROXY_API_KEY")

	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY", "OPENAI_API_KEY")
	setString(&cfg.Corroborator, "LLM_CORROBORATE")
	setString(&cfg.SystemPrompt, "LLM_SYSTEM_PROMPT")
	setString(&cfg.SystemPromptFile, "LLM_SYSTEM_PROMPT_FILE")

	setString(&cfg.CacheDir, "CACHE_DIR")

	if v := strings.TrimSpace(os.Getenv("SEARCH_PROVIDERS")); v != "" {
		cfg.Providers = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("DOMAINS_ALLOW")); v != "" {
		cfg.DomainAllowlist = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("DOMAINS_DENY")); v != "" {
		cfg.DomainDenylist = splitList(v)
	}

	setInt := func(dst *int, key string) {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
			*dst = n
		}
	}
	setInt(&cfg.MaxPages, "SEARCH_MAX_PAGES")
	setInt(&cfg.PageSize, "SEARCH_PAGE_SIZE")
	setInt(&cfg.MaxChars, "LLM_MAX_CHARS")
	setInt(&cfg.Concurrency, "RUN_CONCURRENCY")
	setInt(&cfg.MaxRounds, "RUN_MAX_ROUNDS")
	setInt(&cfg.OutWidth, "RUN_OUT_WIDTH")

	setDuration := func(dst *time.Duration, key string) {
		if s := os.Getenv(key); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				*dst = d
			}
		}
	}
	setDuration(&cfg.SearchInterval, "SEARCH_INTERVAL")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setDuration(&cfg.LLMTimeout, "LLM_TIMEOUT")

	if s := strings.TrimSpace(os.Getenv("LLM_MIN_GROUNDING")); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			cfg.MinGrounding = f
		}
	}

	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, envKey string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(envKey))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
	setBool(&cfg.DryRun, "DRY_RUN")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
	setBool(&cfg.RetryFetchFailures, "RETRY_FETCH_FAILURES")
}
