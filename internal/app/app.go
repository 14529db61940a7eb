package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goexcerpt/internal/cache"
	"github.com/hyperifyio/goexcerpt/internal/dedup"
	"github.com/hyperifyio/goexcerpt/internal/fetch"
	"github.com/hyperifyio/goexcerpt/internal/jobs"
	"github.com/hyperifyio/goexcerpt/internal/llm"
	"github.com/hyperifyio/goexcerpt/internal/oracle"
	"github.com/hyperifyio/goexcerpt/internal/pipeline"
	"github.com/hyperifyio/goexcerpt/internal/search"
	"github.com/hyperifyio/goexcerpt/internal/sink"
)

// App wires configuration into the pipeline. Stores and the model client
// are opened on first use so that the debug commands stay side-effect free.
type App struct {
	cfg   Config
	hc    *http.Client
	chain search.Chain
	fetch *fetch.Fetcher
	out   io.Writer

	chat    llm.Client
	store   dedup.Store
	results *sink.SQLiteSink
	sink    sink.Sink
}

// New builds the search chain and fetcher and applies cache maintenance.
func New(ctx context.Context, cfg Config) (*App, error) {
	a := &App{cfg: cfg, hc: newHTTPClient(), out: os.Stdout}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		if cfg.CacheMaxAge > 0 {
			if n, err := cache.PurgeOlderThan(cfg.CacheDir, cfg.CacheMaxAge); err != nil {
				log.Warn().Err(err).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("cache purged")
			}
		}
	}
	chain, err := buildChain(cfg, a.hc)
	if err != nil {
		return nil, err
	}
	a.chain = chain
	a.fetch = buildFetcher(cfg, a.hc)
	return a, nil
}

// SetOutput redirects the per-excerpt console lines. Nil silences them.
func (a *App) SetOutput(w io.Writer) { a.out = w }

func buildChain(cfg Config, hc *http.Client) (search.Chain, error) {
	policy := search.DomainPolicy{Allowlist: cfg.DomainAllowlist, Denylist: cfg.DomainDenylist}
	var chain search.Chain
	for _, name := range cfg.Providers {
		var p search.Provider
		switch name {
		case "google":
			p = &search.GoogleHTML{BaseURL: cfg.GoogleURL, HTTPClient: hc, UserAgent: cfg.UserAgent, PageSize: cfg.PageSize}
		case "bing":
			p = &search.BingHTML{BaseURL: cfg.BingURL, HTTPClient: hc, UserAgent: cfg.UserAgent, PageSize: cfg.PageSize}
		case "searxng":
			p = &search.SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey, HTTPClient: hc, UserAgent: cfg.UserAgent}
		case "file":
			p = &search.FileProvider{Path: cfg.SearchFile, PageSize: cfg.PageSize}
		default:
			return nil, fmt.Errorf("unknown search provider %q", name)
		}
		s := search.NewSearcher(p, cfg.SearchInterval)
		s.Policy = policy
		s.PerRequestTimeout = cfg.SearchTimeout
		if cfg.SearchAttempts > 0 {
			s.MaxAttempts = cfg.SearchAttempts
		}
		chain = append(chain, s)
	}
	if len(chain) == 0 {
		return nil, errors.New("no search providers configured")
	}
	return chain, nil
}

func buildFetcher(cfg Config, hc *http.Client) *fetch.Fetcher {
	direct := &fetch.Client{
		HTTPClient:        hc,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.FetchAttempts,
		Backoff:           500 * time.Millisecond,
		PerRequestTimeout: cfg.FetchTimeout,
		RedirectMaxHops:   cfg.MaxRedirects,
		MaxConcurrent:     cfg.FetchConcurrency,
	}
	if cfg.CacheDir != "" {
		direct.Cache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}
	var proxy *fetch.Proxy
	if strings.TrimSpace(cfg.ProxyURL) != "" {
		proxy = &fetch.Proxy{
			Endpoint:    cfg.ProxyURL,
			APIKey:      cfg.ProxyKey,
			HTTPClient:  hc,
			MaxAttempts: cfg.FetchAttempts,
			Backoff:     500 * time.Millisecond,
		}
	}
	return fetch.NewFetcher(direct, proxy)
}

// Dedup opens the configured dedup store once.
func (a *App) Dedup(ctx context.Context) dedup.Store {
	if a.store == nil {
		if a.cfg.RedisAddr != "" {
			a.store = dedup.OpenRedis(ctx, a.cfg.RedisAddr, a.cfg.RedisKey)
		} else {
			a.store = dedup.OpenFile(a.cfg.DedupPath, a.cfg.CacheStrictPerms)
		}
	}
	return a.store
}

func (a *App) openSink() (sink.Sink, error) {
	if a.sink != nil {
		return a.sink, nil
	}
	results, err := sink.OpenSQLite(a.cfg.SinkPath)
	if err != nil {
		return nil, err
	}
	a.results = results
	m := &sink.Multi{Primary: results}
	if a.cfg.KafkaBroker != "" {
		m.Secondaries = append(m.Secondaries, sink.NewKafka(a.cfg.KafkaBroker, a.cfg.KafkaTopic))
	}
	a.sink = m
	return a.sink, nil
}

func (a *App) chatClient() llm.Client {
	if a.chat == nil {
		a.chat = llm.NewOpenAI(a.cfg.LLMBaseURL, a.cfg.LLMAPIKey, a.hc)
	}
	return a.chat
}

func (a *App) extractor() (*oracle.Client, error) {
	systemPrompt := a.cfg.SystemPrompt
	if strings.TrimSpace(a.cfg.SystemPromptFile) != "" {
		b, err := os.ReadFile(a.cfg.SystemPromptFile)
		if err != nil {
			return nil, fmt.Errorf("read system prompt: %w", err)
		}
		systemPrompt = string(b)
	}
	c := &oracle.Client{
		Chat:         a.chatClient(),
		Model:        a.cfg.LLMModel,
		MaxChars:     a.cfg.MaxChars,
		Timeout:      a.cfg.LLMTimeout,
		MaxAttempts:  a.cfg.LLMAttempts,
		Backoff:      time.Second,
		MinGrounding: a.cfg.MinGrounding,
		SystemPrompt: systemPrompt,
	}
	if a.cfg.CacheDir != "" {
		c.Cache = &cache.LLMCache{Dir: a.cfg.CacheDir, StrictPerms: a.cfg.CacheStrictPerms}
	}
	switch a.cfg.Corroborator {
	case CorroborateModel:
		c.Corroborator = oracle.ModelCorroborator{Client: c.Chat, Model: a.cfg.LLMModel, Timeout: a.cfg.LLMTimeout}
	case CorroborateOff:
	default:
		c.Corroborator = oracle.HeuristicCorroborator{}
	}
	return c, nil
}

// Run processes every job in the job file.
func (a *App) Run(ctx context.Context) ([]pipeline.Summary, error) {
	src := &jobs.FileSource{Path: a.cfg.JobsPath}
	if a.cfg.DryRun {
		return nil, a.dryRun(ctx, src)
	}
	a.preflight(ctx)
	snk, err := a.openSink()
	if err != nil {
		return nil, err
	}
	ex, err := a.extractor()
	if err != nil {
		return nil, err
	}
	pc := &pipeline.Context{
		Dedup:   a.Dedup(ctx),
		Sink:    snk,
		Search:  a.chain,
		Fetch:   a.fetch,
		Extract: ex,
		Jobs:    src,
		RunID:   uuid.NewString(),
		Options: pipeline.Options{
			MaxPages:           a.cfg.MaxPages,
			MaxRounds:          a.cfg.MaxRounds,
			CandidateFactor:    a.cfg.CandidateFactor,
			Concurrency:        a.cfg.Concurrency,
			RetryFetchFailures: a.cfg.RetryFetchFailures,
			Out:                a.out,
			OutWidth:           a.cfg.OutWidth,
		},
	}
	sums, err := pipeline.New(pc).Run(ctx)
	if err != nil {
		return nil, err
	}
	a.countStored(context.WithoutCancel(ctx), sums)
	return sums, nil
}

// countStored fills in how many rows the result table holds per job.
func (a *App) countStored(ctx context.Context, sums []pipeline.Summary) {
	if a.results == nil {
		return
	}
	for i := range sums {
		n, err := a.results.Count(ctx, sums[i].Job.Query)
		if err != nil {
			log.Warn().Err(err).Str("query", sums[i].Job.Query).Msg("counting stored rows failed")
			continue
		}
		sums[i].Stored = n
	}
}

// preflight lists models and warns when the configured one is missing.
// It never fails the run.
func (a *App) preflight(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ok, err := llm.HasModel(ctx, a.chatClient(), a.cfg.LLMModel)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
	case !ok:
		log.Warn().Str("model", a.cfg.LLMModel).Msg("configured model not listed by backend")
	}
}

// dryRun prints the candidates each unsatisfied job would process.
func (a *App) dryRun(ctx context.Context, src jobs.Source) error {
	list, err := src.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("load jobs: %w", err)
	}
	store := a.Dedup(ctx)
	for _, j := range list {
		if j.Done() {
			continue
		}
		ids := a.chain.Search(ctx, search.Request{
			Query:    search.Query{Text: j.Query, Start: j.Start, End: j.End},
			Wanted:   j.Remaining() * max(1, a.cfg.CandidateFactor),
			Excluded: store,
			MaxPages: a.cfg.MaxPages,
		})
		if a.out != nil {
			fmt.Fprintf(a.out, "%s (%d/%d): %d candidates\n", j.Query, j.Progress, j.Quota, len(ids))
			for _, id := range ids {
				fmt.Fprintf(a.out, "  %s\n", id)
			}
		}
	}
	return nil
}

// SearchOnce runs one query through the provider chain.
func (a *App) SearchOnce(ctx context.Context, q search.Query, wanted int) []string {
	return a.chain.Search(ctx, search.Request{Query: q, Wanted: wanted, MaxPages: a.cfg.MaxPages})
}

// FetchOnce returns the normalized text of one identifier.
func (a *App) FetchOnce(ctx context.Context, id string) (string, error) {
	norm, ok := search.Normalize(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", fetch.ErrUnsupported, id)
	}
	return a.fetch.Fetch(ctx, norm)
}

// Export writes stored rows as CSV. An empty query exports everything.
func (a *App) Export(ctx context.Context, w io.Writer, query string) error {
	if _, err := a.openSink(); err != nil {
		return err
	}
	rows, err := a.results.Rows(ctx, query)
	if err != nil {
		return err
	}
	return sink.WriteCSV(w, rows)
}

// Close releases the stores that were opened.
func (a *App) Close() error {
	var errs []error
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
