package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goexcerpt/internal/cache"
)

// DefaultUserAgent matches what a desktop browser would send at minimum.
const DefaultUserAgent = "Mozilla/5.0"

// Response is the raw result of one successful fetch path.
type Response struct {
	Body        []byte
	ContentType string
}

// Getter is one way of retrieving the raw bytes behind an identifier.
type Getter interface {
	Get(ctx context.Context, id string) (Response, error)
	Name() string
}

// Client wraps http.Client and provides timeouts and limited retry on transient errors.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// Backoff is the delay before the first retry; it doubles afterwards.
	Backoff time.Duration
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// MaxBodyBytes caps the body read. Zero means 20 MiB.
	MaxBodyBytes int64
	// Optional on-disk cache for GET bodies, revalidated with ETag/Last-Modified.
	Cache *cache.HTTPCache

	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int

	limiter     chan struct{}
	limiterOnce sync.Once
}

func (c *Client) Name() string { return "direct" }

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: c.checkRedirectFunc()}
}

// Get issues a GET with user-agent, per-request timeout and bounded,
// exponentially spaced retries for transient errors.
func (c *Client) Get(ctx context.Context, id string) (Response, error) {
	var etag, lastMod string
	if c.Cache != nil {
		if meta, err := c.Cache.LoadMeta(ctx, id); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		res, err := c.tryOnce(ctx, id, etag, lastMod)
		if err == nil {
			if res.status == http.StatusNotModified && c.Cache != nil {
				if cached, err := c.Cache.LoadBody(ctx, id); err == nil {
					return Response{Body: cached, ContentType: res.contentType}, nil
				}
				// cache lost its body; drop validators and ask again
				etag, lastMod = "", ""
				lastErr = errors.New("cached body missing after 304")
				continue
			}
			if c.Cache != nil {
				if err := c.Cache.Save(ctx, id, res.contentType, res.etag, res.lastMod, res.body); err != nil {
					log.Debug().Err(err).Str("url", id).Msg("http cache save failed")
				}
			}
			return Response{Body: res.body, ContentType: res.contentType}, nil
		}
		lastErr = err
		if !IsTransient(err) || i == attempts-1 || ctx.Err() != nil {
			break
		}
		delay := c.Backoff << i
		if delay <= 0 {
			delay = time.Duration(i+1) * 200 * time.Millisecond
		}
		log.Debug().Err(err).Str("url", id).Int("attempt", i+1).Dur("backoff", delay).Msg("retrying fetch")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return Response{}, lastErr
}

type attempt struct {
	body        []byte
	contentType string
	etag        string
	lastMod     string
	status      int
}

func (c *Client) tryOnce(ctx context.Context, id, etag, lastMod string) (attempt, error) {
	c.acquire()
	defer c.release()

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, id, nil)
	if err != nil {
		return attempt{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if !isHTTPScheme(req.URL) {
		return attempt{}, fmt.Errorf("%w: scheme %q", ErrUnsupported, req.URL.Scheme)
	}
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return attempt{}, err
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode == http.StatusNotModified {
		return attempt{contentType: ct, status: resp.StatusCode}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return attempt{status: resp.StatusCode}, &StatusError{Code: resp.StatusCode}
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = 20 << 20
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return attempt{}, fmt.Errorf("read body: %w", err)
	}
	return attempt{
		body:        b,
		contentType: ct,
		etag:        resp.Header.Get("ETag"),
		lastMod:     resp.Header.Get("Last-Modified"),
		status:      resp.StatusCode,
	}, nil
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	<-c.limiter
}
