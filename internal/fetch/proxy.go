package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Proxy fetches through a managed extraction service. The request carries the
// target URL; the response envelope carries the body base64-encoded.
type Proxy struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	// Timeout bounds each proxy call. Zero means 60s; proxies render slowly.
	Timeout time.Duration
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// Backoff is the delay before the first retry; it doubles afterwards.
	Backoff time.Duration
}

type proxyRequest struct {
	URL                 string `json:"url"`
	HTTPResponseBody    bool   `json:"httpResponseBody"`
	HTTPResponseHeaders bool   `json:"httpResponseHeaders"`
}

type proxyEnvelope struct {
	URL                 string `json:"url"`
	StatusCode          int    `json:"statusCode"`
	HTTPResponseBody    string `json:"httpResponseBody"`
	HTTPResponseHeaders []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"httpResponseHeaders"`
}

func (p *Proxy) Name() string { return "proxy" }

// Get asks the proxy for id, retrying transient failures with exponential
// backoff like Client.Get.
func (p *Proxy) Get(ctx context.Context, id string) (Response, error) {
	if strings.TrimSpace(p.Endpoint) == "" {
		return Response{}, fmt.Errorf("%w: proxy endpoint not configured", ErrUnsupported)
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		res, err := p.once(ctx, id)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsTransient(err) || i == attempts-1 || ctx.Err() != nil {
			break
		}
		delay := p.Backoff << i
		if delay <= 0 {
			delay = time.Duration(i+1) * 200 * time.Millisecond
		}
		log.Debug().Err(err).Str("url", id).Int("attempt", i+1).Dur("backoff", delay).Msg("retrying proxy fetch")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return Response{}, lastErr
}

func (p *Proxy) once(ctx context.Context, id string) (Response, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(proxyRequest{URL: id, HTTPResponseBody: true, HTTPResponseHeaders: true})
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.SetBasicAuth(p.APIKey, "")
	}
	hc := p.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Response{}, &StatusError{Code: resp.StatusCode}
	}
	var env proxyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Response{}, fmt.Errorf("%w: proxy envelope: %v", ErrParse, err)
	}
	if env.StatusCode != 0 && (env.StatusCode < 200 || env.StatusCode > 299) {
		return Response{}, &StatusError{Code: env.StatusCode}
	}
	body, err := base64.StdEncoding.DecodeString(env.HTTPResponseBody)
	if err != nil {
		return Response{}, fmt.Errorf("%w: proxy body: %v", ErrParse, err)
	}
	out := Response{Body: body}
	for _, h := range env.HTTPResponseHeaders {
		if strings.EqualFold(h.Name, "Content-Type") {
			out.ContentType = h.Value
			break
		}
	}
	return out, nil
}
