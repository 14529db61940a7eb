package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goexcerpt/internal/cache"
	"github.com/hyperifyio/goexcerpt/internal/llm"
)

// Input is one extraction request.
type Input struct {
	Text         string
	Query        string
	Instructions string
}

// Outcome reports what an extraction produced. Record is nil when the answer
// was empty for any reason; Err then says whether a call failed.
type Outcome struct {
	Record *Record
	Err    error
	// Calls counts distinct prompts sent, at most two.
	Calls   int
	Retried bool
}

// Client extracts records with an OpenAI-compatible chat model.
type Client struct {
	Chat  llm.Client
	Model string
	// MaxChars is the truncation bound. Zero means DefaultMaxChars.
	MaxChars int
	// Timeout bounds each call.
	Timeout time.Duration
	// MaxAttempts bounds transport retries of the same prompt. Minimum 1.
	MaxAttempts int
	Backoff     time.Duration
	Cache       *cache.LLMCache
	// Corroborator gates the single confirmatory re-ask. Nil disables it.
	Corroborator Corroborator
	// MinGrounding is the share of excerpt words that must occur in the
	// submitted text. Zero disables the check.
	MinGrounding float64
	// SystemPrompt overrides the default system message.
	SystemPrompt string
}

func (c *Client) maxChars() int {
	if c.MaxChars > 0 {
		return c.MaxChars
	}
	return DefaultMaxChars
}

// Extract submits a truncated copy of the text. A sentinel answer triggers
// at most one confirmatory re-ask, and only when the corroborator agrees that
// content is likely present. Call failures degrade to an empty outcome.
func (c *Client) Extract(ctx context.Context, in Input) Outcome {
	text := Truncate(in.Text, c.maxChars())
	rec, err := c.ask(ctx, in, text, false)
	out := Outcome{Calls: 1}
	if err != nil {
		log.Warn().Err(err).Str("query", in.Query).Msg("extraction call failed")
		out.Err = err
		return out
	}
	if !rec.IsEmpty() {
		out.Record = c.accept(rec, text)
		return out
	}
	if c.Corroborator == nil {
		return out
	}
	likely, err := c.Corroborator.Likely(ctx, text, in.Query)
	if err != nil {
		log.Debug().Err(err).Msg("corroboration failed; keeping empty answer")
		return out
	}
	if !likely {
		return out
	}
	log.Debug().Str("query", in.Query).Msg("sentinel contradicted; asking once more")
	out.Retried = true
	out.Calls++
	rec, err = c.ask(ctx, in, text, true)
	if err != nil {
		log.Warn().Err(err).Str("query", in.Query).Msg("confirmatory call failed")
		out.Err = err
		return out
	}
	if !rec.IsEmpty() {
		out.Record = c.accept(rec, text)
	}
	return out
}

// accept drops excerpts that cannot be found in the submitted text.
func (c *Client) accept(rec *Record, text string) *Record {
	if !Grounded(rec.Excerpt, text, c.MinGrounding) {
		log.Debug().Str("excerpt", abbreviate(rec.Excerpt, 80)).Msg("excerpt not found in source; treating as empty")
		return nil
	}
	return rec
}

func (c *Client) ask(ctx context.Context, in Input, text string, confirm bool) (*Record, error) {
	if c.Chat == nil || strings.TrimSpace(c.Model) == "" {
		return nil, fmt.Errorf("%w: oracle not configured", ErrTransport)
	}
	sys := systemMessage
	if strings.TrimSpace(c.SystemPrompt) != "" {
		sys = c.SystemPrompt
	}
	user := buildUserMessage(in.Query, in.Instructions, text, confirm)
	key := cache.KeyFrom(c.Model, sys+"\n\n"+user)
	if raw, ok, _ := c.Cache.Get(ctx, key); ok {
		if rec, err := Decode(string(raw)); err == nil {
			return rec, nil
		}
	}
	raw, err := c.call(ctx, openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
		N:              1,
	})
	if err != nil {
		return nil, err
	}
	rec, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Save(ctx, key, []byte(raw)); err != nil {
		log.Debug().Err(err).Msg("oracle cache save failed")
	}
	return rec, nil
}

func (c *Client) call(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		raw, err := c.callOnce(ctx, req)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !transient(err) || i == attempts-1 || ctx.Err() != nil {
			break
		}
		delay := c.Backoff << i
		if delay <= 0 {
			delay = time.Duration(i+1) * time.Second
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
		}
	}
	return "", lastErr
}

func (c *Client) callOnce(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	resp, err := c.Chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrSchema)
	}
	return resp.Choices[0].Message.Content, nil
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSchema) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return Truncate(s, n) + "…"
}
