package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goexcerpt/internal/llm"
)

// Corroborator is an independent second opinion on whether text likely holds
// relevant content after the oracle answered with the sentinel.
type Corroborator interface {
	Likely(ctx context.Context, text, query string) (bool, error)
}

var quantRe = regexp.MustCompile(`(?i)\d[\d,.]*\s*(%|percent|million|billion|thousand|kg|kilograms|tons|tonnes|pounds|ounces|lbs|oz)|[$€£]\s*\d`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true,
	"this": true, "are": true, "was": true, "were": true, "into": true, "about": true,
}

// HeuristicCorroborator says yes when the text mentions enough query terms
// and contains at least one quantity.
type HeuristicCorroborator struct {
	// MinTerms is the number of distinct query terms required. Zero means
	// min(2, number of terms).
	MinTerms int
}

func (h HeuristicCorroborator) Likely(_ context.Context, text, query string) (bool, error) {
	if !quantRe.MatchString(text) {
		return false, nil
	}
	terms := queryTerms(query)
	need := h.MinTerms
	if need <= 0 {
		need = 2
	}
	if need > len(terms) {
		need = len(terms)
	}
	vocab := make(map[string]struct{})
	for _, w := range words(text) {
		vocab[w] = struct{}{}
	}
	hits := 0
	for _, t := range terms {
		if _, ok := vocab[t]; ok {
			hits++
		}
	}
	return hits >= need, nil
}

func queryTerms(query string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range words(query) {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// ModelCorroborator asks the model a separate yes/no question.
type ModelCorroborator struct {
	Client  llm.Client
	Model   string
	Timeout time.Duration
}

const corroborateSystem = "You judge relevance. Answer with a single word, yes or no."

func (m ModelCorroborator) Likely(ctx context.Context, text, query string) (bool, error) {
	if m.Client == nil || m.Model == "" {
		return false, fmt.Errorf("%w: corroborator not configured", ErrTransport)
	}
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	resp, err := m.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: corroborateSystem},
			{Role: openai.ChatMessageRoleUser, Content: "Does the following text contain a paragraph with quantitative information relevant to the query '" + query + "'?\n\nText:\n" + text},
		},
		Temperature: 0,
		N:           1,
		MaxTokens:   3,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return false, fmt.Errorf("%w: no choices", ErrSchema)
	}
	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	return strings.HasPrefix(answer, "yes"), nil
}
