package llm

import (
	"context"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the one chat call the oracle needs. Any OpenAI-compatible or
// local backend can be adapted to it.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is an optional capability used for preflight checks.
type ModelLister interface {
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIProvider adapts *openai.Client to Client and ModelLister.
type OpenAIProvider struct {
	Inner *openai.Client
}

// NewOpenAI builds a provider for baseURL. An empty baseURL keeps the
// library default. hc may be nil.
func NewOpenAI(baseURL, apiKey string, hc *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if s := strings.TrimSpace(baseURL); s != "" {
		cfg.BaseURL = strings.TrimRight(s, "/")
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return &OpenAIProvider{Inner: openai.NewClientWithConfig(cfg)}
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return p.Inner.ListModels(ctx)
}

// HasModel reports whether the backend lists model. Backends that cannot
// list models are assumed to serve it.
func HasModel(ctx context.Context, c Client, model string) (bool, error) {
	ml, ok := c.(ModelLister)
	if !ok {
		return true, nil
	}
	list, err := ml.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range list.Models {
		if m.ID == model {
			return true, nil
		}
	}
	return false, nil
}
