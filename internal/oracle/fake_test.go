package oracle

import (
	"context"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// scriptedChat answers each call with the next entry of replies. The last
// entry repeats once the script runs out.
type scriptedChat struct {
	replies []reply

	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
}

type reply struct {
	content string
	err     error
}

func (s *scriptedChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	r := s.replies[i]
	if r.err != nil {
		return openai.ChatCompletionResponse{}, r.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: r.content}}}}, nil
}

func (s *scriptedChat) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedChat) userMessage(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.requests[i].Messages {
		if m.Role == openai.ChatMessageRoleUser {
			return m.Content
		}
	}
	return ""
}

type fixedCorroborator struct {
	likely bool
	err    error
	calls  int
}

func (f *fixedCorroborator) Likely(context.Context, string, string) (bool, error) {
	f.calls++
	return f.likely, f.err
}

// answer renders a complete record response with the given excerpt.
func answer(excerpt string) string {
	return `{"excerpt":` + quote(excerpt) + `,"title":"Market report","category":"industry","date":"2023-04-01",` +
		`"source_authority":"Agency","numeric_value":2.5,"unit":"billion","value_type":"revenue","country":"US",` +
		`"location":null,"author":"--","keywords":["sales","2023"],"relevancy_score":"87","references":null}`
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
