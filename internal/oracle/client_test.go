package oracle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goexcerpt/internal/cache"
)

const sourceText = "Intro paragraph. Total sales reached 2.5 billion dollars in 2023 according to the agency. Outro."

func TestExtractReturnsRecord(t *testing.T) {
	chat := &scriptedChat{replies: []reply{{content: answer("Total sales reached 2.5 billion dollars in 2023")}}}
	c := &Client{Chat: chat, Model: "m", MinGrounding: 0.75}
	out := c.Extract(context.Background(), Input{Text: sourceText, Query: "sales 2023"})
	if out.Err != nil || out.Record == nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Calls != 1 || out.Retried {
		t.Fatalf("want one call, got %+v", out)
	}
	r := out.Record
	if r.NumericValue == nil || *r.NumericValue != 2.5 {
		t.Fatalf("numeric value: %v", r.NumericValue)
	}
	if r.RelevancyScore == nil || *r.RelevancyScore != 87 {
		t.Fatalf("quoted relevancy should parse: %v", r.RelevancyScore)
	}
	if r.Author != "" || r.Location != "" {
		t.Fatalf("placeholders should become empty: %+v", r)
	}
	req := chat.requests[0]
	if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatal("expected JSON response format")
	}
}

func TestExtractTruncatesDeterministically(t *testing.T) {
	long := strings.Repeat("é", 100)
	chat := &scriptedChat{replies: []reply{{content: answer(Sentinel)}}}
	c := &Client{Chat: chat, Model: "m", MaxChars: 10}
	c.Extract(context.Background(), Input{Text: long, Query: "q"})
	c.Extract(context.Background(), Input{Text: long, Query: "q"})
	a, b := chat.userMessage(0), chat.userMessage(1)
	if a != b {
		t.Fatal("same input must produce the same prompt")
	}
	if !strings.HasSuffix(a, strings.Repeat("é", 10)) || strings.Contains(a, strings.Repeat("é", 11)) {
		t.Fatalf("text not cut at 10 characters: %q", a)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"héllo", 2, "hé"},
		{"abc", 0, "abc"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("Truncate(%q,%d)=%q want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestSentinelWithoutCorroborationIsEmpty(t *testing.T) {
	chat := &scriptedChat{replies: []reply{{content: answer(Sentinel)}}}
	corr := &fixedCorroborator{likely: false}
	c := &Client{Chat: chat, Model: "m", Corroborator: corr}
	out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"})
	if out.Record != nil || out.Err != nil || out.Retried {
		t.Fatalf("want plain empty, got %+v", out)
	}
	if chat.count() != 1 || corr.calls != 1 {
		t.Fatalf("calls: chat=%d corr=%d", chat.count(), corr.calls)
	}
}

func TestConfirmatoryRetryAtMostOnce(t *testing.T) {
	chat := &scriptedChat{replies: []reply{{content: answer(Sentinel)}}}
	c := &Client{Chat: chat, Model: "m", Corroborator: &fixedCorroborator{likely: true}}
	out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"})
	if out.Record != nil {
		t.Fatalf("expected empty after two sentinels, got %+v", out.Record)
	}
	if chat.count() != 2 || out.Calls != 2 || !out.Retried {
		t.Fatalf("want exactly two calls, got %d (%+v)", chat.count(), out)
	}
	if !strings.Contains(chat.userMessage(1), "previous pass found nothing") {
		t.Fatal("second prompt should carry the confirmation note")
	}
}

func TestConfirmatoryRetryRecovers(t *testing.T) {
	chat := &scriptedChat{replies: []reply{
		{content: answer(Sentinel)},
		{content: answer("Total sales reached 2.5 billion dollars in 2023")},
	}}
	c := &Client{Chat: chat, Model: "m", Corroborator: &fixedCorroborator{likely: true}, MinGrounding: 0.75}
	out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"})
	if out.Record == nil || !out.Retried {
		t.Fatalf("expected record from retry, got %+v", out)
	}
}

func TestCorroboratorErrorKeepsEmpty(t *testing.T) {
	chat := &scriptedChat{replies: []reply{{content: answer(Sentinel)}}}
	c := &Client{Chat: chat, Model: "m", Corroborator: &fixedCorroborator{err: errors.New("down")}}
	out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"})
	if out.Record != nil || out.Retried || chat.count() != 1 {
		t.Fatalf("unexpected %+v", out)
	}
}

func TestUngroundedExcerptIsEmpty(t *testing.T) {
	chat := &scriptedChat{replies: []reply{{content: answer("Completely invented statement about unicorns")}}}
	c := &Client{Chat: chat, Model: "m", MinGrounding: 0.75, Corroborator: &fixedCorroborator{likely: true}}
	out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"})
	if out.Record != nil {
		t.Fatalf("ungrounded excerpt accepted: %+v", out.Record)
	}
	if chat.count() != 1 {
		t.Fatalf("grounding failure must not re-ask, calls=%d", chat.count())
	}
}

func TestSchemaViolationIsEmptyWithError(t *testing.T) {
	for name, raw := range map[string]string{
		"prose":        "Sure! Here is the paragraph you wanted.",
		"missing keys": `{"excerpt":"Total sales"}`,
		"bad number":   strings.Replace(answer("x"), `"numeric_value":2.5`, `"numeric_value":"about two"`, 1),
		"bad list":     strings.Replace(answer("x"), `"keywords":["sales","2023"]`, `"keywords":42`, 1),
	} {
		t.Run(name, func(t *testing.T) {
			chat := &scriptedChat{replies: []reply{{content: raw}}}
			c := &Client{Chat: chat, Model: "m", MaxAttempts: 3}
			out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"})
			if out.Record != nil || !errors.Is(out.Err, ErrSchema) {
				t.Fatalf("want schema error, got %+v", out)
			}
			if chat.count() != 1 {
				t.Fatalf("schema errors are not retried, calls=%d", chat.count())
			}
		})
	}
}

func TestTransportErrorRetriesThenEmpty(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "busy"}
	chat := &scriptedChat{replies: []reply{{err: apiErr}}}
	c := &Client{Chat: chat, Model: "m", MaxAttempts: 2, Backoff: 1}
	out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"})
	if out.Record != nil || !errors.Is(out.Err, ErrTransport) {
		t.Fatalf("want transport error, got %+v", out)
	}
	if chat.count() != 2 {
		t.Fatalf("want 2 attempts, got %d", chat.count())
	}
}

func TestTransportPermanentNotRetried(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad"}
	chat := &scriptedChat{replies: []reply{{err: apiErr}}}
	c := &Client{Chat: chat, Model: "m", MaxAttempts: 3, Backoff: 1}
	out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"})
	if !errors.Is(out.Err, ErrTransport) || chat.count() != 1 {
		t.Fatalf("got %+v after %d calls", out, chat.count())
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := &Client{}
	out := c.Extract(context.Background(), Input{Text: "x", Query: "q"})
	if !errors.Is(out.Err, ErrTransport) {
		t.Fatalf("want transport error, got %v", out.Err)
	}
}

func TestCacheAvoidsSecondCall(t *testing.T) {
	chat := &scriptedChat{replies: []reply{{content: answer("Total sales reached 2.5 billion dollars in 2023")}}}
	c := &Client{Chat: chat, Model: "m", Cache: &cache.LLMCache{Dir: t.TempDir()}}
	for i := 0; i < 2; i++ {
		if out := c.Extract(context.Background(), Input{Text: sourceText, Query: "q"}); out.Record == nil {
			t.Fatalf("run %d: no record", i)
		}
	}
	if chat.count() != 1 {
		t.Fatalf("want cached second answer, calls=%d", chat.count())
	}
}
