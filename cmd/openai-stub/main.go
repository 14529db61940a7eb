// Command openai-stub serves a minimal OpenAI-compatible API for local
// end-to-end runs without a real model.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

const sentinel = "NO_RELEVANT_CONTENT"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, newMux(model)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func newMux(model string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) < 2 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		content, ok := reply(req.Messages[0].Content, req.Messages[1].Content)
		if !ok {
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		log.Debug().Int("chars", len(req.Messages[1].Content)).Msg("chat completion")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})
	return mux
}

// reply answers extraction and yes/no relevance prompts deterministically.
func reply(system, user string) (string, bool) {
	switch {
	case strings.Contains(system, "data extraction assistant"):
		query, text, confirm := splitExtraction(user)
		rec := map[string]any{
			"excerpt":          sentinel,
			"title":            firstLine(text),
			"category":         "stub",
			"date":             "",
			"source_authority": "",
			"numeric_value":    nil,
			"unit":             "",
			"value_type":       "",
			"country":          "",
			"location":         "",
			"author":           "",
			"keywords":         strings.Fields(query),
			"relevancy_score":  nil,
			"references":       []string{},
		}
		if p := pickParagraph(text, query, confirm); p != "" {
			rec["excerpt"] = p
			rec["relevancy_score"] = 50
		}
		b, _ := json.Marshal(rec)
		return string(b), true
	case strings.Contains(system, "yes or no"):
		if strings.Contains(user, "Text:\n") {
			parts := strings.SplitN(user, "Text:\n", 2)
			if hasDigit(parts[1]) {
				return "yes", true
			}
		}
		return "no", true
	}
	return "", false
}

func splitExtraction(user string) (query, text string, confirm bool) {
	head, body, _ := strings.Cut(user, "\nText:\n")
	for _, line := range strings.Split(head, "\n") {
		if q, ok := strings.CutPrefix(line, "Query: "); ok {
			query = strings.TrimSpace(q)
		}
	}
	confirm = strings.Contains(head, "A previous pass found nothing")
	return query, body, confirm
}

// pickParagraph returns the first paragraph with a number that mentions a
// query term. On a confirmatory pass any numeric paragraph qualifies.
func pickParagraph(text, query string, confirm bool) string {
	terms := strings.Fields(strings.ToLower(query))
	for _, p := range strings.Split(text, "\n") {
		p = strings.TrimSpace(p)
		if p == "" || !hasDigit(p) {
			continue
		}
		if confirm {
			return p
		}
		lower := strings.ToLower(p)
		for _, t := range terms {
			if len(t) > 2 && strings.Contains(lower, t) {
				return p
			}
		}
	}
	return ""
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			if len(s) > 80 {
				s = s[:80]
			}
			return s
		}
	}
	return ""
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
