package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Request carries the parameters of one candidate search.
type Request struct {
	Query Query
	// Wanted is the number of new identifiers the caller needs.
	Wanted int
	// Excluded identifiers are dropped before accumulation.
	Excluded Excluder
	// MaxPages bounds pagination. Zero means one page.
	MaxPages int
}

// Searcher paginates a single Provider behind its admission Gate.
type Searcher struct {
	Provider Provider
	// Gate is shared by every caller of this provider.
	Gate   *Gate
	Policy DomainPolicy
	// MaxAttempts includes the initial attempt per page. Minimum 1.
	MaxAttempts int
	// Backoff is the base delay between attempts; it doubles on each retry.
	Backoff time.Duration
	// PerRequestTimeout bounds each page request.
	PerRequestTimeout time.Duration
}

// NewSearcher wires a provider to a fresh gate with the given spacing.
func NewSearcher(p Provider, interval time.Duration) *Searcher {
	return &Searcher{Provider: p, Gate: NewGate(interval), MaxAttempts: 2, Backoff: 500 * time.Millisecond}
}

func (s *Searcher) Name() string { return s.Provider.Name() }

// Search pages through results until Wanted new identifiers are collected or
// MaxPages is reached. A page with no links at all ends pagination; a page whose
// links were all excluded does not. Any page that fails after retries fails
// the whole search so that the caller can fall back to another provider.
func (s *Searcher) Search(ctx context.Context, req Request) ([]string, error) {
	if req.Wanted <= 0 {
		return nil, nil
	}
	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, req.Wanted)
	for page := 0; page < maxPages && len(out) < req.Wanted; page++ {
		links, err := s.page(ctx, req.Query, page)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", s.Name(), page, err)
		}
		if len(links) == 0 {
			log.Debug().Str("provider", s.Name()).Int("page", page).Msg("empty result page; stopping")
			break
		}
		added := 0
		for _, raw := range links {
			id, ok := Normalize(raw)
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if req.Excluded != nil && req.Excluded.Contains(id) {
				continue
			}
			if !s.Policy.Allowed(Host(id)) {
				continue
			}
			out = append(out, id)
			added++
			if len(out) >= req.Wanted {
				break
			}
		}
		log.Debug().Str("provider", s.Name()).Int("page", page).Int("links", len(links)).Int("added", added).Msg("result page")
	}
	return out, nil
}

func (s *Searcher) page(ctx context.Context, q Query, page int) ([]string, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var links []string
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = s.Gate.Do(ctx, func(ctx context.Context) error {
			if s.PerRequestTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, s.PerRequestTimeout)
				defer cancel()
			}
			var err error
			links, err = s.Provider.Page(ctx, q, page)
			return err
		})
		if lastErr == nil {
			return links, nil
		}
		if !isTransient(lastErr) || i == attempts-1 || ctx.Err() != nil {
			break
		}
		delay := s.Backoff << i
		log.Debug().Err(lastErr).Str("provider", s.Name()).Int("page", page).Dur("backoff", delay).Msg("retrying page")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
