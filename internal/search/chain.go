package search

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Chain tries searchers in order with identical parameters and returns the
// first successful answer. When every searcher fails the result is empty: no
// candidates this round, not a fatal error.
type Chain []*Searcher

func (c Chain) Search(ctx context.Context, req Request) []string {
	for i, s := range c {
		ids, err := s.Search(ctx, req)
		if err == nil {
			log.Debug().Str("provider", s.Name()).Str("query", req.Query.Text).Int("found", len(ids)).Msg("search done")
			return ids
		}
		if ctx.Err() != nil {
			return nil
		}
		if i < len(c)-1 {
			log.Warn().Err(err).Str("provider", s.Name()).Str("fallback", c[i+1].Name()).Msg("search failed; falling back")
		} else {
			log.Warn().Err(err).Str("provider", s.Name()).Msg("search failed")
		}
	}
	if len(c) > 0 {
		log.Error().Str("query", req.Query.Text).Msg("all search providers failed")
	}
	return nil
}
