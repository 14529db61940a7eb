package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goexcerpt/internal/extract"
)

// Fetcher turns a source identifier into normalized plain text. Paths are
// tried in order and the first one that returns bytes wins; a path failing
// on the network hands over to the next one.
type Fetcher struct {
	Paths []Getter
}

// NewFetcher returns a fetcher over the direct client and, when configured,
// the extraction proxy as second chance.
func NewFetcher(direct *Client, proxy *Proxy) *Fetcher {
	f := &Fetcher{}
	if direct != nil {
		f.Paths = append(f.Paths, direct)
	}
	if proxy != nil && strings.TrimSpace(proxy.Endpoint) != "" {
		f.Paths = append(f.Paths, proxy)
	}
	return f
}

// Fetch retrieves id and normalizes it. Identifiers ending in .pdf go through
// page-wise PDF extraction whatever the server claims the content is; every
// other identifier is decoded and stripped to its visible text.
func (f *Fetcher) Fetch(ctx context.Context, id string) (string, error) {
	res, err := f.retrieve(ctx, id)
	if err != nil {
		return "", err
	}
	var text, title string
	if IsPDF(id) {
		text, err = PDFText(res.Body)
		if err != nil {
			return "", err
		}
	} else {
		markup := DecodeText(res.Body, res.ContentType)
		text = extract.VisibleText(markup)
		title = extract.Title(markup)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	log.Debug().Str("url", id).Str("title", title).Int("chars", len(text)).Bool("pdf", IsPDF(id)).Msg("fetched")
	return text, nil
}

func (f *Fetcher) retrieve(ctx context.Context, id string) (Response, error) {
	if len(f.Paths) == 0 {
		return Response{}, fmt.Errorf("%w: no fetch path configured", ErrUnsupported)
	}
	var errs []error
	for _, p := range f.Paths {
		res, err := p.Get(ctx, id)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		log.Debug().Err(err).Str("url", id).Str("path", p.Name()).Msg("fetch path failed")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return Response{}, errors.Join(errs...)
}
