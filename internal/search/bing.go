package search

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// BingHTML scrapes the public Bing results page.
type BingHTML struct {
	// BaseURL defaults to https://www.bing.com/search.
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	PageSize   int
}

func (b *BingHTML) Name() string { return "bing" }

func (b *BingHTML) Page(ctx context.Context, q Query, page int) ([]string, error) {
	base := b.BaseURL
	if base == "" {
		base = "https://www.bing.com/search"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	size := pageSize(b.PageSize)
	v := u.Query()
	v.Set("q", q.Text)
	v.Set("count", strconv.Itoa(size))
	v.Set("first", strconv.Itoa(page*size+1))
	if f := bingDateFilter(q); f != "" {
		v.Set("filters", f)
	}
	u.RawQuery = v.Encode()
	body, err := getPage(ctx, b.HTTPClient, b.Name(), u.String(), b.UserAgent)
	if err != nil {
		return nil, err
	}
	return parseBingLinks(body)
}

// bingDateFilter renders ex1:"ez5_<from>_<to>" where both bounds are days
// since the Unix epoch.
func bingDateFilter(q Query) string {
	if !q.HasWindow() {
		return ""
	}
	from, to := q.Start, q.End
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	return fmt.Sprintf(`ex1:"ez5_%d_%d"`, epochDay(from), epochDay(to))
}

func epochDay(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}

// parseBingLinks collects the h2 anchors of organic results (li.b_algo).
// A page without the b_results list is not a results page and is ErrParse.
func parseBingLinks(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	var out []string
	var inResult func(n *html.Node)
	inResult = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "h2" {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "a" {
					if href := unwrapBing(attr(c, "href")); strings.HasPrefix(href, "http") {
						out = append(out, href)
					}
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			inResult(c)
		}
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "li" && hasClass(n, "b_algo") {
			inResult(n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(out) == 0 && !hasID(doc, "b_results") {
		return nil, fmt.Errorf("%w: bing page has no results list", ErrParse)
	}
	return out, nil
}

// unwrapBing decodes bing.com/ck/a click-tracking links whose u parameter
// carries "a1" followed by the base64url target.
func unwrapBing(href string) string {
	u, err := url.Parse(href)
	if err != nil || !strings.HasSuffix(strings.ToLower(u.Hostname()), "bing.com") || !strings.HasPrefix(u.Path, "/ck/") {
		return href
	}
	enc := u.Query().Get("u")
	if !strings.HasPrefix(enc, "a1") {
		return href
	}
	dec, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(enc[2:], "="))
	if err != nil {
		return href
	}
	return string(dec)
}
