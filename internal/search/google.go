package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// GoogleHTML scrapes the public Google results page.
type GoogleHTML struct {
	// BaseURL defaults to https://www.google.com/search.
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	PageSize   int
}

func (g *GoogleHTML) Name() string { return "google" }

func (g *GoogleHTML) Page(ctx context.Context, q Query, page int) ([]string, error) {
	base := g.BaseURL
	if base == "" {
		base = "https://www.google.com/search"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	size := pageSize(g.PageSize)
	v := u.Query()
	v.Set("q", q.Text)
	v.Set("num", strconv.Itoa(size))
	v.Set("hl", "en")
	if page > 0 {
		v.Set("start", strconv.Itoa(page*size))
	}
	if tbs := googleDateRange(q); tbs != "" {
		v.Set("tbs", tbs)
	}
	u.RawQuery = v.Encode()
	body, err := getPage(ctx, g.HTTPClient, g.Name(), u.String(), g.UserAgent)
	if err != nil {
		return nil, err
	}
	return parseGoogleLinks(body)
}

// googleDateRange renders the custom date range filter (tbs=cdr:1,...).
func googleDateRange(q Query) string {
	if !q.HasWindow() {
		return ""
	}
	parts := []string{"cdr:1"}
	if !q.Start.IsZero() {
		parts = append(parts, "cd_min:"+q.Start.Format("1/2/2006"))
	}
	if !q.End.IsZero() {
		parts = append(parts, "cd_max:"+q.End.Format("1/2/2006"))
	}
	return strings.Join(parts, ",")
}

// googleContainers are the element ids that wrap a results listing, present
// even when a query matched nothing.
var googleContainers = []string{"search", "rso", "main"}

// parseGoogleLinks collects result targets. The no-JS page wraps targets as
// /url?q=<target>&...; the JS page links directly from anchors holding an <h3>.
// A page with no links and no results container (consent or captcha
// interstitials) is ErrParse.
func parseGoogleLinks(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			switch {
			case strings.HasPrefix(href, "/url?"):
				if ru, err := url.Parse(href); err == nil {
					target := ru.Query().Get("q")
					if target == "" {
						target = ru.Query().Get("url")
					}
					if strings.HasPrefix(target, "http") && !isGoogleHost(target) {
						out = append(out, target)
					}
				}
			case strings.HasPrefix(href, "http") && hasChild(n, "h3") && !isGoogleHost(href):
				out = append(out, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(out) == 0 && !hasID(doc, googleContainers...) {
		return nil, fmt.Errorf("%w: google page has no results container", ErrParse)
	}
	return out, nil
}

func isGoogleHost(raw string) bool {
	h := Host(raw)
	return h == "google.com" || strings.HasSuffix(h, ".google.com") || strings.HasPrefix(h, "google.") || strings.Contains(h, ".google.")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasChild(n *html.Node, tag string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, tag) {
			return true
		}
		if hasChild(c, tag) {
			return true
		}
	}
	return false
}

// hasID reports whether any element below n carries one of ids.
func hasID(n *html.Node, ids ...string) bool {
	if n.Type == html.ElementNode {
		id := attr(n, "id")
		for _, want := range ids {
			if id != "" && id == want {
				return true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasID(c, ids...) {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
