package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Query is the provider-independent description of one search: free text plus
// an optional publication window. Zero times leave that side of the window open.
type Query struct {
	Text  string
	Start time.Time
	End   time.Time
}

// HasWindow reports whether either side of the date window is set.
func (q Query) HasWindow() bool { return !q.Start.IsZero() || !q.End.IsZero() }

// Provider returns one page of raw result links. Page numbers start at zero.
type Provider interface {
	Page(ctx context.Context, q Query, page int) ([]string, error)
	Name() string
}

// Excluder reports identifiers that must never be returned to the caller.
type Excluder interface {
	Contains(id string) bool
}

// Set is a plain in-memory Excluder.
type Set map[string]struct{}

func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// ErrParse marks a result page that could not be parsed.
var ErrParse = errors.New("search: parse result page")

// StatusError is returned when a provider answers with a non-success status.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status: %d", e.Provider, e.Code)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == 429 || (e.Code >= 500 && e.Code <= 599)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	if errors.Is(err, ErrParse) {
		return false
	}
	// connection-level failures from net/http
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "timeout")
}

// DomainPolicy allows providers to filter or block results/requests by host.
// Denylist takes precedence over Allowlist.
type DomainPolicy struct {
	Allowlist []string
	Denylist  []string
}

// Allowed reports whether host passes the policy. Entries match the host
// itself and any of its subdomains.
func (p DomainPolicy) Allowed(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	for _, d := range p.Denylist {
		if hostMatches(host, d) {
			return false
		}
	}
	if len(p.Allowlist) == 0 {
		return true
	}
	for _, a := range p.Allowlist {
		if hostMatches(host, a) {
			return true
		}
	}
	return false
}

func hostMatches(host, domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
