package fetch

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/ledongthuc/pdf"
)

// IsPDF classifies an identifier by its path suffix. The response content
// type is deliberately not consulted.
func IsPDF(id string) bool {
	p := id
	if u, err := url.Parse(id); err == nil {
		p = u.Path
	}
	return strings.HasSuffix(strings.ToLower(p), ".pdf")
}

// PDFText extracts plain text page by page, joining pages with newlines.
// Pages without extractable text contribute nothing.
func PDFText(body []byte) (text string, err error) {
	// the reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf: %v", ErrParse, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", ErrParse, err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		t, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t = strings.TrimSpace(t); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n"), nil
}
