// Package sink persists result rows. Appends are idempotent: a row equal to
// one already stored is skipped.
package sink

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/hyperifyio/goexcerpt/internal/oracle"
)

// ErrWrite marks a failed append. The row is not stored.
var ErrWrite = errors.New("sink: write")

// Columns is the fixed column order shared by every sink.
var Columns = []string{
	"query", "url", "excerpt", "title", "relevancy_score", "keywords", "category", "date",
	"source_authority", "numeric_value", "unit", "value_type", "country", "location", "author", "references",
}

// Row is one flattened result. Every field is text so that equality of the
// full tuple is well defined; absent values are empty strings.
type Row struct {
	Query           string `json:"query"`
	URL             string `json:"url"`
	Excerpt         string `json:"excerpt"`
	Title           string `json:"title"`
	RelevancyScore  string `json:"relevancy_score"`
	Keywords        string `json:"keywords"`
	Category        string `json:"category"`
	Date            string `json:"date"`
	SourceAuthority string `json:"source_authority"`
	NumericValue    string `json:"numeric_value"`
	Unit            string `json:"unit"`
	ValueType       string `json:"value_type"`
	Country         string `json:"country"`
	Location        string `json:"location"`
	Author          string `json:"author"`
	References      string `json:"references"`
}

// NewRow flattens a record for query and url.
func NewRow(query, url string, r *oracle.Record) Row {
	return Row{
		Query:           query,
		URL:             url,
		Excerpt:         r.Excerpt,
		Title:           r.Title,
		RelevancyScore:  formatFloat(r.RelevancyScore),
		Keywords:        strings.Join(r.Keywords, ", "),
		Category:        r.Category,
		Date:            r.Date,
		SourceAuthority: r.SourceAuthority,
		NumericValue:    formatFloat(r.NumericValue),
		Unit:            r.Unit,
		ValueType:       r.ValueType,
		Country:         r.Country,
		Location:        r.Location,
		Author:          r.Author,
		References:      strings.Join(r.References, ", "),
	}
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// Values returns the fields in Columns order.
func (r Row) Values() []string {
	return []string{
		r.Query, r.URL, r.Excerpt, r.Title, r.RelevancyScore, r.Keywords, r.Category, r.Date,
		r.SourceAuthority, r.NumericValue, r.Unit, r.ValueType, r.Country, r.Location, r.Author, r.References,
	}
}

// rowFromValues is the inverse of Values.
func rowFromValues(v []string) Row {
	return Row{
		Query: v[0], URL: v[1], Excerpt: v[2], Title: v[3], RelevancyScore: v[4], Keywords: v[5],
		Category: v[6], Date: v[7], SourceAuthority: v[8], NumericValue: v[9], Unit: v[10],
		ValueType: v[11], Country: v[12], Location: v[13], Author: v[14], References: v[15],
	}
}

// Sink stores rows.
type Sink interface {
	// Append stores row and reports whether it was new. A duplicate is not
	// an error.
	Append(ctx context.Context, row Row) (bool, error)
	Close() error
}
