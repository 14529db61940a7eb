package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrTransport marks a failed oracle call.
	ErrTransport = errors.New("oracle: transport")
	// ErrSchema marks a response that does not match the record schema.
	ErrSchema = errors.New("oracle: schema")
)

// requiredKeys must all be present in a response, even when null.
var requiredKeys = []string{
	"excerpt", "title", "category", "date", "source_authority", "numeric_value", "unit",
	"value_type", "country", "location", "author", "keywords", "relevancy_score", "references",
}

// wireRecord mirrors Record with types that accept the oracle's loose
// spelling of absence (null, "--", "") and nothing else.
type wireRecord struct {
	Excerpt         optString `json:"excerpt"`
	Title           optString `json:"title"`
	Category        optString `json:"category"`
	Date            optString `json:"date"`
	SourceAuthority optString `json:"source_authority"`
	NumericValue    optFloat  `json:"numeric_value"`
	Unit            optString `json:"unit"`
	ValueType       optString `json:"value_type"`
	Country         optString `json:"country"`
	Location        optString `json:"location"`
	Author          optString `json:"author"`
	Keywords        optList   `json:"keywords"`
	RelevancyScore  optFloat  `json:"relevancy_score"`
	References      optList   `json:"references"`
}

// Decode parses a raw oracle answer into a Record. Missing keys, non-JSON
// payloads and type mismatches are ErrSchema; nothing is defaulted silently.
func Decode(raw string) (*Record, error) {
	body := []byte(stripFences(raw))
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing keys %s", ErrSchema, strings.Join(missing, ","))
	}
	var w wireRecord
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	r := &Record{
		Excerpt:         string(w.Excerpt),
		Title:           string(w.Title),
		Category:        string(w.Category),
		Date:            string(w.Date),
		SourceAuthority: string(w.SourceAuthority),
		NumericValue:    w.NumericValue.ptr,
		Unit:            string(w.Unit),
		ValueType:       string(w.ValueType),
		Country:         string(w.Country),
		Location:        string(w.Location),
		Author:          string(w.Author),
		Keywords:        []string(w.Keywords),
		RelevancyScore:  w.RelevancyScore.ptr,
		References:      []string(w.References),
	}
	r.clean()
	return r, nil
}

// stripFences removes a ```json ... ``` wrapper some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

type optString string

func (o *optString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*o = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*o = optString(s)
	return nil
}

type optFloat struct{ ptr *float64 }

func (o *optFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		o.ptr = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" || s == placeholder {
			o.ptr = nil
			return nil
		}
		// numbers quoted as strings are accepted, prose is not
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		o.ptr = &f
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	o.ptr = &f
	return nil
}

type optList []string

func (o *optList) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*o = nil
		return nil
	}
	if b[0] == '"' {
		// a single comma-separated string instead of an array
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = strings.Split(s, ",")
		return nil
	}
	var l []string
	if err := json.Unmarshal(b, &l); err != nil {
		return err
	}
	*o = l
	return nil
}
