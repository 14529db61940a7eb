package oracle

import "strings"

// Record is the structured answer for one source: the most relevant excerpt
// plus metadata. Numeric and date fields are carried as the oracle produced
// them; only presence is checked.
type Record struct {
	Excerpt         string   `json:"excerpt"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Date            string   `json:"date"`
	SourceAuthority string   `json:"source_authority"`
	NumericValue    *float64 `json:"numeric_value"`
	Unit            string   `json:"unit"`
	ValueType       string   `json:"value_type"`
	Country         string   `json:"country"`
	Location        string   `json:"location"`
	Author          string   `json:"author"`
	Keywords        []string `json:"keywords"`
	RelevancyScore  *float64 `json:"relevancy_score"`
	References      []string `json:"references"`
}

// Sentinel is what the oracle answers in the excerpt field when nothing in
// the text qualifies.
const Sentinel = "NO_RELEVANT_CONTENT"

// placeholder is how unavailable fields come back when the model ignores the
// null instruction.
const placeholder = "--"

// IsEmpty reports whether the record carries no usable excerpt. Empty
// records are never persisted.
func (r *Record) IsEmpty() bool {
	if r == nil {
		return true
	}
	return isSentinel(r.Excerpt)
}

func isSentinel(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || s == placeholder {
		return true
	}
	u := strings.ToUpper(strings.Trim(s, ".\"' "))
	return u == Sentinel || u == "NO RELEVANT INFORMATION FOUND" || u == "NO RELEVANT CONTENT"
}

// clean trims all string fields and turns placeholders into absence.
func (r *Record) clean() {
	for _, p := range []*string{&r.Excerpt, &r.Title, &r.Category, &r.Date, &r.SourceAuthority,
		&r.Unit, &r.ValueType, &r.Country, &r.Location, &r.Author} {
		*p = strings.TrimSpace(*p)
		if *p == placeholder {
			*p = ""
		}
	}
	r.Keywords = cleanList(r.Keywords)
	r.References = cleanList(r.References)
}

func cleanList(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" && s != placeholder {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
