package odatatable

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandItem is one $expand entry with its nested options.
type ExpandItem struct {
	Name   string       `json:"name"`
	Select []string     `json:"select,omitempty"`
	Expand []ExpandItem `json:"expand,omitempty"`
}

// QueryOptions holds the OData system query options a table state maps to.
type QueryOptions struct {
	Select  []string     `json:"select,omitempty"`
	Search  string       `json:"search,omitempty"`
	Filter  []string     `json:"filter,omitempty"`
	Expand  []ExpandItem `json:"expand,omitempty"`
	OrderBy []string     `json:"orderBy,omitempty"`
	Count   bool         `json:"count,omitempty"`
	Top     *int         `json:"top,omitempty"`
	Skip    *int         `json:"skip,omitempty"`
}

// Param is a single rendered query option.
type Param struct {
	Key   string
	Value string
}

func intPtr(v int) *int {
	return &v
}

// MergeQueryOptions merges fragments left to right; later non-empty fields win.
func MergeQueryOptions(parts ...QueryOptions) QueryOptions {
	var merged QueryOptions
	for _, part := range parts {
		if len(part.Select) > 0 {
			merged.Select = part.Select
		}
		if part.Search != "" {
			merged.Search = part.Search
		}
		if len(part.Filter) > 0 {
			merged.Filter = part.Filter
		}
		if len(part.Expand) > 0 {
			merged.Expand = part.Expand
		}
		if len(part.OrderBy) > 0 {
			merged.OrderBy = part.OrderBy
		}
		if part.Count {
			merged.Count = true
		}
		if part.Top != nil {
			merged.Top = part.Top
		}
		if part.Skip != nil {
			merged.Skip = part.Skip
		}
	}
	return merged
}

// Params renders the options in the fixed order
// $select, $search, $filter, $expand, $orderby, $count, $top, $skip.
func (q QueryOptions) Params() []Param {
	var params []Param
	if len(q.Select) > 0 {
		params = append(params, Param{"$select", strings.Join(q.Select, ",")})
	}
	if q.Search != "" {
		params = append(params, Param{"$search", q.Search})
	}
	if filter := FormatFilter(q.Filter); filter != "" {
		params = append(params, Param{"$filter", filter})
	}
	if expand := FormatExpand(q.Expand); expand != "" {
		params = append(params, Param{"$expand", expand})
	}
	if len(q.OrderBy) > 0 {
		params = append(params, Param{"$orderby", strings.Join(q.OrderBy, ",")})
	}
	if q.Count {
		params = append(params, Param{"$count", "true"})
	}
	if q.Top != nil {
		params = append(params, Param{"$top", strconv.Itoa(*q.Top)})
	}
	if q.Skip != nil {
		params = append(params, Param{"$skip", strconv.Itoa(*q.Skip)})
	}
	return params
}

// String renders the readable query string, "" when no option is set.
func (q QueryOptions) String() string {
	return joinParams(q.Params(), func(s string) string { return s })
}

// Encode renders the query string with values escaped for the wire.
func (q QueryOptions) Encode() string {
	return joinParams(q.Params(), EscapeQueryValue)
}

func joinParams(params []Param, escape func(string) string) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.Key+"="+escape(p.Value))
	}
	return "?" + strings.Join(parts, "&")
}

// FormatFilter joins filter expressions with "and". A single expression is
// returned as is, several are each wrapped in parentheses.
func FormatFilter(filters []string) string {
	terms := []string{}
	for _, f := range filters {
		if strings.TrimSpace(f) != "" {
			terms = append(terms, f)
		}
	}
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return terms[0]
	}
	wrapped := make([]string, 0, len(terms))
	for _, term := range terms {
		wrapped = append(wrapped, fmt.Sprintf("(%s)", term))
	}
	return strings.Join(wrapped, " and ")
}

// FormatExpand renders expand items, e.g. "Supplier($select=Name;$expand=Products)".
func FormatExpand(items []ExpandItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		var nested []string
		if len(item.Select) > 0 {
			nested = append(nested, "$select="+strings.Join(item.Select, ","))
		}
		if len(item.Expand) > 0 {
			nested = append(nested, "$expand="+FormatExpand(item.Expand))
		}
		if len(nested) == 0 {
			parts = append(parts, item.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", item.Name, strings.Join(nested, ";")))
	}
	return strings.Join(parts, ",")
}

// EscapeQueryValue percent-encodes a query option value, keeping OData
// punctuation readable.
func EscapeQueryValue(s string) string {
	var sb strings.Builder
	for idx := 0; idx < len(s); idx++ {
		c := s[idx]
		if keepUnescaped(c) {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", c)
	}
	return sb.String()
}

func keepUnescaped(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~$,()'/;=:@!*", c) >= 0
}

// RequestURL joins a resource address and an encoded query string.
func RequestURL(baseAddress string, q QueryOptions) string {
	return baseAddress + q.Encode()
}
