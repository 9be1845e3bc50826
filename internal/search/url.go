// Package search talks to the natural-language product search API: it
// renders queries as request URLs, fetches and normalises result pages.
package search

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"giftprobe/internal/domain/catalog"
	jsonx "giftprobe/internal/shared/json"
)

// DefaultBaseURL is the natural-language search endpoint.
const DefaultBaseURL = "https://ac.cnstrc.com/v1/search/natural_language/"

// DefaultClientTag identifies the calling client to the search API.
const DefaultClientTag = "ciojs-client-2.66.2"

const (
	nlSegment     = "natural_language"
	priceParam    = "filters[Price]"
	prefilterName = "pre_filter_expression"
)

var (
	// ErrMissingAPIKey is returned when a URL must be built without an API key.
	ErrMissingAPIKey = errors.New("search: api key not configured")
	// ErrNotRevisable is returned when a source URL is not an http(s) search URL.
	ErrNotRevisable = errors.New("search: source url cannot be revised")
)

// PrefilterTerm excludes every item whose facet Name has Value.
type PrefilterTerm struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// DefaultPrefilterNot hides kids, baby and pet products from adult gift searches.
var DefaultPrefilterNot = []PrefilterTerm{
	{"Audience", "Kids"},
	{"Suitable for ages", "0-24 Months"},
	{"Suitable for ages", "2-4 Years"},
	{"Suitable for ages", "3+ Years"},
	{"Suitable for ages", "5+ Years"},
	{"Suitable for ages", "6+ Years"},
	{"Suitable for ages", "8+ Years"},
	{"Suitable for ages", "10+ Years"},
	{"Suitable for ages", "12-15 Years"},
	{"Suitable for ages", "14+ Years"},
	{"Shop By Pet", "Dog"},
	{"Shop By Pet", "Cat"},
	{"Shop By Pet", "Fish"},
}

// URLBuilder renders queries as search API URLs.
type URLBuilder struct {
	BaseURL       string
	APIKey        string
	Session       string
	PerPage       int
	SortBy        string
	SortOrder     string
	ClientTag     string
	CategoryField string
	PrefilterNot  []PrefilterTerm
}

// NewURLBuilder returns a builder with the API defaults filled in.
func NewURLBuilder(apiKey string) URLBuilder {
	return URLBuilder{
		BaseURL:       DefaultBaseURL,
		APIKey:        apiKey,
		Session:       "1",
		PerPage:       50,
		SortBy:        "relevance",
		SortOrder:     "descending",
		ClientTag:     DefaultClientTag,
		CategoryField: "Category",
		PrefilterNot:  DefaultPrefilterNot,
	}
}

type param struct{ key, value string }

// Build renders q as a fresh search URL for the first page.
func (b URLBuilder) Build(q catalog.Query) (string, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return "", ErrMissingAPIKey
	}
	base := b.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	perPage := b.PerPage
	if perPage <= 0 {
		perPage = 50
	}

	params := []param{
		{"key", b.APIKey},
		{"s", orDefault(b.Session, "1")},
		{"page", "1"},
		{"num_results_per_page", strconv.Itoa(perPage)},
		{"sort_by", orDefault(b.SortBy, "relevance")},
		{"sort_order", orDefault(b.SortOrder, "descending")},
		{"c", orDefault(b.ClientTag, DefaultClientTag)},
	}
	budgetSet := !q.Constraints.BudgetRange.IsZero()
	for _, f := range q.Filters {
		if budgetSet && strings.EqualFold(f.Key, "Price") {
			continue
		}
		params = append(params, param{"filters[" + f.Key + "]", f.Value})
	}
	params = b.appendCategoryFilters(params, q.IncludeCategories)
	if budgetSet {
		params = append(params, param{priceParam, q.Constraints.BudgetRange.FilterValue()})
	}
	if terms := b.prefilterTerms(q); len(terms) > 0 {
		expr, err := prefilterExpression(terms)
		if err != nil {
			return "", err
		}
		params = append(params, param{prefilterName, expr})
	}

	return strings.TrimRight(base, "/") + "/" + escape(q.NaturalLanguage()) + "?" + encode(params), nil
}

// Revise rewrites an existing search URL for q: the natural-language path
// segment is replaced, category filters are added, and the price filter is
// replaced when q carries a budget. Other parameters are kept in order.
func (b URLBuilder) Revise(sourceURL string, q catalog.Query) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrNotRevisable, sourceURL)
	}

	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, seg := range segments {
		if seg == nlSegment && i+1 < len(segments) {
			segments = append(segments[:i+1], escape(q.NaturalLanguage()))
			break
		}
	}
	path := "/" + strings.Join(segments, "/")

	params := decode(u.RawQuery)
	params = b.appendCategoryFilters(params, q.IncludeCategories)
	if !q.Constraints.BudgetRange.IsZero() {
		kept := params[:0:0]
		for _, p := range params {
			if p.key != priceParam {
				kept = append(kept, p)
			}
		}
		params = append(kept, param{priceParam, q.Constraints.BudgetRange.FilterValue()})
	}
	if excludes := b.excludeTerms(q.ExcludeCategories); len(excludes) > 0 {
		params, err = mergePrefilter(params, excludes)
		if err != nil {
			return "", err
		}
	}

	out := u.Scheme + "://" + u.Host + path
	if len(params) > 0 {
		out += "?" + encode(params)
	}
	return out, nil
}

func (b URLBuilder) categoryField() string {
	return orDefault(b.CategoryField, "Category")
}

func (b URLBuilder) appendCategoryFilters(params []param, categories []string) []param {
	key := "filters[" + b.categoryField() + "]"
	present := make(map[string]struct{})
	for _, p := range params {
		if p.key == key {
			present[catalog.Key(p.value)] = struct{}{}
		}
	}
	for _, c := range categories {
		v := catalog.URLSafe(c)
		if v == "" {
			continue
		}
		if _, ok := present[catalog.Key(v)]; ok {
			continue
		}
		present[catalog.Key(v)] = struct{}{}
		params = append(params, param{key, v})
	}
	return params
}

func (b URLBuilder) excludeTerms(categories []string) []PrefilterTerm {
	terms := make([]PrefilterTerm, 0, len(categories))
	for _, c := range categories {
		if v := catalog.URLSafe(c); v != "" {
			terms = append(terms, PrefilterTerm{Name: b.categoryField(), Value: v})
		}
	}
	return terms
}

// prefilterTerms drops the audience and age exclusions for kids' queries,
// then appends the query's excluded categories.
func (b URLBuilder) prefilterTerms(q catalog.Query) []PrefilterTerm {
	kids := strings.EqualFold(q.Constraints.Audience, catalog.AudienceKids)
	terms := make([]PrefilterTerm, 0, len(b.PrefilterNot)+len(q.ExcludeCategories))
	for _, t := range b.PrefilterNot {
		if kids && (t.Name == "Audience" || t.Name == "Suitable for ages") {
			continue
		}
		terms = append(terms, t)
	}
	return append(terms, b.excludeTerms(q.ExcludeCategories)...)
}

type prefilter struct {
	Not struct {
		Or []PrefilterTerm `json:"or"`
	} `json:"not"`
}

func prefilterExpression(terms []PrefilterTerm) (string, error) {
	var expr prefilter
	expr.Not.Or = terms
	data, err := jsonx.Marshal(expr)
	if err != nil {
		return "", fmt.Errorf("encode prefilter: %w", err)
	}
	return string(data), nil
}

// mergePrefilter adds terms to an existing not/or pre-filter expression, or
// appends a new one. An expression of any other shape is left alone and a
// second expression is not added.
func mergePrefilter(params []param, terms []PrefilterTerm) ([]param, error) {
	for i, p := range params {
		if p.key != prefilterName {
			continue
		}
		var expr prefilter
		if err := jsonx.Unmarshal([]byte(p.value), &expr); err != nil || expr.Not.Or == nil {
			return params, nil
		}
		seen := make(map[PrefilterTerm]struct{}, len(expr.Not.Or))
		for _, t := range expr.Not.Or {
			seen[t] = struct{}{}
		}
		for _, t := range terms {
			if _, ok := seen[t]; !ok {
				expr.Not.Or = append(expr.Not.Or, t)
			}
		}
		value, err := prefilterExpression(expr.Not.Or)
		if err != nil {
			return nil, err
		}
		params[i].value = value
		return params, nil
	}
	value, err := prefilterExpression(terms)
	if err != nil {
		return nil, err
	}
	return append(params, param{prefilterName, value}), nil
}

// escape percent-encodes s as a single path segment or query component,
// using %20 for spaces.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func encode(params []param) string {
	var sb strings.Builder
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(escape(p.key))
		sb.WriteByte('=')
		sb.WriteString(escape(p.value))
	}
	return sb.String()
}

// decode parses a raw query string keeping parameter order.
func decode(raw string) []param {
	var params []param
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			value = v
		}
		params = append(params, param{key, value})
	}
	return params
}

// NaturalLanguageFromURL extracts the decoded query text from a search URL,
// or "" when the URL has no natural-language segment.
func NaturalLanguageFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, seg := range segments {
		if seg == nlSegment && i+1 < len(segments) {
			text, err := url.PathUnescape(segments[i+1])
			if err != nil {
				return ""
			}
			return text
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
