package search

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"giftprobe/internal/domain/catalog"
	jsonx "giftprobe/internal/shared/json"
)

var (
	listKeys     = []string{"results", "items", "data", "products", "records"}
	idKeys       = []string{"id", "product_id", "sku", "uid"}
	titleKeys    = []string{"title", "name", "product_title", "productName"}
	priceKeys    = []string{"price", "sale_price", "amount", "price_value", "final_price"}
	urlKeys      = []string{"url", "product_url", "link", "permalink", "canonical_url"}
	categoryKeys = []string{"category", "categories", "group_ids"}
	tagKeys      = []string{"tags", "labels"}
	totalKeys    = []string{"total_num_results", "total_results", "total", "count"}

	listSeparators = regexp.MustCompile(`[|,;/]`)
	nonNumeric     = regexp.MustCompile(`[^\d.\-]`)
)

// ParsePage decodes a provider response into a ResultPage. Relative product
// URLs are resolved against urlBase when it is set. A response whose items
// cannot be located yields an empty page; only undecodable JSON is an error.
func ParsePage(body []byte, urlBase string) (catalog.ResultPage, error) {
	var doc any
	if err := jsonx.DecodeNumbers(body, &doc); err != nil {
		return catalog.ResultPage{}, fmt.Errorf("decode search response: %w", err)
	}

	items := extractItems(doc)
	page := catalog.ResultPage{
		Results: make([]catalog.ProductResult, 0, len(items)),
		Facets:  extractFacets(doc),
	}
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		page.Results = append(page.Results, normaliseItem(item, len(page.Results), urlBase))
	}
	page.TotalResults = extractTotal(doc, len(page.Results))
	return page, nil
}

func extractItems(doc any) []any {
	switch v := doc.(type) {
	case []any:
		return v
	case map[string]any:
		for _, k := range listKeys {
			if list, ok := v[k].([]any); ok {
				return list
			}
		}
		resp, ok := v["response"].(map[string]any)
		if !ok {
			return nil
		}
		switch res := resp["results"].(type) {
		case []any:
			return res
		case map[string]any:
			keys := make([]string, 0, len(res))
			for k := range res {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var combined []any
			for _, k := range keys {
				if list, ok := res[k].([]any); ok {
					combined = append(combined, list...)
				}
			}
			if len(combined) > 0 {
				return combined
			}
		}
		if list, ok := resp["items"].([]any); ok {
			return list
		}
	}
	return nil
}

func normaliseItem(item map[string]any, idx int, urlBase string) catalog.ProductResult {
	base := item
	if data, ok := item["data"].(map[string]any); ok {
		base = data
	}

	result := catalog.ProductResult{
		Rank:  idx + 1,
		ID:    firstString(base, idKeys...),
		Title: firstString(base, titleKeys...),
		URL:   firstString(base, urlKeys...),
	}
	if result.ID == "" {
		result.ID = firstString(item, idKeys...)
	}
	if result.Title == "" {
		result.Title = firstString(item, "title", "name", "value")
	}
	if result.URL == "" {
		result.URL = firstString(item, "url", "product_url")
	}
	result.URL = resolveURL(result.URL, urlBase)

	priceRaw := first(base, priceKeys...)
	if priceRaw == nil {
		priceRaw = first(item, "price", "sale_price", "amount")
	}
	result.Price, result.HasPrice = parsePrice(priceRaw)

	result.Categories = listify(first(base, categoryKeys...))
	if len(result.Categories) == 0 {
		result.Categories = groupNames(base["groups"])
	}

	attrs := make(map[string]string)
	if tags := listify(first(base, tagKeys...)); len(tags) > 0 {
		attrs["tags"] = strings.Join(tags, "|")
	}
	if score := first(item, "score", "rank_score", "relevance"); score != nil {
		attrs["score"] = scalarString(score)
	}
	consumed := make(map[string]struct{})
	for _, keys := range [][]string{idKeys, titleKeys, priceKeys, urlKeys, categoryKeys, tagKeys, {"groups"}} {
		for _, k := range keys {
			consumed[k] = struct{}{}
		}
	}
	for k, v := range base {
		if _, skip := consumed[k]; skip {
			continue
		}
		if s := scalarString(v); s != "" {
			attrs[k] = s
		}
	}
	if len(attrs) > 0 {
		result.Attributes = attrs
	}
	return result
}

func extractFacets(doc any) map[string]int {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	facets := make(map[string]int)
	scopes := []map[string]any{root}
	if resp, ok := root["response"].(map[string]any); ok {
		scopes = append(scopes, resp)
	}
	for _, scope := range scopes {
		switch f := scope["facets"].(type) {
		case []any:
			for _, raw := range f {
				facet, ok := raw.(map[string]any)
				if !ok || !isCategoryFacet(firstString(facet, "name", "display_name")) {
					continue
				}
				options, _ := facet["options"].([]any)
				for _, rawOpt := range options {
					opt, ok := rawOpt.(map[string]any)
					if !ok {
						continue
					}
					if name := firstString(opt, "display_name", "value", "name"); name != "" {
						facets[name] += intValue(opt["count"])
					}
				}
			}
		case map[string]any:
			for name, count := range f {
				if n := intValue(count); n > 0 {
					facets[name] += n
				}
			}
		}
		collectGroups(scope["groups"], facets)
	}
	if len(facets) == 0 {
		return nil
	}
	return facets
}

func isCategoryFacet(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "categor") || strings.Contains(n, "group")
}

func collectGroups(raw any, facets map[string]int) {
	groups, ok := raw.([]any)
	if !ok {
		return
	}
	for _, rawGroup := range groups {
		group, ok := rawGroup.(map[string]any)
		if !ok {
			continue
		}
		if name := firstString(group, "display_name", "name"); name != "" {
			facets[name] += intValue(group["count"])
		}
		collectGroups(group["children"], facets)
	}
}

func groupNames(raw any) []string {
	groups, ok := raw.([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, rawGroup := range groups {
		if group, ok := rawGroup.(map[string]any); ok {
			if name := firstString(group, "display_name", "name"); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func extractTotal(doc any, fallback int) int {
	root, ok := doc.(map[string]any)
	if !ok {
		return fallback
	}
	scopes := []map[string]any{root}
	if resp, ok := root["response"].(map[string]any); ok {
		scopes = append([]map[string]any{resp}, scopes...)
	}
	for _, scope := range scopes {
		if n := intValue(first(scope, totalKeys...)); n > 0 {
			return n
		}
	}
	return fallback
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	return strings.TrimSpace(scalarString(first(m, keys...)))
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case jsonx.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func intValue(v any) int {
	switch t := v.(type) {
	case jsonx.Number:
		if n, err := t.Int64(); err == nil {
			return int(n)
		}
		if f, err := t.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return 0
}

func parsePrice(v any) (float64, bool) {
	s := nonNumeric.ReplaceAllString(scalarString(v), "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// listify accepts a list or a delimited string and returns trimmed entries.
func listify(v any) []string {
	var parts []string
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range t {
			if s := scalarString(item); s != "" {
				parts = append(parts, s)
			} else if m, ok := item.(map[string]any); ok {
				parts = append(parts, firstString(m, "display_name", "name", "value"))
			}
		}
	default:
		parts = listSeparators.Split(scalarString(t), -1)
	}
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || base == "" {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		return raw
	}
	baseURL, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return raw
	}
	ref, err := url.Parse(strings.TrimLeft(raw, "/"))
	if err != nil {
		return raw
	}
	return baseURL.ResolveReference(ref).String()
}
