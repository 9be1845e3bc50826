package catalog

import "strings"

// Query is the active query state for one round: what the refinement loop
// hands to the search runner.
type Query struct {
	Text              string       `json:"text"`
	Constraints       Constraints  `json:"constraints"`
	IncludeCategories []string     `json:"include_categories,omitempty"`
	ExcludeCategories []string     `json:"exclude_categories,omitempty"`
	MustHaveTokens    []string     `json:"must_have_tokens,omitempty"`
	NegativeTokens    []string     `json:"negative_tokens,omitempty"`
	Filters           []FilterPair `json:"filters,omitempty"`
	SourceURL         string       `json:"source_url,omitempty"`
	// Revision counts the fixes applied since the test case was loaded.
	Revision int `json:"revision"`
}

// InitialQuery is the round-0 query of a test case.
func InitialQuery(tc TestCase) Query {
	return Query{
		Text:        tc.OriginalQuery,
		Constraints: tc.Constraints,
		Filters:     append([]FilterPair(nil), tc.FilterPairs...),
		SourceURL:   tc.SourceURL,
	}
}

// NaturalLanguage renders the text sent to a natural-language search
// endpoint: the query, any must-have tokens it does not already mention,
// and negative tokens as a trailing "Exclude a, b." clause.
func (q Query) NaturalLanguage() string {
	text := strings.TrimSpace(q.Text)
	lower := strings.ToLower(text)

	var missing []string
	for _, tok := range q.MustHaveTokens {
		if !strings.Contains(lower, strings.ToLower(tok)) {
			missing = append(missing, tok)
		}
	}
	if len(missing) > 0 {
		text = strings.TrimRight(text, ". ")
		if text != "" {
			text += ", "
		}
		text += strings.Join(missing, ", ")
	}

	if len(q.NegativeTokens) > 0 {
		text = strings.TrimRight(text, ". ") + ". Exclude " + strings.Join(q.NegativeTokens, ", ") + "."
	}
	return text
}

// WithFix returns the query for the next round. The receiver is not modified.
// Query text is replaced when the fix carries one. Token and category lists
// are merged; a category excluded now is dropped from the include list and a
// token marked negative is dropped from the must-have list. Budget and
// audience change only when the fix supplies a usable value.
func (q Query) WithFix(fix Fix) Query {
	next := q
	next.Revision = q.Revision + 1

	if text := strings.TrimSpace(fix.RevisedQueryText); text != "" {
		next.Text = text
	}

	next.NegativeTokens = Dedupe(append(append([]string(nil), q.NegativeTokens...), fix.NegativeTokens...))
	next.MustHaveTokens = without(Dedupe(append(append([]string(nil), q.MustHaveTokens...), fix.MustHaveTokens...)), next.NegativeTokens)

	next.ExcludeCategories = Dedupe(append(append([]string(nil), q.ExcludeCategories...), fix.ExcludeCategories...))
	next.IncludeCategories = without(Dedupe(append(append([]string(nil), q.IncludeCategories...), fix.IncludeCategories...)), next.ExcludeCategories)

	if band := strings.TrimSpace(fix.PriceBand); band != "" {
		if r, err := ParseBudget(band); err == nil && !r.IsZero() {
			next.Constraints.Budget = band
			next.Constraints.BudgetRange = r
		}
	}
	if audience := strings.TrimSpace(fix.Audience); audience != "" {
		next.Constraints.Audience = audience
	}
	return next
}

func without(values, drop []string) []string {
	if len(values) == 0 || len(drop) == 0 {
		return values
	}
	dropped := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		dropped[Key(d)] = struct{}{}
	}
	out := values[:0:0]
	for _, v := range values {
		if _, ok := dropped[Key(v)]; !ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
