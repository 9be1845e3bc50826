package fixgen

import (
	"context"
	"fmt"
	"strings"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/scoring"
)

// HeuristicConfig tunes the local generator's confidence formula.
type HeuristicConfig struct {
	BaseConfidence float64
	DriftPenalty   float64
	// MaxNegativeTokens caps the tokens derived from one drift category.
	MaxNegativeTokens int
}

// DefaultHeuristicConfig returns base 0.9, step 0.2, two tokens per category.
func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{BaseConfidence: 0.9, DriftPenalty: 0.2, MaxNegativeTokens: 2}
}

// HeuristicGenerator excludes blocklisted drift and anchors the query on
// style motifs. It never calls out and never fails for a well-formed request.
type HeuristicGenerator struct {
	config HeuristicConfig
}

// NewHeuristicGenerator builds the local generator.
func NewHeuristicGenerator(config HeuristicConfig) *HeuristicGenerator {
	if config.MaxNegativeTokens <= 0 {
		config.MaxNegativeTokens = 2
	}
	return &HeuristicGenerator{config: config}
}

func (g *HeuristicGenerator) Name() string { return SourceHeuristic }

func (g *HeuristicGenerator) Propose(ctx context.Context, req Request) (catalog.Fix, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Fix{}, err
	}
	policy := req.Policy
	if policy == nil {
		policy = catalog.DefaultCategoryPolicy()
	}
	anchors := req.Anchors
	if anchors == nil {
		anchors = catalog.DefaultStyleAnchors()
	}

	var excludes, negatives []string
	for _, reason := range req.Round.DriftReasons {
		category, ok := strings.CutPrefix(reason, scoring.ReasonBlocklistPrefix)
		if !ok || strings.TrimSpace(category) == "" {
			continue
		}
		excludes = append(excludes, category)
		negatives = append(negatives, significantWords(category, g.config.MaxNegativeTokens)...)
	}

	base := strings.TrimSpace(req.Case.OriginalQuery)
	if base == "" {
		base = strings.TrimSpace(req.Round.Query.Text)
	}

	var motifs, matched []string
	for _, anchor := range anchors {
		if !anchor.Matches(base) {
			continue
		}
		matched = append(matched, anchor.Label())
		motifs = append(motifs, anchor.Motifs...)
		for _, category := range anchor.Exclude {
			if policy.Known(category) {
				excludes = append(excludes, category)
			}
		}
	}
	motifs = catalog.Dedupe(motifs)

	drift := len(req.Round.DriftReasons)
	fix := catalog.Fix{
		RevisedQueryText:      withMotifs(base, motifs),
		MustHaveTokens:        nonNil(motifs),
		NegativeTokens:        nonNil(catalog.Dedupe(negatives)),
		IncludeCategories:     []string{},
		ExcludeCategories:     nonNil(catalog.Dedupe(excludes)),
		PriceBand:             req.Round.Query.Constraints.Budget,
		Audience:              req.Round.Query.Constraints.Audience,
		Confidence:            clamp01(g.config.BaseConfidence - g.config.DriftPenalty*float64(drift)),
		ExampleTitlesExpected: []string{},
	}
	if fix.PriceBand == "" {
		fix.PriceBand = req.Case.Constraints.Budget
	}
	if fix.Audience == "" {
		fix.Audience = req.Case.Constraints.Audience
	}
	fix.Rationale = rationale(drift, len(fix.ExcludeCategories), matched)
	return fix, nil
}

var stopWords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "with": {}, "of": {}, "kids": {}, "mens": {}, "womens": {},
}

// significantWords lower-cases name and keeps up to limit words that are not
// stop words and longer than two letters.
func significantWords(name string, limit int) []string {
	fields := strings.FieldsFunc(catalog.Key(name), func(r rune) bool {
		return r == ' ' || r == ',' || r == '/' || r == '-' || r == '(' || r == ')'
	})
	var out []string
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out
}

func withMotifs(query string, motifs []string) string {
	lower := strings.ToLower(query)
	var missing []string
	for _, m := range motifs {
		if !strings.Contains(lower, strings.ToLower(m)) {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return query
	}
	if query == "" {
		return strings.Join(missing, ", ")
	}
	return strings.TrimRight(query, ". ") + ", " + strings.Join(missing, ", ")
}

func rationale(drift, excluded int, anchors []string) string {
	var parts []string
	if drift > 0 {
		parts = append(parts, fmt.Sprintf("%d drifting result(s)", drift))
	}
	if excluded > 0 {
		parts = append(parts, fmt.Sprintf("excluded %d categor(ies)", excluded))
	}
	if len(anchors) > 0 {
		parts = append(parts, "anchored on "+strings.Join(anchors, ", ")+" motifs")
	}
	if len(parts) == 0 {
		return "no drift detected; query kept"
	}
	return strings.Join(parts, "; ")
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
