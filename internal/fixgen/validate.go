package fixgen

import (
	"fmt"
	"strings"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/scoring"
)

// ValidationError lists every problem found in a fix.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid fix: " + strings.Join(e.Problems, "; ")
}

// Validate checks a fix before it is applied. Categories must be known to
// the policy or the current facets; exclusions may also name any category
// the round flagged as blocklisted.
func Validate(fix catalog.Fix, policy *catalog.CategoryPolicy, facets map[string]int, driftReasons []string) error {
	var problems []string
	if strings.TrimSpace(fix.RevisedQueryText) == "" {
		problems = append(problems, "revised_query_text is empty")
	}
	if fix.Confidence < 0 || fix.Confidence > 1 {
		problems = append(problems, fmt.Sprintf("confidence %.2f outside [0,1]", fix.Confidence))
	}

	known := func(category string) bool {
		if policy != nil && policy.Known(category) {
			return true
		}
		key := catalog.Key(category)
		for facet := range facets {
			if catalog.Key(facet) == key {
				return true
			}
		}
		return false
	}
	drifted := make(map[string]struct{})
	for _, reason := range driftReasons {
		if category, ok := strings.CutPrefix(reason, scoring.ReasonBlocklistPrefix); ok {
			drifted[catalog.Key(category)] = struct{}{}
		}
	}

	for _, c := range fix.IncludeCategories {
		if !known(c) {
			problems = append(problems, fmt.Sprintf("unknown include category %q", c))
		}
	}
	for _, c := range fix.ExcludeCategories {
		if known(c) {
			continue
		}
		if _, ok := drifted[catalog.Key(c)]; ok {
			continue
		}
		if policy != nil {
			if _, ok := policy.MatchBlocklist(c); ok {
				continue
			}
		}
		problems = append(problems, fmt.Sprintf("unknown exclude category %q", c))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
