// Package scoring classifies search results as on-target or drift and
// aggregates the per-query autocheck score.
package scoring

import (
	"giftprobe/internal/domain/catalog"
)

// Drift reasons. The blocklist reason is suffixed with the offending category.
const (
	ReasonBlocklistPrefix = "blocklisted category: "
	ReasonOutOfBudget     = "price out of budget"
	ReasonOutsideList     = "outside whitelist without anchor term"
)

// Criteria are the per-round inputs to scoring besides the policy.
type Criteria struct {
	Budget         catalog.BudgetRange
	MustHaveTokens []string
}

// CriteriaFor derives scoring criteria from the active query.
func CriteriaFor(q catalog.Query) Criteria {
	return Criteria{Budget: q.Constraints.BudgetRange, MustHaveTokens: q.MustHaveTokens}
}

// Scored is the outcome of scoring one result set.
type Scored struct {
	Score     float64
	GoodCount int
	Total     int
	Verdicts  []catalog.Verdict
}

// DriftReasons returns one reason per bad result, in result order.
func (s Scored) DriftReasons() []string {
	var reasons []string
	for _, v := range s.Verdicts {
		if !v.Good {
			reasons = append(reasons, v.Reason)
		}
	}
	return reasons
}

// rule returns a non-empty reason when the result is drift.
type rule struct {
	name  string
	check func(r catalog.ProductResult, policy *catalog.CategoryPolicy, c Criteria) string
}

// rules run in priority order; the first that fires decides the verdict.
var rules = []rule{
	{name: "blocklist", check: blocklistRule},
	{name: "budget", check: budgetRule},
	{name: "whitelist", check: whitelistRule},
}

func blocklistRule(r catalog.ProductResult, policy *catalog.CategoryPolicy, _ Criteria) string {
	for _, category := range r.Categories {
		if _, hit := policy.MatchBlocklist(category); hit {
			return ReasonBlocklistPrefix + category
		}
	}
	return ""
}

func budgetRule(r catalog.ProductResult, _ *catalog.CategoryPolicy, c Criteria) string {
	if !r.HasPrice || c.Budget.IsZero() {
		return ""
	}
	if !c.Budget.Contains(r.Price) {
		return ReasonOutOfBudget
	}
	return ""
}

func whitelistRule(r catalog.ProductResult, policy *catalog.CategoryPolicy, c Criteria) string {
	if !policy.HasWhitelist() {
		return ""
	}
	for _, category := range r.Categories {
		if _, ok := policy.MatchWhitelist(category); ok {
			return ""
		}
	}
	for _, tok := range c.MustHaveTokens {
		if catalog.ContainsWord(r.Title, tok) {
			return ""
		}
	}
	return ReasonOutsideList
}

// Classify judges a single result.
func Classify(r catalog.ProductResult, policy *catalog.CategoryPolicy, c Criteria) catalog.Verdict {
	for _, rl := range rules {
		if reason := rl.check(r, policy, c); reason != "" {
			return catalog.Verdict{ResultID: r.ID, Good: false, Reason: reason}
		}
	}
	return catalog.Verdict{ResultID: r.ID, Good: true}
}

// Score classifies every result and returns good/total. An empty result set
// scores 0. Score is pure and safe for concurrent use.
func Score(results []catalog.ProductResult, policy *catalog.CategoryPolicy, c Criteria) Scored {
	if policy == nil {
		policy = catalog.DefaultCategoryPolicy()
	}
	out := Scored{Total: len(results), Verdicts: make([]catalog.Verdict, 0, len(results))}
	for _, r := range results {
		v := Classify(r, policy, c)
		if v.Good {
			out.GoodCount++
		}
		out.Verdicts = append(out.Verdicts, v)
	}
	if out.Total > 0 {
		out.Score = float64(out.GoodCount) / float64(out.Total)
	}
	return out
}

// ThresholdEpsilon absorbs the rounding in human-written thresholds such as
// 0.67 standing for two thirds.
const ThresholdEpsilon = 0.005

// Passes reports whether score meets threshold.
func Passes(score, threshold float64) bool {
	return score+ThresholdEpsilon >= threshold
}
