package scoring

import (
	"strings"

	"giftprobe/internal/domain/catalog"
)

// Autocheck holds diagnostics reported beside the score. They never change it.
type Autocheck struct {
	DuplicateTitles bool `json:"duplicate_titles"`
	DuplicateIDs    bool `json:"duplicate_ids"`
	// BudgetPassRate is the share of priced results inside the budget; nil
	// when there is no budget or no priced result.
	BudgetPassRate *float64 `json:"budget_pass_rate,omitempty"`
}

// Diagnose computes duplicate and budget diagnostics for a result set.
func Diagnose(results []catalog.ProductResult, budget catalog.BudgetRange) Autocheck {
	var out Autocheck
	titles := make(map[string]struct{}, len(results))
	ids := make(map[string]struct{}, len(results))
	priced, inBudget := 0, 0

	for _, r := range results {
		if t := strings.ToLower(strings.TrimSpace(r.Title)); t != "" {
			if _, ok := titles[t]; ok {
				out.DuplicateTitles = true
			}
			titles[t] = struct{}{}
		}
		if id := strings.TrimSpace(r.ID); id != "" {
			if _, ok := ids[id]; ok {
				out.DuplicateIDs = true
			}
			ids[id] = struct{}{}
		}
		if r.HasPrice && !budget.IsZero() {
			priced++
			if budget.Contains(r.Price) {
				inBudget++
			}
		}
	}
	if priced > 0 {
		rate := float64(inBudget) / float64(priced)
		out.BudgetPassRate = &rate
	}
	return out
}
