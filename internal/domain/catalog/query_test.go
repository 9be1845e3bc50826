package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestWithFixMergesAndDoesNotMutate(t *testing.T) {
	budget, _ := ParseBudget("$100+")
	base := Query{
		Text:              "tech gadget gift",
		Constraints:       Constraints{Budget: "$100+", BudgetRange: budget, Audience: AudienceAdults},
		IncludeCategories: []string{"Gadgets", "Cards"},
		MustHaveTokens:    []string{"wireless"},
	}

	next := base.WithFix(Fix{
		RevisedQueryText:  "wireless tech gadget gift for adults",
		MustHaveTokens:    []string{"Wireless", "bluetooth", "chocolate"},
		NegativeTokens:    []string{"chocolate"},
		IncludeCategories: []string{"Electronics"},
		ExcludeCategories: []string{"Cards", "Chocolate"},
		PriceBand:         "not a budget",
	})

	want := Query{
		Text:              "wireless tech gadget gift for adults",
		Constraints:       base.Constraints,
		IncludeCategories: []string{"Gadgets", "Electronics"},
		ExcludeCategories: []string{"Cards", "Chocolate"},
		MustHaveTokens:    []string{"wireless", "bluetooth"},
		NegativeTokens:    []string{"chocolate"},
		Revision:          1,
	}
	if diff := cmp.Diff(want, next); diff != "" {
		t.Fatalf("WithFix mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Gadgets", "Cards"}, base.IncludeCategories)
	assert.Zero(t, base.Revision)
}

func TestWithFixUpdatesBudgetAndAudienceWhenProvided(t *testing.T) {
	next := Query{Text: "gift"}.WithFix(Fix{PriceBand: "under $20", Audience: AudienceKids})
	assert.Equal(t, "under $20", next.Constraints.Budget)
	assert.True(t, next.Constraints.BudgetRange.HasMax)
	assert.Equal(t, AudienceKids, next.Constraints.Audience)
	assert.Equal(t, "gift", next.Text)
}

func TestNaturalLanguageWeavesTokens(t *testing.T) {
	q := Query{
		Text:           "retro gift for a 90s fan.",
		MustHaveTokens: []string{"retro", "smiley"},
		NegativeTokens: []string{"chocolate", "lollies"},
	}
	assert.Equal(t, "retro gift for a 90s fan, smiley. Exclude chocolate, lollies.", q.NaturalLanguage())

	assert.Equal(t, "plain", Query{Text: " plain "}.NaturalLanguage())
}
