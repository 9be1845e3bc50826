package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBudget(t *testing.T) {
	cases := []struct {
		in   string
		want BudgetRange
	}{
		{"", BudgetRange{}},
		{"$100+", BudgetRange{Min: 100, HasMin: true}},
		{"$20–$60", BudgetRange{Min: 20, Max: 60, HasMin: true, HasMax: true}},
		{"60-20", BudgetRange{Min: 20, Max: 60, HasMin: true, HasMax: true}},
		{"50-inf", BudgetRange{Min: 50, HasMin: true}},
		{"under 30", BudgetRange{Max: 30, HasMax: true}},
		{"Under $30", BudgetRange{Max: 30, HasMax: true}},
		{"≤ 25", BudgetRange{Max: 25, HasMax: true}},
		{"over $40", BudgetRange{Min: 40, HasMin: true}},
		{"AUD 1,000+", BudgetRange{Min: 1000, HasMin: true}},
		{"30", BudgetRange{Min: 24, Max: 36, HasMin: true, HasMax: true}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseBudget(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want.HasMin, got.HasMin)
			assert.Equal(t, tc.want.HasMax, got.HasMax)
			assert.InDelta(t, tc.want.Min, got.Min, 1e-9)
			assert.InDelta(t, tc.want.Max, got.Max, 1e-9)
		})
	}
}

func TestParseBudgetRejectsUnknownText(t *testing.T) {
	_, err := ParseBudget("whatever feels right")
	require.ErrorIs(t, err, ErrInvalidBudget)
}

func TestBudgetRangeContains(t *testing.T) {
	r, err := ParseBudget("$100+")
	require.NoError(t, err)
	assert.True(t, r.Contains(100))
	assert.True(t, r.Contains(250))
	assert.False(t, r.Contains(12))

	assert.True(t, BudgetRange{}.Contains(1e9))
}

func TestBudgetRangeRendering(t *testing.T) {
	r, _ := ParseBudget("20-60")
	assert.Equal(t, "20-60", r.FilterValue())
	assert.Equal(t, "$20–$60", r.String())

	r, _ = ParseBudget("$100+")
	assert.Equal(t, "100-inf", r.FilterValue())
	assert.Equal(t, "$100+", r.String())

	r, _ = ParseBudget("under 30")
	assert.Equal(t, "0-30", r.FilterValue())
	assert.Equal(t, "under $30", r.String())

	round, err := ParseBudget(r.String())
	require.NoError(t, err)
	assert.Equal(t, r, round)
}

func TestPriceLockToText(t *testing.T) {
	assert.Equal(t, "$50+", PriceLockToText("filters[Price]=50-inf"))
	assert.Equal(t, "$0–$20", PriceLockToText("filters%5BPrice%5D%3D0-20"))
	assert.Equal(t, "$30", PriceLockToText("[Price]=30"))
	assert.Equal(t, "", PriceLockToText("filters[Category]=Toys"))
	assert.Equal(t, "", PriceLockToText(""))
}
