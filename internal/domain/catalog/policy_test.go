package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCategoryPolicyRejectsOverlap(t *testing.T) {
	_, err := NewCategoryPolicy([]string{"Toys", "Bath & Body"}, []string{"bath and body", "Chocolate"})
	require.ErrorIs(t, err, ErrPolicyOverlap)
	assert.Contains(t, err.Error(), "Bath & Body")
}

func TestDefaultCategoryPolicyIsDisjoint(t *testing.T) {
	p := DefaultCategoryPolicy()
	assert.Len(t, p.Whitelist(), len(DefaultWhitelist))
	assert.Len(t, p.Blocklist(), len(DefaultBlocklist))
}

func TestMatchBlocklist(t *testing.T) {
	p := DefaultCategoryPolicy()

	cases := []struct {
		category string
		want     string
		ok       bool
	}{
		{"Beauty", "Beauty", true},
		{"beauty", "Beauty", true},
		{"Beauty & Skincare", "Beauty", true},
		{"Bath & Body", "Bath and Body", true},
		{"Chocolate Gifts", "Chocolate", true},
		{"Stationery", "", false},
		{"Scorecards", "", false},
		{"Electronics", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.category, func(t *testing.T) {
			got, ok := p.MatchBlocklist(tc.category)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestKnownIsExactOnKeys(t *testing.T) {
	p := DefaultCategoryPolicy()
	assert.True(t, p.Known("gadgets"))
	assert.True(t, p.Known("Party Favours & Glow"))
	assert.False(t, p.Known("Garden"))
}

func TestPolicyAccessorsReturnCopies(t *testing.T) {
	p := DefaultCategoryPolicy()
	wl := p.Whitelist()
	wl[0] = "mutated"
	assert.NotEqual(t, "mutated", p.Whitelist()[0])
}

func TestKeyAndURLSafe(t *testing.T) {
	assert.Equal(t, "bath and body", Key("  Bath  &  Body "))
	assert.Equal(t, "bath and body", Key("BATH AND BODY"))
	assert.Equal(t, "Bath and Body", URLSafe("Bath & Body"))
	assert.Equal(t, "Toys", URLSafe("Toys"))
	assert.Equal(t, "abc", Key("ＡＢＣ"))
}

func TestInferAudience(t *testing.T) {
	assert.Equal(t, AudienceKids, InferAudience("Creative kid, age 9"))
	assert.Equal(t, AudienceAdults, InferAudience("Busy dad who likes gadgets"))
}

func TestStyleAnchorMatches(t *testing.T) {
	anchors := DefaultStyleAnchors()
	assert.True(t, anchors[0].Matches("Gift for a 90s kid at heart"))
	assert.True(t, anchors[1].Matches("Something for a friend who loves making things"))
	assert.False(t, anchors[1].Matches("Aircraft model"))
}

func TestContainsWord(t *testing.T) {
	assert.True(t, ContainsWord("Watercolour Paint Kit", "kit"))
	assert.True(t, ContainsWord("Pens & Pencils", "pens and pencils"))
	assert.False(t, ContainsWord("Kitchen Sink Strainer", "kit"))
	assert.False(t, ContainsWord("Toolbox Lollies", "tool"))
	assert.False(t, ContainsWord("Anything", " "))
}
