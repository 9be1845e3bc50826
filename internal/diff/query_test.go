package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryIdentical(t *testing.T) {
	d := NewGenerator(false).Query("gifts for a maker", "gifts  for a maker")
	assert.False(t, d.Changed())
	assert.Equal(t, "gifts for a maker", d.Inline)
}

func TestQueryAppendedMotifs(t *testing.T) {
	d := NewGenerator(false).Query("retro gift", "retro gift smiley neon")
	assert.Equal(t, []string{"smiley", "neon"}, d.Added)
	assert.Empty(t, d.Removed)
	assert.Equal(t, "retro gift {+smiley neon+}", d.Inline)
}

func TestQueryReplacedWord(t *testing.T) {
	d := NewGenerator(false).Query("cheap tech gift", "premium tech gift")
	assert.Equal(t, []string{"cheap"}, d.Removed)
	assert.Equal(t, []string{"premium"}, d.Added)
	assert.Equal(t, "[-cheap-] {+premium+} tech gift", d.Inline)
}

func TestQueryColour(t *testing.T) {
	d := NewGenerator(true).Query("a", "b")
	assert.Contains(t, d.Inline, "b")
	assert.True(t, d.Changed())
}
