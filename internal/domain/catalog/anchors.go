package catalog

import "strings"

// StyleAnchor ties trigger words in a query to motif tokens that keep
// results on-theme, plus categories known to drift for that theme.
type StyleAnchor struct {
	Name     string   `json:"name" yaml:"name"`
	Triggers []string `json:"triggers" yaml:"triggers"`
	Motifs   []string `json:"motifs" yaml:"motifs"`
	Exclude  []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// Matches reports whether any trigger occurs in text on word boundaries.
func (a StyleAnchor) Matches(text string) bool {
	key := Key(text)
	for _, trigger := range a.Triggers {
		if containsOnBoundary(key, Key(trigger)) {
			return true
		}
	}
	return false
}

// DefaultStyleAnchors returns the built-in anchor table.
func DefaultStyleAnchors() []StyleAnchor {
	return []StyleAnchor{
		{
			Name:     "nineties",
			Triggers: []string{"90s", "1990s", "nineties", "retro", "y2k", "nostalgia", "nostalgic"},
			Motifs:   []string{"90s", "retro", "smiley", "butterfly clips", "checkerboard", "neon", "Hello Kitty"},
			Exclude:  []string{"Beauty", "Hand Care", "Bath and Body"},
		},
		{
			Name:     "maker",
			Triggers: []string{"making things", "maker", "make things", "crafty", "crafter", "craft", "diy", "handmade"},
			Motifs:   []string{"tool", "kit", "set", "materials", "craft", "DIY"},
			Exclude:  []string{"Chocolate", "Novelty Confectionery", "Beauty", "Skincare", "Bath and Body"},
		},
	}
}

// CloneAnchors deep-copies an anchor table.
func CloneAnchors(anchors []StyleAnchor) []StyleAnchor {
	out := make([]StyleAnchor, len(anchors))
	for i, a := range anchors {
		out[i] = StyleAnchor{
			Name:     a.Name,
			Triggers: append([]string(nil), a.Triggers...),
			Motifs:   append([]string(nil), a.Motifs...),
			Exclude:  append([]string(nil), a.Exclude...),
		}
	}
	return out
}

// Label returns a human-readable anchor name.
func (a StyleAnchor) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return strings.Join(a.Triggers, "/")
}
