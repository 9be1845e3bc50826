package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPolicyOverlap is returned when a category is both whitelisted and blocklisted.
var ErrPolicyOverlap = errors.New("category policy: whitelist and blocklist overlap")

// DefaultWhitelist is the built-in set of gift-worthy categories.
var DefaultWhitelist = []string{
	"Craft Supplies", "Artistry", "Jewellery Making", "Jewellery", "Hair Accessories",
	"Yarn and Haberdashery", "Stationery", "Notebooks and Journals", "Drawing and Colouring",
	"Electronics", "Gadgets", "Tech", "Gaming", "Cameras", "Toys", "Board Games and Puzzles",
}

// DefaultBlocklist is the built-in set of categories that count as drift.
var DefaultBlocklist = []string{
	"Beauty", "Skincare", "Bath and Body", "Hand Care", "Perfumes and Fragrances", "Cards",
	"Gift Bags", "Party Favours and Glow", "Chocolate", "Lollies and Candies",
	"Kids Art, Craft and Stationery", "Novelty Confectionery",
}

type policyEntry struct {
	name string
	key  string
}

// CategoryPolicy is the immutable whitelist/blocklist pair. It is safe for
// concurrent use.
type CategoryPolicy struct {
	whitelist []policyEntry
	blocklist []policyEntry
}

// NewCategoryPolicy builds a policy, rejecting any category present in both lists.
func NewCategoryPolicy(whitelist, blocklist []string) (*CategoryPolicy, error) {
	p := &CategoryPolicy{
		whitelist: entries(whitelist),
		blocklist: entries(blocklist),
	}

	blocked := make(map[string]string, len(p.blocklist))
	for _, e := range p.blocklist {
		blocked[e.key] = e.name
	}
	var overlap []string
	for _, e := range p.whitelist {
		if _, ok := blocked[e.key]; ok {
			overlap = append(overlap, e.name)
		}
	}
	if len(overlap) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrPolicyOverlap, strings.Join(overlap, ", "))
	}
	return p, nil
}

// DefaultCategoryPolicy returns the built-in policy.
func DefaultCategoryPolicy() *CategoryPolicy {
	p, err := NewCategoryPolicy(DefaultWhitelist, DefaultBlocklist)
	if err != nil {
		panic(err)
	}
	return p
}

func entries(names []string) []policyEntry {
	names = Dedupe(names)
	out := make([]policyEntry, 0, len(names))
	for _, name := range names {
		out = append(out, policyEntry{name: name, key: Key(name)})
	}
	return out
}

func names(list []policyEntry) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.name
	}
	return out
}

// Whitelist returns a copy of the whitelisted category names.
func (p *CategoryPolicy) Whitelist() []string { return names(p.whitelist) }

// Blocklist returns a copy of the blocklisted category names.
func (p *CategoryPolicy) Blocklist() []string { return names(p.blocklist) }

// HasWhitelist reports whether the whitelist has any entry.
func (p *CategoryPolicy) HasWhitelist() bool { return len(p.whitelist) > 0 }

// MatchBlocklist returns the blocklist entry that category hits. A hit is an
// exact key match or the entry appearing in the category on word boundaries,
// so "Beauty & Skincare" hits "Beauty" but "Stationery" does not hit
// "Kids Art, Craft and Stationery".
func (p *CategoryPolicy) MatchBlocklist(category string) (string, bool) {
	return match(p.blocklist, Key(category))
}

// MatchWhitelist is MatchBlocklist for the whitelist.
func (p *CategoryPolicy) MatchWhitelist(category string) (string, bool) {
	return match(p.whitelist, Key(category))
}

// Known reports whether category names a whitelist or blocklist entry exactly.
func (p *CategoryPolicy) Known(category string) bool {
	key := Key(category)
	for _, list := range [][]policyEntry{p.whitelist, p.blocklist} {
		for _, e := range list {
			if e.key == key {
				return true
			}
		}
	}
	return false
}

func match(list []policyEntry, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for _, e := range list {
		if e.key == key || containsOnBoundary(key, e.key) {
			return e.name, true
		}
	}
	return "", false
}
