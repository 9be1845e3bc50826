package catalog

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC and collapses runs of whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// Key is the comparison form of a category or token: normalised,
// case-folded, with `&` spelled as `and`.
func Key(s string) string {
	s = strings.ToLower(Normalize(s))
	if strings.Contains(s, "&") {
		s = strings.Join(strings.Fields(strings.ReplaceAll(s, "&", " and ")), " ")
	}
	return s
}

// URLSafe renders a category name for URL filters, where `&` must be the word `and`.
func URLSafe(name string) string {
	name = Normalize(name)
	if !strings.Contains(name, "&") {
		return name
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(name, "&", " and ")), " ")
}

// ContainsWord reports whether word occurs in text as a whole word, comparing
// keys. "kit" matches "Craft Kit" but not "Kitchen".
func ContainsWord(text, word string) bool {
	return containsOnBoundary(Key(text), Key(word))
}

// containsOnBoundary reports whether needle occurs in haystack delimited by
// string edges or non-alphanumeric characters. Both must already be keys.
func containsOnBoundary(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for start := 0; start <= len(haystack)-len(needle); {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(needle)
		if (idx == 0 || !isWordByte(haystack[idx-1])) && (end == len(haystack) || !isWordByte(haystack[end])) {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}

// Dedupe returns values with blanks removed and duplicates (by Key) dropped,
// keeping first occurrence order and spelling.
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = Normalize(v)
		k := Key(v)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
