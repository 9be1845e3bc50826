package catalog

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidBudget is returned for non-empty budget text that matches no known form.
var ErrInvalidBudget = errors.New("invalid budget")

// BudgetRange is an inclusive price interval. A missing bound is unbounded on
// that side; the zero value constrains nothing.
type BudgetRange struct {
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	HasMin bool    `json:"has_min,omitempty"`
	HasMax bool    `json:"has_max,omitempty"`
}

// IsZero reports whether the range constrains nothing.
func (b BudgetRange) IsZero() bool {
	return !b.HasMin && !b.HasMax
}

// Contains reports whether price lies inside the range.
func (b BudgetRange) Contains(price float64) bool {
	if b.HasMin && price < b.Min {
		return false
	}
	if b.HasMax && price > b.Max {
		return false
	}
	return true
}

// FilterValue renders the range as a search price filter value: `lo-hi` or `lo-inf`.
func (b BudgetRange) FilterValue() string {
	if b.IsZero() {
		return ""
	}
	lo := 0.0
	if b.HasMin {
		lo = b.Min
	}
	if !b.HasMax {
		return formatAmount(math.Floor(lo)) + "-inf"
	}
	return formatAmount(math.Floor(lo)) + "-" + formatAmount(math.Ceil(b.Max))
}

// String renders the range in the shopper-facing form ParseBudget accepts.
func (b BudgetRange) String() string {
	switch {
	case b.HasMin && b.HasMax:
		return "$" + formatAmount(b.Min) + "–$" + formatAmount(b.Max)
	case b.HasMin:
		return "$" + formatAmount(b.Min) + "+"
	case b.HasMax:
		return "under $" + formatAmount(b.Max)
	default:
		return ""
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	numberPattern = `(\d+(?:\.\d+)?)`
	rangeRe       = regexp.MustCompile(`^` + numberPattern + `\s*(?:-|–|—|to)\s*(` + `\d+(?:\.\d+)?|inf)$`)
	plusRe        = regexp.MustCompile(`^` + numberPattern + `\s*\+$`)
	upperRe       = regexp.MustCompile(`(?i)(?:under|less\s*than|below|up\s*to|max(?:imum)?|<=|≤|<)\s*` + numberPattern)
	lowerRe       = regexp.MustCompile(`(?i)(?:over|more\s*than|above|at\s*least|min(?:imum)?|from|>=|≥|>)\s*` + numberPattern)
	singleRe      = regexp.MustCompile(`^` + numberPattern + `$`)
	priceLockRe   = regexp.MustCompile(`\[Price\]=(\d+)(?:-(\d+|inf))?`)
)

// ParseBudget parses shopper budget text. Accepted forms: "$20–$60",
// "20-60", "$100+", "50-inf", "under 30", "≤ 25", "over 40", and a single
// number, which means ±20% around it. Currency markers and thousands
// separators are ignored. Empty text yields the zero range.
func ParseBudget(text string) (BudgetRange, error) {
	v := strings.TrimSpace(Normalize(text))
	if v == "" {
		return BudgetRange{}, nil
	}
	clean := strings.NewReplacer("$", "", "AUD", "", "aud", "", ",", "").Replace(v)
	clean = strings.TrimSpace(strings.Join(strings.Fields(clean), " "))

	if m := rangeRe.FindStringSubmatch(clean); m != nil {
		a, _ := strconv.ParseFloat(m[1], 64)
		if m[2] == "inf" {
			return BudgetRange{Min: a, HasMin: true}, nil
		}
		b, _ := strconv.ParseFloat(m[2], 64)
		return BudgetRange{Min: math.Min(a, b), Max: math.Max(a, b), HasMin: true, HasMax: true}, nil
	}
	if m := plusRe.FindStringSubmatch(clean); m != nil {
		a, _ := strconv.ParseFloat(m[1], 64)
		return BudgetRange{Min: a, HasMin: true}, nil
	}
	if m := upperRe.FindStringSubmatch(clean); m != nil {
		b, _ := strconv.ParseFloat(m[1], 64)
		return BudgetRange{Max: b, HasMax: true}, nil
	}
	if m := lowerRe.FindStringSubmatch(clean); m != nil {
		a, _ := strconv.ParseFloat(m[1], 64)
		return BudgetRange{Min: a, HasMin: true}, nil
	}
	if m := singleRe.FindStringSubmatch(clean); m != nil {
		x, _ := strconv.ParseFloat(m[1], 64)
		return BudgetRange{Min: 0.8 * x, Max: 1.2 * x, HasMin: true, HasMax: true}, nil
	}
	return BudgetRange{}, fmt.Errorf("%w: %q", ErrInvalidBudget, text)
}

// PriceLockToText converts a URL price filter such as `filters[Price]=50-inf`
// (possibly percent-encoded) into budget text: "$50+", "$0–$20" or "$30".
func PriceLockToText(lock string) string {
	s := strings.TrimSpace(lock)
	if s == "" {
		return ""
	}
	if decoded, err := url.QueryUnescape(s); err == nil {
		s = decoded
	}
	m := priceLockRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	switch m[2] {
	case "":
		return "$" + m[1]
	case "inf":
		return "$" + m[1] + "+"
	default:
		return "$" + m[1] + "–$" + m[2]
	}
}
