// Package sheet loads test cases from the evaluation spreadsheet (CSV).
package sheet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/logging"
	"giftprobe/internal/search"
)

// ErrMissingColumn means the sheet has none of the columns a query can come from.
var ErrMissingColumn = errors.New("test sheet: missing required column")

// Columns maps test case fields to sheet headers. Matching is case-insensitive.
type Columns struct {
	TestID       string `mapstructure:"test_id" yaml:"test_id"`
	Query        string `mapstructure:"query" yaml:"query"`
	EncodedQuery string `mapstructure:"encoded_query" yaml:"encoded_query"`
	URL          string `mapstructure:"url" yaml:"url"`
	Budget       string `mapstructure:"budget" yaml:"budget"`
	Audience     string `mapstructure:"audience" yaml:"audience"`
	Occasion     string `mapstructure:"occasion" yaml:"occasion"`
	Profile      string `mapstructure:"profile" yaml:"profile"`
	Persona      string `mapstructure:"persona" yaml:"persona"`
	Filters      string `mapstructure:"filters" yaml:"filters"`
	PriceLock    string `mapstructure:"price_lock" yaml:"price_lock"`
	CategoryLock string `mapstructure:"category_lock" yaml:"category_lock"`
}

// DefaultColumns matches the evaluation sheet headers.
func DefaultColumns() Columns {
	return Columns{
		TestID:       "Test_ID",
		Query:        "Query",
		EncodedQuery: "Persona Query (URL-encoded)",
		URL:          "Result_URL",
		Budget:       "Budget",
		Audience:     "Audience",
		Occasion:     "Occasion",
		Profile:      "Profile_Description",
		Persona:      "Persona",
		Filters:      "Filters",
		PriceLock:    "Price Filter Lock",
		CategoryLock: "Category Filter Lock",
	}
}

// LoadFile reads test cases from path.
func LoadFile(path string, cols Columns, logger logging.Logger) ([]catalog.TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open test sheet: %w", err)
	}
	defer f.Close()
	return Load(f, cols, logger)
}

// Load parses a test sheet. Any unparseable budget is fatal so that no case
// runs against a half-loaded sheet. Rows with neither a query nor a URL are
// skipped with a warning.
func Load(r io.Reader, cols Columns, logger logging.Logger) ([]catalog.TestCase, error) {
	logger = logging.OrNop(logger)
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read test sheet header: %w", err)
	}
	idx := indexHeader(header)
	col := func(name string) int {
		if name == "" {
			return -1
		}
		if i, ok := idx[strings.ToLower(strings.TrimSpace(name))]; ok {
			return i
		}
		return -1
	}

	queryCol, encodedCol, urlCol := col(cols.Query), col(cols.EncodedQuery), col(cols.URL)
	if queryCol < 0 && encodedCol < 0 && urlCol < 0 {
		return nil, fmt.Errorf("%w: one of %q, %q or %q", ErrMissingColumn, cols.Query, cols.EncodedQuery, cols.URL)
	}
	idCol, budgetCol, audienceCol := col(cols.TestID), col(cols.Budget), col(cols.Audience)
	occasionCol, profileCol, personaCol := col(cols.Occasion), col(cols.Profile), col(cols.Persona)
	filtersCol, priceLockCol, categoryLockCol := col(cols.Filters), col(cols.PriceLock), col(cols.CategoryLock)

	var cases []catalog.TestCase
	seen := make(map[string]int)
	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read test sheet row %d: %w", rowNum, err)
		}
		cell := func(i int) string {
			if i >= 0 && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		id := cell(idCol)
		if id == "" {
			id = fmt.Sprintf("Row%d", rowNum)
		}
		if n := seen[id]; n > 0 {
			logger.Warn("duplicate test id %s at row %d; renamed", id, rowNum)
			id = fmt.Sprintf("%s_%d", id, n+1)
		}
		seen[cell(idCol)]++

		sourceURL := cell(urlCol)
		query := cell(queryCol)
		if query == "" {
			query = unescape(cell(encodedCol))
		}
		if query == "" && sourceURL != "" {
			query = search.NaturalLanguageFromURL(sourceURL)
		}
		if query == "" && sourceURL == "" {
			logger.Warn("row %d (%s): no query or URL; skipped", rowNum, id)
			continue
		}

		priceLock := cell(priceLockCol)
		budgetText := cell(budgetCol)
		if budgetText == "" {
			budgetText = catalog.PriceLockToText(priceLock)
		}
		budget, err := catalog.ParseBudget(budgetText)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", rowNum, id, err)
		}

		persona := cell(personaCol)
		audience := cell(audienceCol)
		if audience == "" {
			audience = catalog.InferAudience(persona)
		}

		categoryLock := unescape(cell(categoryLockCol))
		filters := cell(filtersCol)
		if filters == "" {
			filters = summary(categoryLock, catalog.PriceLockToText(priceLock))
		}

		cases = append(cases, catalog.TestCase{
			ID:            id,
			Row:           len(cases),
			OriginalQuery: query,
			Constraints: catalog.Constraints{
				Budget:      budgetText,
				BudgetRange: budget,
				Audience:    audience,
				Occasion:    cell(occasionCol),
			},
			Filters:     filters,
			FilterPairs: ParseFilterPairs(categoryLock),
			Persona:     persona,
			Profile:     cell(profileCol),
			SourceURL:   sourceURL,
		})
	}
	logger.Info("loaded %d test case(s)", len(cases))
	return cases, nil
}

var lockRe = regexp.MustCompile(`(?:filters)?\[([^\]]+)\]\s*=\s*([^&|;]+)`)

// ParseFilterPairs extracts `[Key]=Value` or `filters[Key]=Value` entries,
// as found in lock columns, in order.
func ParseFilterPairs(text string) []catalog.FilterPair {
	var pairs []catalog.FilterPair
	for _, m := range lockRe.FindAllStringSubmatch(text, -1) {
		key := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		if key == "" || value == "" {
			continue
		}
		pairs = append(pairs, catalog.FilterPair{Key: key, Value: value})
	}
	return pairs
}

func summary(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}

func unescape(s string) string {
	if s == "" {
		return ""
	}
	if decoded, err := url.QueryUnescape(s); err == nil {
		return strings.TrimSpace(decoded)
	}
	return s
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
