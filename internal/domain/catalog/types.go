// Package catalog holds the data model shared by the search, scoring,
// fix generation and refinement packages.
package catalog

import "time"

// Constraints are the shopper constraints attached to a test case.
type Constraints struct {
	Budget      string      `json:"budget,omitempty"`
	BudgetRange BudgetRange `json:"budget_range"`
	Audience    string      `json:"audience,omitempty"`
	Occasion    string      `json:"occasion,omitempty"`
}

// FilterPair is one parsed `key=value` entry from a test case's filter text.
type FilterPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TestCase is one spreadsheet row. It is never mutated after loading.
type TestCase struct {
	ID            string       `json:"id"`
	Row           int          `json:"row"`
	OriginalQuery string       `json:"original_query"`
	Constraints   Constraints  `json:"constraints"`
	Filters       string       `json:"filters,omitempty"`
	FilterPairs   []FilterPair `json:"filter_pairs,omitempty"`
	Persona       string       `json:"persona,omitempty"`
	Profile       string       `json:"profile,omitempty"`
	SourceURL     string       `json:"source_url,omitempty"`
}

// ProductResult is one normalised product returned by the search API.
type ProductResult struct {
	Rank       int               `json:"rank"`
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Price      float64           `json:"price"`
	HasPrice   bool              `json:"has_price"`
	URL        string            `json:"url,omitempty"`
	Categories []string          `json:"categories,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ResultPage is the normalised answer to one search call.
type ResultPage struct {
	Results      []ProductResult `json:"results"`
	Facets       map[string]int  `json:"facets,omitempty"`
	TotalResults int             `json:"total_results"`
	RequestURL   string          `json:"request_url,omitempty"`
}

// Verdict is the scorer's judgement on one result.
type Verdict struct {
	ResultID string `json:"result_id"`
	Good     bool   `json:"good"`
	Reason   string `json:"reason,omitempty"`
}

// Fix is a structured suggestion for the next round's query. JSON keys are
// the wire format expected from the LLM.
type Fix struct {
	RevisedQueryText      string   `json:"revised_query_text"`
	MustHaveTokens        []string `json:"must_have_tokens"`
	NegativeTokens        []string `json:"negative_tokens"`
	IncludeCategories     []string `json:"include_categories"`
	ExcludeCategories     []string `json:"exclude_categories"`
	PriceBand             string   `json:"price_band"`
	Audience              string   `json:"audience"`
	Rationale             string   `json:"rationale"`
	Confidence            float64  `json:"confidence"`
	ExampleTitlesExpected []string `json:"example_titles_expected"`
}

// FixKeys lists the JSON keys every Fix document must carry.
var FixKeys = []string{
	"revised_query_text",
	"must_have_tokens",
	"negative_tokens",
	"include_categories",
	"exclude_categories",
	"price_band",
	"audience",
	"rationale",
	"confidence",
	"example_titles_expected",
}

// RoundResult records one query-then-score cycle. Appended to a case
// history and never modified afterwards.
type RoundResult struct {
	Round        int             `json:"round"`
	QueryText    string          `json:"query_text"`
	Query        Query           `json:"query"`
	RequestURL   string          `json:"request_url,omitempty"`
	Results      []ProductResult `json:"results"`
	Score        float64         `json:"score"`
	GoodCount    int             `json:"good_count"`
	Verdicts     []Verdict       `json:"verdicts"`
	DriftReasons []string        `json:"drift_reasons,omitempty"`
	Facets       map[string]int  `json:"facets,omitempty"`
	Fix          *Fix            `json:"fix,omitempty"`
	FixSource    string          `json:"fix_source,omitempty"`
	Degraded     bool            `json:"degraded,omitempty"`
	Err          string          `json:"error,omitempty"`
	Duration     time.Duration   `json:"duration_ns"`
}

// ScoreSource names where a final score came from.
type ScoreSource string

const (
	SourceAutocheck ScoreSource = "autocheck"
	SourceHuman     ScoreSource = "human"
)

// CaseStatus summarises how a test case finished.
type CaseStatus string

const (
	StatusOK        CaseStatus = "ok"
	StatusDegraded  CaseStatus = "degraded"
	StatusNoResults CaseStatus = "no_results"
	StatusCancelled CaseStatus = "cancelled"
)

// StopReason explains why the refinement loop ended.
type StopReason string

const (
	StopThreshold StopReason = "threshold"
	StopMaxRounds StopReason = "max_rounds"
	StopNoFix     StopReason = "no_valid_fix"
	StopCancelled StopReason = "cancelled"
)

// ScoreRecord is the per-test-case outcome consumed by the reports.
type ScoreRecord struct {
	TestCaseID     string        `json:"test_case_id"`
	TestCase       TestCase      `json:"test_case"`
	AutocheckScore float64       `json:"autocheck_score"`
	BestRound      int           `json:"best_round"`
	HumanScore     *float64      `json:"human_score,omitempty"`
	FinalScore     float64       `json:"final_score"`
	ScoreSource    ScoreSource   `json:"score_source"`
	Status         CaseStatus    `json:"status"`
	StopReason     StopReason    `json:"stop_reason"`
	Rounds         []RoundResult `json:"rounds"`
}

// Best returns the round the record's autocheck score came from.
func (r ScoreRecord) Best() (RoundResult, bool) {
	for _, round := range r.Rounds {
		if round.Round == r.BestRound {
			return round, true
		}
	}
	return RoundResult{}, false
}

// Run is one batch over a test sheet, as persisted to run.json.
type Run struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	GoodThreshold float64       `json:"good_threshold"`
	MaxRounds     int           `json:"max_rounds"`
	TopK          int           `json:"top_k"`
	Records       []ScoreRecord `json:"records"`
}
