package fixgen

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/scoring"
	jsonx "giftprobe/internal/shared/json"
)

// SystemPrompt instructs the model to return one Fix object.
const SystemPrompt = `You rewrite a natural-language shopping query so a retail search API returns better top-3 gift results.

You receive:
* the original query and its constraints (budget, audience, occasion);
* the current top results as JSON;
* a whitelist of useful categories and a blocklist of drift categories.

Your job:
1. Diagnose drift in the shown results (beauty, confectionery, party favours, kids products).
2. Rewrite the query so it anchors on the right motifs and the right product domain.
3. Propose include/exclude categories and must-have/negative tokens to stabilise results.
4. Keep the budget and other constraints intact.
5. Prefer adult, maker or era-specific cues when they fit the query.

Heuristics:
* A result is good when its title, tags or categories match the intent and its price is within budget.
* Typical drift: Beauty, Bath & Body, Hand Care, Cards, Gift Bags, Party Favours & Glow, Chocolate, Lollies, Kids Art, Craft & Stationery.
* For era or style themes (90s, Y2K) inject explicit motifs such as smiley, butterfly clips, checkerboard, neon, cassette, Polaroid, scrunchies.
* For maker or craft themes inject tool, kit and material terms such as glue gun, cutting mat, beads, clay, brushes.
* Category names with "&" are written with "and" in URLs.

Return ONE JSON object and nothing else, with exactly these keys:
* revised_query_text: string, the new human-readable query
* must_have_tokens: string[]
* negative_tokens: string[]
* include_categories: string[], names as used by the catalogue
* exclude_categories: string[]
* price_band: string, e.g. "under $20" or "$20-$60"
* audience: string, e.g. "Adults"
* rationale: string, what was wrong and what you changed
* confidence: number between 0 and 1, how likely the fix yields 2 of 3 good results
* example_titles_expected: string[], 3 to 6 archetypal product titles`

// PromptConstraints is the constraints block of the user payload.
type PromptConstraints struct {
	Budget   string `json:"budget"`
	Audience string `json:"audience"`
	Occasion string `json:"occasion"`
}

// PromptResult is one result as shown to the model.
type PromptResult struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Price      *float64 `json:"price,omitempty"`
	URL        string   `json:"url,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// PromptPayload is the user message sent alongside SystemPrompt.
type PromptPayload struct {
	OriginalQuery       string            `json:"original_query"`
	Constraints         PromptConstraints `json:"constraints"`
	WhitelistCategories []string          `json:"whitelist_categories"`
	BlocklistCategories []string          `json:"blocklist_categories"`
	Results             []PromptResult    `json:"results_json"`
}

// BuildPayload assembles the user payload for req.
func BuildPayload(req Request) PromptPayload {
	policy := req.Policy
	if policy == nil {
		policy = catalog.DefaultCategoryPolicy()
	}
	query := req.Case.OriginalQuery
	if query == "" {
		query = req.Round.Query.Text
	}
	constraints := req.Round.Query.Constraints
	if constraints.Budget == "" && constraints.Audience == "" {
		constraints = req.Case.Constraints
	}

	results := make([]PromptResult, 0, len(req.Round.Results))
	for _, r := range req.Round.Results {
		pr := PromptResult{ID: r.ID, Title: r.Title, URL: r.URL, Categories: r.Categories}
		if r.HasPrice {
			price := r.Price
			pr.Price = &price
		}
		results = append(results, pr)
	}
	return PromptPayload{
		OriginalQuery: query,
		Constraints: PromptConstraints{
			Budget:   constraints.Budget,
			Audience: constraints.Audience,
			Occasion: constraints.Occasion,
		},
		WhitelistCategories: policy.Whitelist(),
		BlocklistCategories: policy.Blocklist(),
		Results:             results,
	}
}

// Request rebuilds a generator request from a saved payload. The results are
// rescored so the heuristic sees the same drift it would have seen live.
func (p PromptPayload) Request(id string, policy *catalog.CategoryPolicy, anchors []catalog.StyleAnchor) (Request, error) {
	budget, err := catalog.ParseBudget(p.Constraints.Budget)
	if err != nil {
		return Request{}, fmt.Errorf("prompt %s: %w", id, err)
	}
	tc := catalog.TestCase{
		ID:            id,
		OriginalQuery: p.OriginalQuery,
		Constraints: catalog.Constraints{
			Budget:      p.Constraints.Budget,
			BudgetRange: budget,
			Audience:    p.Constraints.Audience,
			Occasion:    p.Constraints.Occasion,
		},
	}
	results := make([]catalog.ProductResult, 0, len(p.Results))
	for i, r := range p.Results {
		pr := catalog.ProductResult{Rank: i + 1, ID: r.ID, Title: r.Title, URL: r.URL, Categories: r.Categories}
		if r.Price != nil {
			pr.Price, pr.HasPrice = *r.Price, true
		}
		results = append(results, pr)
	}
	if policy == nil {
		policy = catalog.DefaultCategoryPolicy()
	}
	return Request{
		Case:    tc,
		Round:   roundFor(catalog.InitialQuery(tc), results, policy),
		Policy:  policy,
		Anchors: anchors,
	}, nil
}

const (
	systemHeading = "# SYSTEM"
	userHeading   = "# USER INPUT"
)

// RenderPromptMarkdown renders the prompt file written by the prompts command.
func RenderPromptMarkdown(payload PromptPayload) ([]byte, error) {
	var body bytes.Buffer
	if err := jsonx.EncodeIndent(&body, payload); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(systemHeading + "\n\n")
	buf.WriteString(SystemPrompt)
	buf.WriteString("\n\n" + userHeading + "\n\n```json\n")
	buf.Write(bytes.TrimRight(body.Bytes(), "\n"))
	buf.WriteString("\n```\n")
	return buf.Bytes(), nil
}

var jsonBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(\\{.*?\\})\\s*\\n```")

// ErrNoPayload means a prompt file carried no JSON user block.
var ErrNoPayload = errors.New("prompt has no JSON payload")

// ParsePromptMarkdown extracts the user payload from a rendered prompt.
func ParsePromptMarkdown(content []byte) (PromptPayload, error) {
	text := string(content)
	if idx := strings.Index(text, userHeading); idx >= 0 {
		text = text[idx:]
	}
	m := jsonBlock.FindStringSubmatch(text)
	if m == nil {
		return PromptPayload{}, ErrNoPayload
	}
	var payload PromptPayload
	if err := jsonx.Unmarshal([]byte(m[1]), &payload); err != nil {
		return PromptPayload{}, fmt.Errorf("decode prompt payload: %w", err)
	}
	return payload, nil
}

func roundFor(q catalog.Query, results []catalog.ProductResult, policy *catalog.CategoryPolicy) catalog.RoundResult {
	scored := scoring.Score(results, policy, scoring.CriteriaFor(q))
	return catalog.RoundResult{
		QueryText:    q.NaturalLanguage(),
		Query:        q,
		Results:      results,
		Score:        scored.Score,
		GoodCount:    scored.GoodCount,
		Verdicts:     scored.Verdicts,
		DriftReasons: scored.DriftReasons(),
	}
}
