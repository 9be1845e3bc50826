package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"giftprobe/internal/diff"
	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/scoring"
)

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatPrice(r catalog.ProductResult) string {
	if !r.HasPrice {
		return ""
	}
	return strconv.FormatFloat(r.Price, 'f', 2, 64)
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteResultsFlat writes one row per product per round.
func WriteResultsFlat(w io.Writer, run catalog.Run) error {
	rows := [][]string{{
		"Test_ID", "Round", "Rank", "Query", "Request_URL", "Product_ID", "Title", "Price", "URL",
		"Categories", "Good", "Reason", "Fix_Source", "Degraded",
	}}
	for _, rec := range run.Records {
		for _, round := range rec.Rounds {
			if len(round.Results) == 0 {
				rows = append(rows, []string{
					rec.TestCaseID, strconv.Itoa(round.Round), "", round.QueryText, round.RequestURL,
					"", "", "", "", "", "", round.Err, round.FixSource, strconv.FormatBool(round.Degraded),
				})
				continue
			}
			for i, r := range round.Results {
				good, reason := "", ""
				if i < len(round.Verdicts) {
					good = strconv.FormatBool(round.Verdicts[i].Good)
					reason = round.Verdicts[i].Reason
				}
				rank := r.Rank
				if rank == 0 {
					rank = i + 1
				}
				rows = append(rows, []string{
					rec.TestCaseID, strconv.Itoa(round.Round), strconv.Itoa(rank), round.QueryText, round.RequestURL,
					r.ID, r.Title, formatPrice(r), r.URL, strings.Join(r.Categories, "|"), good, reason,
					round.FixSource, strconv.FormatBool(round.Degraded),
				})
			}
		}
	}
	return writeAll(w, rows)
}

// WriteReport writes one row per test case with per-round query and score
// columns up to the longest history in the run.
func WriteReport(w io.Writer, run catalog.Run) error {
	maxRounds := 0
	for _, rec := range run.Records {
		maxRounds = max(maxRounds, len(rec.Rounds))
	}

	header := []string{"Test_ID", "Original_Query", "Budget", "Audience"}
	for i := 0; i < maxRounds; i++ {
		header = append(header, fmt.Sprintf("Round_%d_Query", i), fmt.Sprintf("Round_%d_Score", i))
	}
	header = append(header,
		"Best_Round", "Query_Diff", "Autocheck_Score", "Human_Score", "Final_Score", "Score_Source",
		"Status", "Stop_Reason", "Duplicate_Titles", "Budget_Pass_Rate",
	)
	rows := [][]string{header}

	differ := diff.NewGenerator(false)
	for _, rec := range run.Records {
		row := []string{
			rec.TestCaseID, rec.TestCase.OriginalQuery, rec.TestCase.Constraints.Budget, rec.TestCase.Constraints.Audience,
		}
		for i := 0; i < maxRounds; i++ {
			if i < len(rec.Rounds) {
				row = append(row, rec.Rounds[i].QueryText, formatScore(rec.Rounds[i].Score))
			} else {
				row = append(row, "", "")
			}
		}

		bestRound, queryDiff, dupTitles, budgetRate := "", "", "", ""
		if best, ok := rec.Best(); ok {
			bestRound = strconv.Itoa(best.Round)
			if len(rec.Rounds) > 0 {
				if d := differ.Query(rec.Rounds[0].QueryText, best.QueryText); d.Changed() {
					queryDiff = d.Inline
				}
			}
			check := scoring.Diagnose(best.Results, best.Query.Constraints.BudgetRange)
			dupTitles = strconv.FormatBool(check.DuplicateTitles)
			if check.BudgetPassRate != nil {
				budgetRate = formatScore(*check.BudgetPassRate)
			}
		}
		human := ""
		if rec.HumanScore != nil {
			human = formatScore(*rec.HumanScore)
		}
		row = append(row,
			bestRound, queryDiff, formatScore(rec.AutocheckScore), human, formatScore(rec.FinalScore),
			string(rec.ScoreSource), string(rec.Status), string(rec.StopReason), dupTitles, budgetRate,
		)
		rows = append(rows, row)
	}
	return writeAll(w, rows)
}

// WriteHumanTemplate writes the sheet reviewers fill in: each case's best
// round titles with empty Gift_k_Good cells.
func WriteHumanTemplate(w io.Writer, run catalog.Run) error {
	topK := run.TopK
	if topK <= 0 {
		topK = 3
	}
	header := []string{"Test_ID", "Profile_Description", "Filters"}
	for k := 1; k <= topK; k++ {
		header = append(header, fmt.Sprintf("Gift_%d", k), fmt.Sprintf("Gift_%d_Good", k))
	}
	rows := [][]string{header}
	for _, rec := range run.Records {
		row := []string{rec.TestCaseID, firstNonEmpty(rec.TestCase.Profile, rec.TestCase.OriginalQuery), rec.TestCase.Filters}
		best, _ := rec.Best()
		for k := 0; k < topK; k++ {
			title := ""
			if k < len(best.Results) {
				title = best.Results[k].Title
			}
			row = append(row, title, "")
		}
		rows = append(rows, row)
	}
	return writeAll(w, rows)
}

// WriteSummary writes the Metric,Value table.
func WriteSummary(w io.Writer, s Summary) error {
	rows := [][]string{
		{"Metric", "Value"},
		{"Number of Tests", strconv.Itoa(s.Tests)},
		{"Total Gifts", strconv.Itoa(s.TotalGifts)},
		{"Overall Good Rate", formatScore(s.OverallGood)},
		{fmt.Sprintf("Case Pass Rate (>=%s)", formatScore(s.GoodThreshold)), formatScore(s.CasePassRate)},
		{"Mean Final Score", formatScore(s.MeanFinal)},
		{"Human Scored", strconv.Itoa(s.HumanScored)},
		{"Autocheck Scored", strconv.Itoa(s.AutocheckOnly)},
		{"Improved By Fix", strconv.Itoa(s.ImprovedByFix)},
		{"Degraded", strconv.Itoa(s.Degraded)},
		{"No Results", strconv.Itoa(s.NoResults)},
		{"Cancelled", strconv.Itoa(s.Cancelled)},
		{"Rounds Executed", strconv.Itoa(s.RoundsExecuted)},
	}
	return writeAll(w, rows)
}
