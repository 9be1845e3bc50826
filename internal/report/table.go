package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"giftprobe/internal/domain/catalog"
)

const queryWidth = 48

func caseTable(run catalog.Run) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Test", "Query", "Rounds", "Best", "Autocheck", "Final", "Source", "Status"})
	for _, rec := range run.Records {
		query := rec.TestCase.OriginalQuery
		if best, ok := rec.Best(); ok {
			query = best.QueryText
		}
		best := "-"
		if rec.BestRound >= 0 {
			best = strconv.Itoa(rec.BestRound)
		}
		t.AppendRow(table.Row{
			rec.TestCaseID, query, len(rec.Rounds), best,
			formatScore(rec.AutocheckScore), formatScore(rec.FinalScore), rec.ScoreSource, rec.Status,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: queryWidth},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	return t
}

// RenderConsole renders the per-case table and summary for a terminal.
func RenderConsole(run catalog.Run, s Summary) string {
	t := caseTable(run)
	t.SetStyle(table.StyleLight)
	t.AppendFooter(table.Row{"", "", s.RoundsExecuted, "", "", formatScore(s.MeanFinal), "",
		fmt.Sprintf("%d/%d pass", s.Passed, s.Tests)})
	return t.Render()
}

// WriteMarkdown writes report.md: run header, metrics and the case table.
func WriteMarkdown(w io.Writer, run catalog.Run, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# giftprobe run %s\n\n", run.ID)
	if !run.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started %s, finished %s. Threshold %s, top %d, max %d round(s).\n\n",
			run.StartedAt.Format("2006-01-02 15:04:05Z07:00"), run.FinishedAt.Format("15:04:05"),
			formatScore(run.GoodThreshold), s.TopK, run.MaxRounds)
	}

	metrics := table.NewWriter()
	metrics.AppendHeader(table.Row{"Metric", "Value"})
	metrics.AppendRows([]table.Row{
		{"Tests", s.Tests},
		{"Overall good rate", formatScore(s.OverallGood)},
		{"Case pass rate", formatScore(s.CasePassRate)},
		{"Mean final score", formatScore(s.MeanFinal)},
		{"Human scored", s.HumanScored},
		{"Improved by fix", s.ImprovedByFix},
		{"Degraded", s.Degraded},
	})
	b.WriteString("## Summary\n\n")
	b.WriteString(metrics.RenderMarkdown())
	b.WriteString("\n\n## Test cases\n\n")
	b.WriteString(caseTable(run).RenderMarkdown())
	b.WriteString("\n")

	var drifted []string
	for _, rec := range run.Records {
		best, ok := rec.Best()
		if !ok || len(best.DriftReasons) == 0 {
			continue
		}
		drifted = append(drifted, fmt.Sprintf("- **%s**: %s", rec.TestCaseID, strings.Join(best.DriftReasons, "; ")))
	}
	if len(drifted) > 0 {
		b.WriteString("\n## Remaining drift\n\n")
		b.WriteString(strings.Join(drifted, "\n"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
