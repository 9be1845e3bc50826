package report

import (
	"fmt"
	"io"
	"strings"

	"giftprobe/internal/domain/catalog"
)

// URLGroup is one test case's product URLs with its labels.
type URLGroup struct {
	TestID  string
	Persona string
	Query   string
	Filters string
	URLs    []string
}

// DistinctURLs returns every product URL across all rounds, first seen first.
func DistinctURLs(run catalog.Run) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, rec := range run.Records {
		for _, u := range recordURLs(rec) {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls
}

// GroupURLs returns per-test URL groups in run order.
func GroupURLs(run catalog.Run) []URLGroup {
	groups := make([]URLGroup, 0, len(run.Records))
	for _, rec := range run.Records {
		groups = append(groups, URLGroup{
			TestID:  rec.TestCaseID,
			Persona: firstNonEmpty(rec.TestCase.Persona, rec.TestCase.Profile),
			Query:   rec.TestCase.OriginalQuery,
			Filters: rec.TestCase.Filters,
			URLs:    recordURLs(rec),
		})
	}
	return groups
}

func recordURLs(rec catalog.ScoreRecord) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, round := range rec.Rounds {
		for _, r := range round.Results {
			u := strings.TrimSpace(r.URL)
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls
}

// WriteURLs writes the URL list, flat or grouped under per-test headings.
func WriteURLs(w io.Writer, run catalog.Run, grouped bool) error {
	if !grouped {
		for _, u := range DistinctURLs(run) {
			if _, err := fmt.Fprintln(w, u); err != nil {
				return err
			}
		}
		return nil
	}
	for i, g := range GroupURLs(run) {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		header := "# " + g.TestID
		if g.Persona != "" {
			header += " | " + g.Persona
		}
		lines := []string{header, "Query: " + g.Query}
		if g.Filters != "" {
			lines = append(lines, "Filters: "+g.Filters)
		}
		lines = append(lines, g.URLs...)
		if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")); err != nil {
			return err
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
