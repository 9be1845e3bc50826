// Package report flattens a refinement run into the CSV, text, markdown and
// JSON outputs, and the console summary.
package report

import (
	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/scoring"
)

// Summary is the run-level metrics block.
type Summary struct {
	Tests          int     `json:"tests"`
	TotalGifts     int     `json:"total_gifts"`
	GoodGifts      int     `json:"good_gifts"`
	OverallGood    float64 `json:"overall_good_rate"`
	Passed         int     `json:"passed"`
	CasePassRate   float64 `json:"case_pass_rate"`
	MeanFinal      float64 `json:"mean_final_score"`
	HumanScored    int     `json:"human_scored"`
	AutocheckOnly  int     `json:"autocheck_scored"`
	Degraded       int     `json:"degraded"`
	NoResults      int     `json:"no_results"`
	Cancelled      int     `json:"cancelled"`
	ImprovedByFix  int     `json:"improved_by_fix"`
	GoodThreshold  float64 `json:"good_threshold"`
	TopK           int     `json:"top_k"`
	RoundsExecuted int     `json:"rounds_executed"`
}

// Summarize computes run metrics. Good gifts are counted from the final
// score so human judgements count where present.
func Summarize(run catalog.Run) Summary {
	topK := run.TopK
	if topK <= 0 {
		topK = 3
	}
	s := Summary{Tests: len(run.Records), GoodThreshold: run.GoodThreshold, TopK: topK}
	if s.Tests == 0 {
		return s
	}

	var finalSum float64
	for _, rec := range run.Records {
		s.RoundsExecuted += len(rec.Rounds)
		finalSum += rec.FinalScore
		s.GoodGifts += goodGifts(rec, topK)
		if scoring.Passes(rec.FinalScore, run.GoodThreshold) {
			s.Passed++
		}
		if rec.ScoreSource == catalog.SourceHuman {
			s.HumanScored++
		} else {
			s.AutocheckOnly++
		}
		switch rec.Status {
		case catalog.StatusDegraded:
			s.Degraded++
		case catalog.StatusNoResults:
			s.NoResults++
		case catalog.StatusCancelled:
			s.Cancelled++
		}
		if len(rec.Rounds) > 0 && rec.AutocheckScore > rec.Rounds[0].Score {
			s.ImprovedByFix++
		}
	}
	s.TotalGifts = s.Tests * topK
	s.OverallGood = float64(s.GoodGifts) / float64(s.TotalGifts)
	s.CasePassRate = float64(s.Passed) / float64(s.Tests)
	s.MeanFinal = finalSum / float64(s.Tests)
	return s
}

func goodGifts(rec catalog.ScoreRecord, topK int) int {
	if rec.ScoreSource == catalog.SourceHuman && rec.HumanScore != nil {
		n := int(*rec.HumanScore*float64(topK) + 0.5)
		return min(max(n, 0), topK)
	}
	if best, ok := rec.Best(); ok {
		return best.GoodCount
	}
	return 0
}
