// Package merge reconciles autocheck scores with human judgements.
package merge

import (
	"giftprobe/internal/domain/catalog"
)

// Merge sets the final score of record. A human score, when present for the
// test case, replaces the autocheck score outright; scores are never averaged.
func Merge(record catalog.ScoreRecord, human HumanScores) catalog.ScoreRecord {
	out := record
	if score, ok := human.Lookup(record); ok {
		s := score
		out.HumanScore = &s
		out.FinalScore = s
		out.ScoreSource = catalog.SourceHuman
		return out
	}
	out.HumanScore = nil
	out.FinalScore = record.AutocheckScore
	out.ScoreSource = catalog.SourceAutocheck
	return out
}

// MergeAll merges every record of run and returns the updated run.
func MergeAll(run catalog.Run, human HumanScores) catalog.Run {
	out := run
	out.Records = make([]catalog.ScoreRecord, len(run.Records))
	for i, rec := range run.Records {
		out.Records[i] = Merge(rec, human)
	}
	return out
}
