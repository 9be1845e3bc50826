package refine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"giftprobe/internal/async"
	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/fixgen"
	"giftprobe/internal/observability"
	"giftprobe/internal/scoring"
)

// ApplyFixes runs a single refinement step per case using previously saved
// fixes keyed by file stem: the original query, then the fixed one. Cases
// with no saved fix get one round.
func (l *Loop) ApplyFixes(ctx context.Context, cases []catalog.TestCase, fixes map[string]catalog.Fix) catalog.Run {
	run := catalog.Run{
		ID:            uuid.NewString(),
		StartedAt:     time.Now().UTC(),
		GoodThreshold: l.opts.GoodThreshold,
		MaxRounds:     2,
		TopK:          l.opts.TopK,
		Records:       make([]catalog.ScoreRecord, len(cases)),
	}
	ctx = observability.ContextWithRunID(ctx, run.ID)
	ctx, span := observability.StartSpan(ctx, observability.SpanBatch,
		attribute.Int(observability.AttrCases, len(cases)),
		attribute.String(observability.AttrFixSource, fixgen.SourceSaved))
	defer span.End()

	l.logger.Info("run %s: applying %d saved fix(es) to %d case(s)", run.ID, len(fixes), len(cases))

	var g errgroup.Group
	g.SetLimit(l.opts.Concurrency)
	for i, tc := range cases {
		fix, ok := fixes[fixgen.FileStem(tc.ID)]
		g.Go(func() error {
			err := async.Guard(l.logger, "apply "+tc.ID, func() {
				run.Records[i] = l.applyOne(ctx, tc, fix, ok)
			})
			if err != nil {
				run.Records[i] = l.crashed(tc, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	run.FinishedAt = time.Now().UTC()
	return run
}

func (l *Loop) applyOne(ctx context.Context, tc catalog.TestCase, fix catalog.Fix, hasFix bool) catalog.ScoreRecord {
	ctx = observability.ContextWithCaseID(ctx, tc.ID)
	if ctx.Err() != nil {
		return Summarize(tc, nil, catalog.StopCancelled)
	}
	l.metrics.CaseStarted()

	query := catalog.InitialQuery(tc)
	rounds := []catalog.RoundResult{l.runRound(ctx, 0, query)}
	stop := catalog.StopNoFix
	if hasFix {
		if err := fixgen.Validate(fix, l.policy, rounds[0].Facets, rounds[0].DriftReasons); err != nil {
			l.logger.Warn("[%s] saved fix rejected: %v", tc.ID, err)
			l.metrics.IncFix(fixgen.SourceSaved, "invalid")
		} else {
			l.metrics.IncFix(fixgen.SourceSaved, "accepted")
			next := l.runRound(ctx, 1, query.WithFix(fix))
			next.Fix = &fix
			next.FixSource = fixgen.SourceSaved
			rounds = append(rounds, next)
			stop = catalog.StopMaxRounds
		}
	}

	record := Summarize(tc, rounds, stop)
	if scoring.Passes(record.AutocheckScore, l.opts.GoodThreshold) {
		record.StopReason = catalog.StopThreshold
	}
	l.metrics.CaseFinished(string(record.Status), record.AutocheckScore)
	return record
}
