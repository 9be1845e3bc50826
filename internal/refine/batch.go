package refine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"giftprobe/internal/async"
	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/observability"
)

// RunBatch refines every case on a bounded worker pool. Records come back in
// input order, one per case, whatever happened to the others.
func (l *Loop) RunBatch(ctx context.Context, cases []catalog.TestCase) catalog.Run {
	run := catalog.Run{
		ID:            uuid.NewString(),
		StartedAt:     time.Now().UTC(),
		GoodThreshold: l.opts.GoodThreshold,
		MaxRounds:     l.opts.MaxRounds,
		TopK:          l.opts.TopK,
		Records:       make([]catalog.ScoreRecord, len(cases)),
	}
	ctx = observability.ContextWithRunID(ctx, run.ID)
	ctx, span := observability.StartSpan(ctx, observability.SpanBatch, attribute.Int(observability.AttrCases, len(cases)))
	defer span.End()

	l.logger.Info("run %s: %d case(s), %d worker(s), threshold %.2f, max %d round(s)",
		run.ID, len(cases), l.opts.Concurrency, l.opts.GoodThreshold, l.opts.MaxRounds)

	var g errgroup.Group
	g.SetLimit(l.opts.Concurrency)
	for i, tc := range cases {
		g.Go(func() error {
			err := async.Guard(l.logger, "case "+tc.ID, func() {
				run.Records[i] = l.RunCase(ctx, tc)
			})
			if err != nil {
				run.Records[i] = l.crashed(tc, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	run.FinishedAt = time.Now().UTC()
	l.logger.Info("run %s finished in %s", run.ID, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	return run
}

// crashed records a case whose worker panicked as a single degraded round so
// the report still has its row.
func (l *Loop) crashed(tc catalog.TestCase, err error) catalog.ScoreRecord {
	round := catalog.RoundResult{
		Round:     0,
		QueryText: catalog.InitialQuery(tc).NaturalLanguage(),
		Results:   []catalog.ProductResult{},
		Degraded:  true,
		Err:       err.Error(),
	}
	l.metrics.CaseFinished(string(catalog.StatusDegraded), 0)
	return Summarize(tc, []catalog.RoundResult{round}, catalog.StopNoFix)
}
