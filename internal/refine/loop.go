package refine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/fixgen"
	"giftprobe/internal/logging"
	"giftprobe/internal/observability"
	"giftprobe/internal/scoring"
)

// Searcher runs one query. *search.Runner satisfies it.
type Searcher interface {
	Run(ctx context.Context, q catalog.Query, topK int) (catalog.ResultPage, error)
}

// Resolver proposes a validated fix. *fixgen.Chain satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, req fixgen.Request) (fixgen.Proposal, error)
}

// Loop drives test cases through INIT, RUN, SCORE, FIX and DONE. A Loop is
// safe for concurrent use; all per-case state lives on the stack.
type Loop struct {
	searcher Searcher
	resolver Resolver
	policy   *catalog.CategoryPolicy
	anchors  []catalog.StyleAnchor
	opts     Options
	logger   logging.Logger
	metrics  *observability.Metrics
}

// NewLoop wires a loop. A nil policy or anchor table means the built-in one.
func NewLoop(searcher Searcher, resolver Resolver, policy *catalog.CategoryPolicy, anchors []catalog.StyleAnchor, opts Options, logger logging.Logger, metrics *observability.Metrics) *Loop {
	if policy == nil {
		policy = catalog.DefaultCategoryPolicy()
	}
	if anchors == nil {
		anchors = catalog.DefaultStyleAnchors()
	}
	return &Loop{
		searcher: searcher,
		resolver: resolver,
		policy:   policy,
		anchors:  anchors,
		opts:     opts.withDefaults(),
		logger:   logging.OrNop(logger),
		metrics:  metrics,
	}
}

// Options returns the effective options.
func (l *Loop) Options() Options { return l.opts }

// RunCase refines one test case. Cancellation is observed between rounds;
// a round that has started always completes.
func (l *Loop) RunCase(ctx context.Context, tc catalog.TestCase) catalog.ScoreRecord {
	ctx = observability.ContextWithCaseID(ctx, tc.ID)
	ctx, span := observability.StartSpan(ctx, observability.SpanCase)
	defer span.End()

	l.metrics.CaseStarted()
	query := catalog.InitialQuery(tc)
	var (
		rounds  []catalog.RoundResult
		pending *fixgen.Proposal
		stop    catalog.StopReason
	)

	for r := 0; ; r++ {
		if ctx.Err() != nil {
			stop = catalog.StopCancelled
			break
		}

		round := l.runRound(ctx, r, query)
		if pending != nil {
			fix := pending.Fix
			round.Fix = &fix
			round.FixSource = pending.Source
		}
		rounds = append(rounds, round)
		l.logger.Debug("[%s] round %d score=%.3f good=%d/%d degraded=%t", tc.ID, r, round.Score, round.GoodCount, len(round.Results), round.Degraded)

		if scoring.Passes(round.Score, l.opts.GoodThreshold) {
			stop = catalog.StopThreshold
			break
		}
		if r == l.opts.MaxRounds-1 {
			stop = catalog.StopMaxRounds
			break
		}
		if ctx.Err() != nil {
			stop = catalog.StopCancelled
			break
		}
		if l.resolver == nil {
			stop = catalog.StopNoFix
			break
		}

		proposal, err := l.resolver.Resolve(ctx, fixgen.Request{
			Case:    tc,
			Round:   round,
			Policy:  l.policy,
			Anchors: l.anchors,
		})
		if err != nil {
			if ctx.Err() != nil {
				stop = catalog.StopCancelled
			} else {
				l.logger.Info("[%s] stopping after round %d: %v", tc.ID, r, err)
				stop = catalog.StopNoFix
			}
			break
		}
		query = query.WithFix(proposal.Fix)
		pending = &proposal
	}

	record := Summarize(tc, rounds, stop)
	span.SetAttributes(
		attribute.String(observability.AttrStatus, string(record.Status)),
		attribute.Float64(observability.AttrScore, record.AutocheckScore),
	)
	if record.Status == catalog.StatusDegraded {
		span.SetStatus(codes.Error, "degraded")
	}
	l.metrics.CaseFinished(string(record.Status), record.AutocheckScore)
	return record
}

// runRound performs RUN and SCORE for round r. The search call is detached
// from caller cancellation and bounded by the query timeout.
func (l *Loop) runRound(ctx context.Context, r int, q catalog.Query) catalog.RoundResult {
	ctx, span := observability.StartSpan(ctx, observability.SpanRound, attribute.Int(observability.AttrRound, r))
	defer span.End()

	round := catalog.RoundResult{
		Round:     r,
		QueryText: q.NaturalLanguage(),
		Query:     q,
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	page, err := l.searcher.Run(runCtx, q, l.opts.TopK)
	round.Duration = time.Since(start)
	if err != nil {
		round.Degraded = true
		round.Err = err.Error()
		round.Results = []catalog.ProductResult{}
		span.RecordError(err)
		l.metrics.IncRound("degraded")
		l.logger.Warn("[%s] round %d degraded: %v", observability.CaseIDFromContext(ctx), r, err)
		return round
	}

	round.RequestURL = page.RequestURL
	round.Results = page.Results
	round.Facets = page.Facets
	scored := scoring.Score(page.Results, l.policy, scoring.CriteriaFor(q))
	round.Score = scored.Score
	round.GoodCount = scored.GoodCount
	round.Verdicts = scored.Verdicts
	round.DriftReasons = scored.DriftReasons()

	span.SetAttributes(observability.RoundAttrs(r, round.Score)...)
	l.metrics.IncRound("scored")
	return round
}

// BestRound returns the index of the highest-scoring round, earliest on
// ties, or -1 for an empty history.
func BestRound(rounds []catalog.RoundResult) int {
	best := -1
	for i, r := range rounds {
		if best < 0 || r.Score > rounds[best].Score {
			best = i
		}
	}
	if best < 0 {
		return -1
	}
	return rounds[best].Round
}

// Summarize reduces a round history to a ScoreRecord without human input.
func Summarize(tc catalog.TestCase, rounds []catalog.RoundResult, stop catalog.StopReason) catalog.ScoreRecord {
	record := catalog.ScoreRecord{
		TestCaseID:  tc.ID,
		TestCase:    tc,
		BestRound:   BestRound(rounds),
		ScoreSource: catalog.SourceAutocheck,
		StopReason:  stop,
		Rounds:      rounds,
	}
	if best, ok := record.Best(); ok {
		record.AutocheckScore = best.Score
	}
	record.FinalScore = record.AutocheckScore
	record.Status = status(rounds, stop)
	return record
}

func status(rounds []catalog.RoundResult, stop catalog.StopReason) catalog.CaseStatus {
	if stop == catalog.StopCancelled {
		return catalog.StatusCancelled
	}
	anyResults := false
	for _, r := range rounds {
		if r.Degraded {
			return catalog.StatusDegraded
		}
		if len(r.Results) > 0 {
			anyResults = true
		}
	}
	if !anyResults {
		return catalog.StatusNoResults
	}
	return catalog.StatusOK
}
