package refine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/fixgen"
)

// scriptedSearcher returns pages in order, repeating the last one.
type scriptedSearcher struct {
	mu      sync.Mutex
	pages   []catalog.ResultPage
	errs    []error
	queries []catalog.Query
	onRun   func(n int)
}

func (s *scriptedSearcher) Run(ctx context.Context, q catalog.Query, topK int) (catalog.ResultPage, error) {
	s.mu.Lock()
	n := len(s.queries)
	s.queries = append(s.queries, q)
	var err error
	if n < len(s.errs) {
		err = s.errs[n]
	}
	page := catalog.ResultPage{}
	if len(s.pages) > 0 {
		page = s.pages[min(n, len(s.pages)-1)]
	}
	onRun := s.onRun
	s.mu.Unlock()

	if onRun != nil {
		onRun(n)
	}
	if err != nil {
		return catalog.ResultPage{}, err
	}
	if len(page.Results) > topK {
		page.Results = page.Results[:topK]
	}
	return page, nil
}

func (s *scriptedSearcher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type countingResolver struct {
	mu    sync.Mutex
	calls int
	err   error
	inner Resolver
}

func (r *countingResolver) Resolve(ctx context.Context, req fixgen.Request) (fixgen.Proposal, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return fixgen.Proposal{}, r.err
	}
	if r.inner != nil {
		return r.inner.Resolve(ctx, req)
	}
	return fixgen.Proposal{Fix: catalog.Fix{RevisedQueryText: req.Round.Query.Text + " gadget", Confidence: 0.5}, Source: "stub"}, nil
}

func product(id, category string, price float64) catalog.ProductResult {
	return catalog.ProductResult{ID: id, Title: id, Price: price, HasPrice: true, Categories: []string{category}}
}

func page(results ...catalog.ProductResult) catalog.ResultPage {
	return catalog.ResultPage{Results: results, TotalResults: len(results)}
}

var (
	allBad   = page(product("a", "Beauty", 10), product("b", "Chocolate", 10), product("c", "Cards", 10))
	twoGood  = page(product("a", "Gadgets", 10), product("b", "Tech", 10), product("c", "Beauty", 10))
	allGood  = page(product("a", "Gadgets", 10), product("b", "Tech", 10), product("c", "Cameras", 10))
	testCase = catalog.TestCase{ID: "T1", OriginalQuery: "gifts for a tech-savvy innovator"}
)

func newTestLoop(s Searcher, r Resolver, opts Options) *Loop {
	return NewLoop(s, r, nil, nil, opts, nil, nil)
}

func TestLoopStopsAtThresholdWithoutFix(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{twoGood}}
	resolver := &countingResolver{}
	loop := newTestLoop(searcher, resolver, Options{GoodThreshold: 0.67, MaxRounds: 5, TopK: 3})

	record := loop.RunCase(context.Background(), testCase)

	require.Len(t, record.Rounds, 1)
	assert.Zero(t, resolver.calls)
	assert.Equal(t, catalog.StopThreshold, record.StopReason)
	assert.InDelta(t, 2.0/3.0, record.AutocheckScore, 1e-9)
	assert.Equal(t, catalog.StatusOK, record.Status)
	assert.Equal(t, []string{"blocklisted category: Beauty"}, record.Rounds[0].DriftReasons)
}

func TestLoopRunsMaxRoundsWhenNothingImproves(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allBad}}
	resolver := &countingResolver{}
	loop := newTestLoop(searcher, resolver, Options{GoodThreshold: 0.67, MaxRounds: 5, TopK: 3})

	record := loop.RunCase(context.Background(), testCase)

	require.Len(t, record.Rounds, 5)
	assert.Equal(t, 4, resolver.calls)
	assert.Equal(t, catalog.StopMaxRounds, record.StopReason)
	assert.Zero(t, record.AutocheckScore)
	assert.Equal(t, 0, record.BestRound)
	for i, r := range record.Rounds {
		assert.Equal(t, i, r.Round)
		assert.Equal(t, i > 0, r.Fix != nil)
	}
	assert.Equal(t, "stub", record.Rounds[1].FixSource)
	assert.Equal(t, 4, record.Rounds[4].Query.Revision)
}

func TestLoopKeepsBestRound(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{
		page(product("a", "Gadgets", 10), product("b", "Beauty", 10), product("c", "Cards", 10)),
		twoGood,
	}}
	loop := newTestLoop(searcher, &countingResolver{}, Options{GoodThreshold: 0.9, MaxRounds: 3, TopK: 3})

	record := loop.RunCase(context.Background(), testCase)

	require.Len(t, record.Rounds, 3)
	assert.Equal(t, 1, record.BestRound, "ties resolve to the earliest round")
	assert.InDelta(t, 2.0/3.0, record.AutocheckScore, 1e-9)
	assert.Equal(t, record.AutocheckScore, record.FinalScore)
}

func TestLoopUsesHeuristicChain(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allBad, allGood}}
	chain := fixgen.NewChain(nil, nil, nil, nil)
	loop := newTestLoop(searcher, chain, Options{GoodThreshold: 0.67, MaxRounds: 5, TopK: 3})

	record := loop.RunCase(context.Background(), catalog.TestCase{ID: "T2", OriginalQuery: "retro gift for a 90s fan"})

	require.Len(t, record.Rounds, 2)
	second := record.Rounds[1]
	require.NotNil(t, second.Fix)
	assert.Equal(t, fixgen.SourceHeuristic, second.FixSource)
	assert.Contains(t, second.Query.ExcludeCategories, "Chocolate")
	assert.Contains(t, second.QueryText, "Exclude ")
	assert.Equal(t, catalog.StopThreshold, record.StopReason)
	assert.Equal(t, 1.0, record.AutocheckScore)
}

func TestLoopDegradedRoundContinues(t *testing.T) {
	searcher := &scriptedSearcher{
		pages: []catalog.ResultPage{{}, allGood},
		errs:  []error{errors.New("max retries exceeded: 503")},
	}
	loop := newTestLoop(searcher, &countingResolver{}, Options{GoodThreshold: 0.67, MaxRounds: 3, TopK: 3})

	record := loop.RunCase(context.Background(), testCase)

	require.Len(t, record.Rounds, 2)
	assert.True(t, record.Rounds[0].Degraded)
	assert.Zero(t, record.Rounds[0].Score)
	assert.NotEmpty(t, record.Rounds[0].Err)
	assert.Equal(t, catalog.StatusDegraded, record.Status)
	assert.Equal(t, 1.0, record.AutocheckScore)
}

func TestLoopStopsWhenNoValidFix(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allBad}}
	loop := newTestLoop(searcher, &countingResolver{err: fixgen.ErrNoValidFix}, Options{GoodThreshold: 0.67, MaxRounds: 5, TopK: 3})

	record := loop.RunCase(context.Background(), testCase)

	require.Len(t, record.Rounds, 1)
	assert.Equal(t, catalog.StopNoFix, record.StopReason)
}

func TestLoopNoResults(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{{}}}
	loop := newTestLoop(searcher, &countingResolver{}, Options{GoodThreshold: 0.67, MaxRounds: 2, TopK: 3})

	record := loop.RunCase(context.Background(), testCase)
	assert.Equal(t, catalog.StatusNoResults, record.Status)
	assert.Len(t, record.Rounds, 2)
}

func TestLoopFinishesStartedRoundOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allBad}}
	searcher.onRun = func(n int) {
		if n == 1 {
			cancel()
			time.Sleep(5 * time.Millisecond)
		}
	}
	loop := newTestLoop(searcher, &countingResolver{}, Options{GoodThreshold: 0.67, MaxRounds: 5, TopK: 3})

	record := loop.RunCase(ctx, testCase)

	require.Len(t, record.Rounds, 2)
	assert.False(t, record.Rounds[1].Degraded, "the in-flight round completes")
	assert.Equal(t, catalog.StopCancelled, record.StopReason)
	assert.Equal(t, catalog.StatusCancelled, record.Status)
}

func TestBestRound(t *testing.T) {
	assert.Equal(t, -1, BestRound(nil))
	rounds := []catalog.RoundResult{{Round: 0, Score: 0.3}, {Round: 1, Score: 0.6}, {Round: 2, Score: 0.6}}
	assert.Equal(t, 1, BestRound(rounds))
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	for _, opts := range []Options{
		{GoodThreshold: 1.2, MaxRounds: 5, TopK: 3},
		{GoodThreshold: 0, MaxRounds: 5, TopK: 3},
		{GoodThreshold: 0.5, MaxRounds: 0, TopK: 3},
		{GoodThreshold: 0.5, MaxRounds: 5, TopK: 0},
		{GoodThreshold: 0.5, MaxRounds: 5, TopK: 3, Concurrency: -1},
	} {
		assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)
	}
}

func TestLoopWithoutResolverStopsAfterFirstFailure(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allBad}}
	loop := newTestLoop(searcher, nil, Options{GoodThreshold: 0.67, MaxRounds: 5, TopK: 3})

	record := loop.RunCase(context.Background(), testCase)

	require.Len(t, record.Rounds, 1)
	assert.Equal(t, 1, searcher.calls())
	assert.Equal(t, catalog.StopNoFix, record.StopReason)
}

func TestNewLoopReplacesUnusableOptions(t *testing.T) {
	loop := newTestLoop(&scriptedSearcher{}, nil, Options{MaxRounds: -1, TopK: -2, Concurrency: -1, QueryTimeout: -time.Second})
	opts := loop.Options()
	def := DefaultOptions()
	assert.Equal(t, def.MaxRounds, opts.MaxRounds)
	assert.Equal(t, def.TopK, opts.TopK)
	assert.Equal(t, def.Concurrency, opts.Concurrency)
	assert.Equal(t, def.QueryTimeout, opts.QueryTimeout)
	assert.InDelta(t, def.GoodThreshold, opts.GoodThreshold, 1e-9)
}

func TestLoopNegativeMaxRoundsStillTerminates(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allBad}}
	resolver := &countingResolver{}
	loop := newTestLoop(searcher, resolver, Options{GoodThreshold: 0.67, MaxRounds: -1, TopK: 3})

	record := loop.RunCase(context.Background(), testCase)

	require.Len(t, record.Rounds, DefaultOptions().MaxRounds)
	assert.Equal(t, catalog.StopMaxRounds, record.StopReason)
}

func TestLoopZeroOptionsDoNotPassEmptyPages(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{{}}}
	loop := newTestLoop(searcher, &countingResolver{err: errors.New("no fix")}, Options{})

	record := loop.RunCase(context.Background(), testCase)

	require.Len(t, record.Rounds, 1)
	assert.Equal(t, catalog.StopNoFix, record.StopReason)
	assert.Zero(t, record.AutocheckScore)
}
