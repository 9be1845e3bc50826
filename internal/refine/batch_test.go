package refine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/fixgen"
)

func TestRunBatchPreservesInputOrder(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allGood}}
	loop := newTestLoop(searcher, &countingResolver{}, Options{GoodThreshold: 0.67, MaxRounds: 3, TopK: 3, Concurrency: 3})

	cases := make([]catalog.TestCase, 12)
	for i := range cases {
		cases[i] = catalog.TestCase{ID: fmt.Sprintf("T%02d", i), Row: i, OriginalQuery: "gadgets"}
	}

	run := loop.RunBatch(context.Background(), cases)

	require.Len(t, run.Records, len(cases))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 3, run.TopK)
	for i, rec := range run.Records {
		assert.Equal(t, cases[i].ID, rec.TestCaseID)
	}
	assert.Equal(t, len(cases), searcher.calls())
}

func TestRunBatchCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allGood}}
	loop := newTestLoop(searcher, &countingResolver{}, Options{})

	run := loop.RunBatch(ctx, []catalog.TestCase{testCase, {ID: "T2"}})

	require.Len(t, run.Records, 2)
	for _, rec := range run.Records {
		assert.Equal(t, catalog.StatusCancelled, rec.Status)
		assert.Empty(t, rec.Rounds)
		assert.Equal(t, -1, rec.BestRound)
	}
	assert.Zero(t, searcher.calls())
}

func TestRunBatchPanickingCaseKeepsSiblings(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allGood}}
	searcher.onRun = func(n int) {
		if n == 0 {
			panic("parser bug")
		}
	}
	loop := newTestLoop(searcher, &countingResolver{}, Options{GoodThreshold: 0.67, MaxRounds: 2, TopK: 3, Concurrency: 1})

	run := loop.RunBatch(context.Background(), []catalog.TestCase{testCase, {ID: "T2", OriginalQuery: "gadgets"}})

	require.Len(t, run.Records, 2)
	crashed := run.Records[0]
	assert.Equal(t, "T1", crashed.TestCaseID)
	assert.Equal(t, catalog.StatusDegraded, crashed.Status)
	require.Len(t, crashed.Rounds, 1)
	assert.Contains(t, crashed.Rounds[0].Err, "parser bug")
	assert.Equal(t, catalog.StatusOK, run.Records[1].Status)
}

func TestApplyFixesRunsOneStep(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allBad, allGood}}
	loop := newTestLoop(searcher, &countingResolver{}, Options{GoodThreshold: 0.67, TopK: 3, Concurrency: 1})

	fix := catalog.Fix{RevisedQueryText: "tech gadget gifts", ExcludeCategories: []string{"Beauty"}, Confidence: 0.6}
	run := loop.ApplyFixes(context.Background(),
		[]catalog.TestCase{testCase, {ID: "T9", OriginalQuery: "no fix here"}},
		map[string]catalog.Fix{fixgen.FileStem("T1"): fix})

	require.Len(t, run.Records, 2)
	first := run.Records[0]
	require.Len(t, first.Rounds, 2)
	assert.Equal(t, fixgen.SourceSaved, first.Rounds[1].FixSource)
	assert.Equal(t, "tech gadget gifts", first.Rounds[1].Query.Text)
	assert.Equal(t, catalog.StopThreshold, first.StopReason)

	second := run.Records[1]
	assert.Len(t, second.Rounds, 1)
	assert.Equal(t, catalog.StopThreshold, second.StopReason, "round 0 already passes")
}

func TestApplyFixesPanickingCaseKeepsSiblings(t *testing.T) {
	searcher := &scriptedSearcher{pages: []catalog.ResultPage{allGood}}
	searcher.onRun = func(n int) {
		if n == 0 {
			panic("decoder bug")
		}
	}
	loop := newTestLoop(searcher, nil, Options{GoodThreshold: 0.67, TopK: 3, Concurrency: 1})

	run := loop.ApplyFixes(context.Background(),
		[]catalog.TestCase{testCase, {ID: "T2", OriginalQuery: "gadgets"}}, nil)

	require.Len(t, run.Records, 2)
	assert.Equal(t, catalog.StatusDegraded, run.Records[0].Status)
	require.Len(t, run.Records[0].Rounds, 1)
	assert.Contains(t, run.Records[0].Rounds[0].Err, "decoder bug")
	assert.Equal(t, catalog.StatusOK, run.Records[1].Status)
}
