package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
)

func completed(algo runner.Algorithm, bytes int64, secs int) *journal.Record {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(secs) * time.Second)
	return &journal.Record{
		Algorithm:   algo,
		StartedAt:   start,
		FinishedAt:  &end,
		BeforeBytes: bytes,
		Status:      journal.StatusCompleted,
	}
}

func TestEstimateThroughputFallsBackWithoutHistory(t *testing.T) {
	tp, source := estimateThroughput(nil, runner.AlgorithmLZX)
	assert.Equal(t, "fallback", source)
	assert.Equal(t, FallbackThroughput(runner.AlgorithmLZX), tp)
	assert.Equal(t, FallbackThroughput(runner.AlgorithmNone), FallbackThroughput(runner.Algorithm(99)))
}

func TestEstimateThroughputPrefersSameAlgorithm(t *testing.T) {
	records := []*journal.Record{
		completed(runner.AlgorithmLZX, 20*mib, 1),
		completed(runner.AlgorithmLZX, 10*mib, 1),
		completed(runner.AlgorithmLZX, 30*mib, 1),
		completed(runner.AlgorithmXpress4K, 500*mib, 1),
	}
	tp, source := estimateThroughput(records, runner.AlgorithmLZX)
	assert.Equal(t, "history:lzx", source)
	assert.Equal(t, float64(20*mib), tp)
}

func TestEstimateThroughputUsesAllWhenTooFewSameAlgorithm(t *testing.T) {
	records := []*journal.Record{
		completed(runner.AlgorithmLZX, 20*mib, 1),
		completed(runner.AlgorithmXpress4K, 40*mib, 1),
		completed(runner.AlgorithmXpress8K, 60*mib, 1),
		completed(runner.AlgorithmXpress8K, 80*mib, 1),
	}
	tp, source := estimateThroughput(records, runner.AlgorithmLZX)
	assert.Equal(t, "history", source)
	assert.Equal(t, float64(50*mib), tp)
}

func TestEstimateThroughputDiscardsNoise(t *testing.T) {
	slow := completed(runner.AlgorithmNone, 1*mib, 10)
	rollback := completed(runner.AlgorithmNone, 900*mib, 1)
	rollback.IsRollback = true
	failed := completed(runner.AlgorithmNone, 900*mib, 1)
	failed.Status = journal.StatusFailed
	unfinished := completed(runner.AlgorithmNone, 900*mib, 1)
	unfinished.FinishedAt = nil
	unfinished.Status = journal.StatusInProgress
	good := completed(runner.AlgorithmNone, 70*mib, 2)

	tp, source := estimateThroughput([]*journal.Record{slow, rollback, failed, unfinished, good}, runner.AlgorithmNone)
	assert.Equal(t, "history", source)
	assert.Equal(t, float64(35*mib), tp)
}

func TestAssumedThroughputReadsJournal(t *testing.T) {
	f := newFixture(t, succeed)
	ctx := context.Background()
	for _, r := range []*journal.Record{
		completed(runner.AlgorithmXpress16K, 90*mib, 1),
		completed(runner.AlgorithmXpress16K, 100*mib, 1),
		completed(runner.AlgorithmXpress16K, 110*mib, 1),
	} {
		require.NoError(t, f.journal.Add(ctx, r))
	}
	assert.Equal(t, float64(100*mib), f.engine.AssumedThroughput(ctx, runner.AlgorithmXpress16K))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
	in := []float64{3, 1, 2}
	median(in)
	assert.Equal(t, []float64{3, 1, 2}, in, "input is not reordered")
}
