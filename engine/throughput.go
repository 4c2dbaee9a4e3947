package engine

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/riadafridishibly/compactor/journal"
	"github.com/riadafridishibly/compactor/runner"
)

const (
	mib = 1 << 20

	// samples slower than this are treated as measurement noise
	minPlausibleThroughput = 1 * mib
	// same-algorithm history wins once it has this many samples
	minAlgorithmSamples = 3
	// how far back the history goes
	throughputWindow = 50
)

// fallbackThroughput is used when the journal has no usable history.
var fallbackThroughput = map[runner.Algorithm]float64{
	runner.AlgorithmNone:      30 * mib,
	runner.AlgorithmXpress4K:  60 * mib,
	runner.AlgorithmXpress8K:  50 * mib,
	runner.AlgorithmXpress16K: 40 * mib,
	runner.AlgorithmLZX:       12 * mib,
}

// FallbackThroughput returns the built-in bytes/sec for an algorithm.
func FallbackThroughput(algo runner.Algorithm) float64 {
	if v, ok := fallbackThroughput[algo]; ok {
		return v
	}
	return fallbackThroughput[runner.AlgorithmNone]
}

// AssumedThroughput derives bytes/sec for heartbeat progress from recent
// completed compressions. It never fails: journal errors fall back to the
// built-in constants.
func (e *Engine) AssumedThroughput(ctx context.Context, algo runner.Algorithm) float64 {
	records, err := e.journal.Recent(ctx, throughputWindow)
	if err != nil {
		e.logger.Warn("cannot read throughput history", zap.Error(err))
		return FallbackThroughput(algo)
	}
	tp, source := estimateThroughput(records, algo)
	e.logger.Debug("assumed throughput",
		zap.Stringer("algorithm", algo),
		zap.Float64("bytes_per_sec", tp),
		zap.String("source", source))
	return tp
}

func estimateThroughput(records []*journal.Record, algo runner.Algorithm) (float64, string) {
	var all, same []float64
	for _, r := range records {
		if r.Status != journal.StatusCompleted || r.IsRollback {
			continue
		}
		secs := r.Elapsed().Seconds()
		if secs <= 0 || r.BeforeBytes <= 0 {
			continue
		}
		tp := float64(r.BeforeBytes) / secs
		if tp < minPlausibleThroughput {
			continue
		}
		all = append(all, tp)
		if r.Algorithm == algo {
			same = append(same, tp)
		}
	}
	switch {
	case len(same) >= minAlgorithmSamples:
		return median(same), "history:" + algo.String()
	case len(all) > 0:
		return median(all), "history"
	}
	return FallbackThroughput(algo), "fallback"
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
