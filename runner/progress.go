package runner

import (
	"sync"
	"time"
)

// CompressionProgress is a transient snapshot sent to the caller. Percent is
// 0 with IsBusy set when no total is known: show a spinner, not "0% done".
type CompressionProgress struct {
	CurrentFile    string
	ProcessedBytes int64
	TotalBytes     int64
	ProcessedFiles int64
	TotalFiles     int64
	Percent        float64
	BytesPerSecond float64
	ETA            time.Duration
	Status         string
	IsBusy         bool
}

// tracker merges the heartbeat estimate and parsed output into one stream
// whose percentage never decreases.
type tracker struct {
	mu          sync.Mutex
	fn          func(CompressionProgress)
	totalBytes  int64
	totalFiles  int64
	throughput  float64
	started     time.Time
	currentFile string
	files       int64
	bytes       int64
	maxPercent  float64
	status      string
	done        bool
}

func newTracker(fn func(CompressionProgress), totalBytes, totalFiles int64, throughput float64, status string) *tracker {
	return &tracker{
		fn:         fn,
		totalBytes: totalBytes,
		totalFiles: totalFiles,
		throughput: throughput,
		started:    time.Now(),
		status:     status,
	}
}

// heartbeat advances the byte estimate from elapsed time and assumed throughput.
func (t *tracker) heartbeat(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.throughput > 0 {
		est := int64(t.throughput * now.Sub(t.started).Seconds())
		if t.totalBytes > 0 && est > t.totalBytes {
			est = t.totalBytes
		}
		if est > t.bytes {
			t.bytes = est
		}
	}
	t.emitLocked()
}

func (t *tracker) file(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentFile = name
	t.files++
	t.emitLocked()
}

func (t *tracker) finish(status string, complete bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.done = true
	if complete {
		if t.totalBytes > 0 {
			t.bytes = t.totalBytes
		}
		t.maxPercent = 100
	}
	t.emitLocked()
}

func (t *tracker) emitLocked() {
	if t.fn == nil {
		return
	}
	p := CompressionProgress{
		CurrentFile:    t.currentFile,
		ProcessedBytes: t.bytes,
		TotalBytes:     t.totalBytes,
		ProcessedFiles: t.files,
		TotalFiles:     t.totalFiles,
		BytesPerSecond: t.throughput,
		Status:         t.status,
	}
	switch {
	case t.totalBytes > 0 && t.bytes > 0:
		p.Percent = 100 * float64(t.bytes) / float64(t.totalBytes)
	case t.totalFiles > 0 && t.files > 0:
		p.Percent = 100 * float64(t.files) / float64(t.totalFiles)
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	if p.Percent < t.maxPercent {
		p.Percent = t.maxPercent
	}
	t.maxPercent = p.Percent

	if t.throughput > 0 && t.totalBytes > 0 {
		remaining := t.totalBytes - t.bytes
		if remaining < 0 {
			remaining = 0
		}
		p.ETA = time.Duration(float64(remaining) / t.throughput * float64(time.Second))
	}
	p.IsBusy = !t.done && p.Percent == 0
	t.fn(p)
}
