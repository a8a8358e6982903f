package upload

import (
	"sync"
)

// Progress is a snapshot of an upload in flight.
type Progress struct {
	UploadedBytes  int64
	TotalBytes     int64
	Fraction       float64
	CompletedParts int
	TotalParts     int
}

// ProgressFunc is never called concurrently with itself. It runs on upload
// goroutines, so it should return quickly.
type ProgressFunc func(Progress)

// progressTracker sums per-part byte counts. A part's count is replaced,
// not accumulated, so a retried part restarts from zero.
type progressTracker struct {
	mu        sync.Mutex
	total     int64
	parts     []int64
	uploaded  int64
	completed int
	fn        ProgressFunc
}

func newProgressTracker(total int64, numParts int, fn ProgressFunc) *progressTracker {
	return &progressTracker{
		total: total,
		parts: make([]int64, numParts),
		fn:    fn,
	}
}

// set records n bytes sent so far for part.
func (t *progressTracker) set(part int, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.uploaded += n - t.parts[part-1]
	t.parts[part-1] = n
	t.emit()
}

func (t *progressTracker) complete(part int, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.uploaded += size - t.parts[part-1]
	t.parts[part-1] = size
	t.completed++
	t.emit()
}

func (t *progressTracker) snapshot() Progress {
	uploaded := min(max(t.uploaded, 0), t.total)

	fraction := 0.0
	if t.total > 0 {
		fraction = float64(uploaded) / float64(t.total)
	}

	return Progress{
		UploadedBytes:  uploaded,
		TotalBytes:     t.total,
		Fraction:       min(max(fraction, 0), 1),
		CompletedParts: t.completed,
		TotalParts:     len(t.parts),
	}
}

// emit runs with mu held, which serializes callbacks.
func (t *progressTracker) emit() {
	if t.fn != nil {
		t.fn(t.snapshot())
	}
}
