package timing

import (
	"context"
	"sync"
	"time"
)

type timingKey struct{}

type timingInfo struct {
	operation string
	startTime time.Time
}

// Record is one completed measurement.
type Record struct {
	Operation string
	Duration  time.Duration
}

// Tracker collects stage durations. A Tracker is safe for concurrent use,
// though the pipeline creates one per image.
type Tracker struct {
	records []Record
	mu      sync.RWMutex
	enabled bool
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		enabled: true,
		now:     time.Now,
	}
}

// StartTiming returns a context carrying the start time of operation. Pass
// it to EndTiming once the operation completes.
func (tt *Tracker) StartTiming(ctx context.Context, operation string) context.Context {
	if !tt.isEnabled() {
		return ctx
	}

	return context.WithValue(ctx, timingKey{}, timingInfo{
		operation: operation,
		startTime: tt.now(),
	})
}

// EndTiming records and returns the elapsed time since the matching
// StartTiming. Contexts without a start time are ignored.
func (tt *Tracker) EndTiming(ctx context.Context) time.Duration {
	if !tt.isEnabled() {
		return 0
	}

	info, ok := ctx.Value(timingKey{}).(timingInfo)
	if !ok {
		return 0
	}

	duration := tt.now().Sub(info.startTime)

	tt.mu.Lock()
	tt.records = append(tt.records, Record{Operation: info.operation, Duration: duration})
	tt.mu.Unlock()

	return duration
}

// Add records a duration measured elsewhere, such as a stage timing
// carried by an analysis result.
func (tt *Tracker) Add(operation string, duration time.Duration) {
	if !tt.isEnabled() {
		return
	}

	tt.mu.Lock()
	tt.records = append(tt.records, Record{Operation: operation, Duration: duration})
	tt.mu.Unlock()
}

// Operations lists the recorded operation names in first-seen order.
func (tt *Tracker) Operations() []string {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	seen := make(map[string]bool)
	var ops []string
	for _, r := range tt.records {
		if !seen[r.Operation] {
			seen[r.Operation] = true
			ops = append(ops, r.Operation)
		}
	}
	return ops
}

// Records returns every measurement in completion order.
func (tt *Tracker) Records() []Record {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	result := make([]Record, len(tt.records))
	copy(result, tt.records)
	return result
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	var result []time.Duration
	for _, r := range tt.records {
		if r.Operation == operation {
			result = append(result, r.Duration)
		}
	}
	return result
}

func (tt *Tracker) GetAverageTime(operation string) time.Duration {
	timings := tt.GetTimings(operation)
	if len(timings) == 0 {
		return 0
	}

	var total time.Duration
	for _, duration := range timings {
		total += duration
	}

	return total / time.Duration(len(timings))
}

// Total sums every recorded duration.
func (tt *Tracker) Total() time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	var total time.Duration
	for _, r := range tt.records {
		total += r.Duration
	}
	return total
}

func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}

func (tt *Tracker) isEnabled() bool {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	return tt.enabled
}

// Reset drops the records of operation, or all records when operation is
// empty.
func (tt *Tracker) Reset(operation string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if operation == "" {
		tt.records = nil
		return
	}

	kept := tt.records[:0]
	for _, r := range tt.records {
		if r.Operation != operation {
			kept = append(kept, r)
		}
	}
	tt.records = kept
}
