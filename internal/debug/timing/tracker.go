package timing

import (
	"sort"
	"sync"
	"time"
)

// Tracker records wall-clock durations per named operation.
type Tracker struct {
	timings map[string][]time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
		now:     time.Now,
	}
}

// Stopwatch measures one run of an operation.
type Stopwatch struct {
	tracker   *Tracker
	operation string
	start     time.Time
}

func (tt *Tracker) Start(operation string) *Stopwatch {
	return &Stopwatch{tracker: tt, operation: operation, start: tt.now()}
}

// Stop records the elapsed time and returns it. Calling Stop twice records
// the operation twice.
func (sw *Stopwatch) Stop() time.Duration {
	elapsed := sw.tracker.now().Sub(sw.start)
	sw.tracker.record(sw.operation, elapsed)
	return elapsed
}

func (tt *Tracker) record(operation string, d time.Duration) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.timings[operation] = append(tt.timings[operation], d)
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

// Operations lists every operation with at least one recording, sorted.
func (tt *Tracker) Operations() []string {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	ops := make([]string, 0, len(tt.timings))
	for op := range tt.timings {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
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

// Reset drops every recording.
func (tt *Tracker) Reset() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.timings = make(map[string][]time.Duration)
}
