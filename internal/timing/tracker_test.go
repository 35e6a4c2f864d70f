package timing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step on every call.
func fakeClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(step)
		return current
	}
}

func TestStartEndTiming(t *testing.T) {
	tt := NewTracker()
	tt.now = fakeClock(10 * time.Millisecond)

	ctx := tt.StartTiming(context.Background(), "normalize")
	d := tt.EndTiming(ctx)
	assert.Equal(t, 10*time.Millisecond, d)

	ctx = tt.StartTiming(context.Background(), "extract")
	tt.EndTiming(ctx)
	ctx = tt.StartTiming(context.Background(), "normalize")
	tt.EndTiming(ctx)

	records := tt.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "normalize", records[0].Operation)
	assert.Equal(t, "extract", records[1].Operation)

	assert.Len(t, tt.GetTimings("normalize"), 2)
	assert.Equal(t, 10*time.Millisecond, tt.GetAverageTime("normalize"))
	assert.Equal(t, 30*time.Millisecond, tt.Total())
	assert.Zero(t, tt.GetAverageTime("missing"))
}

func TestEndTimingWithoutStart(t *testing.T) {
	tt := NewTracker()
	assert.Zero(t, tt.EndTiming(context.Background()))
	assert.Empty(t, tt.Records())
}

func TestDisabledTrackerRecordsNothing(t *testing.T) {
	tt := NewTracker()
	tt.SetEnabled(false)

	parent := context.Background()
	ctx := tt.StartTiming(parent, "normalize")
	assert.Equal(t, parent, ctx)
	tt.EndTiming(ctx)
	assert.Empty(t, tt.Records())
}

func TestAddAndOperations(t *testing.T) {
	tt := NewTracker()
	tt.Add("normalize", 10*time.Millisecond)
	tt.Add("detect", 4*time.Millisecond)
	tt.Add("normalize", 30*time.Millisecond)

	assert.Equal(t, []string{"normalize", "detect"}, tt.Operations())
	assert.Equal(t, 20*time.Millisecond, tt.GetAverageTime("normalize"))
	assert.Equal(t, 44*time.Millisecond, tt.Total())

	tt.SetEnabled(false)
	tt.Add("annotate", time.Millisecond)
	assert.Len(t, tt.Records(), 3)
}

func TestReset(t *testing.T) {
	tt := NewTracker()
	for _, op := range []string{"a", "b", "a"} {
		tt.EndTiming(tt.StartTiming(context.Background(), op))
	}

	tt.Reset("a")
	records := tt.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].Operation)

	tt.Reset("")
	assert.Empty(t, tt.Records())
}

func TestConcurrentUse(t *testing.T) {
	tt := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tt.EndTiming(tt.StartTiming(context.Background(), "stage"))
		}()
	}
	wg.Wait()

	assert.Len(t, tt.GetTimings("stage"), 20)
}
