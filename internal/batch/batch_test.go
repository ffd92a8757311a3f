package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessPreservesOrder(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	got, err := Process(context.Background(), items, func(_ context.Context, n int) (int, error) {
		// Later items finish first within a window.
		time.Sleep(time.Duration(10-n%10) * time.Millisecond)
		return n * n, nil
	}, Options{Size: 10, Delay: time.Millisecond})
	require.NoError(t, err)
	require.Len(t, got, len(items))
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}

func TestProcessBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	items := make([]int, 35)

	_, err := Process(context.Background(), items, func(_ context.Context, _ int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	}, Options{Size: 10, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(10))
}

func TestProcessDelayBetweenWindowsOnly(t *testing.T) {
	const delay = 80 * time.Millisecond
	op := func(_ context.Context, n int) (int, error) { return n, nil }

	start := time.Now()
	_, err := Process(context.Background(), make([]int, 10), op, Options{Size: 10, Delay: delay})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), delay, "single window must not wait")

	start = time.Now()
	_, err = Process(context.Background(), make([]int, 21), op, Options{Size: 10, Delay: delay})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}

func TestProcessFailFast(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64
	items := make([]int, 30)
	for i := range items {
		items[i] = i
	}

	got, err := Process(context.Background(), items, func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		if n == 3 {
			return 0, boom
		}
		return n, nil
	}, Options{Size: 10, Delay: time.Millisecond})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, got)
	assert.LessOrEqual(t, calls.Load(), int64(10), "no item past the failing window may start")
}

func TestProcessEmpty(t *testing.T) {
	got, err := Process(context.Background(), nil, func(_ context.Context, n int) (int, error) {
		return n, nil
	}, Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProcessCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once

	_, err := Process(ctx, make([]int, 20), func(_ context.Context, n int) (int, error) {
		once.Do(cancel)
		return n, nil
	}, Options{Size: 10, Delay: time.Second})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAggregateCounts(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	genres := map[string][]string{
		"a": {"Drama", "Crime"},
		"b": {"Drama"},
		"c": {},
		"d": {"Drama", "Comedy"},
	}

	counts, err := Aggregate(context.Background(), items, func(_ context.Context, s string) ([]string, error) {
		return genres[s], nil
	}, Options{Size: 2, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Drama": 3, "Crime": 1, "Comedy": 1}, counts)
}

func TestProgressReportsEveryItem(t *testing.T) {
	var last atomic.Int64
	_, err := Process(context.Background(), make([]int, 12), func(_ context.Context, n int) (int, error) {
		return n, nil
	}, Options{Size: 5, Delay: time.Millisecond, Progress: func(done, total int) {
		assert.Equal(t, 12, total)
		for {
			p := last.Load()
			if int64(done) <= p || last.CompareAndSwap(p, int64(done)) {
				break
			}
		}
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(12), last.Load())
}
