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

func TestRunBatchCount(t *testing.T) {
	tests := []struct {
		items   int
		batches int
	}{
		{items: 0, batches: 0},
		{items: 1, batches: 1},
		{items: 3, batches: 1},
		{items: 4, batches: 2},
		{items: 7, batches: 3},
		{items: 9, batches: 3},
	}

	for _, tt := range tests {
		items := make([]int, tt.items)
		var calls atomic.Int32

		n, err := Run(context.Background(), items, 3, 0, func(ctx context.Context, _ int) error {
			calls.Add(1)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, tt.batches, n, "items=%d", tt.items)
		assert.Equal(t, int32(tt.items), calls.Load())
	}
}

func TestRunIsSequentialWithPauses(t *testing.T) {
	const pause = 30 * time.Millisecond

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
		finished = map[int]time.Time{}
		started  = map[int]time.Time{}
	)

	items := []int{0, 1, 2, 3, 4, 5, 6}
	start := time.Now()
	n, err := Run(context.Background(), items, 3, pause, func(ctx context.Context, i int) error {
		mu.Lock()
		inFlight++
		maxSeen = max(maxSeen, inFlight)
		started[i] = time.Now()
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		inFlight--
		finished[i] = time.Now()
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.LessOrEqual(t, maxSeen, 3)
	assert.GreaterOrEqual(t, time.Since(start), 2*pause)

	// Nothing in the second batch starts before the first is done plus the pause.
	for _, first := range []int{0, 1, 2} {
		for _, second := range []int{3, 4, 5} {
			assert.GreaterOrEqual(t, started[second].Sub(finished[first]), pause)
		}
	}
}

func TestRunKeepsGoingOnError(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")

	n, err := Run(context.Background(), []int{1, 2, 3, 4}, 2, 0, func(ctx context.Context, i int) error {
		calls.Add(1)
		if i == 1 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	n, err := Run(ctx, []int{1, 2, 3, 4, 5, 6}, 3, time.Hour, func(ctx context.Context, i int) error {
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}
