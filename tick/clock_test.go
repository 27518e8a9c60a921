package tick

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockProducesOrderedTickIDs(t *testing.T) {
	c := New(200, nil) // 5ms interval, fast for the test
	ctx, cancel := context.WithCancel(context.Background())

	var seen []uint64
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}

	done := make(chan struct{})
	go func() {
		c.Run(ctx, func(tickID uint64, dt time.Duration) {
			<-mu
			seen = append(seen, tickID)
			mu <- struct{}{}
			if len(seen) >= 5 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("clock did not stop in time")
	}

	<-mu
	require.GreaterOrEqual(t, len(seen), 5)
	for i := 1; i < len(seen); i++ {
		require.Equal(t, seen[i-1]+1, seen[i])
	}
}

func TestClockCurrentTracksLastTick(t *testing.T) {
	c := New(500, nil)
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32

	done := make(chan struct{})
	go func() {
		c.Run(ctx, func(tickID uint64, dt time.Duration) {
			if count.Add(1) >= 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("clock did not stop in time")
	}
	require.GreaterOrEqual(t, c.Current(), uint64(3))
}
