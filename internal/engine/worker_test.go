package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsSubmittedWork(t *testing.T) {
	pool := NewWorkerPool(4)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		err := pool.Submit(context.Background(), func(context.Context) {
			ran.Add(1)
		})
		require.NoError(t, err)
	}
	pool.Wait()

	assert.Equal(t, int32(10), ran.Load())
	m := pool.Metrics()
	assert.Equal(t, int64(10), m.Evaluated)
	assert.Equal(t, int64(0), m.Active)
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)

	var active, peak atomic.Int32
	for i := 0; i < 8; i++ {
		err := pool.Submit(context.Background(), func(context.Context) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
		})
		require.NoError(t, err)
	}
	pool.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestWorkerPool_SubmitRespectsContextWhileBlocked(t *testing.T) {
	pool := NewWorkerPool(1)

	release := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
		<-release
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, func(context.Context) {})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	pool.Wait()
}

func TestWorkerPool_ShutdownRejectsNewWork(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()

	err := pool.Submit(context.Background(), func(context.Context) {})
	require.ErrorIs(t, err, ErrPoolShutdown)
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := NewWorkerPool(2)

	require.NoError(t, pool.Submit(context.Background(), func(context.Context) {
		panic("unexpected")
	}))
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) {}))
	pool.Wait()

	m := pool.Metrics()
	assert.Equal(t, int64(2), m.Evaluated)
	assert.Equal(t, int64(1), m.Panics)
}
