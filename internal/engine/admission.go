package engine

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Admission bounds how many images are validated simultaneously. Callers
// block in Acquire until a slot frees up or their context is cancelled.
type Admission struct {
	sem   *semaphore.Weighted
	inUse atomic.Int64
	gauge func(inUse float64)
}

// NewAdmission creates an admission gate with the given slot count.
// Size below one means a single slot. The optional gauge receives the
// number of slots in use after every acquire and release.
func NewAdmission(size int, gauge func(inUse float64)) *Admission {
	if size < 1 {
		size = 1
	}
	return &Admission{
		sem:   semaphore.NewWeighted(int64(size)),
		gauge: gauge,
	}
}

// Acquire blocks until a slot is available and returns the release func.
func (a *Admission) Acquire(ctx context.Context) (func(), error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	a.report(a.inUse.Add(1))

	var released atomic.Bool
	release := func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		a.sem.Release(1)
		a.report(a.inUse.Add(-1))
	}
	return release, nil
}

// InUse returns the number of occupied slots.
func (a *Admission) InUse() int64 {
	return a.inUse.Load()
}

func (a *Admission) report(inUse int64) {
	if a.gauge != nil {
		a.gauge(float64(inUse))
	}
}
