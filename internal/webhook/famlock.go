package webhook

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// lockSweepInterval is how often idle family locks are dropped from the map.
const lockSweepInterval = time.Hour

type familyKey struct {
	org  string
	repo string
	pr   int
}

// familyLocks hands out one semaphore per pull request family so deliveries
// for the same family serialize while unrelated families proceed in
// parallel. The map itself is guarded by a semaphore so lookups stay
// cancellable.
type familyLocks struct {
	mapLock *semaphore.Weighted
	locks   map[familyKey]*semaphore.Weighted
}

func newFamilyLocks() *familyLocks {
	return &familyLocks{
		mapLock: semaphore.NewWeighted(1),
		locks:   map[familyKey]*semaphore.Weighted{},
	}
}

func (l *familyLocks) get(ctx context.Context, key familyKey) (*semaphore.Weighted, error) {
	if err := l.mapLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.mapLock.Release(1)
	if _, ok := l.locks[key]; !ok {
		l.locks[key] = semaphore.NewWeighted(1)
	}
	return l.locks[key], nil
}

// acquire blocks until the family's lock is held and returns its release.
func (l *familyLocks) acquire(ctx context.Context, key familyKey) (func(), error) {
	lock, err := l.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { lock.Release(1) }, nil
}

// cleanup removes every lock from the map. Each lock is acquired before it
// is deleted; otherwise a held lock could be dropped, recreated, and
// acquired again, letting two deliveries for one family run in parallel.
// While cleanup holds the map lock no new delivery can start.
func (l *familyLocks) cleanup(ctx context.Context) error {
	if err := l.mapLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.mapLock.Release(1)

	for key, lock := range l.locks {
		if err := lock.Acquire(ctx, 1); err != nil {
			return err
		}
		delete(l.locks, key)
		lock.Release(1)
	}
	return nil
}

// sweep runs cleanup on a timer until ctx is cancelled.
func (l *familyLocks) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.cleanup(ctx); err != nil {
				return
			}
		}
	}
}
