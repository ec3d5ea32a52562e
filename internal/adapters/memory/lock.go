package memory

import (
	"context"
	"sync"
	"time"

	"github.com/epistimio/kleio/pkg/ports"
)

// Locker implements ports.DistributedLocker with in-process mutexes. It
// only coordinates goroutines of one process, matching the scope of the
// in-memory store.
type Locker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]chan struct{})}
}

var _ ports.DistributedLocker = (*Locker)(nil)

// Lock acquires the named lock, blocking until it is free or the context
// is canceled. The TTL is ignored: an in-process lock dies with its
// owner.
func (l *Locker) Lock(ctx context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	for {
		l.mu.Lock()
		held, ok := l.locks[key]
		if !ok {
			release := make(chan struct{})
			l.locks[key] = release
			l.mu.Unlock()
			return func(context.Context) error {
				l.mu.Lock()
				delete(l.locks, key)
				l.mu.Unlock()
				close(release)
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-held:
		}
	}
}
