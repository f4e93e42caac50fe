// Package lock serializes lifecycle workflows per reservation.  A Locker
// hands out exclusive, expiring leases on string keys; workflows take the
// lease for "reservation:<id>" before opening their unit of work.
package lock

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// ErrNotAcquired is returned when the key stayed busy for the whole wait.
var ErrNotAcquired = errors.New("lock not acquired")

// retryEvery is the polling interval while waiting for a busy key.
const retryEvery = 25 * time.Millisecond

// Locker grants exclusive access to a key.  Acquire blocks until the key
// is free, wait elapses or ctx is done.  The returned release func is safe
// to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Key returns the lock key for record id of the given kind.
func Key(kind string, id uint64) string {
	return kind + ":" + strconv.FormatUint(id, 10)
}

// Local is an in-process Locker used when Redis is not configured.  It
// only serializes callers within one process.
type Local struct {
	wait time.Duration
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocal returns a Local that waits up to wait for a busy key.
func NewLocal(wait time.Duration) *Local {
	return &Local{wait: wait, held: map[string]chan struct{}{}}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}
	for {
		l.mu.Lock()
		busy, ok := l.held[key]
		if !ok {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		if l.wait <= 0 {
			return nil, ErrNotAcquired
		}
		select {
		case <-busy:
		case <-timeout:
			return nil, ErrNotAcquired
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
