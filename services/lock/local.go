package locksvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core/group"
)

// LocalLocker serializes batches within this process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

var _ group.BatchLocker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(batchID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[batchID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[batchID] = ch
	}
	return ch
}

func (l *LocalLocker) Lock(ctx context.Context, batchID string) (func(), error) {
	ch := l.slot(batchID)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for batch lock")
	}
}
