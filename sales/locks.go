package sales

import (
	"context"
	"sync"

	"github.com/warp/pos-engine/pos"
)

// saleLocks serializes operations on the same sale. Waiting respects the
// caller's context; entries are dropped once nobody holds or waits on them.
type saleLocks struct {
	mu    sync.Mutex
	locks map[pos.SaleID]*saleLock
}

type saleLock struct {
	held chan struct{}
	refs int
}

func (l *saleLocks) lock(ctx context.Context, id pos.SaleID) (unlock func(), err error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[pos.SaleID]*saleLock)
	}
	sl, ok := l.locks[id]
	if !ok {
		sl = &saleLock{held: make(chan struct{}, 1)}
		l.locks[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	select {
	case sl.held <- struct{}{}:
		return func() {
			<-sl.held
			l.release(id, sl)
		}, nil
	case <-ctx.Done():
		l.release(id, sl)
		return nil, ctx.Err()
	}
}

func (l *saleLocks) release(id pos.SaleID, sl *saleLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, id)
	}
}
