package intent

import (
	"context"
	"sync"
)

// userLocks serializes turns per user. Entries are dropped once no turn holds
// or waits on them.
type userLocks struct {
	mu    sync.Mutex
	users map[int64]*userLock
}

type userLock struct {
	sem  chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{users: make(map[int64]*userLock)}
}

// lock blocks until uid is free or ctx is done.
func (l *userLocks) lock(ctx context.Context, uid int64) (func(), error) {
	l.mu.Lock()
	ul, ok := l.users[uid]
	if !ok {
		ul = &userLock{sem: make(chan struct{}, 1)}
		l.users[uid] = ul
	}
	ul.refs++
	l.mu.Unlock()

	select {
	case ul.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(uid, ul)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ul.sem
			l.release(uid, ul)
		})
	}, nil
}

func (l *userLocks) release(uid int64, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.users, uid)
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
