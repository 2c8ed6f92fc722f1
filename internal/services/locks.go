package services

import "sync"

// roundLocks serializes writers of the same round. Rounds are independent
// of each other.
type roundLocks struct {
	mu    sync.Mutex
	locks map[string]*roundLock
}

type roundLock struct {
	mu   sync.Mutex
	refs int
}

func newRoundLocks() *roundLocks {
	return &roundLocks{locks: make(map[string]*roundLock)}
}

// lock blocks until the round is free and returns its unlock func.
func (l *roundLocks) lock(projectID, roundID string) func() {
	key := projectID + "/" + roundID

	l.mu.Lock()
	rl, ok := l.locks[key]
	if !ok {
		rl = &roundLock{}
		l.locks[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// size reports how many rounds currently hold or wait for a lock.
func (l *roundLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
