package funnel

import (
	"math/rand"
	"sync"
	"time"
)

// SubmitLock is the process-wide gate around non-idempotent form
// submissions. Near-simultaneous login/register posts from many tasks look
// like synchronized bot traffic, so at most one task is mid-submission at
// any instant, and each submission is followed by a randomized settle before
// the next one may start.
type SubmitLock struct {
	mu sync.Mutex

	MinSettle time.Duration
	MaxSettle time.Duration
}

func NewSubmitLock() *SubmitLock {
	return &SubmitLock{
		MinSettle: 1500 * time.Millisecond,
		MaxSettle: 4 * time.Second,
	}
}

// sharedSubmitLock serializes submissions across every task in the process.
var sharedSubmitLock = NewSubmitLock()

// Do runs fn inside the gate. The settle-then-release happens exactly once
// per acquire, on every path out of fn, including panic.
func (l *SubmitLock) Do(fn func() error) error {

	l.mu.Lock()

	defer func() {
		time.Sleep(l.settle())
		l.mu.Unlock()
	}()

	return fn()
}

func (l *SubmitLock) settle() time.Duration {

	min := l.MinSettle
	max := l.MaxSettle

	if max <= min {
		return min
	}

	return min + time.Duration(rand.Int63n(int64(max-min)))
}
