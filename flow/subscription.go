package flow

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xtap"
)

// Subscription is the handle a stage hands to its subscriber.
type Subscription interface {
	// Request grants n more items of demand. n must not be negative.
	Request(n int64) error
	// Cancel stops the stage and disposes its resources.
	Cancel()
}

var (
	_ Subscription  = (*subscription)(nil)
	_ xtap.Resource = (*subscription)(nil)
)

// subscription is the concrete handle every stage issues. Disposal runs the
// registered cleanups exactly once, however the stage ended.
type subscription struct {
	onRequest func(n int64)
	cancelled atomic.Bool
	once      sync.Once
	mu        sync.Mutex
	cleanups  []func()
}

func newSubscription(onRequest func(n int64)) *subscription {
	return &subscription{onRequest: onRequest}
}

func (s *subscription) Request(n int64) error {
	if n < 0 {
		return fmt.Errorf("flow: negative request %d", n)
	}
	if s.cancelled.Load() || s.onRequest == nil {
		return nil
	}
	s.onRequest(n)
	return nil
}

func (s *subscription) Cancel() { s.dispose() }

// OnDispose registers fn; it runs immediately when already disposed.
func (s *subscription) OnDispose(fn func()) {
	s.mu.Lock()
	if s.cancelled.Load() {
		s.mu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.mu.Unlock()
}

func (s *subscription) dispose() {
	s.once.Do(func() {
		s.mu.Lock()
		s.cancelled.Store(true)
		fns := s.cleanups
		s.cleanups = nil
		s.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	})
}

func (s *subscription) isCancelled() bool { return s.cancelled.Load() }

// addCredit adds n to c, saturating at math.MaxInt64 (unbounded demand).
func addCredit(c, n int64) int64 {
	if c > math.MaxInt64-n {
		return math.MaxInt64
	}
	return c + n
}

// useCredit consumes one item of credit; unbounded credit is never consumed.
func useCredit(c int64) int64 {
	if c == math.MaxInt64 {
		return c
	}
	return c - 1
}
