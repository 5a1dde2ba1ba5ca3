package httpclient

import (
	"sync"
	"time"
)

// BreakerState is the state of a sidecar circuit.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen fails calls immediately until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets a single probe call through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breaker opens after maxFailures consecutive failed calls and probes the
// sidecar again once cooldown has passed. A nil breaker allows everything.
type breaker struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
	onChange    func(from, to BreakerState)

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

func newBreaker(maxFailures int, cooldown time.Duration) *breaker {
	if maxFailures < 0 {
		return nil
	}
	return &breaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// allow reports whether a call may proceed. In half-open state only the
// first caller gets through until its result is recorded.
func (b *breaker) allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.setState(BreakerHalfOpen)
	}
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return false
	}
}

// record feeds the outcome of an allowed call back into the breaker.
func (b *breaker) record(failed bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if !failed {
		b.failures = 0
		b.setState(BreakerClosed)
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		b.setState(BreakerOpen)
	}
}

// abort releases a half-open probe without counting an outcome.
func (b *breaker) abort() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

func (b *breaker) current() BreakerState {
	if b == nil {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) setState(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if to == BreakerClosed {
		b.failures = 0
	}
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
