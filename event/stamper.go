package event

import (
	"sync"
	"time"
)

var defaultStamper = NewStamper(nil)

// Stamper hands out unix millisecond timestamps that never go backwards,
// even when the wall clock does.
type Stamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewStamper creates a Stamper reading from now, or time.Now when nil.
func NewStamper(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

// Stamp returns the current time in unix milliseconds, clamped to the last
// value handed out.
func (s *Stamper) Stamp() int64 {
	ms := s.now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ms < s.last {
		ms = s.last
	}
	s.last = ms
	return ms
}
