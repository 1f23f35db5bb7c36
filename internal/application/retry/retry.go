// Package retry расписание повторов для событий интеграций.
package retry

import (
	"math/rand"
	"sync"
	"time"
)

const DefaultMaxAttempts = 7

// backoffTable задержка по номеру попытки, дальше последнего значения не растёт
var backoffTable = []time.Duration{
	0,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	4 * time.Hour,
}

const (
	jitterMin  = 0.8
	jitterSpan = 0.4
)

// RandSource равномерное [0,1)
type RandSource interface {
	Float64() float64
}

type Scheduler struct {
	maxAttempts int
	rnd         RandSource
	now         func() time.Time
}

type Option func(*Scheduler)

func WithRand(r RandSource) Option {
	return func(s *Scheduler) { s.rnd = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(maxAttempts int, opts ...Option) *Scheduler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	s := &Scheduler{
		maxAttempts: maxAttempts,
		rnd:         newLockedRand(time.Now().UnixNano()),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) MaxAttempts() int {
	return s.maxAttempts
}

// ShouldRetry attempts уже включает текущую попытку
func (s *Scheduler) ShouldRetry(attempts int) bool {
	return attempts < s.maxAttempts
}

// BaseDelay задержка без джиттера
func BaseDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return backoffTable[0]
	}
	if attempts >= len(backoffTable) {
		return backoffTable[len(backoffTable)-1]
	}
	return backoffTable[attempts]
}

// Delay base * U[0.8, 1.2)
func (s *Scheduler) Delay(attempts int) time.Duration {
	base := BaseDelay(attempts)
	if base == 0 {
		return 0
	}
	f := s.rnd.Float64()
	if f < 0 || f >= 1 {
		f = 0.5
	}
	return time.Duration(float64(base) * (jitterMin + jitterSpan*f))
}

func (s *Scheduler) NextRetryAt(attempts int) time.Time {
	return s.now().UTC().Add(s.Delay(attempts))
}

// lockedRand *rand.Rand не потокобезопасен, а диспетчер зовёт Delay из нескольких горутин
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}
