package clock

import "time"

// Clock abstracts wall-clock reads so time-derived state (such as the
// listing rotation epoch) can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

// Fake is a manually-advanced clock for tests.
type Fake struct {
	T time.Time
}

func (f *Fake) Now() time.Time {
	return f.T
}

func (f *Fake) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}
