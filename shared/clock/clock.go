package clock

import "time"

// Clock provides the current time so time-dependent logic can be tested deterministically
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// Func adapts a plain function to the Clock interface
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}
