package providers

import "time"

// Clock is the only way components learn what "now" is.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func NewClockProvider() Clock {
	return systemClock{}
}
