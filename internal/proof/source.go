package proof

import (
	"context"
	"time"
	"wakaproof/internal/models"
)

// Observation is one authoritative reading of the current time.
type Observation struct {
	Time     time.Time
	Evidence models.Evidence
}

// TimestampSource is an independently reachable time authority.
type TimestampSource interface {
	Name() string
	Now(ctx context.Context) (Observation, error)
}

type sourceFunc struct {
	name string
	fn   func(ctx context.Context) (Observation, error)
}

func (s *sourceFunc) Name() string { return s.name }

func (s *sourceFunc) Now(ctx context.Context) (Observation, error) { return s.fn(ctx) }

// NewSourceFunc adapts a plain function to a TimestampSource.
func NewSourceFunc(name string, fn func(ctx context.Context) (Observation, error)) TimestampSource {
	return &sourceFunc{name: name, fn: fn}
}
