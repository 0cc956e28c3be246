package crawler

import (
	"time"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}
