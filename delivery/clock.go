package delivery

import "time"

/* Clock abstracts wall-clock access so retry timing is testable
 * without real delays
 */
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall-clock backed Clock used in production
func SystemClock() Clock { return systemClock{} }
