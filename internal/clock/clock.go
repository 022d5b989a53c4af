// ABOUTME: Clock abstraction so timer-driven components can be tested deterministically.
// ABOUTME: Real delegates to the time package; Fake advances only when told to.

package clock

import "time"

// Clock is the subset of the time package used by the idle trigger and
// the reconciler. Production code injects Real(); tests inject NewFake().
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine (Real) or synchronously
	// during Advance (Fake) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending call created by AfterFunc.
type Timer interface {
	// Stop reports whether the call was prevented from running.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
