// Package clock abstracts the current time so that hold expiry and
// booking deadlines can be tested with a frozen instant.
package clock

import "time"

// Clock supplies the current UTC time.
type Clock interface {
	Now() time.Time
}

type system struct{}

// System returns a Clock backed by time.Now.
func System() Clock { return system{} }

func (system) Now() time.Time { return time.Now().UTC() }

// Fixed is a Clock pinned to a single instant.  Tests use it to place
// themselves before or after a hold's expiry without sleeping.
type Fixed struct {
	Instant time.Time
}

func (f Fixed) Now() time.Time { return f.Instant.UTC() }
